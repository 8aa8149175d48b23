package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ParseCSV streams a CSV file. The delimiter (comma or semicolon, as written
// by Excel in Spanish locales) is sniffed from the first block.
func ParseCSV(r io.Reader, opts Options) (*Result, error) {
	limit := opts.maxSize()
	text, counter := wrapText(io.LimitReader(r, limit+1), opts.Size)
	br := bufio.NewReaderSize(text, 64<<10)

	head, err := br.Peek(8 << 10)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(bytes.TrimSpace(head)) == 0 {
		if counter.BytesRead > limit {
			return nil, tooLarge(limit)
		}
		return nil, ErrEmptyFile
	}

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(head)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		records [][]string
		lines   []int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if counter.BytesRead > limit {
				return nil, tooLarge(limit)
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	if counter.BytesRead > limit {
		return nil, tooLarge(limit)
	}

	res, err := buildRows(records, lines, ParseNumber)
	if err != nil {
		return nil, err
	}
	res.Format = FormatCSV
	return res, nil
}

func sniffDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		// Title rows rarely carry delimiters; look at a few lines.
		head = head[:min(len(head), i+1+2048)]
	}
	if bytes.Count(head, []byte{';'}) > bytes.Count(head, []byte{','}) {
		return ';'
	}
	return ','
}

func tooLarge(limit int64) error {
	return fmt.Errorf("%w: limit is %.1f MB", ErrFileTooLarge, float64(limit)/(1<<20))
}
