package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ContextTag is how a context appears in stored documents. Older documents
// list contexts as bare names; newer ones store full records. Decode with
// DecodeTags and flatten with NormalizeTags before doing anything else.
type ContextTag interface {
	tagName() string
}

// Named is a context stored as a bare label.
type Named string

func (n Named) tagName() string { return string(n) }

// Structured is a context stored as a full record.
type Structured ContextAssignment

func (s Structured) tagName() string { return s.Name }

// DecodeTags reads a JSON array whose elements are strings or objects.
// A null or empty input yields no tags.
func DecodeTags(raw []byte) ([]ContextTag, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("decode contexts: %w", err)
	}
	tags := make([]ContextTag, 0, len(elems))
	for i, e := range elems {
		e = bytes.TrimSpace(e)
		if len(e) == 0 {
			continue
		}
		switch e[0] {
		case '"':
			var name string
			if err := json.Unmarshal(e, &name); err != nil {
				return nil, fmt.Errorf("decode context %d: %w", i, err)
			}
			tags = append(tags, Named(name))
		case '{':
			var rec struct {
				Name       string          `json:"name"`
				Kind       string          `json:"kind"`
				Quantity   decimal.Decimal `json:"quantity"`
				AssignedAt time.Time       `json:"assignedAt"`
			}
			if err := json.Unmarshal(e, &rec); err != nil {
				return nil, fmt.Errorf("decode context %d: %w", i, err)
			}
			kind, err := ParseKind(rec.Kind)
			if err != nil {
				kind = KindRequest
			}
			tags = append(tags, Structured{
				Name:       rec.Name,
				Kind:       kind,
				Quantity:   ClampQuantity(rec.Quantity),
				AssignedAt: rec.AssignedAt,
			})
		case 'n':
			// null element
		default:
			return nil, fmt.Errorf("decode context %d: unexpected JSON %s", i, string(e))
		}
	}
	return tags, nil
}

// NormalizeTags turns decoded tags into assignments. A bare name becomes a
// request assignment with quantity zero. Blank names are dropped and repeated
// (name, kind) pairs collapse, the later entry winning.
func NormalizeTags(tags []ContextTag) []ContextAssignment {
	out := make([]ContextAssignment, 0, len(tags))
	for _, t := range tags {
		if strings.TrimSpace(t.tagName()) == "" {
			continue
		}
		var c ContextAssignment
		switch v := t.(type) {
		case Named:
			c = ContextAssignment{Name: strings.TrimSpace(string(v)), Kind: KindRequest}
		case Structured:
			c = ContextAssignment(v)
			c.Name = strings.TrimSpace(c.Name)
		}
		out = Upsert(out, c.Name, c.Kind, c.Quantity, c.AssignedAt)
	}
	return out
}
