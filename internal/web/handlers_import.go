package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/JonMunkholm/spares/internal/core"
	"github.com/JonMunkholm/spares/internal/inventory"
	"github.com/JonMunkholm/spares/internal/logging"
	"github.com/JonMunkholm/spares/internal/sheet"
	"github.com/JonMunkholm/spares/internal/web/templates"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

// handleImportContext reconciles an uploaded sheet into a named context.
// Form fields: file, name, kind (request|stock), placeholder (optional).
func (s *Server) handleImportContext(w http.ResponseWriter, r *http.Request) {
	if !s.parseUploadForm(w, r) {
		return
	}

	form := contextImportForm{
		Name:        strings.TrimSpace(r.FormValue("name")),
		Kind:        r.FormValue("kind"),
		Placeholder: strings.TrimSpace(r.FormValue("placeholder")),
	}
	if err := s.validate.Struct(form); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %s", inventory.ErrInvalidTarget, validationMessage(err)))
		return
	}
	kind, err := inventory.ParseKind(form.Kind)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", inventory.ErrInvalidTarget, err))
		return
	}

	parsed, filename, ok := s.readSheet(w, r)
	if !ok {
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	res, err := s.service.ReconcileContextImport(ctx, parsed.Rows, core.ContextImport{
		Name:        form.Name,
		Kind:        kind,
		Placeholder: form.Placeholder,
		Source:      filename,
	})
	s.respondImport(w, r, res, err)
}

// handleImportCatalog merges an uploaded sheet into the catalog without
// touching quantities.
func (s *Server) handleImportCatalog(w http.ResponseWriter, r *http.Request) {
	if !s.parseUploadForm(w, r) {
		return
	}

	form := catalogImportForm{Placeholder: strings.TrimSpace(r.FormValue("placeholder"))}
	if err := s.validate.Struct(form); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	parsed, filename, ok := s.readSheet(w, r)
	if !ok {
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	res, err := s.service.ReconcileCatalogImport(ctx, parsed.Rows, core.CatalogImport{
		Placeholder: form.Placeholder,
		Source:      filename,
	})
	s.respondImport(w, r, res, err)
}

// parseUploadForm parses the multipart form. On failure it has already
// written the response.
func (s *Server) parseUploadForm(w http.ResponseWriter, r *http.Request) bool {
	maxSize := s.cfg.Import.MaxFileSize
	// Form fields and multipart framing ride on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondError(w, r, fmt.Errorf("%w: upload over %d bytes", sheet.ErrFileTooLarge, maxSize))
			return false
		}
		writeError(w, r, http.StatusBadRequest, "invalid multipart form")
		return false
	}
	return true
}

// readSheet parses the spreadsheet in the "file" form field.
func (s *Server) readSheet(w http.ResponseWriter, r *http.Request) (*sheet.Result, string, bool) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "no file provided")
		return nil, "", false
	}
	defer file.Close()

	parsed, err := parseUpload(file, header, s.cfg.Import.MaxFileSize)
	if err != nil {
		s.respondError(w, r, err)
		return nil, "", false
	}

	logging.FromContext(r.Context()).Debug("upload parsed",
		"file", header.Filename,
		"format", parsed.Format,
		"sheet", parsed.Sheet,
		"header_row", parsed.HeaderRow,
		"rows", len(parsed.Rows),
		"skipped", parsed.Skipped,
	)
	return parsed, header.Filename, true
}

func parseUpload(file multipart.File, header *multipart.FileHeader, maxSize int64) (*sheet.Result, error) {
	return sheet.Parse(header.Filename, file, sheet.Options{MaxSize: maxSize, Size: header.Size})
}

// respondImport writes an import result. A partial import reports the error
// together with the rows that were saved.
func (s *Server) respondImport(w http.ResponseWriter, r *http.Request, res *core.ImportResult, err error) {
	if err != nil {
		s.respondErrorResult(w, r, err, res)
		return
	}
	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.ImportSummary(res).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render import summary", "error", err)
		}
		return
	}
	writeJSON(w, res)
}
