package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/spares/internal/inventory"
	"github.com/JonMunkholm/spares/internal/logging"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// handleListItems returns the catalog. ?q= filters by code or description,
// ?context= keeps items that carry the named context.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.Items(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	ctxName := strings.TrimSpace(r.URL.Query().Get("context"))
	if q != "" || ctxName != "" {
		filtered := items[:0]
		for _, it := range items {
			if matchesQuery(it, q) && hasContext(it, ctxName) {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}

	writeJSON(w, map[string]any{"items": items, "count": len(items)})
}

func matchesQuery(it inventory.Item, q string) bool {
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(it.PrimaryCode), q) ||
		strings.Contains(strings.ToLower(it.SecondaryCode), q) ||
		strings.Contains(strings.ToLower(it.Description), q)
}

func hasContext(it inventory.Item, name string) bool {
	if name == "" {
		return true
	}
	for _, c := range it.Contexts {
		if c.Name == name {
			return true
		}
	}
	return false
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	it, err := s.service.Item(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, it)
}

func (s *Server) handleItemHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.service.Item(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}

	limit := min(parseIntParam(r, "limit", defaultHistoryLimit), maxHistoryLimit)
	entries, err := s.service.History(r.Context(), id, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"itemId": id, "entries": entries})
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	it, err := s.service.CreateItem(ctx, req.edit())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, it)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	it, err := s.service.UpdateItem(ctx, chi.URLParam(r, "id"), req.edit())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, it)
}

// handleRestore writes whole items back, as exported earlier. Restored
// writes are not recorded in item history.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}
	for i, it := range req.Items {
		if strings.TrimSpace(it.ID) == "" {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("item %d has no id", i))
			return
		}
	}

	n, err := s.service.Restore(r.Context(), req.Items)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"itemsWritten": n})
}

// handleExport streams the catalog as an XLSX workbook. The workbook is
// built in memory first so a failure can still be reported as an error.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.service.ExportCatalog(r.Context(), &buf); err != nil {
		s.respondError(w, r, err)
		return
	}

	filename := fmt.Sprintf("catalogo-%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Error("write export", "error", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"snapshot":    s.service.SnapshotStatus(),
		"imports":     s.service.Limiter().Status(),
		"placeholder": s.service.Placeholder(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}
