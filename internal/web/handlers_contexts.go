package web

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/spares/internal/core"
)

func (s *Server) handleListContexts(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.service.Contexts(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"contexts": summaries})
}

func (s *Server) handleRenameContext(w http.ResponseWriter, r *http.Request) {
	var req renameContextRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %s", core.ErrInvalidContextName, validationMessage(err)))
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	n, err := s.service.RenameContext(ctx, req.From, req.To)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"from": req.From, "to": req.To, "itemsUpdated": n})
}

func (s *Server) handleRemoveContext(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", core.ErrInvalidContextName, err))
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	n, err := s.service.RemoveContext(ctx, name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"context": name, "itemsUpdated": n})
}
