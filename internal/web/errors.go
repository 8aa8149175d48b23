package web

// errors.go maps service errors to HTTP responses. The technical error is
// logged with the request ID; the client gets core.MapError's message, as
// JSON for API clients or as an HTML fragment for HTMX requests.

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/spares/internal/core"
	"github.com/JonMunkholm/spares/internal/inventory"
	"github.com/JonMunkholm/spares/internal/sheet"
	"github.com/JonMunkholm/spares/internal/store"
	"github.com/JonMunkholm/spares/internal/web/templates"
)

// ErrorResponse is the JSON body of an error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	// Result is set when an import stopped part-way.
	Result *core.ImportResult `json:"result,omitempty"`
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	var storeErr *core.ExternalStoreError
	switch {
	case errors.Is(err, core.ErrImportInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrItemNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sheet.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, inventory.ErrInvalidTarget),
		errors.Is(err, core.ErrInvalidContextName),
		errors.Is(err, sheet.ErrEmptyFile),
		errors.Is(err, sheet.ErrNoHeader),
		errors.Is(err, sheet.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &storeErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondErrorResult(w, r, err, nil)
}

func (s *Server) respondErrorResult(w http.ResponseWriter, r *http.Request, err error, res *core.ImportResult) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if err := templates.ErrorAlert(userMsg, res).Render(r.Context(), w); err != nil {
			slog.Error("render error fragment", "error", err)
		}
		return
	}

	writeJSONStatus(w, status, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
		Result:  res,
	})
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsHTML reports whether the client asked for an HTML fragment rather
// than JSON.
func wantsHTML(r *http.Request) bool {
	if isHTMX(r) {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
