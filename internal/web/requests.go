package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/spares/internal/core"
	"github.com/JonMunkholm/spares/internal/inventory"
)

// maxJSONBody caps JSON request bodies. Restores carry whole items, so this
// is generous.
const maxJSONBody = 8 << 20

// contextImportForm is the non-file part of a context import upload.
type contextImportForm struct {
	Name        string `validate:"required,max=120"`
	Kind        string `validate:"required,context_kind"`
	Placeholder string `validate:"max=64"`
}

type catalogImportForm struct {
	Placeholder string `validate:"max=64"`
}

type renameContextRequest struct {
	From string `json:"from" validate:"required,max=120"`
	To   string `json:"to" validate:"required,max=120"`
}

// itemRequest is a create or partial update. Absent fields are left alone.
type itemRequest struct {
	PrimaryCode        *string          `json:"primaryCode" validate:"omitempty,max=64"`
	SecondaryCode      *string          `json:"secondaryCode" validate:"omitempty,max=64"`
	Description        *string          `json:"description" validate:"omitempty,max=500"`
	UnitValue          *decimal.Decimal `json:"unitValue"`
	LegacyRequestedQty *int             `json:"legacyRequestedQty" validate:"omitempty,gte=0"`
	LegacyStockQty     *int             `json:"legacyStockQty" validate:"omitempty,gte=0"`
}

func (r itemRequest) edit() core.ItemEdit {
	return core.ItemEdit{
		PrimaryCode:        r.PrimaryCode,
		SecondaryCode:      r.SecondaryCode,
		Description:        r.Description,
		UnitValue:          r.UnitValue,
		LegacyRequestedQty: r.LegacyRequestedQty,
		LegacyStockQty:     r.LegacyStockQty,
	}
}

type restoreRequest struct {
	Items []inventory.Item `json:"items" validate:"required"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("context_kind", func(fl validator.FieldLevel) bool {
		_, err := inventory.ParseKind(fl.Field().String())
		return err == nil
	})
	return v
}

// decodeJSON reads a size-capped JSON body into v and validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return s.validate.Struct(v)
}

// validationMessage flattens validator errors into one line.
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msg := "invalid request:"
	for i, fe := range verrs {
		if i > 0 {
			msg += ","
		}
		msg += " " + fe.Field() + " failed " + fe.Tag()
	}
	return msg
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
