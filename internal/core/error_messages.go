package core

// Error codes reference
//
// Users quote these codes to support staff.
//
//	STORE001 - Store unavailable: connection refused/reset
//	STORE002 - Partial import: a chunk failed after earlier chunks committed
//	STORE003 - Document missing: an update targeted a deleted item
//	STORE004 - Batch too large: chunk size is not below the store limit
//
//	IMP001 - Import busy: another import holds the slot
//	IMP002 - Invalid target: empty context name or unknown kind
//	IMP003 - Unreadable file: not CSV/XLSX, or no header row
//	IMP004 - File too large
//	IMP005 - Empty file
//
//	CTX001 - Invalid context name
//	CTX002 - Item not found
//
//	REQ001 - Request cancelled
//	REQ002 - Request timed out
//
//	ERR000 - Anything else; check the logs for the technical error.
//
// Typed and sentinel errors are checked first with errors.Is/As. Anything
// else falls through to case-insensitive substring patterns, first match
// wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/spares/internal/inventory"
	"github.com/JonMunkholm/spares/internal/sheet"
	"github.com/JonMunkholm/spares/internal/store"
)

// ErrInvalidContextName is returned for blank context names.
var ErrInvalidContextName = errors.New("invalid context name")

// ErrItemNotFound is returned when an item ID is not in the collection.
var ErrItemNotFound = errors.New("item not found")

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Support reference
}

var (
	msgStoreUnavailable = UserMessage{
		Message: "The inventory database is unavailable",
		Action:  "Please try again in a few moments",
		Code:    "STORE001",
	}
	msgPartialImport = UserMessage{
		Message: "The import stopped part-way; earlier rows were saved",
		Action:  "Re-run the same file once the problem is fixed; saved rows will not be duplicated",
		Code:    "STORE002",
	}
	msgDocumentMissing = UserMessage{
		Message: "An item changed or was removed while saving",
		Action:  "Reload and try again",
		Code:    "STORE003",
	}
	msgBatchTooLarge = UserMessage{
		Message: "The save batch is larger than the database allows",
		Action:  "Lower STORE_CHUNK_SIZE below STORE_MAX_BATCH_OPS",
		Code:    "STORE004",
	}
	msgImportBusy = UserMessage{
		Message: "Another import is running",
		Action:  "Wait for it to finish and try again",
		Code:    "IMP001",
	}
	msgInvalidTarget = UserMessage{
		Message: "The import target is not valid",
		Action:  "Give a context name and choose request or stock",
		Code:    "IMP002",
	}
	msgUnreadableFile = UserMessage{
		Message: "The file could not be read",
		Action:  "Upload a CSV or XLSX file with a code or description header",
		Code:    "IMP003",
	}
	msgFileTooLarge = UserMessage{
		Message: "The file exceeds the maximum size",
		Action:  "Split the file into smaller files",
		Code:    "IMP004",
	}
	msgEmptyFile = UserMessage{
		Message: "The file has no data rows",
		Action:  "Check that the file has rows below the header",
		Code:    "IMP005",
	}
	msgInvalidContextName = UserMessage{
		Message: "The context name is not valid",
		Action:  "Use a non-empty name",
		Code:    "CTX001",
	}
	msgItemNotFound = UserMessage{
		Message: "Item not found",
		Action:  "Reload the catalog and try again",
		Code:    "CTX002",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "REQ002",
	}
)

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch errors that arrive as plain text (driver errors,
// wrapped strings from other layers). Specific patterns come first.
var errorPatterns = []errorPattern{
	{pattern: "connection refused", msg: msgStoreUnavailable},
	{pattern: "connection reset", msg: msgStoreUnavailable},
	{pattern: "no such host", msg: msgStoreUnavailable},
	{pattern: "too many clients", msg: msgStoreUnavailable},
	{pattern: "file too large", msg: msgFileTooLarge},
	{pattern: "empty file", msg: msgEmptyFile},
	{pattern: "header not found", msg: msgUnreadableFile},
	{pattern: "unsupported file", msg: msgUnreadableFile},
	{pattern: "context canceled", msg: msgCancelled},
	{pattern: "deadline exceeded", msg: msgTimeout},
	{pattern: "timeout", msg: msgTimeout},
	{pattern: "document store", msg: msgStoreUnavailable},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var storeErr *ExternalStoreError
	switch {
	case errors.As(err, &storeErr) && storeErr.Chunk > 1:
		return msgPartialImport
	case errors.Is(err, ErrImportInProgress):
		return msgImportBusy
	case errors.Is(err, inventory.ErrInvalidTarget):
		return msgInvalidTarget
	case errors.Is(err, ErrInvalidContextName):
		return msgInvalidContextName
	case errors.Is(err, ErrItemNotFound):
		return msgItemNotFound
	case errors.Is(err, store.ErrBatchTooLarge):
		return msgBatchTooLarge
	case errors.Is(err, store.ErrNotFound):
		return msgDocumentMissing
	case errors.Is(err, sheet.ErrFileTooLarge):
		return msgFileTooLarge
	case errors.Is(err, sheet.ErrEmptyFile):
		return msgEmptyFile
	case errors.Is(err, sheet.ErrNoHeader), errors.Is(err, sheet.ErrUnsupportedFormat):
		return msgUnreadableFile
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
