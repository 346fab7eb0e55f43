// Package apperr defines the error kinds the pipeline raises and the
// boundary layer translates into HTTP statuses. Inner layers wrap causes
// with %w; kinds survive the wrapping and are recovered with KindOf.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	ConfigNotFound           Kind = "CONFIG_NOT_FOUND"
	ConfigInvalid            Kind = "CONFIG_INVALID"
	InvalidFile              Kind = "INVALID_FILE"
	StorageError             Kind = "STORAGE_ERROR"
	ModelUnavailable         Kind = "MODEL_UNAVAILABLE"
	ExtractionParseError     Kind = "EXTRACTION_PARSE_ERROR"
	TemplateNotFound         Kind = "TEMPLATE_NOT_FOUND"
	PdfWriteError            Kind = "PDF_WRITE_ERROR"
	KnowledgeBaseUnavailable Kind = "KNOWLEDGE_BASE_UNAVAILABLE"
	Internal                 Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is match two *Error values by kind alone, so sentinel
// comparisons like errors.Is(err, apperr.New(apperr.ConfigNotFound, ""))
// work without identical messages.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

// KindOf reports the kind carried by err, or Internal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// UserMessage is the human-readable text safe to show a caller. Internal
// paths and wrapped causes are never exposed.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "An unexpected error occurred."
}

// HTTPStatus maps an error kind to the status the boundary layer returns.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case ConfigNotFound, TemplateNotFound:
		return http.StatusNotFound
	case ConfigInvalid, InvalidFile:
		return http.StatusBadRequest
	case ModelUnavailable, KnowledgeBaseUnavailable:
		return http.StatusServiceUnavailable
	case ExtractionParseError, PdfWriteError, StorageError, Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
