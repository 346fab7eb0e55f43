package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/immihelp/formapi/internal/api"
	"github.com/immihelp/formapi/internal/apperr"
	"github.com/immihelp/formapi/internal/config"
	"github.com/immihelp/formapi/pkg/logging"
)

var logRH = logging.NewLogger("RequestHandler")

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// can't send a clean status code at this point
		logRH.Error("error encoding response", "error", err)
	}
}

// WriteErrorResponse is the middleware-facing variant with an explicit
// status and kind.
func WriteErrorResponse(w http.ResponseWriter, httpCode int, kind string, message string) {
	writeJsonResponse(w, httpCode, api.ErrorResponse{Kind: kind, Message: message})
}

// writeAppError maps a pipeline error to its HTTP status and a safe body.
func writeAppError(w http.ResponseWriter, err error) {
	writeJsonResponse(w, apperr.HTTPStatus(err), api.ErrorResponse{
		Kind:    string(apperr.KindOf(err)),
		Message: apperr.UserMessage(err),
	})
}

func validateContext(ctx context.Context) bool {
	if ctx.Err() != nil {
		logRH.Warn("context error", "error", ctx.Err())
		return false
	}

	select {
	case <-ctx.Done():
		logRH.Warn("context cancelled")
		return false
	default:
		return true
	}
}

func traceId(ctx context.Context) string {
	if v, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
		return v
	}
	return ""
}
