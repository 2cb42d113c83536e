package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
)

type ContextKey string

const (
	RequestIDCtxKey ContextKey = "RequestID"
	LogEntryCtxKey  ContextKey = "LogEntry"
	PgTxCtxKey      ContextKey = "PgTx"
)

// ErrNoTx is returned by Tx when no transaction is bound to the request.
var ErrNoTx = errors.New("no transaction in request context")

// Tx returns the transaction the session middleware bound to the request.
func Tx(r *http.Request) (pgx.Tx, error) {
	tx, ok := r.Context().Value(PgTxCtxKey).(pgx.Tx)
	if !ok || tx == nil {
		return nil, ErrNoTx
	}
	return tx, nil
}

// JSON writes a JSON response with the given status code and data.
func JSON(w http.ResponseWriter, statusCode int, data any) {
	JSONIndent(w, statusCode, data, "")
}

// JSONIndent writes data indented by indent per nesting level.
func JSONIndent(w http.ResponseWriter, statusCode int, data any, indent string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	enc := json.NewEncoder(w)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ErrorResponse represents a structured error response.
type ErrorResponse struct {
	Message     string `json:"message"`
	Code        int    `json:"code"`
	Description any    `json:"description,omitempty"`
}

// Error sends a JSON response with an error code and message.
func Error(w http.ResponseWriter, statusCode int, message string) {
	ErrorWithDescription(w, statusCode, message, nil)
}

// ErrorWithDescription is Error with a description, either a string or a map
// of field names to messages.
func ErrorWithDescription(w http.ResponseWriter, statusCode int, message string, description any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	errorResponse := ErrorResponse{
		Code:        statusCode,
		Message:     message,
		Description: description,
	}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		// Fallback if JSON encoding fails
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
