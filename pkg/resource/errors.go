package resource

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/edgeflare/restable/pkg/httputil"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when no row matches the requested id.
var ErrNotFound = errors.New("resource not found")

// ValidationError aggregates the messages of every invalid field.
type ValidationError struct {
	Fields map[string][]string
}

func (ve *ValidationError) add(field string, messages ...string) {
	if len(messages) == 0 {
		return
	}
	if ve.Fields == nil {
		ve.Fields = make(map[string][]string)
	}
	ve.Fields[field] = append(ve.Fields[field], messages...)
}

// HasErrors reports whether any field failed.
func (ve *ValidationError) HasErrors() bool {
	return ve != nil && len(ve.Fields) > 0
}

func (ve *ValidationError) Error() string {
	if !ve.HasErrors() {
		return "validation failed"
	}
	names := make([]string, 0, len(ve.Fields))
	for name := range ve.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(ve.Fields[name], " ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// PersistenceError wraps a storage failure. Only a generic message reaches the
// client.
type PersistenceError struct {
	Err error
}

func (pe *PersistenceError) Error() string {
	return "database error: " + pe.Err.Error()
}

func (pe *PersistenceError) Unwrap() error { return pe.Err }

// Reason names the violated constraint class for logging.
func (pe *PersistenceError) Reason() string {
	var pgErr *pgconn.PgError
	if !errors.As(pe.Err, &pgErr) {
		return "unknown"
	}
	switch pgErr.Code {
	case "23505":
		return "unique_violation"
	case "23503":
		return "foreign_key_violation"
	case "23514":
		return "check_violation"
	case "23502":
		return "not_null_violation"
	case "40P01":
		return "deadlock_detected"
	case "40001":
		return "serialization_failure"
	}
	return pgErr.Code
}

// MethodNotAllowedError is returned for a verb that does not fit the addressing
// mode (collection or item).
type MethodNotAllowedError struct {
	Allowed []string
}

func (me *MethodNotAllowedError) Error() string {
	return "method not allowed, allowed: " + strings.Join(me.Allowed, ", ")
}

// Error body description for persistence failures
const databaseErrorDescription = "Database error"

// StatusCode maps err to the HTTP status it is reported with.
func StatusCode(err error) int {
	var (
		ve *ValidationError
		pe *PersistenceError
		me *MethodNotAllowedError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &pe):
		return http.StatusUnprocessableEntity
	case errors.As(err, &me):
		return http.StatusMethodNotAllowed
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

// WriteError writes the response for err. Causes of persistence and internal
// failures are never exposed.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusCode(err)

	var description any
	var (
		ve *ValidationError
		me *MethodNotAllowedError
	)
	switch {
	case errors.As(err, &ve):
		description = ve.Fields
	case status == http.StatusUnprocessableEntity:
		description = databaseErrorDescription
	case errors.As(err, &me):
		w.Header().Set("Allow", strings.Join(me.Allowed, ", "))
	case status == http.StatusBadRequest:
		description = err.Error()
	}

	httputil.ErrorWithDescription(w, status, http.StatusText(status), description)
}
