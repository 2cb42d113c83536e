package resource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/edgeflare/restable/pkg/catalog"
	"github.com/edgeflare/restable/pkg/httputil"
	"go.uber.org/zap"
)

// IDPathValue is the name of the path wildcard carrying the resource id.
const IDPathValue = "id"

var (
	collectionMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	itemMethods       = []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}
)

// Operation names, used in logs and metrics.
const (
	OpList          = "list"
	OpRead          = "read"
	OpCreate        = "create"
	OpUpdate        = "update"
	OpPartialUpdate = "partial_update"
	OpDelete        = "delete"
	OpDescribe      = "describe"
	OpInvalid       = "invalid"
)

// ObserveFunc is called once per request with the operation, the response
// status and the time spent.
type ObserveFunc func(entity, operation string, status int, elapsed time.Duration)

// Handler serves one entity on its collection and item paths.
type Handler struct {
	schema      *Schema
	session     SessionFunc
	logger      *zap.Logger
	observe     ObserveFunc
	pageSize    int
	maxPageSize int
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger; the default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithPageSize sets the default page size and an optional upper bound
// (0 means unbounded).
func WithPageSize(size, max int) Option {
	return func(h *Handler) {
		if size > 0 {
			h.pageSize = size
		}
		h.maxPageSize = max
	}
}

// WithObserver registers fn to be told about every served request.
func WithObserver(fn ObserveFunc) Option {
	return func(h *Handler) { h.observe = fn }
}

// New returns a handler for schema. session supplies the Store of each request.
func New(schema *Schema, session SessionFunc, opts ...Option) *Handler {
	h := &Handler{
		schema:   schema,
		session:  session,
		logger:   zap.NewNop(),
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	op := operation(r)

	status, err := h.serve(w, r, op)
	if err != nil {
		status = StatusCode(err)
		h.logError(op, status, err)
		WriteError(w, err)
	}

	if h.observe != nil {
		h.observe(h.schema.entity.Name, op, status, time.Since(start))
	}
}

func operation(r *http.Request) string {
	hasID := r.PathValue(IDPathValue) != ""
	switch {
	case r.Method == http.MethodOptions:
		return OpDescribe
	case r.Method == http.MethodGet && hasID:
		return OpRead
	case r.Method == http.MethodGet:
		return OpList
	case r.Method == http.MethodPost && !hasID:
		return OpCreate
	case r.Method == http.MethodPut && hasID:
		return OpUpdate
	case r.Method == http.MethodPatch && hasID:
		return OpPartialUpdate
	case r.Method == http.MethodDelete && hasID:
		return OpDelete
	}
	return OpInvalid
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, op string) (int, error) {
	raw := r.PathValue(IDPathValue)
	hasID := raw != ""

	if op == OpInvalid {
		if hasID {
			return 0, &MethodNotAllowedError{Allowed: itemMethods}
		}
		return 0, &MethodNotAllowedError{Allowed: collectionMethods}
	}
	if op == OpDescribe {
		return h.describe(w, hasID), nil
	}

	var id any
	if hasID {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// the route only matches integer ids
			return 0, ErrNotFound
		}
		id = n
	}

	store, err := h.session(r)
	if err != nil {
		return 0, fmt.Errorf("open session: %w", err)
	}

	switch op {
	case OpList:
		return h.list(w, r, store)
	case OpRead:
		return h.read(w, r, store, id)
	case OpCreate:
		return h.create(w, r, store)
	case OpUpdate:
		return h.update(w, r, store, id, false)
	case OpPartialUpdate:
		return h.update(w, r, store, id, true)
	default:
		return h.delete(w, r, store, id)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, store Store) (int, error) {
	e := h.schema.entity
	params := parseListParams(r, h.pageSize)
	if h.maxPageSize > 0 && params.PageSize > h.maxPageSize {
		params.PageSize = h.maxPageSize
	}

	recs, err := store.Select(r.Context(), e, params.query(e))
	if err != nil {
		return 0, fmt.Errorf("select %s: %w", e.Table, err)
	}
	if err := h.embedParents(r, store, recs); err != nil {
		return 0, err
	}

	writeJSON(w, http.StatusOK, h.schema.Dump(recs, true), params.Compact)
	return http.StatusOK, nil
}

func (h *Handler) read(w http.ResponseWriter, r *http.Request, store Store, id any) (int, error) {
	e := h.schema.entity
	rec, err := store.Get(r.Context(), e, id, false)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", e.Table, err)
	}
	if rec == nil {
		return 0, ErrNotFound
	}
	if err := h.embedParents(r, store, []catalog.Record{rec}); err != nil {
		return 0, err
	}
	if err := h.loadCollections(r, store, rec, id); err != nil {
		return 0, err
	}

	writeJSON(w, http.StatusOK, h.schema.Dump(rec, false), parseBoolParam(r.URL.Query().Get("compact")))
	return http.StatusOK, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, store Store) (int, error) {
	e := h.schema.entity
	raw, err := decodeBody(r.Body)
	if err != nil {
		return 0, err
	}

	rec, err := h.schema.Load(raw, nil, false)
	if err != nil {
		return 0, err
	}

	id, err := store.Insert(r.Context(), e, columnsOf(e, rec))
	if err != nil {
		return 0, &PersistenceError{Err: err}
	}
	if err := h.setCollections(r, store, rec, id); err != nil {
		return 0, err
	}

	httputil.JSON(w, http.StatusCreated, id)
	return http.StatusCreated, nil
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, store Store, id any, partial bool) (int, error) {
	e := h.schema.entity
	existing, err := store.Get(r.Context(), e, id, true)
	if err != nil {
		return 0, &PersistenceError{Err: err}
	}
	if existing == nil {
		return 0, ErrNotFound
	}

	raw, err := decodeBody(r.Body)
	if err != nil {
		return 0, err
	}
	loaded, err := h.schema.Load(raw, existing, partial)
	if err != nil {
		return 0, err
	}

	changes := h.schema.Delta(existing, loaded)
	if cols := columnsOf(e, changes); len(cols) > 0 {
		if err := store.Update(r.Context(), e, id, cols); err != nil {
			return 0, &PersistenceError{Err: err}
		}
	}
	if err := h.setCollections(r, store, changes, id); err != nil {
		return 0, err
	}

	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent, nil
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, store Store, id any) (int, error) {
	e := h.schema.entity
	// many-to-many association rows are removed with the row
	for _, rel := range e.Relations() {
		if rel.Kind() != catalog.ManyToMany {
			continue
		}
		target, ok := h.schema.related[rel.Relation.Target]
		if !ok {
			continue
		}
		if err := store.SetRelated(r.Context(), e, rel, target.entity, id, nil); err != nil {
			return 0, &PersistenceError{Err: err}
		}
	}

	found, err := store.Delete(r.Context(), e, id)
	if err != nil {
		return 0, &PersistenceError{Err: err}
	}
	if !found {
		return 0, ErrNotFound
	}

	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent, nil
}

// describe reports the singular name on the item path and the plural name on
// the collection path.
func (h *Handler) describe(w http.ResponseWriter, hasID bool) int {
	e := h.schema.entity
	name := e.Plural
	if hasID {
		name = e.Singular
	}
	httputil.JSON(w, http.StatusOK, map[string]any{
		"name":   name,
		"fields": h.schema.Describe(),
	})
	return http.StatusOK
}

// embedParents attaches the target record of every belongs-to relation,
// fetching each target entity once for all recs.
func (h *Handler) embedParents(r *http.Request, store Store, recs []catalog.Record) error {
	if len(recs) == 0 {
		return nil
	}
	for _, rel := range h.schema.entity.Relations() {
		if rel.Kind() != catalog.BelongsTo {
			continue
		}
		target, ok := h.schema.related[rel.Relation.Target]
		if !ok {
			continue
		}

		var keys []any
		for _, rec := range recs {
			if k := rec[rel.Relation.Column]; k != nil {
				keys = append(keys, k)
			}
		}
		parents := make(map[any]catalog.Record)
		if len(keys) > 0 {
			rows, err := store.GetMany(r.Context(), target.entity, keys)
			if err != nil {
				return fmt.Errorf("load %s: %w", rel.Name, err)
			}
			pk := target.entity.PrimaryKey().Name
			for _, row := range rows {
				parents[row[pk]] = row
			}
		}
		for _, rec := range recs {
			if parent, ok := parents[rec[rel.Relation.Column]]; ok {
				rec[rel.Name] = parent
			} else {
				rec[rel.Name] = nil
			}
		}
	}
	return nil
}

func (h *Handler) loadCollections(r *http.Request, store Store, rec catalog.Record, id any) error {
	for _, rel := range h.schema.entity.Relations() {
		if !rel.Kind().IsCollection() {
			continue
		}
		target, ok := h.schema.related[rel.Relation.Target]
		if !ok {
			continue
		}
		keys, err := store.RelatedKeys(r.Context(), h.schema.entity, rel, target.entity, id)
		if err != nil {
			return fmt.Errorf("load %s: %w", rel.Name, err)
		}
		rec[rel.Name] = keys
	}
	return nil
}

func (h *Handler) setCollections(r *http.Request, store Store, rec catalog.Record, id any) error {
	for _, rel := range h.schema.entity.Relations() {
		if !rel.Kind().IsCollection() {
			continue
		}
		keys, ok := rec[rel.Name].([]any)
		if !ok {
			continue
		}
		target, ok := h.schema.related[rel.Relation.Target]
		if !ok {
			continue
		}
		if err := store.SetRelated(r.Context(), h.schema.entity, rel, target.entity, id, keys); err != nil {
			return &PersistenceError{Err: err}
		}
	}
	return nil
}

func (h *Handler) logError(op string, status int, err error) {
	fields := []zap.Field{
		zap.String("resource", h.schema.entity.Name),
		zap.String("operation", op),
		zap.Int("status", status),
	}
	var pe *PersistenceError
	switch {
	case errors.As(err, &pe):
		h.logger.Warn("persistence failure", append(fields, zap.String("reason", pe.Reason()), zap.Error(pe.Err))...)
	case status >= http.StatusInternalServerError:
		h.logger.Error("request failed", append(fields, zap.Error(err))...)
	default:
		h.logger.Debug("request rejected", append(fields, zap.Error(err))...)
	}
}

// columnsOf keeps the column-backed fields of rec.
func columnsOf(e *catalog.Entity, rec catalog.Record) catalog.Record {
	out := make(catalog.Record, len(rec))
	for _, f := range e.Columns() {
		if v, ok := rec[f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out
}

func decodeBody(body io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON body", errBadRequest)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: JSON body must be an object", errBadRequest)
	}
	return raw, nil
}

func writeJSON(w http.ResponseWriter, status int, data any, compact bool) {
	if compact {
		httputil.JSON(w, status, data)
		return
	}
	httputil.JSONIndent(w, status, data, "    ")
}
