package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/edgeflare/restable/pkg/catalog"
	"github.com/edgeflare/restable/pkg/httputil"
	mw "github.com/edgeflare/restable/pkg/httputil/middleware"
	pg "github.com/edgeflare/restable/pkg/pgx"
	"github.com/edgeflare/restable/pkg/resource"
	"go.uber.org/zap"
)

type Server struct {
	router   *httputil.Router
	catalog  *catalog.Catalog
	handlers []*resource.Handler
	logger   *zap.Logger
	baseURL  string

	db          mw.TxBeginner
	dbSchema    string
	session     resource.SessionFunc
	cors        *mw.CORSOptions
	observe     resource.ObserveFunc
	pageSize    int
	maxPageSize int
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithBaseURL mounts every path under prefix, e.g. "/api".
func WithBaseURL(prefix string) Option {
	return func(s *Server) { s.baseURL = strings.TrimSuffix(prefix, "/") }
}

// WithSchema qualifies table names with the database schema name.
func WithSchema(name string) Option {
	return func(s *Server) { s.dbSchema = name }
}

func WithPageSize(size, max int) Option {
	return func(s *Server) {
		s.pageSize = size
		s.maxPageSize = max
	}
}

// WithCORS replaces the default CORS options.
func WithCORS(opts *mw.CORSOptions) Option {
	return func(s *Server) { s.cors = opts }
}

// WithObserver is told about every resource request, e.g. metrics.Observe.
func WithObserver(fn resource.ObserveFunc) Option {
	return func(s *Server) { s.observe = fn }
}

// WithSession replaces the Store of each request. The default binds a pgx
// Store to the request transaction.
func WithSession(fn resource.SessionFunc) Option {
	return func(s *Server) { s.session = fn }
}

// NewServer registers the collection and item routes of every entity in cat.
// Requests to entity routes run in a transaction begun on db.
func NewServer(db mw.TxBeginner, cat *catalog.Catalog, opts ...Option) *Server {
	s := &Server{
		catalog: cat,
		db:      db,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.session == nil {
		s.session = s.txSession
	}

	s.router = httputil.NewRouter(
		httputil.WithLogger(s.logger),
		httputil.WithServerOptions(func(srv *http.Server) {
			srv.ErrorLog = zap.NewStdLog(s.logger.Named("http"))
		}),
	)
	s.router.Use(
		mw.RequestID,
		mw.LoggerWithOptions(&mw.LoggerOptions{Logger: s.logger}),
		mw.CORSWithOptions(s.cors),
	)
	s.registerHandlers()
	return s
}

func (s *Server) txSession(r *http.Request) (resource.Store, error) {
	tx, err := httputil.Tx(r)
	if err != nil {
		return nil, err
	}
	return pg.NewStore(tx, s.dbSchema), nil
}

func (s *Server) registerHandlers() {
	api := s.router.Group(s.baseURL)
	api.Handle("GET /{$}", http.HandlerFunc(s.handleIndex))
	api.Handle("GET /healthz", http.HandlerFunc(s.handleHealth))

	resources := s.router.Group(s.baseURL)
	resources.Use(mw.Tx(s.db))

	schemas := resource.DeriveCatalog(s.catalog)
	handlerOpts := []resource.Option{
		resource.WithLogger(s.logger),
		resource.WithPageSize(s.pageSize, s.maxPageSize),
	}
	if s.observe != nil {
		handlerOpts = append(handlerOpts, resource.WithObserver(s.observe))
	}

	for _, e := range s.catalog.Entities() {
		h := resource.New(schemas[e.Name], s.session, handlerOpts...)
		s.handlers = append(s.handlers, h)

		collection := "/" + e.Path
		resources.Handle(collection, h)
		resources.Handle(collection+"/{$}", h)
		resources.Handle(collection+"/{"+resource.IDPathValue+"}", h)
	}

	api.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	}))
}

// handleIndex lists the collection path of every entity by name.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	paths := make(map[string]string, len(s.handlers))
	for _, e := range s.catalog.Entities() {
		paths[e.Name] = s.baseURL + "/" + e.Path + "/"
	}
	httputil.JSON(w, http.StatusOK, paths)
}

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// handleHealth answers 200 with the request id while the database is
// reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.db.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			mw.LoggerFromContext(r.Context()).Warn("health check", zap.Error(err))
			httputil.ErrorWithDescription(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable), "Database unavailable")
			return
		}
	}
	reqID, _ := r.Context().Value(httputil.RequestIDCtxKey).(string)
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok", "request_id": reqID})
}

// Handler returns the server's routes for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router.Handler()
}

func (s *Server) Start(addr string) error {
	return s.router.ListenAndServe(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.router.Shutdown(ctx)
}
