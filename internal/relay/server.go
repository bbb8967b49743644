// Package relay is the collaboration server: the /blueprints REST API over a
// store.Repository, the /ws web-socket bridge onto Redis pub/sub, and the
// point router that re-broadcasts points and emits polygons.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dyluth/blueprints/internal/store"
	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// DefaultPolygonThreshold is the number of relayed points that make up one
// polygon.
const DefaultPolygonThreshold = 4

// Options configures a Server.
type Options struct {
	// Redis carries every topic and the drawing lists.
	Redis *redis.Client

	// Repository backs the REST API.
	Repository store.Repository

	// PolygonThreshold defaults to DefaultPolygonThreshold.
	PolygonThreshold int

	// CheckOrigin decides which web-socket origins are accepted; nil
	// accepts all.
	CheckOrigin func(r *http.Request) bool
}

// Server serves the REST API, the web-socket bridge and the health check,
// and runs the point router.
type Server struct {
	rdb       *redis.Client
	repo      store.Repository
	threshold int
	upgrader  websocket.Upgrader
	router    *mux.Router
}

// New creates a server. Nothing runs until Handler is served and Route is
// called.
func New(opts Options) (*Server, error) {
	if opts.Redis == nil {
		return nil, errors.New("relay requires a Redis client")
	}
	if opts.Repository == nil {
		return nil, errors.New("relay requires a repository")
	}
	if opts.PolygonThreshold <= 0 {
		opts.PolygonThreshold = DefaultPolygonThreshold
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	s := &Server{
		rdb:       opts.Redis,
		repo:      opts.Repository,
		threshold: opts.PolygonThreshold,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler for every endpoint.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket)

	api := r.PathPrefix("/blueprints").Subrouter()
	api.HandleFunc("", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("", s.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/{author}", s.handleListByAuthor).Methods(http.MethodGet)
	api.HandleFunc("/{author}/{name}", s.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/{author}/{name}", s.handleUpdate).Methods(http.MethodPut)
	api.HandleFunc("/{author}/{name}", s.handleDelete).Methods(http.MethodDelete)
	return r
}

// ListenAndServe serves Handler on addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// bridges outlive Shutdown unless their request context ends with ctx
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		glog.Infof("[relay] listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve on %s: %w", addr, err)
	case <-ctx.Done():
	}

	glog.Infof("[relay] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
