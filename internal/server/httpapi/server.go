// Package httpapi exposes the sync service over HTTP: a health probe on
// GET /sync and the merge endpoint on POST /sync.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/syncwire"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

const shutdownTimeout = 5 * time.Second

// Syncer is the merge engine surface the handlers need.
type Syncer interface {
	Merge(ctx context.Context, req *syncwire.SyncRequest) (*syncwire.SyncResponse, error)
}

type Server struct {
	addr     string
	syncKey  string
	ready    func() bool
	svc      Syncer
	logger   logging.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewServer(addr, syncKey string, ready func() bool, svc Syncer, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Server{
		addr:     addr,
		syncKey:  syncKey,
		ready:    ready,
		svc:      svc,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Router builds the request router.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(s.logger))

	r.HandleFunc("/sync", s.handleProbe).Methods(http.MethodGet)
	r.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.Info(ctx, "http server listening", "addr", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
