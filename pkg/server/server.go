package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bumpsafe/bumpsafe/pkg/audit"
	"github.com/bumpsafe/bumpsafe/pkg/cache"
	"github.com/bumpsafe/bumpsafe/pkg/config"
	"github.com/bumpsafe/bumpsafe/pkg/models"
	"github.com/bumpsafe/bumpsafe/pkg/quota"
	"github.com/bumpsafe/bumpsafe/pkg/store"
)

// Reasoner is the external reasoning service as seen by the handlers.
type Reasoner interface {
	Assess(ctx context.Context, item string) (models.Assessment, error)
	AssessImage(ctx context.Context, imageB64 string) (models.Assessment, error)
}

// Server is the BumpSafe HTTP API.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	cache    *cache.Cache
	users    *quota.UserQuota
	trial    *quota.TrialStore
	reasoner Reasoner
	auditor  *audit.Logger
	router   chi.Router
}

// New creates a Server wired with all dependencies. cache and auditor
// may be nil when the corresponding feature is disabled.
func New(cfg *config.Config, st *store.Store, c *cache.Cache, users *quota.UserQuota, trial *quota.TrialStore, r Reasoner, a *audit.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		store:    st,
		cache:    c,
		users:    users,
		trial:    trial,
		reasoner: r,
		auditor:  a,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Post("/api/check", s.handleCheck)
	router.Get("/api/history", s.handleHistory)
	router.Get("/api/quota", s.handleQuota)
	router.Get("/healthz", s.handleHealth)

	s.router = router
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the API server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("bumpsafe listening on %s", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{"status": "ok"}
	if s.cache != nil {
		payload["cache"] = s.cache.Stats()
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"code":%q,"message":%q}}`, code, message)
}
