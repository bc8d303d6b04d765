package httpserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reelrate/reelrate/internal/config"
	"github.com/reelrate/reelrate/internal/ledger"
	"github.com/reelrate/reelrate/internal/metadata"
	"github.com/reelrate/reelrate/internal/ranking"
	"github.com/reelrate/reelrate/internal/recommend"
	"github.com/reelrate/reelrate/internal/repository"
	"github.com/reelrate/reelrate/internal/store"
)

// Server wires HTTP routing, middleware, and handlers around the rating
// core. It holds no business logic of its own.
type Server struct {
	cfg       config.Config
	store     *store.Store
	repo      *repository.Repository
	ledger    *ledger.Ledger
	ranking   *ranking.Engine
	recommend *recommend.Engine
	metadata  metadata.Client
	logger    *log.Logger
	router    chi.Router
	httpSrv   *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, st *store.Store, repo *repository.Repository, ldg *ledger.Ledger, metaClient metadata.Client, logger *log.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		cfg:       cfg,
		store:     st,
		repo:      repo,
		ledger:    ldg,
		ranking:   ranking.NewEngine(repo),
		recommend: recommend.NewEngine(repo, cfg.RecommendMaxLimit),
		metadata:  metaClient,
		logger:    logger,
		router:    r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router.Route("/titles", func(r chi.Router) {
		r.Get("/", s.handleSearchTitles)
		r.Post("/", s.handleCreateTitle)
		r.Get("/most-rated", s.handleMostRatedTitles)
		r.Get("/above-average", s.handleAboveAverageTitles)
		r.Get("/multi-role-people", s.handleMultiRolePeople)
		r.Route("/{titleID}", func(r chi.Router) {
			r.Get("/", s.handleTitleDetail)
			r.Get("/percentiles", s.handleTitlePercentiles)
			r.Get("/high-raters", s.handleHighRaters)
		})
	})

	s.router.Route("/users", func(r chi.Router) {
		r.Get("/", s.handleListUsers)
		r.Post("/", s.handleCreateUser)
		r.Route("/{userID}", func(r chi.Router) {
			r.Get("/history", s.handleRatingHistory)
			r.Get("/recommendations", s.handleRecommendations)
			r.Post("/ratings", s.handleSubmitRating)
			r.Post("/ratings/validated", s.handleSubmitRatingValidated)
		})
	})

	s.router.Route("/genres", func(r chi.Router) {
		r.Get("/", s.handleListGenres)
		r.Get("/top", s.handleTopGenres)
	})
}

// Start boots the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
