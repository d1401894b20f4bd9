// Package server exposes reconciliation over HTTP for adjuster tooling.
package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/robfig/cron/v3"

	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/evaluate"
	"github.com/ppiankov/factgate/internal/logging"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/pipeline"
	"github.com/ppiankov/factgate/internal/worker"
)

// ReportStore reads persisted reports
type ReportStore interface {
	Load(claimID string) (*model.ReconciliationReport, error)
	LoadAll(ctx context.Context) ([]*model.ReconciliationReport, error)
}

// ClaimLister enumerates claims that have extraction outputs
type ClaimLister interface {
	ListClaims(ctx context.Context) ([]string, error)
}

// Config holds the server's collaborators
type Config struct {
	Addr           string
	AllowedOrigins []string
	Schedule       string // cron expression for reconcile-all; empty disables
	Workers        int

	Reconciler worker.Reconciler
	Store      ReportStore
	Claims     ClaimLister
	Metrics    http.Handler // nil hides /metrics
}

// Server serves the reconciliation API
type Server struct {
	cfg    Config
	router chi.Router
	batch  *worker.BatchProcessor
	cron   *cron.Cron
}

// New creates a server and wires its routes
func New(cfg Config) (*Server, error) {
	if cfg.Reconciler == nil || cfg.Store == nil || cfg.Claims == nil {
		return nil, errors.NewConfigError("server", "reconciler, store and claim lister are required", nil)
	}
	s := &Server{
		cfg:   cfg,
		batch: worker.NewBatchProcessor(cfg.Reconciler, cfg.Workers),
	}
	if cfg.Schedule != "" {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(cfg.Schedule, s.scheduledRun); err != nil {
			return nil, errors.NewConfigError("server", fmt.Sprintf("invalid schedule %q", cfg.Schedule), err)
		}
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.health)
	if s.cfg.Metrics != nil {
		r.Handle("/metrics", s.cfg.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/summary", s.summary)
		r.Post("/reconcile", s.reconcileAll)
		r.Route("/claims/{claimID}", func(r chi.Router) {
			r.Post("/reconcile", s.reconcileClaim)
			r.Get("/report", s.report)
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cron != nil {
		s.cron.Start()
		defer func() { <-s.cron.Stop().Done() }()
	}

	errCh := make(chan error, 1)
	go func() {
		logging.FromContext(ctx).Info().Str("addr", s.cfg.Addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) scheduledRun() {
	ctx := context.Background()
	tally, err := s.ReconcileAll(ctx, pipeline.Options{})
	if err != nil {
		logging.FromContext(ctx).Error().Err(err).Msg("scheduled reconciliation failed")
		return
	}
	logging.FromContext(ctx).Info().Str("tally", tally.String()).Msg("scheduled reconciliation finished")
}

// ReconcileAll reconciles every known claim
func (s *Server) ReconcileAll(ctx context.Context, opts pipeline.Options) (pipeline.Tally, error) {
	ids, err := s.cfg.Claims.ListClaims(ctx)
	if err != nil {
		return pipeline.Tally{}, errors.Wrap(errors.KindProviderIO, "", "list claims", err)
	}
	return pipeline.Count(s.batch.ProcessClaims(ctx, ids, opts)), nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) reconcileClaim(w http.ResponseWriter, r *http.Request) {
	opts, err := optionsFromQuery(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	claimID, err := claimParam(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	result := s.cfg.Reconciler.ReconcileClaim(r.Context(), claimID, opts)
	if !result.Success {
		renderError(w, r, result.Error)
		return
	}
	render.JSON(w, r, result.Report)
}

func (s *Server) reconcileAll(w http.ResponseWriter, r *http.Request) {
	opts, err := optionsFromQuery(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	tally, err := s.ReconcileAll(r.Context(), opts)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]int{
		"total":  tally.Total(),
		"passed": tally.Passed,
		"warned": tally.Warned,
		"failed": tally.Failed,
		"errors": tally.Errors,
	})
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	claimID, err := claimParam(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	report, err := s.cfg.Store.Load(claimID)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	topN := 10
	if v := r.URL.Query().Get("top_n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			renderError(w, r, badRequest("top_n must be an integer, got %q", v))
			return
		}
		topN = n
	}

	reports, err := s.cfg.Store.LoadAll(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, evaluate.Aggregate(reports, topN))
}

// claimParam returns the decoded claim id; chi matches on the raw path
func claimParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "claimID")
	id, err := url.PathUnescape(raw)
	if err != nil {
		return "", badRequest("malformed claim id %q", raw)
	}
	return id, nil
}

func optionsFromQuery(r *http.Request) (pipeline.Options, error) {
	q := r.URL.Query()
	opts := pipeline.Options{
		RunID:  q.Get("run_id"),
		Policy: model.Policy(q.Get("policy")),
	}
	if v := q.Get("dry_run"); v != "" {
		dry, err := strconv.ParseBool(v)
		if err != nil {
			return opts, badRequest("dry_run must be a boolean, got %q", v)
		}
		opts.DryRun = dry
	}
	return opts, nil
}

// errorResponse is the JSON body of every non-2xx response
type errorResponse struct {
	Error string      `json:"error"`
	Kind  errors.Kind `json:"kind,omitempty"`
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, statusFor(err))
	render.JSON(w, r, errorResponse{Error: err.Error(), Kind: errors.KindOf(err)})
}

func statusFor(err error) int {
	if errors.IsNotFound(err) {
		return http.StatusNotFound
	}
	switch errors.KindOf(err) {
	case errors.KindInputDefect, errors.KindConfig:
		return http.StatusBadRequest
	case errors.KindUnsupportedPolicy:
		return http.StatusNotImplemented
	case errors.KindProviderIO:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func badRequest(format string, args ...any) error {
	return errors.Wrap(errors.KindInputDefect, "", "parse request", fmt.Errorf(format, args...))
}
