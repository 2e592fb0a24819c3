package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"campaignready/internal/auth"
	"campaignready/internal/domain"
	"campaignready/internal/scan"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxRequestBody  = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// HistoryFunc returns the most recent ledger rows for a domain.
type HistoryFunc func(ctx context.Context, domain string, limit int) ([]domain.ScanRecord, error)

// VerdictCountsFunc tallies ledger rows per verdict for a domain.
type VerdictCountsFunc func(ctx context.Context, domain string) (map[domain.RiskLevel]int64, error)

type Server struct {
	scans         *scan.Service
	tokens        *auth.TokenService
	gatherer      prometheus.Gatherer
	history       HistoryFunc
	verdicts      VerdictCountsFunc
	inboundDomain string
	tokenTTL      time.Duration
}

type Option func(*Server)

// WithGatherer exposes the registry on GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithHistory enables GET /api/history.
func WithHistory(fn HistoryFunc) Option {
	return func(s *Server) { s.history = fn }
}

// WithVerdictCounts adds per-verdict totals to GET /api/history.
func WithVerdictCounts(fn VerdictCountsFunc) Option {
	return func(s *Server) { s.verdicts = fn }
}

// WithInboundDomain adds a verify address to scan creation responses.
func WithInboundDomain(d string) Option {
	return func(s *Server) { s.inboundDomain = d }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) { s.tokenTTL = ttl }
}

func New(scans *scan.Service, tokens *auth.TokenService, opts ...Option) *Server {
	s := &Server{
		scans:    scans,
		tokens:   tokens,
		tokenTTL: auth.DefaultReportTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Routes builds the API handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/health", s.health)
	r.Get("/version", getVersion)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/scan", s.createScan)
		r.Get("/scan/{id}", s.getScanReport)
		r.Get("/scan/{id}/report.md", s.getScanMarkdown)
		r.Get("/scans", s.findScans)
		r.Get("/history", s.scanHistory)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, "Not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	log.Debug("Routes opened")
	return r
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting campaignready API on port :%d", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("Shutting down API server")
		return srv.Shutdown(shutdownCtx)
	}
}
