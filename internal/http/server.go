package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	applog "cadastro/internal/log"
	"cadastro/internal/middleware/ratelimit"
	"cadastro/internal/middleware/security"
	"cadastro/internal/middleware/trace"
	"cadastro/internal/services"
	"cadastro/internal/storage"
)

// Pinger reports whether the storage behind the service answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackupLister lists the snapshots written by the backup worker.
// storage.SQLiteStore implements it.
type BackupLister interface {
	RecentBackups(ctx context.Context, limit int) ([]storage.BackupEntry, error)
}

// Options tune the server. Zero values fall back to defaults.
type Options struct {
	RateLimitPerMinute int
	MaxUploadBytes     int64
	Logger             *applog.Logger
	Storage            Pinger
	// Backups is nil unless the sqlite backend keeps a backup log.
	Backups            BackupLister
}

const defaultMaxUploadBytes = 5 << 20

type Server struct {
	http.Server
	records   *services.RecordService
	storage   Pinger
	backups   BackupLister
	logger    *applog.Logger
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
	maxUpload int64

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, records *services.RecordService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Component: applog.ComponentHTTP})
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}

	detector := security.NewDetector()
	s := &Server{
		records:   records,
		storage:   opts.Storage,
		backups:   opts.Backups,
		logger:    opts.Logger,
		detector:  detector,
		tracer:    trace.NewMiddleware(opts.Logger, detector.ExtractClientIP),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		maxUpload: opts.MaxUploadBytes,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /records", s.handleListRecords)
	mux.HandleFunc("POST /records", s.handleCreateRecord)
	mux.HandleFunc("GET /records/{id}", s.handleGetRecord)
	mux.HandleFunc("PUT /records/{id}", s.handleUpdateRecord)
	mux.HandleFunc("DELETE /records/{id}", s.handleDeleteRecord)
	mux.HandleFunc("GET /records/{id}/history", s.handleRecordHistory)

	mux.HandleFunc("GET /stats", s.handleDashboard)
	mux.HandleFunc("GET /stats/monthly", s.handleMonthlySeries)

	mux.HandleFunc("GET /backup", s.handleBackup)
	mux.HandleFunc("GET /backups", s.handleBackupLog)
	mux.HandleFunc("POST /restore", s.handleRestore)
	mux.HandleFunc("GET /pending", s.handlePending)
	mux.HandleFunc("POST /pending/confirm", s.handleConfirm)
	mux.HandleFunc("POST /pending/cancel", s.handleCancel)

	mux.HandleFunc("GET /reports/csv", s.handleReportCSV)
	mux.HandleFunc("GET /reports/summary", s.handleReportSummary)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// middleware wraps h, outermost first: logger, tracing, security
// headers, scanner detection, rate limiting.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	return applog.Middleware(s.logger)(h)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).
		WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Muitas requisições. Tente novamente em instantes.").Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type readiness struct {
	Status        string `json:"status"`
	Records       int    `json:"records"`
	Requests      int64  `json:"requests"`
	RateLimited   int64  `json:"rateLimited"`
	ActiveClients int    `json:"activeClients"`
	Error         string `json:"error,omitempty"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.records.Loaded() {
		NewResponse().
			Status(http.StatusServiceUnavailable).
			JSON(readiness{Status: "loading", Error: msgNotLoaded}).
			Write(w)
		return
	}
	if s.storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.storage.Ping(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err.Error())
			NewResponse().
				Status(http.StatusServiceUnavailable).
				JSON(readiness{Status: "storage_unavailable", Error: err.Error()}).
				Write(w)
			return
		}
	}
	NewResponse().
		JSON(readiness{
			Status:   "ready",
			Records:  s.records.Count(),
			Requests:      s.tracer.GetMetrics().TotalRequests,
			RateLimited:   s.limiter.Rejected(),
			ActiveClients: s.limiter.ActiveClients(),
		}).
		Write(w)
}
