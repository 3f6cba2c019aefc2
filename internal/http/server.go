package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"duoaccount/internal/core"
	"duoaccount/internal/ledger"
	"duoaccount/internal/log"
	"duoaccount/internal/middleware/ratelimit"
	"duoaccount/internal/middleware/security"
	"duoaccount/internal/middleware/trace"
	"duoaccount/internal/settings"
)

// Ledger is the data-access collaborator the API drives.
type Ledger interface {
	Refresh(ctx context.Context) error
	Snapshot() []core.Expense
	Status() ledger.Status
	Save(ctx context.Context, e core.Expense) (core.Expense, error)
	Delete(ctx context.Context, id string) error
	Summaries(w core.MonthWindow) (ledger.Summaries, error)
	Settlement(now time.Time) (core.Expense, bool)
	Settle(ctx context.Context) (core.Expense, error)
	Export(settings any) ledger.Backup
	Import(ctx context.Context, records []core.Expense) error
	PushLocal(ctx context.Context) (int, error)
	DiscardImport(ctx context.Context) error
}

// Settings is the pair configuration and PIN gate.
type Settings interface {
	Get() settings.Settings
	IsLocked() bool
	SetDuoID(id string) error
	SetPIN(pin string) error
	Lock() error
	Unlock(pin string) error
}

// Pinger reports whether the remote store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server

	ledger   Ledger
	settings Settings
	store    Pinger
	realtime http.Handler
	logger   *log.Logger
	now      func() time.Time

	rateLimit   int
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

type Option func(*Server)

// WithRealtime mounts the websocket hub on /ws.
func WithRealtime(h http.Handler) Option { return func(s *Server) { s.realtime = h } }
func WithLogger(l *log.Logger) Option    { return func(s *Server) { s.logger = l } }
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithRateLimit sets the number of writes per minute allowed per client.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) { s.rateLimit = perMinute }
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, l Ledger, st Settings, store Pinger, opts ...Option) *Server {
	s := &Server{
		ledger:    l,
		settings:  st,
		store:     store,
		logger:    log.Discard(),
		now:       time.Now,
		rateLimit: ratelimit.DefaultConfig().RequestsPerMinute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentHTTP)

	s.detector = security.NewDetector(s.logger)
	s.tracer = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: s.rateLimit})
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/breakdown", s.handleBreakdown)
	mux.HandleFunc("GET /api/settlement", s.handleSettlement)
	mux.HandleFunc("POST /api/settle", s.handleSettle)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handleUpdateSettings)
	mux.HandleFunc("POST /api/lock", s.handleLock)
	mux.HandleFunc("POST /api/unlock", s.handleUnlock)

	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("DELETE /api/import", s.handleDiscardImport)
	mux.HandleFunc("POST /api/push", s.handlePush)

	if s.realtime != nil {
		mux.Handle("GET /ws", s.realtime)
	}

	var h http.Handler = mux
	h = s.lockGate(h)
	h = s.limitWrites(h)
	h = headers.Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// lockGate refuses every API call except unlock while the ledger is locked.
func (s *Server) lockGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") && r.URL.Path != "/api/unlock" && s.settings.IsLocked() {
			LockedError().Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitWrites applies the per-client rate limit to non-GET requests.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
}

// Shutdown stops the rate limiter and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "store unavailable").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]any{"status": "ready", "online": s.ledger.Status().Online}).Write(w)
}
