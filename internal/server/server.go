package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"movies-api/internal/api"
	"movies-api/internal/auth"
	"movies-api/internal/observability/logging"
	"movies-api/internal/observability/metrics"
	"movies-api/internal/serverutil"
)

type Config struct {
	Addr            string
	TLS             serverutil.TLSConfig
	RateLimit       RateLimitConfig
	CORS            CORSConfig
	Security        SecurityConfig
	TrustedProxies  []string
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
	AuditLogger     *slog.Logger
	Metrics         *metrics.Recorder
	// OnListen receives the bound address once the listener is open.
	OnListen func(net.Addr)
}

type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	rateLimiter     *rateLimiter
	tls             serverutil.TLSConfig
	shutdownTimeout time.Duration
	onListen        func(net.Addr)
}

func New(handler *api.Handler, cfg Config) (*Server, error) {
	if handler == nil {
		return nil, errors.New("api handler is required")
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	resolver, err := newClientIPResolver(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	cors, err := newCORSPolicy(cfg.CORS)
	if err != nil {
		return nil, err
	}
	rl, err := newRateLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	if rl.shared() && handler.RateLimiter == nil {
		handler.RateLimiter = rl
	}

	router := newRouter(handler, recorder, logger)

	handlerChain := http.Handler(router)
	handlerChain = auditMiddleware(cfg.AuditLogger, resolver, handlerChain)
	handlerChain = authMiddleware(handler, logger, handlerChain)
	handlerChain = rateLimitMiddleware(rl, resolver, logger, handlerChain)
	handlerChain = metrics.HTTPMiddleware(recorder, handlerChain)
	handlerChain = corsMiddleware(cors, logger, handlerChain)
	handlerChain = securityHeadersMiddleware(cfg.Security, handlerChain)
	handlerChain = logging.RequestLogger(logging.RequestLoggerConfig{
		Logger: logger,
		Fields: func(r *http.Request) []any {
			ip, source := resolver.resolve(r)
			return []any{"remote_ip", ip, "ip_source", source}
		},
	})(handlerChain)
	handlerChain = requestIDMiddleware(logger, handlerChain)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlerChain,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	srv := &Server{
		httpServer:  httpServer,
		logger:      logger,
		rateLimiter: rl,
		tls: serverutil.TLSConfig{
			CertFile: strings.TrimSpace(cfg.TLS.CertFile),
			KeyFile:  strings.TrimSpace(cfg.TLS.KeyFile),
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		onListen:        cfg.OnListen,
	}

	if srv.tls.CertFile != "" && srv.tls.KeyFile != "" {
		httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return srv, nil
}

func newRouter(handler *api.Handler, recorder *metrics.Recorder, logger *slog.Logger) *httprouter.Router {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/movies", handler.ListMovies)
	router.HandlerFunc(http.MethodPost, "/movies", handler.CreateMovie)
	router.HandlerFunc(http.MethodGet, "/movies/:"+api.MovieIDParam, handler.GetMovie)
	router.HandlerFunc(http.MethodDelete, "/movies/:"+api.MovieIDParam, handler.DeleteMovie)
	router.HandlerFunc(http.MethodPost, "/login", handler.Login)
	router.HandlerFunc(http.MethodGet, "/session", handler.Session)
	router.HandlerFunc(http.MethodDelete, "/session", handler.Session)
	router.HandlerFunc(http.MethodGet, "/healthz", handler.Health)
	router.Handler(http.MethodGet, "/metrics", recorder.Handler())

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMiddlewareError(w, http.StatusNotFound, "the requested resource could not be found")
	})
	// The router sets Allow before delegating here.
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMiddlewareError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
	})
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, recovered interface{}) {
		loggerWithRequestContext(r.Context(), logger).Error("handler panic", "panic", recovered, "path", r.URL.Path)
		w.Header().Set("Connection", "close")
		writeMiddlewareError(w, http.StatusInternalServerError, "internal server error")
	}
	return router
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully and releases
// the shared rate limiter store.
func (s *Server) Run(ctx context.Context) error {
	if s.httpServer == nil {
		return fmt.Errorf("http server is not configured")
	}
	defer func() {
		if err := s.rateLimiter.Close(); err != nil {
			s.logger.Warn("close rate limiter store", "error", err)
		}
	}()
	return serverutil.Run(ctx, serverutil.Config{
		Server:          s.httpServer,
		TLS:             s.tls,
		ShutdownTimeout: s.shutdownTimeout,
		Logger:          s.logger,
		OnListen:        s.onListen,
	})
}

func rateLimitMiddleware(rl *rateLimiter, resolver *clientIPResolver, logger *slog.Logger, next http.Handler) http.Handler {
	if rl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.AllowRequest() {
			w.Header().Set("Retry-After", "1")
			writeMiddlewareError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		if r.Method == http.MethodPost && r.URL.Path == "/login" {
			ip, _ := resolver.resolve(r)
			allowed, retryAfter, err := rl.AllowLogin(r.Context(), ip)
			if err != nil {
				if requestLogger := loggingWithRequest(logger, resolver, r); requestLogger != nil {
					requestLogger.Error("login rate limiter failure", "error", err)
				}
				writeMiddlewareError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
				return
			}
			if !allowed {
				if requestLogger := loggingWithRequest(logger, resolver, r); requestLogger != nil {
					requestLogger.Warn("login attempts throttled", "retry_after", retryAfter.String())
				}
				w.Header().Set("Retry-After", retryAfterSeconds(retryAfter))
				writeMiddlewareError(w, http.StatusTooManyRequests, "too many login attempts")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware resolves a presented session token so downstream logs and
// handlers see the subject. It never rejects a request; routes that need a
// session enforce it themselves.
func authMiddleware(handler *api.Handler, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := api.ExtractToken(r)
		if token == "" || handler.Guard == nil || skipAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		session, err := handler.Guard.RequireAuth(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthorized) {
				loggerWithRequestContext(r.Context(), logger).Warn("session lookup failed", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}
		ctx := api.ContextWithSession(r.Context(), session)
		ctx = logging.ContextWithSubject(ctx, session.Subject)
		if base := logging.LoggerFromContext(ctx); base != nil {
			ctx = logging.ContextWithLogger(ctx, base.With("subject", session.Subject))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func skipAuth(path string) bool {
	return path == "/healthz" || path == "/metrics" || path == "/login"
}

func auditMiddleware(logger *slog.Logger, resolver *clientIPResolver, next http.Handler) http.Handler {
	if logger == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := metrics.NewResponseRecorder(w)
		start := time.Now()
		next.ServeHTTP(recorder, r)
		if !shouldAudit(r) {
			return
		}
		ip, _ := resolver.resolve(r)
		logging.WithContext(r.Context(), logger).Info("audit",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_ip", ip,
		)
	})
}

func shouldAudit(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
}
