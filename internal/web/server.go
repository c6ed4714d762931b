// Package web serves the dropzone page and the HTTP entry points of the
// ingestion pipeline: drops, pastes, programmatic uploads, a live event
// stream of results and notices, and the drag relay websocket.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/dropzone/internal/config"
	"github.com/JonMunkholm/dropzone/internal/core"
	"github.com/JonMunkholm/dropzone/internal/dropzone"
	webmw "github.com/JonMunkholm/dropzone/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Config   *config.Config
	Pipeline *core.Pipeline
	Batch    *core.Batch
	Stream   *core.ResultStream
	Limiter  *core.UploadLimiter
	Gatherer prometheus.Gatherer // nil disables /metrics
}

// Server is the HTTP server for the dropzone.
type Server struct {
	cfg      *config.Config
	pipeline *core.Pipeline
	batch    *core.Batch
	paste    *dropzone.PasteHandler
	sessions *dropzone.Sessions
	stream   *core.ResultStream
	limiter  *core.UploadLimiter
	gatherer prometheus.Gatherer

	router   *chi.Mux
	server   *http.Server
	upgrader websocket.Upgrader
	limits   *rateLimiter

	mu       sync.Mutex
	shutdown bool
	closing  chan struct{} // closed when Shutdown starts; ends SSE streams
}

// NewServer creates a Server and registers its routes.
func NewServer(deps Deps) *Server {
	s := &Server{
		cfg:      deps.Config,
		pipeline: deps.Pipeline,
		batch:    deps.Batch,
		paste:    dropzone.NewPasteHandler(deps.Pipeline),
		stream:   deps.Stream,
		limiter:  deps.Limiter,
		gatherer: deps.Gatherer,
		router:   chi.NewRouter(),
		closing:  make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.sessions = dropzone.NewSessions(deps.Batch, func(id string) dropzone.Overlay {
		return dropzone.OverlayFuncs{
			OnShow: func() { slog.Debug("overlay shown", "session", id) },
			OnHide: func() { slog.Debug("overlay hidden", "session", id) },
		}
	})
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.cfg.Server.TrustedProxies))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	if s.cfg.Server.RateLimit > 0 {
		s.limits = newRateLimiter(s.cfg.Server.RateLimit, time.Minute)
		s.router.Use(s.limits.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleIndex)

	// Long-lived connections; no request timeout.
	s.router.Get("/ws/drag", s.handleDragSocket)
	s.router.Get("/api/events", s.handleEvents)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

		r.Post("/api/drop", s.handleDrop)
		r.Post("/api/files", s.handleFiles)
		r.Post("/api/paste", s.handlePaste)
		r.Get("/api/status", s.handleStatus)
	})

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Start begins listening for HTTP requests. It returns nil after Shutdown.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout, // 0 keeps SSE and websockets open
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	srv := s.server
	s.mu.Unlock()

	slog.Info("starting server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown ends SSE streams, stops accepting requests and waits for
// in-flight ones, then closes the event stream and waits for uploads to
// drain. Every wait is bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	close(s.closing)
	srv := s.server
	s.mu.Unlock()

	if s.limits != nil {
		s.limits.stop()
	}

	// SSE handlers return on closing, so srv.Shutdown only waits for
	// requests that are still ingesting. Their results reach the stream
	// before it closes.
	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.stream.Close()

	if s.limiter != nil {
		if err := s.limiter.WaitForDrain(ctx); err != nil {
			slog.Warn("uploads still in flight at shutdown", "active", s.limiter.ActiveCount())
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		// The page script is inline; results may carry data: URLs.
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self' ws: wss:")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// rateLimiter is a fixed-window request limiter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	done     chan struct{}
	once     sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// cleanup drops visitors idle for two windows.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
		}
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastReset) > rl.window*2 {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}

// allow consumes a token for ip if one is left in the current window.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists || time.Since(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: time.Now()}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r.RemoteAddr)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, r, http.StatusTooManyRequests, "RATE001", "Too many requests", "Please wait a minute and try again")
			return
		}
		next.ServeHTTP(w, r)
	})
}
