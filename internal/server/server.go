// Package server implements the document locker HTTP API used by the
// locker client: login and registration, file upload, listing, download
// and delete on top of a storage.Backend, plus /status and /metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/document-locker/locker/internal/config"
	"github.com/document-locker/locker/internal/constants"
	"github.com/document-locker/locker/internal/logging"
	"github.com/document-locker/locker/internal/models"
	"github.com/document-locker/locker/internal/ratelimit"
	"github.com/document-locker/locker/internal/storage"
	"github.com/document-locker/locker/internal/version"
)

// Options configures a Server.
type Options struct {
	Config *config.ServerConfig

	// Backend may be nil; file routes then answer 503.
	Backend storage.Backend

	Logger *logging.Logger

	// BcryptCost overrides bcrypt.DefaultCost. Tests use bcrypt.MinCost.
	BcryptCost int
}

// Server is the HTTP API.
type Server struct {
	cfg     *config.ServerConfig
	backend storage.Backend
	logger  *logging.Logger
	users   *userStore
	tokens  *tokenIssuer
	metrics *metrics
	router  chi.Router

	// limiter throttles /login and /register per client address; nil
	// when auth_rate_per_minute is 0.
	limiter *ratelimit.Store
}

// New builds the server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		opts.Config = config.NewServerConfig()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	tokens, generated, err := newTokenIssuer(opts.Config.JWTSecret)
	if err != nil {
		return nil, err
	}
	if generated {
		opts.Logger.Warn().Msg("No jwt_secret configured; using a random secret, tokens will not survive a restart")
	}

	s := &Server{
		cfg:     opts.Config,
		backend: opts.Backend,
		logger:  opts.Logger,
		users:   newUserStore(opts.BcryptCost),
		tokens:  tokens,
		metrics: newMetrics(),
	}
	if rate := opts.Config.AuthRatePerMinute; rate > 0 {
		s.limiter = ratelimit.NewStore(float64(rate)/60, constants.AuthRateBurst, constants.AuthLimiterIdleTTL)
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.metrics.instrument(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Accept"},
		MaxAge:         86400,
	}))

	r.With(s.throttle).Post("/login", s.handleLogin)
	r.With(s.throttle).Post("/register", s.handleRegister)
	r.Get("/status", s.handleStatus)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())
	r.With(s.requireToken).Get("/me", s.handleMe)

	r.Group(func(fr chi.Router) {
		if s.cfg.RequireAuth {
			fr.Use(s.requireToken)
		}
		fr.Get("/files", s.handleListFiles)
		fr.Post("/upload", s.handleUpload)
		fr.Get("/download/*", s.handleDownload)
		fr.Delete("/delete/*", s.handleDelete)
		fr.Get("/storage", s.handleStorage)
	})
	return r
}

// throttle answers 429 once a client address runs out of auth attempts.
// RealIP has already rewritten RemoteAddr when a proxy header is present.
func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ok, retryAfter := s.limiter.Allow(host)
		if !ok {
			s.metrics.authAttempts.WithLabelValues("throttled").Inc()
			s.logger.Warn().Str("client", host).Dur("retry_after", retryAfter).Msg("Auth attempt throttled")
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMode() string {
	switch {
	case s.cfg.RequireAuth:
		return "required"
	case s.cfg.DemoLogin:
		return "demo"
	default:
		return "registered"
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := models.StatusResponse{
		Status:   "Document Locker API is running",
		Backend:  "none",
		Version:  version.Version,
		AuthMode: s.authMode(),
	}
	if s.backend != nil {
		resp.Backend = s.backend.Name()
		resp.Bucket = s.backend.Location()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to constants.ServerShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: constants.ServerReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Str("auth", s.authMode()).Msg("locker-server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

