// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	memexerr "github.com/memex-dev/memex/pkg/errors"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// TrustedProxies lists CIDR ranges allowed to set forwarded-for
	// headers. Empty means the direct peer address is always used.
	TrustedProxies []string

	RateLimit RateLimitConfig
	Services  *Services
}

// Server wraps a chi router with a huma API and an HTTP server.
type Server struct {
	router        chi.Router
	api           huma.API
	cfg           Config
	services      *Services
	searchLimiter *searchRateLimiter
	done          chan struct{}
	closeOnce     sync.Once
}

// New creates a Server with routing, CORS, request logging, rate
// limiting, and all REST routes registered.
func New(cfg Config) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, memexerr.New(memexerr.CodeConfigValidateInvalidValue, "listen address is required")
	}
	if cfg.Services == nil {
		return nil, memexerr.New(memexerr.CodeConfigValidateInvalidValue, "services are required")
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	if len(cfg.TrustedProxies) > 0 {
		trusted, err := parseTrustedProxies(cfg.TrustedProxies)
		if err != nil {
			return nil, err
		}
		r.Use(trustedProxyRealIP(trusted))
	} else {
		r.Use(middleware.RealIP)
	}
	r.Use(clientIPContextMiddleware)
	r.Use(requestLogMiddleware)
	r.Use(corsMiddleware(cfg.CORSOrigins))

	done := make(chan struct{})
	limiter, err := newSearchRateLimiter(cfg.RateLimit, done)
	if err != nil {
		close(done)
		return nil, err
	}

	humaConfig := huma.DefaultConfig("Memex", "0.1.0")
	humaConfig.Info.Description = "Semantic meme image retrieval API"
	api := humachi.New(r, humaConfig)

	srv := &Server{
		router:        r,
		api:           api,
		cfg:           cfg,
		services:      cfg.Services,
		searchLimiter: limiter,
		done:          done,
	}
	srv.registerRoutes()

	return srv, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API for registering additional operations.
func (s *Server) API() huma.API {
	return s.api
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return memexerr.Wrap(err, memexerr.CodeServerStartFailure,
			"listening on "+s.cfg.ListenAddr)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return memexerr.Wrap(err, memexerr.CodeServerShutdownFailure, "shutting down")
	}

	return <-errCh
}

// Close stops background goroutines (rate limiter cleanup). Safe to call
// more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
