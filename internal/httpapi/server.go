// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package httpapi serves the passgate JSON API.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth"
)

// Banner is the body of GET /.
const Banner = "Hello from the passgate OTP auth backend!"

// AuthService is the auth behavior the handlers call.
type AuthService interface {
	Signup(ctx context.Context, name, email, password string) (*auth.User, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	RequestReset(ctx context.Context, email string) error
	VerifyReset(ctx context.Context, email, code, newPassword string) error
	CurrentUser(ctx context.Context, userID string) (*auth.User, error)
}

// Recorder receives request metrics. *observability.Metrics implements it.
type Recorder interface {
	RecordAuth(operation, outcome string)
	ObserveHTTP(route string, status int, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuth(string, string)            {}
func (nopRecorder) ObserveHTTP(string, int, time.Duration) {}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithCORSOrigins sets the allowed browser origins as glob patterns.
func WithCORSOrigins(patterns ...string) Option {
	return func(s *Server) { s.corsPatterns = patterns }
}

// Server routes API requests to an AuthService.
type Server struct {
	svc          AuthService
	tokens       TokenVerifier
	logger       *slog.Logger
	recorder     Recorder
	corsPatterns []string
	origins      originMatcher
	mux          *http.ServeMux
}

// NewServer creates a Server. svc and tokens are required.
func NewServer(svc AuthService, tokens TokenVerifier, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, oops.Code("HTTPAPI_INVALID_DEPENDENCY").Errorf("auth service is required")
	}
	if tokens == nil {
		return nil, oops.Code("HTTPAPI_INVALID_DEPENDENCY").Errorf("token verifier is required")
	}

	s := &Server{
		svc:      svc,
		tokens:   tokens,
		logger:   slog.Default(),
		recorder: nopRecorder{},
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("HTTPAPI_INVALID_DEPENDENCY").Errorf("logger cannot be nil")
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}

	origins, err := compileOrigins(s.corsPatterns)
	if err != nil {
		return nil, err
	}
	s.origins = origins

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleBanner)
	s.mux.HandleFunc("POST /api/signup", s.handleSignup)
	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/forgot-password", s.handleForgotPassword)
	s.mux.HandleFunc("POST /api/verify-otp", s.handleVerifyOTP)
	s.mux.Handle("GET /api/me", RequireToken(s.tokens)(http.HandlerFunc(s.handleMe)))
}

// Handler returns the API with its middleware applied.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.origins.cors(h)
	h = s.recoverPanics(h)
	h = s.observe(h)
	h = requestID(h)
	return h
}

// NewHTTPServer wraps h in an http.Server with the API timeouts.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
