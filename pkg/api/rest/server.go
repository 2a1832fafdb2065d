// Package rest implements a small JSON gateway in front of the same
// read-only Database the gRPC server serves. It intentionally talks to
// the Database handle directly rather than dialing the gRPC server as
// a client: there is no generated client stub in this module (the
// protoc toolchain is out of scope), and a same-process handle avoids
// a redundant network hop for what is, in the end, the same read path.
package rest

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/api/rest/middleware"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/ivfdb"
)

// Config holds the REST server configuration.
type Config struct {
	Host        string
	Port        int
	CORSEnabled bool
	CORSOrigins []string
	Auth        middleware.AuthConfig
	RateLimit   middleware.RateLimitConfig
}

// Server is the REST API server.
type Server struct {
	config     Config
	handler    *Handler
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a new REST API server fronting db.
func NewServer(config Config, db *ivfdb.Database) (*Server, error) {
	server := &Server{
		config:  config,
		handler: NewHandler(db),
		mux:     http.NewServeMux(),
	}
	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      server.withMiddleware(server.mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/v1/databases/", s.routeDatabases)
}

// routeDatabases dispatches /v1/databases/{id}/query and
// /v1/databases/{id}/attributes/{vector_id}.
func (s *Server) routeDatabases(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/databases/")
	id, rest, ok := strings.Cut(path, "/")
	if !ok {
		writeError(w, "expected /v1/databases/{id}/...", http.StatusBadRequest)
		return
	}

	switch {
	case rest == "query":
		s.handler.Query(w, r, id)
	case strings.HasPrefix(rest, "attributes/"):
		vectorID := strings.TrimPrefix(rest, "attributes/")
		s.handler.GetAttribute(w, r, id, vectorID)
	default:
		http.NotFound(w, r)
	}
}

// withMiddleware wraps the handler with auth, rate limiting, CORS (when
// enabled) and logging, innermost to outermost: a request passes
// logging, CORS and the rate limiter before auth. The gRPC interceptor
// chain runs auth before its rate limiter.
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	handler = middleware.AuthMiddleware(s.config.Auth)(handler)
	rateLimiter := middleware.NewRateLimiter(s.config.RateLimit)
	handler = middleware.RateLimitMiddleware(rateLimiter)(handler)
	if s.config.CORSEnabled {
		handler = corsMiddleware(s.config.CORSOrigins)(handler)
	}
	handler = loggingMiddleware(handler)
	return handler
}

// Start starts the REST API server.
func (s *Server) Start() error {
	log.Printf("Starting REST API server on %s:%d", s.config.Host, s.config.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	log.Println("Shutting down REST API server...")
	return s.httpServer.Shutdown(ctx)
}

// loggingMiddleware logs every HTTP request.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		log.Printf("%s %s %d %v", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// corsMiddleware adds CORS headers.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				allowed = true
				origin = "*"
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
