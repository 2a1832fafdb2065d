package grpc

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/config"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/ivfdb"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/observability"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/store"
)

// Server is a thin gRPC front end exposing Build, Query, and
// GetAttribute over a single Database handle. There is no
// Insert/Delete/Update RPC and no per-namespace index map, unlike a
// multi-tenant mutable index server: Build replaces the whole handle
// atomically once a new corpus finishes training, and every other RPC
// reads it.
type Server struct {
	config     *config.Config
	fs         store.FileSystem
	metrics    *observability.Metrics
	logger     *observability.Logger
	grpcServer *grpc.Server
	listener   net.Listener
	startTime  time.Time
	shutdownMu sync.Mutex
	isShutdown bool

	dbMu sync.RWMutex
	db   *ivfdb.Database
}

// NewServer creates a new gRPC server over an already-opened
// database. fs is the content-addressed store a later Build call
// persists new artifacts to.
func NewServer(cfg *config.Config, fs store.FileSystem, db *ivfdb.Database, metrics *observability.Metrics, logger *observability.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = observability.NewDefaultLogger()
	}
	return &Server{
		config:    cfg,
		fs:        fs,
		db:        db,
		metrics:   metrics,
		logger:    logger,
		startTime: time.Now(),
	}, nil
}

// database returns the currently active Database handle.
func (s *Server) database() *ivfdb.Database {
	s.dbMu.RLock()
	defer s.dbMu.RUnlock()
	return s.db
}

// setDatabase atomically replaces the active Database handle, the
// effect of a successful Build call.
func (s *Server) setDatabase(db *ivfdb.Database) {
	s.dbMu.Lock()
	s.db = db
	s.dbMu.Unlock()
}

// Start starts the gRPC server.
func (s *Server) Start() error {
	var opts []grpc.ServerOption

	if s.config.Server.EnableTLS {
		cert, err := tls.LoadX509KeyPair(s.config.Server.CertFile, s.config.Server.KeyFile)
		if err != nil {
			return fmt.Errorf("failed to load TLS certificates: %w", err)
		}
		tlsConfig := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsConfig)))
		log.Println("TLS enabled")
	}

	kaParams := keepalive.ServerParameters{
		MaxConnectionIdle: 15 * time.Second,
		MaxConnectionAge:  30 * time.Second,
		Time:              5 * time.Second,
		Timeout:           1 * time.Second,
	}
	opts = append(opts, grpc.KeepaliveParams(kaParams))
	opts = append(opts, grpc.MaxConcurrentStreams(uint32(s.config.Server.MaxConnections)))
	opts = append(opts, grpc.ChainUnaryInterceptor(
		metricsInterceptor(s.metrics),
		authInterceptor(s.config.Auth),
		rateLimitInterceptor(s.config.RateLimit),
	))

	s.grpcServer = grpc.NewServer(opts...)
	RegisterVectorDBServer(s.grpcServer, s)
	reflection.Register(s.grpcServer)

	addr := s.config.Server.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.logger.Infof("gRPC server listening on %s", addr)

	go func() {
		if err := s.grpcServer.Serve(listener); err != nil {
			s.logger.Errorf("gRPC server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()

	if s.isShutdown {
		return nil
	}
	s.logger.Info("Shutting down gRPC server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info("gRPC server stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("gRPC shutdown timeout exceeded, forcing stop")
		s.grpcServer.Stop()
	}

	s.isShutdown = true
	return nil
}

// Uptime returns server uptime.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// metricsInterceptor records request counts, durations, and error
// codes for every unary call.
func metricsInterceptor(m *observability.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if m == nil {
			return resp, err
		}
		status := "success"
		if err != nil {
			status = "error"
		}
		m.RecordRequest(info.FullMethod, status, time.Since(start))
		return resp, err
	}
}

// authInterceptor validates a JWT bearer token carried in the
// "authorization" gRPC metadata key, mirroring the REST middleware's
// JWT validation.
func authInterceptor(cfg config.AuthConfig) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !cfg.Enabled {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization metadata")
		}
		parts := strings.SplitN(values[0], " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return nil, status.Error(codes.Unauthenticated, "invalid authorization metadata format")
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			return nil, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
		}
		return handler(ctx, req)
	}
}

// rateLimitInterceptor applies a single process-wide token bucket to
// every unary call, the gRPC equivalent of the REST middleware's
// global rate limiter.
func rateLimitInterceptor(cfg config.RateLimitConfig) grpc.UnaryServerInterceptor {
	if !cfg.Enabled {
		return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
			return handler(ctx, req)
		}
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !limiter.Allow() {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}
