// Package config holds the process-level configuration for the
// database's server front ends (gRPC, REST) and the build-time index
// parameters, loaded from defaults and overridden by environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all server configuration.
type Config struct {
	Server    ServerConfig
	Index     IndexConfig
	Storage   StorageConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	REST      RESTConfig
}

// ServerConfig holds gRPC/REST server configuration.
type ServerConfig struct {
	Host            string        // Server host (default: "0.0.0.0")
	Port            int           // gRPC port (default: 50051)
	MaxConnections  int           // Max concurrent connections
	RequestTimeout  time.Duration // Request timeout
	ShutdownTimeout time.Duration // Graceful shutdown timeout
	EnableTLS       bool          // Enable TLS
	CertFile        string        // TLS certificate file
	KeyFile         string        // TLS key file
}

// IndexConfig holds the build-time IVFPQ parameters: P coarse
// partitions, D product-quantization subspaces, C codes per subspace,
// and the fixed vector dimension the database was built for.
type IndexConfig struct {
	VectorSize    int // M: dimension of every stored vector
	NumPartitions int // P: coarse-quantizer centroids
	NumDivisions  int // D: product-quantization subspaces
	NumCodes      int // C: centroids trained per subspace
	DefaultNProbe int // default partitions examined per query
}

// StorageConfig holds the on-disk content-addressed store location.
type StorageConfig struct {
	DataDir            string // root of the content-addressed file tree
	CompressPartitions bool   // zlib-compress partition/attribute-log files
	ManifestHash       string // content hash of the Database manifest to serve
}

// AuthConfig holds JWT authentication configuration for the API front
// ends.
type AuthConfig struct {
	Enabled   bool
	JWTSecret string
}

// RateLimitConfig holds request rate limiting configuration for the
// API front ends.
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerSec float64
	Burst          int
}

// RESTConfig holds configuration for the optional JSON gateway that
// sits in front of the same read-only Database the gRPC server
// serves.
type RESTConfig struct {
	Enabled     bool
	Host        string
	Port        int
	CORSEnabled bool
	CORSOrigins []string
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            50051,
			MaxConnections:  1000,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			EnableTLS:       false,
		},
		Index: IndexConfig{
			VectorSize:    768,
			NumPartitions: 256,
			NumDivisions:  8,
			NumCodes:      256,
			DefaultNProbe: 8,
		},
		Storage: StorageConfig{
			DataDir:            "./data",
			CompressPartitions: true,
		},
		Auth: AuthConfig{
			Enabled:   false,
			JWTSecret: "",
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerSec: 100,
			Burst:          200,
		},
		REST: RESTConfig{
			Enabled:     false,
			Host:        "0.0.0.0",
			Port:        8080,
			CORSEnabled: false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables, falling
// back to Default() for anything unset or unparsable.
func LoadFromEnv() *Config {
	cfg := Default()

	if host := os.Getenv("VECTORDB_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("VECTORDB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if maxConn := os.Getenv("VECTORDB_MAX_CONNECTIONS"); maxConn != "" {
		if mc, err := strconv.Atoi(maxConn); err == nil {
			cfg.Server.MaxConnections = mc
		}
	}
	if timeout := os.Getenv("VECTORDB_REQUEST_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			cfg.Server.RequestTimeout = t
		}
	}
	if enableTLS := os.Getenv("VECTORDB_ENABLE_TLS"); enableTLS == "true" {
		cfg.Server.EnableTLS = true
		cfg.Server.CertFile = os.Getenv("VECTORDB_TLS_CERT")
		cfg.Server.KeyFile = os.Getenv("VECTORDB_TLS_KEY")
	}

	if vs := os.Getenv("VECTORDB_VECTOR_SIZE"); vs != "" {
		if v, err := strconv.Atoi(vs); err == nil {
			cfg.Index.VectorSize = v
		}
	}
	if p := os.Getenv("VECTORDB_NUM_PARTITIONS"); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			cfg.Index.NumPartitions = v
		}
	}
	if d := os.Getenv("VECTORDB_NUM_DIVISIONS"); d != "" {
		if v, err := strconv.Atoi(d); err == nil {
			cfg.Index.NumDivisions = v
		}
	}
	if c := os.Getenv("VECTORDB_NUM_CODES"); c != "" {
		if v, err := strconv.Atoi(c); err == nil {
			cfg.Index.NumCodes = v
		}
	}
	if np := os.Getenv("VECTORDB_DEFAULT_NPROBE"); np != "" {
		if v, err := strconv.Atoi(np); err == nil {
			cfg.Index.DefaultNProbe = v
		}
	}

	if dataDir := os.Getenv("VECTORDB_DATA_DIR"); dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if compress := os.Getenv("VECTORDB_COMPRESS_PARTITIONS"); compress == "false" {
		cfg.Storage.CompressPartitions = false
	}
	if hash := os.Getenv("VECTORDB_MANIFEST_HASH"); hash != "" {
		cfg.Storage.ManifestHash = hash
	}

	if authEnabled := os.Getenv("VECTORDB_AUTH_ENABLED"); authEnabled == "true" {
		cfg.Auth.Enabled = true
		cfg.Auth.JWTSecret = os.Getenv("VECTORDB_JWT_SECRET")
	}

	if rlEnabled := os.Getenv("VECTORDB_RATE_LIMIT_ENABLED"); rlEnabled == "false" {
		cfg.RateLimit.Enabled = false
	}
	if rps := os.Getenv("VECTORDB_RATE_LIMIT_RPS"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.RateLimit.RequestsPerSec = v
		}
	}
	if burst := os.Getenv("VECTORDB_RATE_LIMIT_BURST"); burst != "" {
		if v, err := strconv.Atoi(burst); err == nil {
			cfg.RateLimit.Burst = v
		}
	}

	if restEnabled := os.Getenv("VECTORDB_REST_ENABLED"); restEnabled == "true" {
		cfg.REST.Enabled = true
	}
	if host := os.Getenv("VECTORDB_REST_HOST"); host != "" {
		cfg.REST.Host = host
	}
	if port := os.Getenv("VECTORDB_REST_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.REST.Port = p
		}
	}
	if cors := os.Getenv("VECTORDB_REST_CORS_ENABLED"); cors == "true" {
		cfg.REST.CORSEnabled = true
	}
	if origins := os.Getenv("VECTORDB_REST_CORS_ORIGINS"); origins != "" {
		cfg.REST.CORSOrigins = strings.Split(origins, ",")
	}

	return cfg
}

// Validate checks if the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid grpc port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.REST.Enabled && (c.REST.Port < 1 || c.REST.Port > 65535) {
		return fmt.Errorf("invalid rest port: %d (must be 1-65535)", c.REST.Port)
	}
	if c.Server.MaxConnections < 1 {
		return fmt.Errorf("invalid max connections: %d (must be > 0)", c.Server.MaxConnections)
	}
	if c.Server.EnableTLS {
		if c.Server.CertFile == "" || c.Server.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert or key file not specified")
		}
	}

	if c.Index.VectorSize < 1 {
		return fmt.Errorf("invalid vector size: %d (must be > 0)", c.Index.VectorSize)
	}
	if c.Index.NumPartitions < 1 {
		return fmt.Errorf("invalid num_partitions: %d (must be > 0)", c.Index.NumPartitions)
	}
	if c.Index.NumDivisions < 1 {
		return fmt.Errorf("invalid num_divisions: %d (must be > 0)", c.Index.NumDivisions)
	}
	if c.Index.VectorSize%c.Index.NumDivisions != 0 {
		return fmt.Errorf("vector_size %d must be divisible by num_divisions %d", c.Index.VectorSize, c.Index.NumDivisions)
	}
	if c.Index.NumCodes < 1 {
		return fmt.Errorf("invalid num_codes: %d (must be > 0)", c.Index.NumCodes)
	}
	if c.Index.DefaultNProbe < 1 || c.Index.DefaultNProbe > c.Index.NumPartitions {
		return fmt.Errorf("default_nprobe %d must be in [1, num_partitions=%d]", c.Index.DefaultNProbe, c.Index.NumPartitions)
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("data directory not specified")
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth enabled but no JWT secret specified")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSec <= 0 {
		return fmt.Errorf("invalid rate limit requests per second: %v (must be > 0)", c.RateLimit.RequestsPerSec)
	}

	return nil
}

// Address returns the gRPC server address (host:port).
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Address returns the REST gateway's address (host:port).
func (c *RESTConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
