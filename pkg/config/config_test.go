package config

import (
	"os"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 50051 {
		t.Errorf("Expected port 50051, got %d", cfg.Server.Port)
	}
	if cfg.REST.Port != 8080 {
		t.Errorf("Expected rest port 8080, got %d", cfg.REST.Port)
	}
	if cfg.REST.Enabled {
		t.Error("Expected REST disabled by default")
	}
	if cfg.Server.MaxConnections != 1000 {
		t.Errorf("Expected max connections 1000, got %d", cfg.Server.MaxConnections)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("Expected request timeout 30s, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected shutdown timeout 10s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.EnableTLS {
		t.Error("Expected TLS disabled by default")
	}

	if cfg.Index.VectorSize != 768 {
		t.Errorf("Expected vector size 768, got %d", cfg.Index.VectorSize)
	}
	if cfg.Index.NumPartitions != 256 {
		t.Errorf("Expected num_partitions 256, got %d", cfg.Index.NumPartitions)
	}
	if cfg.Index.NumDivisions != 8 {
		t.Errorf("Expected num_divisions 8, got %d", cfg.Index.NumDivisions)
	}
	if cfg.Index.NumCodes != 256 {
		t.Errorf("Expected num_codes 256, got %d", cfg.Index.NumCodes)
	}
	if cfg.Index.DefaultNProbe != 8 {
		t.Errorf("Expected default_nprobe 8, got %d", cfg.Index.DefaultNProbe)
	}

	if cfg.Storage.DataDir != "./data" {
		t.Errorf("Expected data dir ./data, got %s", cfg.Storage.DataDir)
	}
	if !cfg.Storage.CompressPartitions {
		t.Error("Expected partition compression enabled by default")
	}

	if cfg.Auth.Enabled {
		t.Error("Expected auth disabled by default")
	}

	if !cfg.RateLimit.Enabled {
		t.Error("Expected rate limit enabled by default")
	}
	if cfg.RateLimit.RequestsPerSec != 100 {
		t.Errorf("Expected rate limit 100rps, got %v", cfg.RateLimit.RequestsPerSec)
	}
	if cfg.RateLimit.Burst != 200 {
		t.Errorf("Expected rate limit burst 200, got %d", cfg.RateLimit.Burst)
	}
}

func TestLoadFromEnv(t *testing.T) {
	envVars := []string{
		"VECTORDB_HOST", "VECTORDB_PORT", "VECTORDB_MAX_CONNECTIONS",
		"VECTORDB_REQUEST_TIMEOUT", "VECTORDB_ENABLE_TLS",
		"VECTORDB_VECTOR_SIZE", "VECTORDB_NUM_PARTITIONS", "VECTORDB_NUM_DIVISIONS",
		"VECTORDB_NUM_CODES", "VECTORDB_DEFAULT_NPROBE",
		"VECTORDB_DATA_DIR", "VECTORDB_COMPRESS_PARTITIONS", "VECTORDB_MANIFEST_HASH",
		"VECTORDB_AUTH_ENABLED", "VECTORDB_JWT_SECRET",
		"VECTORDB_RATE_LIMIT_ENABLED", "VECTORDB_RATE_LIMIT_RPS", "VECTORDB_RATE_LIMIT_BURST",
		"VECTORDB_REST_ENABLED", "VECTORDB_REST_HOST", "VECTORDB_REST_PORT",
		"VECTORDB_REST_CORS_ENABLED", "VECTORDB_REST_CORS_ORIGINS",
	}

	originalEnv := make(map[string]string)
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	os.Setenv("VECTORDB_HOST", "127.0.0.1")
	os.Setenv("VECTORDB_PORT", "9000")
	os.Setenv("VECTORDB_MAX_CONNECTIONS", "5000")
	os.Setenv("VECTORDB_REQUEST_TIMEOUT", "60s")
	os.Setenv("VECTORDB_ENABLE_TLS", "true")
	os.Setenv("VECTORDB_TLS_CERT", "/tmp/cert.pem")
	os.Setenv("VECTORDB_TLS_KEY", "/tmp/key.pem")

	os.Setenv("VECTORDB_VECTOR_SIZE", "128")
	os.Setenv("VECTORDB_NUM_PARTITIONS", "64")
	os.Setenv("VECTORDB_NUM_DIVISIONS", "16")
	os.Setenv("VECTORDB_NUM_CODES", "32")
	os.Setenv("VECTORDB_DEFAULT_NPROBE", "4")

	os.Setenv("VECTORDB_DATA_DIR", "/var/lib/vectordb")
	os.Setenv("VECTORDB_COMPRESS_PARTITIONS", "false")
	os.Setenv("VECTORDB_MANIFEST_HASH", "abc123")

	os.Setenv("VECTORDB_AUTH_ENABLED", "true")
	os.Setenv("VECTORDB_JWT_SECRET", "s3cr3t")

	os.Setenv("VECTORDB_RATE_LIMIT_ENABLED", "false")
	os.Setenv("VECTORDB_RATE_LIMIT_RPS", "50")
	os.Setenv("VECTORDB_RATE_LIMIT_BURST", "10")

	os.Setenv("VECTORDB_REST_ENABLED", "true")
	os.Setenv("VECTORDB_REST_HOST", "127.0.0.2")
	os.Setenv("VECTORDB_REST_PORT", "9001")
	os.Setenv("VECTORDB_REST_CORS_ENABLED", "true")
	os.Setenv("VECTORDB_REST_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg := LoadFromEnv()

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConnections != 5000 {
		t.Errorf("Expected max connections 5000, got %d", cfg.Server.MaxConnections)
	}
	if cfg.Server.RequestTimeout != 60*time.Second {
		t.Errorf("Expected request timeout 60s, got %v", cfg.Server.RequestTimeout)
	}
	if !cfg.Server.EnableTLS {
		t.Error("Expected TLS enabled")
	}

	if cfg.Index.VectorSize != 128 {
		t.Errorf("Expected vector size 128, got %d", cfg.Index.VectorSize)
	}
	if cfg.Index.NumPartitions != 64 {
		t.Errorf("Expected num_partitions 64, got %d", cfg.Index.NumPartitions)
	}
	if cfg.Index.NumDivisions != 16 {
		t.Errorf("Expected num_divisions 16, got %d", cfg.Index.NumDivisions)
	}
	if cfg.Index.NumCodes != 32 {
		t.Errorf("Expected num_codes 32, got %d", cfg.Index.NumCodes)
	}
	if cfg.Index.DefaultNProbe != 4 {
		t.Errorf("Expected default_nprobe 4, got %d", cfg.Index.DefaultNProbe)
	}

	if cfg.Storage.DataDir != "/var/lib/vectordb" {
		t.Errorf("Expected data dir /var/lib/vectordb, got %s", cfg.Storage.DataDir)
	}
	if cfg.Storage.CompressPartitions {
		t.Error("Expected partition compression disabled")
	}
	if cfg.Storage.ManifestHash != "abc123" {
		t.Errorf("Expected manifest hash abc123, got %s", cfg.Storage.ManifestHash)
	}

	if !cfg.Auth.Enabled {
		t.Error("Expected auth enabled")
	}
	if cfg.Auth.JWTSecret != "s3cr3t" {
		t.Errorf("Expected jwt secret s3cr3t, got %s", cfg.Auth.JWTSecret)
	}

	if cfg.RateLimit.Enabled {
		t.Error("Expected rate limit disabled")
	}
	if cfg.RateLimit.RequestsPerSec != 50 {
		t.Errorf("Expected rate limit 50rps, got %v", cfg.RateLimit.RequestsPerSec)
	}
	if cfg.RateLimit.Burst != 10 {
		t.Errorf("Expected rate limit burst 10, got %d", cfg.RateLimit.Burst)
	}

	if !cfg.REST.Enabled {
		t.Error("Expected REST enabled")
	}
	if cfg.REST.Host != "127.0.0.2" {
		t.Errorf("Expected rest host 127.0.0.2, got %s", cfg.REST.Host)
	}
	if cfg.REST.Port != 9001 {
		t.Errorf("Expected rest port 9001, got %d", cfg.REST.Port)
	}
	if !cfg.REST.CORSEnabled {
		t.Error("Expected REST CORS enabled")
	}
	if len(cfg.REST.CORSOrigins) != 2 || cfg.REST.CORSOrigins[0] != "https://a.example" {
		t.Errorf("Expected two CORS origins, got %v", cfg.REST.CORSOrigins)
	}
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	originalPort := os.Getenv("VECTORDB_PORT")
	defer func() {
		if originalPort == "" {
			os.Unsetenv("VECTORDB_PORT")
		} else {
			os.Setenv("VECTORDB_PORT", originalPort)
		}
	}()

	os.Setenv("VECTORDB_PORT", "invalid")
	cfg := LoadFromEnv()

	if cfg.Server.Port != 50051 {
		t.Errorf("Expected default port 50051 for invalid value, got %d", cfg.Server.Port)
	}
}

func TestLoadFromEnv_DefaultsWhenNotSet(t *testing.T) {
	envVars := []string{
		"VECTORDB_HOST", "VECTORDB_PORT", "VECTORDB_MAX_CONNECTIONS",
		"VECTORDB_REQUEST_TIMEOUT", "VECTORDB_ENABLE_TLS",
		"VECTORDB_VECTOR_SIZE", "VECTORDB_NUM_PARTITIONS", "VECTORDB_NUM_DIVISIONS",
		"VECTORDB_NUM_CODES", "VECTORDB_DEFAULT_NPROBE",
		"VECTORDB_DATA_DIR", "VECTORDB_COMPRESS_PARTITIONS",
	}

	originalEnv := make(map[string]string)
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
		os.Unsetenv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value != "" {
				os.Setenv(key, value)
			}
		}
	}()

	cfg := LoadFromEnv()
	defaults := Default()

	if cfg.Server.Host != defaults.Server.Host {
		t.Errorf("Expected default host, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != defaults.Server.Port {
		t.Errorf("Expected default port, got %d", cfg.Server.Port)
	}
	if cfg.Index.VectorSize != defaults.Index.VectorSize {
		t.Errorf("Expected default vector size, got %d", cfg.Index.VectorSize)
	}
	if cfg.Index.NumPartitions != defaults.Index.NumPartitions {
		t.Errorf("Expected default num_partitions, got %d", cfg.Index.NumPartitions)
	}
	if cfg.Storage.DataDir != defaults.Storage.DataDir {
		t.Errorf("Expected default data dir, got %s", cfg.Storage.DataDir)
	}
}

func TestValidate(t *testing.T) {
	validIndex := IndexConfig{VectorSize: 8, NumPartitions: 4, NumDivisions: 2, NumCodes: 8, DefaultNProbe: 2}

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "Valid default config",
			config:  Default(),
			wantErr: false,
		},
		{
			name: "Invalid port (too low)",
			config: &Config{
				Server:  ServerConfig{Port: 0, MaxConnections: 1},
				Index:   validIndex,
				Storage: StorageConfig{DataDir: "./data"},
			},
			wantErr: true,
		},
		{
			name: "Invalid port (too high)",
			config: &Config{
				Server:  ServerConfig{Port: 70000, MaxConnections: 1},
				Index:   validIndex,
				Storage: StorageConfig{DataDir: "./data"},
			},
			wantErr: true,
		},
		{
			name: "Invalid REST port when REST enabled",
			config: &Config{
				Server:  ServerConfig{Port: 50051, MaxConnections: 1},
				Index:   validIndex,
				Storage: StorageConfig{DataDir: "./data"},
				REST:    RESTConfig{Enabled: true, Port: 0},
			},
			wantErr: true,
		},
		{
			name: "Invalid vector size",
			config: &Config{
				Server:  ServerConfig{Port: 50051, MaxConnections: 1},
				Index:   IndexConfig{VectorSize: 0, NumPartitions: 4, NumDivisions: 2, NumCodes: 8, DefaultNProbe: 2},
				Storage: StorageConfig{DataDir: "./data"},
			},
			wantErr: true,
		},
		{
			name: "vector size not divisible by num_divisions",
			config: &Config{
				Server:  ServerConfig{Port: 50051, MaxConnections: 1},
				Index:   IndexConfig{VectorSize: 9, NumPartitions: 4, NumDivisions: 2, NumCodes: 8, DefaultNProbe: 2},
				Storage: StorageConfig{DataDir: "./data"},
			},
			wantErr: true,
		},
		{
			name: "nprobe exceeds num_partitions",
			config: &Config{
				Server:  ServerConfig{Port: 50051, MaxConnections: 1},
				Index:   IndexConfig{VectorSize: 8, NumPartitions: 4, NumDivisions: 2, NumCodes: 8, DefaultNProbe: 5},
				Storage: StorageConfig{DataDir: "./data"},
			},
			wantErr: true,
		},
		{
			name: "auth enabled without secret",
			config: &Config{
				Server:  ServerConfig{Port: 50051, MaxConnections: 1},
				Index:   validIndex,
				Storage: StorageConfig{DataDir: "./data"},
				Auth:    AuthConfig{Enabled: true},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{
		Host: "localhost",
		Port: 8080,
	}

	addr := cfg.Address()
	expected := "localhost:8080"

	if addr != expected {
		t.Errorf("Expected address %s, got %s", expected, addr)
	}

	defaultCfg := Default()
	addr = defaultCfg.Server.Address()
	expected = "0.0.0.0:50051"

	if addr != expected {
		t.Errorf("Expected default address %s, got %s", expected, addr)
	}
}

func TestRESTConfig_Address(t *testing.T) {
	cfg := RESTConfig{Host: "localhost", Port: 8080}
	if got := cfg.Address(); got != "localhost:8080" {
		t.Errorf("Expected address localhost:8080, got %s", got)
	}
}
