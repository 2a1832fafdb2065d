package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	grpcserver "github.com/therealutkarshpriyadarshi/vectordb/pkg/api/grpc"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/api/rest"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/api/rest/middleware"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/config"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/ivfdb"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/observability"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/store"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version and exit")
		showHelp    = flag.Bool("help", false, "show help and exit")
		configFile  = flag.String("config", "", "path to configuration file (optional)")
		host        = flag.String("host", "", "server host (overrides config/env)")
		port        = flag.Int("port", 0, "server port (overrides config/env)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("vectordb server v%s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if *showHelp {
		showUsage()
		os.Exit(0)
	}

	printBanner()

	cfg := loadConfig(*configFile)

	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := observability.NewDefaultLogger()
	metrics := observability.NewMetrics()

	fs := store.NewLocalFileSystem(cfg.Storage.DataDir)
	if cfg.Storage.ManifestHash == "" {
		log.Fatalf("VECTORDB_MANIFEST_HASH (or Storage.ManifestHash) must name the database to serve; run the CLI's build command first")
	}
	db, err := ivfdb.Open(fs, cfg.Storage.ManifestHash)
	if err != nil {
		log.Fatalf("Failed to open database %s: %v", cfg.Storage.ManifestHash, err)
	}

	log.Println("Initializing vector database server...")
	grpcServer, err := grpcserver.NewServer(cfg, fs, db, metrics, logger)
	if err != nil {
		log.Fatalf("Failed to create gRPC server: %v", err)
	}

	printStartupInfo(cfg, db)

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("Starting gRPC server...")
		if err := grpcServer.Start(); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	var restServer *rest.Server
	if cfg.REST.Enabled {
		restConfig := rest.Config{
			Host:        cfg.REST.Host,
			Port:        cfg.REST.Port,
			CORSEnabled: cfg.REST.CORSEnabled,
			CORSOrigins: cfg.REST.CORSOrigins,
			Auth: middleware.AuthConfig{
				Enabled:   cfg.Auth.Enabled,
				JWTSecret: cfg.Auth.JWTSecret,
			},
			RateLimit: middleware.RateLimitConfig{
				Enabled:        cfg.RateLimit.Enabled,
				RequestsPerSec: cfg.RateLimit.RequestsPerSec,
				Burst:          cfg.RateLimit.Burst,
				PerIP:          true,
			},
		}

		restServer, err = rest.NewServer(restConfig, db)
		if err != nil {
			log.Fatalf("Failed to create REST server: %v", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Println("Starting REST API server...")
			if err := restServer.Start(); err != nil {
				errChan <- fmt.Errorf("REST server error: %w", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	log.Println("Servers are ready. Press Ctrl+C to stop.")
	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-errChan:
		log.Printf("Server error: %v", err)
	}

	log.Println("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if restServer != nil {
		if err := restServer.Stop(ctx); err != nil {
			log.Printf("Error stopping REST server: %v", err)
		}
	}

	if err := grpcServer.Stop(); err != nil {
		log.Printf("Error stopping gRPC server: %v", err)
	}

	wg.Wait()

	log.Println("Servers stopped. Goodbye!")
}

func loadConfig(configFile string) *config.Config {
	// TODO: support loading from YAML/JSON config file
	if configFile != "" {
		log.Printf("Warning: config file support not yet implemented, using environment variables")
	}
	return config.LoadFromEnv()
}

func printBanner() {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║   _____     ________ ____   ____                          ║
║  |_   _|   / ____/ __//  _/ / __ \                         ║
║    | |    / /_  / /_ / /  / /_/ /                          ║
║    | |   / __/ / __// /  / ____/                           ║
║   _|_|_ /_/   /_/  /___/ /_/                                ║
║                                                           ║
║   Read-only approximate nearest-neighbor vector store     ║
║   (inverted file index + product quantization)            ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Println(banner)
	fmt.Printf("Version: %s (commit: %s)\n\n", version, commit)
}

func printStartupInfo(cfg *config.Config, db *ivfdb.Database) {
	fmt.Println("\n╔════════════════════════════════════════════════════════╗")
	fmt.Println("║            gRPC Server Configuration                   ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Address:          %-35s ║\n", cfg.Server.Address())
	fmt.Printf("║ TLS Enabled:      %-35v ║\n", cfg.Server.EnableTLS)
	fmt.Printf("║ Max Connections:  %-35d ║\n", cfg.Server.MaxConnections)
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║            REST API Configuration                      ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Enabled:          %-35v ║\n", cfg.REST.Enabled)
	if cfg.REST.Enabled {
		fmt.Printf("║ Address:          %-35s ║\n", fmt.Sprintf("%s:%d", cfg.REST.Host, cfg.REST.Port))
		fmt.Printf("║ CORS Enabled:     %-35v ║\n", cfg.REST.CORSEnabled)
	}
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║            Database                                    ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Manifest hash:    %-35s ║\n", truncateHash(db.ManifestHash()))
	fmt.Printf("║ Vector size:      %-35d ║\n", db.VectorSize())
	fmt.Printf("║ Partitions (P):   %-35d ║\n", db.NumPartitions())
	fmt.Printf("║ Divisions (D):    %-35d ║\n", db.NumDivisions())
	fmt.Printf("║ Codes (C):        %-35d ║\n", db.NumCodes())
	fmt.Printf("║ Default nprobe:   %-35d ║\n", cfg.Index.DefaultNProbe)
	fmt.Println("╚════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func truncateHash(h string) string {
	if len(h) > 32 {
		return h[:32] + "..."
	}
	return h
}

func showUsage() {
	fmt.Println("vectordb server - read-only IVFPQ approximate nearest-neighbor service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vectordb-server [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -help             Show this help message")
	fmt.Println("  -version          Show version information")
	fmt.Println("  -config PATH      Accepted but not read; configuration comes from environment variables")
	fmt.Println("  -host HOST        Server host (default: 0.0.0.0)")
	fmt.Println("  -port PORT        Server port (default: 50051)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  VECTORDB_HOST                   Server host")
	fmt.Println("  VECTORDB_PORT                   Server port")
	fmt.Println("  VECTORDB_MAX_CONNECTIONS        Max concurrent connections")
	fmt.Println("  VECTORDB_REQUEST_TIMEOUT        Request timeout (e.g., 30s)")
	fmt.Println("  VECTORDB_ENABLE_TLS             Enable TLS (true/false)")
	fmt.Println("  VECTORDB_TLS_CERT               TLS certificate file")
	fmt.Println("  VECTORDB_TLS_KEY                TLS key file")
	fmt.Println("  VECTORDB_DATA_DIR               Content-addressed data directory")
	fmt.Println("  VECTORDB_MANIFEST_HASH          Manifest hash of the database to serve")
	fmt.Println("  VECTORDB_VECTOR_SIZE            Vector dimension")
	fmt.Println("  VECTORDB_NUM_PARTITIONS         Default build partition count")
	fmt.Println("  VECTORDB_NUM_DIVISIONS          Default build subspace count")
	fmt.Println("  VECTORDB_NUM_CODES              Default build codes per subspace")
	fmt.Println("  VECTORDB_DEFAULT_NPROBE         Default partitions probed per query")
	fmt.Println("  VECTORDB_REST_ENABLED           Enable the REST gateway (true/false)")
	fmt.Println("  VECTORDB_REST_HOST              REST gateway host")
	fmt.Println("  VECTORDB_REST_PORT              REST gateway port")
	fmt.Println("  VECTORDB_AUTH_ENABLED           Enable JWT auth (true/false)")
	fmt.Println("  VECTORDB_JWT_SECRET             JWT signing secret")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Serve a built database with otherwise default configuration")
	fmt.Println("  VECTORDB_MANIFEST_HASH=<hash> vectordb-server")
	fmt.Println()
	fmt.Println("  # Serve a specific built database on a custom port")
	fmt.Println("  VECTORDB_MANIFEST_HASH=abc123 vectordb-server -port 8080")
	fmt.Println()
}
