// Command vectordb-cli builds and queries a content-addressed IVFPQ
// database directly against the local filesystem, without going
// through the gRPC or REST front ends. It is the offline counterpart
// to the server: build produces a manifest hash the server is then
// pointed at via VECTORDB_MANIFEST_HASH.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/attrs"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/ivfdb"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/store"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "build":
		handleBuild(os.Args[2:])
	case "query":
		handleQuery(os.Args[2:])
	case "inspect":
		handleInspect(os.Args[2:])
	case "version":
		fmt.Printf("vectordb-cli version %s\n", version)
	case "help", "-h", "--help":
		showUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		showUsage()
		os.Exit(1)
	}
}

// buildAttributeEntry is one element of the JSON array -attributes
// reads: it binds name to a string or uint64 value on the vector at
// vector_index.
type buildAttributeEntry struct {
	VectorIndex int     `json:"vector_index"`
	Name        string  `json:"name"`
	StringValue *string `json:"string_value,omitempty"`
	Uint64Value *uint64 `json:"uint64_value,omitempty"`
}

func handleBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	var (
		dataDir        = fs.String("data-dir", "./data", "content-addressed store root")
		vectorsPath    = fs.String("vectors", "", "path to a JSON file holding a [][]float32 corpus (required)")
		attributesPath = fs.String("attributes", "", "path to a JSON file holding a []buildAttributeEntry (optional)")
		numPartitions  = fs.Int("num-partitions", 16, "P: coarse-quantizer centroids")
		numDivisions   = fs.Int("num-divisions", 8, "D: product-quantization subspaces")
		numCodes       = fs.Int("num-codes", 16, "C: centroids trained per subspace")
	)
	fs.Parse(args)

	if *vectorsPath == "" {
		fmt.Println("Error: -vectors is required")
		fs.Usage()
		os.Exit(1)
	}

	raw, err := os.ReadFile(*vectorsPath)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", *vectorsPath, err)
		os.Exit(1)
	}
	var vectors [][]float32
	if err := json.Unmarshal(raw, &vectors); err != nil {
		fmt.Printf("Error parsing %s: %v\n", *vectorsPath, err)
		os.Exit(1)
	}
	if len(vectors) == 0 {
		fmt.Println("Error: corpus is empty")
		os.Exit(1)
	}

	builder, err := ivfdb.NewBuilder(len(vectors[0]))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	for i, v := range vectors {
		if _, err := builder.AddVector(v); err != nil {
			fmt.Printf("Error adding vector %d: %v\n", i, err)
			os.Exit(1)
		}
	}

	if *attributesPath != "" {
		araw, err := os.ReadFile(*attributesPath)
		if err != nil {
			fmt.Printf("Error reading %s: %v\n", *attributesPath, err)
			os.Exit(1)
		}
		var entries []buildAttributeEntry
		if err := json.Unmarshal(araw, &entries); err != nil {
			fmt.Printf("Error parsing %s: %v\n", *attributesPath, err)
			os.Exit(1)
		}
		for _, e := range entries {
			var value attrs.Value
			switch {
			case e.StringValue != nil:
				value = attrs.StringValue(*e.StringValue)
			case e.Uint64Value != nil:
				value = attrs.Uint64Value(*e.Uint64Value)
			default:
				fmt.Printf("Error: attribute entry for vector %d name %q has neither string_value nor uint64_value\n", e.VectorIndex, e.Name)
				os.Exit(1)
			}
			if err := builder.SetAttribute(e.VectorIndex, e.Name, value); err != nil {
				fmt.Printf("Error setting attribute: %v\n", err)
				os.Exit(1)
			}
		}
	}

	cfg := ivfdb.BuildConfig{
		NumPartitions: *numPartitions,
		NumDivisions:  *numDivisions,
		NumCodes:      *numCodes,
	}
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(builder.Len())+1))

	fmt.Printf("Training IVFPQ over %d vectors (P=%d D=%d C=%d)...\n", builder.Len(), cfg.NumPartitions, cfg.NumDivisions, cfg.NumCodes)
	artifacts, err := builder.Build(cfg, rng)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fsys := store.NewLocalFileSystem(*dataDir)
	manifestHash, err := artifacts.Persist(fsys)
	if err != nil {
		fmt.Printf("Error persisting database: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Built database with %d vectors across %d partitions\n", builder.Len(), cfg.NumPartitions)
	fmt.Printf("Manifest hash: %s\n", manifestHash)
}

func handleQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	var (
		dataDir  = fs.String("data-dir", "./data", "content-addressed store root")
		manifest = fs.String("manifest", "", "manifest hash to query (required)")
		vecStr   = fs.String("vector", "", "query vector as a JSON array (required)")
		k        = fs.Int("k", 10, "number of results to return")
		nprobe   = fs.Int("nprobe", 8, "number of partitions to probe")
	)
	fs.Parse(args)

	if *manifest == "" || *vecStr == "" {
		fmt.Println("Error: -manifest and -vector are required")
		fs.Usage()
		os.Exit(1)
	}

	var vector []float32
	if err := json.Unmarshal([]byte(*vecStr), &vector); err != nil {
		fmt.Printf("Error parsing vector: %v\n", err)
		os.Exit(1)
	}

	fsys := store.NewLocalFileSystem(*dataDir)
	db, err := ivfdb.Open(fsys, *manifest)
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		os.Exit(1)
	}

	results, err := db.Query(vector, *k, *nprobe)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d results\n\n", len(results))
	for i, r := range results {
		ref := r.Ref()
		fmt.Printf("%d. vector_id=%s partition=%d squared_distance=%.6f\n", i+1, ref.VectorID, ref.PartitionIndex, r.SquaredDistance)
	}
}

func handleInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	var (
		dataDir  = fs.String("data-dir", "./data", "content-addressed store root")
		manifest = fs.String("manifest", "", "manifest hash to inspect (required)")
	)
	fs.Parse(args)

	if *manifest == "" {
		fmt.Println("Error: -manifest is required")
		fs.Usage()
		os.Exit(1)
	}

	fsys := store.NewLocalFileSystem(*dataDir)
	db, err := ivfdb.Open(fsys, *manifest)
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Database ===")
	fmt.Printf("Manifest hash:   %s\n", db.ManifestHash())
	fmt.Printf("Vector size:     %d\n", db.VectorSize())
	fmt.Printf("Partitions (P):  %d\n", db.NumPartitions())
	fmt.Printf("Divisions (D):   %d\n", db.NumDivisions())
	fmt.Printf("Codes (C):       %d\n", db.NumCodes())
}

func showUsage() {
	fmt.Println(`vectordb-cli - build and query a local IVFPQ vector database

Usage:
  vectordb-cli <command> [options]

Commands:
  build    Train an IVFPQ database from a JSON vector corpus and persist it
  query    Run an approximate nearest-neighbor query against a built database
  inspect  Print a built database's structural parameters
  version  Show version
  help     Show this help message

Examples:

  # Build a database from a corpus
  vectordb-cli build -vectors corpus.json -data-dir ./data \
    -num-partitions 64 -num-divisions 16 -num-codes 256

  # Query it
  vectordb-cli query -data-dir ./data -manifest <hash> \
    -vector '[0.1, 0.2, 0.3]' -k 10 -nprobe 8

  # Inspect it
  vectordb-cli inspect -data-dir ./data -manifest <hash>`)
}
