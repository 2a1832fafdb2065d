package grpc

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/attrs"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/ivfdb"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
)

// Build trains a new database over the vectors and attributes carried
// in the request, persists it to the server's store, and makes it the
// active database for every subsequent Query and GetAttribute call.
// A zero NumPartitions/NumDivisions/NumCodes in the request falls back
// to the server's configured defaults.
func (s *Server) Build(ctx context.Context, req *BuildRequest) (*BuildResponse, error) {
	start := time.Now()
	if req.VectorSize == 0 {
		return nil, status.Error(codes.InvalidArgument, "vector_size must be positive")
	}
	if len(req.Vectors)%int(req.VectorSize) != 0 {
		return nil, status.Errorf(codes.InvalidArgument, "vectors length %d is not a multiple of vector_size %d", len(req.Vectors), req.VectorSize)
	}

	builder, err := ivfdb.NewBuilder(int(req.VectorSize))
	if err != nil {
		s.recordError("Build", err)
		return nil, toGRPCError(err)
	}

	n := len(req.Vectors) / int(req.VectorSize)
	for i := 0; i < n; i++ {
		v := req.Vectors[i*int(req.VectorSize) : (i+1)*int(req.VectorSize)]
		if _, err := builder.AddVector(v); err != nil {
			s.recordError("Build", err)
			return nil, toGRPCError(err)
		}
	}
	for _, a := range req.Attributes {
		var value attrs.Value
		if a.IsString {
			value = attrs.StringValue(a.StringValue)
		} else {
			value = attrs.Uint64Value(a.Uint64Value)
		}
		if err := builder.SetAttribute(int(a.VectorIndex), a.Name, value); err != nil {
			s.recordError("Build", err)
			return nil, toGRPCError(err)
		}
	}

	cfg := ivfdb.BuildConfig{
		NumPartitions: int(req.NumPartitions),
		NumDivisions:  int(req.NumDivisions),
		NumCodes:      int(req.NumCodes),
	}
	if cfg.NumPartitions == 0 {
		cfg.NumPartitions = s.config.Index.NumPartitions
	}
	if cfg.NumDivisions == 0 {
		cfg.NumDivisions = s.config.Index.NumDivisions
	}
	if cfg.NumCodes == 0 {
		cfg.NumCodes = s.config.Index.NumCodes
	}

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(n)+1))
	artifacts, err := builder.Build(cfg, rng)
	if err != nil {
		s.recordError("Build", err)
		return nil, toGRPCError(err)
	}

	manifestHash, err := artifacts.Persist(s.fs)
	if err != nil {
		s.recordError("Build", err)
		return nil, toGRPCError(err)
	}

	newDB, err := ivfdb.Open(s.fs, manifestHash)
	if err != nil {
		s.recordError("Build", err)
		return nil, toGRPCError(err)
	}
	s.setDatabase(newDB)

	if s.metrics != nil {
		s.metrics.RecordBuild(time.Since(start), builder.Len(), cfg.NumPartitions)
	}

	return &BuildResponse{
		ManifestHash:  manifestHash,
		VectorCount:   uint32(builder.Len()),
		NumPartitions: uint32(cfg.NumPartitions),
	}, nil
}

// Query runs an approximate nearest-neighbor search against the
// server's database and returns the k best matches.
func (s *Server) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	start := time.Now()
	db := s.database()
	if db == nil {
		return nil, status.Error(codes.FailedPrecondition, "no database has been built or opened yet")
	}
	if req.ManifestHash != "" && req.ManifestHash != db.ManifestHash() {
		return nil, status.Errorf(codes.InvalidArgument, "manifest hash %q does not match the database this server was opened with", req.ManifestHash)
	}

	k := int(req.K)
	nprobe := int(req.NProbe)
	if nprobe == 0 {
		nprobe = s.config.Index.DefaultNProbe
	}

	results, err := db.Query(req.Vector, k, nprobe)
	if err != nil {
		s.recordError("Query", err)
		return nil, toGRPCError(err)
	}

	resp := &QueryResponse{Matches: make([]QueryMatch, len(results))}
	for i, r := range results {
		ref := r.Ref()
		id := ref.VectorID
		resp.Matches[i] = QueryMatch{
			VectorID:        id[:],
			SquaredDistance: r.SquaredDistance,
			PartitionIndex:  uint32(ref.PartitionIndex),
		}
	}

	if s.metrics != nil {
		s.metrics.RecordQuery(time.Since(start), nprobe, len(resp.Matches))
	}
	return resp, nil
}

// GetAttribute returns the value bound to name for a vector
// previously returned by Query, identified by the opaque
// (partition_index, vector_id) reference the client received in the
// matching QueryMatch.
func (s *Server) GetAttribute(ctx context.Context, req *GetAttributeRequest) (*GetAttributeResponse, error) {
	db := s.database()
	if db == nil {
		return nil, status.Error(codes.FailedPrecondition, "no database has been built or opened yet")
	}
	if req.ManifestHash != "" && req.ManifestHash != db.ManifestHash() {
		return nil, status.Errorf(codes.InvalidArgument, "manifest hash %q does not match the database this server was opened with", req.ManifestHash)
	}
	id, err := uuid.FromBytes(req.VectorID)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "malformed vector id: %v", err)
	}

	ref := ivfdb.ResultRef{PartitionIndex: int(req.PartitionIndex), VectorID: id}
	value, exists, err := db.GetAttributeByRef(ref, req.Name)
	if err != nil {
		s.recordError("GetAttribute", err)
		return nil, toGRPCError(err)
	}

	if s.metrics != nil {
		s.metrics.RecordAttributeLookup()
	}

	if !exists {
		return &GetAttributeResponse{Exists: false}, nil
	}
	resp := &GetAttributeResponse{Exists: true}
	switch value.Kind {
	case attrs.KindString:
		resp.IsString = true
		resp.StringValue = value.Str
	case attrs.KindUint64:
		resp.Uint64Value = value.U64
	}
	return resp, nil
}

func (s *Server) recordError(method string, err error) {
	if s.metrics == nil {
		return
	}
	code, _ := vdberr.CodeOf(err)
	s.metrics.RecordError(method, code.String())
}

// toGRPCError maps the module's error taxonomy onto gRPC status
// codes so clients can branch on standard codes.Code values.
func toGRPCError(err error) error {
	code, ok := vdberr.CodeOf(err)
	if !ok {
		return status.Errorf(codes.Internal, "%v", err)
	}
	switch code {
	case vdberr.InvalidArgs:
		return status.Errorf(codes.InvalidArgument, "%v", err)
	case vdberr.InvalidData, vdberr.VerificationFailure, vdberr.Protobuf:
		return status.Errorf(codes.DataLoss, "%v", err)
	case vdberr.IO:
		return status.Errorf(codes.Unavailable, "%v", err)
	default:
		return status.Errorf(codes.Internal, "%v", err)
	}
}
