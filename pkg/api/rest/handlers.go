package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/attrs"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/ivfdb"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
)

// Handler serves the JSON gateway's two endpoints directly against a
// Database handle.
type Handler struct {
	db *ivfdb.Database
}

// NewHandler creates a new REST API handler over db.
func NewHandler(db *ivfdb.Database) *Handler {
	return &Handler{db: db}
}

// queryRequestBody is the JSON body for POST /v1/databases/{id}/query.
type queryRequestBody struct {
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
	NProbe int       `json:"nprobe"`
}

type queryMatchBody struct {
	VectorID        string  `json:"vector_id"`
	PartitionIndex  int     `json:"partition_index"`
	SquaredDistance float32 `json:"squared_distance"`
}

type queryResponseBody struct {
	Matches []queryMatchBody `json:"matches"`
}

// Query handles POST /v1/databases/{id}/query.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if id != "" && id != h.db.ManifestHash() {
		writeError(w, fmt.Sprintf("database id %q does not match the database this server was opened with", id), http.StatusNotFound)
		return
	}

	var req queryRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	nprobe := req.NProbe
	if nprobe == 0 {
		nprobe = h.db.NumPartitions()
		if nprobe > 8 {
			nprobe = 8
		}
	}

	results, err := h.db.Query(req.Vector, req.K, nprobe)
	if err != nil {
		writeErrorFromVDB(w, err)
		return
	}

	resp := queryResponseBody{Matches: make([]queryMatchBody, len(results))}
	for i, res := range results {
		ref := res.Ref()
		resp.Matches[i] = queryMatchBody{
			VectorID:        ref.VectorID.String(),
			PartitionIndex:  ref.PartitionIndex,
			SquaredDistance: res.SquaredDistance,
		}
	}
	writeJSON(w, resp, http.StatusOK)
}

type attributeResponseBody struct {
	Exists      bool    `json:"exists"`
	IsString    bool    `json:"is_string,omitempty"`
	StringValue string  `json:"string_value,omitempty"`
	Uint64Value *uint64 `json:"uint64_value,omitempty"`
}

// GetAttribute handles GET /v1/databases/{id}/attributes/{vector_id}.
// It requires a partition query parameter (the partition_index a
// prior Query response carried for this vector) and a name query
// parameter.
func (h *Handler) GetAttribute(w http.ResponseWriter, r *http.Request, id, vectorID string) {
	if r.Method != http.MethodGet {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if id != "" && id != h.db.ManifestHash() {
		writeError(w, fmt.Sprintf("database id %q does not match the database this server was opened with", id), http.StatusNotFound)
		return
	}

	vid, err := uuid.Parse(vectorID)
	if err != nil {
		writeError(w, fmt.Sprintf("malformed vector id: %v", err), http.StatusBadRequest)
		return
	}
	partitionStr := r.URL.Query().Get("partition")
	partition, err := strconv.Atoi(partitionStr)
	if err != nil {
		writeError(w, "missing or malformed partition query parameter", http.StatusBadRequest)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, "missing name query parameter", http.StatusBadRequest)
		return
	}

	ref := ivfdb.ResultRef{PartitionIndex: partition, VectorID: vid}
	value, exists, err := h.db.GetAttributeByRef(ref, name)
	if err != nil {
		writeErrorFromVDB(w, err)
		return
	}
	if !exists {
		writeJSON(w, attributeResponseBody{Exists: false}, http.StatusOK)
		return
	}

	resp := attributeResponseBody{Exists: true}
	switch value.Kind {
	case attrs.KindString:
		resp.IsString = true
		resp.StringValue = value.Str
	case attrs.KindUint64:
		u := value.U64
		resp.Uint64Value = &u
	}
	writeJSON(w, resp, http.StatusOK)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, fmt.Sprintf("failed to encode response: %v", err), http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  message,
		"status": statusCode,
	})
}

// writeErrorFromVDB maps the module's error taxonomy onto HTTP status
// codes, the REST equivalent of the gRPC layer's toGRPCError.
func writeErrorFromVDB(w http.ResponseWriter, err error) {
	code, ok := vdberr.CodeOf(err)
	if !ok {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	switch code {
	case vdberr.InvalidArgs:
		writeError(w, err.Error(), http.StatusBadRequest)
	case vdberr.InvalidData, vdberr.VerificationFailure, vdberr.Protobuf:
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
	case vdberr.IO:
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}
