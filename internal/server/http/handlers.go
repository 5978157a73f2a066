package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/refhub/citation-service/internal/discover"
)

// maxRequestBodySize caps request bodies at 1 MB.
const maxRequestBodySize = 1 << 20

// verifyRequest is the JSON request body for a synchronous verification.
type verifyRequest struct {
	Citation string `json:"citation" validate:"required,min=3,max=10000"`
}

// batchRequest is the JSON request body for queueing batch verification.
type batchRequest struct {
	Citations []string `json:"citations" validate:"required,min=1,max=100,dive,min=3,max=10000"`
}

// discoverRequest is the JSON request body for topic discovery.
type discoverRequest struct {
	Topic         string `json:"topic" validate:"required,min=3,max=500"`
	Field         string `json:"field" validate:"omitempty,max=200"`
	AcademicLevel string `json:"academic_level" validate:"omitempty,max=100"`
}

// verifyCitation handles POST /api/v1/citations/verify.
func (s *Server) verifyCitation(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	result := s.verifier.Verify(r.Context(), req.Citation, "")
	writeJSON(w, http.StatusOK, domainResultToResponse(result))
}

// queueVerifications handles POST /api/v1/citations/verifications. It assigns
// a correlation ID, publishes one task per citation and returns immediately;
// results are retrieved by polling with the same correlation ID.
func (s *Server) queueVerifications(w http.ResponseWriter, r *http.Request) {
	if s.enqueuer == nil {
		writeError(w, http.StatusServiceUnavailable, "batch verification is not enabled")
		return
	}

	var req batchRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	correlationID := uuid.New().String()
	if err := s.enqueuer.Enqueue(r.Context(), correlationID, req.Citations); err != nil {
		s.logger.Error().Err(err).Msg("failed to enqueue verification batch")
		writeError(w, http.StatusInternalServerError, "failed to queue verifications")
		return
	}

	writeJSON(w, http.StatusAccepted, queuedBatchResponse{
		CorrelationID: correlationID,
		Count:         len(req.Citations),
		Status:        "queued",
	})
}

// getQueuedResult handles GET /api/v1/citations/verifications/{correlationID}/result.
// The original citation text is passed back as the citation query parameter so
// the result key can be rederived.
func (s *Server) getQueuedResult(w http.ResponseWriter, r *http.Request) {
	correlationID := chi.URLParam(r, "correlationID")
	citation := strings.TrimSpace(r.URL.Query().Get("citation"))
	if correlationID == "" || citation == "" {
		writeError(w, http.StatusBadRequest, "correlation ID and citation query parameter are required")
		return
	}

	result, err := s.verifier.GetQueuedResult(r.Context(), citation, correlationID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("correlation_id", correlationID).
			Msg("failed to look up queued result")
		writeError(w, http.StatusInternalServerError, "failed to look up result")
		return
	}
	if result == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "pending"})
		return
	}

	writeJSON(w, http.StatusOK, domainResultToResponse(result))
}

// discoverPapers handles POST /api/v1/papers/discover.
func (s *Server) discoverPapers(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	ranked, err := s.discoverer.Collect(r.Context(), discover.TopicRequest{
		Topic:         req.Topic,
		Field:         req.Field,
		AcademicLevel: req.AcademicLevel,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("topic", req.Topic).Msg("discovery failed")
		writeError(w, http.StatusInternalServerError, "discovery failed")
		return
	}

	writeJSON(w, http.StatusOK, domainRankedToResponse(ranked))
}

// listRecords handles GET /api/v1/records. Records are returned most
// recently verified first; limit defaults to 20 and is capped at 100.
func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusServiceUnavailable, "record store is not available")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > 100 {
		limit = 100
	}

	records, err := s.records.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list citation records")
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}

	writeJSON(w, http.StatusOK, citationRecordsToResponse(records))
}

// decodeAndValidate reads, decodes and validates a JSON request body. On
// failure it writes the error response and returns false.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return false
	}
	return true
}
