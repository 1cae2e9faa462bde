package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/audit"
	"github.com/raaihank/pii-sentinel/internal/cache"
	"github.com/raaihank/pii-sentinel/internal/engine"
	"github.com/raaihank/pii-sentinel/internal/websocket"
)

// ClassifyRequest is one record submitted for classification
type ClassifyRequest struct {
	RecordID string        `json:"record_id,omitempty"`
	Record   engine.Record `json:"record"`
}

// ClassifyResponse is the classification outcome for one record
type ClassifyResponse struct {
	RecordID     string           `json:"record_id,omitempty"`
	IsPII        bool             `json:"is_pii"`
	Redacted     engine.Record    `json:"redacted"`
	Findings     []engine.Finding `json:"findings,omitempty"`
	Cached       bool             `json:"cached"`
	ProcessingMS float64          `json:"processing_ms"`
}

// BatchClassifyRequest carries multiple records in one call
type BatchClassifyRequest struct {
	Records []ClassifyRequest `json:"records"`
}

// BatchClassifyResponse summarizes a batch classification
type BatchClassifyResponse struct {
	Results      []ClassifyResponse `json:"results"`
	TotalRecords int                `json:"total_records"`
	PIIRecords   int                `json:"pii_records"`
	ProcessingMS float64            `json:"processing_ms"`
}

const maxBatchRecords = 10000

// handleClassify classifies a single record
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	logger := s.logger.WithRequestID(requestID)

	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Record == nil {
		writeError(w, http.StatusBadRequest, "record is required")
		return
	}

	atomic.AddInt64(&s.totalRequests, 1)

	resp, err := s.classifyRecord(r.Context(), req, requestID, getClientIP(r))
	if err != nil {
		logger.Error("Classification failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "classification failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleClassifyBatch classifies multiple records in one call
func (s *Server) handleClassifyBatch(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	logger := s.logger.WithRequestID(requestID)

	var req BatchClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Records) == 0 {
		writeError(w, http.StatusBadRequest, "records are required")
		return
	}
	if len(req.Records) > maxBatchRecords {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch exceeds %d records", maxBatchRecords))
		return
	}

	atomic.AddInt64(&s.totalRequests, 1)

	start := time.Now()
	resp := BatchClassifyResponse{
		Results:      make([]ClassifyResponse, 0, len(req.Records)),
		TotalRecords: len(req.Records),
	}

	for i := range req.Records {
		if req.Records[i].Record == nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("record %d is missing", i))
			return
		}

		result, err := s.classifyRecord(r.Context(), req.Records[i], requestID, getClientIP(r))
		if err != nil {
			logger.Error("Batch classification failed",
				zap.Int("record_index", i),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, "classification failed")
			return
		}

		if result.IsPII {
			resp.PIIRecords++
		}
		resp.Results = append(resp.Results, result)
	}

	elapsed := time.Since(start)
	resp.ProcessingMS = float64(elapsed.Nanoseconds()) / 1e6

	var ratePerSec float64
	if secs := elapsed.Seconds(); secs > 0 {
		ratePerSec = float64(resp.TotalRecords) / secs
	}

	progressEvent := websocket.Event{
		Type:      websocket.EventTypeBatchProgress,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.BatchProgressEvent{
			File:             "api",
			RecordsProcessed: int64(resp.TotalRecords),
			PIIRecords:       int64(resp.PIIRecords),
			RatePerSec:       ratePerSec,
		},
	}
	s.wsHub.BroadcastEvent(progressEvent)

	writeJSON(w, http.StatusOK, resp)
}

// classifyRecord runs one record through the cache, the engine, and the audit
// and broadcast side channels.
func (s *Server) classifyRecord(ctx context.Context, req ClassifyRequest, requestID, clientIP string) (ClassifyResponse, error) {
	start := time.Now()

	var key string
	if s.cache != nil {
		k, err := s.cache.Key(req.Record)
		if err == nil {
			key = k
			if cached, err := s.cache.Get(ctx, key); err == nil && cached != nil {
				var redacted engine.Record
				if err := json.Unmarshal([]byte(cached.RedactedJSON), &redacted); err == nil {
					return ClassifyResponse{
						RecordID:     req.RecordID,
						IsPII:        cached.IsPII,
						Redacted:     redacted,
						Findings:     cached.Findings,
						Cached:       true,
						ProcessingMS: float64(time.Since(start).Nanoseconds()) / 1e6,
					}, nil
				}
			}
		}
	}

	detection := s.engine.Classify(req.Record)
	elapsed := time.Since(start)

	if detection.IsPII {
		atomic.AddInt64(&s.totalDetections, 1)
	}

	redactedJSON, err := json.Marshal(detection.Redacted)
	if err != nil {
		return ClassifyResponse{}, fmt.Errorf("failed to serialize redacted record: %w", err)
	}

	if s.cache != nil && key != "" {
		entry := &cache.CachedResult{
			IsPII:        detection.IsPII,
			RedactedJSON: string(redactedJSON),
			Findings:     detection.Findings,
		}
		if err := s.cache.Set(ctx, key, entry); err != nil {
			s.logger.Warn("Failed to cache classification", zap.Error(err))
		}
	}

	if s.store != nil {
		go s.auditRecord(req, key, detection)
	}

	detectionEvent := websocket.Event{
		Type:      websocket.EventTypeDetection,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.DetectionEvent{
			RequestID:    requestID,
			RecordID:     req.RecordID,
			ClientIP:     clientIP,
			IsPII:        detection.IsPII,
			Findings:     detection.Findings,
			ProcessingMS: float64(elapsed.Nanoseconds()) / 1e6,
		},
	}
	s.wsHub.BroadcastEvent(detectionEvent)

	return ClassifyResponse{
		RecordID:     req.RecordID,
		IsPII:        detection.IsPII,
		Redacted:     detection.Redacted,
		Findings:     detection.Findings,
		ProcessingMS: float64(elapsed.Nanoseconds()) / 1e6,
	}, nil
}

// auditRecord persists one classification outcome asynchronously. The request
// context may already be gone, so a fresh timeout is used.
func (s *Server) auditRecord(req ClassifyRequest, cacheKey string, detection engine.DetectionResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	findings, err := json.Marshal(detection.Findings)
	if err != nil {
		findings = []byte("[]")
	}

	record := &audit.ClassificationRecord{
		RecordID:   req.RecordID,
		RecordHash: recordHash(cacheKey, req.Record),
		IsPII:      detection.IsPII,
		Findings:   string(findings),
	}

	if err := s.store.Insert(ctx, record); err != nil {
		s.logger.Warn("Failed to persist audit record", zap.Error(err))
	}
}

// recordHash reuses the hash portion of the cache key when one exists
func recordHash(cacheKey string, record engine.Record) string {
	if cacheKey != "" {
		return cacheKey[strings.LastIndex(cacheKey, ":")+1:]
	}
	data, err := json.Marshal(record)
	if err != nil {
		data = []byte{}
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// handleStats reports runtime statistics across all components
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"uptime":           time.Since(s.start).String(),
		"total_requests":   atomic.LoadInt64(&s.totalRequests),
		"total_detections": atomic.LoadInt64(&s.totalDetections),
		"enabled_rules":    s.engine.GetEnabledRules(),
		"websocket":        s.wsHub.GetStats(),
	}

	if s.cache != nil {
		if cacheStats, err := s.cache.GetStats(r.Context()); err == nil {
			stats["cache"] = cacheStats
		}
	}

	if s.store != nil {
		if auditStats, err := s.store.GetStats(r.Context()); err == nil {
			stats["audit"] = auditStats
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already written; nothing left to do.
		return
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
