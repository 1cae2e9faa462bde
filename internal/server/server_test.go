package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/raaihank/pii-sentinel/internal/config"
	"github.com/raaihank/pii-sentinel/internal/engine"
	"github.com/raaihank/pii-sentinel/internal/logger"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()

	cfg := config.GetDefaults()
	cfg.Server.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	eng, err := engine.New(cfg.Privacy, logger.Nop())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	srv, err := New(cfg, logger.Nop(), eng, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return srv
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("Unexpected body: %s", rec.Body.String())
	}
}

func TestHandleInfo(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest("GET", "/info", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pii-sentinel") {
		t.Errorf("Unexpected body: %s", rec.Body.String())
	}
}

func TestHandleClassify(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("PIIRecord", func(t *testing.T) {
		body := `{"record_id":"r1","record":{"phone":"9876543210","name":"John"}}`
		req := httptest.NewRequest("POST", "/v1/classify", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		var resp ClassifyResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if !resp.IsPII {
			t.Error("Record not flagged as PII")
		}
		if resp.Redacted["phone"] != "98XXXXXX10" {
			t.Errorf("phone mask = %v", resp.Redacted["phone"])
		}
		if resp.Redacted["name"] != "John" {
			t.Errorf("name should be untouched, got %v", resp.Redacted["name"])
		}
		if resp.RecordID != "r1" {
			t.Errorf("record_id = %q", resp.RecordID)
		}
		if len(resp.Findings) != 1 {
			t.Errorf("findings = %v", resp.Findings)
		}
	})

	t.Run("CleanRecord", func(t *testing.T) {
		body := `{"record":{"city":"Pune"}}`
		req := httptest.NewRequest("POST", "/v1/classify", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200", rec.Code)
		}

		var resp ClassifyResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.IsPII {
			t.Error("Clean record flagged as PII")
		}
		if resp.Redacted["city"] != "Pune" {
			t.Errorf("city = %v", resp.Redacted["city"])
		}
	})

	t.Run("InvalidBody", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/v1/classify", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", rec.Code)
		}
	})

	t.Run("MissingRecord", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/v1/classify", strings.NewReader(`{"record_id":"r1"}`))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", rec.Code)
		}
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/classify", nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("Status = %d, want 405", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "method not allowed") {
			t.Errorf("Unexpected body: %s", rec.Body.String())
		}
	})
}

func TestHandleClassifyBatch(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("MixedBatch", func(t *testing.T) {
		body := `{"records":[
			{"record_id":"r1","record":{"phone":"9876543210"}},
			{"record_id":"r2","record":{"city":"Pune"}},
			{"record_id":"r3","record":{"name":"John Doe","email":"john@x.com"}}
		]}`
		req := httptest.NewRequest("POST", "/v1/classify/batch", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		var resp BatchClassifyResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.TotalRecords != 3 {
			t.Errorf("total_records = %d, want 3", resp.TotalRecords)
		}
		if resp.PIIRecords != 2 {
			t.Errorf("pii_records = %d, want 2", resp.PIIRecords)
		}
		if len(resp.Results) != 3 {
			t.Fatalf("results = %d, want 3", len(resp.Results))
		}
		if resp.Results[2].Redacted["name"] != "JXXX DXXX" {
			t.Errorf("r3 name mask = %v", resp.Results[2].Redacted["name"])
		}
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/v1/classify/batch", strings.NewReader(`{"records":[]}`))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", rec.Code)
		}
	})
}

func TestHandleStats(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest("GET", "/stats", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}

	var stats map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if _, ok := stats["enabled_rules"]; !ok {
		t.Error("Stats missing enabled_rules")
	}
	if _, ok := stats["websocket"]; !ok {
		t.Error("Stats missing websocket section")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.RateLimit.Enabled = true
		cfg.Server.RateLimit.RequestsPerMin = 1
		cfg.Server.RateLimit.Burst = 1
	})

	body := `{"record":{"city":"Pune"}}`

	first := httptest.NewRequest("POST", "/v1/classify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("First request status = %d, want 200", rec.Code)
	}

	second := httptest.NewRequest("POST", "/v1/classify", strings.NewReader(body))
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, second)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Second request status = %d, want 429", rec.Code)
	}
}
