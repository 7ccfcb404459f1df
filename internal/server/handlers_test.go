package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"resumatch/internal/config"
	"resumatch/internal/errors"
	"resumatch/internal/matcher"
	"resumatch/internal/observability"
	"resumatch/internal/scoring"
	"resumatch/internal/types"
)

const testResume = `John Doe
Experience
5 years of software development at Acme Corp
Skills
Go, Docker, PostgreSQL
Education
Bachelor of Science in Computer Science
`

const testJobDescription = `Position: Senior Go Engineer
Skills: Go, Docker
3 years of experience required
Bachelor degree in Computer Science preferred
`

// newTestServer builds a keyword-only server with observability disabled
func newTestServer(t *testing.T) (*Server, *observability.ObservabilityManager) {
	t.Helper()

	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	cfg := &config.Config{
		App: config.AppConfig{
			MaxFileSize: 16 * 1024 * 1024,
		},
	}
	cfg.Observability.HealthCheck.ModelCheckTimeout = 5 * time.Second

	m := matcher.New(scoring.NewScorer(nil, logger), logger)

	om, err := observability.NewObservabilityManager(observability.ObservabilityConfig{Enabled: false}, cfg)
	if err != nil {
		t.Fatalf("Failed to create observability manager: %v", err)
	}

	srv := NewServer(cfg, ServerConfig{
		Host:           "localhost",
		Port:           "8080",
		Version:        "test",
		MaxRequestSize: 16 * 1024 * 1024,
	}, m, nil, logger)

	return srv, om
}

// multipartMatchRequest builds a multipart /match request with the given parts
func multipartMatchRequest(t *testing.T, filename, fileContent, jobDescription string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if filename != "" {
		fw, err := mw.CreateFormFile("resume", filename)
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		if _, err := fw.Write([]byte(fileContent)); err != nil {
			t.Fatalf("Failed to write form file: %v", err)
		}
	}
	if jobDescription != "" {
		if err := mw.WriteField("job_description", jobDescription); err != nil {
			t.Fatalf("Failed to write job description field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/match", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeErrorResponse(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return resp
}

func TestMatchHandlerMissingFile(t *testing.T) {
	srv, om := newTestServer(t)
	handler := srv.createMatchHandler(om)

	req := httptest.NewRequest(http.MethodPost, "/match", strings.NewReader("job_description=test"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	handler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
	resp := decodeErrorResponse(t, rr)
	if resp.Error != "No resume file provided" {
		t.Errorf("Expected 'No resume file provided', got %q", resp.Error)
	}
}

func TestMatchHandlerMissingJobDescription(t *testing.T) {
	srv, om := newTestServer(t)
	handler := srv.createMatchHandler(om)

	req := multipartMatchRequest(t, "resume.txt", testResume, "")
	rr := httptest.NewRecorder()

	handler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
	resp := decodeErrorResponse(t, rr)
	if resp.Error != "Job description is required" {
		t.Errorf("Expected 'Job description is required', got %q", resp.Error)
	}
}

func TestMatchHandlerUnsupportedFormat(t *testing.T) {
	srv, om := newTestServer(t)
	handler := srv.createMatchHandler(om)

	req := multipartMatchRequest(t, "resume.exe", "binary content", testJobDescription)
	rr := httptest.NewRecorder()

	handler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
	resp := decodeErrorResponse(t, rr)
	if resp.Error != "Could not extract text from resume file" {
		t.Errorf("Expected 'Could not extract text from resume file', got %q", resp.Error)
	}
}

func TestMatchHandlerBlankResume(t *testing.T) {
	srv, om := newTestServer(t)
	handler := srv.createMatchHandler(om)

	req := multipartMatchRequest(t, "resume.txt", "   \n\t  ", testJobDescription)
	rr := httptest.NewRecorder()

	handler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
	resp := decodeErrorResponse(t, rr)
	if resp.Error != "Could not extract text from resume file" {
		t.Errorf("Expected 'Could not extract text from resume file', got %q", resp.Error)
	}
}

func TestMatchHandlerJSONResponse(t *testing.T) {
	srv, om := newTestServer(t)
	handler := srv.createMatchHandler(om)

	req := multipartMatchRequest(t, "resume.txt", testResume, testJobDescription)
	req.Header.Set("Accept", "application/json")
	rr := httptest.NewRecorder()

	handler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json content type, got %q", ct)
	}

	var result types.MatchResult
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode match result: %v", err)
	}

	if result.CandidateName != "John Doe" {
		t.Errorf("Expected candidate 'John Doe', got %q", result.CandidateName)
	}
	if result.JobTitle != "Senior Go Engineer" {
		t.Errorf("Expected job title 'Senior Go Engineer', got %q", result.JobTitle)
	}
	if result.MatchScores.OverallScore < 0 || result.MatchScores.OverallScore > 100 {
		t.Errorf("Overall score out of range: %d", result.MatchScores.OverallScore)
	}
	if result.Details.SemanticMatchingUsed {
		t.Error("Expected semantic matching to be disabled")
	}
}

func TestMatchHandlerHTMLResponse(t *testing.T) {
	srv, om := newTestServer(t)
	handler := srv.createMatchHandler(om)

	req := multipartMatchRequest(t, "resume.txt", testResume, testJobDescription)
	rr := httptest.NewRecorder()

	handler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Expected HTML content type, got %q", ct)
	}

	body := rr.Body.String()
	for _, want := range []string{
		"Job Match Results",
		"John Doe",
		"Senior Go Engineer",
		"Overall Match",
		"Skills Match (50% weight)",
		"Keyword Matching Only",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Result page missing %q", want)
		}
	}
}

func TestScoreHandler(t *testing.T) {
	srv, om := newTestServer(t)
	handler := srv.createScoreHandler(om)

	payload, err := json.Marshal(types.ScoreRequest{
		ResumeText:     testResume,
		JobDescription: testJobDescription,
	})
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/score", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	handler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var result types.MatchResult
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode match result: %v", err)
	}
	if result.CandidateName != "John Doe" {
		t.Errorf("Expected candidate 'John Doe', got %q", result.CandidateName)
	}
}

func TestScoreHandlerMissingResumeText(t *testing.T) {
	srv, om := newTestServer(t)
	handler := srv.createScoreHandler(om)

	req := httptest.NewRequest(http.MethodPost, "/score", strings.NewReader(`{"job_description":"test"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	handler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
	resp := decodeErrorResponse(t, rr)
	if resp.Error != "Missing resume text" {
		t.Errorf("Expected 'Missing resume text', got %q", resp.Error)
	}
}

func TestScoreHandlerWrongContentType(t *testing.T) {
	srv, om := newTestServer(t)
	handler := srv.createScoreHandler(om)

	req := httptest.NewRequest(http.MethodPost, "/score", strings.NewReader("resume text"))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()

	handler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	srv.healthHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("Expected status healthy, got %v", resp["status"])
	}
	if semantic, ok := resp["semantic_matching"].(bool); !ok || semantic {
		t.Errorf("Expected semantic_matching false, got %v", resp["semantic_matching"])
	}
	if resp["version"] != "test" {
		t.Errorf("Expected version test, got %v", resp["version"])
	}
}

func TestHealthHandlerMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rr := httptest.NewRecorder()

	srv.healthHandler(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rr.Code)
	}
}

func TestIndexHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	srv.indexHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "Job Recommendation Score System") {
		t.Error("Index page missing title")
	}
	if !strings.Contains(body, "Semantic Matching: Disabled (Using keyword matching only)") {
		t.Error("Index page missing semantic status banner")
	}
	if !strings.Contains(body, `action="/match"`) {
		t.Error("Index page missing upload form action")
	}
}

func TestIndexHandlerUnknownPath(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()

	srv.indexHandler(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestStatsHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rr := httptest.NewRecorder()

	srv.statsHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode stats response: %v", err)
	}
	if resp["service"] != "resumatch" {
		t.Errorf("Expected service resumatch, got %v", resp["service"])
	}
	matching, ok := resp["matching"].(map[string]any)
	if !ok {
		t.Fatalf("Expected matching section, got %v", resp["matching"])
	}
	if enabled, ok := matching["semantic_enabled"].(bool); !ok || enabled {
		t.Errorf("Expected semantic_enabled false, got %v", matching["semantic_enabled"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.APIKeys = map[string]bool{"valid-key-12345678": true}

	called := false
	handler := srv.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	t.Run("missing key", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodPost, "/match", nil)
		rr := httptest.NewRecorder()
		handler(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rr.Code)
		}
		if called {
			t.Error("Handler should not be called without API key")
		}
	})

	t.Run("invalid key", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodPost, "/match", nil)
		req.Header.Set("X-API-Key", "wrong-key")
		rr := httptest.NewRecorder()
		handler(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rr.Code)
		}
		if called {
			t.Error("Handler should not be called with invalid API key")
		}
	})

	t.Run("valid key header", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodPost, "/match", nil)
		req.Header.Set("X-API-Key", "valid-key-12345678")
		rr := httptest.NewRecorder()
		handler(rr, req)
		if !called {
			t.Error("Handler should be called with valid API key")
		}
	})

	t.Run("valid bearer token", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodPost, "/match", nil)
		req.Header.Set("Authorization", "Bearer valid-key-12345678")
		rr := httptest.NewRecorder()
		handler(rr, req)
		if !called {
			t.Error("Handler should be called with valid bearer token")
		}
	})

	t.Run("no keys configured", func(t *testing.T) {
		srv.APIKeys = map[string]bool{}
		called = false
		req := httptest.NewRequest(http.MethodPost, "/match", nil)
		rr := httptest.NewRecorder()
		handler(rr, req)
		if !called {
			t.Error("Handler should be called when no API keys are configured")
		}
	})
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		accept      string
		want        bool
	}{
		{"json content type", "application/json", "", true},
		{"json accept", "multipart/form-data", "application/json", true},
		{"accept with quality", "", "text/html,application/json;q=0.9", true},
		{"browser accept", "multipart/form-data", "text/html,application/xhtml+xml", false},
		{"no headers", "", "", false},
		{"json content type with charset", "application/json; charset=utf-8", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/match", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if got := wantsJSON(req); got != tt.want {
				t.Errorf("wantsJSON() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := maskAPIKey("short"); got != "****" {
		t.Errorf("Expected '****' for short key, got %q", got)
	}
	if got := maskAPIKey("abcdefgh12345678"); got != "abcdefgh****" {
		t.Errorf("Expected masked key with prefix, got %q", got)
	}
}

func TestGetRateLimitKey(t *testing.T) {
	t.Run("api key preferred", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/match", nil)
		req.Header.Set("X-API-Key", "key123")
		if got := getRateLimitKey(req, true, true); got != "api:key123" {
			t.Errorf("Expected api:key123, got %q", got)
		}
	})

	t.Run("falls back to ip", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/match", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		if got := getRateLimitKey(req, true, true); got != "ip:192.0.2.1" {
			t.Errorf("Expected ip:192.0.2.1, got %q", got)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/match", nil)
		if got := getRateLimitKey(req, false, false); got != "" {
			t.Errorf("Expected empty key, got %q", got)
		}
	})
}
