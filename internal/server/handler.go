package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"resumatch/internal/observability"
	"resumatch/internal/types"
	"resumatch/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// createMatchHandler wraps the multipart match endpoint with observability.
// It accepts a resume file upload plus a job_description form field and
// responds with JSON for API clients or an HTML result page for browsers.
func (s *Server) createMatchHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("resumatch.api")
		ctx, span := tracer.Start(ctx, "api.match")
		defer span.End()

		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		metrics := om.GetMetrics()

		// Parse the multipart form fully in memory. The request body is
		// already capped by the size limit middleware.
		maxMemory := s.MaxRequestSize
		if maxMemory <= 0 {
			maxMemory = 32 << 20
		}
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeErrorResponse(w, "Request body too large", fmt.Sprintf("limit is %d bytes", maxBytesErr.Limit), http.StatusBadRequest)
				return
			}
			writeErrorResponse(w, "No resume file provided", "multipart form with a resume file is required", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("resume")
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "No resume file provided", "resume file field is required", http.StatusBadRequest)
			return
		}
		defer func() {
			if err := file.Close(); err != nil {
				s.Logger.Warn("Failed to close uploaded file", "error", err)
			}
		}()

		if header.Filename == "" {
			err := fmt.Errorf("empty filename in resume part")
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "No file selected", "resume file name is empty", http.StatusBadRequest)
			return
		}

		jobDescription := strings.TrimSpace(r.FormValue("job_description"))
		if jobDescription == "" {
			err := fmt.Errorf("missing job description")
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Job description is required", "job_description field is required", http.StatusBadRequest)
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "upload_read"))
			writeErrorResponse(w, fmt.Sprintf("An error occurred: %v", err), "", http.StatusInternalServerError)
			return
		}

		ext := utils.GetFileExtension(header.Filename)
		resumeText, extractErr := s.Extractor.TextFromBytes(data, ext)
		if extractErr != nil || strings.TrimSpace(resumeText) == "" {
			if extractErr != nil {
				span.RecordError(extractErr)
			}
			span.SetAttributes(attribute.String("error.type", "extraction"))
			metrics.RecordBusinessMetric(ctx, "resume_parsed", false, om,
				attribute.String("format", ext))
			writeErrorResponse(w, "Could not extract text from resume file", "", http.StatusBadRequest)
			return
		}
		metrics.RecordBusinessMetric(ctx, "resume_parsed", true, om,
			attribute.String("format", ext))

		span.SetAttributes(
			attribute.String("upload.filename", header.Filename),
			attribute.Int("request.resume_length", len(resumeText)),
			attribute.Int("request.job_length", len(jobDescription)),
			attribute.String("operation", "match"),
		)

		result, err := s.runScoredMatch(ctx, om, "match", resumeText, jobDescription)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "match_processing"))
			metrics.RecordBusinessMetric(ctx, "match_scored", false, om,
				attribute.String("error", err.Error()))
			writeErrorResponse(w, fmt.Sprintf("An error occurred: %v", err), "", http.StatusInternalServerError)
			return
		}

		metrics.RecordBusinessMetric(ctx, "match_scored", true, om,
			attribute.Int("score.overall", result.MatchScores.OverallScore),
			attribute.Bool("semantic_used", result.Details.SemanticMatchingUsed))
		metrics.RecordMatchScore(ctx, float64(result.MatchScores.OverallScore), om,
			attribute.String("operation", "match"))

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.Int("score.overall", result.MatchScores.OverallScore),
		)

		// API clients get JSON, browsers get the rendered result page
		if wantsJSON(r) {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(result); err != nil {
				span.RecordError(err)
				http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			}
			return
		}
		s.renderResultPage(w, span, result)
	}
}

// createScoreHandler wraps the JSON score endpoint with observability.
// It matches pre-extracted resume text against a job description.
func (s *Server) createScoreHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("resumatch.api")
		ctx, span := tracer.Start(ctx, "api.score")
		defer span.End()

		var req types.ScoreRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}

		// Validation
		if strings.TrimSpace(req.ResumeText) == "" {
			err := fmt.Errorf("missing resume text")
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Missing resume text", "resume_text field is required", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.JobDescription) == "" {
			err := fmt.Errorf("missing job description")
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Missing job description", "job_description field is required", http.StatusBadRequest)
			return
		}

		// Size validation
		if len(req.ResumeText) > int(s.MaxRequestSize/2) {
			err := fmt.Errorf("resume text too large: %d chars", len(req.ResumeText))
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Resume text too large", fmt.Sprintf("resume_text exceeds recommended size limit of %d characters", s.MaxRequestSize/2), http.StatusBadRequest)
			return
		}
		if len(req.JobDescription) > int(s.MaxRequestSize/2) {
			err := fmt.Errorf("job description too large: %d chars", len(req.JobDescription))
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Job description too large", fmt.Sprintf("jobDescription exceeds recommended size limit of %d characters", s.MaxRequestSize/2), http.StatusBadRequest)
			return
		}

		span.SetAttributes(
			attribute.Int("request.resume_length", len(req.ResumeText)),
			attribute.Int("request.job_length", len(req.JobDescription)),
			attribute.String("operation", "score"),
		)

		metrics := om.GetMetrics()
		result, err := s.runScoredMatch(ctx, om, "score", req.ResumeText, req.JobDescription)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "match_processing"))
			metrics.RecordBusinessMetric(ctx, "match_scored", false, om,
				attribute.String("error", err.Error()))
			writeErrorResponse(w, "Failed to score match", err.Error(), http.StatusInternalServerError)
			return
		}

		metrics.RecordBusinessMetric(ctx, "match_scored", true, om,
			attribute.Int("score.overall", result.MatchScores.OverallScore),
			attribute.Bool("semantic_used", result.Details.SemanticMatchingUsed))
		metrics.RecordMatchScore(ctx, float64(result.MatchScores.OverallScore), om,
			attribute.String("operation", "score"))

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.Int("score.overall", result.MatchScores.OverallScore),
		)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			span.RecordError(err)
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		}
	}
}

// runScoredMatch executes the matcher under match operation tracking
func (s *Server) runScoredMatch(ctx context.Context, om *observability.ObservabilityManager, operation, resumeText, jobDescription string) (types.MatchResult, error) {
	metrics := om.GetMetrics()
	var result types.MatchResult
	err := metrics.TrackMatchOperation(ctx, operation, func(ctx context.Context) *observability.MatchOperationResult {
		matched, matchErr := s.Matcher.Match(ctx, resumeText, jobDescription)
		result = matched
		return &observability.MatchOperationResult{
			Error:     matchErr,
			ModelInfo: s.matchModelInfo(),
		}
	}, om)
	return result, err
}

// matchModelInfo reports the embedding model serving matches, nil when the
// server runs with keyword matching only
func (s *Server) matchModelInfo() *observability.ModelInfo {
	if s.Matcher == nil || !s.Matcher.SemanticEnabled() {
		return nil
	}
	return &observability.ModelInfo{
		Provider: s.AppConfig.Embedding.Provider,
		Model:    s.AppConfig.Embedding.Model,
	}
}

// wantsJSON reports whether the client asked for a JSON response. API clients
// either send a JSON content type or include application/json in Accept.
func wantsJSON(r *http.Request) bool {
	if r.Header.Get("Content-Type") == "application/json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// createRateLimitMiddleware counts rate limited requests. The limiter itself
// only writes a 429, so the response status is captured to know when it fired.
func (s *Server) createRateLimitMiddleware(om *observability.ObservabilityManager) func(http.HandlerFunc) http.HandlerFunc {
	originalMiddleware := s.rateLimitMiddleware()

	return func(next http.HandlerFunc) http.HandlerFunc {
		return originalMiddleware(func(w http.ResponseWriter, r *http.Request) {
			wrapper := &responseWrapper{ResponseWriter: w, statusCode: 200}

			next(wrapper, r)

			if wrapper.statusCode == http.StatusTooManyRequests {
				metrics := om.GetMetrics()
				metrics.RecordBusinessMetric(r.Context(), "rate_limit_hit", true, om,
					attribute.String("endpoint", r.URL.Path),
					attribute.String("method", r.Method))
			}
		})
	}
}

// responseWrapper records the status code written by the wrapped handler.
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
