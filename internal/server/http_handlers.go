package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Certificate expiry thresholds for health reporting.
const (
	certCriticalWindow = 24 * time.Hour
	certWarningWindow  = 7 * 24 * time.Hour
)

// healthHandler reports service health. A keyword-only server is healthy by
// definition; with semantic matching configured the embedding model is
// probed, and managed TLS certificates are checked for expiry. Any failing
// section degrades the response to 503.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	semanticEnabled := s.Matcher != nil && s.Matcher.SemanticEnabled()
	healthy := true

	response := map[string]any{
		"status":            "healthy",
		"service":           "resumatch",
		"version":           s.Version,
		"semantic_matching": semanticEnabled,
	}

	if semanticEnabled {
		embeddingStatus, ok := s.embeddingHealth()
		response["embedding"] = embeddingStatus
		healthy = healthy && ok
	}

	if certStatus, ok := s.certificateHealth(); certStatus != nil {
		response["certificates"] = certStatus
		healthy = healthy && ok
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		response["status"] = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.Logger.LogError(err, "Failed to encode health response")
	}
}

// embeddingHealth probes the embedding model under the configured timeout.
func (s *Server) embeddingHealth() (map[string]any, bool) {
	timeout := s.AppConfig.Observability.HealthCheck.ModelCheckTimeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	info := s.Embedding.GetModelInfo(ctx)
	if info == nil {
		return map[string]any{
			"available": false,
			"error":     "embedding service not initialized",
		}, false
	}

	status := map[string]any{
		"available": info.Available,
		"provider":  info.Provider,
		"model":     info.Name,
	}
	if info.Dimensions > 0 {
		status["dimensions"] = info.Dimensions
	}
	if info.Error != "" {
		status["error"] = info.Error
	}
	return status, info.Available
}

// certificateHealth reports expiry and reload state for managed certificates.
// A nil map means the server runs without a certificate manager.
func (s *Server) certificateHealth() (map[string]any, bool) {
	if s.CertificateManager == nil {
		return nil, true
	}

	timeToExpiry, err := s.CertificateManager.CheckExpiry()
	if err != nil {
		return map[string]any{
			"healthy": false,
			"error":   fmt.Sprintf("Failed to check certificate expiry: %v", err),
		}, false
	}

	healthy := true
	var status, message string
	switch {
	case timeToExpiry <= 0:
		healthy, status, message = false, "expired", "Certificate has expired"
	case timeToExpiry <= certCriticalWindow:
		healthy, status, message = false, "critical", "Certificate expires within 24 hours"
	case timeToExpiry <= certWarningWindow:
		status, message = "warning", "Certificate expires within 7 days"
	default:
		status, message = "ok", "Certificate is valid"
	}

	certStatus := map[string]any{
		"healthy":              healthy,
		"status":               status,
		"message":              message,
		"time_to_expiry_hours": int(timeToExpiry.Hours()),
		"time_to_expiry":       timeToExpiry.String(),
		"auto_reload":          s.autoReloadStatus(),
	}

	if metrics := s.CertificateManager.GetMetrics(); metrics != nil {
		certStatus["metrics"] = map[string]any{
			"reload_count":         metrics.ReloadCount,
			"reload_success_count": metrics.ReloadSuccessCount,
			"reload_failure_count": metrics.ReloadFailureCount,
			"last_reload_time":     metrics.LastReloadTime,
			"last_reload_success":  metrics.LastReloadSuccess,
			"last_reload_error":    metrics.LastReloadError,
		}
	}
	return certStatus, healthy
}

// autoReloadStatus describes the reload watchers attached to the certificate
// manager.
func (s *Server) autoReloadStatus() map[string]any {
	if !s.TLSConfig.AutoReload.Enabled {
		return map[string]any{"enabled": false}
	}

	status := map[string]any{
		"enabled":               true,
		"file_watcher_enabled":  s.TLSConfig.AutoReload.FileWatcher.Enabled,
		"vault_watcher_enabled": s.TLSConfig.AutoReload.VaultWatcher.Enabled,
	}
	if fw := s.CertificateManager.fileWatcher; fw != nil {
		status["file_watcher_running"] = fw.IsRunning()
		status["watched_files"] = fw.GetWatchedFiles()
	}
	if vw := s.CertificateManager.vaultWatcher; vw != nil {
		status["vault_watcher_status"] = vw.Status()
	}
	return status
}

// statsHandler exposes operational counters: request caps, rate limiting and
// certificate reload activity.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	matching := map[string]any{
		"semantic_enabled": s.Matcher != nil && s.Matcher.SemanticEnabled(),
		"provider":         s.AppConfig.Embedding.Provider,
	}
	if cb := s.Embedding.GetCircuitBreakerStats(); cb != nil {
		matching["circuit_breakers"] = cb
	}

	response := map[string]any{
		"service": "resumatch",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
		},
		"matching": matching,
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	if s.CertificateManager != nil {
		if metrics := s.CertificateManager.GetMetrics(); metrics != nil {
			response["certificates"] = map[string]any{
				"reload_count":         metrics.ReloadCount,
				"reload_success_count": metrics.ReloadSuccessCount,
				"reload_failure_count": metrics.ReloadFailureCount,
				"last_reload_success":  metrics.LastReloadSuccess,
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.Logger.LogError(err, "Failed to encode stats response")
	}
}

// parseJSONRequest decodes a JSON body into v. The content type must be
// exactly application/json, matching what API clients send.
func parseJSONRequest(r *http.Request, v any) error {
	if r.Header.Get("Content-Type") != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// writeErrorResponse emits the standard error envelope.
func writeErrorResponse(w http.ResponseWriter, errText, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: errText, Message: message}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}
