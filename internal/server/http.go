package server

import (
	"time"

	"resumatch/internal/config"
	"resumatch/internal/embedding"
	resumatchErrors "resumatch/internal/errors"
	"resumatch/internal/extract"
	"resumatch/internal/matcher"
)

// ErrorResponse is the JSON error body returned by all endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Server holds the HTTP server state. Matcher carries the scoring pipeline;
// Embedding is nil when semantic matching is disabled.
type Server struct {
	Host    string
	Port    string
	Version string

	AppConfig *config.Config

	TLSConfig          config.TLSConfig
	CertificateManager *CertificateManager

	// API keys as a set; an empty set disables authentication
	APIKeys map[string]bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MaxRequestSize int64

	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	Matcher   *matcher.Matcher
	Embedding *embedding.Service
	Extractor *extract.Extractor

	Logger *resumatchErrors.Logger
}

// ServerConfig carries the constructor parameters for Server
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
}

// NewServer creates a new Server instance from a ServerConfig struct.
// embeddingSvc may be nil when the process runs with keyword matching only.
func NewServer(appCfg *config.Config, cfg ServerConfig, m *matcher.Matcher, embeddingSvc *embedding.Service, logger *resumatchErrors.Logger) *Server {
	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.Window,
			cfg.RateLimit.BurstCapacity,
			logger,
		)
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		TLSConfig:      cfg.TLSConfig,
		APIKeys:        apiKeyMap,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Matcher:        m,
		Embedding:      embeddingSvc,
		Extractor:      extract.New(logger),
		Logger:         logger,
	}
}
