package server

import (
	"fmt"

	"resumatch/internal/utils"
)

// displayServerInfo prints the effective runtime configuration at startup so
// an operator can see at a glance what the server will and will not do.
func (s *Server) displayServerInfo() {
	fmt.Println("Available endpoints:")
	fmt.Println("  GET  /          - Resume upload form")
	fmt.Println("  GET  /health    - Health check")
	fmt.Println("  GET  /stats     - Server statistics")
	fmt.Println("  POST /match     - Match an uploaded resume against a job description (requires API key)")
	fmt.Println("  POST /score     - Match pre-extracted resume text against a job description (requires API key)")

	if s.Matcher != nil && s.Matcher.SemanticEnabled() {
		fmt.Printf("Semantic matching: ENABLED (provider: %s, model: %s)\n",
			s.AppConfig.Embedding.Provider, s.AppConfig.Embedding.Model)
	} else {
		fmt.Println("Semantic matching: DISABLED (using keyword matching only)")
	}

	if len(s.APIKeys) > 0 {
		fmt.Printf("API authentication: ENABLED (%d keys configured)\n", len(s.APIKeys))
		fmt.Println("Include 'X-API-Key: <your-key>' header in requests to /match and /score")
	} else {
		fmt.Println("API authentication: DISABLED (no API keys configured)")
		fmt.Println("WARNING: API endpoints are publicly accessible!")
	}

	if s.MaxRequestSize > 0 {
		fmt.Printf("Request size limit: %d bytes (%s)\n",
			s.MaxRequestSize, utils.FormatFileSize(s.MaxRequestSize))
	} else {
		fmt.Println("Request size limit: DISABLED")
		fmt.Println("WARNING: No request size limits configured!")
	}

	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Printf("Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByAPIKey {
			fmt.Println("  - Per API key rate limiting enabled")
		}
		if s.RateLimit.ByIP {
			fmt.Println("  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Println("Rate limiting: DISABLED")
		fmt.Println("WARNING: No rate limiting configured!")
	}
}
