package embedding

import "context"

// Provider interface for different embedding backends.
// Embed returns the vector for a single piece of text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	Name() string
	Close() error
}

// ModelInfo represents information about the embedding model
type ModelInfo struct {
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Dimensions  int    `json:"dimensions,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}
