package middlewares

import (
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/anvil/internal"
)

// Preset name and priority for response compression.
const (
	CompressionName     = "compression"
	CompressionPriority = 50
)

// DefaultCompressionLevel balances speed and ratio for gzip and deflate.
const DefaultCompressionLevel = 5

// CompressionConfig configures the compression middleware.
type CompressionConfig struct {
	// Level is the compression level, 1 (fastest) to 9 (best).
	Level int

	// ContentTypes restricts compression to the listed types. Empty
	// uses chi's default compressible set.
	ContentTypes []string
}

// CompressionOption configures CompressionConfig.
type CompressionOption func(*CompressionConfig)

// WithCompressionLevel sets the compression level.
func WithCompressionLevel(level int) CompressionOption {
	return func(cfg *CompressionConfig) {
		cfg.Level = level
	}
}

// WithCompressionTypes restricts compression to the given content types.
func WithCompressionTypes(types ...string) CompressionOption {
	return func(cfg *CompressionConfig) {
		cfg.ContentTypes = types
	}
}

// Compression returns a descriptor that negotiates gzip or deflate
// response encoding.
func Compression(opts ...CompressionOption) *internal.Middleware {
	cfg := &CompressionConfig{Level: DefaultCompressionLevel}
	for _, opt := range opts {
		opt(cfg)
	}

	return &internal.Middleware{
		Name:     CompressionName,
		Category: internal.CategoryCompression,
		Priority: CompressionPriority,
		Handler:  chimiddleware.Compress(cfg.Level, cfg.ContentTypes...),
	}
}
