package docfields

import (
	"time"

	"go.uber.org/zap"

	"github.com/lvillar/docfields/document"
	"github.com/lvillar/docfields/field"
)

// Option is a functional option for configuring a new Session via New.
type Option func(*sessionConfig)

type sessionConfig struct {
	logger      *zap.Logger
	tokens      []string
	maxFileSize int64
	minWidth    float64
	minHeight   float64
	normalizer  document.Normalizer
	clock       func() time.Time
}

// WithLogger sets the logger shared by every component of the session.
func WithLogger(l *zap.Logger) Option {
	return func(c *sessionConfig) {
		c.logger = l
	}
}

// WithTokens sets the merge-token vocabulary fields may bind to.
// The slice is copied.
func WithTokens(tokens []string) Option {
	return func(c *sessionConfig) {
		c.tokens = append([]string(nil), tokens...)
	}
}

// WithMaxFileSize sets the per-file intake ceiling in bytes.
func WithMaxFileSize(n int64) Option {
	return func(c *sessionConfig) {
		c.maxFileSize = n
	}
}

// WithMinSize sets the minimum field width and height in document units.
func WithMinSize(width, height float64) Option {
	return func(c *sessionConfig) {
		c.minWidth = width
		c.minHeight = height
	}
}

// WithNormalizer replaces the normalizer used for uploaded documents.
func WithNormalizer(n document.Normalizer) Option {
	return func(c *sessionConfig) {
		c.normalizer = n
	}
}

// WithClock sets the time source used to stamp saved templates.
func WithClock(now func() time.Time) Option {
	return func(c *sessionConfig) {
		c.clock = now
	}
}

func defaultConfig() *sessionConfig {
	return &sessionConfig{
		logger:      zap.NewNop(),
		maxFileSize: document.DefaultMaxFileSize,
		minWidth:    field.DefaultMinWidth,
		minHeight:   field.DefaultMinHeight,
		clock:       time.Now,
	}
}
