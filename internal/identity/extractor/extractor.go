package extractor

import (
	"context"

	"github.com/stayflow/stayflow-backend/internal/identity/domain"
	"github.com/stayflow/stayflow-backend/internal/ocr"
	"github.com/stayflow/stayflow-backend/pkg/errors"
	"github.com/stayflow/stayflow-backend/pkg/logger"
)

// Extractor turns raw OCR output into a structured identity.
// Implementations are pure: no side effects, no retained input.
type Extractor interface {
	// Extract parses one OCR result. Returns ErrExtractionFailed (wrapped)
	// when the input holds nothing this extractor can parse.
	Extract(ctx context.Context, res *ocr.Result) (*domain.ExtractedIdentity, error)

	// Name returns the extractor name for logging
	Name() string
}

// Chain tries extractors in registration order and returns the first
// successful identity. MRZ goes first so a machine-readable document is
// never parsed by the weaker free-text heuristics.
type Chain struct {
	extractors []Extractor
	logger     *logger.Logger
}

// NewChain creates an extractor chain
func NewChain(log *logger.Logger, extractors ...Extractor) *Chain {
	return &Chain{
		extractors: extractors,
		logger:     log.WithComponent("extractor-chain"),
	}
}

// Extract runs the chain. All extractors failing yields ExtractionFailed
// carrying the last error.
func (c *Chain) Extract(ctx context.Context, res *ocr.Result) (*domain.ExtractedIdentity, error) {
	var lastErr error

	for _, e := range c.extractors {
		identity, err := e.Extract(ctx, res)
		if err != nil {
			c.logger.Debug().
				Str("extractor", e.Name()).
				Err(err).
				Msg("extractor did not match")
			lastErr = err
			continue
		}

		c.logger.Debug().
			Str("extractor", e.Name()).
			Str("source_format", string(identity.SourceFormat)).
			Float64("confidence", identity.Confidence).
			Bool("needs_manual_review", identity.NeedsManualReview).
			Msg("identity extracted")

		return identity, nil
	}

	return nil, errors.ExtractionFailed(lastErr)
}
