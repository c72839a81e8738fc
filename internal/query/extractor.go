package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/oceanlens/argo-engine/internal/observability"
)

// Extraction errors.
var (
	ErrExtractorUnavailable = errors.New("extractor unavailable")
	ErrExtractorTimeout     = errors.New("extractor timed out")
	ErrMalformedExtraction  = errors.New("malformed extractor output")
)

// Extractor turns a natural-language question into criteria. A failed
// extraction returns an error so the chain can try the next strategy.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, question string) (Criteria, error)
}

// RemoteExtractor calls the hosted natural-language extraction
// service over HTTP with a bounded timeout.
type RemoteExtractor struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// RemoteExtractorConfig configures the remote extractor.
type RemoteExtractorConfig struct {
	URL     string
	Timeout time.Duration
}

// NewRemoteExtractor creates a remote extractor. The timeout defaults
// to 30 seconds and is never allowed to exceed it.
func NewRemoteExtractor(cfg RemoteExtractorConfig) *RemoteExtractor {
	timeout := cfg.Timeout
	if timeout <= 0 || timeout > 30*time.Second {
		timeout = 30 * time.Second
	}
	return &RemoteExtractor{
		url:     cfg.URL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name identifies the strategy in logs.
func (e *RemoteExtractor) Name() string { return "remote" }

// Extract posts the question to the extraction service and decodes
// the criteria it returns.
func (e *RemoteExtractor) Extract(ctx context.Context, question string) (Criteria, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return Criteria{}, fmt.Errorf("encode extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return Criteria{}, fmt.Errorf("build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() != nil {
			return Criteria{}, ErrExtractorTimeout
		}
		return Criteria{}, fmt.Errorf("%w: %v", ErrExtractorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Criteria{}, fmt.Errorf("%w: status %d", ErrExtractorUnavailable, resp.StatusCode)
	}

	var criteria Criteria
	if err := json.NewDecoder(resp.Body).Decode(&criteria); err != nil {
		return Criteria{}, fmt.Errorf("%w: %v", ErrMalformedExtraction, err)
	}

	return criteria, nil
}

// KeywordExtractor is the deterministic rule-based fallback. It never
// fails.
type KeywordExtractor struct {
	normalizer *Normalizer
}

// NewKeywordExtractor creates a keyword extractor.
func NewKeywordExtractor(normalizer *Normalizer) *KeywordExtractor {
	return &KeywordExtractor{normalizer: normalizer}
}

// Name identifies the strategy in logs.
func (e *KeywordExtractor) Name() string { return "keyword" }

// Extract derives criteria from the fixed keyword tables.
func (e *KeywordExtractor) Extract(ctx context.Context, question string) (Criteria, error) {
	return e.normalizer.ExtractFromQuestion(question), nil
}

// Chain tries extractor strategies in order until one succeeds. The
// keyword extractor placed last guarantees the chain as a whole never
// fails, so extraction errors never surface to the caller.
type Chain struct {
	extractors []Extractor
	normalizer *Normalizer
	logger     *observability.Logger
}

// NewChain creates an extractor chain. Strategies run in the given
// order.
func NewChain(logger *observability.Logger, normalizer *Normalizer, extractors ...Extractor) *Chain {
	return &Chain{
		extractors: extractors,
		normalizer: normalizer,
		logger:     logger,
	}
}

// Extract runs the chain. Each successful extraction is validated and
// normalized; invalid output from an upstream strategy counts as a
// failure and control falls through to the next strategy.
func (c *Chain) Extract(ctx context.Context, question string) (Criteria, error) {
	var lastErr error
	for _, extractor := range c.extractors {
		criteria, err := extractor.Extract(ctx, question)
		if err != nil {
			c.logger.Warn().
				Str("strategy", extractor.Name()).
				Err(err).
				Msg("Extraction strategy failed, falling through")
			lastErr = err
			continue
		}

		normalized, err := c.normalizer.Normalize(criteria)
		if err != nil {
			c.logger.Warn().
				Str("strategy", extractor.Name()).
				Err(err).
				Msg("Extraction produced invalid criteria, falling through")
			lastErr = err
			continue
		}

		c.logger.Debug().
			Str("strategy", extractor.Name()).
			Msg("Extraction succeeded")
		return normalized, nil
	}

	if lastErr == nil {
		lastErr = ErrExtractorUnavailable
	}
	return Criteria{}, fmt.Errorf("all extraction strategies failed: %w", lastErr)
}
