package llmextract

import (
	"context"
	"log/slog"
	"time"

	"github.com/BiographAI/biograph/engine/domain"
	"github.com/BiographAI/biograph/pkg/fn"
)

// DefaultRetry is the LLM retry policy: three additional attempts after
// the first, 2s initial wait, backoff factor 2, only for
// declared-transient errors.
var DefaultRetry = fn.RetryOpts{
	MaxAttempts: 4,
	InitialWait: 2 * time.Second,
	MaxWait:     30 * time.Second,
	Jitter:      true,
	Retryable:   domain.IsRetryable,
}

// DefaultMaxTokens is sized generously to avoid truncating the
// entities/relationships JSON.
const DefaultMaxTokens = 8192

// DefaultTemperature keeps extraction close to deterministic.
const DefaultTemperature = 0.1

// Extractor is the LLM Extraction Client: it renders the extraction
// prompt, calls a pluggable Backend with retry, and recovers a
// vocabulary-filtered Result from the response.
type Extractor struct {
	backend     Backend
	maxTokens   int
	temperature float64
	retry       fn.RetryOpts
	log         *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxTokens overrides DefaultMaxTokens.
func WithMaxTokens(n int) Option { return func(e *Extractor) { e.maxTokens = n } }

// WithTemperature overrides DefaultTemperature.
func WithTemperature(t float64) Option { return func(e *Extractor) { e.temperature = t } }

// WithRetry overrides DefaultRetry.
func WithRetry(opts fn.RetryOpts) Option { return func(e *Extractor) { e.retry = opts } }

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option { return func(e *Extractor) { e.log = log } }

// New creates an Extractor backed by backend.
func New(backend Backend, opts ...Option) *Extractor {
	e := &Extractor{
		backend:     backend,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		retry:       DefaultRetry,
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract runs one extraction call for chunkText. On retry exhaustion or
// unparseable output it returns an empty Result rather than propagating
// an error — the chunk orchestrator
// treats both the same way.
func (e *Extractor) Extract(ctx context.Context, chunkText, documentSpecies string) Result {
	prompt := BuildPrompt(chunkText, documentSpecies)

	completion := fn.Retry(ctx, e.retry, func(ctx context.Context) fn.Result[string] {
		text, err := e.backend.Complete(ctx, prompt, e.maxTokens, e.temperature)
		if err != nil {
			return fn.Err[string](ClassifyBackendErr(err))
		}
		return fn.Ok(text)
	})

	text, err := completion.Unwrap()
	if err != nil {
		e.log.Warn("llmextract: extraction call failed after retries, chunk yields no data", "error", err)
		return Result{}
	}
	return Parse(e.log, text)
}
