package llmextract

import (
	"context"
	"errors"
	"fmt"

	"github.com/BiographAI/biograph/engine/domain"
	"github.com/BiographAI/biograph/pkg/resilience"
)

// BreakerBackend wraps a Backend with a circuit breaker so repeated LLM
// provider failures stop hammering the API and degrade fast instead.
type BreakerBackend struct {
	backend Backend
	breaker *resilience.Breaker
}

// NewBreakerBackend wraps backend with a circuit breaker configured by
// opts.
func NewBreakerBackend(backend Backend, opts resilience.BreakerOpts) *BreakerBackend {
	return &BreakerBackend{backend: backend, breaker: resilience.NewBreaker(opts)}
}

// Complete calls the wrapped backend through the circuit breaker. An open
// circuit is reported as domain.ErrLLMTransient so the caller's retry loop
// treats it the same as any other transient LLM failure.
func (b *BreakerBackend) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	var text string
	err := b.breaker.Call(ctx, func(ctx context.Context) error {
		var callErr error
		text, callErr = b.backend.Complete(ctx, prompt, maxTokens, temperature)
		return callErr
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return "", fmt.Errorf("%w: %v", domain.ErrLLMTransient, err)
		}
		return "", ClassifyBackendErr(err)
	}
	return text, nil
}
