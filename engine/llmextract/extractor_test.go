package llmextract

import (
	"context"
	"errors"
	"testing"

	"github.com/BiographAI/biograph/engine/domain"
	"github.com/BiographAI/biograph/pkg/fn"
)

func fastRetry(maxAttempts int) fn.RetryOpts {
	return fn.RetryOpts{MaxAttempts: maxAttempts, InitialWait: 0, MaxWait: 0, Retryable: domain.IsRetryable}
}

func TestClassifyBackendErrDefaultsToTransient(t *testing.T) {
	err := ClassifyBackendErr(errors.New("connection reset"))
	if !domain.IsRetryable(err) {
		t.Errorf("expected a bare network-style error to classify as transient, got %v", err)
	}
}

func TestClassifyBackendErrNil(t *testing.T) {
	if ClassifyBackendErr(nil) != nil {
		t.Error("expected nil passthrough")
	}
}

type countingBackend struct {
	calls     int
	failUntil int
	ok        string
}

func (b *countingBackend) Complete(_ context.Context, _ string, _ int, _ float64) (string, error) {
	b.calls++
	if b.calls <= b.failUntil {
		return "", errors.New("transient timeout")
	}
	return b.ok, nil
}

func TestExtractRetriesTransientFailureThenSucceeds(t *testing.T) {
	backend := &countingBackend{failUntil: 2, ok: `{"entities": [], "relationships": []}`}
	e := New(backend, WithRetry(fastRetry(3)))

	res := e.Extract(context.Background(), "chunk text", "human")
	if backend.calls != 3 {
		t.Fatalf("expected 3 calls (2 failures + success), got %d", backend.calls)
	}
	if len(res.Entities) != 0 || len(res.Relationships) != 0 {
		t.Fatalf("unexpected non-empty result: %+v", res)
	}
}

func TestExtractGivesUpAfterRetriesExhausted(t *testing.T) {
	backend := &countingBackend{failUntil: 10, ok: `{"entities": [], "relationships": []}`}
	e := New(backend, WithRetry(fastRetry(2)))

	res := e.Extract(context.Background(), "chunk text", "human")
	if backend.calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", backend.calls)
	}
	if len(res.Entities) != 0 {
		t.Fatalf("expected empty result on exhaustion, got %+v", res)
	}
}
