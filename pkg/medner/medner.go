// Package medner wraps AWS Comprehend Medical's SNOMED CT and RxNorm
// inference endpoints behind a single client used by the standardizer.
package medner

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/comprehendmedical"
	"github.com/aws/aws-sdk-go-v2/service/comprehendmedical/types"

	"github.com/BiographAI/biograph/engine/domain"
	"github.com/BiographAI/biograph/pkg/resilience"
)

// DefaultLimiterOpts keeps the fan-out under Comprehend Medical's
// per-account rate limit.
var DefaultLimiterOpts = resilience.LimiterOpts{Rate: 10, Burst: 10}

// System identifies which concept vocabulary a client call targets.
type System string

const (
	SystemSNOMEDCT System = "SNOMEDCT"
	SystemRxNorm   System = "RXNORM"
)

// Concept is a single candidate returned by the NER service for a span of
// input text.
type Concept struct {
	Code  string
	Text  string
	Score float64
}

// API is the subset of the generated SDK client this package depends on,
// letting tests substitute a fake instead of calling AWS.
type API interface {
	InferSNOMEDCT(ctx context.Context, params *comprehendmedical.InferSNOMEDCTInput, optFns ...func(*comprehendmedical.Options)) (*comprehendmedical.InferSNOMEDCTOutput, error)
	InferRxNorm(ctx context.Context, params *comprehendmedical.InferRxNormInput, optFns ...func(*comprehendmedical.Options)) (*comprehendmedical.InferRxNormOutput, error)
}

// Client calls AWS Comprehend Medical's InferSNOMEDCT and InferRxNorm
// operations.
type Client struct {
	api     API
	limiter *resilience.Limiter
	breaker *resilience.Breaker
}

// Option configures a Client.
type Option func(*Client)

// WithLimiter overrides DefaultLimiterOpts.
func WithLimiter(opts resilience.LimiterOpts) Option {
	return func(c *Client) { c.limiter = resilience.NewLimiter(opts) }
}

// WithBreaker overrides resilience.DefaultBreakerOpts.
func WithBreaker(opts resilience.BreakerOpts) Option {
	return func(c *Client) { c.breaker = resilience.NewBreaker(opts) }
}

// New creates a Client from a resolved AWS config.
func New(cfg aws.Config, opts ...Option) *Client {
	return newClient(comprehendmedical.NewFromConfig(cfg), opts...)
}

// NewWithAPI creates a Client wrapping a caller-supplied API implementation
// (used by tests).
func NewWithAPI(api API, opts ...Option) *Client {
	return newClient(api, opts...)
}

func newClient(api API, opts ...Option) *Client {
	c := &Client{
		api:     api,
		limiter: resilience.NewLimiter(DefaultLimiterOpts),
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Infer calls the operation for the given system against a clinical
// sentence, returning every candidate concept with its score. The caller
// (standardizer) applies the confidence gate; isolated terms should never
// be passed here directly — build a clinical sentence first. The call is
// rate-limited against the account's Comprehend Medical quota and
// circuit-broken so a run of failures stops hammering the service.
func (c *Client) Infer(ctx context.Context, sys System, clinicalText string) ([]Concept, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var concepts []Concept
	callErr := c.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		switch sys {
		case SystemSNOMEDCT:
			var out *comprehendmedical.InferSNOMEDCTOutput
			out, err = c.api.InferSNOMEDCT(ctx, &comprehendmedical.InferSNOMEDCTInput{Text: aws.String(clinicalText)})
			if err == nil {
				concepts = snomedConcepts(out.Entities)
			}
		case SystemRxNorm:
			var out *comprehendmedical.InferRxNormOutput
			out, err = c.api.InferRxNorm(ctx, &comprehendmedical.InferRxNormInput{Text: aws.String(clinicalText)})
			if err == nil {
				concepts = rxNormConcepts(out.Entities)
			}
		default:
			return fmt.Errorf("medner: unknown system %q", sys)
		}
		return err
	})
	if callErr != nil {
		if errors.Is(callErr, resilience.ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %v", domain.ErrMedNERTransient, callErr)
		}
		return nil, classifyErr(sys, callErr)
	}
	return concepts, nil
}

// classifyErr wraps a Comprehend Medical call failure with
// domain.ErrMedNERTransient when AWS reports it as retryable (internal
// server, service unavailable, throttling); other exceptions — a
// malformed request or an oversized document — propagate unwrapped so
// domain.IsRetryable stops the retry loop immediately.
func classifyErr(sys System, err error) error {
	var internal *types.InternalServerException
	var unavailable *types.ServiceUnavailableException
	var throttled *types.TooManyRequestsException
	if errors.As(err, &internal) || errors.As(err, &unavailable) || errors.As(err, &throttled) {
		return fmt.Errorf("%w: infer %s: %v", domain.ErrMedNERTransient, sys, err)
	}
	return fmt.Errorf("infer %s: %w", sys, err)
}

func snomedConcepts(entities []types.SNOMEDCTEntity) []Concept {
	var out []Concept
	for _, e := range entities {
		for _, cc := range e.SNOMEDCTConcepts {
			out = append(out, Concept{
				Code:  aws.ToString(cc.Code),
				Text:  aws.ToString(cc.Description),
				Score: float64(aws.ToFloat32(cc.Score)),
			})
		}
	}
	return out
}

func rxNormConcepts(entities []types.RxNormEntity) []Concept {
	var out []Concept
	for _, e := range entities {
		for _, cc := range e.RxNormConcepts {
			out = append(out, Concept{
				Code:  aws.ToString(cc.Code),
				Text:  aws.ToString(cc.Description),
				Score: float64(aws.ToFloat32(cc.Score)),
			})
		}
	}
	return out
}
