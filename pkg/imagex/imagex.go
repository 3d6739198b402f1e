// Package imagex is the generation client: it submits a prompt to an image
// provider, waits for the job to resolve and turns whatever the provider
// returned into one validated URL.
package imagex

import (
	"context"
	"strings"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
	"github.com/Abraxas-365/flashmoji/pkg/logx"
)

// Provider is an external image-generation backend. Submit returns an
// opaque handle; Await blocks until that handle resolves and returns the
// provider's raw, possibly polymorphic, output.
type Provider interface {
	Name() string
	Submit(ctx context.Context, prompt string) (string, error)
	Await(ctx context.Context, handle string) (any, error)
}

// Client wraps a Provider with error classification and output
// normalization.
type Client struct {
	provider Provider
}

// NewClient creates a client for provider
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// ProviderName returns the backend name, used in logs and job snapshots
func (c *Client) ProviderName() string {
	return c.provider.Name()
}

// Submit hands prompt to the provider. Any failure is ErrSubmissionFailed.
func (c *Client) Submit(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", imagexErrors.New(ErrEmptyPrompt)
	}

	handle, err := c.provider.Submit(ctx, prompt)
	if err != nil {
		if errx.IsCode(err, ErrSubmissionFailed) {
			return "", err
		}
		return "", SubmissionError(err).WithDetail("provider", c.provider.Name())
	}

	logx.WithFields(logx.Fields{
		"component": "imagex",
		"provider":  c.provider.Name(),
		"handle":    handle,
	}).Debug("job submitted")

	return handle, nil
}

// AwaitResult waits for handle and returns the normalized output URL.
// Provider failures, unrecognized output and invalid URLs are all errors.
func (c *Client) AwaitResult(ctx context.Context, handle string) (string, error) {
	raw, err := c.provider.Await(ctx, handle)
	if err != nil {
		if errx.IsCode(err, ErrExecutionFailed) {
			return "", err
		}
		return "", ExecutionError(err).
			WithDetail("provider", c.provider.Name()).
			WithDetail("handle", handle)
	}

	s, err := NormalizeOutput(raw)
	if err != nil {
		return "", err
	}
	return ValidateURL(s)
}
