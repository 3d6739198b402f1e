// Package imagexreplicate runs image jobs on Replicate. The default model is
// the sdxl-emoji fine-tune; prompts are wrapped in its "A TOK emoji of"
// trigger phrase.
package imagexreplicate

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Abraxas-365/flashmoji/pkg/imagex"
	"github.com/replicate/replicate-go"
)

const (
	// DefaultModel is the sdxl-emoji version the prompt template is tuned for
	DefaultModel = "fofr/sdxl-emoji:dee76b5afde21b0f01ed7925f0665b7e879c50ee718c5f78a9d38e04d523cc5e"

	// DefaultPromptTemplate wraps the user prompt; %s is replaced
	DefaultPromptTemplate = "A TOK emoji of %s"
)

// DefaultInput returns the generation parameters sent with every prediction
func DefaultInput() replicate.PredictionInput {
	return replicate.PredictionInput{
		"negative_prompt":        "black skin, dark skin",
		"width":                  1152,
		"height":                 896,
		"num_outputs":            1,
		"num_inference_steps":    50,
		"guidance_scale":         7.5,
		"scheduler":              "K_EULER",
		"lora_scale":             0.6,
		"refine":                 "no_refiner",
		"apply_watermark":        false,
		"high_noise_frac":        0.8,
		"prompt_strength":        0.8,
		"disable_safety_checker": true,
	}
}

// Option configures a Provider
type Option func(*Provider)

// WithModel selects "owner/name:version"
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithPromptTemplate overrides the template; it must contain one %s
func WithPromptTemplate(tmpl string) Option {
	return func(p *Provider) {
		if strings.Contains(tmpl, "%s") {
			p.promptTemplate = tmpl
		}
	}
}

// WithInput merges extra model inputs over the defaults
func WithInput(input map[string]any) Option {
	return func(p *Provider) {
		for k, v := range input {
			p.input[k] = v
		}
	}
}

// WithPollInterval sets how often Await polls the prediction
func WithPollInterval(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithClientOptions passes options to the replicate client (base URL,
// HTTP client)
func WithClientOptions(opts ...replicate.ClientOption) Option {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

// Provider implements imagex.Provider on Replicate predictions
type Provider struct {
	client         *replicate.Client
	model          string
	version        string
	promptTemplate string
	input          replicate.PredictionInput
	pollInterval   time.Duration
	clientOpts     []replicate.ClientOption
}

// NewProvider creates a Replicate backend. An empty token falls back to
// REPLICATE_API_TOKEN.
func NewProvider(token string, opts ...Option) (*Provider, error) {
	if token == "" {
		token = os.Getenv("REPLICATE_API_TOKEN")
	}
	if token == "" {
		return nil, replicateErrors.New(ErrMissingToken)
	}

	p := &Provider{
		model:          DefaultModel,
		promptTemplate: DefaultPromptTemplate,
		input:          DefaultInput(),
		pollInterval:   time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}

	version, err := versionOf(p.model)
	if err != nil {
		return nil, err
	}
	p.version = version

	client, err := replicate.NewClient(append([]replicate.ClientOption{replicate.WithToken(token)}, p.clientOpts...)...)
	if err != nil {
		return nil, replicateErrors.NewWithCause(ErrClientInit, err)
	}
	p.client = client

	return p, nil
}

// Name implements imagex.Provider
func (p *Provider) Name() string {
	return "replicate"
}

// Model returns the configured model identifier
func (p *Provider) Model() string {
	return p.model
}

// Prompt renders the text actually sent to the model
func (p *Provider) Prompt(prompt string) string {
	return fmt.Sprintf(p.promptTemplate, prompt)
}

// Submit creates a prediction and returns its ID
func (p *Provider) Submit(ctx context.Context, prompt string) (string, error) {
	input := make(replicate.PredictionInput, len(p.input)+1)
	for k, v := range p.input {
		input[k] = v
	}
	input["prompt"] = p.Prompt(prompt)

	prediction, err := p.client.CreatePrediction(ctx, p.version, input, nil, false)
	if err != nil {
		return "", imagex.SubmissionError(err).WithDetail("model", p.model)
	}
	return prediction.ID, nil
}

// Await polls the prediction until it terminates and returns its raw output
func (p *Provider) Await(ctx context.Context, handle string) (any, error) {
	prediction, err := p.client.GetPrediction(ctx, handle)
	if err != nil {
		return nil, imagex.ExecutionError(err).WithDetail("handle", handle)
	}

	if err := p.client.Wait(ctx, prediction, replicate.WithPollingInterval(p.pollInterval)); err != nil {
		return nil, imagex.ExecutionError(err).WithDetail("handle", handle)
	}

	switch prediction.Status {
	case replicate.Succeeded:
		return prediction.Output, nil
	case replicate.Failed, replicate.Canceled:
		return nil, imagex.ExecutionFailure(failureMessage(prediction)).
			WithDetail("handle", handle).
			WithDetail("status", string(prediction.Status))
	default:
		return nil, imagex.ExecutionFailure("prediction ended in status " + string(prediction.Status)).
			WithDetail("handle", handle)
	}
}

func failureMessage(p *replicate.Prediction) string {
	if p.Error != nil {
		if msg := fmt.Sprint(p.Error); msg != "" {
			return msg
		}
	}
	return "prediction " + string(p.Status)
}

// versionOf extracts the version hash from "owner/name:version"
func versionOf(model string) (string, error) {
	i := strings.LastIndex(model, ":")
	if i < 0 || i == len(model)-1 {
		return "", replicateErrors.New(ErrInvalidModel).WithDetail("model", model)
	}
	return model[i+1:], nil
}
