// Package imagexopenai generates images with the OpenAI Images API. The API
// is synchronous, so Submit starts the request on a future and hands back a
// local handle that Await resolves.
package imagexopenai

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/Abraxas-365/flashmoji/pkg/ai/providers/aiopenai"
	"github.com/Abraxas-365/flashmoji/pkg/asyncx"
	"github.com/Abraxas-365/flashmoji/pkg/imagex"
	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Option configures a Provider
type Option func(*Provider)

// WithModel selects the image model (dall-e-3, gpt-image-1, ...)
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithSize sets the requested image size, e.g. "1024x1024"
func WithSize(size string) Option {
	return func(p *Provider) {
		if size != "" {
			p.size = size
		}
	}
}

// WithPromptPrefix prepends text to every prompt
func WithPromptPrefix(prefix string) Option {
	return func(p *Provider) {
		p.promptPrefix = prefix
	}
}

// WithRequestTimeout bounds one generation request
func WithRequestTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithRequestOptions passes options to the OpenAI client
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(p *Provider) {
		p.requestOpts = append(p.requestOpts, opts...)
	}
}

// Provider implements imagex.Provider on the OpenAI Images API
type Provider struct {
	client       openai.Client
	model        string
	size         string
	promptPrefix string
	timeout      time.Duration
	requestOpts  []option.RequestOption

	mu      sync.Mutex
	pending map[string]*asyncx.Future[any]
}

// NewProvider creates an OpenAI image backend. An empty apiKey falls back
// to OPENAI_API_KEY.
func NewProvider(apiKey string, opts ...Option) *Provider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	p := &Provider{
		model:        string(openai.ImageModelDallE3),
		size:         "1024x1024",
		promptPrefix: "A single flat emoji-style icon on a plain white background of ",
		timeout:      2 * time.Minute,
		pending:      make(map[string]*asyncx.Future[any]),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.client = openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, p.requestOpts...)...)
	return p
}

// Name implements imagex.Provider
func (p *Provider) Name() string {
	return "openai"
}

// Submit starts the generation and returns a local handle. The request is
// detached from ctx's cancellation but bounded by the request timeout.
func (p *Provider) Submit(ctx context.Context, prompt string) (string, error) {
	handle := "img_" + uuid.NewString()
	reqCtx := context.WithoutCancel(ctx)

	future := asyncx.Run(func() (any, error) {
		reqCtx, cancel := context.WithTimeout(reqCtx, p.timeout)
		defer cancel()
		return p.generate(reqCtx, prompt)
	})

	p.mu.Lock()
	p.pending[handle] = future
	p.mu.Unlock()

	return handle, nil
}

// Await blocks on the future behind handle. A handle can be awaited once.
func (p *Provider) Await(ctx context.Context, handle string) (any, error) {
	p.mu.Lock()
	future, ok := p.pending[handle]
	p.mu.Unlock()
	if !ok {
		return nil, imagex.UnknownHandle(handle)
	}

	p.mu.Lock()
	delete(p.pending, handle)
	p.mu.Unlock()

	return future.AwaitContext(ctx)
}

func (p *Provider) generate(ctx context.Context, prompt string) (any, error) {
	params := openai.ImageGenerateParams{
		Prompt: p.promptPrefix + prompt,
		Model:  openai.ImageModel(p.model),
		N:      openai.Int(1),
		Size:   openai.ImageGenerateParamsSize(p.size),
	}
	if p.model == string(openai.ImageModelDallE3) || p.model == string(openai.ImageModelDallE2) {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormatURL
	}

	resp, err := p.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, aiopenai.ParseOpenAIError(err).WithDetail("model", p.model)
	}

	images := make([]any, 0, len(resp.Data))
	for _, img := range resp.Data {
		images = append(images, generatedImage{url: img.URL, b64: img.B64JSON})
	}
	if len(images) == 0 {
		return nil, aiopenai.NewError(aiopenai.ErrNoImageReturned).WithDetail("model", p.model)
	}
	return images, nil
}

// generatedImage exposes an OpenAI image as an imagex.URLer. Base64-only
// responses become data URIs.
type generatedImage struct {
	url string
	b64 string
}

func (g generatedImage) URL() string {
	if g.url != "" {
		return g.url
	}
	if g.b64 != "" {
		return "data:image/png;base64," + g.b64
	}
	return ""
}
