// Package assetx republishes provider-hosted images into durable storage.
package assetx

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/Abraxas-365/flashmoji/pkg/fsx"
	"github.com/Abraxas-365/flashmoji/pkg/kernel"
	"github.com/Abraxas-365/flashmoji/pkg/logx"
)

const (
	// DefaultContentType is stored when the source does not declare one
	DefaultContentType = "image/png"

	defaultMaxBytes = 20 << 20
)

// Option configures a Publisher
type Option func(*Publisher)

// WithHTTPClient sets the client used to download source images
func WithHTTPClient(c *http.Client) Option {
	return func(p *Publisher) {
		p.http = c
	}
}

// WithKeyPrefix stores objects under prefix, e.g. "images"
func WithKeyPrefix(prefix string) Option {
	return func(p *Publisher) {
		p.prefix = strings.Trim(prefix, "/")
	}
}

// WithMaxBytes caps the download size
func WithMaxBytes(n int64) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

// WithCacheControl sets Cache-Control on stored objects
func WithCacheControl(v string) Option {
	return func(p *Publisher) {
		p.cacheControl = v
	}
}

// Publisher downloads an image and writes it under a key derived from the
// entry id, replacing any earlier image for that entry.
type Publisher struct {
	store        fsx.ObjectStore
	http         *http.Client
	prefix       string
	maxBytes     int64
	cacheControl string

	ensureMu sync.Mutex
	ensured  bool
}

// NewPublisher creates a publisher writing to store
func NewPublisher(store fsx.ObjectStore, opts ...Option) *Publisher {
	p := &Publisher{
		store:    store,
		http:     &http.Client{Timeout: 60 * time.Second},
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Key returns the storage key for entryID
func (p *Publisher) Key(entryID kernel.EntryID) string {
	name := entryID.String() + ".png"
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// Publish copies sourceURL into the store and returns the public URL
func (p *Publisher) Publish(ctx context.Context, sourceURL string, entryID kernel.EntryID) (string, error) {
	data, contentType, err := p.fetch(ctx, sourceURL)
	if err != nil {
		return "", err
	}

	if err := p.ensureContainer(ctx); err != nil {
		return "", err
	}

	key := p.Key(entryID)
	opts := []fsx.WriteOption{fsx.WithContentType(contentType)}
	if p.cacheControl != "" {
		opts = append(opts, fsx.WithCacheControl(p.cacheControl))
	}
	if err := p.store.WriteFile(ctx, key, data, opts...); err != nil {
		return "", assetErrors.NewWithCause(ErrStoreFailed, err).WithDetail("key", key)
	}

	publicURL := p.store.PublicURL(key)
	logx.WithFields(logx.Fields{
		"component":    "assetx",
		"entry_id":     entryID,
		"key":          key,
		"bytes":        len(data),
		"content_type": contentType,
	}).Debug("image published")

	return publicURL, nil
}

// ensureContainer runs EnsureContainer until it first succeeds
func (p *Publisher) ensureContainer(ctx context.Context) error {
	p.ensureMu.Lock()
	defer p.ensureMu.Unlock()

	if p.ensured {
		return nil
	}
	if err := p.store.EnsureContainer(ctx); err != nil {
		return assetErrors.NewWithCause(ErrStoreFailed, err)
	}
	p.ensured = true
	return nil
}

func (p *Publisher) fetch(ctx context.Context, sourceURL string) ([]byte, string, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return nil, "", assetErrors.NewWithCause(ErrInvalidSource, err).WithDetail("url", sourceURL)
	}

	switch u.Scheme {
	case "http", "https":
	case "data":
		return decodeDataURI(sourceURL)
	default:
		return nil, "", assetErrors.New(ErrInvalidSource).WithDetail("url", sourceURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", assetErrors.NewWithCause(ErrInvalidSource, err).WithDetail("url", sourceURL)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, "", assetErrors.NewWithCause(ErrFetchFailed, err).WithDetail("url", sourceURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", assetErrors.NewWithMessage(ErrFetchFailed,
			fmt.Sprintf("failed to fetch image: %s", resp.Status)).
			WithDetail("url", sourceURL).
			WithDetail("status", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, "", assetErrors.NewWithCause(ErrFetchFailed, err).WithDetail("url", sourceURL)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, "", assetErrors.New(ErrTooLarge).WithDetail("limit", p.maxBytes)
	}

	return data, contentTypeOf(resp.Header.Get("Content-Type")), nil
}

// contentTypeOf keeps the declared media type, dropping parameters
func contentTypeOf(header string) string {
	if header == "" {
		return DefaultContentType
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil || mt == "" {
		return DefaultContentType
	}
	return mt
}

// decodeDataURI handles "data:<type>;base64,<payload>"
func decodeDataURI(uri string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, "", assetErrors.New(ErrInvalidSource).WithDetail("reason", "only base64 data URIs are supported")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", assetErrors.NewWithCause(ErrInvalidSource, err)
	}
	return data, contentTypeOf(strings.TrimSuffix(meta, ";base64")), nil
}
