package jobx

import (
	"context"

	"github.com/Abraxas-365/flashmoji/pkg/cards"
	"github.com/Abraxas-365/flashmoji/pkg/kernel"
)

// Generator submits a prompt and resolves it to an image URL.
// *imagex.Client satisfies it.
type Generator interface {
	Submit(ctx context.Context, prompt string) (string, error)
	AwaitResult(ctx context.Context, handle string) (string, error)
}

// Publisher makes a provider-hosted image durable. *assetx.Publisher
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, sourceURL string, entryID kernel.EntryID) (string, error)
}

// EntryStore receives the final image state of an entry.
type EntryStore interface {
	UpdateImage(ctx context.Context, id kernel.EntryID, update cards.ImageUpdate) error
}

// EventSink observes job transitions. Sinks are called in order from a
// single goroutine; errors are logged and otherwise ignored.
type EventSink interface {
	HandleEvent(ctx context.Context, event Event) error
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(ctx context.Context, event Event) error

func (f EventSinkFunc) HandleEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}
