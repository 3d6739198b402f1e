package cards

import (
	"context"

	"github.com/Abraxas-365/flashmoji/pkg/kernel"
)

type Repository interface {
	FindByID(ctx context.Context, id kernel.EntryID) (*WordEntry, error)
	List(ctx context.Context, filter ListFilter, opts kernel.PaginationOptions) (kernel.Paginated[WordEntry], error)
	Upsert(ctx context.Context, entry WordEntry) error
	UpdateImage(ctx context.Context, id kernel.EntryID, update ImageUpdate) error
	UpdatePrompt(ctx context.Context, id kernel.EntryID, prompt string, status PromptStatus) error
	UpdateCategorization(ctx context.Context, id kernel.EntryID, c *Categorization, status CategorizationStatus) error
}
