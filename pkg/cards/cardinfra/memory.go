package cardinfra

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Abraxas-365/flashmoji/pkg/cards"
	"github.com/Abraxas-365/flashmoji/pkg/kernel"
)

// MemoryRepository keeps entries in a map. Used for local runs without a
// database and in tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[kernel.EntryID]cards.WordEntry
	now     func() time.Time
}

func NewMemoryRepository(seed ...cards.WordEntry) *MemoryRepository {
	r := &MemoryRepository{
		entries: make(map[kernel.EntryID]cards.WordEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, e := range seed {
		_ = r.Upsert(context.Background(), e)
	}
	return r
}

var _ cards.Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) FindByID(_ context.Context, id kernel.EntryID) (*cards.WordEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, cards.NotFound(id)
	}
	return cloneEntry(e), nil
}

func (r *MemoryRepository) List(_ context.Context, filter cards.ListFilter, opts kernel.PaginationOptions) (kernel.Paginated[cards.WordEntry], error) {
	opts = opts.Normalize(50, 500)

	r.mu.RLock()
	matched := make([]cards.WordEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if filter.ImageStatus != "" && e.ImageStatus != filter.ImageStatus {
			continue
		}
		if filter.LevelID > 0 && e.LevelID != filter.LevelID {
			continue
		}
		matched = append(matched, *cloneEntry(e))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	start := min(opts.Offset(), len(matched))
	end := min(start+opts.PageSize, len(matched))
	return kernel.NewPaginated(matched[start:end], opts.Page, opts.PageSize, len(matched)), nil
}

func (r *MemoryRepository) Upsert(_ context.Context, entry cards.WordEntry) error {
	if entry.ID.IsZero() || strings.TrimSpace(entry.OriginalText) == "" {
		return cards.NewError(cards.ErrInvalidEntry).WithDetail("entry_id", entry.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	existing, ok := r.entries[entry.ID]
	if !ok {
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		entry.PromptStatus = orDefault(entry.PromptStatus, cards.PromptStatusNone)
		entry.ImageStatus = orDefault(entry.ImageStatus, cards.ImageStatusNone)
		entry.CategorizationStatus = orDefault(entry.CategorizationStatus, cards.CategorizationStatusNone)
		entry.UpdatedAt = now
		r.entries[entry.ID] = *cloneEntry(entry)
		return nil
	}

	existing.OriginalText = entry.OriginalText
	existing.TranslationText = entry.TranslationText
	existing.LevelID = entry.LevelID
	existing.Transcription = entry.Transcription
	if entry.Prompt != "" {
		existing.Prompt = entry.Prompt
		existing.PromptStatus = orDefault(entry.PromptStatus, existing.PromptStatus)
	}
	if entry.ImageURL != "" {
		existing.ImageURL = entry.ImageURL
		existing.ImageStatus = orDefault(entry.ImageStatus, existing.ImageStatus)
	}
	existing.UpdatedAt = now
	r.entries[entry.ID] = existing
	return nil
}

func (r *MemoryRepository) UpdateImage(_ context.Context, id kernel.EntryID, update cards.ImageUpdate) error {
	return r.mutate(id, func(e *cards.WordEntry) {
		e.ImageStatus = update.ImageStatus
		if update.ImageURL != "" {
			e.ImageURL = update.ImageURL
		}
		if update.ProviderHandle != "" {
			e.ProviderHandle = update.ProviderHandle
		}
		if update.GeneratedAt != nil {
			t := *update.GeneratedAt
			e.ImageGeneratedAt = &t
		}
	})
}

func (r *MemoryRepository) UpdatePrompt(_ context.Context, id kernel.EntryID, prompt string, status cards.PromptStatus) error {
	return r.mutate(id, func(e *cards.WordEntry) {
		if prompt != "" {
			e.Prompt = prompt
		}
		e.PromptStatus = status
	})
}

func (r *MemoryRepository) UpdateCategorization(_ context.Context, id kernel.EntryID, c *cards.Categorization, status cards.CategorizationStatus) error {
	return r.mutate(id, func(e *cards.WordEntry) {
		if c != nil {
			cc := *c
			e.Categorization = &cc
		}
		e.CategorizationStatus = status
	})
}

func (r *MemoryRepository) mutate(id kernel.EntryID, fn func(*cards.WordEntry)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return cards.NotFound(id)
	}
	fn(&e)
	e.UpdatedAt = r.now()
	r.entries[id] = e
	return nil
}

func cloneEntry(e cards.WordEntry) *cards.WordEntry {
	if e.Categorization != nil {
		c := *e.Categorization
		e.Categorization = &c
	}
	if e.ImageGeneratedAt != nil {
		t := *e.ImageGeneratedAt
		e.ImageGeneratedAt = &t
	}
	if e.QAScore != nil {
		s := *e.QAScore
		e.QAScore = &s
	}
	return &e
}
