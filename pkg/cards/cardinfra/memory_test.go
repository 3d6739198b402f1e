package cardinfra_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/flashmoji/pkg/cards"
	"github.com/Abraxas-365/flashmoji/pkg/cards/cardinfra"
	"github.com/Abraxas-365/flashmoji/pkg/errx"
	"github.com/Abraxas-365/flashmoji/pkg/kernel"
)

func seed() []cards.WordEntry {
	return []cards.WordEntry{
		{ID: 3, OriginalText: "winter", TranslationText: "зима", LevelID: 1},
		{ID: 1, OriginalText: "happy", TranslationText: "счастливый", LevelID: 1, Prompt: "smiling face"},
		{ID: 2, OriginalText: "autumn", TranslationText: "осень", LevelID: 2},
	}
}

func TestMemoryRepository_FindByID(t *testing.T) {
	repo := cardinfra.NewMemoryRepository(seed()...)
	ctx := context.Background()

	e, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "happy", e.OriginalText)
	assert.Equal(t, cards.ImageStatusNone, e.ImageStatus)
	assert.Equal(t, cards.PromptStatusNone, e.PromptStatus)
	assert.False(t, e.CreatedAt.IsZero())

	_, err = repo.FindByID(ctx, 99)
	assert.True(t, errx.IsCode(err, cards.ErrNotFound))
}

func TestMemoryRepository_UpsertRejectsInvalid(t *testing.T) {
	repo := cardinfra.NewMemoryRepository()
	err := repo.Upsert(context.Background(), cards.WordEntry{ID: 0, OriginalText: "x"})
	assert.True(t, errx.IsCode(err, cards.ErrInvalidEntry))

	err = repo.Upsert(context.Background(), cards.WordEntry{ID: 5, OriginalText: "  "})
	assert.True(t, errx.IsCode(err, cards.ErrInvalidEntry))
}

func TestMemoryRepository_UpsertKeepsGenerationState(t *testing.T) {
	repo := cardinfra.NewMemoryRepository(seed()...)
	ctx := context.Background()

	require.NoError(t, repo.UpdateImage(ctx, 1, cards.ImageUpdate{
		ImageStatus: cards.ImageStatusCompleted,
		ImageURL:    "https://cdn/1.png",
	}))
	require.NoError(t, repo.Upsert(ctx, cards.WordEntry{ID: 1, OriginalText: "happy", TranslationText: "радостный"}))

	e, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "радостный", e.TranslationText)
	assert.Equal(t, "smiling face", e.Prompt)
	assert.Equal(t, "https://cdn/1.png", e.ImageURL)
	assert.Equal(t, cards.ImageStatusCompleted, e.ImageStatus)
}

func TestMemoryRepository_UpdateImage(t *testing.T) {
	repo := cardinfra.NewMemoryRepository(seed()...)
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.UpdateImage(ctx, 2, cards.ImageUpdate{
		ImageStatus:    cards.ImageStatusCompleted,
		ImageURL:       "https://cdn/2.png",
		ProviderHandle: "pred-1",
		GeneratedAt:    &at,
	}))

	// an error update keeps the previous url
	require.NoError(t, repo.UpdateImage(ctx, 2, cards.ImageUpdate{
		ImageStatus:    cards.ImageStatusError,
		ProviderHandle: "pred-2",
	}))

	e, err := repo.FindByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, cards.ImageStatusError, e.ImageStatus)
	assert.Equal(t, "https://cdn/2.png", e.ImageURL)
	assert.Equal(t, "pred-2", e.ProviderHandle)
	require.NotNil(t, e.ImageGeneratedAt)
	assert.True(t, at.Equal(*e.ImageGeneratedAt))

	err = repo.UpdateImage(ctx, 404, cards.ImageUpdate{ImageStatus: cards.ImageStatusError})
	assert.True(t, errx.IsCode(err, cards.ErrNotFound))
}

func TestMemoryRepository_UpdatePromptAndCategorization(t *testing.T) {
	repo := cardinfra.NewMemoryRepository(seed()...)
	ctx := context.Background()

	require.NoError(t, repo.UpdatePrompt(ctx, 3, "snowflake", cards.PromptStatusCompleted))
	require.NoError(t, repo.UpdateCategorization(ctx, 3, &cards.Categorization{
		PrimaryCategory:  cards.CategoryConcreteVisual,
		ImageSuitability: cards.SuitabilityHigh,
		WordType:         cards.WordTypeNoun,
		Confidence:       0.9,
	}, cards.CategorizationStatusCompleted))

	e, err := repo.FindByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "snowflake", e.Prompt)
	assert.Equal(t, cards.PromptStatusCompleted, e.PromptStatus)
	require.NotNil(t, e.Categorization)
	assert.Equal(t, cards.CategoryConcreteVisual, e.Categorization.PrimaryCategory)
	assert.Equal(t, cards.CategorizationStatusCompleted, e.CategorizationStatus)

	// status-only update leaves the stored categorization alone
	require.NoError(t, repo.UpdateCategorization(ctx, 3, nil, cards.CategorizationStatusProcessing))
	e, err = repo.FindByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, cards.CategorizationStatusProcessing, e.CategorizationStatus)
	assert.NotNil(t, e.Categorization)
}

func TestMemoryRepository_List(t *testing.T) {
	repo := cardinfra.NewMemoryRepository(seed()...)
	ctx := context.Background()

	page, err := repo.List(ctx, cards.ListFilter{}, kernel.PaginationOptions{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, kernel.EntryID(1), page.Items[0].ID)
	assert.Equal(t, kernel.EntryID(2), page.Items[1].ID)
	assert.Equal(t, 3, page.Page.Total)
	assert.Equal(t, 2, page.Page.Pages)
	assert.True(t, page.HasNext())

	page, err = repo.List(ctx, cards.ListFilter{}, kernel.PaginationOptions{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, kernel.EntryID(3), page.Items[0].ID)

	page, err = repo.List(ctx, cards.ListFilter{LevelID: 2}, kernel.PaginationOptions{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "autumn", page.Items[0].OriginalText)

	page, err = repo.List(ctx, cards.ListFilter{ImageStatus: cards.ImageStatusCompleted}, kernel.PaginationOptions{Page: 9})
	require.NoError(t, err)
	assert.True(t, page.Empty)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := cardinfra.NewMemoryRepository(seed()...)
	ctx := context.Background()

	e, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	e.Prompt = "mutated"

	again, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "smiling face", again.Prompt)
}
