package cardsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/Abraxas-365/flashmoji/pkg/ai/llm"
	"github.com/Abraxas-365/flashmoji/pkg/asyncx"
	"github.com/Abraxas-365/flashmoji/pkg/cards"
	"github.com/Abraxas-365/flashmoji/pkg/kernel"
	"github.com/Abraxas-365/flashmoji/pkg/logx"
)

// MaxCategorizeBatch bounds CategorizeBatch
const MaxCategorizeBatch = 10

const categorizeSystemPrompt = "You are a helpful assistant that categorizes vocabulary words for image generation suitability. Output only valid JSON. No explanations."

const categorizeTemplate = `Categorize the following vocabulary word for image generation suitability.
Word: %s
Translation: %s
Context: English language learning, level %d

Analyze and categorize based on:
- Concrete/Abstract nature
- Visual representation potential (HIGH/MEDIUM/LOW)
- Word type (noun/verb/adjective/adverb/phrase)
- For polysemous words, identify primary meaning
- Suggest transformation strategy if abstract

Output JSON only, matching this exact structure with valid values:
{
  "primary_category": "CONCRETE-VISUAL" | "ABSTRACT-SYMBOLIC" | "ACTION-VISUAL" | "STATE-METAPHORICAL",
  "image_suitability": "HIGH" | "MEDIUM" | "LOW",
  "word_type": "noun" | "verb" | "adjective" | "adverb" | "phrase",
  "transformation_needed": true or false,
  "transformation_suggestion": "how to depict it, or empty string",
  "confidence": number between 0.0 and 1.0
}`

var (
	fenceRe      = regexp.MustCompile("```(?:json)?\\s*")
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// Categorizer classifies words by how well they can be drawn
type Categorizer struct {
	llm     llm.LLM
	repo    cards.Repository
	workers int
}

func NewCategorizer(model llm.LLM, repo cards.Repository) *Categorizer {
	return &Categorizer{llm: model, repo: repo, workers: MaxCategorizeBatch}
}

// Categorize asks the LLM for a categorization of one entry
func (c *Categorizer) Categorize(ctx context.Context, entry cards.WordEntry) (*cards.Categorization, error) {
	resp, err := c.llm.Chat(ctx, []llm.Message{
		llm.NewSystemMessage(categorizeSystemPrompt),
		llm.NewUserMessage(fmt.Sprintf(categorizeTemplate, entry.OriginalText, entry.TranslationText, entry.LevelID)),
	}, llm.WithTemperature(0.1), llm.WithMaxTokens(1024), llm.WithJSONMode())
	if err != nil {
		return nil, cards.WrapError(cards.ErrCategorizeFailed, err).WithDetail("entry_id", entry.ID)
	}
	return ParseCategorization(resp.Text())
}

// ParseCategorization decodes a model response, tolerating markdown fences
// and surrounding prose. Confidence is clamped to [0, 1] and defaults to
// 0.5 when missing.
func ParseCategorization(text string) (*cards.Categorization, error) {
	text = strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
	if m := jsonObjectRe.FindString(text); m != "" {
		text = m
	}

	var raw struct {
		PrimaryCategory          string   `json:"primary_category"`
		ImageSuitability         string   `json:"image_suitability"`
		WordType                 string   `json:"word_type"`
		TransformationNeeded     bool     `json:"transformation_needed"`
		TransformationSuggestion *string  `json:"transformation_suggestion"`
		Confidence               *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, cards.WrapError(cards.ErrInvalidCategory, err)
	}

	out := &cards.Categorization{
		PrimaryCategory:      cards.PrimaryCategory(strings.ToUpper(strings.TrimSpace(raw.PrimaryCategory))),
		ImageSuitability:     cards.ImageSuitability(strings.ToUpper(strings.TrimSpace(raw.ImageSuitability))),
		WordType:             cards.WordType(strings.ToLower(strings.TrimSpace(raw.WordType))),
		TransformationNeeded: raw.TransformationNeeded,
		Confidence:           0.5,
	}
	if raw.TransformationSuggestion != nil {
		out.TransformationSuggestion = strings.TrimSpace(*raw.TransformationSuggestion)
	}
	if raw.Confidence != nil && !math.IsNaN(*raw.Confidence) {
		out.Confidence = math.Max(0, math.Min(1, *raw.Confidence))
	}

	if !out.Valid() {
		return nil, cards.NewError(cards.ErrInvalidCategory).
			WithDetail("primary_category", raw.PrimaryCategory).
			WithDetail("image_suitability", raw.ImageSuitability).
			WithDetail("word_type", raw.WordType)
	}
	return out, nil
}

// CategorizeEntry categorizes a stored entry and records the outcome
func (c *Categorizer) CategorizeEntry(ctx context.Context, id kernel.EntryID) (*cards.Categorization, error) {
	entry, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.repo.UpdateCategorization(ctx, id, nil, cards.CategorizationStatusProcessing); err != nil {
		return nil, err
	}

	result, err := c.Categorize(ctx, *entry)
	if err != nil {
		logx.WithError(err).WithField("entry_id", id).Warn("Categorization failed")
		if uerr := c.repo.UpdateCategorization(context.WithoutCancel(ctx), id, nil, cards.CategorizationStatusError); uerr != nil {
			logx.WithError(uerr).WithField("entry_id", id).Warn("Failed to record categorization error")
		}
		return nil, err
	}

	if err := c.repo.UpdateCategorization(ctx, id, result, cards.CategorizationStatusCompleted); err != nil {
		return nil, err
	}
	return result, nil
}

// CategorizeBatch categorizes up to MaxCategorizeBatch entries in parallel
func (c *Categorizer) CategorizeBatch(ctx context.Context, ids []kernel.EntryID) ([]BatchResult[*cards.Categorization], error) {
	if len(ids) == 0 || len(ids) > MaxCategorizeBatch {
		return nil, cards.NewError(cards.ErrBatchTooLarge).
			WithDetail("max", MaxCategorizeBatch).
			WithDetail("got", len(ids))
	}
	settled := asyncx.PoolSettled(ctx, c.workers, ids, c.CategorizeEntry)
	return collect(ids, settled), nil
}
