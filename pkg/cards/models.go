package cards

import (
	"time"

	"github.com/Abraxas-365/flashmoji/pkg/kernel"
)

// ImageStatus tracks the image pipeline for one entry
type ImageStatus string

const (
	ImageStatusNone       ImageStatus = "none"
	ImageStatusQueued     ImageStatus = "queued"
	ImageStatusProcessing ImageStatus = "processing"
	ImageStatusCompleted  ImageStatus = "completed"
	ImageStatusError      ImageStatus = "error"
)

// PromptStatus tracks visual prompt generation
type PromptStatus string

const (
	PromptStatusNone       PromptStatus = "none"
	PromptStatusGenerating PromptStatus = "generating"
	PromptStatusCompleted  PromptStatus = "completed"
	PromptStatusError      PromptStatus = "error"
)

// CategorizationStatus tracks vocabulary categorization
type CategorizationStatus string

const (
	CategorizationStatusNone       CategorizationStatus = "none"
	CategorizationStatusProcessing CategorizationStatus = "processing"
	CategorizationStatusCompleted  CategorizationStatus = "completed"
	CategorizationStatusError      CategorizationStatus = "error"
)

// QAScore is a manual review verdict
type QAScore string

const (
	QAScoreGood QAScore = "good"
	QAScoreBad  QAScore = "bad"
)

type PrimaryCategory string

const (
	CategoryConcreteVisual    PrimaryCategory = "CONCRETE-VISUAL"
	CategoryAbstractSymbolic  PrimaryCategory = "ABSTRACT-SYMBOLIC"
	CategoryActionVisual      PrimaryCategory = "ACTION-VISUAL"
	CategoryStateMetaphorical PrimaryCategory = "STATE-METAPHORICAL"
)

type ImageSuitability string

const (
	SuitabilityHigh   ImageSuitability = "HIGH"
	SuitabilityMedium ImageSuitability = "MEDIUM"
	SuitabilityLow    ImageSuitability = "LOW"
)

type WordType string

const (
	WordTypeNoun      WordType = "noun"
	WordTypeVerb      WordType = "verb"
	WordTypeAdjective WordType = "adjective"
	WordTypeAdverb    WordType = "adverb"
	WordTypePhrase    WordType = "phrase"
)

// Categorization describes how well a word lends itself to an image
type Categorization struct {
	PrimaryCategory          PrimaryCategory  `json:"primary_category"`
	ImageSuitability         ImageSuitability `json:"image_suitability"`
	WordType                 WordType         `json:"word_type"`
	TransformationNeeded     bool             `json:"transformation_needed"`
	TransformationSuggestion string           `json:"transformation_suggestion"`
	Confidence               float64          `json:"confidence"`
}

// Valid reports whether every enumerated field holds a known value
func (c Categorization) Valid() bool {
	switch c.PrimaryCategory {
	case CategoryConcreteVisual, CategoryAbstractSymbolic, CategoryActionVisual, CategoryStateMetaphorical:
	default:
		return false
	}
	switch c.ImageSuitability {
	case SuitabilityHigh, SuitabilityMedium, SuitabilityLow:
	default:
		return false
	}
	switch c.WordType {
	case WordTypeNoun, WordTypeVerb, WordTypeAdjective, WordTypeAdverb, WordTypePhrase:
	default:
		return false
	}
	return true
}

// WordEntry is one flashcard: a word, its translation and the generated
// prompt and image.
type WordEntry struct {
	ID                   kernel.EntryID       `json:"id"`
	OriginalText         string               `json:"original_text"`
	TranslationText      string               `json:"translation_text"`
	LevelID              int                  `json:"level_id"`
	Transcription        string               `json:"transcription,omitempty"`
	Prompt               string               `json:"prompt,omitempty"`
	PromptStatus         PromptStatus         `json:"prompt_status"`
	ImageURL             string               `json:"image_url,omitempty"`
	ImageStatus          ImageStatus          `json:"image_status"`
	ProviderHandle       string               `json:"provider_handle,omitempty"`
	QAScore              *QAScore             `json:"qa_score,omitempty"`
	ImageGeneratedAt     *time.Time           `json:"image_generated_at,omitempty"`
	Categorization       *Categorization      `json:"categorization,omitempty"`
	CategorizationStatus CategorizationStatus `json:"categorization_status"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

// HasPrompt reports whether the entry is ready for image generation
func (e WordEntry) HasPrompt() bool {
	return e.Prompt != ""
}

// ImageUpdate is the partial update written when an image job changes state.
// Zero-valued fields are left untouched, except ImageStatus which is always
// written.
type ImageUpdate struct {
	ImageStatus    ImageStatus
	ImageURL       string
	ProviderHandle string
	GeneratedAt    *time.Time
}

// ListFilter narrows List results
type ListFilter struct {
	ImageStatus ImageStatus
	LevelID     int
}
