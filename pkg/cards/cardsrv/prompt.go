package cardsrv

import (
	"context"
	"strings"

	"github.com/Abraxas-365/flashmoji/pkg/ai/llm"
	"github.com/Abraxas-365/flashmoji/pkg/asyncx"
	"github.com/Abraxas-365/flashmoji/pkg/cards"
	"github.com/Abraxas-365/flashmoji/pkg/errx"
	"github.com/Abraxas-365/flashmoji/pkg/kernel"
	"github.com/Abraxas-365/flashmoji/pkg/logx"
)

// PromptTemplate asks for a single emoji object. {english_word}, {english},
// {transcription} and {russian} are substituted.
const PromptTemplate = `Generate ONE emoji object for: {english_word}

Rules:
1. Object MUST visually represent the word's meaning
2. Maximum 4 words
3. Single object only
4. Choose most memorable/iconic association
5. If describing people, use light-skinned or yellow emoji-style characters
6. FORBIDDEN: "vibrant", "representing", "showing", generic descriptions

Think: What visual helps remember this word?

Examples:
"autumn" → "orange fall leaf" (NOT green leaf)
"winter" → "snowflake" (NOT generic season)
"happy" → "smiling face"
"article" → "newspaper"
"above" → "upward arrow"
"actor" → "light-skinned man in suit"

Word: {english_word}
Single object:

English: {english} {transcription}
Russian: {russian}`

// MaxPromptBatch bounds GenerateBatch
const MaxPromptBatch = 50

// FormatPrompt fills PromptTemplate
func FormatPrompt(english, russian, transcription string) string {
	return strings.NewReplacer(
		"{english_word}", english,
		"{english}", english,
		"{transcription}", transcription,
		"{russian}", russian,
	).Replace(PromptTemplate)
}

// PromptService turns a word pair into a short visual prompt
type PromptService struct {
	llm       llm.LLM
	repo      cards.Repository
	overrides *Overrides
	workers   int
	chatOpts  []llm.Option
}

type PromptOption func(*PromptService)

// WithOverrides short-circuits the LLM for words listed in the file
func WithOverrides(o *Overrides) PromptOption {
	return func(s *PromptService) {
		s.overrides = o
	}
}

// WithBatchWorkers bounds concurrent LLM calls in GenerateBatch
func WithBatchWorkers(n int) PromptOption {
	return func(s *PromptService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithChatOptions appends options to every LLM call
func WithChatOptions(opts ...llm.Option) PromptOption {
	return func(s *PromptService) {
		s.chatOpts = append(s.chatOpts, opts...)
	}
}

func NewPromptService(model llm.LLM, repo cards.Repository, opts ...PromptOption) *PromptService {
	s := &PromptService{
		llm:      model,
		repo:     repo,
		workers:  4,
		chatOpts: []llm.Option{llm.WithTemperature(0.7), llm.WithMaxTokens(64)},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GeneratePrompt returns the visual prompt for a word pair without touching
// storage.
func (s *PromptService) GeneratePrompt(ctx context.Context, english, russian, transcription string) (string, error) {
	english = strings.TrimSpace(english)
	if english == "" || strings.TrimSpace(russian) == "" {
		return "", cards.NewError(cards.ErrInvalidEntry).
			WithDetail("reason", "english and russian are required")
	}

	if override, ok := s.overrides.Lookup(english); ok {
		logx.WithField("word", english).Debug("Using prompt override")
		return override, nil
	}

	resp, err := s.llm.Chat(ctx, []llm.Message{
		llm.NewUserMessage(FormatPrompt(english, strings.TrimSpace(russian), strings.TrimSpace(transcription))),
	}, s.chatOpts...)
	if err != nil {
		return "", cards.WrapError(cards.ErrPromptFailed, err).WithDetail("word", english)
	}

	prompt := cleanPrompt(resp.Text())
	if prompt == "" {
		return "", cards.NewError(cards.ErrPromptFailed).
			WithDetail("word", english).
			WithDetail("reason", "empty completion")
	}
	return prompt, nil
}

// GenerateForEntry generates and stores the prompt for one entry
func (s *PromptService) GenerateForEntry(ctx context.Context, id kernel.EntryID) (string, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}

	if err := s.repo.UpdatePrompt(ctx, id, "", cards.PromptStatusGenerating); err != nil {
		return "", err
	}

	prompt, err := s.GeneratePrompt(ctx, entry.OriginalText, entry.TranslationText, entry.Transcription)
	if err != nil {
		if uerr := s.repo.UpdatePrompt(context.WithoutCancel(ctx), id, "", cards.PromptStatusError); uerr != nil {
			logx.WithError(uerr).WithField("entry_id", id).Warn("Failed to record prompt error")
		}
		return "", err
	}

	if err := s.repo.UpdatePrompt(ctx, id, prompt, cards.PromptStatusCompleted); err != nil {
		return "", err
	}
	return prompt, nil
}

// BatchResult is the per-entry outcome of a batch operation
type BatchResult[T any] struct {
	ID    kernel.EntryID `json:"id"`
	Value T              `json:"value,omitempty"`
	Error *errx.Error    `json:"error,omitempty"`
}

// GenerateBatch runs GenerateForEntry for each id with bounded concurrency.
// One entry failing does not stop the others.
func (s *PromptService) GenerateBatch(ctx context.Context, ids []kernel.EntryID) ([]BatchResult[string], error) {
	if len(ids) > MaxPromptBatch {
		return nil, cards.NewError(cards.ErrBatchTooLarge).
			WithDetail("max", MaxPromptBatch).
			WithDetail("got", len(ids))
	}

	settled := asyncx.PoolSettled(ctx, s.workers, ids, s.GenerateForEntry)
	return collect(ids, settled), nil
}

func collect[T any](ids []kernel.EntryID, settled []asyncx.Result[T]) []BatchResult[T] {
	out := make([]BatchResult[T], len(ids))
	for i, r := range settled {
		out[i] = BatchResult[T]{ID: ids[i], Value: r.Value}
		if !r.OK() {
			out[i].Error = asErrx(r.Err)
		}
	}
	return out
}

func asErrx(err error) *errx.Error {
	var e *errx.Error
	if errx.As(err, &e) {
		return e
	}
	return errx.Wrap(err, err.Error(), errx.TypeInternal)
}

// cleanPrompt keeps the first non-empty line and strips quoting the model
// tends to add.
func cleanPrompt(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "\"'`*")
		line = strings.TrimSpace(strings.TrimSuffix(line, "."))
		if line != "" {
			return line
		}
	}
	return ""
}
