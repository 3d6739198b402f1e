package cardinfra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Abraxas-365/flashmoji/pkg/cards"
	"github.com/Abraxas-365/flashmoji/pkg/errx"
	"github.com/Abraxas-365/flashmoji/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const entryColumns = `
	id, original_text, translation_text, level_id, transcription, prompt, prompt_status,
	image_url, image_status, provider_handle, qa_score, image_generated_at,
	categorization_primary_category, categorization_image_suitability, categorization_word_type,
	categorization_transformation_needed, categorization_transformation_suggestion,
	categorization_confidence, categorization_status, created_at, updated_at`

// PostgresRepository stores word entries in the word_entries table
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ cards.Repository = (*PostgresRepository)(nil)

// Ping checks connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id kernel.EntryID) (*cards.WordEntry, error) {
	var row entryPersistence
	query := `SELECT ` + entryColumns + ` FROM word_entries WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, int64(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cards.NotFound(id)
		}
		return nil, errx.Wrap(err, "failed to find word entry", errx.TypeInternal).
			WithDetail("entry_id", id)
	}
	entry := toDomain(row)
	return &entry, nil
}

// List returns entries ordered by id
func (r *PostgresRepository) List(ctx context.Context, filter cards.ListFilter, opts kernel.PaginationOptions) (kernel.Paginated[cards.WordEntry], error) {
	opts = opts.Normalize(50, 500)

	var (
		conds []string
		args  []any
	)
	if filter.ImageStatus != "" {
		args = append(args, string(filter.ImageStatus))
		conds = append(conds, fmt.Sprintf("image_status = $%d", len(args)))
	}
	if filter.LevelID > 0 {
		args = append(args, filter.LevelID)
		conds = append(conds, fmt.Sprintf("level_id = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM word_entries`+where, args...); err != nil {
		return kernel.Paginated[cards.WordEntry]{}, errx.Wrap(err, "failed to count word entries", errx.TypeInternal)
	}

	query := fmt.Sprintf(`SELECT %s FROM word_entries%s ORDER BY id LIMIT $%d OFFSET $%d`,
		entryColumns, where, len(args)+1, len(args)+2)
	args = append(args, opts.PageSize, opts.Offset())

	var rows []entryPersistence
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return kernel.Paginated[cards.WordEntry]{}, errx.Wrap(err, "failed to list word entries", errx.TypeInternal)
	}

	items := make([]cards.WordEntry, len(rows))
	for i, row := range rows {
		items[i] = toDomain(row)
	}
	return kernel.NewPaginated(items, opts.Page, opts.PageSize, total), nil
}

// Upsert inserts the entry or replaces its source fields. Generation state
// (prompt, image, categorization) is only overwritten when the incoming
// entry carries it.
func (r *PostgresRepository) Upsert(ctx context.Context, entry cards.WordEntry) error {
	if entry.ID.IsZero() || strings.TrimSpace(entry.OriginalText) == "" {
		return cards.NewError(cards.ErrInvalidEntry).WithDetail("entry_id", entry.ID)
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	query := `
		INSERT INTO word_entries (` + entryColumns + `)
		VALUES (
			:id, :original_text, :translation_text, :level_id, :transcription, :prompt, :prompt_status,
			:image_url, :image_status, :provider_handle, :qa_score, :image_generated_at,
			:categorization_primary_category, :categorization_image_suitability, :categorization_word_type,
			:categorization_transformation_needed, :categorization_transformation_suggestion,
			:categorization_confidence, :categorization_status, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			original_text = EXCLUDED.original_text,
			translation_text = EXCLUDED.translation_text,
			level_id = EXCLUDED.level_id,
			transcription = EXCLUDED.transcription,
			prompt = COALESCE(EXCLUDED.prompt, word_entries.prompt),
			prompt_status = CASE WHEN EXCLUDED.prompt IS NULL THEN word_entries.prompt_status ELSE EXCLUDED.prompt_status END,
			image_url = COALESCE(EXCLUDED.image_url, word_entries.image_url),
			image_status = CASE WHEN EXCLUDED.image_url IS NULL THEN word_entries.image_status ELSE EXCLUDED.image_status END,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, toPersistence(entry)); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" { // check_violation
			return cards.NewError(cards.ErrInvalidEntry).
				WithDetail("entry_id", entry.ID).
				WithDetail("constraint", pqErr.Constraint)
		}
		return cards.PersistFailed(entry.ID, err)
	}
	return nil
}

// UpdateImage writes the image status and, when set, the url, provider
// handle and generation time.
func (r *PostgresRepository) UpdateImage(ctx context.Context, id kernel.EntryID, update cards.ImageUpdate) error {
	query := `
		UPDATE word_entries SET
			image_status = $2,
			image_url = COALESCE(NULLIF($3, ''), image_url),
			provider_handle = COALESCE(NULLIF($4, ''), provider_handle),
			image_generated_at = COALESCE($5, image_generated_at),
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		int64(id), string(update.ImageStatus), update.ImageURL, update.ProviderHandle, update.GeneratedAt)
	return r.checkUpdated(id, result, err)
}

func (r *PostgresRepository) UpdatePrompt(ctx context.Context, id kernel.EntryID, prompt string, status cards.PromptStatus) error {
	query := `
		UPDATE word_entries SET
			prompt = COALESCE(NULLIF($2, ''), prompt),
			prompt_status = $3,
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, int64(id), prompt, string(status))
	return r.checkUpdated(id, result, err)
}

func (r *PostgresRepository) UpdateCategorization(ctx context.Context, id kernel.EntryID, c *cards.Categorization, status cards.CategorizationStatus) error {
	if c == nil {
		result, err := r.db.ExecContext(ctx,
			`UPDATE word_entries SET categorization_status = $2, updated_at = NOW() WHERE id = $1`,
			int64(id), string(status))
		return r.checkUpdated(id, result, err)
	}

	query := `
		UPDATE word_entries SET
			categorization_primary_category = $2,
			categorization_image_suitability = $3,
			categorization_word_type = $4,
			categorization_transformation_needed = $5,
			categorization_transformation_suggestion = $6,
			categorization_confidence = $7,
			categorization_status = $8,
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, int64(id),
		string(c.PrimaryCategory), string(c.ImageSuitability), string(c.WordType),
		c.TransformationNeeded, c.TransformationSuggestion, c.Confidence, string(status))
	return r.checkUpdated(id, result, err)
}

func (r *PostgresRepository) checkUpdated(id kernel.EntryID, result sql.Result, err error) error {
	if err != nil {
		return cards.PersistFailed(id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return cards.PersistFailed(id, err)
	}
	if rowsAffected == 0 {
		return cards.NotFound(id)
	}
	return nil
}

type entryPersistence struct {
	ID                       int64           `db:"id"`
	OriginalText             string          `db:"original_text"`
	TranslationText          string          `db:"translation_text"`
	LevelID                  int             `db:"level_id"`
	Transcription            sql.NullString  `db:"transcription"`
	Prompt                   sql.NullString  `db:"prompt"`
	PromptStatus             string          `db:"prompt_status"`
	ImageURL                 sql.NullString  `db:"image_url"`
	ImageStatus              string          `db:"image_status"`
	ProviderHandle           sql.NullString  `db:"provider_handle"`
	QAScore                  sql.NullString  `db:"qa_score"`
	ImageGeneratedAt         *time.Time      `db:"image_generated_at"`
	PrimaryCategory          sql.NullString  `db:"categorization_primary_category"`
	ImageSuitability         sql.NullString  `db:"categorization_image_suitability"`
	WordType                 sql.NullString  `db:"categorization_word_type"`
	TransformationNeeded     sql.NullBool    `db:"categorization_transformation_needed"`
	TransformationSuggestion sql.NullString  `db:"categorization_transformation_suggestion"`
	Confidence               sql.NullFloat64 `db:"categorization_confidence"`
	CategorizationStatus     string          `db:"categorization_status"`
	CreatedAt                time.Time       `db:"created_at"`
	UpdatedAt                time.Time       `db:"updated_at"`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toPersistence(e cards.WordEntry) entryPersistence {
	p := entryPersistence{
		ID:                   int64(e.ID),
		OriginalText:         e.OriginalText,
		TranslationText:      e.TranslationText,
		LevelID:              e.LevelID,
		Transcription:        nullString(e.Transcription),
		Prompt:               nullString(e.Prompt),
		PromptStatus:         string(orDefault(e.PromptStatus, cards.PromptStatusNone)),
		ImageURL:             nullString(e.ImageURL),
		ImageStatus:          string(orDefault(e.ImageStatus, cards.ImageStatusNone)),
		ProviderHandle:       nullString(e.ProviderHandle),
		ImageGeneratedAt:     e.ImageGeneratedAt,
		CategorizationStatus: string(orDefault(e.CategorizationStatus, cards.CategorizationStatusNone)),
		CreatedAt:            e.CreatedAt,
		UpdatedAt:            e.UpdatedAt,
	}
	if e.QAScore != nil {
		p.QAScore = nullString(string(*e.QAScore))
	}
	if c := e.Categorization; c != nil {
		p.PrimaryCategory = nullString(string(c.PrimaryCategory))
		p.ImageSuitability = nullString(string(c.ImageSuitability))
		p.WordType = nullString(string(c.WordType))
		p.TransformationNeeded = sql.NullBool{Bool: c.TransformationNeeded, Valid: true}
		p.TransformationSuggestion = nullString(c.TransformationSuggestion)
		p.Confidence = sql.NullFloat64{Float64: c.Confidence, Valid: true}
	}
	return p
}

func toDomain(p entryPersistence) cards.WordEntry {
	e := cards.WordEntry{
		ID:                   kernel.EntryID(p.ID),
		OriginalText:         p.OriginalText,
		TranslationText:      p.TranslationText,
		LevelID:              p.LevelID,
		Transcription:        p.Transcription.String,
		Prompt:               p.Prompt.String,
		PromptStatus:         cards.PromptStatus(p.PromptStatus),
		ImageURL:             p.ImageURL.String,
		ImageStatus:          cards.ImageStatus(p.ImageStatus),
		ProviderHandle:       p.ProviderHandle.String,
		ImageGeneratedAt:     p.ImageGeneratedAt,
		CategorizationStatus: cards.CategorizationStatus(p.CategorizationStatus),
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
	if p.QAScore.Valid {
		score := cards.QAScore(p.QAScore.String)
		e.QAScore = &score
	}
	if p.PrimaryCategory.Valid {
		e.Categorization = &cards.Categorization{
			PrimaryCategory:          cards.PrimaryCategory(p.PrimaryCategory.String),
			ImageSuitability:         cards.ImageSuitability(p.ImageSuitability.String),
			WordType:                 cards.WordType(p.WordType.String),
			TransformationNeeded:     p.TransformationNeeded.Bool,
			TransformationSuggestion: p.TransformationSuggestion.String,
			Confidence:               p.Confidence.Float64,
		}
	}
	return e
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}
