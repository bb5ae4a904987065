package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GenerationRecord is one row in the generation_history table: a single
// image attempt within a batch, successful or not.
type GenerationRecord struct {
	ID            int64     // Auto-incremented primary key
	CorrelationID string    // Shared by all images of one batch
	Prompt        string    // Final prompt after substitution and enhancement
	Seed          int64     // Seed used for this image
	Width         int       // Image width in pixels
	Height        int       // Image height in pixels
	ImagePath     string    // Output file path; empty for failed attempts
	DurationMS    int64     // Synthesis duration in milliseconds
	Status        string    // "success" or "error"
	ErrorMessage  string    // Error description when Status is "error"
	CreatedAt     time.Time // When the record was created
}

// Repository provides typed access to the generation_history table.
type Repository struct {
	db *Database
}

// NewRepository creates a Repository backed by the given database.
func NewRepository(db *Database) *Repository {
	return &Repository{db: db}
}

// Insert stores one generation record and returns its ID.
func (r *Repository) Insert(ctx context.Context, rec GenerationRecord) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}

	query := `
		INSERT INTO generation_history (
			correlation_id, prompt, seed, width, height,
			image_path, duration_ms, status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.DB().ExecContext(ctx, query,
		rec.CorrelationID, rec.Prompt, rec.Seed, rec.Width, rec.Height,
		rec.ImagePath, rec.DurationMS, rec.Status, rec.ErrorMessage,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert generation record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted record ID: %w", err)
	}
	return id, nil
}

// ListRecent returns up to limit records ordered newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]GenerationRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, correlation_id, prompt, seed, width, height,
		       image_path, duration_ms, status, error_message, created_at
		FROM generation_history
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query generation history: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListByCorrelation returns every record of one batch, oldest first.
func (r *Repository) ListByCorrelation(ctx context.Context, correlationID string) ([]GenerationRecord, error) {
	query := `
		SELECT id, correlation_id, prompt, seed, width, height,
		       image_path, duration_ms, status, error_message, created_at
		FROM generation_history
		WHERE correlation_id = ?
		ORDER BY id ASC`

	rows, err := r.db.DB().QueryContext(ctx, query, correlationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query generation history: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// CountByStatus returns how many records carry the given status.
func (r *Repository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM generation_history WHERE status = ?", status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count generation records: %w", err)
	}
	return count, nil
}

func scanRecords(rows *sql.Rows) ([]GenerationRecord, error) {
	var records []GenerationRecord
	for rows.Next() {
		var rec GenerationRecord
		if err := rows.Scan(
			&rec.ID, &rec.CorrelationID, &rec.Prompt, &rec.Seed,
			&rec.Width, &rec.Height, &rec.ImagePath, &rec.DurationMS,
			&rec.Status, &rec.ErrorMessage, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan generation record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate generation records: %w", err)
	}
	return records, nil
}
