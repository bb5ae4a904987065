package db

import (
	"context"
	"fmt"
	"time"
)

// CleanupResult contains statistics about one retention cleanup run.
type CleanupResult struct {
	// RecordsDeleted is the number of history records removed
	RecordsDeleted int64
	// Duration is how long the cleanup took
	Duration time.Duration
}

// Cleanup deletes generation history older than retentionDays and runs
// VACUUM to reclaim disk space. retentionDays of 0 deletes everything.
func (d *Database) Cleanup(ctx context.Context, retentionDays int) (CleanupResult, error) {
	start := time.Now()
	result := CleanupResult{}

	if retentionDays < 0 {
		return result, fmt.Errorf("retentionDays must be non-negative, got %d", retentionDays)
	}

	cutoff := fmt.Sprintf("-%d days", retentionDays)
	res, err := d.DB().ExecContext(ctx,
		"DELETE FROM generation_history WHERE created_at < datetime('now', ?)", cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to delete old history records: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return result, fmt.Errorf("failed to count deleted records: %w", err)
	}
	result.RecordsDeleted = deleted

	// VACUUM cannot run inside a transaction; skip it when nothing changed.
	if deleted > 0 {
		if _, err := d.DB().ExecContext(ctx, "VACUUM"); err != nil {
			return result, fmt.Errorf("failed to vacuum database: %w", err)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}
