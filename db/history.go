package db

import (
	"context"
	"time"

	"go.uber.org/zap"

	"zexplorer/core"
)

// insertTimeout bounds one history insert so a wedged database cannot back
// up the async writer forever.
const insertTimeout = 10 * time.Second

// AsyncHistory records generation history without blocking the workflow.
// Entries are queued on an AsyncWriter and inserted by a background
// goroutine; when the queue is full the entry is dropped and logged.
type AsyncHistory struct {
	repo   *Repository
	writer *AsyncWriter
	logger *zap.Logger
}

// NewAsyncHistory creates and starts the history recorder. Call Stop during
// shutdown to drain pending writes.
func NewAsyncHistory(repo *Repository, logger *zap.Logger) *AsyncHistory {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &AsyncHistory{repo: repo, logger: logger}
	h.writer = NewAsyncWriter(h.handle)
	h.writer.Start()
	return h
}

// Record queues one history entry. Never blocks.
func (h *AsyncHistory) Record(entry core.HistoryEntry) {
	if !h.writer.Write(entry) {
		h.logger.Warn("history queue full, entry dropped",
			zap.String("correlation_id", entry.CorrelationID))
	}
}

func (h *AsyncHistory) handle(op WriteOperation) error {
	entry, ok := op.Data.(core.HistoryEntry)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	_, err := h.repo.Insert(ctx, GenerationRecord{
		CorrelationID: entry.CorrelationID,
		Prompt:        entry.Prompt,
		Seed:          entry.Seed,
		Width:         entry.Width,
		Height:        entry.Height,
		ImagePath:     entry.ImagePath,
		DurationMS:    entry.DurationMS,
		Status:        entry.Status,
		ErrorMessage:  entry.ErrorMessage,
	})
	if err != nil {
		h.logger.Error("failed to insert history record",
			zap.String("correlation_id", entry.CorrelationID),
			zap.Error(err))
	}
	return err
}

// Stop drains pending writes and stops the background goroutine.
func (h *AsyncHistory) Stop() {
	h.writer.StopWithTimeout(DefaultDrainTimeout)
}

var _ core.HistoryRecorder = (*AsyncHistory)(nil)
