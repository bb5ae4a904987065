package download

import (
	"sync"
	"time"
)

// ProgressInfo is a snapshot of download progress for display.
type ProgressInfo struct {
	// Total bytes to download (0 if unknown)
	Total int64
	// Downloaded bytes so far
	Downloaded int64
	// Percent complete (0-100, or -1 if total is unknown)
	Percent float64
	// SpeedBytesPerSec is a smoothed transfer rate
	SpeedBytesPerSec float64
	// SpeedFormatted is the rate as a human-readable string, e.g. "5.2 MB/s"
	SpeedFormatted string
	// ETA is the estimated time remaining (0 if unknown or complete)
	ETA time.Duration
	// Elapsed since the download started
	Elapsed time.Duration
	// DownloadedFormatted and TotalFormatted are human-readable sizes
	DownloadedFormatted string
	TotalFormatted      string
}

// ProgressTracker accumulates download progress with a smoothed speed
// estimate (exponential moving average). Safe for concurrent use.
type ProgressTracker struct {
	mu sync.RWMutex

	total          int64
	downloaded     int64
	startTime      time.Time
	lastUpdateTime time.Time
	lastDownloaded int64
	speedAvg       float64
	speedAlpha     float64
}

// NewProgressTracker creates a tracker. total may be 0 when unknown.
func NewProgressTracker(total int64) *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		total:          total,
		startTime:      now,
		lastUpdateTime: now,
		speedAlpha:     0.3,
	}
}

// Update adds n bytes to the downloaded count.
func (p *ProgressTracker) Update(n int64) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.downloaded += n
	p.updateSpeed()
}

// SetDownloaded sets the absolute downloaded count, used when resuming.
func (p *ProgressTracker) SetDownloaded(downloaded int64) {
	if downloaded < 0 {
		downloaded = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.downloaded = downloaded
	p.updateSpeed()
}

// updateSpeed recalculates the smoothed rate. Caller holds mu.
func (p *ProgressTracker) updateSpeed() {
	now := time.Now()
	elapsed := now.Sub(p.lastUpdateTime).Seconds()
	if elapsed < 0.1 {
		return
	}

	instant := float64(p.downloaded-p.lastDownloaded) / elapsed
	if p.speedAvg == 0 {
		p.speedAvg = instant
	} else {
		p.speedAvg = p.speedAlpha*instant + (1-p.speedAlpha)*p.speedAvg
	}
	p.lastUpdateTime = now
	p.lastDownloaded = p.downloaded
}

// Progress returns the current snapshot.
func (p *ProgressTracker) Progress() ProgressInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	info := ProgressInfo{
		Total:               p.total,
		Downloaded:          p.downloaded,
		Percent:             -1,
		SpeedBytesPerSec:    p.speedAvg,
		SpeedFormatted:      FormatBytes(int64(p.speedAvg)) + "/s",
		Elapsed:             time.Since(p.startTime),
		DownloadedFormatted: FormatBytes(p.downloaded),
		TotalFormatted:      "unknown",
	}

	if p.total > 0 {
		info.Percent = float64(p.downloaded) / float64(p.total) * 100
		if info.Percent > 100 {
			info.Percent = 100
		}
		info.TotalFormatted = FormatBytes(p.total)

		if p.speedAvg > 0 && p.downloaded < p.total {
			remaining := float64(p.total - p.downloaded)
			info.ETA = time.Duration(remaining / p.speedAvg * float64(time.Second))
		}
	}
	return info
}

// Downloaded returns the current downloaded byte count.
func (p *ProgressTracker) Downloaded() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.downloaded
}

// IsComplete reports downloaded >= total; false when total is unknown.
func (p *ProgressTracker) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.total > 0 && p.downloaded >= p.total
}
