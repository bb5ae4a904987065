// Package download fetches model files over HTTP with resume support,
// progress reporting, and SHA256 verification. Model files run to tens of
// gigabytes, so interrupted downloads must be resumable.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Options configures one download.
type Options struct {
	// URL to download from
	URL string
	// DestPath is the local file path to save to
	DestPath string
	// ExpectedSHA256 verifies the finished file when non-empty (lowercase hex)
	ExpectedSHA256 string
	// HTTPClient overrides the default client (no timeout; context bounds it)
	HTTPClient *http.Client
	// OnProgress receives rate-limited progress updates
	OnProgress func(ProgressInfo)
	// Resume continues a partial file when the server supports Range requests
	Resume bool
}

// Result describes a completed download.
type Result struct {
	// BytesDownloaded in this session (excludes resumed bytes)
	BytesDownloaded int64
	// TotalBytes reported by the server
	TotalBytes int64
	// Resumed is true when the download continued a partial file
	Resumed bool
	// ChecksumValid is true when a checksum was provided and matched
	ChecksumValid bool
	// Path is the final file path
	Path string
}

// Fetch downloads a file per the options. On a 416 response with a matching
// checksum the existing file is accepted as complete; otherwise the partial
// file is discarded and the download restarts from scratch.
func Fetch(ctx context.Context, opts Options) (*Result, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("download: URL is required")
	}
	if opts.DestPath == "" {
		return nil, fmt.Errorf("download: DestPath is required")
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	if err := os.MkdirAll(filepath.Dir(opts.DestPath), 0o755); err != nil {
		return nil, fmt.Errorf("download: creating destination directory: %w", err)
	}

	var resumeFrom int64
	if opts.Resume {
		if info, err := os.Stat(opts.DestPath); err == nil {
			resumeFrom = info.Size()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("download: creating request: %w", err)
	}
	if resumeFrom > 0 {
		req.Header.Set("Range", BuildRangeHeader(resumeFrom))
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: request failed: %w", err)
	}
	defer resp.Body.Close()

	var totalSize int64
	var resumed bool

	switch resp.StatusCode {
	case http.StatusOK:
		totalSize = resp.ContentLength
		resumeFrom = 0 // server sent the full file

	case http.StatusPartialContent:
		resumed = true
		if contentRange := resp.Header.Get("Content-Range"); contentRange != "" {
			if _, _, total, parseErr := ParseContentRange(contentRange); parseErr == nil && total > 0 {
				totalSize = total
			}
		}
		if totalSize == 0 && resp.ContentLength > 0 {
			totalSize = resumeFrom + resp.ContentLength
		}

	case http.StatusRequestedRangeNotSatisfiable:
		// The file may already be complete.
		if opts.ExpectedSHA256 != "" {
			valid, verifyErr := VerifyChecksum(opts.DestPath, opts.ExpectedSHA256)
			if verifyErr == nil && valid {
				info, _ := os.Stat(opts.DestPath)
				return &Result{
					TotalBytes:    info.Size(),
					Resumed:       true,
					ChecksumValid: true,
					Path:          opts.DestPath,
				}, nil
			}
		}
		_ = os.Remove(opts.DestPath)
		opts.Resume = false
		return Fetch(ctx, opts)

	default:
		return nil, fmt.Errorf("download: unexpected status %d %s", resp.StatusCode, resp.Status)
	}

	var file *os.File
	if resumed {
		file, err = os.OpenFile(opts.DestPath, os.O_APPEND|os.O_WRONLY, 0o644)
	} else {
		file, err = os.Create(opts.DestPath)
	}
	if err != nil {
		return nil, fmt.Errorf("download: opening destination file: %w", err)
	}
	defer file.Close()

	tracker := NewProgressTracker(totalSize)
	if resumed {
		tracker.SetDownloaded(resumeFrom)
	}

	written, err := io.Copy(file, &progressReader{
		reader:     resp.Body,
		tracker:    tracker,
		onProgress: opts.OnProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("download: interrupted: %w", err)
	}
	if err := file.Sync(); err != nil {
		return nil, fmt.Errorf("download: syncing file: %w", err)
	}

	result := &Result{
		BytesDownloaded: written,
		TotalBytes:      totalSize,
		Resumed:         resumed,
		Path:            opts.DestPath,
	}

	if opts.ExpectedSHA256 != "" {
		file.Close()
		valid, verifyErr := VerifyChecksum(opts.DestPath, opts.ExpectedSHA256)
		if verifyErr != nil {
			return nil, fmt.Errorf("download: checksum verification failed: %w", verifyErr)
		}
		if !valid {
			return nil, fmt.Errorf("download: checksum mismatch, file may be corrupted")
		}
		result.ChecksumValid = true
	}

	return result, nil
}

// progressCallbackInterval rate-limits OnProgress to every ~100KB.
const progressCallbackInterval = 102400

// progressReader wraps the response body to feed the tracker.
type progressReader struct {
	reader       io.Reader
	tracker      *ProgressTracker
	onProgress   func(ProgressInfo)
	lastCallback int64
}

func (r *progressReader) Read(p []byte) (n int, err error) {
	n, err = r.reader.Read(p)
	if n > 0 {
		r.tracker.Update(int64(n))
		if r.onProgress != nil {
			downloaded := r.tracker.Downloaded()
			if downloaded-r.lastCallback >= progressCallbackInterval || err == io.EOF {
				r.onProgress(r.tracker.Progress())
				r.lastCallback = downloaded
			}
		}
	}
	return n, err
}
