package download

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// EnsureModel makes sure a model file exists at path, fetching it from url
// when missing. An existing file is trusted as-is; a partial file from an
// earlier interrupted run is resumed.
func EnsureModel(ctx context.Context, name, path, url string, onProgress func(ProgressInfo), logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		return fmt.Errorf("download: no path configured for %s model", name)
	}

	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if url == "" {
		return fmt.Errorf("download: %s model missing at %s and no download URL configured", name, path)
	}

	logger.Info("downloading model",
		zap.String("model", name),
		zap.String("url", url),
		zap.String("dest", path),
	)

	result, err := Fetch(ctx, Options{
		URL:        url,
		DestPath:   path,
		OnProgress: onProgress,
		Resume:     true,
	})
	if err != nil {
		return fmt.Errorf("download: fetching %s model: %w", name, err)
	}

	logger.Info("model downloaded",
		zap.String("model", name),
		zap.String("size", FormatBytes(result.TotalBytes)),
		zap.Bool("resumed", result.Resumed),
	)
	return nil
}
