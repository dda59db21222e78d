package datasets

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/YuminosukeSato/randsearch/pkg/errors"
	"github.com/YuminosukeSato/randsearch/pkg/log"
)

// FetchTimeout bounds a single download.
var FetchTimeout = 60 * time.Second

// fetchClient traces downloads with the global OpenTelemetry provider.
var fetchClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

// Fetch downloads url into cachePath unless the file already exists. The
// body is written to a temporary file and renamed, so an interrupted
// download never leaves a partial cache.
func Fetch(ctx context.Context, url, cachePath string, logger log.Logger) error {
	if cachePath == "" {
		return errors.NewValidationError("cache_path", "must not be empty", cachePath)
	}
	if logger == nil {
		logger = log.GetLoggerWithName("datasets")
	}
	if info, err := os.Stat(cachePath); err == nil && info.Size() > 0 {
		logger.Debug("Using cached dataset", log.SourceKey, cachePath)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.NewDataError(url, 0, err)
	}
	start := time.Now()
	resp, err := fetchClient.Do(req)
	if err != nil {
		return errors.NewDataError(url, 0, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.NewDataError(url, 0, errors.Newf("unexpected status %s", resp.Status))
	}

	if dir := filepath.Dir(cachePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewDataError(cachePath, 0, err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(cachePath), filepath.Base(cachePath)+".*.part")
	if err != nil {
		return errors.NewDataError(cachePath, 0, err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.NewDataError(url, 0, err)
	}
	if n == 0 {
		return errors.NewDataError(url, 0, errors.ErrEmptyData)
	}
	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		return errors.NewDataError(cachePath, 0, err)
	}

	logger.Info("Dataset downloaded",
		log.SourceKey, url,
		log.BytesKey, n,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}
