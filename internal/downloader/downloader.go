// Package downloader retrieves 15-minute snapshot archives from the
// upstream feed, caching extracted CSVs on local disk.
package downloader

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/observatory-global/narrative-flow/internal/errors"
	"github.com/observatory-global/narrative-flow/internal/monitoring"
	"github.com/observatory-global/narrative-flow/internal/resilience"
)

const (
	// timestampLayout is the interval stamp embedded in snapshot URLs.
	timestampLayout = "20060102150405"

	intervalMinutes = 15

	// maxSnapshotBytes bounds a single extracted CSV. Snapshots run
	// 5-15 MB; anything past this is treated as corrupt.
	maxSnapshotBytes = 512 << 20
)

// Config controls interval math, retry behavior and cache placement.
type Config struct {
	BaseURL string
	// CacheDir holds extracted CSVs; created on first use.
	CacheDir string
	// ProcessingDelay is subtracted before flooring to the interval,
	// allowing the upstream publisher time to finish writing.
	ProcessingDelay time.Duration
	RetryAttempts   int
	RetryBaseDelay  time.Duration
	CacheMaxAge     time.Duration
	Timeout         time.Duration
}

// DefaultConfig mirrors the upstream publication cadence: a new archive
// roughly every 15 minutes, visible about 15 minutes after its stamp.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://data.gdeltproject.org/gdeltv2",
		CacheDir:        "/tmp/gkg-cache",
		ProcessingDelay: 15 * time.Minute,
		RetryAttempts:   3,
		RetryBaseDelay:  5 * time.Second,
		CacheMaxAge:     1 * time.Hour,
		Timeout:         60 * time.Second,
	}
}

// Downloader fetches, extracts and caches snapshot files. Safe for
// concurrent use; concurrent fetches of the same interval are collapsed
// into a single upstream request.
type Downloader struct {
	cfg     Config
	client  *http.Client
	logger  *monitoring.Logger
	metrics *monitoring.Metrics
	group   singleflight.Group
	limiter *rate.Limiter
	now     func() time.Time
}

func New(cfg Config, logger *monitoring.Logger, metrics *monitoring.Metrics) *Downloader {
	if cfg.BaseURL == "" {
		cfg = DefaultConfig()
	}
	return &Downloader{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		metrics: metrics,
		// Politeness cap toward the upstream host, not client QoS.
		limiter: rate.NewLimiter(rate.Every(time.Second), 4),
		now:     time.Now,
	}
}

// LatestTimestamp returns the most recent interval stamp expected to be
// published: current UTC time minus the processing delay, floored to the
// 15-minute boundary.
func (d *Downloader) LatestTimestamp() string {
	t := d.now().UTC().Add(-d.cfg.ProcessingDelay)
	floored := t.Truncate(intervalMinutes * time.Minute)
	return floored.Format(timestampLayout)
}

// PreviousTimestamp returns the interval immediately before ts.
func PreviousTimestamp(ts string) (string, error) {
	t, err := time.ParseInLocation(timestampLayout, ts, time.UTC)
	if err != nil {
		return "", errors.NewInternalError(fmt.Sprintf("bad interval stamp %q", ts), err)
	}
	return t.Add(-intervalMinutes * time.Minute).Format(timestampLayout), nil
}

// FetchLatest downloads the newest available snapshot. If the latest
// interval fails for any reason after retries it falls back once to
// the previous interval. When neither is available it returns
// ("", nil): no fresh data is an expected condition, not an error.
// Only context cancellation propagates.
func (d *Downloader) FetchLatest(ctx context.Context) (string, error) {
	ts := d.LatestTimestamp()
	path, err := d.FetchInterval(ctx, ts)
	if err == nil {
		return path, nil
	}
	if ctx.Err() != nil {
		return "", err
	}

	prev, perr := PreviousTimestamp(ts)
	if perr != nil {
		return "", perr
	}
	path, perr = d.FetchInterval(ctx, prev)
	if perr == nil {
		return path, nil
	}
	if ctx.Err() != nil {
		return "", perr
	}
	if d.logger != nil {
		d.logger.Warn("no snapshot available, degrading to empty result",
			"interval", ts, "previous", prev,
			"interval_error", err.Error(), "previous_error", perr.Error())
	}
	return "", nil
}

// FetchInterval downloads and extracts the snapshot for one interval
// stamp, returning the path of the cached CSV. A cached file
// short-circuits the network entirely.
func (d *Downloader) FetchInterval(ctx context.Context, ts string) (string, error) {
	cached := d.cachePath(ts)
	if fileExists(cached) {
		if d.metrics != nil {
			d.metrics.IncrementCacheHit()
		}
		if d.logger != nil {
			d.logger.CacheHitLogger(cached)
		}
		return cached, nil
	}
	if d.metrics != nil {
		d.metrics.IncrementCacheMiss()
	}

	// Collapse concurrent fetches of the same interval.
	v, err, _ := d.group.Do(ts, func() (interface{}, error) {
		return d.download(ctx, ts)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (d *Downloader) download(ctx context.Context, ts string) (string, error) {
	if err := os.MkdirAll(d.cfg.CacheDir, 0o755); err != nil {
		return "", errors.NewInternalError("creating cache directory", err)
	}

	url := fmt.Sprintf("%s/%s.snapshot.zip", strings.TrimRight(d.cfg.BaseURL, "/"), ts)
	zipPath := filepath.Join(d.cfg.CacheDir, ts+".snapshot.zip")

	retryCfg := resilience.RetryConfig{
		MaxAttempts:     d.cfg.RetryAttempts,
		InitialDelay:    d.cfg.RetryBaseDelay,
		MaxDelay:        2 * time.Minute,
		BackoffFactor:   2.0,
		RetryableErrors: errors.IsRetryableError,
	}

	attempt := 0
	err := resilience.RetryWithConfig(ctx, retryCfg, func() error {
		attempt++
		return d.fetchOnce(ctx, url, zipPath, attempt)
	})
	if err != nil {
		return "", err
	}

	csvPath, err := d.extract(zipPath, ts)
	os.Remove(zipPath)
	if err != nil {
		return "", err
	}
	if d.metrics != nil {
		d.metrics.IncrementDownloads()
	}
	return csvPath, nil
}

func (d *Downloader) fetchOnce(ctx context.Context, url, dest string, attempt int) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return errors.NewInternalError("waiting on upstream rate limiter", err)
	}

	start := d.now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.NewInternalError("building snapshot request", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logAttempt(url, 0, attempt, d.now().Sub(start), 0, false)
		return errors.NewTransientError("requesting snapshot", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		d.logAttempt(url, resp.StatusCode, attempt, d.now().Sub(start), 0, false)
		return errors.NewNotPublishedError(url)
	}
	if resp.StatusCode != http.StatusOK {
		d.logAttempt(url, resp.StatusCode, attempt, d.now().Sub(start), 0, false)
		if resilience.IsRetryableHTTPStatus(resp.StatusCode) {
			return errors.NewTransientError(fmt.Sprintf("snapshot fetch returned %d", resp.StatusCode), nil)
		}
		return errors.NewInternalError(fmt.Sprintf("snapshot fetch returned %d", resp.StatusCode), nil)
	}

	size, err := writeAtomic(dest, io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return errors.NewTransientError("writing snapshot archive", err)
	}
	d.logAttempt(url, resp.StatusCode, attempt, d.now().Sub(start), size, true)
	return nil
}

// extract unpacks the single CSV entry from the archive into the cache,
// written atomically so partial extractions never surface as cache hits.
func (d *Downloader) extract(zipPath, ts string) (string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", errors.NewMalformedInputError("opening snapshot archive", err.Error())
	}
	defer zr.Close()

	if len(zr.File) == 0 {
		return "", errors.NewMalformedInputError("snapshot archive is empty", ts)
	}

	entry := zr.File[0]
	rc, err := entry.Open()
	if err != nil {
		return "", errors.NewMalformedInputError("reading snapshot archive entry", err.Error())
	}
	defer rc.Close()

	dest := d.cachePath(ts)
	if _, err := writeAtomic(dest, io.LimitReader(rc, maxSnapshotBytes)); err != nil {
		return "", errors.NewInternalError("writing extracted snapshot", err)
	}
	return dest, nil
}

// CleanupOldFiles removes cached files older than the configured max
// age, returning how many were deleted.
func (d *Downloader) CleanupOldFiles() int {
	entries, err := os.ReadDir(d.cfg.CacheDir)
	if err != nil {
		return 0
	}

	cutoff := d.now().Add(-d.cfg.CacheMaxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if os.Remove(filepath.Join(d.cfg.CacheDir, e.Name())) == nil {
				removed++
			}
		}
	}
	return removed
}

// CacheStats reports file count and total bytes in the cache directory.
func (d *Downloader) CacheStats() (files int, bytes int64) {
	entries, err := os.ReadDir(d.cfg.CacheDir)
	if err != nil {
		return 0, 0
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if info, err := e.Info(); err == nil {
			files++
			bytes += info.Size()
		}
	}
	return files, bytes
}

func (d *Downloader) cachePath(ts string) string {
	return filepath.Join(d.cfg.CacheDir, ts+".snapshot.csv")
}

func (d *Downloader) logAttempt(url string, status, attempt int, dur time.Duration, size int64, ok bool) {
	if d.logger != nil {
		d.logger.DownloadLogger(url, status, attempt, dur, size, ok)
	}
}

// writeAtomic streams r into a temp file next to dest, then renames it
// into place. Returns bytes written.
func writeAtomic(dest string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, err
	}
	return n, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
