package downloader

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotZip(t *testing.T, csvContent string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("snapshot.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte(csvContent))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testDownloader(t *testing.T, baseURL string) *Downloader {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.CacheDir = t.TempDir()
	cfg.RetryBaseDelay = time.Millisecond
	cfg.Timeout = 5 * time.Second
	d := New(cfg, nil, nil)
	d.now = func() time.Time {
		return time.Date(2025, 1, 15, 12, 23, 0, 0, time.UTC)
	}
	return d
}

func TestLatestTimestampFloorsInterval(t *testing.T) {
	d := testDownloader(t, "http://example.invalid")

	// 12:23 minus the 15 minute delay is 12:08, floored to 12:00.
	assert.Equal(t, "20250115120000", d.LatestTimestamp())

	d.now = func() time.Time {
		return time.Date(2025, 1, 15, 0, 10, 0, 0, time.UTC)
	}
	// Crosses midnight into the previous day.
	assert.Equal(t, "20250114234500", d.LatestTimestamp())
}

func TestPreviousTimestamp(t *testing.T) {
	prev, err := PreviousTimestamp("20250115120000")
	require.NoError(t, err)
	assert.Equal(t, "20250115114500", prev)

	_, err = PreviousTimestamp("not-a-stamp")
	assert.Error(t, err)
}

func TestFetchIntervalDownloadsAndExtracts(t *testing.T) {
	payload := snapshotZip(t, "row1\trest\nrow2\trest\n")
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		assert.Equal(t, "/20250115120000.snapshot.zip", r.URL.Path)
		w.Write(payload)
	}))
	defer srv.Close()

	d := testDownloader(t, srv.URL)
	path, err := d.FetchInterval(context.Background(), "20250115120000")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "row1\trest\nrow2\trest\n", string(data))
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))

	// The intermediate archive must not linger in the cache.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".zip"))
	}
}

func TestFetchIntervalCacheHitSkipsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("network request on cache hit")
	}))
	defer srv.Close()

	d := testDownloader(t, srv.URL)
	cached := d.cachePath("20250115120000")
	require.NoError(t, os.WriteFile(cached, []byte("cached\tcontent\n"), 0o644))

	path, err := d.FetchInterval(context.Background(), "20250115120000")
	require.NoError(t, err)
	assert.Equal(t, cached, path)
}

func TestFetchLatestFallsBackToPreviousInterval(t *testing.T) {
	payload := snapshotZip(t, "previous\tinterval\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/20250115120000.snapshot.zip" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "/20250115114500.snapshot.zip", r.URL.Path)
		w.Write(payload)
	}))
	defer srv.Close()

	d := testDownloader(t, srv.URL)
	path, err := d.FetchLatest(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, path)
	assert.Contains(t, path, "20250115114500")
}

func TestFetchLatestNoFreshData(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d := testDownloader(t, srv.URL)
	path, err := d.FetchLatest(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, path)

	// One request per interval; 404 is never retried.
	assert.Equal(t, int64(2), atomic.LoadInt64(&hits))
}

func TestFetchLatestDegradesOnPersistentServerErrors(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := testDownloader(t, srv.URL)
	path, err := d.FetchLatest(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, path)

	// Both intervals exhaust their retries before degrading.
	assert.Equal(t, int64(6), atomic.LoadInt64(&hits))
}

func TestFetchLatestPropagatesCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := testDownloader(t, srv.URL)
	_, err := d.FetchLatest(ctx)
	assert.Error(t, err)
}

func TestFetchIntervalRetriesTransientErrors(t *testing.T) {
	payload := snapshotZip(t, "eventually\tfine\n")
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&hits, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	d := testDownloader(t, srv.URL)
	path, err := d.FetchInterval(context.Background(), "20250115120000")
	require.NoError(t, err)
	assert.NotEmpty(t, path)
	assert.Equal(t, int64(3), atomic.LoadInt64(&hits))
}

func TestFetchIntervalCorruptArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a zip archive"))
	}))
	defer srv.Close()

	d := testDownloader(t, srv.URL)
	_, err := d.FetchInterval(context.Background(), "20250115120000")
	assert.Error(t, err)
}

func TestCleanupOldFiles(t *testing.T) {
	d := testDownloader(t, "http://example.invalid")
	dir := d.cfg.CacheDir

	oldFile := filepath.Join(dir, "20250114000000.snapshot.csv")
	newFile := filepath.Join(dir, "20250115120000.snapshot.csv")
	require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(newFile, []byte("new"), 0o644))

	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldFile, stale, stale))

	d.now = time.Now
	assert.Equal(t, 1, d.CleanupOldFiles())

	_, err := os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(newFile)
	assert.NoError(t, err)
}
