package postal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Download phases reported through the progress side channel.
const (
	PhaseDownload = "download"
	PhaseVerify   = "verify"
	PhaseExtract  = "extract"
)

// componentJob represents a unit of work for the download worker pool.
type componentJob struct {
	// spec is the component to download.
	spec ComponentSpec

	// destDir is the final directory the component extracts into.
	destDir string
}

// componentResult contains the result of one component download.
type componentResult struct {
	// name identifies which component this result is for.
	name string

	// err is nil on success, or the error that occurred.
	err error
}

// componentFetcher downloads, verifies, and extracts component archives.
type componentFetcher struct {
	// httpClient is used for archive downloads.
	httpClient HTTPClient

	// storage provides the staging area and directory helpers.
	storage storageInterface

	// logger receives diagnostic messages. May be nil.
	logger Logger

	// wg tracks active download workers.
	wg sync.WaitGroup
}

// newComponentFetcher creates a component fetcher.
func newComponentFetcher(client HTTPClient, storage storageInterface, logger Logger) *componentFetcher {
	return &componentFetcher{
		httpClient: client,
		storage:    storage,
		logger:     logger,
	}
}

// fetchAll downloads the given components with a bounded worker pool.
// The first error cancels the remaining work and is returned.
func (f *componentFetcher) fetchAll(ctx context.Context, version string, jobs []componentJob, concurrency int, progressFn func(DownloadProgress)) error {
	if len(jobs) == 0 {
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(jobs) {
		concurrency = len(jobs)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobCh := make(chan componentJob, len(jobs))
	results := make(chan componentResult, len(jobs))

	for i := 0; i < concurrency; i++ {
		f.wg.Add(1)
		go f.worker(ctx, version, jobCh, results, progressFn)
	}

	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)

	var firstErr error
	for range jobs {
		result := <-results
		if result.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("component %s: %w", result.name, result.err)
			cancel() // stop remaining workers
		}
	}

	f.wg.Wait()

	return firstErr
}

// worker processes component download jobs until the channel closes. It
// always drains the channel and emits exactly one result per job, so the
// collector in fetchAll never waits on a result that will not arrive; after
// cancellation the remaining jobs are failed immediately without any work.
func (f *componentFetcher) worker(ctx context.Context, version string, jobs <-chan componentJob, results chan<- componentResult, progressFn func(DownloadProgress)) {
	defer f.wg.Done()

	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- componentResult{name: job.spec.Name, err: err}
			continue
		}
		err := f.fetchComponent(ctx, version, job.spec, job.destDir, progressFn)
		results <- componentResult{name: job.spec.Name, err: err}
	}
}

// fetchComponent streams one component archive to the staging area, verifies
// its checksum, extracts it, and atomically publishes the extracted tree at
// destDir. On any failure no partial state becomes visible at destDir.
func (f *componentFetcher) fetchComponent(ctx context.Context, version string, spec ComponentSpec, destDir string, progressFn func(DownloadProgress)) error {
	staging := f.storage.stagingDir()
	archivePath, err := f.downloadArchive(ctx, version, spec, staging, progressFn)
	if err != nil {
		return err
	}
	defer os.Remove(archivePath)

	f.report(progressFn, DownloadProgress{Version: version, Component: spec.Name, Phase: PhaseExtract})

	// Extract next to the final directory, publish with a single rename so
	// concurrent readers never observe a half-extracted tree.
	extractDir, err := os.MkdirTemp(staging, spec.Name+"-extract-")
	if err != nil {
		return fmt.Errorf("%w: creating extract dir: %v", ErrStorage, err)
	}
	defer os.RemoveAll(extractDir)

	if err := extractTarGz(archivePath, extractDir); err != nil {
		return err
	}

	if err := f.storage.ensureDir(filepath.Dir(destDir)); err != nil {
		return err
	}

	// A stale directory (force re-download, or repair of corrupt content) is
	// renamed aside rather than removed in place, so a concurrent reader sees
	// either the old complete tree or the new one at every instant.
	asideDir := ""
	if _, err := os.Stat(destDir); err == nil {
		asideDir = filepath.Join(staging, fmt.Sprintf("%s-old-%d", spec.Name, time.Now().UnixNano()))
		if err := os.Rename(destDir, asideDir); err != nil {
			return fmt.Errorf("%w: moving stale component dir aside: %v", ErrStorage, err)
		}
	}
	if err := os.Rename(extractDir, destDir); err != nil {
		if asideDir != "" {
			os.Rename(asideDir, destDir)
		}
		return fmt.Errorf("%w: publishing component dir: %v", ErrStorage, err)
	}
	if asideDir != "" {
		os.RemoveAll(asideDir)
	}

	if f.logger != nil {
		f.logger.Info("component installed", "version", version, "component", spec.Name, "path", destDir)
	}
	return nil
}

// downloadArchive streams the archive to a temporary file in the staging
// area, verifying its SHA-256 digest as it is written. Transient network
// failures are retried with backoff; a checksum mismatch is surfaced
// immediately and never retried.
func (f *componentFetcher) downloadArchive(ctx context.Context, version string, spec ComponentSpec, staging string, progressFn func(DownloadProgress)) (string, error) {
	if err := f.storage.ensureDir(staging); err != nil {
		return "", err
	}

	var lastErr error

	backoff := InitialBackoff
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			if f.logger != nil {
				f.logger.Warn("retrying download", "component", spec.Name, "attempt", attempt, "error", lastErr)
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			backoff *= 2
			if backoff > MaxBackoff {
				backoff = MaxBackoff
			}
		}

		path, err := f.downloadOnce(ctx, version, spec, staging, progressFn)
		if err == nil {
			return path, nil
		}
		if !isTransient(err) {
			return "", err
		}
		lastErr = err
	}

	return "", lastErr
}

// downloadOnce performs a single download-and-verify attempt.
func (f *componentFetcher) downloadOnce(ctx context.Context, version string, spec ComponentSpec, staging string, progressFn func(DownloadProgress)) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.URL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w: %v", spec.URL, ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			// Server-side failures are retryable.
			return "", fmt.Errorf("downloading %s: status %d: %w", spec.URL, resp.StatusCode, ErrNetwork)
		}
		return "", fmt.Errorf("downloading %s: unexpected status %d", spec.URL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(staging, spec.Name+"-*.tar.gz")
	if err != nil {
		return "", fmt.Errorf("%w: creating temp file: %v", ErrStorage, err)
	}
	tmpPath := tmp.Name()

	hasher := sha256.New()
	var completed int64
	reader := &progressReader{
		reader: io.TeeReader(resp.Body, hasher),
		onRead: func(delta int64) {
			completed += delta
			f.report(progressFn, DownloadProgress{
				Version:        version,
				Component:      spec.Name,
				Phase:          PhaseDownload,
				BytesTotal:     resp.ContentLength,
				BytesCompleted: completed,
			})
		},
	}

	_, err = io.Copy(tmp, reader)
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("downloading %s: %w: %v", spec.URL, ErrNetwork, err)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: closing temp file: %v", ErrStorage, closeErr)
	}

	f.report(progressFn, DownloadProgress{Version: version, Component: spec.Name, Phase: PhaseVerify})

	actual := hex.EncodeToString(hasher.Sum(nil))
	if actual != spec.SHA256 {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: component %s: expected %s, got %s", ErrIntegrity, spec.Name, spec.SHA256, actual)
	}

	return tmpPath, nil
}

// report invokes a progress callback, isolating the download from callback
// failures.
func (f *componentFetcher) report(fn func(DownloadProgress), p DownloadProgress) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil && f.logger != nil {
			f.logger.Warn("progress callback panicked", "error", r)
		}
	}()
	fn(p)
}

// isTransient reports whether a download error is worth retrying.
// Integrity failures and cancellations are not.
func isTransient(err error) bool {
	if errors.Is(err, ErrIntegrity) || errors.Is(err, ErrStorage) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrNetwork)
}

// progressReader wraps an io.Reader and reports byte deltas as they are read.
type progressReader struct {
	reader io.Reader
	onRead func(delta int64)
}

func (pr *progressReader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	if n > 0 && pr.onRead != nil {
		pr.onRead(int64(n))
	}
	return
}

// readAllLimited reads r to EOF, failing if the content exceeds limit bytes.
func readAllLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response exceeds %d bytes", limit)
	}
	return data, nil
}
