// Package download streams HTTP payloads to disk with progress reporting,
// partial-file staging, and cache reuse by content-length match.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ErrCancelled is the dedicated cancellation outcome. It is never a
// download failure: the caller asked to stop and no partial file remains.
var ErrCancelled = errors.New("download cancelled")

// HTTPDoer matches http.Client's Do (allows mocking in tests).
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Task describes one transfer.
type Task struct {
	URL          string
	Dest         string
	ExpectedSize int64 // optional; <=0 means unknown
}

// ProgressFunc receives updates only when the integer percent changes, which
// bounds callback volume on large transfers. total is -1 when unknown.
type ProgressFunc func(percent int, downloaded, total int64)

// Manager performs downloads over a shared HTTP client.
type Manager struct {
	http HTTPDoer
}

// New returns a Manager with a client tuned for large transfers.
func New() *Manager {
	return NewWith(&http.Client{
		Timeout: 0, // no overall timeout for large archives
		Transport: &http.Transport{
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		},
	})
}

// NewWith allows injecting the HTTP client for testing.
func NewWith(h HTTPDoer) *Manager {
	if h == nil {
		return New()
	}
	return &Manager{http: h}
}

// Fetch downloads task.URL to task.Dest. Writes go to a .part sibling that
// is promoted atomically on success, so cancellation or failure never leaves
// a corrupt file at the destination.
//
// Cache policy: when a file already exists at the destination and the remote
// content length is known, the cached file is reused iff the sizes match
// exactly; a mismatch removes the cache and re-downloads. When the remote
// length cannot be determined a non-empty cached file is trusted as is.
func (m *Manager) Fetch(ctx context.Context, task Task, progress ProgressFunc) error {
	if task.URL == "" || task.Dest == "" {
		return errors.New("URL and Dest required")
	}
	if progress == nil {
		progress = func(int, int64, int64) {}
	}

	remoteSize := task.ExpectedSize
	if remoteSize <= 0 {
		remoteSize = m.headContentLength(ctx, task.URL)
	}

	if info, err := os.Stat(task.Dest); err == nil {
		if remoteSize > 0 && info.Size() == remoteSize {
			progress(100, info.Size(), remoteSize)
			return nil
		}
		if remoteSize <= 0 && info.Size() > 0 {
			// Best effort: remote length unknown, trust the cache.
			progress(100, info.Size(), -1)
			return nil
		}
		if err := os.Remove(task.Dest); err != nil {
			return fmt.Errorf("remove stale cache: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(task.Dest), 0o755); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return err
	}
	resp, err := m.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		return fmt.Errorf("download %s: %w", task.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download %s: HTTP %d %s", task.URL, resp.StatusCode, resp.Status)
	}

	total := resp.ContentLength
	if total <= 0 && remoteSize > 0 {
		total = remoteSize
	}

	partPath := task.Dest + ".part"
	out, err := os.Create(partPath)
	if err != nil {
		return err
	}

	digest := xxhash.New()
	written, copyErr := io.Copy(io.MultiWriter(out, digest), &percentReader{
		ctx:      ctx,
		reader:   resp.Body,
		total:    total,
		progress: progress,
	})
	closeErr := out.Close()

	if copyErr != nil {
		_ = os.Remove(partPath)
		if errors.Is(copyErr, context.Canceled) || ctx.Err() != nil {
			return ErrCancelled
		}
		return fmt.Errorf("download %s: %w", task.URL, copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(partPath)
		return closeErr
	}
	if total > 0 && written != total {
		_ = os.Remove(partPath)
		return fmt.Errorf("download %s: short read %d of %d bytes", task.URL, written, total)
	}

	if err := os.Rename(partPath, task.Dest); err != nil {
		_ = os.Remove(partPath)
		return err
	}

	// Digest sidecar for later cache diagnostics; failures here do not fail
	// the download.
	_ = os.WriteFile(task.Dest+".xxh64", []byte(strconv.FormatUint(digest.Sum64(), 16)), 0o644)

	progress(100, written, total)
	return nil
}

// headContentLength probes the remote size; 0 means unknown.
func (m *Manager) headContentLength(ctx context.Context, url string) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return 0
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0
	}
	if resp.ContentLength > 0 {
		return resp.ContentLength
	}
	if v := resp.Header.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// percentReader reports progress only on integer percent changes and checks
// the context between reads so cancellation lands at a clean boundary.
type percentReader struct {
	ctx        context.Context
	reader     io.Reader
	total      int64
	downloaded int64
	lastPct    int
	progress   ProgressFunc
}

func (pr *percentReader) Read(p []byte) (int, error) {
	if err := pr.ctx.Err(); err != nil {
		return 0, context.Canceled
	}
	n, err := pr.reader.Read(p)
	pr.downloaded += int64(n)
	if pr.total > 0 {
		pct := int(pr.downloaded * 100 / pr.total)
		if pct > 100 {
			pct = 100
		}
		if pct != pr.lastPct {
			pr.lastPct = pct
			pr.progress(pct, pr.downloaded, pr.total)
		}
	}
	return n, err
}
