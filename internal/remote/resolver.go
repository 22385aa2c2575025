// Package remote talks to the patch server: version existence probes,
// archive URLs, and the per-branch latest pointer record.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// probeConcurrency bounds the existence probe fan-out. This is the only
// fan-out point in the whole launcher.
const probeConcurrency = 8

// HTTPDoer matches http.Client's Do (allows mocking in tests).
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Resolver enumerates the versions available on the patch server.
type Resolver struct {
	http    HTTPDoer
	baseURL string
	osName  string
	arch    string
}

// New creates a resolver against the given patch server base URL.
func New(baseURL, osName, arch string) *Resolver {
	return NewWith(&http.Client{Timeout: 15 * time.Second}, baseURL, osName, arch)
}

// NewWith allows injecting the HTTP client for testing.
func NewWith(h HTTPDoer, baseURL, osName, arch string) *Resolver {
	if h == nil {
		h = &http.Client{Timeout: 15 * time.Second}
	}
	return &Resolver{http: h, baseURL: baseURL, osName: osName, arch: arch}
}

// ArchiveURL is the download URL for one version's patch archive.
func (r *Resolver) ArchiveURL(branch string, version int, ext string) string {
	return fmt.Sprintf("%s/%s/%s/%s/0/%d.%s", r.baseURL, r.osName, r.arch, branch, version, ext)
}

// AvailableVersions probes versions 1..ceiling on branch and returns those
// that exist, sorted descending. Probes run concurrently with bounded
// fan-out; an individual probe error counts as "does not exist" rather than
// aborting the enumeration, so partial results are normal.
func (r *Resolver) AvailableVersions(ctx context.Context, branch string, ceiling int, ext string) []int {
	type probe struct {
		version int
		exists  bool
	}

	versions := make(chan int)
	results := make(chan probe)

	var wg sync.WaitGroup
	for i := 0; i < probeConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := range versions {
				results <- probe{version: v, exists: r.Exists(ctx, branch, v, ext)}
			}
		}()
	}

	go func() {
		for v := 1; v <= ceiling; v++ {
			versions <- v
		}
		close(versions)
		wg.Wait()
		close(results)
	}()

	var found []int
	for p := range results {
		if p.exists {
			found = append(found, p.version)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(found)))
	return found
}

// Exists issues a HEAD probe for one version. Any transport error or
// non-success status reports absence.
func (r *Resolver) Exists(ctx context.Context, branch string, version int, ext string) bool {
	size, ok := r.ProbeSize(ctx, r.ArchiveURL(branch, version, ext))
	return ok && size != 0
}

// ProbeSize issues a HEAD request and returns the advertised content length.
// ok is false on transport errors and non-2xx statuses. A reachable archive
// with an unknown length returns (-1, true).
func (r *Resolver) ProbeSize(ctx context.Context, url string) (int64, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, false
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return 0, false
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, false
	}
	if resp.ContentLength <= 0 {
		return -1, true
	}
	return resp.ContentLength, true
}

// ResolveLatest returns the concrete version "latest" maps to for a branch:
// the newest remote version when any probe succeeds, otherwise the last
// version recorded in the on-disk latest pointer, otherwise 0.
func (r *Resolver) ResolveLatest(ctx context.Context, branch string, ceiling int, ext, recordDir string) int {
	if versions := r.AvailableVersions(ctx, branch, ceiling, ext); len(versions) > 0 {
		return versions[0]
	}
	if ptr, err := LoadLatestPointer(recordDir, branch); err == nil && ptr != nil {
		return ptr.Version
	}
	return 0
}
