package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
)

// probeDoer reports existence per URL and counts requests.
type probeDoer struct {
	mu       sync.Mutex
	exists   map[string]int64 // url -> content length
	failWith map[string]error // url -> transport error
	methods  []string
}

func (d *probeDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	d.methods = append(d.methods, req.Method)
	url := req.URL.String()
	size, ok := d.exists[url]
	err := d.failWith[url]
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
	return &http.Response{
		StatusCode:    http.StatusOK,
		ContentLength: size,
		Body:          io.NopCloser(strings.NewReader("")),
	}, nil
}

func archiveURLs(base, branch string, sizes map[int]int64) map[string]int64 {
	out := map[string]int64{}
	for v, s := range sizes {
		out[fmt.Sprintf("%s/linux/amd64/%s/0/%d.pwr", base, branch, v)] = s
	}
	return out
}

func TestArchiveURL(t *testing.T) {
	r := NewWith(&probeDoer{}, "https://patches.example", "windows", "amd64")
	got := r.ArchiveURL("pre-release", 12, "pwr")
	want := "https://patches.example/windows/amd64/pre-release/0/12.pwr"
	if got != want {
		t.Errorf("url = %q, want %q", got, want)
	}
}

func TestAvailableVersions(t *testing.T) {
	base := "https://patches.example"
	doer := &probeDoer{exists: archiveURLs(base, "release", map[int]int64{1: 100, 2: 100, 3: 100})}
	r := NewWith(doer, base, "linux", "amd64")

	got := r.AvailableVersions(context.Background(), "release", 5, "pwr")
	want := []int{3, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("versions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("versions = %v, want %v (descending)", got, want)
		}
	}

	// Probes must be HEAD only, no body fetches.
	for _, m := range doer.methods {
		if m != http.MethodHead {
			t.Errorf("probe used %s, want HEAD", m)
		}
	}
}

func TestAvailableVersionsProbeErrorIsAbsence(t *testing.T) {
	base := "https://patches.example"
	doer := &probeDoer{
		exists: archiveURLs(base, "release", map[int]int64{1: 10, 3: 10}),
		failWith: map[string]error{
			base + "/linux/amd64/release/0/2.pwr": errors.New("connection reset"),
		},
	}
	r := NewWith(doer, base, "linux", "amd64")

	got := r.AvailableVersions(context.Background(), "release", 3, "pwr")
	// Version 2's probe failed: treated as nonexistent, enumeration is not
	// aborted and the partial result stands.
	if len(got) != 2 || got[0] != 3 || got[1] != 1 {
		t.Errorf("versions = %v, want [3 1]", got)
	}
}

func TestResolveLatest(t *testing.T) {
	base := "https://patches.example"

	t.Run("HeadOfRemoteList", func(t *testing.T) {
		doer := &probeDoer{exists: archiveURLs(base, "release", map[int]int64{1: 10, 2: 10, 3: 10})}
		r := NewWith(doer, base, "linux", "amd64")
		if got := r.ResolveLatest(context.Background(), "release", 5, "pwr", t.TempDir()); got != 3 {
			t.Errorf("latest = %d, want 3", got)
		}
	})

	t.Run("FallsBackToPointer", func(t *testing.T) {
		dir := t.TempDir()
		if err := SaveLatestPointer(dir, "release", 4); err != nil {
			t.Fatal(err)
		}
		r := NewWith(&probeDoer{}, base, "linux", "amd64")
		if got := r.ResolveLatest(context.Background(), "release", 5, "pwr", dir); got != 4 {
			t.Errorf("latest = %d, want 4 from pointer", got)
		}
	})

	t.Run("NoVersionsAnywhere", func(t *testing.T) {
		r := NewWith(&probeDoer{}, base, "linux", "amd64")
		if got := r.ResolveLatest(context.Background(), "release", 5, "pwr", t.TempDir()); got != 0 {
			t.Errorf("latest = %d, want 0", got)
		}
	})
}

func TestProbeSizeUnknownLength(t *testing.T) {
	base := "https://patches.example"
	doer := &probeDoer{exists: map[string]int64{base + "/a": -1}}
	r := NewWith(doer, base, "linux", "amd64")
	size, ok := r.ProbeSize(context.Background(), base+"/a")
	if !ok || size != -1 {
		t.Errorf("probe = (%d, %v), want (-1, true)", size, ok)
	}
}

func TestLatestPointerRoundTrip(t *testing.T) {
	dir := t.TempDir()

	if ptr, err := LoadLatestPointer(dir, "release"); err != nil || ptr != nil {
		t.Fatalf("missing pointer should be (nil, nil), got (%v, %v)", ptr, err)
	}

	if err := SaveLatestPointer(dir, "release", 7); err != nil {
		t.Fatal(err)
	}
	ptr, err := LoadLatestPointer(dir, "release")
	if err != nil || ptr == nil {
		t.Fatalf("load failed: %v", err)
	}
	if ptr.Version != 7 || ptr.SchemaVersion != latestSchemaVersion {
		t.Errorf("pointer = %+v", ptr)
	}
	if ptr.UpdatedAt.IsZero() {
		t.Error("updatedAt not set")
	}

	// Branches are independent.
	if other, _ := LoadLatestPointer(dir, "pre-release"); other != nil {
		t.Error("pre-release pointer should not exist")
	}
}
