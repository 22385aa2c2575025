package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openhytale/launcher-cli/internal/butler"
	"github.com/openhytale/launcher-cli/internal/config"
	"github.com/openhytale/launcher-cli/internal/download"
	"github.com/openhytale/launcher-cli/internal/events"
	"github.com/openhytale/launcher-cli/internal/jre"
	"github.com/openhytale/launcher-cli/internal/patcher"
	"github.com/openhytale/launcher-cli/internal/process"
	"github.com/openhytale/launcher-cli/internal/remote"
)

// fakeResolver serves a fixed latest version and archive sizes.
type fakeResolver struct {
	latest int
	sizes  map[string]int64
}

func (r *fakeResolver) ArchiveURL(branch string, version int, ext string) string {
	return fmt.Sprintf("http://p/%s/%d.%s", branch, version, ext)
}

func (r *fakeResolver) ResolveLatest(ctx context.Context, branch string, ceiling int, ext, recordDir string) int {
	return r.latest
}

func (r *fakeResolver) ProbeSize(ctx context.Context, url string) (int64, bool) {
	size, ok := r.sizes[url]
	return size, ok
}

// fakeDownloader records fetched URLs and writes a marker file.
type fakeDownloader struct {
	fetched []string
	err     error
	onFetch func()
}

func (d *fakeDownloader) Fetch(ctx context.Context, task download.Task, progress download.ProgressFunc) error {
	if d.onFetch != nil {
		d.onFetch()
	}
	if ctx.Err() != nil {
		return download.ErrCancelled
	}
	if d.err != nil {
		return d.err
	}
	d.fetched = append(d.fetched, task.URL)
	if err := os.MkdirAll(filepath.Dir(task.Dest), 0o755); err != nil {
		return err
	}
	if progress != nil {
		progress(50, 512, 1024)
		progress(100, 1024, 1024)
	}
	return os.WriteFile(task.Dest, []byte("archive"), 0o644)
}

// fakeTool records applies and materializes a client binary in the target.
type fakeTool struct {
	applied  []string
	applyErr error
	onApply  func(ctx context.Context)
}

func (t *fakeTool) EnsureInstalled(ctx context.Context, progress butler.ProgressFunc) error {
	if progress != nil {
		progress(100)
	}
	return nil
}

func (t *fakeTool) ApplyPatch(ctx context.Context, archivePath, targetDir string, progress butler.ProgressFunc) error {
	if t.onApply != nil {
		t.onApply(ctx)
	}
	if t.applyErr != nil {
		return t.applyErr
	}
	t.applied = append(t.applied, filepath.Base(archivePath))
	exe := ClientExecutable(targetDir)
	if err := os.MkdirAll(filepath.Dir(exe), 0o755); err != nil {
		return err
	}
	if progress != nil {
		progress(100)
	}
	return os.WriteFile(exe, []byte("client"), 0o755)
}

type fakePatcher struct {
	exeCalls, jarCalls int
	jarErr             error
}

func (p *fakePatcher) PatchExecutable(path, target string) (patcher.Result, error) {
	p.exeCalls++
	return patcher.Result{TargetDomain: target, Replacements: 2}, nil
}

func (p *fakePatcher) PatchArchive(path, target string) (patcher.Result, error) {
	p.jarCalls++
	if p.jarErr != nil {
		return patcher.Result{}, p.jarErr
	}
	return patcher.Result{TargetDomain: target, Replacements: 1}, nil
}

type fakeRuntime struct {
	err   error
	calls int
}

func (r *fakeRuntime) Ensure(ctx context.Context, progress jre.ProgressFunc) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	if progress != nil {
		progress(100)
	}
	return "/runtime/bin/java", nil
}

// fakeGame satisfies process.Supervisor.
type fakeGame struct {
	started  *process.LaunchSpec
	exitCode int
	startErr error
}

func (g *fakeGame) Start(spec process.LaunchSpec) (int, error) {
	if g.startErr != nil {
		return 0, g.startErr
	}
	g.started = &spec
	return 4242, nil
}

func (g *fakeGame) Wait() (int, error)            { return g.exitCode, nil }
func (g *fakeGame) Stop() error                   { return nil }
func (g *fakeGame) IsRunning() bool               { return g.started != nil }
func (g *fakeGame) PID() (int, bool)              { return 4242, g.started != nil }
func (g *fakeGame) Uptime() (time.Duration, bool) { return 0, false }
func (g *fakeGame) LogPath() string               { return "" }

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.HomeDir = t.TempDir()
	cfg.TargetDomain = "play.example.gg"
	return cfg
}

type harness struct {
	o        *Orchestrator
	resolver *fakeResolver
	dl       *fakeDownloader
	tool     *fakeTool
	patch    *fakePatcher
	rt       *fakeRuntime
	game     *fakeGame
	logs     *[]string
}

// probeOK publishes a plausible size for the given patch-step versions so
// the existence probe passes.
func (h *harness) probeOK(versions ...int) {
	for _, v := range versions {
		h.resolver.sizes[h.resolver.ArchiveURL("release", v, "pwr")] = 1024
	}
}

func newHarness(cfg config.Config, latest int) *harness {
	h := &harness{
		resolver: &fakeResolver{latest: latest, sizes: map[string]int64{}},
		dl:       &fakeDownloader{},
		tool:     &fakeTool{},
		patch:    &fakePatcher{},
		rt:       &fakeRuntime{},
		game:     &fakeGame{},
		logs:     &[]string{},
	}
	h.o = NewWith(cfg, Deps{
		Resolver: h.resolver,
		Download: h.dl,
		Tool:     h.tool,
		Patcher:  h.patch,
		Runtime:  h.rt,
		Game:     h.game,
		Recover:  func(ctx context.Context, dir string, preserve []string) error { return nil },
		Logf:     func(format string, args ...any) { *h.logs = append(*h.logs, fmt.Sprintf(format, args...)) },
	})
	return h
}

func TestRunFreshInstall(t *testing.T) {
	cfg := testConfig(t)
	h := newHarness(cfg, 5)

	hub := events.NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()
	h.o.d.Hub = hub

	code, err := h.o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d", code)
	}

	if len(h.dl.fetched) != 1 || !strings.HasSuffix(h.dl.fetched[0], "/5.pwr") {
		t.Errorf("fetched = %v, want single 5.pwr", h.dl.fetched)
	}
	if len(h.tool.applied) != 1 || h.tool.applied[0] != "5.pwr" {
		t.Errorf("applied = %v", h.tool.applied)
	}

	// LatestPointer persisted for the latest-tracked install.
	ptr, err := remote.LoadLatestPointer(cfg.StateDir(), cfg.Branch)
	if err != nil || ptr == nil || ptr.Version != 5 {
		t.Errorf("latest pointer = %+v, %v", ptr, err)
	}

	// Both artifact patch paths consulted (archive absent on disk is fine;
	// the orchestrator stats before calling, so only the executable counts).
	if h.patch.exeCalls != 1 {
		t.Errorf("executable patch calls = %d, want 1", h.patch.exeCalls)
	}

	if h.game.started == nil {
		t.Fatal("game never started")
	}
	if h.game.started.AppDir != h.o.InstallDir() {
		t.Errorf("AppDir = %q", h.game.started.AppDir)
	}
	if h.game.started.JavaPath != "/runtime/bin/java" {
		t.Errorf("JavaPath = %q", h.game.started.JavaPath)
	}
	if h.o.State() != StateStopped {
		t.Errorf("final state = %s", h.o.State())
	}

	// Global percents never regress across the published stream.
	last := -1
	drained := false
	for !drained {
		select {
		case ev := <-ch:
			if ev.Stage == events.StageErrored || ev.Stage == events.StageCancelled {
				t.Fatalf("unexpected %s event: %+v", ev.Stage, ev)
			}
			if ev.Percent < last {
				t.Errorf("percent regressed: %d after %d (%s)", ev.Percent, last, ev.Stage)
			}
			last = ev.Percent
		default:
			drained = true
		}
	}
	if last != 100 {
		t.Errorf("terminal percent = %d, want 100", last)
	}
}

func TestEnsureInstalledUpdateChain(t *testing.T) {
	cfg := testConfig(t)
	h := newHarness(cfg, 7)

	// Existing install at version 3.
	install := h.o.InstallDir()
	if err := os.MkdirAll(filepath.Dir(ClientExecutable(install)), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ClientExecutable(install), []byte("old"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := remote.SaveLatestPointer(cfg.StateDir(), cfg.Branch, 3); err != nil {
		t.Fatal(err)
	}
	h.probeOK(4, 5, 6, 7)

	version, err := h.o.EnsureInstalled(context.Background())
	if err != nil {
		t.Fatalf("EnsureInstalled() error = %v", err)
	}
	if version != 7 {
		t.Errorf("version = %d, want 7", version)
	}

	want := []string{"4.pwr", "5.pwr", "6.pwr", "7.pwr"}
	if len(h.tool.applied) != len(want) {
		t.Fatalf("applied = %v, want %v", h.tool.applied, want)
	}
	for i := range want {
		if h.tool.applied[i] != want[i] {
			t.Fatalf("applied = %v, want %v (ascending)", h.tool.applied, want)
		}
	}

	ptr, _ := remote.LoadLatestPointer(cfg.StateDir(), cfg.Branch)
	if ptr == nil || ptr.Version != 7 {
		t.Errorf("latest pointer = %+v, want 7", ptr)
	}
}

func TestUpdateFailureFallsBackToExistingInstall(t *testing.T) {
	cfg := testConfig(t)
	h := newHarness(cfg, 7)
	h.dl.err = errors.New("patch server unreachable")

	install := h.o.InstallDir()
	if err := os.MkdirAll(filepath.Dir(ClientExecutable(install)), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ClientExecutable(install), []byte("old"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := remote.SaveLatestPointer(cfg.StateDir(), cfg.Branch, 3); err != nil {
		t.Fatal(err)
	}
	h.probeOK(4, 5, 6, 7)

	version, err := h.o.EnsureInstalled(context.Background())
	if err != nil {
		t.Fatalf("EnsureInstalled() error = %v, failed update must not block launch", err)
	}
	if version != 3 {
		t.Errorf("version = %d, want existing 3", version)
	}
	if len(*h.logs) == 0 {
		t.Error("update failure not logged")
	}
}

func TestFreshInstallFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	h := newHarness(cfg, 5)
	h.dl.err = errors.New("patch server unreachable")

	if _, err := h.o.EnsureInstalled(context.Background()); err == nil {
		t.Fatal("EnsureInstalled() = nil, fresh-install failure must be fatal")
	}
}

func TestArchiveLengthMismatchAbortsLaunch(t *testing.T) {
	cfg := testConfig(t)
	h := newHarness(cfg, 5)

	// Server archive present so the jar patch path runs.
	h.tool.onApply = func(context.Context) {}
	h.patch.jarErr = fmt.Errorf("entry Foo.class: %w", patcher.ErrLengthMismatch)

	// Pre-create jar after install happens: install dir is deterministic.
	jar := ServerArchive(h.o.InstallDir())
	if err := os.MkdirAll(filepath.Dir(jar), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(jar, []byte("PK"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := h.o.Run(context.Background())
	if err == nil || !errors.Is(err, patcher.ErrLengthMismatch) {
		t.Fatalf("Run() error = %v, want length mismatch abort", err)
	}
	if h.rt.calls != 0 {
		t.Error("runtime provisioned despite patch abort")
	}
	if h.game.started != nil {
		t.Error("game launched despite patch abort")
	}
	if h.o.State() != StateErrored {
		t.Errorf("state = %s, want errored", h.o.State())
	}
}

func TestNonFatalPatchErrorWarnsAndLaunches(t *testing.T) {
	cfg := testConfig(t)
	h := newHarness(cfg, 5)
	h.patch.jarErr = errors.New("no class entries matched")

	jar := ServerArchive(h.o.InstallDir())
	if err := os.MkdirAll(filepath.Dir(jar), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(jar, []byte("PK"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := h.o.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, non-mismatch patch errors are warnings", err)
	}
	if h.game.started == nil {
		t.Error("game not launched")
	}
}

func TestRuntimeFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	h := newHarness(cfg, 5)
	h.rt.err = errors.New("no runtime for platform")

	if _, err := h.o.Run(context.Background()); err == nil {
		t.Fatal("Run() = nil, runtime failure must be fatal")
	}
	if h.game.started != nil {
		t.Error("game launched without a runtime")
	}
	if h.o.State() != StateErrored {
		t.Errorf("state = %s", h.o.State())
	}
}

func TestCancellationDuringDownload(t *testing.T) {
	cfg := testConfig(t)
	h := newHarness(cfg, 5)

	ctx, cancel := context.WithCancel(context.Background())
	h.dl.onFetch = cancel

	_, err := h.o.Run(ctx)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Run() error = %v, want ErrCancelled", err)
	}
	if h.o.State() != StateCancelled {
		t.Errorf("state = %s", h.o.State())
	}
	if len(h.tool.applied) != 0 {
		t.Error("apply ran after cancellation")
	}
}

func TestApplyRunsToCompletionDespiteCancel(t *testing.T) {
	cfg := testConfig(t)
	h := newHarness(cfg, 5)

	ctx, cancel := context.WithCancel(context.Background())
	var applyCtxErr error
	h.tool.onApply = func(applyCtx context.Context) {
		cancel() // request cancellation mid-apply
		applyCtxErr = applyCtx.Err()
	}

	_, err := h.o.Run(ctx)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Run() error = %v, want ErrCancelled at the next checkpoint", err)
	}
	// The context handed to the tool must not observe the cancellation.
	if applyCtxErr != nil {
		t.Errorf("apply context cancelled mid-tool: %v", applyCtxErr)
	}
	if len(h.tool.applied) != 1 {
		t.Errorf("applied = %v, the in-flight apply must finish", h.tool.applied)
	}
	// But the launch never proceeds.
	if h.rt.calls != 0 || h.game.started != nil {
		t.Error("flow continued past cancellation")
	}
}

func TestHooksInvokedAroundLaunch(t *testing.T) {
	cfg := testConfig(t)
	h := newHarness(cfg, 5)

	var order []string
	h.o.d.Hooks = Hooks{
		PreLaunch:  func(context.Context) error { order = append(order, "pre"); return nil },
		PostLaunch: func(context.Context) error { order = append(order, "post"); return nil },
	}

	if _, err := h.o.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(order) != 2 || order[0] != "pre" || order[1] != "post" {
		t.Errorf("hook order = %v", order)
	}
}

func TestOversizedPatchStepAbandonsDifferentialPath(t *testing.T) {
	cfg := testConfig(t)
	h := newHarness(cfg, 4)

	install := h.o.InstallDir()
	if err := os.MkdirAll(filepath.Dir(ClientExecutable(install)), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ClientExecutable(install), []byte("old"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := remote.SaveLatestPointer(cfg.StateDir(), cfg.Branch, 3); err != nil {
		t.Fatal(err)
	}
	h.resolver.sizes["http://p/release/4.pwr"] = (int64(4) << 30) + 1

	version, err := h.o.EnsureInstalled(context.Background())
	if err != nil {
		t.Fatalf("EnsureInstalled() error = %v, oversize degrades to existing install", err)
	}
	if version != 3 {
		t.Errorf("version = %d, want existing 3", version)
	}
	if len(h.dl.fetched) != 0 {
		t.Errorf("oversized archive downloaded anyway: %v", h.dl.fetched)
	}
}

func TestUnavailablePatchStepAbandonsDifferentialPath(t *testing.T) {
	cfg := testConfig(t)
	h := newHarness(cfg, 4)

	install := h.o.InstallDir()
	if err := os.MkdirAll(filepath.Dir(ClientExecutable(install)), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ClientExecutable(install), []byte("old"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := remote.SaveLatestPointer(cfg.StateDir(), cfg.Branch, 3); err != nil {
		t.Fatal(err)
	}
	// No size published for 4.pwr: the existence probe fails.

	version, err := h.o.EnsureInstalled(context.Background())
	if err != nil {
		t.Fatalf("EnsureInstalled() error = %v, missing archive degrades to existing install", err)
	}
	if version != 3 {
		t.Errorf("version = %d, want existing 3", version)
	}
	if len(h.dl.fetched) != 0 {
		t.Errorf("unavailable archive downloaded anyway: %v", h.dl.fetched)
	}
	if len(*h.logs) == 0 {
		t.Error("abandoned update not logged")
	}
}
