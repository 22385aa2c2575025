// Package launcher composes resolving, downloading, patch application,
// domain patching, runtime provisioning, and process launch into the
// install/update/launch state machine. It owns cancellation and the global
// progress percent; every collaborator only ever reports sub-stage
// progress.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/openhytale/launcher-cli/internal/backup"
	"github.com/openhytale/launcher-cli/internal/butler"
	"github.com/openhytale/launcher-cli/internal/config"
	"github.com/openhytale/launcher-cli/internal/diffplan"
	"github.com/openhytale/launcher-cli/internal/download"
	"github.com/openhytale/launcher-cli/internal/events"
	"github.com/openhytale/launcher-cli/internal/jre"
	"github.com/openhytale/launcher-cli/internal/patcher"
	"github.com/openhytale/launcher-cli/internal/process"
	"github.com/openhytale/launcher-cli/internal/remote"
)

// ErrCancelled reports a user-requested stop. It is distinct from every
// failure path: on-disk state is exactly as it was before the interrupted
// step began.
var ErrCancelled = errors.New("operation cancelled")

// State names one node of the install/launch state machine.
type State string

const (
	StateIdle                State = "idle"
	StateResolving           State = "resolving"
	StateInstalled           State = "installed"
	StateNeedsInstall        State = "needs_install"
	StateDownloading         State = "downloading"
	StateApplying            State = "applying"
	StatePatching            State = "patching"
	StateProvisioningRuntime State = "provisioning_runtime"
	StateLaunching           State = "launching"
	StateRunning             State = "running"
	StateStopped             State = "stopped"
	StateCancelled           State = "cancelled"
	StateErrored             State = "errored"
)

// Global percent spans per stage. Sub-stage progress is mapped into these.
var (
	spanResolve  = [2]int{0, 5}
	spanDownload = [2]int{5, 65}
	spanApply    = [2]int{65, 85}
	spanPatch    = [2]int{85, 90}
	spanRuntime  = [2]int{90, 97}
	spanLaunch   = [2]int{97, 100}
)

// preservedEntries survive a corrupted-install recovery, relative to the
// install dir.
var preservedEntries = []string{"UserData", "Client/Assets"}

// Resolver is the version-probing surface the orchestrator needs.
type Resolver interface {
	ArchiveURL(branch string, version int, ext string) string
	ResolveLatest(ctx context.Context, branch string, ceiling int, ext, recordDir string) int
	ProbeSize(ctx context.Context, url string) (int64, bool)
}

// Downloader fetches one archive to disk.
type Downloader interface {
	Fetch(ctx context.Context, task download.Task, progress download.ProgressFunc) error
}

// DiffTool installs and drives the external diff-apply tool.
type DiffTool interface {
	EnsureInstalled(ctx context.Context, progress butler.ProgressFunc) error
	ApplyPatch(ctx context.Context, archivePath, targetDir string, progress butler.ProgressFunc) error
}

// DomainPatcher rewrites embedded endpoint literals in the game artifacts.
type DomainPatcher interface {
	PatchExecutable(path, target string) (patcher.Result, error)
	PatchArchive(path, target string) (patcher.Result, error)
}

// RuntimeProvider ensures a usable Java runtime.
type RuntimeProvider interface {
	Ensure(ctx context.Context, progress jre.ProgressFunc) (string, error)
}

// RecoverFunc wipes and reconstructs a corrupted install dir, preserving
// user data.
type RecoverFunc func(ctx context.Context, installDir string, preserve []string) error

// Hooks are invoked around the launch itself (profile and skin backups).
// A nil hook is skipped; a hook error is logged, never fatal.
type Hooks struct {
	PreLaunch  func(ctx context.Context) error
	PostLaunch func(ctx context.Context) error
}

// Deps carries the orchestrator's collaborators. Zero-value fields are
// filled with production implementations by New.
type Deps struct {
	Resolver Resolver
	Download Downloader
	Tool     DiffTool
	Patcher  DomainPatcher
	Runtime  RuntimeProvider
	Game     process.Supervisor
	Recover  RecoverFunc
	Hub      *events.Hub
	Logf     func(format string, args ...any)
	Hooks    Hooks

	// Credentials for authenticated mode; ignored in offline mode.
	IdentityToken string
	SessionToken  string
}

// Orchestrator is the top-level install/update/launch flow.
type Orchestrator struct {
	cfg config.Config
	d   Deps

	mu       sync.Mutex
	state    State
	exitCode int
}

// New wires an orchestrator from production components.
func New(cfg config.Config) *Orchestrator {
	return NewWith(cfg, Deps{})
}

// NewWith fills any nil dependency with its production implementation.
func NewWith(cfg config.Config, d Deps) *Orchestrator {
	if d.Resolver == nil {
		d.Resolver = remote.New(cfg.PatchServerURL, config.OSName(), config.ArchName())
	}
	if d.Download == nil {
		d.Download = download.New()
	}
	if d.Tool == nil {
		d.Tool = butler.New(filepath.Join(cfg.ToolsDir(), "butler"), cfg.ButlerURL)
	}
	if d.Patcher == nil {
		d.Patcher = patcher.New()
	}
	if d.Runtime == nil {
		d.Runtime = jre.New(cfg.RuntimeDir())
	}
	if d.Game == nil {
		d.Game = process.New(cfg.HomeDir)
	}
	if d.Recover == nil {
		d.Recover = backup.Recover
	}
	if d.Hub == nil {
		d.Hub = events.NewHub()
	}
	if d.Logf == nil {
		d.Logf = func(string, ...any) {}
	}
	return &Orchestrator{cfg: cfg, d: d, state: StateIdle}
}

// State returns the current state machine node.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// ExitCode returns the game's exit code once StateStopped is reached.
func (o *Orchestrator) ExitCode() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.exitCode
}

// InstallDir is the filesystem root the orchestrator operates on.
func (o *Orchestrator) InstallDir() string {
	return o.cfg.InstallDir(o.cfg.Branch, o.cfg.Version)
}

// ClientExecutable is the patched and launched game binary inside dir.
func ClientExecutable(dir string) string {
	name := "HytaleClient"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(dir, "Client", name)
}

// ServerArchive is the bundled server jar inside dir.
func ServerArchive(dir string) string {
	return filepath.Join(dir, "Server", "HytaleServer.jar")
}

// Run executes the full flow: ensure an install, patch it, provision the
// runtime, launch, and wait for exit. The returned int is the game's exit
// code; a crash is a code, not an error.
func (o *Orchestrator) Run(ctx context.Context) (int, error) {
	if _, err := o.EnsureInstalled(ctx); err != nil {
		return 0, o.fail(err)
	}
	installDir := o.InstallDir()

	if err := o.checkpoint(ctx); err != nil {
		return 0, err
	}
	if err := o.patchArtifacts(installDir); err != nil {
		return 0, o.fail(err)
	}

	if err := o.checkpoint(ctx); err != nil {
		return 0, err
	}
	o.to(StateProvisioningRuntime)
	o.publish(events.StageProvisioning, spanRuntime[0], "checking java runtime")
	javaPath, err := o.d.Runtime.Ensure(ctx, func(pct int) {
		o.publish(events.StageProvisioning, mapSpan(spanRuntime, pct), "provisioning java runtime")
	})
	if err != nil {
		// Runtime failures are fatal: the client cannot start without it.
		return 0, o.fail(fmt.Errorf("provision runtime: %w", err))
	}

	if err := o.checkpoint(ctx); err != nil {
		return 0, err
	}
	return o.launch(ctx, installDir, javaPath)
}

// EnsureInstalled brings the install dir up to the target version and
// returns the version it settled on. Update-step failures degrade to the
// existing install; fresh-install failures are fatal.
func (o *Orchestrator) EnsureInstalled(ctx context.Context) (int, error) {
	cfg := o.cfg
	o.to(StateResolving)
	o.publish(events.StageResolving, spanResolve[0], "resolving target version")
	if err := o.checkpoint(ctx); err != nil {
		return 0, err
	}

	target := cfg.Version
	if target == 0 {
		target = o.d.Resolver.ResolveLatest(ctx, cfg.Branch, cfg.Ceiling(cfg.Branch),
			config.ArchiveExt(), cfg.StateDir())
	}
	installDir := o.InstallDir()
	installed := o.installedVersion(installDir)
	o.publish(events.StageResolving, spanResolve[1], fmt.Sprintf("target version %d", target))

	if !installPresent(installDir) {
		o.to(StateNeedsInstall)
		if target == 0 {
			return 0, fmt.Errorf("no versions available on branch %s and nothing installed", cfg.Branch)
		}
		if dirNonEmpty(installDir) {
			// A directory without a client binary is an unrecoverable
			// install; rebuild it around the preserved user data.
			o.d.Logf("install at %s is corrupted, recovering", installDir)
			if err := o.d.Recover(ctx, installDir, preservedEntries); err != nil {
				return 0, fmt.Errorf("recover install dir: %w", err)
			}
		}
		if err := o.install(ctx, installDir, []int{target}, true); err != nil {
			return 0, err
		}
		return target, nil
	}

	o.to(StateInstalled)
	if cfg.Version != 0 || target <= installed || installed == 0 {
		return installed, nil
	}

	steps := diffplan.Plan(installed, target)
	if err := o.install(ctx, installDir, steps, false); err != nil {
		if errors.Is(err, ErrCancelled) {
			return 0, err
		}
		// A failed non-essential update never blocks the launch.
		o.d.Logf("update to version %d failed, launching existing install: %v", target, err)
		return installed, nil
	}
	return target, nil
}

// install downloads and applies the given version steps in order. fresh
// marks the single-step fresh-install path, whose failures are fatal.
func (o *Orchestrator) install(ctx context.Context, installDir string, steps []int, fresh bool) error {
	if len(steps) == 0 {
		return nil
	}
	cfg := o.cfg

	o.to(StateDownloading)
	o.publish(events.StageDownloading, spanDownload[0], "preparing diff tool")
	if err := o.d.Tool.EnsureInstalled(ctx, func(pct int) {
		o.publish(events.StageDownloading, spanDownload[0]+pct*3/100, "preparing diff tool")
	}); err != nil {
		return fmt.Errorf("ensure diff tool: %w", err)
	}

	dlSpan := [2]int{spanDownload[0] + 3, spanDownload[1]}
	for i, version := range steps {
		if err := o.checkpoint(ctx); err != nil {
			return err
		}

		url := o.d.Resolver.ArchiveURL(cfg.Branch, version, config.ArchiveExt())
		if !fresh {
			size, ok := o.d.Resolver.ProbeSize(ctx, url)
			if !ok {
				return fmt.Errorf("patch archive for version %d is unavailable, abandoning differential update", version)
			}
			if size > diffplan.MaxPatchArchiveSize {
				return fmt.Errorf("patch archive for version %d is %d bytes, over the differential limit", version, size)
			}
		}

		o.to(StateDownloading)
		archive := filepath.Join(cfg.CacheDir(cfg.Branch), fmt.Sprintf("%d.%s", version, config.ArchiveExt()))
		stepDl := subSpan(dlSpan, i, len(steps))
		err := o.d.Download.Fetch(ctx, download.Task{URL: url, Dest: archive},
			func(pct int, downloaded, total int64) {
				o.publishBytes(events.StageDownloading, mapSpan(stepDl, pct),
					fmt.Sprintf("downloading version %d", version), downloaded, total)
			})
		if err != nil {
			if errors.Is(err, download.ErrCancelled) {
				return o.cancelled()
			}
			return fmt.Errorf("download version %d: %w", version, err)
		}

		if err := o.checkpoint(ctx); err != nil {
			return err
		}
		o.to(StateApplying)
		stepAp := subSpan(spanApply, i, len(steps))
		// The apply step runs to completion even if ctx is cancelled
		// mid-way: interrupting the tool could leave the install dir
		// half-patched. Cancellation is honored at the next checkpoint.
		if err := o.d.Tool.ApplyPatch(context.WithoutCancel(ctx), archive, installDir, func(pct int) {
			o.publish(events.StageApplying, mapSpan(stepAp, pct),
				fmt.Sprintf("applying version %d", version))
		}); err != nil {
			return fmt.Errorf("apply version %d: %w", version, err)
		}

		if cfg.Version == 0 {
			if err := remote.SaveLatestPointer(cfg.StateDir(), cfg.Branch, version); err != nil {
				o.d.Logf("persist latest pointer: %v", err)
			}
		}
	}
	o.publish(events.StageApplying, spanApply[1], "install up to date")
	return nil
}

// patchArtifacts applies the domain redirect to the client executable and
// the server archive. Absent patterns and absent artifacts are fine; an
// archive length mismatch aborts the launch.
func (o *Orchestrator) patchArtifacts(installDir string) error {
	o.to(StatePatching)
	o.publish(events.StagePatching, spanPatch[0], "patching endpoint domains")
	target := o.cfg.TargetDomain
	if target == "" {
		o.publish(events.StagePatching, spanPatch[1], "domain patching disabled")
		return nil
	}

	exe := ClientExecutable(installDir)
	if _, err := os.Stat(exe); err == nil {
		if res, err := o.d.Patcher.PatchExecutable(exe, target); err != nil {
			o.d.Logf("patch executable: %v", err)
		} else if !res.AlreadyPatched {
			o.d.Logf("patched executable for %s (%d replacements)", target, res.Replacements)
		}
	}

	jar := ServerArchive(installDir)
	if _, err := os.Stat(jar); err == nil {
		if res, err := o.d.Patcher.PatchArchive(jar, target); err != nil {
			if errors.Is(err, patcher.ErrLengthMismatch) {
				// Writing anyway would corrupt class files; refuse to launch
				// a half-redirected install.
				return fmt.Errorf("patch server archive: %w", err)
			}
			o.d.Logf("patch server archive: %v", err)
		} else if !res.AlreadyPatched {
			o.d.Logf("patched server archive for %s (%d replacements)", target, res.Replacements)
		}
	}

	o.publish(events.StagePatching, spanPatch[1], "patching complete")
	return nil
}

func (o *Orchestrator) launch(ctx context.Context, installDir, javaPath string) (int, error) {
	o.to(StateLaunching)
	o.publish(events.StageLaunching, spanLaunch[0], "launching game client")

	if o.d.Hooks.PreLaunch != nil {
		if err := o.d.Hooks.PreLaunch(ctx); err != nil {
			o.d.Logf("pre-launch hook: %v", err)
		}
	}

	pid, err := o.d.Game.Start(process.LaunchSpec{
		Binary:        ClientExecutable(installDir),
		AppDir:        installDir,
		UserDir:       o.cfg.UserDataDir(),
		JavaPath:      javaPath,
		DisplayName:   o.cfg.DisplayName,
		AuthMode:      o.cfg.AuthMode,
		IdentityToken: o.d.IdentityToken,
		SessionToken:  o.d.SessionToken,
	})
	if err != nil {
		return 0, o.fail(fmt.Errorf("start game client: %w", err))
	}
	o.to(StateRunning)
	o.publish(events.StageRunning, spanLaunch[1], fmt.Sprintf("game running (pid %d)", pid))

	if o.d.Hooks.PostLaunch != nil {
		if err := o.d.Hooks.PostLaunch(ctx); err != nil {
			o.d.Logf("post-launch hook: %v", err)
		}
	}

	code, err := o.d.Game.Wait()
	if err != nil {
		return 0, o.fail(fmt.Errorf("observe game exit: %w", err))
	}
	o.mu.Lock()
	o.exitCode = code
	o.mu.Unlock()
	o.to(StateStopped)
	o.publish(events.StageStopped, 100, fmt.Sprintf("game exited with code %d", code))
	return code, nil
}

// installedVersion reads the latest pointer, falling back to inferring
// from cached archive names.
func (o *Orchestrator) installedVersion(installDir string) int {
	if o.cfg.Version != 0 {
		return o.cfg.Version
	}
	if ptr, err := remote.LoadLatestPointer(o.cfg.StateDir(), o.cfg.Branch); err == nil && ptr != nil {
		return ptr.Version
	}
	return diffplan.InferInstalledVersion(o.cfg.CacheDir(o.cfg.Branch))
}

func installPresent(installDir string) bool {
	_, err := os.Stat(ClientExecutable(installDir))
	return err == nil
}

func dirNonEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// checkpoint is the only place cancellation is honored.
func (o *Orchestrator) checkpoint(ctx context.Context) error {
	if ctx.Err() != nil {
		return o.cancelled()
	}
	return nil
}

func (o *Orchestrator) cancelled() error {
	o.to(StateCancelled)
	o.publish(events.StageCancelled, 0, "cancelled")
	return ErrCancelled
}

func (o *Orchestrator) fail(err error) error {
	if errors.Is(err, ErrCancelled) {
		return err
	}
	o.to(StateErrored)
	o.publish(events.StageErrored, 0, err.Error())
	return err
}

func (o *Orchestrator) to(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) publish(stage events.Stage, percent int, msg string) {
	o.publishBytes(stage, percent, msg, 0, 0)
}

func (o *Orchestrator) publishBytes(stage events.Stage, percent int, msg string, downloaded, total int64) {
	o.d.Hub.Publish(events.Event{
		Stage:           stage,
		Percent:         percent,
		Message:         msg,
		BytesDownloaded: downloaded,
		BytesTotal:      total,
	})
}

// mapSpan places a 0-100 sub-stage percent inside a global span.
func mapSpan(span [2]int, sub int) int {
	if sub < 0 {
		sub = 0
	}
	if sub > 100 {
		sub = 100
	}
	return span[0] + (span[1]-span[0])*sub/100
}

// subSpan slices span into n equal step windows and returns the i-th.
func subSpan(span [2]int, i, n int) [2]int {
	width := span[1] - span[0]
	return [2]int{
		span[0] + width*i/n,
		span[0] + width*(i+1)/n,
	}
}
