package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openhytale/launcher-cli/internal/config"
	"github.com/openhytale/launcher-cli/internal/jre"
	"github.com/openhytale/launcher-cli/internal/launcher"
	"github.com/openhytale/launcher-cli/internal/remote"
)

func writeFileAt(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestComputeStatus_EmptyHome(t *testing.T) {
	cfg := config.Defaults()
	cfg.HomeDir = t.TempDir()
	cfg.Branch = config.BranchRelease

	res := computeStatus(cfg)
	if res.Installed {
		t.Error("Installed = true for empty home")
	}
	if res.Running {
		t.Error("Running = true with no pid file")
	}
	if res.RuntimePresent || res.ToolPresent {
		t.Error("runtime/tool reported present in empty home")
	}
	if res.Branch != config.BranchRelease {
		t.Errorf("Branch = %q", res.Branch)
	}
}

func TestComputeStatus_InstalledWithRuntime(t *testing.T) {
	cfg := config.Defaults()
	cfg.HomeDir = t.TempDir()
	cfg.Version = 42

	writeFileAt(t, launcher.ClientExecutable(cfg.InstallDir(cfg.Branch, cfg.Version)))
	writeFileAt(t, jre.New(cfg.RuntimeDir()).JavaPath())

	res := computeStatus(cfg)
	if !res.Installed {
		t.Error("Installed = false with client executable present")
	}
	if res.Version != 42 {
		t.Errorf("Version = %d, want pinned 42", res.Version)
	}
	if !res.RuntimePresent {
		t.Error("RuntimePresent = false with java binary present")
	}
	if res.ToolPresent {
		t.Error("ToolPresent = true without butler binary")
	}
}

func TestComputeStatus_VersionFromLatestPointer(t *testing.T) {
	cfg := config.Defaults()
	cfg.HomeDir = t.TempDir()
	cfg.Version = 0

	if err := remote.SaveLatestPointer(cfg.StateDir(), cfg.Branch, 17); err != nil {
		t.Fatal(err)
	}

	res := computeStatus(cfg)
	if res.Version != 17 {
		t.Errorf("Version = %d, want 17 from latest pointer", res.Version)
	}
}
