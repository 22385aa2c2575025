// Package config holds the launcher configuration object. It is built once
// at process start and injected into every component constructor; nothing in
// the repository reads configuration through globals.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Branch names understood by the patch server.
const (
	BranchRelease    = "release"
	BranchPreRelease = "pre-release"
)

// Config is the launcher-wide configuration.
type Config struct {
	HomeDir           string `yaml:"home_dir"`            // launcher home (~/.hytale-launcher)
	Branch            string `yaml:"branch"`              // release | pre-release
	Version           int    `yaml:"version"`             // 0 = latest
	PatchServerURL    string `yaml:"patch_server"`        // base URL for version probes and archives
	TargetDomain      string `yaml:"target_domain"`       // third-party backend domain; "" disables patching
	AuthMode          string `yaml:"auth_mode"`           // offline | authenticated
	DisplayName       string `yaml:"display_name"`        // in-game display name
	ButlerURL         string `yaml:"butler_url"`          // diff-apply tool download base
	EventListen       string `yaml:"event_listen"`        // optional websocket event listener address
	ReleaseCeiling    int    `yaml:"release_ceiling"`     // probe ceiling, release branch
	PreReleaseCeiling int    `yaml:"pre_release_ceiling"` // probe ceiling, pre-release branch
}

// Defaults returns the stock configuration.
func Defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		HomeDir:           filepath.Join(home, ".hytale-launcher"),
		Branch:            BranchRelease,
		Version:           0,
		PatchServerURL:    "https://game-patches.hytopia.dev",
		AuthMode:          "offline",
		DisplayName:       "Player",
		ButlerURL:         "https://broth.itch.zone/butler",
		ReleaseCeiling:    60,
		PreReleaseCeiling: 200,
	}
}

// Load returns the defaults merged with launcher.yaml (if present in the
// home dir) and the LAUNCHER_HOME environment override. Flags are applied on
// top by the cmd layer.
func Load() Config {
	cfg := Defaults()
	if v := os.Getenv("LAUNCHER_HOME"); v != "" {
		cfg.HomeDir = v
	}
	if data, err := os.ReadFile(filepath.Join(cfg.HomeDir, "launcher.yaml")); err == nil {
		// Unknown keys are ignored; a malformed file leaves the defaults.
		_ = yaml.Unmarshal(data, &cfg)
	}
	return cfg
}

// Ceiling returns the version probe ceiling for a branch. The ceiling is a
// policy constant, not a discovered value: gaps past the real latest version
// are the normal branch-exhausted signal.
func (c Config) Ceiling(branch string) int {
	if branch == BranchPreRelease {
		return c.PreReleaseCeiling
	}
	return c.ReleaseCeiling
}

// InstallDir is the filesystem root for one (branch, version) instance.
// Version 0 ("latest") shares a single tracked directory per branch.
func (c Config) InstallDir(branch string, version int) string {
	if version == 0 {
		return filepath.Join(c.HomeDir, "install", branch, "latest")
	}
	return filepath.Join(c.HomeDir, "install", branch, strconv.Itoa(version))
}

// CacheDir holds downloaded patch archives for a branch.
func (c Config) CacheDir(branch string) string {
	return filepath.Join(c.HomeDir, "cache", branch)
}

// StateDir holds small cross-run records (latest pointers).
func (c Config) StateDir() string { return filepath.Join(c.HomeDir, "state") }

// RuntimeDir holds the provisioned Java runtime.
func (c Config) RuntimeDir() string { return filepath.Join(c.HomeDir, "runtime") }

// ToolsDir holds the diff-apply tool installation.
func (c Config) ToolsDir() string { return filepath.Join(c.HomeDir, "tools") }

// UserDataDir holds user-authored data preserved across reinstalls.
func (c Config) UserDataDir() string { return filepath.Join(c.HomeDir, "userdata") }

// LogsDir holds launcher and game logs.
func (c Config) LogsDir() string { return filepath.Join(c.HomeDir, "logs") }

// GameLogPath is where the child process stdout/stderr is captured.
func (c Config) GameLogPath() string { return filepath.Join(c.LogsDir(), "game.log") }

// OSName is the patch server's os path segment for this host.
func OSName() string { return runtime.GOOS }

// ArchName is the patch server's arch path segment for this host.
func ArchName() string { return runtime.GOARCH }

// ArchiveExt is the patch archive extension.
func ArchiveExt() string { return "pwr" }
