package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/openhytale/launcher-cli/internal/butler"
	"github.com/openhytale/launcher-cli/internal/config"
	"github.com/openhytale/launcher-cli/internal/jre"
	"github.com/openhytale/launcher-cli/internal/launcher"
	"github.com/openhytale/launcher-cli/internal/process"
	"github.com/openhytale/launcher-cli/internal/remote"
)

// statusResult is the machine-readable status payload.
type statusResult struct {
	Branch         string `json:"branch" yaml:"branch"`
	Version        int    `json:"version" yaml:"version"`
	Installed      bool   `json:"installed" yaml:"installed"`
	InstallDir     string `json:"install_dir" yaml:"install_dir"`
	Running        bool   `json:"running" yaml:"running"`
	PID            int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	Uptime         string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	RuntimePresent bool   `json:"runtime_present" yaml:"runtime_present"`
	ToolPresent    bool   `json:"tool_present" yaml:"tool_present"`
	TargetDomain   string `json:"target_domain,omitempty" yaml:"target_domain,omitempty"`
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show install, runtime, and game state",
		RunE: func(cmd *cobra.Command, args []string) error {
			res := computeStatus(loadCfg())
			p := getPrinter()
			if p.Structured(res) {
				return nil
			}
			if flagQuiet {
				fmt.Printf("installed=%v version=%d running=%v\n", res.Installed, res.Version, res.Running)
				return nil
			}
			printStatusText(res)
			return nil
		},
	})
}

func computeStatus(cfg config.Config) statusResult {
	installDir := cfg.InstallDir(cfg.Branch, cfg.Version)
	res := statusResult{
		Branch:       cfg.Branch,
		Version:      cfg.Version,
		InstallDir:   installDir,
		TargetDomain: cfg.TargetDomain,
	}

	if _, err := os.Stat(launcher.ClientExecutable(installDir)); err == nil {
		res.Installed = true
	}
	if res.Version == 0 {
		if ptr, err := remote.LoadLatestPointer(cfg.StateDir(), cfg.Branch); err == nil && ptr != nil {
			res.Version = ptr.Version
		}
	}

	sup := process.New(cfg.HomeDir)
	if pid, ok := sup.PID(); ok {
		res.Running = true
		res.PID = pid
		if up, ok := sup.Uptime(); ok {
			res.Uptime = up.Round(time.Second).String()
		}
	}

	if _, err := os.Stat(jre.New(cfg.RuntimeDir()).JavaPath()); err == nil {
		res.RuntimePresent = true
	}
	if _, err := os.Stat(butler.New(filepath.Join(cfg.ToolsDir(), "butler"), cfg.ButlerURL).BinaryPath()); err == nil {
		res.ToolPresent = true
	}
	return res
}

func printStatusText(res statusResult) {
	p := getPrinter()
	c := p.Colors

	p.Header("Hytale Launcher")
	fmt.Println()

	installState := "warning"
	if res.Installed {
		installState = "installed"
	}
	fmt.Printf("%s %s %s\n", c.StatusIcon(installState), c.Label("Install:"), c.Value(res.InstallDir))
	p.KeyValueLine("Branch", res.Branch, "blue")
	if res.Version > 0 {
		p.KeyValueLine("Version", fmt.Sprintf("%d", res.Version), "green")
	} else {
		p.KeyValueLine("Version", "latest (unresolved)", "dim")
	}
	if res.TargetDomain != "" {
		p.KeyValueLine("Target domain", res.TargetDomain, "blue")
	}
	fmt.Println()

	if res.Running {
		fmt.Printf("%s %s (pid %d, up %s)\n", c.StatusIcon("running"), c.Label("Game: running"), res.PID, res.Uptime)
	} else {
		fmt.Printf("%s %s\n", c.StatusIcon("stopped"), c.Label("Game: stopped"))
	}

	runtimeState, toolState := "warning", "warning"
	if res.RuntimePresent {
		runtimeState = "pass"
	}
	if res.ToolPresent {
		toolState = "pass"
	}
	fmt.Printf("%s %s\n", c.StatusIcon(runtimeState), c.Label("Java runtime provisioned"))
	fmt.Printf("%s %s\n", c.StatusIcon(toolState), c.Label("Diff tool installed"))
}
