package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openhytale/launcher-cli/internal/butler"
	"github.com/openhytale/launcher-cli/internal/exitcodes"
	"github.com/openhytale/launcher-cli/internal/jre"
	"github.com/openhytale/launcher-cli/internal/system"
	ui "github.com/openhytale/launcher-cli/internal/ui"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the launcher environment",
		Long: `Run environment checks: disk space, memory, home directory permissions,
game install, Java runtime, diff tool, and patch server reachability.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor()
		},
	})
}

func runDoctor() error {
	cfg := loadCfg()
	p := getPrinter()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results := system.RunAll(ctx, system.Env{
		HomeDir:        cfg.HomeDir,
		InstallDir:     cfg.InstallDir(cfg.Branch, cfg.Version),
		JavaPath:       jre.New(cfg.RuntimeDir()).JavaPath(),
		ButlerPath:     butler.New(filepath.Join(cfg.ToolsDir(), "butler"), cfg.ButlerURL).BinaryPath(),
		PatchServerURL: cfg.PatchServerURL,
	})

	if p.Format() != "text" {
		type doctorCheck struct {
			Name    string   `json:"name" yaml:"name"`
			Status  string   `json:"status" yaml:"status"`
			Message string   `json:"message" yaml:"message"`
			Details []string `json:"details,omitempty" yaml:"details,omitempty"`
		}
		out := make([]doctorCheck, 0, len(results))
		for _, res := range results {
			out = append(out, doctorCheck{res.Name, res.Status, res.Message, res.Details})
		}
		p.Structured(out)
		return doctorVerdict(results)
	}

	p.Header("Environment Checks")
	fmt.Println()
	for _, res := range results {
		printCheck(p, res)
	}

	pass, warn, fail := 0, 0, 0
	for _, res := range results {
		switch res.Status {
		case system.StatusPass:
			pass++
		case system.StatusWarn:
			warn++
		case system.StatusFail:
			fail++
		}
	}
	p.Separator(60)
	fmt.Printf("%s passed, %s warnings, %s failed\n",
		p.Colors.Success(fmt.Sprintf("%d", pass)),
		p.Colors.Warning(fmt.Sprintf("%d", warn)),
		p.Colors.Error(fmt.Sprintf("%d", fail)))

	return doctorVerdict(results)
}

func printCheck(p ui.Printer, res system.CheckResult) {
	c := p.Colors
	var msg string
	switch res.Status {
	case system.StatusPass:
		msg = c.Success(res.Message)
	case system.StatusWarn:
		msg = c.Warning(res.Message)
	default:
		msg = c.Error(res.Message)
	}
	fmt.Printf("%s %s  %s\n", c.StatusIcon(res.Status), c.Header(res.Name), msg)
	for _, d := range res.Details {
		fmt.Printf("    %s %s\n", c.Apply(c.Theme.Pending, "→"), c.Description(d))
	}
}

func doctorVerdict(results []system.CheckResult) error {
	var failed []string
	for _, res := range results {
		if res.Status == system.StatusFail {
			failed = append(failed, res.Name)
		}
	}
	if len(failed) > 0 {
		return silentErr{exitcodes.ValidationErr("checks failed: " + strings.Join(failed, ", "))}
	}
	return nil
}
