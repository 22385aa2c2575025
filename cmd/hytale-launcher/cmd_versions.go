package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/openhytale/launcher-cli/internal/config"
	"github.com/openhytale/launcher-cli/internal/remote"
	ui "github.com/openhytale/launcher-cli/internal/ui"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "versions",
		Short: "List versions available on the patch server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersions()
		},
	})
}

func runVersions() error {
	cfg := loadCfg()
	p := getPrinter()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	r := remote.New(cfg.PatchServerURL, config.OSName(), config.ArchName())
	versions := r.AvailableVersions(ctx, cfg.Branch, cfg.Ceiling(cfg.Branch), config.ArchiveExt())

	installed := 0
	if ptr, err := remote.LoadLatestPointer(cfg.StateDir(), cfg.Branch); err == nil && ptr != nil {
		installed = ptr.Version
	}
	if cfg.Version != 0 {
		installed = cfg.Version
	}

	if p.Structured(map[string]any{
		"branch":    cfg.Branch,
		"versions":  versions,
		"installed": installed,
	}) {
		return nil
	}

	if len(versions) == 0 {
		p.Warn(fmt.Sprintf("no versions found on branch %s", cfg.Branch))
		return nil
	}

	rows := make([][]string, 0, len(versions))
	for _, v := range versions {
		mark := ""
		if v == installed {
			mark = "installed"
		}
		rows = append(rows, []string{strconv.Itoa(v), cfg.Branch, mark})
	}
	fmt.Print(ui.Table(p.Colors, []string{"VERSION", "BRANCH", ""}, rows, nil))
	return nil
}
