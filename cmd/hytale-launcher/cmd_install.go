package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openhytale/launcher-cli/internal/events"
	"github.com/openhytale/launcher-cli/internal/exitcodes"
	"github.com/openhytale/launcher-cli/internal/launcher"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install or update the game files",
		Long: `Download and apply patch archives until the install matches the target
version. Safe to re-run: an up-to-date install is a no-op.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnsureInstall(false)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "update",
		Short: "Update an existing install",
		Long:  "Like install, but requires the game to already be installed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnsureInstall(true)
		},
	})
}

func runEnsureInstall(requireExisting bool) error {
	cfg := loadCfg()
	p := getPrinter()

	hub := events.NewHub()
	deps := launcher.Deps{Hub: hub}
	if flagVerbose {
		deps.Logf = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}
	o := launcher.NewWith(cfg, deps)

	if requireExisting {
		if _, err := os.Stat(launcher.ClientExecutable(o.InstallDir())); err != nil {
			return exitcodes.PreconditionErrorf("no install at %s, run 'hytale-launcher install' first", o.InstallDir())
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stop := renderProgressText(hub)
	version, err := o.EnsureInstalled(ctx)
	stop()
	if err != nil {
		if errors.Is(err, launcher.ErrCancelled) {
			return exitcodes.CancelledErr("cancelled")
		}
		return err
	}

	if flagOutput == "json" || flagOutput == "yaml" {
		p.Structured(map[string]any{
			"branch":  cfg.Branch,
			"version": version,
			"path":    o.InstallDir(),
		})
		return nil
	}
	fmt.Println()
	p.Success(fmt.Sprintf("install at version %d (%s branch)", version, cfg.Branch))
	return nil
}
