package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openhytale/launcher-cli/internal/exitcodes"
	ui "github.com/openhytale/launcher-cli/internal/ui"
)

// logDeps injects the filesystem and tail seams so tests can run
// handleLogsCore without a real game log.
type logDeps struct {
	stat    func(string) (os.FileInfo, error)
	tailLog func(ctx context.Context, out io.Writer, opts ui.LogTailOptions) error
}

func defaultLogDeps() logDeps {
	return logDeps{
		stat:    os.Stat,
		tailLog: ui.TailLog,
	}
}

func init() {
	var follow bool
	var lines int

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Show game client logs",
		Long: `Print the most recent game log lines, or stream them as they are
written with --follow. Survives log rotation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return handleLogs(follow, lines)
		},
	}
	logsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream new log lines as they arrive")
	logsCmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of recent lines to print")
	rootCmd.AddCommand(logsCmd)
}

func handleLogs(follow bool, lines int) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return handleLogsCore(ctx, os.Stdout, follow, lines, defaultLogDeps())
}

func handleLogsCore(ctx context.Context, out io.Writer, follow bool, lines int, deps logDeps) error {
	cfg := loadCfg()
	logPath := cfg.GameLogPath()

	if _, err := deps.stat(logPath); err != nil && !follow {
		if flagOutput == "json" {
			fmt.Fprintf(out, `{"error":"no game log at %s"}`+"\n", logPath)
			return silentErr{exitcodes.PreconditionError("no game log")}
		}
		return exitcodes.PreconditionErrorf("no game log at %s, has the game run yet?", logPath)
	}

	return deps.tailLog(ctx, out, ui.LogTailOptions{
		LogPath: logPath,
		Follow:  follow,
		Lines:   lines,
		NoColor: flagNoColor || flagOutput != "text",
	})
}
