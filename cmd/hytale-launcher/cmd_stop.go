package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openhytale/launcher-cli/internal/exitcodes"
	"github.com/openhytale/launcher-cli/internal/process"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop a running game client",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadCfg()
			p := getPrinter()

			sup := process.New(cfg.HomeDir)
			pid, ok := sup.PID()
			if !ok {
				return exitcodes.PreconditionError("game is not running")
			}

			p.Info(fmt.Sprintf("stopping game client (pid %d)...", pid))
			if err := sup.Stop(); err != nil {
				return exitcodes.ProcessErrf("stop game client: %v", err)
			}
			if p.Structured(map[string]any{"stopped": true, "pid": pid}) {
				return nil
			}
			p.Success("game client stopped")
			return nil
		},
	})
}
