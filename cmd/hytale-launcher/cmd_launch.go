package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/openhytale/launcher-cli/internal/events"
	"github.com/openhytale/launcher-cli/internal/exitcodes"
	"github.com/openhytale/launcher-cli/internal/launcher"
	ui "github.com/openhytale/launcher-cli/internal/ui"
)

func init() {
	var useTUI bool

	launchCmd := &cobra.Command{
		Use:   "launch",
		Short: "Install/update and launch the game",
		Long: `Bring the install up to date, patch endpoint domains, provision the
Java runtime, and launch the Hytale client. Waits for the game to exit.

Session credentials for authenticated mode are read from the
HYTALE_IDENTITY_TOKEN and HYTALE_SESSION_TOKEN environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(useTUI)
		},
	}
	launchCmd.Flags().BoolVar(&useTUI, "tui", false, "Render progress in a full-screen TUI")
	rootCmd.AddCommand(launchCmd)
}

func runLaunch(useTUI bool) error {
	cfg := loadCfg()
	p := getPrinter()
	identity, session := authTokens()

	hub := events.NewHub()
	deps := launcher.Deps{
		Hub:           hub,
		IdentityToken: identity,
		SessionToken:  session,
	}
	if flagVerbose {
		deps.Logf = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}
	o := launcher.NewWith(cfg, deps)

	// Ctrl+C cancels the flow; the orchestrator honors it at the next safe
	// checkpoint rather than mid-apply.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Optional websocket event stream for external UIs.
	if cfg.EventListen != "" {
		pub := events.NewPublisher(hub)
		if err := pub.Start(cfg.EventListen); err != nil {
			p.Warn(fmt.Sprintf("event listener: %v", err))
		} else {
			defer pub.Close()
			if flagVerbose {
				p.Info(fmt.Sprintf("events on ws://%s/events", pub.Addr()))
			}
		}
	}

	if useTUI && term.IsTerminal(int(os.Stdout.Fd())) {
		return runLaunchWithTUI(ctx, cancel, o, hub)
	}

	stop := renderProgressText(hub)
	code, err := o.Run(ctx)
	stop()
	if err != nil {
		return launchError(err)
	}
	reportExit(p, code)
	return nil
}

// runLaunchWithTUI drives the orchestrator in the background while the TUI
// owns the terminal. Quitting the TUI cancels the flow.
func runLaunchWithTUI(ctx context.Context, cancel context.CancelFunc, o *launcher.Orchestrator, hub *events.Hub) error {
	type result struct {
		code int
		err  error
	}
	done := make(chan result, 1)
	go func() {
		code, err := o.Run(ctx)
		done <- result{code, err}
	}()

	if _, err := ui.RunLaunchTUI(hub, cancel); err != nil {
		cancel()
	}

	res := <-done
	p := getPrinter()
	if res.err != nil {
		return launchError(res.err)
	}
	reportExit(p, res.code)
	return nil
}

// renderProgressText streams hub events into a single-line progress bar.
// Returns a stop func that detaches the subscription.
func renderProgressText(hub *events.Hub) func() {
	if flagQuiet {
		return func() {}
	}
	ch, cancel := hub.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		bar := ui.NewProgressBar(os.Stdout, "Preparing", 0)
		lastMsg := ""
		for ev := range ch {
			bar.UpdatePercent(ev.Percent)
			if flagVerbose && ev.Message != "" && ev.Message != lastMsg {
				lastMsg = ev.Message
				fmt.Fprintf(os.Stdout, "\n%s\n", ev.Message)
			}
			if ev.Stage == events.StageRunning {
				bar.Finish()
				fmt.Fprintln(os.Stdout, ev.Message)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func reportExit(p ui.Printer, code int) {
	if code == 0 {
		p.Success("game exited cleanly")
	} else {
		p.Warn(fmt.Sprintf("game exited with code %d", code))
	}
}

// launchError maps flow errors onto exit codes.
func launchError(err error) error {
	if errors.Is(err, launcher.ErrCancelled) {
		return exitcodes.CancelledErr("cancelled")
	}
	return err
}
