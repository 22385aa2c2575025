package main

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/openhytale/launcher-cli/internal/config"
	"github.com/openhytale/launcher-cli/internal/exitcodes"
	"github.com/openhytale/launcher-cli/internal/selfupdate"
	ui "github.com/openhytale/launcher-cli/internal/ui"
)

// Version information - set via -ldflags during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// rootCmd wires the CLI surface using Cobra. Persistent flags are applied
// to a loaded config in loadCfg(). Subcommands implement the actual
// operations (launch, install, update, status, etc.).
// updateCheckResult stores the result of the background self-update check
var (
	updateCheckResult *selfupdate.CheckResult
	updateCheckMu     sync.Mutex
)

var rootCmd = &cobra.Command{
	Use:           "hytale-launcher",
	Short:         "Hytale Launcher",
	Long:          "Install, update, patch, and launch the Hytale client against third-party servers.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Initialize global UI config from flags after parsing but before command execution
		ui.InitGlobal(ui.Config{
			NoColor:        flagNoColor,
			NoEmoji:        flagNoEmoji,
			Yes:            flagYes,
			NonInteractive: flagNonInteractive,
			Verbose:        flagVerbose,
			Quiet:          flagQuiet,
		})

		// Set NO_COLOR env so lipgloss and other libraries respect the flag
		if flagNoColor {
			os.Setenv("NO_COLOR", "1")
		}

		// Start background self-update check (non-blocking)
		if !shouldSkipUpdateCheck(cmd) {
			go checkForUpdateBackground()
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		// Show update notification if available (after command completes)
		updateCheckMu.Lock()
		result := updateCheckResult
		updateCheckMu.Unlock()
		if !shouldSkipUpdateCheck(cmd) && result != nil && result.UpdateAvailable {
			showUpdateNotification(result)
		}
	},
}

var (
	flagHome           string
	flagBranch         string
	flagGameVersion    int
	flagDomain         string
	flagOutput         string
	flagVerbose        bool
	flagQuiet          bool
	flagNoColor        bool
	flagNoEmoji        bool
	flagYes            bool
	flagNonInteractive bool
)

// silentErr marks errors whose message was already rendered by the command.
type silentErr struct{ error }

func (e silentErr) Unwrap() error { return e.error }

func init() {
	// Persistent flags to override defaults
	rootCmd.PersistentFlags().StringVar(&flagHome, "home", "", "Launcher home directory (overrides env)")
	rootCmd.PersistentFlags().StringVar(&flagBranch, "branch", "", "Game branch: release|pre-release")
	rootCmd.PersistentFlags().IntVar(&flagGameVersion, "game-version", 0, "Pin a specific game version (0 = latest)")
	rootCmd.PersistentFlags().StringVar(&flagDomain, "domain", "", "Target server domain for endpoint patching")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "Output format: json|yaml|text")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Quiet mode: minimal output (suppresses extras)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable ANSI colors")
	rootCmd.PersistentFlags().BoolVar(&flagNoEmoji, "no-emoji", false, "Disable emoji output")
	rootCmd.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "Assume yes for all prompts")
	rootCmd.PersistentFlags().BoolVar(&flagNonInteractive, "non-interactive", false, "Fail instead of prompting")

	// Replace root help to present grouped, example-rich output.
	// Only apply custom help to the root command; subcommands use cobra's default help.
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != rootCmd {
			// For subcommands, print cobra's default usage (includes flags and descriptions)
			fmt.Fprintln(os.Stdout, cmd.UsageString())
			return
		}
		// Help runs before PersistentPreRun, so manually configure colors
		c := ui.NewColorConfig()
		c.Enabled = c.Enabled && !flagNoColor
		c.EmojiEnabled = c.EmojiEnabled && !flagNoEmoji
		w := os.Stdout

		// Fixed column width for command alignment (longest command + buffer)
		const cmdWidth = 28

		fmt.Fprintln(w, c.Header(" Hytale Launcher "))
		fmt.Fprintln(w, c.Description("Install, update, patch, and launch the Hytale client against third-party servers."))
		fmt.Fprintln(w, c.Separator(50))
		fmt.Fprintln(w)

		fmt.Fprintln(w, c.SubHeader("USAGE"))
		fmt.Fprintf(w, "  %s <command> [flags]\n", "hytale-launcher")
		fmt.Fprintln(w)

		fmt.Fprintln(w, c.SubHeader("Quick Start"))
		fmt.Fprintln(w, c.FormatCommandAligned("launch", "Install/update and launch the game", cmdWidth))
		fmt.Fprintln(w, c.FormatCommandAligned("status", "Show install, runtime, and game state", cmdWidth))
		fmt.Fprintln(w)

		fmt.Fprintln(w, c.SubHeader("Game"))
		fmt.Fprintln(w, c.FormatCommandAligned("install", "Install or update the game files", cmdWidth))
		fmt.Fprintln(w, c.FormatCommandAligned("update", "Update an existing install", cmdWidth))
		fmt.Fprintln(w, c.FormatCommandAligned("versions", "List versions on the patch server", cmdWidth))
		fmt.Fprintln(w, c.FormatCommandAligned("patch --domain <d>", "Redirect game endpoints to a server", cmdWidth))
		fmt.Fprintln(w)

		fmt.Fprintln(w, c.SubHeader("Operations"))
		fmt.Fprintln(w, c.FormatCommandAligned("stop", "Stop the running game client", cmdWidth))
		fmt.Fprintln(w, c.FormatCommandAligned("logs", "Show game logs (-f to follow)", cmdWidth))
		fmt.Fprintln(w)

		fmt.Fprintln(w, c.SubHeader("Utilities"))
		fmt.Fprintln(w, c.FormatCommandAligned("doctor", "Run diagnostic checks", cmdWidth))
		fmt.Fprintln(w, c.FormatCommandAligned("selfupdate", "Update the launcher itself", cmdWidth))
		fmt.Fprintln(w, c.FormatCommandAligned("version", "Show version information", cmdWidth))
		fmt.Fprintln(w)
	})
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var se silentErr
		if !errors.As(err, &se) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitcodes.CodeForError(err))
	}
}

// loadCfg reads defaults + env + launcher.yaml via internal/config.Load()
// and then applies overrides from persistent flags.
func loadCfg() config.Config {
	cfg := config.Load()
	if flagHome != "" {
		cfg.HomeDir = flagHome
	}
	if flagBranch != "" {
		cfg.Branch = flagBranch
	}
	if flagGameVersion != 0 {
		cfg.Version = flagGameVersion
	}
	if flagDomain != "" {
		cfg.TargetDomain = flagDomain
	}
	return cfg
}
