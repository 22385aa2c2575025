package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openhytale/launcher-cli/internal/selfupdate"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show launcher version information",
		Run: func(cmd *cobra.Command, args []string) {
			p := getPrinter()
			if p.Structured(map[string]string{
				"version":    Version,
				"commit":     Commit,
				"build_date": BuildDate,
			}) {
				return
			}
			c := p.Colors
			fmt.Printf("%s %s\n", c.Label("hytale-launcher"), c.Value(Version))
			fmt.Printf("%s %s\n", c.Label("commit:"), c.Value(Commit))
			fmt.Printf("%s %s\n", c.Label("built:"), c.Value(BuildDate))
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(os.Stdout)
			case "zsh":
				return rootCmd.GenZshCompletion(os.Stdout)
			case "fish":
				return rootCmd.GenFishCompletion(os.Stdout, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	})
}

// checkForUpdateBackground runs in a goroutine during PersistentPreRun.
// It is cache-first: at most one API hit per cache window, and failures
// are silent so an offline machine never sees noise.
func checkForUpdateBackground() {
	if Version == "dev" {
		return
	}
	u, err := selfupdate.New(Version)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := u.CachedCheck(ctx, loadCfg().HomeDir)
	if err != nil || !result.UpdateAvailable {
		return
	}
	if !selfupdate.IsNewerVersion(Version, result.LatestVersion) {
		return
	}
	updateCheckMu.Lock()
	updateCheckResult = result
	updateCheckMu.Unlock()
}

// showUpdateNotification prints the post-command update banner.
func showUpdateNotification(result *selfupdate.CheckResult) {
	c := getPrinter().Colors
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, c.Separator(56))
	fmt.Fprintf(os.Stderr, "%s %s\n",
		c.Warning("A new launcher version is available:"),
		c.Value(fmt.Sprintf("%s → %s", result.CurrentVersion, result.LatestVersion)))
	fmt.Fprintf(os.Stderr, "Run: %s\n", c.Command("hytale-launcher selfupdate"))
	fmt.Fprintln(os.Stderr, c.Separator(56))
}

// shouldSkipUpdateCheck filters commands where a background version probe
// is pointless or would race a long-lived foreground flow.
func shouldSkipUpdateCheck(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "selfupdate", "help", "version", "completion", "launch", "install", "update":
		return true
	}
	return false
}
