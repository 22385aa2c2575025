package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openhytale/launcher-cli/internal/selfupdate"
	ui "github.com/openhytale/launcher-cli/internal/ui"
)

// CLIUpdater abstracts launcher self-update operations for testability.
type CLIUpdater interface {
	FetchLatestRelease(ctx context.Context) (*selfupdate.Release, error)
	FetchReleaseByTag(ctx context.Context, tag string) (*selfupdate.Release, error)
	Download(ctx context.Context, asset *selfupdate.Asset, progress selfupdate.ProgressFunc) ([]byte, error)
	VerifyChecksum(ctx context.Context, data []byte, release *selfupdate.Release, assetName string) error
	Install(binaryData []byte) error
	Rollback() error
}

type selfUpdateOpts struct {
	checkOnly      bool
	force          bool
	version        string
	skipVerify     bool
	currentVersion string
	binaryPath     string
	homeDir        string
}

// runSelfUpdateCore contains the update flow, testable with a mocked CLIUpdater.
func runSelfUpdateCore(ctx context.Context, updater CLIUpdater, opts selfUpdateOpts, p ui.Printer, prompter Prompter, output io.Writer, verifyBinary func(string) (string, error)) error {
	var release *selfupdate.Release
	var err error
	if opts.version != "" {
		p.Info(fmt.Sprintf("Fetching release %s...", opts.version))
		release, err = updater.FetchReleaseByTag(ctx, opts.version)
	} else {
		p.Info("Checking for updates...")
		release, err = updater.FetchLatestRelease(ctx)
	}
	if err != nil {
		return fmt.Errorf("fetch release: %w", err)
	}

	latestVersion := strings.TrimPrefix(release.TagName, "v")
	currentVersion := strings.TrimPrefix(opts.currentVersion, "v")

	updateAvailable := selfupdate.IsNewerVersion(opts.currentVersion, release.TagName)
	_ = selfupdate.SaveCache(opts.homeDir, &selfupdate.CacheEntry{
		CheckedAt:       time.Now(),
		LatestVersion:   latestVersion,
		UpdateAvailable: updateAvailable,
	})

	if !opts.force && !updateAvailable {
		p.Success(fmt.Sprintf("Already up to date (v%s)", currentVersion))
		return nil
	}

	fmt.Fprintln(output)
	p.Info(fmt.Sprintf("Update available: v%s → v%s", currentVersion, latestVersion))

	if release.Body != "" {
		fmt.Fprintln(output)
		fmt.Fprintln(output, "Changelog:")
		lines := strings.Split(release.Body, "\n")
		maxLines := 10
		if len(lines) < maxLines {
			maxLines = len(lines)
		}
		for _, line := range lines[:maxLines] {
			fmt.Fprintf(output, "  %s\n", line)
		}
		if len(lines) > 10 {
			fmt.Fprintf(output, "  ... (see %s for full changelog)\n", release.HTMLURL)
		}
	}
	fmt.Fprintln(output)

	if opts.checkOnly {
		p.Info("Run 'hytale-launcher selfupdate' to install")
		return nil
	}

	if !opts.force && !confirm(prompter, "Update now?") {
		p.Warn("Update cancelled")
		return nil
	}

	asset, err := selfupdate.AssetForPlatform(release)
	if err != nil {
		return err
	}

	p.Info(fmt.Sprintf("Downloading %s...", asset.Name))
	bar := ui.NewProgressBar(output, asset.Name, asset.Size)
	archiveData, err := updater.Download(ctx, asset, func(downloaded, total int64) {
		bar.Update(downloaded)
	})
	bar.Finish()
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	if !opts.skipVerify {
		p.Info("Verifying checksum...")
		if err := updater.VerifyChecksum(ctx, archiveData, release, asset.Name); err != nil {
			return fmt.Errorf("checksum verification: %w", err)
		}
		p.Success("Checksum verified")
	} else {
		p.Warn("Skipping checksum verification (not recommended)")
	}

	p.Info("Extracting binary...")
	binaryData, err := selfupdate.ExtractBinary(archiveData)
	if err != nil {
		return fmt.Errorf("extract binary: %w", err)
	}

	p.Info("Installing...")
	if err := updater.Install(binaryData); err != nil {
		return fmt.Errorf("install: %w", err)
	}

	if verifyBinary != nil {
		p.Info("Verifying installation...")
		if _, verErr := verifyBinary(opts.binaryPath); verErr != nil {
			p.Warn("Verification failed, rolling back...")
			if rbErr := updater.Rollback(); rbErr != nil {
				return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, verErr)
			}
			return fmt.Errorf("new binary verification failed, rolled back: %w", verErr)
		}
	}

	fmt.Fprintln(output)
	p.Success(fmt.Sprintf("Updated to v%s", latestVersion))
	return nil
}

func init() {
	var (
		checkOnly  bool
		force      bool
		version    string
		skipVerify bool
	)

	selfUpdateCmd := &cobra.Command{
		Use:   "selfupdate",
		Short: "Update the launcher binary itself",
		Long: `Check for and install the latest launcher release.

Downloads the pre-built binary from GitHub Releases, verifies its
checksum, and replaces the running executable in place.

Examples:
  hytale-launcher selfupdate                  # Update to latest
  hytale-launcher selfupdate --check          # Check only, don't install
  hytale-launcher selfupdate --version v1.2.0 # Install a specific version`,
		RunE: func(cmd *cobra.Command, args []string) error {
			updater, err := selfupdate.New(Version)
			if err != nil {
				return fmt.Errorf("initialize updater: %w", err)
			}

			cfg := loadCfg()
			opts := selfUpdateOpts{
				checkOnly:      checkOnly,
				force:          force,
				version:        version,
				skipVerify:     skipVerify,
				currentVersion: Version,
				binaryPath:     updater.BinaryPath,
				homeDir:        cfg.HomeDir,
			}

			verifyBinary := func(path string) (string, error) {
				verifyCmd := exec.Command(path, "version")
				var stdout bytes.Buffer
				verifyCmd.Stdout = &stdout
				if err := verifyCmd.Run(); err != nil {
					return "", err
				}
				return strings.TrimSpace(stdout.String()), nil
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			return runSelfUpdateCore(ctx, updater, opts, getPrinter(), ttyPrompter{}, os.Stdout, verifyBinary)
		},
	}

	selfUpdateCmd.Flags().BoolVar(&checkOnly, "check", false, "Only check for updates, don't install")
	selfUpdateCmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")
	selfUpdateCmd.Flags().StringVar(&version, "version", "", "Install a specific version (e.g., v1.2.0)")
	selfUpdateCmd.Flags().BoolVar(&skipVerify, "no-verify", false, "Skip checksum verification (not recommended)")

	rootCmd.AddCommand(selfUpdateCmd)
}
