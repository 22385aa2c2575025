package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openhytale/launcher-cli/internal/exitcodes"
	"github.com/openhytale/launcher-cli/internal/launcher"
	"github.com/openhytale/launcher-cli/internal/patcher"
)

func init() {
	patchCmd := &cobra.Command{
		Use:   "patch",
		Short: "Redirect game endpoints to a third-party server",
		Long: `Rewrite the endpoint domains embedded in the client executable and the
bundled server archive to point at --domain (or target_domain from
launcher.yaml). Re-running with the same domain is a no-op; re-running
with a new domain re-patches from the recorded original.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatch()
		},
	}
	rootCmd.AddCommand(patchCmd)
}

func runPatch() error {
	cfg := loadCfg()
	p := getPrinter()

	if cfg.TargetDomain == "" {
		return exitcodes.InvalidArgsError("no target domain: pass --domain or set target_domain in launcher.yaml")
	}
	installDir := cfg.InstallDir(cfg.Branch, cfg.Version)
	if _, err := os.Stat(launcher.ClientExecutable(installDir)); err != nil {
		return exitcodes.PreconditionErrorf("no install at %s, run 'hytale-launcher install' first", installDir)
	}

	pt := patcher.New()
	type artifactResult struct {
		Artifact       string `json:"artifact"`
		Replacements   int    `json:"replacements"`
		AlreadyPatched bool   `json:"already_patched"`
		Skipped        bool   `json:"skipped,omitempty"`
	}
	var results []artifactResult

	exe := launcher.ClientExecutable(installDir)
	res, err := pt.PatchExecutable(exe, cfg.TargetDomain)
	if err != nil {
		return fmt.Errorf("patch executable: %w", err)
	}
	results = append(results, artifactResult{Artifact: exe, Replacements: res.Replacements, AlreadyPatched: res.AlreadyPatched})

	jar := launcher.ServerArchive(installDir)
	if _, err := os.Stat(jar); err == nil {
		res, err := pt.PatchArchive(jar, cfg.TargetDomain)
		if err != nil {
			if errors.Is(err, patcher.ErrLengthMismatch) {
				return exitcodes.WrapError(exitcodes.ValidationError, "patch server archive", err)
			}
			return fmt.Errorf("patch server archive: %w", err)
		}
		results = append(results, artifactResult{Artifact: jar, Replacements: res.Replacements, AlreadyPatched: res.AlreadyPatched})
	} else {
		results = append(results, artifactResult{Artifact: jar, Skipped: true})
	}

	if p.Structured(map[string]any{"domain": cfg.TargetDomain, "artifacts": results}) {
		return nil
	}
	for _, r := range results {
		switch {
		case r.Skipped:
			p.Info(fmt.Sprintf("%s: not present, skipped", r.Artifact))
		case r.AlreadyPatched:
			p.Info(fmt.Sprintf("%s: already patched for %s", r.Artifact, cfg.TargetDomain))
		default:
			p.Success(fmt.Sprintf("%s: %d replacements", r.Artifact, r.Replacements))
		}
	}
	return nil
}
