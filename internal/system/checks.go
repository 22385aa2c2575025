// Package system runs the environment diagnostics behind the doctor
// command: host resources, launcher directory health, and component
// presence. Checks never mutate state beyond a writability probe file.
package system

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Check statuses.
const (
	StatusPass = "pass"
	StatusWarn = "warn"
	StatusFail = "fail"
)

// minInstallBytes is the free-space floor for a comfortable install: the
// full game plus one staged patch archive.
const minInstallBytes = uint64(8) << 30

// minMemoryBytes is the client's practical memory floor.
const minMemoryBytes = uint64(4) << 30

// CheckResult is one diagnostic outcome.
type CheckResult struct {
	Name    string
	Status  string // pass | warn | fail
	Message string
	Details []string
}

// Env is what the checks need to know about the installation.
type Env struct {
	HomeDir        string
	InstallDir     string
	JavaPath       string
	ButlerPath     string
	PatchServerURL string
}

// RunAll executes every check in display order.
func RunAll(ctx context.Context, env Env) []CheckResult {
	return []CheckResult{
		CheckDiskSpace(env.HomeDir),
		CheckMemory(),
		CheckHomeWritable(env.HomeDir),
		CheckInstall(env.InstallDir),
		CheckRuntime(env.JavaPath),
		CheckDiffTool(env.ButlerPath),
		CheckPatchServer(ctx, env.PatchServerURL),
	}
}

// CheckDiskSpace verifies free space on the volume holding the launcher
// home.
func CheckDiskSpace(homeDir string) CheckResult {
	result := CheckResult{Name: "Disk Space"}

	usage, err := disk.Usage(homeDir)
	if err != nil {
		// Fall back to the parent: the home dir may not exist yet.
		usage, err = disk.Usage(filepath.Dir(homeDir))
	}
	if err != nil {
		result.Status = StatusWarn
		result.Message = "Could not check disk space"
		result.Details = []string{fmt.Sprintf("Error: %v", err)}
		return result
	}

	free := usage.Free
	if free < minInstallBytes {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("Only %s free (need %s for a full install)",
			formatBytes(free), formatBytes(minInstallBytes))
		result.Details = []string{"Free up disk space before installing or updating"}
	} else {
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%s free on install volume", formatBytes(free))
	}
	return result
}

// CheckMemory verifies the host has enough RAM for the client.
func CheckMemory() CheckResult {
	result := CheckResult{Name: "Memory"}

	vm, err := mem.VirtualMemory()
	if err != nil {
		result.Status = StatusWarn
		result.Message = "Could not check memory"
		result.Details = []string{fmt.Sprintf("Error: %v", err)}
		return result
	}

	if vm.Total < minMemoryBytes {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s RAM (recommend %s+)",
			formatBytes(vm.Total), formatBytes(minMemoryBytes))
	} else {
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%s RAM, %s available",
			formatBytes(vm.Total), formatBytes(vm.Available))
	}
	return result
}

// CheckHomeWritable probes the launcher home with a test file.
func CheckHomeWritable(homeDir string) CheckResult {
	result := CheckResult{Name: "Launcher Home"}

	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("Cannot create %s", homeDir)
		result.Details = []string{fmt.Sprintf("Error: %v", err)}
		return result
	}
	testFile := filepath.Join(homeDir, ".diskcheck")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		result.Status = StatusFail
		result.Message = "Cannot write to launcher home"
		result.Details = []string{
			fmt.Sprintf("Error: %v", err),
			"Verify write permissions",
		}
		return result
	}
	os.Remove(testFile)
	result.Status = StatusPass
	result.Message = fmt.Sprintf("Writable at %s", homeDir)
	return result
}

// CheckInstall reports whether a game install is present.
func CheckInstall(installDir string) CheckResult {
	result := CheckResult{Name: "Game Install"}

	info, err := os.Stat(installDir)
	if err != nil || !info.IsDir() {
		result.Status = StatusWarn
		result.Message = "No game install found"
		result.Details = []string{"Run 'hytale-launcher install' to install the game"}
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("Install present at %s", installDir)
	return result
}

// CheckRuntime reports whether the provisioned Java runtime exists.
func CheckRuntime(javaPath string) CheckResult {
	result := CheckResult{Name: "Java Runtime"}

	if _, err := os.Stat(javaPath); err != nil {
		result.Status = StatusWarn
		result.Message = "Runtime not provisioned (installed on first launch)"
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("Runtime present at %s", javaPath)
	return result
}

// CheckDiffTool reports whether the diff-apply tool is installed.
func CheckDiffTool(butlerPath string) CheckResult {
	result := CheckResult{Name: "Diff Tool"}

	if _, err := os.Stat(butlerPath); err != nil {
		result.Status = StatusWarn
		result.Message = "Diff tool not installed (installed on first install/update)"
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("Tool present at %s", butlerPath)
	return result
}

// CheckPatchServer probes the patch server base URL.
func CheckPatchServer(ctx context.Context, baseURL string) CheckResult {
	result := CheckResult{Name: "Patch Server"}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("Invalid patch server URL %q", baseURL)
		return result
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("Cannot reach %s", baseURL)
		result.Details = []string{
			fmt.Sprintf("Error: %v", err),
			"Check internet connectivity",
		}
		return result
	}
	resp.Body.Close()
	result.Status = StatusPass
	result.Message = fmt.Sprintf("Reachable at %s", baseURL)
	return result
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
