// Package selfupdate replaces the launcher binary with the latest GitHub
// release: semver check, archive download with checksum verification, and
// atomic install with rollback.
package selfupdate

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	// Public repo: https://github.com/openhytale/launcher-cli
	githubOwner = "openhytale"
	githubRepo  = "launcher-cli"
	binaryName  = "hytale-launcher"

	httpTimeout = 30 * time.Second
)

// Release is the subset of a GitHub release the updater needs.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
	Assets      []Asset   `json:"assets"`
}

// Asset is one downloadable release artifact.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
	ContentType        string `json:"content_type"`
}

// CheckResult is the outcome of one update check.
type CheckResult struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
	Release         *Release
}

// HTTPDoer matches http.Client's Do (allows mocking in tests).
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Updater manages replacing one installed launcher binary.
type Updater struct {
	CurrentVersion string
	BinaryPath     string
	APIBase        string
	http           HTTPDoer
}

// New creates an updater for the currently running binary.
func New(currentVersion string) (*Updater, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	// Resolve symlinks so the replacement lands on the real file.
	realPath, err := filepath.EvalSymlinks(execPath)
	if err != nil {
		realPath = execPath
	}
	return NewWith(currentVersion, realPath, nil), nil
}

// NewWith allows injecting the binary path and HTTP client for testing.
func NewWith(currentVersion, binaryPath string, h HTTPDoer) *Updater {
	if h == nil {
		h = &http.Client{Timeout: httpTimeout}
	}
	return &Updater{
		CurrentVersion: currentVersion,
		BinaryPath:     binaryPath,
		APIBase:        "https://api.github.com",
		http:           h,
	}
}

// Check compares the running version against the latest release.
func (u *Updater) Check(ctx context.Context) (*CheckResult, error) {
	release, err := u.FetchLatestRelease(ctx)
	if err != nil {
		return nil, err
	}
	return &CheckResult{
		CurrentVersion:  strings.TrimPrefix(u.CurrentVersion, "v"),
		LatestVersion:   strings.TrimPrefix(release.TagName, "v"),
		UpdateAvailable: IsNewerVersion(u.CurrentVersion, release.TagName),
		Release:         release,
	}, nil
}

// FetchLatestRelease queries the GitHub API for the newest release.
func (u *Updater) FetchLatestRelease(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", u.APIBase, githubOwner, githubRepo)
	return u.fetchRelease(ctx, url, "no releases found")
}

// FetchReleaseByTag queries one specific release.
func (u *Updater) FetchReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	if !strings.HasPrefix(tag, "v") {
		tag = "v" + tag
	}
	url := fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s", u.APIBase, githubOwner, githubRepo, tag)
	return u.fetchRelease(ctx, url, fmt.Sprintf("release %s not found", tag))
}

func (u *Updater) fetchRelease(ctx context.Context, url, notFoundMsg string) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", binaryName)

	resp, err := u.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s", notFoundMsg)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API error: %s", resp.Status)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("parse release: %w", err)
	}
	return &release, nil
}

// AssetForPlatform finds the archive for the current OS/arch. Expected
// naming: hytale-launcher_1.0.0_linux_amd64.tar.gz.
func AssetForPlatform(release *Release) (*Asset, error) {
	suffix := fmt.Sprintf("_%s_%s.tar.gz", runtime.GOOS, runtime.GOARCH)
	for i := range release.Assets {
		asset := &release.Assets[i]
		if strings.HasPrefix(asset.Name, binaryName+"_") && strings.HasSuffix(asset.Name, suffix) {
			return asset, nil
		}
	}
	return nil, fmt.Errorf("no binary for %s/%s in release %s", runtime.GOOS, runtime.GOARCH, release.TagName)
}

// ChecksumAsset finds the checksums.txt asset.
func ChecksumAsset(release *Release) (*Asset, error) {
	for i := range release.Assets {
		if release.Assets[i].Name == "checksums.txt" {
			return &release.Assets[i], nil
		}
	}
	return nil, fmt.Errorf("checksums.txt not found in release")
}

// IsNewerVersion reports whether latest is semver-newer than current. Dev
// builds (non-semver current) always update.
func IsNewerVersion(current, latest string) bool {
	if !strings.HasPrefix(current, "v") {
		current = "v" + current
	}
	if !strings.HasPrefix(latest, "v") {
		latest = "v" + latest
	}
	if !semver.IsValid(current) {
		return true
	}
	if !semver.IsValid(latest) {
		return false
	}
	return semver.Compare(latest, current) > 0
}

// ProgressFunc reports download progress in bytes.
type ProgressFunc func(downloaded, total int64)

// Download fetches one release asset into memory.
func (u *Updater) Download(ctx context.Context, asset *Asset, progress ProgressFunc) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.BrowserDownloadURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := u.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", asset.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: %s", asset.Name, resp.Status)
	}

	var reader io.Reader = resp.Body
	if progress != nil {
		reader = &progressReader{reader: resp.Body, total: resp.ContentLength, progress: progress}
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read download: %w", err)
	}
	return data, nil
}

type progressReader struct {
	reader     io.Reader
	total      int64
	downloaded int64
	progress   ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.downloaded += int64(n)
	pr.progress(pr.downloaded, pr.total)
	return n, err
}

// VerifyChecksum validates archive bytes against the release's
// checksums.txt ("sha256  filename" lines).
func (u *Updater) VerifyChecksum(ctx context.Context, data []byte, release *Release, assetName string) error {
	checksumAsset, err := ChecksumAsset(release)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checksumAsset.BrowserDownloadURL, nil)
	if err != nil {
		return err
	}
	resp, err := u.http.Do(req)
	if err != nil {
		return fmt.Errorf("download checksums: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	expectedHash := ""
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) == 2 && parts[1] == assetName {
			expectedHash = parts[0]
			break
		}
	}
	if expectedHash == "" {
		return fmt.Errorf("checksum not found for %s", assetName)
	}

	hash := sha256.Sum256(data)
	if actual := hex.EncodeToString(hash[:]); actual != expectedHash {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expectedHash, actual)
	}
	return nil
}

// ExtractBinary pulls the launcher binary out of a tar.gz archive.
func ExtractBinary(archiveData []byte) ([]byte, error) {
	gzReader, err := gzip.NewReader(bytes.NewReader(archiveData))
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer func() { _ = gzReader.Close() }()

	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if header.Typeflag == tar.TypeReg &&
			(header.Name == binaryName || strings.HasSuffix(header.Name, "/"+binaryName)) {
			data, err := io.ReadAll(tarReader)
			if err != nil {
				return nil, fmt.Errorf("read binary: %w", err)
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("binary not found in archive")
}

// Install atomically replaces the current binary, keeping a .backup copy
// for Rollback.
func (u *Updater) Install(binaryData []byte) error {
	info, err := os.Stat(u.BinaryPath)
	if err != nil {
		return fmt.Errorf("stat current binary: %w", err)
	}
	mode := info.Mode()

	if err := copyFile(u.BinaryPath, u.BinaryPath+".backup"); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}

	// Temp file in the same directory so the rename stays atomic.
	dir := filepath.Dir(u.BinaryPath)
	tempFile, err := os.CreateTemp(dir, binaryName+"-update-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(binaryData); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("write new binary: %w", err)
	}
	tempFile.Close()

	if err := os.Chmod(tempPath, mode); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tempPath, u.BinaryPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("install binary: %w", err)
	}
	return nil
}

// Rollback restores the .backup copy created by Install.
func (u *Updater) Rollback() error {
	backupPath := u.BinaryPath + ".backup"
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("no backup found")
	}
	return os.Rename(backupPath, u.BinaryPath)
}

func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	dest, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = dest.Close() }()

	_, err = io.Copy(dest, source)
	return err
}
