package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"testing"

	"github.com/openhytale/launcher-cli/internal/selfupdate"
	ui "github.com/openhytale/launcher-cli/internal/ui"
)

// mockUpdater records which update operations ran.
type mockUpdater struct {
	release     *selfupdate.Release
	fetchErr    error
	archive     []byte
	downloadErr error
	verifyErr   error
	installErr  error

	downloaded bool
	verified   bool
	installed  bool
	rolledBack bool
}

func (m *mockUpdater) FetchLatestRelease(ctx context.Context) (*selfupdate.Release, error) {
	return m.release, m.fetchErr
}

func (m *mockUpdater) FetchReleaseByTag(ctx context.Context, tag string) (*selfupdate.Release, error) {
	return m.release, m.fetchErr
}

func (m *mockUpdater) Download(ctx context.Context, asset *selfupdate.Asset, progress selfupdate.ProgressFunc) ([]byte, error) {
	m.downloaded = true
	if progress != nil {
		progress(int64(len(m.archive)), int64(len(m.archive)))
	}
	return m.archive, m.downloadErr
}

func (m *mockUpdater) VerifyChecksum(ctx context.Context, data []byte, release *selfupdate.Release, assetName string) error {
	m.verified = true
	return m.verifyErr
}

func (m *mockUpdater) Install(binaryData []byte) error {
	m.installed = true
	return m.installErr
}

func (m *mockUpdater) Rollback() error {
	m.rolledBack = true
	return nil
}

// stubPrompter feeds canned responses.
type stubPrompter struct{ response string }

func (s stubPrompter) ReadLine(prompt string) (string, error) { return s.response, nil }

func launcherArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	body := []byte("#!/bin/sh\necho launcher\n")
	if err := tw.WriteHeader(&tar.Header{Name: "hytale-launcher", Mode: 0o755, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(body); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func releaseFor(version string) *selfupdate.Release {
	assetName := fmt.Sprintf("hytale-launcher_%s_%s_%s.tar.gz",
		strings.TrimPrefix(version, "v"), runtime.GOOS, runtime.GOARCH)
	return &selfupdate.Release{
		TagName: version,
		Body:    "- fixes\n- features",
		Assets: []selfupdate.Asset{
			{Name: "checksums.txt"},
			{Name: assetName, Size: 128},
		},
	}
}

func selfUpdateOptsFor(t *testing.T, current string) selfUpdateOpts {
	t.Helper()
	return selfUpdateOpts{
		currentVersion: current,
		binaryPath:     "/bin/hytale-launcher",
		homeDir:        t.TempDir(),
	}
}

func quietPrinter() ui.Printer { return ui.NewPrinter("text") }

func TestRunSelfUpdateCore_AlreadyUpToDate(t *testing.T) {
	m := &mockUpdater{release: releaseFor("v1.0.0")}
	opts := selfUpdateOptsFor(t, "1.0.0")

	err := runSelfUpdateCore(context.Background(), m, opts, quietPrinter(), stubPrompter{"y"}, io.Discard, nil)
	if err != nil {
		t.Fatalf("runSelfUpdateCore() error = %v", err)
	}
	if m.downloaded {
		t.Error("downloaded despite being up to date")
	}
}

func TestRunSelfUpdateCore_CheckOnly(t *testing.T) {
	m := &mockUpdater{release: releaseFor("v1.1.0")}
	opts := selfUpdateOptsFor(t, "1.0.0")
	opts.checkOnly = true

	if err := runSelfUpdateCore(context.Background(), m, opts, quietPrinter(), stubPrompter{"y"}, io.Discard, nil); err != nil {
		t.Fatalf("runSelfUpdateCore() error = %v", err)
	}
	if m.downloaded || m.installed {
		t.Error("check-only mode must not download or install")
	}

	// Check must persist its result for the background notifier.
	entry, err := selfupdate.LoadCache(opts.homeDir)
	if err != nil {
		t.Fatalf("LoadCache() error = %v", err)
	}
	if !entry.UpdateAvailable || entry.LatestVersion != "1.1.0" {
		t.Errorf("cache entry = %+v", entry)
	}
}

func TestRunSelfUpdateCore_DeclinedPrompt(t *testing.T) {
	origYes, origNonInteractive := flagYes, flagNonInteractive
	defer func() { flagYes, flagNonInteractive = origYes, origNonInteractive }()
	flagYes, flagNonInteractive = false, false

	m := &mockUpdater{release: releaseFor("v1.1.0")}
	opts := selfUpdateOptsFor(t, "1.0.0")

	if err := runSelfUpdateCore(context.Background(), m, opts, quietPrinter(), stubPrompter{"n"}, io.Discard, nil); err != nil {
		t.Fatalf("runSelfUpdateCore() error = %v", err)
	}
	if m.downloaded {
		t.Error("downloaded despite declined prompt")
	}
}

func TestRunSelfUpdateCore_FullFlow(t *testing.T) {
	m := &mockUpdater{release: releaseFor("v1.1.0"), archive: launcherArchive(t)}
	opts := selfUpdateOptsFor(t, "1.0.0")
	opts.force = true

	verified := false
	verifyBinary := func(path string) (string, error) {
		verified = true
		return "hytale-launcher 1.1.0", nil
	}

	err := runSelfUpdateCore(context.Background(), m, opts, quietPrinter(), stubPrompter{"y"}, io.Discard, verifyBinary)
	if err != nil {
		t.Fatalf("runSelfUpdateCore() error = %v", err)
	}
	if !m.downloaded || !m.verified || !m.installed || !verified {
		t.Errorf("flow incomplete: downloaded=%v verified=%v installed=%v binaryChecked=%v",
			m.downloaded, m.verified, m.installed, verified)
	}
	if m.rolledBack {
		t.Error("unexpected rollback")
	}
}

func TestRunSelfUpdateCore_SkipVerify(t *testing.T) {
	m := &mockUpdater{release: releaseFor("v1.1.0"), archive: launcherArchive(t)}
	opts := selfUpdateOptsFor(t, "1.0.0")
	opts.force = true
	opts.skipVerify = true

	if err := runSelfUpdateCore(context.Background(), m, opts, quietPrinter(), stubPrompter{"y"}, io.Discard, nil); err != nil {
		t.Fatalf("runSelfUpdateCore() error = %v", err)
	}
	if m.verified {
		t.Error("checksum verified despite --no-verify")
	}
}

func TestRunSelfUpdateCore_RollbackOnBadBinary(t *testing.T) {
	m := &mockUpdater{release: releaseFor("v1.1.0"), archive: launcherArchive(t)}
	opts := selfUpdateOptsFor(t, "1.0.0")
	opts.force = true

	verifyBinary := func(path string) (string, error) {
		return "", errors.New("exec format error")
	}

	err := runSelfUpdateCore(context.Background(), m, opts, quietPrinter(), stubPrompter{"y"}, io.Discard, verifyBinary)
	if err == nil {
		t.Fatal("expected error after failed binary verification")
	}
	if !m.rolledBack {
		t.Error("rollback not performed")
	}
}

func TestRunSelfUpdateCore_FetchError(t *testing.T) {
	m := &mockUpdater{fetchErr: errors.New("api down")}
	opts := selfUpdateOptsFor(t, "1.0.0")

	err := runSelfUpdateCore(context.Background(), m, opts, quietPrinter(), stubPrompter{"y"}, io.Discard, nil)
	if err == nil || !strings.Contains(err.Error(), "fetch release") {
		t.Errorf("err = %v, want fetch release error", err)
	}
}
