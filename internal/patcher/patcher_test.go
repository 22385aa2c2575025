package patcher

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestPlanFor(t *testing.T) {
	tests := []struct {
		name   string
		target string
		mode   Mode
		main   string
		prefix string
	}{
		{"Exactly10CharsIsDirect", "ab.example", ModeDirect, "ab.example", ""},
		{"ShorterIsDirect", "hy.io", ModeDirect, "hy.io", ""},
		{"ElevenCharsIsSplit", "abc.example", ModeSplit, "xample", "abc.e"},
		{"LongSplit", "play.redirect.gg", ModeSplit, "edirect.gg", "play.r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PlanFor(tt.target)
			if p.Mode != tt.mode {
				t.Errorf("mode = %s, want %s", p.Mode, tt.mode)
			}
			if p.MainDomain != tt.main {
				t.Errorf("main = %q, want %q", p.MainDomain, tt.main)
			}
			if p.SubdomainPrefix != tt.prefix {
				t.Errorf("prefix = %q, want %q", p.SubdomainPrefix, tt.prefix)
			}
		})
	}
}

func TestPlanForSplitBoundary(t *testing.T) {
	// 11 characters: 6 char prefix, 5 char suffix, deterministically.
	p := PlanFor("abcdefghijk")
	if p.Mode != ModeSplit {
		t.Fatalf("mode = %s, want split", p.Mode)
	}
	if p.SubdomainPrefix != "abcdef" || p.MainDomain != "ghijk" {
		t.Errorf("split = (%q, %q), want (abcdef, ghijk)", p.SubdomainPrefix, p.MainDomain)
	}
}

func writeExecutable(t *testing.T, dir string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, "HytaleClient")
	if err := os.WriteFile(path, content, 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPatchExecutableDirect(t *testing.T) {
	dir := t.TempDir()
	content := []byte("connect to sessions.hytale.com and telemetry.hytale.com now")
	path := writeExecutable(t, dir, content)

	res, err := New().PatchExecutable(path, "ab.example")
	if err != nil {
		t.Fatalf("PatchExecutable() error = %v", err)
	}
	if res.Mode != ModeDirect || res.Replacements != 2 {
		t.Errorf("result = %+v, want direct x2", res)
	}

	got, _ := os.ReadFile(path)
	want := "connect to sessions.ab.example and telemetry.ab.example now"
	if string(got) != want {
		t.Errorf("patched = %q, want %q", got, want)
	}

	// Subdomain prefixes remain byte-for-byte unchanged in direct mode.
	if !bytes.Contains(got, []byte("sessions.")) || !bytes.Contains(got, []byte("telemetry.")) {
		t.Error("prefix literals must stay intact in direct mode")
	}

	// Backup holds the pristine bytes.
	backup, err := os.ReadFile(BackupPath(path))
	if err != nil {
		t.Fatalf("missing backup: %v", err)
	}
	if !bytes.Equal(backup, content) {
		t.Error("backup does not match original bytes")
	}

	// Ledger recorded.
	entry, err := LoadLedger(path)
	if err != nil || entry == nil {
		t.Fatalf("ledger missing: %v", err)
	}
	if entry.TargetDomain != "ab.example" || entry.PatchMode != ModeDirect {
		t.Errorf("ledger = %+v", entry)
	}
	if entry.SchemaVersion != ledgerSchemaVersion {
		t.Errorf("schema version = %d", entry.SchemaVersion)
	}
}

func TestPatchExecutableSplit(t *testing.T) {
	dir := t.TempDir()
	content := []byte("base hytale.com plus sessions. literal")
	path := writeExecutable(t, dir, content)

	// 16 char target: prefix play.r + main edirect.gg (10 chars, same as
	// the original base domain).
	res, err := New().PatchExecutable(path, "play.redirect.gg")
	if err != nil {
		t.Fatalf("PatchExecutable() error = %v", err)
	}
	if res.Mode != ModeSplit {
		t.Fatalf("mode = %s, want split", res.Mode)
	}
	if res.Replacements != 2 {
		t.Errorf("replacements = %d, want 2", res.Replacements)
	}

	got, _ := os.ReadFile(path)
	if !bytes.Contains(got, []byte("edirect.gg")) {
		t.Error("base domain not rewritten")
	}
	if !bytes.Contains(got, append([]byte("play.r"), 0, 0, 0)) {
		t.Error("prefix literal not rewritten with zero padding")
	}
	if len(got) != len(content) {
		t.Errorf("file length changed: %d -> %d", len(content), len(got))
	}
}

func TestPatchExecutableSplitSkipsShortPrefixLiterals(t *testing.T) {
	dir := t.TempDir()
	content := []byte("base hytale.com plus api. literal and sessions. literal")
	path := writeExecutable(t, dir, content)

	// "api." is only 4 bytes and cannot hold the 6 byte replacement prefix.
	// That literal stays as is; the base domain and the longer prefix still
	// get rewritten.
	res, err := New().PatchExecutable(path, "play.redirect.gg")
	if err != nil {
		t.Fatalf("PatchExecutable() error = %v", err)
	}
	if res.Mode != ModeSplit {
		t.Fatalf("mode = %s, want split", res.Mode)
	}
	if res.Replacements != 2 {
		t.Errorf("replacements = %d, want 2", res.Replacements)
	}

	got, _ := os.ReadFile(path)
	if !bytes.Contains(got, []byte("edirect.gg")) {
		t.Error("base domain not rewritten")
	}
	if !bytes.Contains(got, append([]byte("play.r"), 0, 0, 0)) {
		t.Error("long prefix literal not rewritten with zero padding")
	}
	if !bytes.Contains(got, []byte("api. literal")) {
		t.Error("short prefix literal must stay intact")
	}
	if len(got) != len(content) {
		t.Errorf("file length changed: %d -> %d", len(content), len(got))
	}
}

func TestPatchExecutableIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeExecutable(t, dir, []byte("addr hytale.com end"))

	p := New()
	if _, err := p.PatchExecutable(path, "ab.example"); err != nil {
		t.Fatal(err)
	}
	first, _ := os.ReadFile(path)

	res, err := p.PatchExecutable(path, "ab.example")
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if !res.AlreadyPatched {
		t.Error("second run should short circuit on the ledger")
	}
	second, _ := os.ReadFile(path)
	if !bytes.Equal(first, second) {
		t.Error("second run must be byte identical")
	}
}

func TestPatchExecutableStaleLedgerIgnored(t *testing.T) {
	dir := t.TempDir()
	path := writeExecutable(t, dir, []byte("fresh build hytale.com here"))

	// A flag file from a previous install whose bytes no longer match: the
	// artifact was replaced by an update, so the flag must not be trusted.
	if err := SaveLedger(path, PlanFor("ab.example")); err != nil {
		t.Fatal(err)
	}

	res, err := New().PatchExecutable(path, "ab.example")
	if err != nil {
		t.Fatalf("PatchExecutable() error = %v", err)
	}
	if res.AlreadyPatched {
		t.Error("stale flag with no matching bytes must not short circuit")
	}
	if res.Replacements != 1 {
		t.Errorf("replacements = %d, want 1", res.Replacements)
	}
}

func TestPatchExecutableNoOccurrences(t *testing.T) {
	dir := t.TempDir()
	content := []byte("no domain literals in this build")
	path := writeExecutable(t, dir, content)

	res, err := New().PatchExecutable(path, "ab.example")
	if err != nil {
		t.Fatalf("no-op patch should succeed: %v", err)
	}
	if res.Replacements != 0 || res.AlreadyPatched {
		t.Errorf("result = %+v, want plain zero-count", res)
	}
	// No ledger for a no-op.
	if entry, _ := LoadLedger(path); entry != nil {
		t.Error("no-op must not create a ledger entry")
	}
	// And no backup either: only a write earns one.
	if _, err := os.Stat(BackupPath(path)); !os.IsNotExist(err) {
		t.Errorf("no-op must not create a backup: %v", err)
	}
}
