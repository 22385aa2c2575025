package system

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckHomeWritable(t *testing.T) {
	t.Run("CreatesAndProbes", func(t *testing.T) {
		home := filepath.Join(t.TempDir(), "launcher-home")
		res := CheckHomeWritable(home)
		if res.Status != StatusPass {
			t.Errorf("status = %s: %s", res.Status, res.Message)
		}
		if _, err := os.Stat(filepath.Join(home, ".diskcheck")); !os.IsNotExist(err) {
			t.Error("probe file left behind")
		}
	})
}

func TestCheckInstall(t *testing.T) {
	t.Run("Present", func(t *testing.T) {
		if res := CheckInstall(t.TempDir()); res.Status != StatusPass {
			t.Errorf("status = %s", res.Status)
		}
	})
	t.Run("Absent", func(t *testing.T) {
		res := CheckInstall(filepath.Join(t.TempDir(), "nope"))
		if res.Status != StatusWarn {
			t.Errorf("status = %s", res.Status)
		}
		if len(res.Details) == 0 {
			t.Error("missing install hint")
		}
	})
}

func TestCheckRuntimeAndDiffTool(t *testing.T) {
	dir := t.TempDir()
	java := filepath.Join(dir, "java")
	if err := os.WriteFile(java, []byte("elf"), 0o755); err != nil {
		t.Fatal(err)
	}

	if res := CheckRuntime(java); res.Status != StatusPass {
		t.Errorf("runtime status = %s", res.Status)
	}
	if res := CheckRuntime(filepath.Join(dir, "missing")); res.Status != StatusWarn {
		t.Errorf("missing runtime status = %s", res.Status)
	}
	if res := CheckDiffTool(filepath.Join(dir, "missing")); res.Status != StatusWarn {
		t.Errorf("missing tool status = %s", res.Status)
	}
}

func TestCheckPatchServer(t *testing.T) {
	t.Run("Reachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()
		if res := CheckPatchServer(context.Background(), srv.URL); res.Status != StatusPass {
			t.Errorf("status = %s: %s", res.Status, res.Message)
		}
	})

	t.Run("Unreachable", func(t *testing.T) {
		res := CheckPatchServer(context.Background(), "http://127.0.0.1:1")
		if res.Status != StatusFail {
			t.Errorf("status = %s", res.Status)
		}
	})
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{8 << 30, "8.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
