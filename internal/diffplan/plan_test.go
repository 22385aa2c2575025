package diffplan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name      string
		installed int
		target    int
		want      []int
	}{
		{"ThreeToSeven", 3, 7, []int{4, 5, 6, 7}},
		{"AdjacentVersions", 6, 7, []int{7}},
		{"AlreadyCurrent", 7, 7, nil},
		{"AheadOfTarget", 8, 7, nil},
		{"UnknownInstall", 0, 7, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(tt.installed, tt.target)
			if len(got) != len(tt.want) {
				t.Fatalf("Plan(%d, %d) = %v, want %v", tt.installed, tt.target, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("Plan(%d, %d) = %v, want %v", tt.installed, tt.target, got, tt.want)
				}
			}
		})
	}
}

func TestInferInstalledVersion(t *testing.T) {
	t.Run("HighestWins", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{"3.pwr", "12.pwr", "7.pwr"} {
			if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		if got := InferInstalledVersion(dir); got != 12 {
			t.Errorf("inferred = %d, want 12", got)
		}
	})

	t.Run("IgnoresStagingAndSidecars", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{"5.pwr", "99.pwr.part", "98.pwr.xxh64", "junk.txt", "notes"} {
			if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		if got := InferInstalledVersion(dir); got != 5 {
			t.Errorf("inferred = %d, want 5", got)
		}
	})

	t.Run("EmptyOrMissingDir", func(t *testing.T) {
		if got := InferInstalledVersion(t.TempDir()); got != 0 {
			t.Errorf("inferred = %d, want 0 for empty dir", got)
		}
		if got := InferInstalledVersion("/nonexistent/cache"); got != 0 {
			t.Errorf("inferred = %d, want 0 for missing dir", got)
		}
	})
}
