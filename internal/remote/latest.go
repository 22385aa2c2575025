package remote

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const latestSchemaVersion = 1

// LatestPointer records which concrete version "latest" resolved to the
// last time a latest-tracked install completed. One file per branch.
type LatestPointer struct {
	SchemaVersion int       `json:"schemaVersion"`
	Version       int       `json:"version"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// latestPath is <dir>/<branch>/latest.json.
func latestPath(dir, branch string) string {
	return filepath.Join(dir, branch, "latest.json")
}

// LoadLatestPointer reads the pointer for a branch. A missing file returns
// (nil, nil).
func LoadLatestPointer(dir, branch string) (*LatestPointer, error) {
	data, err := os.ReadFile(latestPath(dir, branch))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ptr LatestPointer
	if err := json.Unmarshal(data, &ptr); err != nil {
		return nil, err
	}
	return &ptr, nil
}

// SaveLatestPointer overwrites the pointer for a branch.
func SaveLatestPointer(dir, branch string, version int) error {
	ptr := LatestPointer{
		SchemaVersion: latestSchemaVersion,
		Version:       version,
		UpdatedAt:     time.Now().UTC(),
	}
	data, err := json.MarshalIndent(ptr, "", "  ")
	if err != nil {
		return err
	}
	path := latestPath(dir, branch)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
