package selfupdate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const (
	cacheFileName = ".update-check"
	cacheDuration = 10 * time.Minute
)

// CacheEntry is the persisted result of the last update check. It keeps
// routine commands from hitting the GitHub API more than once per window.
type CacheEntry struct {
	CheckedAt       time.Time `json:"checked_at"`
	LatestVersion   string    `json:"latest_version"`
	UpdateAvailable bool      `json:"update_available"`
}

// CachePath returns the cache file location under the launcher home.
func CachePath(homeDir string) string {
	return filepath.Join(homeDir, cacheFileName)
}

// LoadCache reads the cached check result.
func LoadCache(homeDir string) (*CacheEntry, error) {
	data, err := os.ReadFile(CachePath(homeDir))
	if err != nil {
		return nil, err
	}
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SaveCache persists a check result.
func SaveCache(homeDir string, entry *CacheEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(CachePath(homeDir), data, 0o644)
}

// IsCacheValid reports whether the entry is fresh enough to reuse.
func IsCacheValid(entry *CacheEntry) bool {
	return time.Since(entry.CheckedAt) < cacheDuration
}

// CachedCheck returns the cached result when fresh, otherwise performs a
// real check and refreshes the cache.
func (u *Updater) CachedCheck(ctx context.Context, homeDir string) (*CheckResult, error) {
	if entry, err := LoadCache(homeDir); err == nil && IsCacheValid(entry) {
		return &CheckResult{
			CurrentVersion:  u.CurrentVersion,
			LatestVersion:   entry.LatestVersion,
			UpdateAvailable: entry.UpdateAvailable,
		}, nil
	}
	result, err := u.Check(ctx)
	if err != nil {
		return nil, err
	}
	_ = SaveCache(homeDir, &CacheEntry{
		CheckedAt:       time.Now(),
		LatestVersion:   result.LatestVersion,
		UpdateAvailable: result.UpdateAvailable,
	})
	return result, nil
}
