package patcher

import (
	"encoding/json"
	"os"
	"time"
)

const (
	ledgerSuffix        = ".patched_custom"
	backupSuffix        = ".original"
	ledgerSchemaVersion = 1
)

// LedgerEntry is the per-artifact flag file recording a completed patch.
// It is advisory only: readers must re-verify against the artifact bytes,
// because an update can replace the artifact without touching the flag.
type LedgerEntry struct {
	SchemaVersion   int       `json:"schemaVersion"`
	PatchedAt       time.Time `json:"patchedAt"`
	OriginalDomain  string    `json:"originalDomain"`
	TargetDomain    string    `json:"targetDomain"`
	PatchMode       Mode      `json:"patchMode"`
	MainDomain      string    `json:"mainDomain"`
	SubdomainPrefix string    `json:"subdomainPrefix,omitempty"`
}

// LedgerPath returns the flag file path for an artifact.
func LedgerPath(artifact string) string { return artifact + ledgerSuffix }

// BackupPath returns the pristine copy path for an artifact.
func BackupPath(artifact string) string { return artifact + backupSuffix }

// LoadLedger reads the flag file for artifact. A missing or unreadable flag
// returns (nil, nil): absence is a normal state, not an error.
func LoadLedger(artifact string) (*LedgerEntry, error) {
	data, err := os.ReadFile(LedgerPath(artifact))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var e LedgerEntry
	if err := json.Unmarshal(data, &e); err != nil {
		// Corrupt flag files are treated as absent; the byte-level
		// verification decides what actually happens.
		return nil, nil
	}
	return &e, nil
}

// SaveLedger writes the flag file for artifact.
func SaveLedger(artifact string, plan Plan) error {
	e := LedgerEntry{
		SchemaVersion:   ledgerSchemaVersion,
		PatchedAt:       time.Now().UTC(),
		OriginalDomain:  OriginalDomain,
		TargetDomain:    plan.TargetDomain,
		PatchMode:       plan.Mode,
		MainDomain:      plan.MainDomain,
		SubdomainPrefix: plan.SubdomainPrefix,
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(LedgerPath(artifact), data, 0o644)
}

// ensureBackup copies the artifact's current bytes to the .original sibling
// if no backup exists yet. The first write to any target always goes through
// here.
func ensureBackup(artifact string, current []byte) error {
	bp := BackupPath(artifact)
	if _, err := os.Stat(bp); err == nil {
		return nil
	}
	return os.WriteFile(bp, current, 0o644)
}
