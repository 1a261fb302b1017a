package models

import "time"

// RegistryDiff lists operation names that changed between two generations.
type RegistryDiff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Changed []string `json:"changed"`
}

// Empty reports whether nothing changed.
func (d RegistryDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// RegistryStatus summarizes the active generation and the last refresh attempt.
type RegistryStatus struct {
	Revision    int64              `json:"revision"`
	Version     string             `json:"version,omitempty"`
	BuiltAt     time.Time          `json:"built_at"`
	Provider    string             `json:"provider,omitempty"`
	Fingerprint string             `json:"fingerprint"`
	Operations  int                `json:"operations"`
	Resources   int                `json:"resources"`
	Failures    []DiscoveryFailure `json:"failures"`
	LastAttempt time.Time          `json:"last_attempt"`
	LastError   string             `json:"last_error,omitempty"`
}
