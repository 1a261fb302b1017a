package models

import "time"

// DiscoveryResult is the output shared by every discovery provider variant.
type DiscoveryResult struct {
	Provider    string                `json:"provider"`
	CollectedAt time.Time             `json:"collected_at"`
	Resources   []ResourceDescriptor  `json:"resources"`
	Procedures  []ProcedureDescriptor `json:"procedures"`
	Failures    []DiscoveryFailure    `json:"failures"`
}
