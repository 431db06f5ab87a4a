package records

import (
	"time"
)

// Canonical row shapes shared across the warehouse-core modules.
// Keep these flat and serialization-friendly; adapters own column mapping.

// SourceRecord is one raw row from an upstream system, immutable once ingested.
type SourceRecord struct {
	EntityType   string
	SourceSystem string
	NaturalKey   string
	Attributes   map[string]string
	BatchID      string
	IngestedAt   time.Time
}

// Match methods produced by the crosswalk builder.
const (
	MatchBothExact   = "BOTH_EXACT"
	MatchSourceAOnly = "SOURCE_A_ONLY"
	MatchSourceBOnly = "SOURCE_B_ONLY"
)

// Confidence levels for deterministic exact-key matching.
const (
	ConfidenceBoth   = 100
	ConfidenceSingle = 90
)

// CrosswalkEntry links a master identifier to the source keys that produced it.
// Exactly one entry exists per (entity_type, batch_id, natural key).
type CrosswalkEntry struct {
	EntityType  string
	BatchID     string
	MasterID    string
	SourceARef  *string
	SourceBRef  *string
	Confidence  int
	MatchMethod string
}

// MergedRecord is the resolved attribute set for one master identifier in one batch.
type MergedRecord struct {
	EntityType     string
	BatchID        string
	MasterID       string
	Attributes     map[string]string
	Fingerprint    string
	DQScore        int
	DQIssues       []string
	ConflictFields []string
}

// ResolutionPreferPrimary is the only resolution rule of the baseline policy:
// when both sources disagree on a tracked field, the configured primary wins.
const ResolutionPreferPrimary = "prefer_primary_source"

// ConflictLogEntry is one append-only audit row for a field disagreement.
type ConflictLogEntry struct {
	EntryID        string
	EntityType     string
	EntityID       string
	BatchID        string
	Field          string
	SourceAValue   string
	SourceBValue   string
	ResolvedValue  string
	ResolutionRule string
	LoggedAt       time.Time
}

// OpenEndedEffectiveEnd marks the current dimension version. Closed rows carry
// a real end timestamp; the current row always carries this sentinel.
var OpenEndedEffectiveEnd = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// DimensionVersion is one time-bounded state of a master identifier.
type DimensionVersion struct {
	VersionID      string
	EntityType     string
	MasterID       string
	Attributes     map[string]string
	Fingerprint    string
	EffectiveStart time.Time
	EffectiveEnd   time.Time
	IsCurrent      bool
}
