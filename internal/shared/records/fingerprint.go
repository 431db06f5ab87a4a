package records

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint hashes the change-tracked slice of an attribute map. Go's JSON
// encoder emits map keys in sorted order, so the digest is deterministic for
// equal content regardless of insertion order. Fields absent from tracked are
// excluded so volatile values never force a new dimension version.
func Fingerprint(attributes map[string]string, tracked []string) string {
	subset := make(map[string]string, len(tracked))
	for _, field := range tracked {
		if value, ok := attributes[field]; ok {
			subset[field] = value
		}
	}
	payload, err := json.Marshal(subset)
	if err != nil {
		return ""
	}
	digest := sha256.Sum256(payload)
	return hex.EncodeToString(digest[:])
}

// AttributeDigest hashes the full attribute map. Used only as the dedupe
// tie-break when two records in one source share key and ingestion timestamp.
func AttributeDigest(attributes map[string]string) string {
	payload, err := json.Marshal(attributes)
	if err != nil {
		return ""
	}
	digest := sha256.Sum256(payload)
	return hex.EncodeToString(digest[:])
}
