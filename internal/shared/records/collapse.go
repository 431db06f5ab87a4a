package records

import "strings"

// CollapseLatest reduces one source's batch to at most one record per natural
// key: group by key, keep the most recently ingested record. Records with a
// blank natural key are returned separately as orphans and never matched.
//
// Tie-break: when two records share key and ingestion timestamp, the record
// whose full-attribute digest sorts last wins. The rule is arbitrary but
// deterministic and independent of input order, which keeps batch replays
// byte-identical.
func CollapseLatest(input []SourceRecord) (map[string]SourceRecord, []SourceRecord) {
	latest := make(map[string]SourceRecord, len(input))
	var orphans []SourceRecord

	for _, rec := range input {
		key := strings.TrimSpace(rec.NaturalKey)
		if key == "" {
			orphans = append(orphans, rec)
			continue
		}
		current, seen := latest[key]
		if !seen {
			latest[key] = rec
			continue
		}
		switch {
		case rec.IngestedAt.After(current.IngestedAt):
			latest[key] = rec
		case rec.IngestedAt.Equal(current.IngestedAt):
			if AttributeDigest(rec.Attributes) > AttributeDigest(current.Attributes) {
				latest[key] = rec
			}
		}
	}
	return latest, orphans
}
