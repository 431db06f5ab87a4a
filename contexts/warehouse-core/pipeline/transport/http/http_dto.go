package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RunRequest struct {
	EntityType string `json:"entity_type"`
	BatchID    string `json:"batch_id"`
}

type RunReportDTO struct {
	RunID              string `json:"run_id"`
	EntityType         string `json:"entity_type"`
	BatchID            string `json:"batch_id"`
	Status             string `json:"status"`
	RowCount           int    `json:"row_count"`
	CrosswalkEntries   int    `json:"crosswalk_entries"`
	Conflicts          int    `json:"conflicts"`
	VersionsOpened     int    `json:"versions_opened"`
	VersionsSuperseded int    `json:"versions_superseded"`
	VersionsUnchanged  int    `json:"versions_unchanged"`
	OrphanRecords      int    `json:"orphan_records"`
}

type RunResponse struct {
	Status string       `json:"status"`
	Data   RunReportDTO `json:"data"`
}

type RunDTO struct {
	RunID      string `json:"run_id"`
	EntityType string `json:"entity_type"`
	BatchID    string `json:"batch_id"`
	Status     string `json:"status"`
	RowCount   int    `json:"row_count"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

type RunStatusResponse struct {
	Status string `json:"status"`
	Data   RunDTO `json:"data"`
}

type ConflictDTO struct {
	EntryID        string `json:"entry_id"`
	EntityType     string `json:"entity_type"`
	EntityID       string `json:"entity_id"`
	BatchID        string `json:"batch_id"`
	Field          string `json:"field"`
	SourceAValue   string `json:"source_a_value"`
	SourceBValue   string `json:"source_b_value"`
	ResolvedValue  string `json:"resolved_value"`
	ResolutionRule string `json:"resolution_rule"`
	LoggedAt       string `json:"logged_at"`
}

type ConflictListResponse struct {
	Status string        `json:"status"`
	Data   []ConflictDTO `json:"data"`
}

type DimensionVersionDTO struct {
	VersionID      string            `json:"version_id"`
	EntityType     string            `json:"entity_type"`
	MasterID       string            `json:"master_id"`
	Attributes     map[string]string `json:"attributes"`
	Fingerprint    string            `json:"fingerprint_hash"`
	EffectiveStart string            `json:"effective_start"`
	EffectiveEnd   string            `json:"effective_end"`
	IsCurrent      bool              `json:"is_current"`
}

type HistoryResponse struct {
	Status string                `json:"status"`
	Data   []DimensionVersionDTO `json:"data"`
}
