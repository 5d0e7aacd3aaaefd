package eventbus

// Topics published by the analysis flow.
const (
	EventAnalysisStarted   = "analysis:started"
	EventAnalysisCompleted = "analysis:completed"
	EventAnalysisFailed    = "analysis:failed"

	EventRecordFallback = "record:fallback"

	EventSessionTransition = "session:transition"
)

type AnalysisEventData struct {
	SessionID        string  `json:"session_id,omitempty"`
	ResultID         string  `json:"result_id,omitempty"`
	UploadID         string  `json:"upload_id,omitempty"`
	FileName         string  `json:"file_name"`
	CompanionName    string  `json:"companion_name,omitempty"`
	Rule             string  `json:"rule,omitempty"`
	DamagePercentage float64 `json:"damage_percentage,omitempty"`
	DurationMS       int64   `json:"duration_ms,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// RecordFallbackEventData is emitted whenever a placeholder stands in for a
// record the store could not write or read.
type RecordFallbackEventData struct {
	Operation     string `json:"operation"`
	PlaceholderID string `json:"placeholder_id"`
	Reason        string `json:"reason"`
}

type SessionEventData struct {
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}
