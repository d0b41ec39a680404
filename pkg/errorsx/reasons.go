package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonTranscribeWindow    ReasonCode = "transcribe_window"
	ReasonTranscribeFallback  ReasonCode = "transcribe_fallback"
	ReasonTranscribeRateLimit ReasonCode = "transcribe_rate_limit"
	ReasonTranscribeCircuit   ReasonCode = "transcribe_circuit_open"

	ReasonSummaryGenerate  ReasonCode = "summary_generate"
	ReasonSummaryRateLimit ReasonCode = "summary_rate_limit"
	ReasonSuggestAnalyze   ReasonCode = "suggest_analyze"

	ReasonMeetingInsert    ReasonCode = "meeting_insert"
	ReasonMeetingUpdate    ReasonCode = "meeting_update"
	ReasonSuggestionInsert ReasonCode = "suggestion_insert"

	ReasonStorageUpload ReasonCode = "storage_upload"
	ReasonQuotaFetch    ReasonCode = "quota_fetch"
)
