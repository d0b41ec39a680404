package metrics

// Event names recorded by the recording pipeline.
const (
	EventChunkAccepted      = "chunk_accepted"
	EventChunkDuplicate     = "chunk_duplicate"
	EventWindowSkipped      = "window_skipped"
	EventTranscribeError    = "transcribe_error"
	EventSuggestionRecorded = "suggestion_recorded"
	EventSuggestionError    = "suggestion_error"
	EventMeetingInserted    = "meeting_inserted"
	EventSummaryGenerated   = "summary_generated"
	EventSummaryFailed      = "summary_failed"
	EventAudioUploaded      = "audio_uploaded"
	EventUploadFailed       = "upload_failed"
	EventQuotaReached       = "quota_reached"
	EventReminder           = "duration_reminder"
	EventHardStop           = "duration_hard_stop"
	EventRateLimit          = "rate_limit"
	EventBreakerOpen        = "breaker_open"
	EventBreakerClose       = "breaker_close"
	EventBreakerDenied      = "breaker_denied"
)
