package pipeline

// Reporter is the process-wide error channel. It is configured once per
// service instance and passed explicitly into every component that can
// fail deep in the pipeline, so ownership of the sink stays visible in
// each constructor.
type Reporter func(category, message string)

// Error categories surfaced through the ErrorOccurred signal.
const (
	CategoryRecording     = "RecordingError"
	CategoryTranscription = "TranscriptionError"
	CategoryInjection     = "InjectionError"
)
