package protocol

import "time"

// RPC subjects served by the voice typing daemon. Requests are NATS
// request/reply with JSON bodies.
const (
	SubjectStartRecording = "voicetyping.rpc.start_recording"
	SubjectStopRecording  = "voicetyping.rpc.stop_recording"
	SubjectRecordingState = "voicetyping.rpc.recording_state"
	SubjectProviders      = "voicetyping.rpc.providers"
	SubjectProviderModels = "voicetyping.rpc.provider_models"
	SubjectAudioSources   = "voicetyping.rpc.audio_sources"
	SubjectHistory        = "voicetyping.rpc.history"
)

// Signal subjects published by the daemon to all listeners.
const (
	SubjectRecordingStateChanged = "voicetyping.signal.recording_state"
	SubjectErrorOccurred         = "voicetyping.signal.error"
)

// SubjectKeyboardType is served by the external virtual keyboard service.
const SubjectKeyboardType = "keyboard.type"

type StartRecordingRequest struct {
	DeviceName        string `json:"device_name"`
	TranscriptOutDir  string `json:"transcript_output_dir"`
	PersistTranscript bool   `json:"persist_transcript"`
}

type StopRecordingRequest struct {
	Language string `json:"language"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
}

// StatusResponse carries the guard-level outcome of a lifecycle call.
type StatusResponse struct {
	Status string `json:"status"`
}

type RecordingStateResponse struct {
	IsRecording bool `json:"is_recording"`
}

type ProviderModelsRequest struct {
	Provider string `json:"provider"`
}

type ListResponse struct {
	Items []string `json:"items"`
	Error string   `json:"error,omitempty"`
}

type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryEntry is one completed transcription from the local history.
type HistoryEntry struct {
	SessionID string    `json:"session_id"`
	AudioPath string    `json:"audio_path"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Language  string    `json:"language"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
	Error   string         `json:"error,omitempty"`
}

// RecordingStateChanged is pushed once per externally visible phase
// change; only the recording phase reports true.
type RecordingStateChanged struct {
	IsRecording bool      `json:"is_recording"`
	Timestamp   time.Time `json:"timestamp"`
}

// ErrorOccurred surfaces an asynchronous pipeline failure.
type ErrorOccurred struct {
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// TypeTextRequest asks the keyboard service to inject text.
type TypeTextRequest struct {
	Text string `json:"text"`
}

type TypeTextResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
