package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the capability surface every provider implements. Providers
// that lack a capability return ErrNotSupported from it.
type Client interface {
	// CreateTranscription uploads the audio artifact at audioPath and
	// returns the decoded transcript text, untrimmed.
	CreateTranscription(ctx context.Context, audioPath, model, language string) (string, error)
	// CreateSpeech synthesizes text and streams the encoded audio back.
	CreateSpeech(ctx context.Context, text, model, voice string) (io.ReadCloser, error)
	// StreamTranscription uploads audio and yields incremental transcript
	// events until the provider closes the stream.
	StreamTranscription(ctx context.Context, audioPath, model, language string) (<-chan StreamEvent, error)
}

// StreamEvent is one server-sent event from a streaming transcription.
type StreamEvent struct {
	Data json.RawMessage
	Err  error
}

// APIError is a provider-level failure (auth, quota, malformed request).
type APIError struct {
	Provider   Provider
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

var ErrNotSupported = fmt.Errorf("operation not supported by provider")

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 120 * time.Second}
}
