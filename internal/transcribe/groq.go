package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

type Groq struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGroq(apiKey string) *Groq {
	return &Groq{
		apiKey:  apiKey,
		baseURL: groqBaseURL,
		client:  newHTTPClient(),
	}
}

func (g *Groq) CreateTranscription(ctx context.Context, audioPath, model, language string) (string, error) {
	body, contentType, err := transcriptionForm(audioPath, model, language, false)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq transcription request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("groq transcription read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Provider: ProviderGroq, StatusCode: resp.StatusCode, Message: string(data)}
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("groq response parse error: %w", err)
	}
	return parsed.Text, nil
}

// Groq has no speech synthesis endpoint compatible with this surface.
func (g *Groq) CreateSpeech(context.Context, string, string, string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("groq: %w", ErrNotSupported)
}

// Groq's transcription endpoint does not stream partial results.
func (g *Groq) StreamTranscription(context.Context, string, string, string) (<-chan StreamEvent, error) {
	return nil, fmt.Errorf("groq: %w", ErrNotSupported)
}
