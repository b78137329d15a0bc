package transcribe

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const openAIBaseURL = "https://api.openai.com/v1"

type OpenAI struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{
		apiKey:  apiKey,
		baseURL: openAIBaseURL,
		client:  newHTTPClient(),
	}
}

func (o *OpenAI) CreateTranscription(ctx context.Context, audioPath, model, language string) (string, error) {
	body, contentType, err := transcriptionForm(audioPath, model, language, false)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai transcription request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai transcription read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Message: string(data)}
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("openai response parse error: %w", err)
	}
	return parsed.Text, nil
}

func (o *OpenAI) CreateSpeech(ctx context.Context, text, model, voice string) (io.ReadCloser, error) {
	payload, err := json.Marshal(map[string]string{
		"model":           model,
		"voice":           voice,
		"input":           text,
		"response_format": "opus",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai speech request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &APIError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Message: string(data)}
	}
	return resp.Body, nil
}

func (o *OpenAI) StreamTranscription(ctx context.Context, audioPath, model, language string) (<-chan StreamEvent, error) {
	body, contentType, err := transcriptionForm(audioPath, model, language, true)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai stream request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &APIError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Message: string(data)}
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(line[len("data:"):])
			if data == "" || data == "[DONE]" {
				continue
			}
			select {
			case events <- StreamEvent{Data: json.RawMessage(data)}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case events <- StreamEvent{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return events, nil
}

// transcriptionForm builds the multipart upload shared by both providers.
func transcriptionForm(audioPath, model, language string, stream bool) (*bytes.Buffer, string, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("read audio artifact: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	writer.WriteField("model", model)
	writer.WriteField("response_format", "json")
	writer.WriteField("temperature", "0.0")
	if language != "" {
		writer.WriteField("language", language)
	}
	if stream {
		writer.WriteField("stream", "true")
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &body, writer.FormDataContentType(), nil
}
