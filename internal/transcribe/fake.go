package transcribe

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
)

// FakeClient is a canned-response Client for tests.
type FakeClient struct {
	Text string
	Err  error

	mu    sync.Mutex
	calls []FakeCall
}

type FakeCall struct {
	AudioPath string
	Model     string
	Language  string
}

func (f *FakeClient) CreateTranscription(_ context.Context, audioPath, model, language string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{AudioPath: audioPath, Model: model, Language: language})
	f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}

func (f *FakeClient) CreateSpeech(context.Context, string, string, string) (io.ReadCloser, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *FakeClient) StreamTranscription(context.Context, string, string, string) (<-chan StreamEvent, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	events := make(chan StreamEvent, 1)
	events <- StreamEvent{Data: json.RawMessage(`{"text":"` + f.Text + `"}`)}
	close(events)
	return events, nil
}

func (f *FakeClient) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}
