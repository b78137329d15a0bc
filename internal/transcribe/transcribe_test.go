package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestProviderTables(t *testing.T) {
	providers := Providers()
	if len(providers) != 2 || providers[0] != "openai" || providers[1] != "groq" {
		t.Fatalf("unexpected providers: %v", providers)
	}
	for _, p := range providers {
		provider, err := ParseProvider(p)
		if err != nil {
			t.Fatalf("parse %q: %v", p, err)
		}
		models, err := Models(provider)
		if err != nil {
			t.Fatalf("models for %q: %v", p, err)
		}
		if len(models) == 0 {
			t.Fatalf("provider %q has no models", p)
		}
		for _, m := range models {
			if !ValidModel(provider, m) {
				t.Fatalf("model %q rejected for its own provider %q", m, p)
			}
		}
	}
	if _, err := ParseProvider("deepgram"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if ValidModel(ProviderOpenAI, "whisper-large-v3") {
		t.Fatal("groq model accepted for openai")
	}
}

func TestRegistryCachesPerProvider(t *testing.T) {
	r := NewRegistry()
	c1, err := r.Get(ProviderOpenAI, "key-a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	c2, err := r.Get(ProviderOpenAI, "key-a")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if c1 != c2 {
		t.Fatal("expected cached client for same provider and key")
	}
	c3, err := r.Get(ProviderOpenAI, "key-b")
	if err != nil {
		t.Fatalf("get with new key: %v", err)
	}
	if c3 == c1 {
		t.Fatal("key change must replace cached client")
	}
	if _, err := r.Get(ProviderGroq, ""); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.flac")
	if err := os.WriteFile(path, []byte("fLaC-fake-bytes"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestOpenAICreateTranscription(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("language = %q", got)
		}
		w.Write([]byte(`{"text":" hello world \n"}`))
	}))
	defer srv.Close()

	c := NewOpenAI("sk-test")
	c.baseURL = srv.URL
	text, err := c.CreateTranscription(context.Background(), writeArtifact(t), "whisper-1", "en")
	if err != nil {
		t.Fatalf("create transcription: %v", err)
	}
	if text != " hello world \n" {
		t.Fatalf("unexpected text %q", text)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
}

func TestGroqTranscriptionAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	c := NewGroq("bad-key")
	c.baseURL = srv.URL
	_, err := c.CreateTranscription(context.Background(), writeArtifact(t), "whisper-large-v3", "en")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Provider != ProviderGroq || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}

func TestGroqUnsupportedCapabilities(t *testing.T) {
	c := NewGroq("key")
	if _, err := c.CreateSpeech(context.Background(), "hi", "tts-1", "alloy"); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
	if _, err := c.StreamTranscription(context.Background(), "x", "m", "en"); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
}

func TestOpenAIStreamTranscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"delta\":\"hel\"}\n\n"))
		w.Write([]byte("data: {\"delta\":\"lo\"}\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	c := NewOpenAI("sk-test")
	c.baseURL = srv.URL
	events, err := c.StreamTranscription(context.Background(), writeArtifact(t), "gpt-4o-transcribe", "en")
	if err != nil {
		t.Fatalf("stream transcription: %v", err)
	}
	var count int
	for ev := range events {
		if ev.Err != nil {
			t.Fatalf("stream event error: %v", ev.Err)
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 events, got %d", count)
	}
}
