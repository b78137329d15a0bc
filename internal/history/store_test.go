package history

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/cxlab/voicetyping/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	cfg := config.HistoryConfig{RetentionMode: "ephemeral"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.SaveTranscript(context.Background(), Entry{SessionID: "s1", Text: "hi"}); err != nil {
		t.Fatalf("ephemeral save: %v", err)
	}
	entries, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("ephemeral recent: %v", err)
	}
	if entries != nil {
		t.Fatalf("ephemeral store returned entries: %v", entries)
	}
}

func TestSaveAndRecent(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.HistoryConfig{Path: filepath.Join(tmp, "history.db"), RetentionMode: "session"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	e := Entry{
		SessionID:   "session-1",
		AudioPath:   "/tmp/rec/abc.flac",
		Fingerprint: "abc",
		Provider:    "openai",
		Model:       "whisper-1",
		Language:    "en",
		Text:        "hello world",
	}
	if err := s.SaveTranscript(context.Background(), e); err != nil {
		t.Fatalf("save transcript: %v", err)
	}
	if err := s.SaveTranscript(context.Background(), Entry{SessionID: "session-2", Text: "second"}); err != nil {
		t.Fatalf("save transcript: %v", err)
	}

	entries, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Text != "second" {
		t.Fatalf("expected newest first, got %q", entries[0].Text)
	}
	if entries[1].Fingerprint != "abc" || entries[1].Provider != "openai" {
		t.Fatalf("unexpected entry: %+v", entries[1])
	}
}

func TestPruneByAgeAndCount(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.HistoryConfig{
		Path:          filepath.Join(tmp, "history.db"),
		RetentionMode: "persistent",
		RetentionDays: 7,
		MaxEntries:    2,
	}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	old := time.Now().Add(-30 * 24 * time.Hour).UTC()
	if err := s.SaveTranscript(context.Background(), Entry{SessionID: "old", Text: "stale", CreatedAt: old}); err != nil {
		t.Fatalf("save old: %v", err)
	}
	for i, text := range []string{"one", "two", "three"} {
		e := Entry{SessionID: "s", Text: text, CreatedAt: time.Now().Add(time.Duration(i) * time.Second).UTC()}
		if err := s.SaveTranscript(context.Background(), e); err != nil {
			t.Fatalf("save %q: %v", text, err)
		}
	}

	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	entries, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after prune, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Text == "stale" || e.Text == "one" {
			t.Fatalf("entry %q should have been pruned", e.Text)
		}
	}
}
