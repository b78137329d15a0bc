package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Audio.TargetSampleRate != 16000 {
		t.Fatalf("expected 16000 target rate, got %d", cfg.Audio.TargetSampleRate)
	}
	if cfg.Transcription.DefaultProvider != "openai" {
		t.Fatalf("expected openai default provider, got %s", cfg.Transcription.DefaultProvider)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VOICETYPING_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("VOICETYPING_BUS_USERNAME", "alice")
	t.Setenv("VOICETYPING_BUS_TLS_INSECURE", "true")
	t.Setenv("VOICETYPING_AUDIO_DEVICE_SAMPLE_RATE", "44100")
	t.Setenv("VOICETYPING_RECORDING_OUTPUT_DIR", "/var/lib/voicetyping")
	t.Setenv("VOICETYPING_TRANSCRIPTION_DEFAULT_PROVIDER", "groq")
	t.Setenv("VOICETYPING_TYPING_JOIN_TIMEOUT_MS", "500")
	t.Setenv("VOICETYPING_HISTORY_RETENTION_MODE", "persistent")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" {
		t.Fatal("expected username override")
	}
	if !cfg.Bus.TLSInsecure {
		t.Fatal("expected tls insecure override true")
	}
	if cfg.Audio.DeviceSampleRate != 44100 {
		t.Fatalf("expected device sample rate 44100, got %d", cfg.Audio.DeviceSampleRate)
	}
	if cfg.Recording.OutputDir != "/var/lib/voicetyping" {
		t.Fatal("expected output dir override")
	}
	if cfg.Transcription.DefaultProvider != "groq" {
		t.Fatal("expected provider override")
	}
	if cfg.Typing.JoinTimeout != 500 {
		t.Fatalf("expected join timeout 500, got %d", cfg.Typing.JoinTimeout)
	}
	if cfg.History.RetentionMode != "persistent" {
		t.Fatal("expected retention mode override")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voicetyping.yaml")
	body := `
service_name: vtd-test
audio:
  device_sample_rate: 48000
  target_sample_rate: 24000
transcription:
  default_language: pl
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServiceName != "vtd-test" {
		t.Fatalf("expected service name override, got %s", cfg.ServiceName)
	}
	if cfg.Audio.TargetSampleRate != 24000 {
		t.Fatalf("expected target rate 24000, got %d", cfg.Audio.TargetSampleRate)
	}
	if cfg.Transcription.DefaultLanguage != "pl" {
		t.Fatalf("expected language pl, got %s", cfg.Transcription.DefaultLanguage)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty service name", func(c *Config) { c.ServiceName = "" }},
		{"bad http port", func(c *Config) { c.HTTP.Port = 0 }},
		{"bad device rate", func(c *Config) { c.Audio.DeviceSampleRate = 0 }},
		{"stereo capture", func(c *Config) { c.Audio.Channels = 2 }},
		{"empty output dir", func(c *Config) { c.Recording.OutputDir = "" }},
		{"bad retention mode", func(c *Config) { c.History.RetentionMode = "forever" }},
		{"zero queue size", func(c *Config) { c.Transcription.QueueSize = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
