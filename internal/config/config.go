package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type AudioConfig struct {
	DeviceSampleRate int `yaml:"device_sample_rate"`
	TargetSampleRate int `yaml:"target_sample_rate"`
	Channels         int `yaml:"channels"`
}

type RecordingConfig struct {
	OutputDir string `yaml:"output_dir"`
}

type TranscriptionConfig struct {
	DefaultLanguage string `yaml:"default_language"`
	DefaultProvider string `yaml:"default_provider"`
	DefaultModel    string `yaml:"default_model"`
	RequestTimeout  int    `yaml:"request_timeout_ms"`
	QueueSize       int    `yaml:"queue_size"`
}

type TypingConfig struct {
	Subject     string `yaml:"subject"`
	EmitTimeout int    `yaml:"emit_timeout_ms"`
	QueueSize   int    `yaml:"queue_size"`
	JoinTimeout int    `yaml:"join_timeout_ms"`
}

type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxEntries    int    `yaml:"max_entries"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	ServiceName   string              `yaml:"service_name"`
	Environment   string              `yaml:"environment"`
	HTTP          HTTPConfig          `yaml:"http"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Bus           BusConfig           `yaml:"bus"`
	Audio         AudioConfig         `yaml:"audio"`
	Recording     RecordingConfig     `yaml:"recording"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Typing        TypingConfig        `yaml:"typing"`
	History       HistoryConfig       `yaml:"history"`
}

func Default() Config {
	return Config{
		ServiceName: "voicetypingd",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8089,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Audio: AudioConfig{
			DeviceSampleRate: 48000,
			TargetSampleRate: 16000,
			Channels:         1,
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
		},
		Transcription: TranscriptionConfig{
			DefaultLanguage: "en",
			DefaultProvider: "openai",
			DefaultModel:    "whisper-1",
			RequestTimeout:  45000,
			QueueSize:       32,
		},
		Typing: TypingConfig{
			Subject:     "keyboard.type",
			EmitTimeout: 10000,
			QueueSize:   64,
			JoinTimeout: 3000,
		},
		History: HistoryConfig{
			Path:          "./data/voicetyping-history.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxEntries:    10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "VOICETYPING_SERVICE_NAME")
	overrideString(&cfg.Environment, "VOICETYPING_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VOICETYPING_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VOICETYPING_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "VOICETYPING_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VOICETYPING_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VOICETYPING_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "VOICETYPING_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VOICETYPING_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "VOICETYPING_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VOICETYPING_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VOICETYPING_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VOICETYPING_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VOICETYPING_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VOICETYPING_BUS_CONNECT_TIMEOUT_MS")
	overrideInt(&cfg.Audio.DeviceSampleRate, "VOICETYPING_AUDIO_DEVICE_SAMPLE_RATE")
	overrideInt(&cfg.Audio.TargetSampleRate, "VOICETYPING_AUDIO_TARGET_SAMPLE_RATE")
	overrideInt(&cfg.Audio.Channels, "VOICETYPING_AUDIO_CHANNELS")
	overrideString(&cfg.Recording.OutputDir, "VOICETYPING_RECORDING_OUTPUT_DIR")
	overrideString(&cfg.Transcription.DefaultLanguage, "VOICETYPING_TRANSCRIPTION_DEFAULT_LANGUAGE")
	overrideString(&cfg.Transcription.DefaultProvider, "VOICETYPING_TRANSCRIPTION_DEFAULT_PROVIDER")
	overrideString(&cfg.Transcription.DefaultModel, "VOICETYPING_TRANSCRIPTION_DEFAULT_MODEL")
	overrideInt(&cfg.Transcription.RequestTimeout, "VOICETYPING_TRANSCRIPTION_REQUEST_TIMEOUT_MS")
	overrideInt(&cfg.Transcription.QueueSize, "VOICETYPING_TRANSCRIPTION_QUEUE_SIZE")
	overrideString(&cfg.Typing.Subject, "VOICETYPING_TYPING_SUBJECT")
	overrideInt(&cfg.Typing.EmitTimeout, "VOICETYPING_TYPING_EMIT_TIMEOUT_MS")
	overrideInt(&cfg.Typing.QueueSize, "VOICETYPING_TYPING_QUEUE_SIZE")
	overrideInt(&cfg.Typing.JoinTimeout, "VOICETYPING_TYPING_JOIN_TIMEOUT_MS")
	overrideString(&cfg.History.Path, "VOICETYPING_HISTORY_PATH")
	overrideString(&cfg.History.RetentionMode, "VOICETYPING_HISTORY_RETENTION_MODE")
	overrideInt(&cfg.History.RetentionDays, "VOICETYPING_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxEntries, "VOICETYPING_HISTORY_MAX_ENTRIES")
	overrideBool(&cfg.History.VacuumOnStart, "VOICETYPING_HISTORY_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Audio.DeviceSampleRate <= 0 {
		return errors.New("audio.device_sample_rate must be positive")
	}
	if cfg.Audio.TargetSampleRate <= 0 {
		return errors.New("audio.target_sample_rate must be positive")
	}
	if cfg.Audio.Channels != 1 {
		return errors.New("audio.channels must be 1 (mono capture)")
	}
	if cfg.Recording.OutputDir == "" {
		return errors.New("recording.output_dir must not be empty")
	}
	if cfg.Transcription.RequestTimeout <= 0 {
		return errors.New("transcription.request_timeout_ms must be positive")
	}
	if cfg.Transcription.QueueSize <= 0 {
		return errors.New("transcription.queue_size must be >= 1")
	}
	if cfg.Typing.Subject == "" {
		return errors.New("typing.subject must not be empty")
	}
	if cfg.Typing.QueueSize <= 0 {
		return errors.New("typing.queue_size must be >= 1")
	}
	if cfg.Typing.JoinTimeout <= 0 {
		return errors.New("typing.join_timeout_ms must be positive")
	}
	if cfg.History.Path == "" {
		return errors.New("history.path must not be empty")
	}
	switch cfg.History.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("history.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	return nil
}
