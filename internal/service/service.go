// Package service exposes the voice typing pipeline over the bus: a
// request/reply RPC surface for clients (hotkey daemons, tray applets)
// and broadcast signals for anyone observing recording state.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/cxlab/voicetyping/internal/bus"
	"github.com/cxlab/voicetyping/internal/config"
	"github.com/cxlab/voicetyping/internal/history"
	"github.com/cxlab/voicetyping/internal/pipeline"
	"github.com/cxlab/voicetyping/internal/protocol"
	"github.com/cxlab/voicetyping/internal/transcribe"
)

// Publisher pushes signals onto the bus. It satisfies the pipeline's
// outward surface; a publish failure is logged and otherwise swallowed,
// signals are best effort.
type Publisher struct {
	bus    *bus.Client
	logger *slog.Logger
}

func NewPublisher(busClient *bus.Client, logger *slog.Logger) *Publisher {
	return &Publisher{bus: busClient, logger: logger.With(slog.String("component", "signals"))}
}

func (p *Publisher) RecordingStateChanged(isRecording bool) {
	p.publish(protocol.SubjectRecordingStateChanged, protocol.RecordingStateChanged{
		IsRecording: isRecording,
		Timestamp:   time.Now().UTC(),
	})
}

func (p *Publisher) ErrorOccurred(category, message string) {
	p.logger.Error("pipeline error", slog.String("category", category), slog.String("message", message))
	p.publish(protocol.SubjectErrorOccurred, protocol.ErrorOccurred{
		Category:  category,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func (p *Publisher) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to encode signal", slog.String("subject", subject), slog.String("error", err.Error()))
		return
	}
	if err := p.bus.Conn().Publish(subject, data); err != nil {
		p.logger.Error("failed to publish signal", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}

// Service answers the RPC subjects. Handlers run on the NATS delivery
// goroutine; the orchestrator's own locking makes that safe.
type Service struct {
	cfg    config.TranscriptionConfig
	bus    *bus.Client
	orch   *pipeline.Orchestrator
	store  *history.Store
	logger *slog.Logger
	subs   []*nats.Subscription
	ready  atomic.Bool
}

func NewService(cfg config.TranscriptionConfig, busClient *bus.Client, orch *pipeline.Orchestrator, store *history.Store, logger *slog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		bus:    busClient,
		orch:   orch,
		store:  store,
		logger: logger.With(slog.String("component", "rpc")),
	}
}

func (s *Service) Start() error {
	handlers := map[string]nats.MsgHandler{
		protocol.SubjectStartRecording: s.handleStartRecording,
		protocol.SubjectStopRecording:  s.handleStopRecording,
		protocol.SubjectRecordingState: s.handleRecordingState,
		protocol.SubjectProviders:      s.handleProviders,
		protocol.SubjectProviderModels: s.handleProviderModels,
		protocol.SubjectAudioSources:   s.handleAudioSources,
		protocol.SubjectHistory:        s.handleHistory,
	}
	for subject, handler := range handlers {
		sub, err := s.bus.Conn().Subscribe(subject, handler)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}
	s.ready.Store(true)
	s.logger.Info("rpc surface ready", slog.Int("subjects", len(handlers)))
	return nil
}

func (s *Service) Close() {
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.ready.Store(false)
}

func (s *Service) Healthy() bool {
	return s.ready.Load() && s.bus.Healthy()
}

func (s *Service) handleStartRecording(msg *nats.Msg) {
	var req protocol.StartRecordingRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			s.logger.Warn("malformed start_recording request", slog.String("error", err.Error()))
			s.respond(msg, protocol.StatusResponse{Status: pipeline.StatusRecordingFailed})
			return
		}
	}
	status := s.orch.StartRecording(req.DeviceName, req.TranscriptOutDir, req.PersistTranscript)
	s.respond(msg, protocol.StatusResponse{Status: status})
}

func (s *Service) handleStopRecording(msg *nats.Msg) {
	var req protocol.StopRecordingRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			s.logger.Warn("malformed stop_recording request", slog.String("error", err.Error()))
			s.respond(msg, protocol.StatusResponse{Status: pipeline.StatusStopFailed})
			return
		}
	}
	if req.Language == "" {
		req.Language = s.cfg.DefaultLanguage
	}
	if req.Provider == "" {
		req.Provider = s.cfg.DefaultProvider
	}
	if req.Model == "" {
		req.Model = s.cfg.DefaultModel
	}
	if req.APIKey == "" {
		req.APIKey = apiKeyFromEnv(req.Provider)
	}
	status := s.orch.StopRecording(req.Language, req.Provider, req.Model, req.APIKey)
	s.respond(msg, protocol.StatusResponse{Status: status})
}

func (s *Service) handleRecordingState(msg *nats.Msg) {
	s.respond(msg, protocol.RecordingStateResponse{IsRecording: s.orch.RecordingState()})
}

func (s *Service) handleProviders(msg *nats.Msg) {
	s.respond(msg, protocol.ListResponse{Items: s.orch.Providers()})
}

func (s *Service) handleProviderModels(msg *nats.Msg) {
	var req protocol.ProviderModelsRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			s.respond(msg, protocol.ListResponse{Error: "malformed request: " + err.Error()})
			return
		}
	}
	models, err := s.orch.ProviderModels(req.Provider)
	if err != nil {
		s.respond(msg, protocol.ListResponse{Error: err.Error()})
		return
	}
	s.respond(msg, protocol.ListResponse{Items: models})
}

func (s *Service) handleAudioSources(msg *nats.Msg) {
	sources, err := s.orch.AudioSources()
	if err != nil {
		s.respond(msg, protocol.ListResponse{Error: err.Error()})
		return
	}
	s.respond(msg, protocol.ListResponse{Items: sources})
}

func (s *Service) handleHistory(msg *nats.Msg) {
	var req protocol.HistoryRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			s.respond(msg, protocol.HistoryResponse{Error: "malformed request: " + err.Error()})
			return
		}
	}
	entries, err := s.store.Recent(context.Background(), req.Limit)
	if err != nil {
		s.respond(msg, protocol.HistoryResponse{Error: err.Error()})
		return
	}
	resp := protocol.HistoryResponse{}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, protocol.HistoryEntry{
			SessionID: e.SessionID,
			AudioPath: e.AudioPath,
			Provider:  e.Provider,
			Model:     e.Model,
			Language:  e.Language,
			Text:      e.Text,
			CreatedAt: e.CreatedAt,
		})
	}
	s.respond(msg, resp)
}

func (s *Service) respond(msg *nats.Msg, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode reply", slog.String("subject", msg.Subject), slog.String("error", err.Error()))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to send reply", slog.String("subject", msg.Subject), slog.String("error", err.Error()))
	}
}

func apiKeyFromEnv(providerName string) string {
	switch transcribe.Provider(providerName) {
	case transcribe.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case transcribe.ProviderGroq:
		return os.Getenv("GROQ_API_KEY")
	default:
		return ""
	}
}
