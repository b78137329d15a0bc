package typing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cxlab/voicetyping/internal/config"
	"github.com/cxlab/voicetyping/internal/pipeline"
)

// Service serializes text injection on one worker goroutine so a slow or
// stuck keyboard service never blocks the transcription pipeline.
type Service struct {
	injector    Injector
	report      pipeline.Reporter
	logger      *slog.Logger
	emitTimeout time.Duration
	joinTimeout time.Duration

	texts chan string
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewService(injector Injector, cfg config.TypingConfig, report pipeline.Reporter, logger *slog.Logger) *Service {
	return &Service{
		injector:    injector,
		report:      report,
		logger:      logger.With(slog.String("component", "typing")),
		emitTimeout: time.Duration(cfg.EmitTimeout) * time.Millisecond,
		joinTimeout: time.Duration(cfg.JoinTimeout) * time.Millisecond,
		texts:       make(chan string, cfg.QueueSize),
		done:        make(chan struct{}),
	}
}

func (s *Service) Start() {
	go s.run()
}

func (s *Service) run() {
	defer close(s.done)
	for text := range s.texts {
		ctx, cancel := context.WithTimeout(context.Background(), s.emitTimeout)
		err := s.injector.Type(ctx, text)
		cancel()
		if err != nil {
			s.report(pipeline.CategoryInjection, "failed to inject text: "+err.Error())
			continue
		}
		s.logger.Debug("injected transcript", slog.Int("chars", len(text)))
	}
}

// Enqueue hands a transcript to the worker. Texts arriving after Close,
// or while the buffer is full, are dropped with a warning.
func (s *Service) Enqueue(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn("dropping transcript, typing service closed")
		return
	}
	select {
	case s.texts <- text:
	default:
		s.logger.Warn("dropping transcript, typing queue full")
	}
}

// Close stops accepting text and waits for the worker to drain, up to the
// configured join timeout.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.texts)
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(s.joinTimeout):
		s.logger.Warn("typing worker did not drain before timeout")
	}
}
