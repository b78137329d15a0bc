// Package runtime assembles the daemon: telemetry, the bus, the capture
// backend and the pipeline services, in dependency order, and tears them
// down in reverse when the context is cancelled.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cxlab/voicetyping/internal/bus"
	"github.com/cxlab/voicetyping/internal/capture"
	"github.com/cxlab/voicetyping/internal/config"
	"github.com/cxlab/voicetyping/internal/history"
	"github.com/cxlab/voicetyping/internal/natsserver"
	"github.com/cxlab/voicetyping/internal/pipeline"
	"github.com/cxlab/voicetyping/internal/service"
	"github.com/cxlab/voicetyping/internal/state"
	"github.com/cxlab/voicetyping/internal/transcribe"
	"github.com/cxlab/voicetyping/internal/typing"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start runs the daemon until ctx is cancelled.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	busClient, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer busClient.Close()

	store, err := history.Open(ctx, r.cfg.History, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open transcript history: %w", err)
	}
	defer store.Close()

	captureCtx, err := capture.NewContext()
	if err != nil {
		return fmt.Errorf("failed to initialize audio backend: %w", err)
	}
	defer captureCtx.Close()

	recorder := capture.NewRecorder(captureCtx,
		uint32(r.cfg.Audio.DeviceSampleRate),
		uint32(r.cfg.Audio.TargetSampleRate),
		uint32(r.cfg.Audio.Channels),
		r.logger)

	signals := service.NewPublisher(busClient, r.logger)
	report := pipeline.Reporter(signals.ErrorOccurred)

	queue := pipeline.NewQueue(ctx,
		r.cfg.Transcription.QueueSize,
		time.Duration(r.cfg.Transcription.RequestTimeout)*time.Millisecond,
		report, r.logger)
	queue.Start()
	defer queue.Close()

	injector := typing.NewNATSInjector(busClient.Conn(), r.cfg.Typing.Subject)
	typist := typing.NewService(injector, r.cfg.Typing, report, r.logger)
	typist.Start()
	defer typist.Close()

	machine := state.NewMachine(r.logger)
	orch := pipeline.NewOrchestrator(machine, recorder, transcribe.NewRegistry(),
		queue, typist, store, signals, report, r.cfg.Recording.OutputDir, r.logger)
	orch.Start(ctx)
	defer orch.Wait()
	// Joining the dispatch loop requires the queue's context to be
	// cancelled first; this must outrank the Wait above in defer order
	// so a failed startup below does not hang on it.
	defer cancel()

	rpc := service.NewService(r.cfg.Transcription, busClient, orch, store, r.logger)
	if err := rpc.Start(); err != nil {
		return fmt.Errorf("failed to start rpc surface: %w", err)
	}
	defer rpc.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.readyHandler(busClient, rpc))
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("voice typing daemon started", slog.String("addr", addr))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("daemon stopping")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) readyHandler(busClient *bus.Client, rpc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if r.ready.Load() && busClient.Healthy() && rpc.Healthy() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	}
}
