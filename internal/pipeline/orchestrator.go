package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cxlab/voicetyping/internal/capture"
	"github.com/cxlab/voicetyping/internal/history"
	"github.com/cxlab/voicetyping/internal/state"
	"github.com/cxlab/voicetyping/internal/transcribe"
)

// Status codes returned from the guarded lifecycle operations. Guard
// failures are statuses, never errors; callers branch on them.
const (
	StatusRecordingStarted = "recording_started"
	StatusAlreadyRecording = "already_recording"
	StatusRecordingFailed  = "recording_failed"
	StatusRecordingStopped = "recording_stopped"
	StatusNotRecording     = "not_recording"
	StatusStopFailed       = "stop_failed"
)

const timestampLayout = "2006-01-02_15-04-05"

// Signals is the outward-facing push surface the orchestrator drives.
type Signals interface {
	RecordingStateChanged(isRecording bool)
	ErrorOccurred(category, message string)
}

// TextSink receives finished transcripts for injection.
type TextSink interface {
	Enqueue(text string)
}

// ClientResolver hands out provider clients; *transcribe.Registry in
// production, a stub in tests.
type ClientResolver interface {
	Get(provider transcribe.Provider, apiKey string) (transcribe.Client, error)
}

// Orchestrator owns the recording lifecycle: it drives the state machine
// around the I/O boundaries, enqueues transcription tasks and dispatches
// finished transcripts downstream. All lifecycle entry points serialize
// on one mutex, which is what lets the state machine go lock-free.
type Orchestrator struct {
	machine       *state.Machine
	recorder      *capture.Recorder
	clients       ClientResolver
	queue         *Queue
	typist        TextSink
	store         *history.Store
	report        Reporter
	logger        *slog.Logger
	defaultOutDir string

	mu        sync.Mutex
	recording *capture.Recording
	outputDir string
	persist   bool
	sessionID string

	wg sync.WaitGroup
}

func NewOrchestrator(
	machine *state.Machine,
	recorder *capture.Recorder,
	clients ClientResolver,
	queue *Queue,
	typist TextSink,
	store *history.Store,
	signals Signals,
	report Reporter,
	defaultOutDir string,
	logger *slog.Logger,
) *Orchestrator {
	o := &Orchestrator{
		machine:       machine,
		recorder:      recorder,
		clients:       clients,
		queue:         queue,
		typist:        typist,
		store:         store,
		report:        report,
		defaultOutDir: defaultOutDir,
		logger:        logger.With(slog.String("component", "orchestrator")),
	}
	// The table only ever moves between Idle and a working state, so
	// notifying on entry into a working state yields one signal per
	// phase: recording reports true, the transform and transcribe blips
	// report false.
	machine.AddListener(func(_, new state.State) {
		if new == state.Idle {
			return
		}
		signals.RecordingStateChanged(new == state.Recording)
	})
	return o
}

// Start launches the downstream dispatch loop.
func (o *Orchestrator) Start(ctx context.Context) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for task := range o.queue.Results() {
			o.dispatch(ctx, task)
		}
	}()
}

// Wait blocks until the dispatch loop has drained, which happens once the
// queue's result channel closes.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// StartRecording opens the capture device and moves to the recording
// state. At most one recording is open at a time.
func (o *Orchestrator) StartRecording(deviceName, outputDir string, persistTranscript bool) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.machine.IsRecording() {
		o.logger.Warn("recording already in progress")
		return StatusAlreadyRecording
	}

	rec, err := o.recorder.CreateRecording(deviceName)
	if err != nil {
		o.report(CategoryRecording, "failed to start recording: "+err.Error())
		return StatusRecordingFailed
	}

	if _, err := o.machine.Transition(state.StartRecording); err != nil {
		rec.Cleanup()
		o.logger.Error("state machine rejected start", slog.String("error", err.Error()))
		return StatusRecordingFailed
	}

	if outputDir == "" {
		outputDir = o.defaultOutDir
	}
	o.recording = rec
	o.outputDir = outputDir
	o.persist = persistTranscript
	o.sessionID = uuid.NewString()

	o.logger.Info("started voice recording",
		slog.String("device", deviceName),
		slog.String("session", o.sessionID))
	return StatusRecordingStarted
}

// StopRecording stops the capture, persists the artifact under a
// content-addressed path and enqueues a transcription task. The handle is
// released on every exit path.
func (o *Orchestrator) StopRecording(language, providerName, model, apiKey string) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.machine.IsRecording() {
		o.logger.Warn("no recording in progress")
		return StatusNotRecording
	}

	rec := o.recording
	o.recording = nil
	defer rec.Cleanup()
	// A failed save would otherwise leave the machine stuck in the
	// transforming state; close the bracket before releasing the handle.
	defer o.closeTransformBracket()

	rec.Stop()
	if _, err := o.machine.Transition(state.StopRecording); err != nil {
		o.logger.Error("state machine rejected stop", slog.String("error", err.Error()))
		return StatusStopFailed
	}

	if _, err := o.machine.Transition(state.TransformStart); err != nil {
		o.logger.Error("state machine rejected transform start", slog.String("error", err.Error()))
		return StatusStopFailed
	}

	fingerprint := rec.Fingerprint()
	target := filepath.Join(o.outputDir, time.Now().Format(timestampLayout), fingerprint)
	saved, err := rec.Save(target)
	if err != nil {
		o.report(CategoryRecording, "failed to save audio: "+err.Error())
		return StatusStopFailed
	}
	if _, err := o.machine.Transition(state.TransformStop); err != nil {
		o.logger.Error("state machine rejected transform stop", slog.String("error", err.Error()))
		return StatusStopFailed
	}

	provider, err := transcribe.ParseProvider(providerName)
	if err != nil {
		o.report(CategoryTranscription, err.Error())
		return StatusStopFailed
	}
	if !transcribe.ValidModel(provider, model) {
		o.report(CategoryTranscription, "unknown model "+model+" for provider "+providerName)
		return StatusStopFailed
	}
	client, err := o.clients.Get(provider, apiKey)
	if err != nil {
		o.report(CategoryTranscription, err.Error())
		return StatusStopFailed
	}

	o.queue.Enqueue(&Task{
		SessionID:         o.sessionID,
		AudioPath:         saved,
		Language:          language,
		Provider:          provider,
		Model:             model,
		Client:            client,
		PersistTranscript: o.persist,
		OnStart:           o.transcribeStart,
		OnFinish:          o.transcribeStop,
	})

	o.logger.Info("stopped voice recording",
		slog.String("audio", saved),
		slog.String("fingerprint", fingerprint))
	return StatusRecordingStopped
}

// closeTransformBracket fires TransformStop if an aborted save left the
// machine in the transforming state. Runs under o.mu via defer.
func (o *Orchestrator) closeTransformBracket() {
	if o.machine.Current() != state.Transforming {
		return
	}
	if _, err := o.machine.Transition(state.TransformStop); err != nil {
		o.logger.Error("failed to recover transform state", slog.String("error", err.Error()))
	}
}

// transcribeStart and transcribeStop run on the queue consumer goroutine.
func (o *Orchestrator) transcribeStart() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := o.machine.Transition(state.TranscribeStart); err != nil {
		o.logger.Error("state machine rejected transcribe start", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) transcribeStop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := o.machine.Transition(state.TranscribeStop); err != nil {
		o.logger.Error("state machine rejected transcribe stop", slog.String("error", err.Error()))
	}
}

// dispatch runs the downstream step for every yielded task, success and
// failure alike, so artifact cleanup always happens.
func (o *Orchestrator) dispatch(ctx context.Context, task *Task) {
	if task.Text == "" {
		// the queue already reported the provider failure
		o.logger.Error("transcription produced no text", slog.String("audio", task.AudioPath))
		if !task.PersistTranscript {
			o.cleanupArtifact(task.AudioPath)
		}
		return
	}

	if task.PersistTranscript {
		sum := md5.Sum([]byte(task.Text))
		path := filepath.Join(filepath.Dir(task.AudioPath), hex.EncodeToString(sum[:])+".txt")
		if err := os.WriteFile(path, []byte(task.Text), 0o644); err != nil {
			o.logger.Error("failed to persist transcript", slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	o.typist.Enqueue(task.Text)

	if err := o.store.SaveTranscript(ctx, history.Entry{
		SessionID:   task.SessionID,
		AudioPath:   task.AudioPath,
		Fingerprint: strings.TrimSuffix(filepath.Base(task.AudioPath), filepath.Ext(task.AudioPath)),
		Provider:    string(task.Provider),
		Model:       task.Model,
		Language:    task.Language,
		Text:        task.Text,
	}); err != nil {
		o.logger.Warn("failed to record transcript history", slog.String("error", err.Error()))
	}

	if !task.PersistTranscript {
		o.cleanupArtifact(task.AudioPath)
	}
}

// cleanupArtifact removes the audio file and, when it became empty, its
// timestamp directory. Failures are logged, not escalated.
func (o *Orchestrator) cleanupArtifact(audioPath string) {
	if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
		o.logger.Warn("failed to remove audio artifact", slog.String("path", audioPath), slog.String("error", err.Error()))
	}
	if err := os.Remove(filepath.Dir(audioPath)); err != nil && !os.IsNotExist(err) {
		o.logger.Debug("artifact directory not removed", slog.String("dir", filepath.Dir(audioPath)), slog.String("error", err.Error()))
	}
}

// RecordingState reports whether a recording is in progress.
func (o *Orchestrator) RecordingState() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.machine.IsRecording()
}

// Providers lists the supported transcription providers.
func (o *Orchestrator) Providers() []string {
	return transcribe.Providers()
}

// ProviderModels lists the models of one provider.
func (o *Orchestrator) ProviderModels(providerName string) ([]string, error) {
	provider, err := transcribe.ParseProvider(providerName)
	if err != nil {
		return nil, err
	}
	return transcribe.Models(provider)
}

// AudioSources queries the capture backend for input device names.
func (o *Orchestrator) AudioSources() ([]string, error) {
	return o.recorder.ListDevices()
}
