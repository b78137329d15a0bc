package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cxlab/voicetyping/internal/transcribe"
)

// Task is one transcription job. It is created by the orchestrator at
// stop-recording time, owned exclusively by the queue until consumed, and
// destroyed after the downstream dispatch step.
type Task struct {
	SessionID         string
	AudioPath         string
	Language          string
	Provider          transcribe.Provider
	Model             string
	Client            transcribe.Client
	PersistTranscript bool

	// OnStart and OnFinish bracket the remote call; the orchestrator uses
	// them to drive the transcribing state.
	OnStart  func()
	OnFinish func()

	// Text is the trimmed transcript, empty when transcription failed.
	Text string
}

// Queue feeds transcription tasks to a single consumer goroutine. Every
// enqueued task is eventually yielded on Results, success or failure; a
// failing task never terminates the consumer. Cancelling the parent
// context stops the consumer, dropping any task not yet yielded.
type Queue struct {
	tasks   chan *Task
	results chan *Task
	report  Reporter
	timeout time.Duration
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewQueue(parent context.Context, size int, timeout time.Duration, report Reporter, logger *slog.Logger) *Queue {
	ctx, cancel := context.WithCancel(parent)
	return &Queue{
		tasks:   make(chan *Task, size),
		results: make(chan *Task, size),
		report:  report,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "transcription-queue")),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func (q *Queue) Start() {
	go q.run()
}

// Close cancels the consumer and waits for it to exit. In-flight network
// calls are aborted through context cancellation.
func (q *Queue) Close() {
	q.cancel()
	<-q.done
}

// Enqueue hands a task to the consumer without ever blocking the caller,
// which may hold the orchestrator lock. A task arriving while the buffer
// is full is dropped and reported; a task arriving during shutdown is
// dropped silently.
func (q *Queue) Enqueue(task *Task) {
	select {
	case q.tasks <- task:
	case <-q.ctx.Done():
		q.logger.Warn("task dropped, queue shutting down", slog.String("audio", task.AudioPath))
	default:
		q.report(CategoryTranscription, "transcription queue full, dropping "+task.AudioPath)
		q.logger.Warn("task dropped, queue full", slog.String("audio", task.AudioPath))
	}
}

// Results yields every processed task in FIFO order. The channel closes
// when the consumer exits.
func (q *Queue) Results() <-chan *Task {
	return q.results
}

func (q *Queue) run() {
	defer close(q.done)
	defer close(q.results)
	for {
		select {
		case <-q.ctx.Done():
			q.logger.Info("transcription queue cancelled")
			return
		case task := <-q.tasks:
			q.process(task)
			select {
			case q.results <- task:
			case <-q.ctx.Done():
				// accepted data loss on shutdown
				q.logger.Info("transcription queue cancelled")
				return
			}
		}
	}
}

func (q *Queue) process(task *Task) {
	if task.OnStart != nil {
		task.OnStart()
	}
	defer func() {
		if task.OnFinish != nil {
			task.OnFinish()
		}
	}()

	q.logger.Info("processing audio",
		slog.String("provider", string(task.Provider)),
		slog.String("model", task.Model),
		slog.String("language", task.Language))

	ctx, cancel := context.WithTimeout(q.ctx, q.timeout)
	defer cancel()

	text, err := task.Client.CreateTranscription(ctx, task.AudioPath, task.Model, task.Language)
	if err != nil {
		task.Text = ""
		var apiErr *transcribe.APIError
		if errors.As(err, &apiErr) {
			q.report(CategoryTranscription, apiErr.Error())
		} else {
			q.report(CategoryTranscription, "transcription failed: "+err.Error())
		}
		return
	}
	task.Text = strings.TrimSpace(text)
}
