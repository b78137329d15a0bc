package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cxlab/voicetyping/internal/transcribe"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type reportRecorder struct {
	mu      sync.Mutex
	reports []string
}

func (r *reportRecorder) report(category, message string) {
	r.mu.Lock()
	r.reports = append(r.reports, category+": "+message)
	r.mu.Unlock()
}

func (r *reportRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reports...)
}

func collect(t *testing.T, results <-chan *Task, n int) []*Task {
	t.Helper()
	var tasks []*Task
	for i := 0; i < n; i++ {
		select {
		case task := <-results:
			tasks = append(tasks, task)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for task %d of %d", i+1, n)
		}
	}
	return tasks
}

func TestQueueYieldsFailedAndSucceededTasksInOrder(t *testing.T) {
	rep := &reportRecorder{}
	q := NewQueue(context.Background(), 8, time.Second, rep.report, newLogger())
	q.Start()
	defer q.Close()

	q.Enqueue(&Task{AudioPath: "a.flac", Client: &transcribe.FakeClient{Err: &transcribe.APIError{Provider: "openai", StatusCode: 401, Message: "bad key"}}})
	q.Enqueue(&Task{AudioPath: "b.flac", Client: &transcribe.FakeClient{Text: "  hello world \n"}})

	tasks := collect(t, q.Results(), 2)
	if tasks[0].AudioPath != "a.flac" || tasks[1].AudioPath != "b.flac" {
		t.Fatalf("tasks yielded out of order: %s, %s", tasks[0].AudioPath, tasks[1].AudioPath)
	}
	if tasks[0].Text != "" {
		t.Fatalf("failed task carries text %q", tasks[0].Text)
	}
	if tasks[1].Text != "hello world" {
		t.Fatalf("expected trimmed transcript, got %q", tasks[1].Text)
	}

	reports := rep.all()
	if len(reports) != 1 {
		t.Fatalf("expected exactly one report, got %v", reports)
	}
}

func TestQueueBracketsRemoteCall(t *testing.T) {
	var mu sync.Mutex
	var order []string
	q := NewQueue(context.Background(), 1, time.Second, func(string, string) {}, newLogger())
	q.Start()
	defer q.Close()

	q.Enqueue(&Task{
		AudioPath: "a.flac",
		Client:    &transcribe.FakeClient{Text: "ok"},
		OnStart: func() {
			mu.Lock()
			order = append(order, "start")
			mu.Unlock()
		},
		OnFinish: func() {
			mu.Lock()
			order = append(order, "finish")
			mu.Unlock()
		},
	})

	collect(t, q.Results(), 1)
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "start" || order[1] != "finish" {
		t.Fatalf("unexpected bracket order: %v", order)
	}
}

func TestQueueEnqueueAfterCloseDoesNotBlock(t *testing.T) {
	q := NewQueue(context.Background(), 1, time.Second, func(string, string) {}, newLogger())
	q.Start()
	q.Close()

	done := make(chan struct{})
	go func() {
		q.Enqueue(&Task{AudioPath: "late.flac", Client: &transcribe.FakeClient{Text: "ok"}})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked after close")
	}

	if _, ok := <-q.Results(); ok {
		t.Fatal("results channel yielded a task after close")
	}
}

func TestQueueEnqueueDropsWhenFull(t *testing.T) {
	rep := &reportRecorder{}
	q := NewQueue(context.Background(), 1, time.Second, rep.report, newLogger())
	// consumer deliberately not started, so the buffer cannot drain

	q.Enqueue(&Task{AudioPath: "a.flac", Client: &transcribe.FakeClient{Text: "ok"}})
	q.Enqueue(&Task{AudioPath: "b.flac", Client: &transcribe.FakeClient{Text: "ok"}})

	reports := rep.all()
	if len(reports) != 1 || !strings.Contains(reports[0], "b.flac") {
		t.Fatalf("expected one full-queue report for b.flac, got %v", reports)
	}
}
