package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultInboxSize is the number of jobs that may queue before Submit blocks
const DefaultInboxSize = 1024

// ErrStopped is returned when work is submitted to a stopped loop
var ErrStopped = errors.New("session loop stopped")

// Job is a unit of work run with exclusive access to session state
type Job func(ctx context.Context)

// Scheduler queues jobs for the state-owning goroutine
type Scheduler interface {
	Submit(name string, job Job) bool
}

type task struct {
	name string
	job  Job
	done chan struct{}
}

// Loop is the single goroutine that owns all room, presence and ledger
// state. Jobs run one at a time, each to completion.
type Loop struct {
	inbox  chan task
	done   chan struct{}
	tracer trace.Tracer
	logger *slog.Logger
}

// NewLoop creates a Loop. A non-positive inboxSize selects DefaultInboxSize.
func NewLoop(inboxSize int, logger *slog.Logger) *Loop {
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	return &Loop{
		inbox:  make(chan task, inboxSize),
		done:   make(chan struct{}),
		tracer: otel.Tracer("github.com/wjz20050714-stack/JIFEN/internal/services/session"),
		logger: logger.With(slog.String("component", "session-loop")),
	}
}

// Ensure Loop implements Scheduler
var _ Scheduler = (*Loop)(nil)

// Run processes jobs until ctx is cancelled. Jobs still queued at that
// point are dropped.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("session loop started")
	defer close(l.done)
	for {
		select {
		case t := <-l.inbox:
			l.execute(ctx, t)
		case <-ctx.Done():
			l.logger.Info("session loop stopped", slog.Int("dropped_jobs", len(l.inbox)))
			return
		}
	}
}

// Done is closed once Run has returned
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Submit queues a job without waiting for it. It reports false if the loop
// has stopped.
func (l *Loop) Submit(name string, job Job) bool {
	select {
	case l.inbox <- task{name: name, job: job}:
		return true
	case <-l.done:
		return false
	}
}

// Do queues a job and waits for it to finish
func (l *Loop) Do(ctx context.Context, name string, job Job) error {
	t := task{name: name, job: job, done: make(chan struct{})}

	select {
	case l.inbox <- t:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-t.done:
		return nil
	case <-l.done:
		select {
		case <-t.done:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) execute(ctx context.Context, t task) {
	ctx, span := l.tracer.Start(ctx, "session."+t.name)
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("session job panicked",
				slog.String("job", t.name),
				slog.Any("error", r),
				slog.String("stack", string(debug.Stack())),
			)
			span.SetStatus(codes.Error, fmt.Sprint(r))
		}
		if t.done != nil {
			close(t.done)
		}
	}()
	t.job(ctx)
}
