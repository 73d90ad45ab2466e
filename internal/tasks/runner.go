// Package tasks runs the bot's background work (photo listings, reels and
// image edits) on a bounded pool of workers, detached from the webhook
// request that started it.
//
// Every submitted task is recorded in an in-memory registry with its kind,
// status, last phase reached and failure reason, so operators can see what
// happened to a seller's photo through /api/tasks. The registry keeps the
// most recent MaxTasks entries.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/metrics"
)

// MaxTasks is the number of tasks kept in the registry.
const MaxTasks = 200

// Task kinds.
const (
	KindPhoto     = "photo"
	KindVideo     = "video"
	KindEditImage = "edit-image"
	KindRepublish = "republish"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

var (
	// ErrQueueFull is returned by Submit when every worker is busy and the
	// queue has no room. The task is recorded as failed.
	ErrQueueFull = errors.New("tasks: queue is full")

	// ErrClosed is returned by Submit after Shutdown.
	ErrClosed = errors.New("tasks: runner is shut down")
)

// Func is the body of a task. It reports pipeline progress through p.
type Func func(ctx context.Context, p *Progress) error

// Spec describes a task to run.
type Spec struct {
	Kind   string
	Sender string
	Run    Func
}

// Task is a registry entry. Values returned by Get and List are copies.
type Task struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Sender     string    `json:"sender"`
	Status     Status    `json:"status"`
	Phase      string    `json:"phase,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Progress lets a running task record the phase it has reached.
type Progress struct {
	r  *Runner
	id string
}

// SetPhase records phase as the task's current pipeline state.
func (p *Progress) SetPhase(phase string) {
	if p == nil || p.r == nil {
		return
	}
	p.r.update(p.id, func(t *Task) { t.Phase = phase })
	log.Debug().Str("taskId", p.id).Str("phase", phase).Msg("Task phase")
}

// ID returns the task id, for log fields.
func (p *Progress) ID() string {
	if p == nil {
		return ""
	}
	return p.id
}

type entry struct {
	id   string
	spec Spec
}

// Runner executes tasks on a fixed worker pool.
type Runner struct {
	queue   chan entry
	timeout time.Duration
	inline  bool
	wg      sync.WaitGroup

	mu     sync.Mutex
	tasks  map[string]*Task
	order  []string // registry ids, oldest first
	closed bool
}

// NewRunner starts workers goroutines reading from a queue of queueSize.
// Each task gets its own context bounded by timeout. workers < 1 selects
// inline mode, where Submit runs the task before returning; Lambda uses it
// because the environment is frozen once the response is sent.
func NewRunner(workers, queueSize int, timeout time.Duration) *Runner {
	r := &Runner{
		timeout: timeout,
		tasks:   make(map[string]*Task),
	}
	if workers < 1 {
		r.inline = true
		return r
	}
	r.queue = make(chan entry, max(queueSize, 0))
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for e := range r.queue {
				metrics.QueueDepth.Set(float64(len(r.queue)))
				r.run(e)
			}
		}()
	}
	log.Debug().Int("workers", workers).Int("queue", queueSize).Dur("timeout", timeout).Msg("Task runner started")
	return r
}

// Submit records the task and queues it. The returned id is valid even when
// err is ErrQueueFull.
func (r *Runner) Submit(spec Spec) (string, error) {
	id := GenerateID(IDPrefix)
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrClosed
	}
	r.register(&Task{ID: id, Kind: spec.Kind, Sender: spec.Sender, Status: StatusQueued, CreatedAt: time.Now()})

	if r.inline {
		r.mu.Unlock()
		r.run(entry{id: id, spec: spec})
		return id, nil
	}

	select {
	case r.queue <- entry{id: id, spec: spec}:
		metrics.QueueDepth.Set(float64(len(r.queue)))
		r.mu.Unlock()
		log.Debug().Str("taskId", id).Str("kind", spec.Kind).Msg("Task queued")
		return id, nil
	default:
		r.mu.Unlock()
	}

	r.finish(id, spec.Kind, time.Now(), ErrQueueFull)
	return id, ErrQueueFull
}

// Get returns a copy of the task with id.
func (r *Runner) Get(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// List returns the registry, newest first.
func (r *Runner) List() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Task, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, *r.tasks[r.order[i]])
	}
	return out
}

// Shutdown stops accepting tasks and waits for queued and running tasks to
// finish, or for ctx to end.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		if r.queue != nil {
			close(r.queue)
		}
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tasks still running at shutdown: %w", ctx.Err())
	}
}

func (r *Runner) run(e entry) {
	start := time.Now()
	r.update(e.id, func(t *Task) {
		t.Status = StatusRunning
		t.StartedAt = start
	})

	ctx := context.Background()
	cancel := context.CancelFunc(func() {})
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	err := r.call(ctx, e)
	r.finish(e.id, e.spec.Kind, start, err)
}

// call runs the task body, turning a panic into an error.
func (r *Runner) call(ctx context.Context, e entry) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("taskId", e.id).
				Str("kind", e.spec.Kind).
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Msg("Task panicked")
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	if e.spec.Run == nil {
		return fmt.Errorf("task has no body")
	}
	err = e.spec.Run(ctx, &Progress{r: r, id: e.id})
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return err
}

func (r *Runner) finish(id, kind string, start time.Time, err error) {
	status := StatusDone
	if err != nil {
		status = StatusFailed
	}
	var phase string
	r.update(id, func(t *Task) {
		t.FinishedAt = time.Now()
		t.Status = status
		if err != nil {
			t.Error = err.Error()
		}
		phase = t.Phase
	})
	d := time.Since(start)
	metrics.RecordTask(kind, string(status), phase, d)

	if err != nil {
		log.Error().Err(err).Str("taskId", id).Str("kind", kind).Str("phase", phase).Dur("duration", d).Msg("Task failed")
		return
	}
	log.Info().Str("taskId", id).Str("kind", kind).Dur("duration", d).Msg("Task finished")
}

// register adds t and evicts the oldest entries past MaxTasks. Caller holds mu.
func (r *Runner) register(t *Task) {
	r.tasks[t.ID] = t
	r.order = append(r.order, t.ID)
	for len(r.order) > MaxTasks {
		delete(r.tasks, r.order[0])
		r.order = r.order[1:]
	}
}

func (r *Runner) update(id string, fn func(*Task)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		fn(t)
	}
}
