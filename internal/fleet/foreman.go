package fleet

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/melih-ucgun/integra/internal/config"
	"github.com/melih-ucgun/integra/internal/core"
	"github.com/melih-ucgun/integra/internal/logsink"
)

// State of the Foreman's batch lifecycle.
type State uint8

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateInterrupted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

var (
	errCancelled  = errors.New("batch stopped before the deployment started")
	errTerminated = errors.New("deployment terminated")
)

// Report is the result of one batch. Outcomes follow submission order.
type Report struct {
	ID       string
	State    State
	Started  time.Time
	Finished time.Time
	Outcomes []core.Outcome
}

// Count returns the number of outcomes with status s.
func (r Report) Count(s core.Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// OK reports whether every device succeeded.
func (r Report) OK() bool {
	return r.Count(core.StatusSucceeded) == len(r.Outcomes)
}

// Recorder persists finished batches.
type Recorder interface {
	RecordBatch(ctx context.Context, r Report) error
}

// Options configures a Foreman.
type Options struct {
	PoolSize       int
	ShutdownWindow time.Duration
	Recorder       Recorder
}

// Foreman runs one batch at a time on a pool of PoolSize goroutines. The pool
// lives for exactly one batch.
type Foreman struct {
	worker Deployer
	sink   *logsink.Sink
	opts   Options

	mu    sync.Mutex
	state State
	last  State
	batch *batch
}

// NewForeman creates a Foreman. Zero options take the configuration defaults.
func NewForeman(worker Deployer, sink *logsink.Sink, opts Options) *Foreman {
	if opts.PoolSize < 1 {
		opts.PoolSize = config.DefaultPoolSize
	}
	if opts.ShutdownWindow <= 0 {
		opts.ShutdownWindow = 10 * time.Second
	}
	return &Foreman{worker: worker, sink: sink, opts: opts}
}

type task struct {
	idx     int
	dev     core.Device
	handles *core.Handles
	log     *logsink.Logger
	started time.Time

	once    sync.Once
	done    chan struct{}
	outcome core.Outcome
}

// finish records the first outcome only.
func (t *task) finish(o core.Outcome) {
	t.once.Do(func() {
		t.outcome = o
		close(t.done)
	})
}

type batch struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	stopping bool
	running  map[int]*task
}

func (b *batch) stop() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopping {
		return false
	}
	b.stopping = true
	b.cancel()
	return true
}

func (b *batch) stopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopping
}

func (b *batch) enter(t *task) {
	b.mu.Lock()
	b.running[t.idx] = t
	b.mu.Unlock()
}

func (b *batch) leave(t *task) {
	b.mu.Lock()
	delete(b.running, t.idx)
	b.mu.Unlock()
}

func (b *batch) inFlight() []*task {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*task, 0, len(b.running))
	for _, t := range b.running {
		out = append(out, t)
	}
	return out
}

// State returns StateRunning while a batch runs and StateIdle otherwise.
func (f *Foreman) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Last returns how the previous batch ended, or StateIdle before the first.
func (f *Foreman) Last() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// StartBatch deploys every selected device and blocks until each one has a
// terminal outcome.
func (f *Foreman) StartBatch(ctx context.Context, devices []core.Device) (Report, error) {
	f.mu.Lock()
	if f.state == StateRunning {
		f.mu.Unlock()
		return Report{}, core.ErrBatchRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	b := &batch{cancel: cancel, done: make(chan struct{}), running: make(map[int]*task)}
	f.state = StateRunning
	f.batch = b
	f.mu.Unlock()
	defer cancel()

	var tasks []*task
	for _, dev := range devices {
		if !dev.Selected {
			continue
		}
		tasks = append(tasks, &task{
			idx:     len(tasks),
			dev:     dev,
			handles: &core.Handles{},
			log:     f.sink.Device(dev.Name),
			done:    make(chan struct{}),
		})
	}

	report := Report{ID: uuid.NewString(), Started: time.Now()}
	slog.Debug("batch started", "id", report.ID, "devices", len(tasks), "pool", f.opts.PoolSize)
	f.sink.Emit("", logsink.BatchStartMarker)

	queue := make(chan *task, len(tasks))
	for _, t := range tasks {
		queue <- t
	}
	close(queue)

	var g errgroup.Group
	for i := 0; i < min(f.opts.PoolSize, max(len(tasks), 1)); i++ {
		g.Go(func() error {
			for t := range queue {
				if ctx.Err() != nil {
					now := time.Now()
					t.finish(core.Outcome{Device: t.dev.Name, Status: core.StatusCancelled, Err: errCancelled, Started: now, Finished: now})
					continue
				}
				f.run(ctx, b, t)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Finished = time.Now()
	report.State = StateCompleted
	if b.stopped() {
		report.State = StateInterrupted
	}
	report.Outcomes = make([]core.Outcome, len(tasks))
	for i, t := range tasks {
		report.Outcomes[i] = t.outcome
	}

	f.sink.Emit("", logsink.BatchEndMarker)
	slog.Debug("batch finished", "id", report.ID, "state", report.State,
		"succeeded", report.Count(core.StatusSucceeded), "failed", report.Count(core.StatusFailed))

	if f.opts.Recorder != nil {
		if err := f.opts.Recorder.RecordBatch(context.WithoutCancel(ctx), report); err != nil {
			slog.Warn("failed to record batch", "id", report.ID, "error", err)
		}
	}

	f.mu.Lock()
	f.state = StateIdle
	f.last = report.State
	f.batch = nil
	f.mu.Unlock()
	close(b.done)

	return report, nil
}

// run executes one task. The pool goroutine waits for the task's outcome,
// which StopBatch may supply when the worker does not return in time.
func (f *Foreman) run(ctx context.Context, b *batch, t *task) {
	t.started = time.Now()
	b.enter(t)
	defer b.leave(t)

	tctx := logsink.NewContext(core.WithHandles(ctx, t.handles), t.log)
	go func() {
		o := f.worker.Deploy(tctx, t.dev)
		if b.stopped() && o.Status != core.StatusSucceeded {
			o.Status = core.StatusTerminated
		}
		t.finish(o)
	}()
	<-t.done
}

// StopBatch cancels the running batch. Tasks not yet started end Cancelled.
// Running tasks get ShutdownWindow to observe the cancellation; after that
// their tracked connections and processes are closed and they end
// Terminated. The remote side is left as it is. StopBatch returns once the
// Foreman is idle.
func (f *Foreman) StopBatch() {
	f.mu.Lock()
	b := f.batch
	f.mu.Unlock()
	if b == nil {
		return
	}
	if b.stop() {
		slog.Info("stopping batch", "window", f.opts.ShutdownWindow)
	}

	timer := time.NewTimer(f.opts.ShutdownWindow)
	defer timer.Stop()
	select {
	case <-b.done:
		return
	case <-timer.C:
	}

	for _, t := range b.inFlight() {
		select {
		case <-t.done:
			continue
		default:
		}
		t.log.Println(errTerminated.Error())
		if err := t.handles.CloseAll(); err != nil {
			slog.Debug("closing handles", "device", t.dev.Name, "error", err)
		}
		t.log.Failed()
		t.finish(core.Outcome{
			Device:   t.dev.Name,
			Status:   core.StatusTerminated,
			Err:      errTerminated,
			Started:  t.started,
			Finished: time.Now(),
			Lines:    t.log.Lines(),
		})
	}
	<-b.done
}
