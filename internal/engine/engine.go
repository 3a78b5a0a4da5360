// Package engine runs scheduled jobs: a poll loop computes due times, a
// single executor drains the run queue, and one shared gate serializes every
// agent execution (scheduled or interactive) process-wide.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jobbot/internal/agent"
	"jobbot/internal/history"
	"jobbot/internal/jobs"
	"jobbot/pkg/logx"
)

// Deliverer posts a job's output to its announce channel.
type Deliverer interface {
	Deliver(ctx context.Context, channelID, text string) error
}

type Config struct {
	SchedulerEnabled bool
	PollInterval     time.Duration
	AgentTimeout     time.Duration
	RetryBase        time.Duration
	RetryMaxDelay    time.Duration
}

type Engine struct {
	cfg     Config
	store   *jobs.Store
	hist    *history.Store
	runtime agent.Runtime
	deliver Deliverer
	gate    *Gate
	log     logx.Logger

	now func() time.Time

	mu       sync.Mutex
	due      map[string]time.Time
	inflight map[string]bool

	queue  chan *jobs.Job
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(cfg Config, store *jobs.Store, hist *history.Store, runtime agent.Runtime, deliver Deliverer, log logx.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    store,
		hist:     hist,
		runtime:  runtime,
		deliver:  deliver,
		gate:     NewGate(),
		log:      log.With(logx.String("component", "engine")),
		now:      time.Now,
		due:      make(map[string]time.Time),
		inflight: make(map[string]bool),
		queue:    make(chan *jobs.Job, 16),
	}
}

// Start launches the executor and, when scheduling is enabled, the poll
// loop. Both stop when ctx is done; Stop waits for them.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runExecutor(ctx)
	}()

	if !e.cfg.SchedulerEnabled {
		e.log.Info("scheduler disabled; only manual runs will execute")
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runPoll(ctx)
	}()
}

func (e *Engine) Stop(ctx context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// InvalidateDue drops every cached due time. The jobs-dir watcher calls this
// on any change; next tick reseeds from the files.
func (e *Engine) InvalidateDue() {
	e.mu.Lock()
	e.due = make(map[string]time.Time)
	e.mu.Unlock()
}

func (e *Engine) runPoll(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick reloads the definitions and enqueues whatever is due, preserving
// file-name order among simultaneously due jobs. A job seen for the first
// time gets its next occurrence strictly after now; it never fires for a
// slot that passed while nobody was watching.
func (e *Engine) tick(ctx context.Context) {
	all, _ := e.store.LoadAll(ctx)
	now := e.now()

	var ready []*jobs.Job
	e.mu.Lock()
	active := make(map[string]bool, len(all))
	for _, j := range all {
		if !j.Valid() || !j.Enabled {
			continue
		}
		active[j.Name] = true
		loc, err := j.Location()
		if err != nil {
			continue
		}
		due, ok := e.due[j.Name]
		if !ok {
			due = j.Rule.Next(now, loc)
			e.due[j.Name] = due
			e.log.Debug("job scheduled",
				logx.String("job", j.Name),
				logx.Time("due", due))
			continue
		}
		if now.Before(due) || e.inflight[j.Name] {
			continue
		}
		e.inflight[j.Name] = true
		ready = append(ready, j)
	}
	for name := range e.due {
		if !active[name] {
			delete(e.due, name)
		}
	}
	e.mu.Unlock()

	for _, j := range ready {
		select {
		case e.queue <- j:
		default:
			// queue full; retry on the next tick
			e.mu.Lock()
			e.inflight[j.Name] = false
			e.mu.Unlock()
			e.log.Warn("run queue full", logx.String("job", j.Name))
		}
	}
}

func (e *Engine) runExecutor(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-e.queue:
			e.runJob(ctx, j)
		}
	}
}

// RunNow queues an immediate execution regardless of the due time. The run
// still goes through the shared gate like any other.
func (e *Engine) RunNow(ctx context.Context, name string) error {
	j, err := e.store.Get(ctx, name)
	if err != nil {
		return err
	}
	if !j.Valid() {
		return &jobs.ValidationError{Reasons: j.InvalidReasons}
	}

	e.mu.Lock()
	if e.inflight[j.Name] {
		e.mu.Unlock()
		return fmt.Errorf("job %s is already queued or running", name)
	}
	e.inflight[j.Name] = true
	e.mu.Unlock()

	select {
	case e.queue <- j:
		return nil
	default:
		e.mu.Lock()
		e.inflight[j.Name] = false
		e.mu.Unlock()
		return fmt.Errorf("run queue is full")
	}
}

// InteractiveTurn is one conversational request's claimed place in line at
// the gate.
type InteractiveTurn struct {
	e      *Engine
	ticket *Ticket
}

// ClaimInteractive reserves a conversational request's turn at the gate
// without blocking. Claiming from the dispatch path pins arrival order
// before any goroutine hop; Execute then runs (and waits) off that path.
func (e *Engine) ClaimInteractive() *InteractiveTurn {
	return &InteractiveTurn{e: e, ticket: e.gate.Enqueue()}
}

// Queued reports whether the gate was busy when the turn was claimed.
func (t *InteractiveTurn) Queued() bool {
	return !t.ticket.Acquired()
}

// Execute waits for the turn, runs the request through the agent runtime,
// and releases the gate.
func (t *InteractiveTurn) Execute(ctx context.Context, prompt string) (agent.Result, error) {
	e := t.e
	if err := t.ticket.Wait(ctx); err != nil {
		return agent.Result{}, err
	}
	defer e.gate.Release()

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.AgentTimeout)
	defer cancel()
	return e.runtime.Execute(runCtx, agent.Request{Prompt: prompt})
}

// ExecuteInteractive serves a conversational request through the same gate
// as scheduled work. When the gate is busy, onBusy fires once and the
// request then waits its turn in arrival order.
func (e *Engine) ExecuteInteractive(ctx context.Context, prompt string, onBusy func()) (agent.Result, error) {
	turn := e.ClaimInteractive()
	if turn.Queued() && onBusy != nil {
		onBusy()
	}
	return turn.Execute(ctx, prompt)
}

// runJob performs the attempt loop for one scheduled or manual run. Each
// attempt takes the gate on its own, so the gate is free while the run
// sleeps out a retry backoff. Every attempt leaves a history record.
func (e *Engine) runJob(ctx context.Context, j *jobs.Job) {
	spec := j.ExecutionSpec(e.cfg.AgentTimeout)
	maxAttempts := j.MaxRetries + 1
	endedAt := e.now()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := e.backoffDelay(j.RetryBackoff, attempt-1)
			if delay > 0 {
				e.log.Info("retrying job",
					logx.String("job", j.Name),
					logx.Int("attempt", attempt),
					logx.Duration("delay", delay))
				select {
				case <-ctx.Done():
					e.completed(j, endedAt)
					return
				case <-time.After(delay):
				}
			}
		}

		if err := e.gate.Acquire(ctx); err != nil {
			e.completed(j, endedAt)
			return
		}
		started := e.now()
		runCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
		res, err := e.runtime.Execute(runCtx, agent.Request{
			JobName:    spec.JobName,
			Prompt:     spec.Prompt,
			Isolated:   spec.Mode == jobs.ModeIsolated,
			Skills:     spec.Skills,
			MCPServers: spec.MCPServers,
			MCPTools:   spec.MCPTools,
		})
		timedOut := runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
		cancel()
		e.gate.Release()
		endedAt = e.now()

		rec := history.Record{
			JobName:   j.Name,
			StartedAt: started,
			EndedAt:   endedAt,
			Attempt:   attempt,
		}
		if err == nil {
			rec.Outcome = history.OutcomeSuccess
			e.append(ctx, rec)
			e.log.Info("job succeeded",
				logx.String("job", j.Name),
				logx.Int("attempt", attempt),
				logx.Duration("took", endedAt.Sub(started)))
			if spec.Deliver {
				e.announce(ctx, j, res.Output)
			}
			e.completed(j, endedAt)
			return
		}

		if timedOut {
			rec.Outcome = history.OutcomeTimeout
		} else {
			rec.Outcome = history.OutcomeFailure
		}
		rec.Error = err.Error()
		e.append(ctx, rec)
		e.log.Warn("job attempt failed",
			logx.String("job", j.Name),
			logx.Int("attempt", attempt),
			logx.String("outcome", string(rec.Outcome)),
			logx.Err(err))

		if ctx.Err() != nil {
			break
		}
	}
	e.completed(j, endedAt)
}

// completed advances the due time from the completion instant and clears the
// inflight mark. The next occurrence is strictly after the run finished, so
// a long run never double-fires its own slot.
func (e *Engine) completed(j *jobs.Job, endedAt time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight[j.Name] = false
	loc, err := j.Location()
	if err != nil {
		delete(e.due, j.Name)
		return
	}
	if _, tracked := e.due[j.Name]; tracked {
		e.due[j.Name] = j.Rule.Next(endedAt, loc)
	}
}

func (e *Engine) append(ctx context.Context, rec history.Record) {
	if e.hist == nil {
		return
	}
	if _, err := e.hist.Append(ctx, rec); err != nil {
		e.log.Error("history append failed", logx.String("job", rec.JobName), logx.Err(err))
	}
}

// announce delivers the output; delivery problems are logged, never retried,
// and never fail the run.
func (e *Engine) announce(ctx context.Context, j *jobs.Job, output string) {
	channel := j.ResolveChannel()
	if channel == "" {
		e.log.Warn("no resolvable announce channel", logx.String("job", j.Name))
		return
	}
	if e.deliver == nil {
		return
	}
	if err := e.deliver.Deliver(ctx, channel, output); err != nil {
		e.log.Error("announce failed",
			logx.String("job", j.Name),
			logx.String("channel", channel),
			logx.Err(err))
	}
}

// backoffDelay returns the pause after the nth failed attempt: zero for
// backoff none, base·2^(n-1) capped at the configured maximum for
// exponential.
func (e *Engine) backoffDelay(backoff jobs.Backoff, failed int) time.Duration {
	if backoff != jobs.BackoffExponential {
		return 0
	}
	delay := e.cfg.RetryBase
	for i := 1; i < failed; i++ {
		delay *= 2
		if delay >= e.cfg.RetryMaxDelay {
			return e.cfg.RetryMaxDelay
		}
	}
	if delay > e.cfg.RetryMaxDelay {
		return e.cfg.RetryMaxDelay
	}
	return delay
}
