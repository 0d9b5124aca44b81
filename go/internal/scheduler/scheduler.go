package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scoreboard/go/internal/metrics"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is the countdown granularity
const DefaultInterval = time.Second

// Stop reasons reported to metrics
const (
	ReasonStopped  = "stopped"
	ReasonExpired  = "expired"
	ReasonReplaced = "replaced"
	ReasonShutdown = "shutdown"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// TickFunc runs once per interval for a match. The context is cancelled the
// moment the task is stopped or replaced; implementations must check it after
// acquiring whatever lock guards the state they mutate. Returning false ends
// the task.
type TickFunc func(ctx context.Context) bool

// Scheduler owns at most one periodic task per match ID
type Scheduler struct {
	clock    Clock
	interval time.Duration
	metrics  metrics.Collector

	tasksMu sync.Mutex
	tasks   map[string]*task
	wg      sync.WaitGroup
}

type task struct {
	matchID string
	cancel  context.CancelFunc
	started time.Time
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock overrides the real clock
func WithClock(clock Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithInterval overrides the tick interval
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithMetrics attaches a metrics collector
func WithMetrics(c metrics.Collector) Option {
	return func(s *Scheduler) { s.metrics = metrics.OrNoOp(c) }
}

// New creates a scheduler using the real clock and a one second interval
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:    clockwork.NewRealClock(),
		interval: DefaultInterval,
		metrics:  metrics.NoOpCollector{},
		tasks:    make(map[string]*task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start spawns a periodic task for matchID, atomically replacing any task
// still registered for it. Callers guarantee fn's state says no task should
// be live, so a leftover entry is one that is about to finish on its own.
func (s *Scheduler) Start(matchID string, fn TickFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{matchID: matchID, cancel: cancel, started: s.clock.Now()}

	s.tasksMu.Lock()
	if existing, ok := s.tasks[matchID]; ok {
		existing.cancel()
		s.metrics.RecordTimerStopped(ReasonReplaced)
		log.Debug().Str("match_id", matchID).Msg("replaced existing timer task")
	}
	s.tasks[matchID] = t
	s.wg.Add(1)
	s.tasksMu.Unlock()

	s.metrics.RecordTimerStarted()
	go s.run(ctx, t, fn)

	log.Debug().
		Str("match_id", matchID).
		Dur("interval", s.interval).
		Msg("timer task started")
}

// Stop cancels the task for matchID. It reports whether a task was registered.
// Once Stop returns, the cancelled task's context is done.
func (s *Scheduler) Stop(matchID string) bool {
	return s.remove(matchID, nil, ReasonStopped)
}

// Running reports whether a task is registered for matchID
func (s *Scheduler) Running(matchID string) bool {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	_, ok := s.tasks[matchID]
	return ok
}

// Active returns the number of registered tasks
func (s *Scheduler) Active() int {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	return len(s.tasks)
}

// Shutdown cancels every task and waits for their goroutines to exit.
func (s *Scheduler) Shutdown() {
	s.tasksMu.Lock()
	for matchID, t := range s.tasks {
		t.cancel()
		delete(s.tasks, matchID)
		s.metrics.RecordTimerStopped(ReasonShutdown)
		log.Debug().Str("match_id", matchID).Msg("cancelled timer on shutdown")
	}
	s.tasksMu.Unlock()

	s.wg.Wait()
}

// remove deletes the registered task for matchID. When only is non-nil the
// entry is removed only if it is that task.
func (s *Scheduler) remove(matchID string, only *task, reason string) bool {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()

	t, ok := s.tasks[matchID]
	if !ok || (only != nil && t != only) {
		return false
	}
	t.cancel()
	delete(s.tasks, matchID)
	s.metrics.RecordTimerStopped(reason)

	log.Debug().
		Str("match_id", matchID).
		Str("reason", reason).
		Dur("lifetime", s.clock.Now().Sub(t.started)).
		Msg("timer task removed")
	return true
}

func (s *Scheduler) run(ctx context.Context, t *task, fn TickFunc) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			// both cases may be ready at once; cancellation wins
			if ctx.Err() != nil {
				return
			}
			if !fn(ctx) {
				s.remove(t.matchID, t, ReasonExpired)
				return
			}
		}
	}
}
