package match

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scoreboard/go/internal/broadcast"
	"github.com/mcdev12/scoreboard/go/internal/metrics"
	"github.com/mcdev12/scoreboard/go/internal/scheduler"
	"github.com/rs/zerolog/log"
)

// Broadcaster defines what the match app needs from the fan-out hub
type Broadcaster interface {
	Publish(matchID string, msg broadcast.Message) int
	Attach(matchID string, sub broadcast.Subscriber, initial broadcast.Message) error
	Unsubscribe(matchID string, sub broadcast.Subscriber) bool
}

// Timers defines what the match app needs from the countdown scheduler
type Timers interface {
	Start(matchID string, fn scheduler.TickFunc)
	Stop(matchID string) bool
}

// PlayerDirectory resolves roster players to display names
type PlayerDirectory interface {
	LookupPlayer(ctx context.Context, playerID string) (string, error)
}

// Relay mirrors events to an external consumer. It must not block.
type Relay interface {
	Relay(matchID string, msg broadcast.Message)
}

// App implements the mutation surface over the match store
type App struct {
	store   *Store
	hub     Broadcaster
	timers  Timers
	players PlayerDirectory
	relays  []Relay
	clock   clockwork.Clock
	metrics metrics.Collector
}

// Option configures an App
type Option func(*App)

// WithPlayerDirectory enables player-name assignment
func WithPlayerDirectory(d PlayerDirectory) Option {
	return func(a *App) { a.players = d }
}

// WithRelay adds an event mirror
func WithRelay(r Relay) Option {
	return func(a *App) { a.relays = append(a.relays, r) }
}

// WithClock overrides the clock used for event timestamps
func WithClock(c clockwork.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithMetrics attaches a metrics collector
func WithMetrics(c metrics.Collector) Option {
	return func(a *App) { a.metrics = metrics.OrNoOp(c) }
}

// NewApp creates a new match app
func NewApp(store *Store, hub Broadcaster, timers Timers, opts ...Option) *App {
	a := &App{
		store:   store,
		hub:     hub,
		timers:  timers,
		clock:   clockwork.NewRealClock(),
		metrics: metrics.NoOpCollector{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// outcome is what a mutation wants broadcast once it commits
type outcome struct {
	event   EventType
	changed Change
	mutated bool
}

func emitted(event EventType, changed Change) outcome {
	return outcome{event: event, changed: changed, mutated: true}
}

// apply runs fn under the match lock and publishes its event before
// releasing the lock, so per-match broadcast order equals mutation order.
func (a *App) apply(operation, matchID string, fn func(st *State) (outcome, error)) (State, error) {
	start := time.Now()

	var out outcome
	st, err := a.store.Mutate(matchID, func(st *State) (bool, error) {
		o, err := fn(st)
		if err != nil {
			return false, err
		}
		out = o
		return o.mutated, nil
	}, func(st State, _ bool) {
		if out.event != "" {
			a.emit(matchID, out.event, st, out.changed)
		}
	})

	a.metrics.RecordMutation(operation, err == nil, time.Since(start))
	if err != nil {
		return st, fmt.Errorf("%s match %s: %w", operation, matchID, err)
	}
	return st, nil
}

func (a *App) emit(matchID string, eventType EventType, st State, changed Change) {
	event := &Event{
		Type:    eventType,
		State:   st,
		Changed: changed,
		TS:      a.clock.Now().UnixMilli(),
	}
	delivered := a.hub.Publish(matchID, event)
	for _, r := range a.relays {
		r.Relay(matchID, event)
	}

	log.Debug().
		Str("match_id", matchID).
		Str("event_type", string(eventType)).
		Int64("rev", st.Rev).
		Int("subscribers", delivered).
		Msg("match event emitted")
}

// State returns the current snapshot, creating the match if needed
func (a *App) State(ctx context.Context, matchID string) State {
	return a.store.GetOrCreate(matchID)
}

// Setup overwrites names, period and timer, and stops any running countdown
func (a *App) Setup(ctx context.Context, matchID string, req SetupRequest) (State, error) {
	if err := req.Validate(); err != nil {
		return State{}, err
	}

	return a.apply("setup", matchID, func(st *State) (outcome, error) {
		a.timers.Stop(matchID)

		if req.HomeName != nil {
			st.HomeName = *req.HomeName
		} else if st.HomeName == "" {
			st.HomeName = DefaultHomeName
		}
		if req.AwayName != nil {
			st.AwayName = *req.AwayName
		} else if st.AwayName == "" {
			st.AwayName = DefaultAwayName
		}

		st.Period = MinPeriod
		if req.Period != nil {
			st.Period = *req.Period
		}
		st.TimerSecondsRemaining = 0
		if req.TimerSeconds != nil {
			st.TimerSecondsRemaining = *req.TimerSeconds
		}
		st.TimerRunning = false

		return emitted(EventTypeSetup, Change{"field": "setup"}), nil
	})
}

// AdjustScore adds delta to a team's game score, flooring at zero
func (a *App) AdjustScore(ctx context.Context, matchID string, req ScoreRequest) (State, error) {
	team, delta, err := req.Parse()
	if err != nil {
		return State{}, err
	}

	return a.apply("score", matchID, func(st *State) (outcome, error) {
		if team == TeamHome {
			st.HomeScore = clampAdd(st.HomeScore, delta)
		} else {
			st.AwayScore = clampAdd(st.AwayScore, delta)
		}
		return emitted(EventTypeScoreChanged, Change{"field": "score", "team": string(team), "delta": delta}), nil
	})
}

// AdjustMatchScore adds delta to a team's games-won tally, flooring at zero
func (a *App) AdjustMatchScore(ctx context.Context, matchID string, req ScoreRequest) (State, error) {
	team, delta, err := req.Parse()
	if err != nil {
		return State{}, err
	}

	return a.apply("match_score", matchID, func(st *State) (outcome, error) {
		if team == TeamHome {
			st.HomeMatchScore = clampAdd(st.HomeMatchScore, delta)
		} else {
			st.AwayMatchScore = clampAdd(st.AwayMatchScore, delta)
		}
		return emitted(EventTypeMatchScoreChanged, Change{"field": "match_score", "team": string(team), "delta": delta}), nil
	})
}

// StartTimer begins the countdown. Starting a running timer only re-broadcasts the state.
func (a *App) StartTimer(ctx context.Context, matchID string) (State, error) {
	return a.apply("timer_start", matchID, func(st *State) (outcome, error) {
		if st.TimerRunning {
			return outcome{event: EventTypeState}, nil
		}
		st.TimerRunning = true
		// the task cannot tick before this critical section ends
		a.timers.Start(matchID, a.tick(matchID))
		return emitted(EventTypeTimerStarted, nil), nil
	})
}

// StopTimer cancels the countdown without a final tick. Stopping an idle timer is a no-op.
func (a *App) StopTimer(ctx context.Context, matchID string) (State, error) {
	return a.apply("timer_stop", matchID, func(st *State) (outcome, error) {
		if !st.TimerRunning {
			return outcome{}, nil
		}
		a.timers.Stop(matchID)
		st.TimerRunning = false
		return emitted(EventTypeTimerStopped, nil), nil
	})
}

// SetTimer overwrites the remaining seconds and stops the countdown
func (a *App) SetTimer(ctx context.Context, matchID string, req TimerSetRequest) (State, error) {
	if err := req.Validate(); err != nil {
		return State{}, err
	}

	return a.apply("timer_set", matchID, func(st *State) (outcome, error) {
		a.timers.Stop(matchID)
		st.TimerSecondsRemaining = *req.Seconds
		st.TimerRunning = false
		return emitted(EventTypeState, Change{"field": "timer", "seconds": *req.Seconds}), nil
	})
}

// SetPeriod overwrites the period number
func (a *App) SetPeriod(ctx context.Context, matchID string, req PeriodSetRequest) (State, error) {
	if err := req.Validate(); err != nil {
		return State{}, err
	}

	return a.apply("period_set", matchID, func(st *State) (outcome, error) {
		st.Period = *req.Period
		return emitted(EventTypePeriodChanged, Change{"field": "period", "period": *req.Period}), nil
	})
}

// Reset zeroes scores, returns to period 1 and clears the timer. Names are kept.
func (a *App) Reset(ctx context.Context, matchID string) (State, error) {
	return a.apply("reset", matchID, func(st *State) (outcome, error) {
		a.timers.Stop(matchID)
		st.HomeScore = 0
		st.AwayScore = 0
		st.HomeMatchScore = 0
		st.AwayMatchScore = 0
		st.Period = MinPeriod
		st.TimerSecondsRemaining = 0
		st.TimerRunning = false
		return emitted(EventTypeReset, Change{"field": "reset"}), nil
	})
}

// AssignPlayer puts the name of an active-roster player on one side
func (a *App) AssignPlayer(ctx context.Context, matchID string, req AssignPlayerRequest) (State, error) {
	team, err := req.Parse()
	if err != nil {
		return State{}, err
	}
	if a.players == nil {
		return State{}, &NotFoundError{Resource: "roster", ID: req.PlayerID}
	}

	// resolve outside the critical section; the directory may do I/O
	name, err := a.players.LookupPlayer(ctx, req.PlayerID)
	if err != nil {
		if isNotFound(err) {
			return State{}, &NotFoundError{Resource: "player", ID: req.PlayerID, Err: err}
		}
		return State{}, fmt.Errorf("lookup player %s: %w", req.PlayerID, err)
	}

	return a.apply("assign_player", matchID, func(st *State) (outcome, error) {
		if team == TeamHome {
			st.HomeName = name
		} else {
			st.AwayName = name
		}
		return emitted(EventTypeSetup, Change{"field": "player", "team": string(team), "playerId": req.PlayerID}), nil
	})
}

// Subscribe sends sub the current state and registers it for later events.
// Both happen inside the match's critical section, so sub sees nothing older
// than its snapshot and misses nothing newer.
func (a *App) Subscribe(ctx context.Context, matchID string, sub broadcast.Subscriber) error {
	return a.store.View(matchID, func(st State) error {
		initial := &Event{
			Type:  EventTypeState,
			State: st,
			TS:    a.clock.Now().UnixMilli(),
		}
		if err := a.hub.Attach(matchID, sub, initial); err != nil {
			return fmt.Errorf("subscribe to match %s: %w", matchID, err)
		}
		return nil
	})
}

// Unsubscribe removes sub from the match's subscriber set
func (a *App) Unsubscribe(matchID string, sub broadcast.Subscriber) {
	a.hub.Unsubscribe(matchID, sub)
}

// Stats summarizes the store for diagnostics
func (a *App) Stats() map[string]interface{} {
	return map[string]interface{}{
		"matches": a.store.Len(),
	}
}

// tick returns the per-second countdown step for matchID. A tick whose task
// was cancelled while it waited for the lock does nothing.
func (a *App) tick(matchID string) scheduler.TickFunc {
	return func(ctx context.Context) bool {
		keep := true
		_, err := a.apply("timer_tick", matchID, func(st *State) (outcome, error) {
			if ctx.Err() != nil || !st.TimerRunning {
				keep = false
				return outcome{}, nil
			}
			if st.TimerSecondsRemaining > 0 {
				st.TimerSecondsRemaining--
				return emitted(EventTypeState, nil), nil
			}
			st.TimerRunning = false
			keep = false
			return emitted(EventTypeTimerStopped, nil), nil
		})
		if err != nil {
			log.Error().Err(err).Str("match_id", matchID).Msg("timer tick failed")
		}
		return keep
	}
}
