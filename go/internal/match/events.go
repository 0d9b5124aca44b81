package match

// EventType represents the type of match event
type EventType string

const (
	EventTypeState             EventType = "state"
	EventTypeScoreChanged      EventType = "score_changed"
	EventTypeMatchScoreChanged EventType = "match_score_changed"
	EventTypeTimerStarted      EventType = "timer_started"
	EventTypeTimerStopped      EventType = "timer_stopped"
	EventTypePeriodChanged     EventType = "period_changed"
	EventTypeSetup             EventType = "setup"
	EventTypeReset             EventType = "reset"
)

// Change describes what a mutation touched, e.g. {"field":"score","team":"home","delta":1}.
// It rides along with one event and is never stored.
type Change map[string]any

// Event is pushed to subscribers after every mutation. State is always the
// full snapshot so any single event yields a consistent view.
type Event struct {
	Type    EventType `json:"type"`
	State   State     `json:"state"`
	Changed Change    `json:"changed"`
	TS      int64     `json:"ts"` // Unix milliseconds at broadcast time
}

// Kind implements broadcast.Message
func (e *Event) Kind() string {
	return string(e.Type)
}
