package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mcdev12/scoreboard/go/internal/metrics"
	"github.com/rs/zerolog/log"
)

// ErrSubscriberClosed is returned by subscribers that can no longer accept messages
var ErrSubscriberClosed = errors.New("subscriber closed")

// ErrSendBufferFull is returned by subscribers whose outbound queue is saturated
var ErrSendBufferFull = errors.New("subscriber send buffer full")

// Subscriber is a push channel bound to a single match.
// Send must not block; a returned error removes the subscriber from the hub.
type Subscriber interface {
	ID() string
	Send(payload []byte) error
}

// Message is anything the hub can fan out. Kind labels logs and metrics.
type Message interface {
	Kind() string
}

// Hub maintains live subscriber sets per match and fans out serialized messages
type Hub struct {
	// Subscriber sets organized by match ID
	subscribers map[string]map[Subscriber]struct{}
	mu          sync.RWMutex

	metrics metrics.Collector
}

// Stats is a point-in-time view of hub membership
type Stats struct {
	TotalSubscribers int            `json:"total_subscribers"`
	ActiveMatches    int            `json:"active_matches"`
	PerMatch         map[string]int `json:"match_subscribers"`
}

// NewHub creates an empty hub. A nil collector disables metrics.
func NewHub(collector metrics.Collector) *Hub {
	return &Hub{
		subscribers: make(map[string]map[Subscriber]struct{}),
		metrics:     metrics.OrNoOp(collector),
	}
}

// Subscribe adds sub to the match's set. Subscribing twice is a no-op.
func (h *Hub) Subscribe(matchID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subscribers[matchID]
	if !ok {
		set = make(map[Subscriber]struct{})
		h.subscribers[matchID] = set
	}
	if _, exists := set[sub]; exists {
		return
	}
	set[sub] = struct{}{}
	h.metrics.RecordSubscribers(1)

	log.Debug().
		Str("connection_id", sub.ID()).
		Str("match_id", matchID).
		Int("subscribers", len(set)).
		Msg("subscriber registered")
}

// Attach delivers initial to sub and then subscribes it. Callers hold the
// match's critical section so no broadcast can slip in between the two.
func (h *Hub) Attach(matchID string, sub Subscriber, initial Message) error {
	payload, err := json.Marshal(initial)
	if err != nil {
		return fmt.Errorf("marshal initial message: %w", err)
	}
	if err := sub.Send(payload); err != nil {
		return fmt.Errorf("send initial message: %w", err)
	}
	h.Subscribe(matchID, sub)
	return nil
}

// Unsubscribe removes sub from the match's set and reports whether it was present
func (h *Hub) Unsubscribe(matchID string, sub Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removeLocked(matchID, sub)
}

func (h *Hub) removeLocked(matchID string, sub Subscriber) bool {
	set, ok := h.subscribers[matchID]
	if !ok {
		return false
	}
	if _, exists := set[sub]; !exists {
		return false
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subscribers, matchID)
	}
	h.metrics.RecordSubscribers(-1)
	return true
}

// Publish serializes msg once and offers it to every subscriber of the match.
// Subscribers whose Send fails are removed after the pass. It returns the
// number of successful deliveries.
func (h *Hub) Publish(matchID string, msg Message) int {
	targets := h.snapshot(matchID)
	if len(targets) == 0 {
		h.metrics.RecordEventPublished(msg.Kind(), 0)
		return 0
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("match_id", matchID).Msg("failed to marshal message for broadcast")
		return 0
	}

	delivered := 0
	failed := make(map[Subscriber]error)
	for _, sub := range targets {
		if err := sub.Send(payload); err != nil {
			log.Warn().
				Err(err).
				Str("connection_id", sub.ID()).
				Str("match_id", matchID).
				Msg("send failed, dropping subscriber")
			failed[sub] = err
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for sub, err := range failed {
			if h.removeLocked(matchID, sub) {
				h.metrics.RecordSubscriberDropped(dropReason(err))
			}
		}
		h.mu.Unlock()
	}

	h.metrics.RecordEventPublished(msg.Kind(), delivered)

	log.Debug().
		Str("event_type", msg.Kind()).
		Str("match_id", matchID).
		Int("delivered", delivered).
		Int("dropped", len(failed)).
		Msg("message broadcasted")

	return delivered
}

// snapshot copies the subscriber set so sends never run while the map is locked
func (h *Hub) snapshot(matchID string) []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.subscribers[matchID]
	if len(set) == 0 {
		return nil
	}
	out := make([]Subscriber, 0, len(set))
	for sub := range set {
		out = append(out, sub)
	}
	return out
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrSendBufferFull):
		return "buffer_full"
	case errors.Is(err, ErrSubscriberClosed):
		return "closed"
	default:
		return "send_failed"
	}
}

// Count returns the number of subscribers for a match
func (h *Hub) Count(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[matchID])
}

// Stats returns membership statistics across all matches
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{
		ActiveMatches: len(h.subscribers),
		PerMatch:      make(map[string]int, len(h.subscribers)),
	}
	for matchID, set := range h.subscribers {
		stats.TotalSubscribers += len(set)
		stats.PerMatch[matchID] = len(set)
	}
	return stats
}
