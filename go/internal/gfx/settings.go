package gfx

import (
	"encoding/base64"
	"sync"

	"github.com/mcdev12/scoreboard/go/internal/broadcast"
	"github.com/rs/zerolog/log"
)

// MessageType is the push message kind carrying overlay settings
const MessageType = "gfxSettings"

// Settings is the overlay designer's free-form document
type Settings map[string]any

// SettingsMessage is pushed to a match's subscribers whenever its settings change.
// It carries no revision; overlays apply the latest one they see.
type SettingsMessage struct {
	Type     string   `json:"type"`
	Settings Settings `json:"settings"`
}

func (m *SettingsMessage) Kind() string { return m.Type }

// Publisher fans messages out to a match's subscribers
type Publisher interface {
	Publish(matchID string, msg broadcast.Message) int
}

// Store holds overlay settings per match in memory. Stored documents are never
// mutated in place; every change swaps in a new top-level map.
type Store struct {
	mu       sync.Mutex
	settings map[string]Settings
	pub      Publisher
}

// NewStore creates an empty settings store publishing through pub
func NewStore(pub Publisher) *Store {
	return &Store{
		settings: make(map[string]Settings),
		pub:      pub,
	}
}

// Get returns the settings for matchID, or an empty document
func (s *Store) Get(matchID string) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.settings[matchID]; ok {
		return st
	}
	return Settings{}
}

// Replace overwrites the settings for matchID and pushes them
func (s *Store) Replace(matchID string, settings Settings) Settings {
	if settings == nil {
		settings = Settings{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[matchID] = settings
	s.publishLocked(matchID, settings)
	return settings
}

// SetBackgroundImage stores image as a data URL on the container background and pushes the result
func (s *Store) SetBackgroundImage(matchID, mimeType string, image []byte) Settings {
	if mimeType == "" {
		mimeType = "image/png"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)

	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneMap(s.settings[matchID])
	backgrounds := cloneMap(asMap(next["backgrounds"]))
	container := cloneMap(asMap(backgrounds["container"]))

	container["type"] = "image"
	container["imageUrl"] = dataURL
	container["imageSize"] = "cover"
	container["imageOpacity"] = 100
	container["imagePositionX"] = "center"
	container["imagePositionY"] = "center"

	backgrounds["container"] = container
	next["backgrounds"] = backgrounds

	s.settings[matchID] = next
	s.publishLocked(matchID, next)

	log.Info().
		Str("match_id", matchID).
		Str("mime_type", mimeType).
		Int("bytes", len(image)).
		Msg("background image stored")
	return next
}

func (s *Store) publishLocked(matchID string, settings Settings) {
	if s.pub == nil {
		return
	}
	delivered := s.pub.Publish(matchID, &SettingsMessage{Type: MessageType, Settings: settings})
	log.Debug().
		Str("match_id", matchID).
		Int("subscribers", delivered).
		Msg("gfx settings pushed")
}

func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case Settings:
		return m
	default:
		return nil
	}
}

func cloneMap[M ~map[string]any](m M) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
