package roster

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxNameLength bounds tournament and player names
const MaxNameLength = 80

// Player is a roster entry that can be put on the scoreboard
type Player struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Club *string   `json:"club,omitempty"`
}

// Tournament groups the players available to the control panel.
// At most one tournament is active at a time.
type Tournament struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Players   []Player  `json:"players"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// FindPlayer returns the player with id, if present
func (t *Tournament) FindPlayer(id uuid.UUID) (Player, bool) {
	for _, p := range t.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// CreateTournamentRequest is the body of POST /api/tournaments
type CreateTournamentRequest struct {
	Name    string             `json:"name"`
	Players []AddPlayerRequest `json:"players,omitempty"`
}

// AddPlayerRequest is the body of POST /api/tournaments/{id}/players
type AddPlayerRequest struct {
	Name string  `json:"name"`
	Club *string `json:"club,omitempty"`
}

func (r *CreateTournamentRequest) normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	if err := validateName("name", r.Name); err != nil {
		return err
	}
	for i := range r.Players {
		if err := r.Players[i].normalize(); err != nil {
			return err
		}
	}
	return nil
}

func (r *AddPlayerRequest) normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	if err := validateName("player name", r.Name); err != nil {
		return err
	}
	if r.Club != nil {
		club := strings.TrimSpace(*r.Club)
		if club == "" {
			r.Club = nil
		} else {
			r.Club = &club
		}
	}
	return nil
}

func validateName(field, name string) error {
	if name == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	if len([]rune(name)) > MaxNameLength {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", MaxNameLength)}
	}
	return nil
}
