package match

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Default display names and limits
const (
	DefaultHomeName = "Home"
	DefaultAwayName = "Away"

	MaxNameLength = 50
	MinPeriod     = 1
	MaxPeriod     = 20
)

// State is the authoritative scoreboard for one match
type State struct {
	MatchID               string `json:"match_id"`
	HomeName              string `json:"homeName"`
	AwayName              string `json:"awayName"`
	HomeScore             int    `json:"homeScore"`
	AwayScore             int    `json:"awayScore"`
	HomeMatchScore        int    `json:"homeMatchScore"`
	AwayMatchScore        int    `json:"awayMatchScore"`
	Period                int    `json:"period"`
	TimerSecondsRemaining int    `json:"timerSecondsRemaining"`
	TimerRunning          bool   `json:"timerRunning"`
	Rev                   int64  `json:"rev"`
}

// NewState returns the factory defaults for a match
func NewState(matchID string) State {
	return State{
		MatchID:  matchID,
		HomeName: DefaultHomeName,
		AwayName: DefaultAwayName,
		Period:   MinPeriod,
	}
}

// Team identifies a side of the scoreboard
type Team string

const (
	TeamHome Team = "home"
	TeamAway Team = "away"
)

// ParseTeam accepts "home" or "away" in any case
func ParseTeam(s string) (Team, error) {
	switch Team(strings.ToLower(strings.TrimSpace(s))) {
	case TeamHome:
		return TeamHome, nil
	case TeamAway:
		return TeamAway, nil
	default:
		return "", &ValidationError{Field: "team", Message: "must be 'home' or 'away'"}
	}
}

// clampAdd adds delta to a non-negative v, floored at 0 and saturating at MaxInt
func clampAdd(v, delta int) int {
	if delta > 0 && v > math.MaxInt-delta {
		return math.MaxInt
	}
	if n := v + delta; n > 0 {
		return n
	}
	return 0
}

// SetupRequest represents a request to configure a match.
// Absent names keep the current ones; absent period and timer reset to 1 and 0.
type SetupRequest struct {
	HomeName     *string `json:"homeName,omitempty"`
	AwayName     *string `json:"awayName,omitempty"`
	Period       *int    `json:"period,omitempty"`
	TimerSeconds *int    `json:"timerSeconds,omitempty"`
}

func (r SetupRequest) Validate() error {
	if err := validateName("homeName", r.HomeName); err != nil {
		return err
	}
	if err := validateName("awayName", r.AwayName); err != nil {
		return err
	}
	if r.Period != nil {
		if err := validatePeriod(*r.Period); err != nil {
			return err
		}
	}
	if r.TimerSeconds != nil && *r.TimerSeconds < 0 {
		return &ValidationError{Field: "timerSeconds", Message: "must be >= 0"}
	}
	return nil
}

func validateName(field string, name *string) error {
	if name == nil {
		return nil
	}
	n := utf8.RuneCountInString(*name)
	if n < 1 || n > MaxNameLength {
		return &ValidationError{Field: field, Message: "must be 1-50 characters"}
	}
	return nil
}

func validatePeriod(p int) error {
	if p < MinPeriod || p > MaxPeriod {
		return &ValidationError{Field: "period", Message: "must be between 1 and 20"}
	}
	return nil
}

// ScoreRequest adjusts a game or match score
type ScoreRequest struct {
	Team  string `json:"team"`
	Delta *int   `json:"delta"`
}

// Parse validates the request and returns the normalized team and delta
func (r ScoreRequest) Parse() (Team, int, error) {
	team, err := ParseTeam(r.Team)
	if err != nil {
		return "", 0, err
	}
	if r.Delta == nil {
		return "", 0, &ValidationError{Field: "delta", Message: "is required"}
	}
	return team, *r.Delta, nil
}

// TimerSetRequest overwrites the countdown
type TimerSetRequest struct {
	Seconds *int `json:"seconds"`
}

func (r TimerSetRequest) Validate() error {
	if r.Seconds == nil {
		return &ValidationError{Field: "seconds", Message: "is required"}
	}
	if *r.Seconds < 0 {
		return &ValidationError{Field: "seconds", Message: "must be >= 0"}
	}
	return nil
}

// PeriodSetRequest overwrites the period number
type PeriodSetRequest struct {
	Period *int `json:"period"`
}

func (r PeriodSetRequest) Validate() error {
	if r.Period == nil {
		return &ValidationError{Field: "period", Message: "is required"}
	}
	return validatePeriod(*r.Period)
}

// AssignPlayerRequest puts a roster player's name on one side
type AssignPlayerRequest struct {
	Team     string `json:"team"`
	PlayerID string `json:"playerId"`
}

// Parse validates the request and returns the normalized team
func (r AssignPlayerRequest) Parse() (Team, error) {
	team, err := ParseTeam(r.Team)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(r.PlayerID) == "" {
		return "", &ValidationError{Field: "playerId", Message: "is required"}
	}
	return team, nil
}
