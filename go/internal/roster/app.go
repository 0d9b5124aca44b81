package roster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// App handles roster business logic
type App struct {
	repo  Repository
	clock clockwork.Clock
}

// NewApp creates a new roster App. A nil clock uses wall time.
func NewApp(repo Repository, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{repo: repo, clock: clock}
}

// ListTournaments returns every tournament, oldest first
func (a *App) ListTournaments(ctx context.Context) ([]Tournament, error) {
	ts, err := a.repo.ListTournaments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	if ts == nil {
		ts = []Tournament{}
	}
	return ts, nil
}

// GetTournament retrieves a tournament by ID
func (a *App) GetTournament(ctx context.Context, id uuid.UUID) (*Tournament, error) {
	t, err := a.repo.GetTournament(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament %s: %w", id, err)
	}
	return t, nil
}

// CreateTournament validates and stores a new, inactive tournament
func (a *App) CreateTournament(ctx context.Context, req CreateTournamentRequest) (*Tournament, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	t := Tournament{
		ID:        uuid.New(),
		Name:      req.Name,
		Players:   make([]Player, 0, len(req.Players)),
		CreatedAt: a.clock.Now().UTC().Truncate(time.Microsecond),
	}
	for _, p := range req.Players {
		t.Players = append(t.Players, Player{ID: uuid.New(), Name: p.Name, Club: p.Club})
	}

	created, err := a.repo.CreateTournament(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	log.Info().
		Str("tournament_id", created.ID.String()).
		Str("name", created.Name).
		Int("players", len(created.Players)).
		Msg("tournament created")
	return created, nil
}

// DeleteTournament removes a tournament and its players
func (a *App) DeleteTournament(ctx context.Context, id uuid.UUID) error {
	if err := a.repo.DeleteTournament(ctx, id); err != nil {
		return fmt.Errorf("failed to delete tournament %s: %w", id, err)
	}
	log.Info().Str("tournament_id", id.String()).Msg("tournament deleted")
	return nil
}

// Activate makes id the only active tournament
func (a *App) Activate(ctx context.Context, id uuid.UUID) (*Tournament, error) {
	t, err := a.repo.SetActive(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to activate tournament %s: %w", id, err)
	}
	log.Info().Str("tournament_id", id.String()).Msg("tournament activated")
	return t, nil
}

// Active returns the active tournament
func (a *App) Active(ctx context.Context) (*Tournament, error) {
	t, err := a.repo.ActiveTournament(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get active tournament: %w", err)
	}
	return t, nil
}

// AddPlayer validates and appends a player to a tournament
func (a *App) AddPlayer(ctx context.Context, tournamentID uuid.UUID, req AddPlayerRequest) (*Player, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	p, err := a.repo.AddPlayer(ctx, tournamentID, Player{ID: uuid.New(), Name: req.Name, Club: req.Club})
	if err != nil {
		return nil, fmt.Errorf("failed to add player to tournament %s: %w", tournamentID, err)
	}
	return p, nil
}

// RemovePlayer deletes a player from a tournament
func (a *App) RemovePlayer(ctx context.Context, tournamentID, playerID uuid.UUID) error {
	if err := a.repo.RemovePlayer(ctx, tournamentID, playerID); err != nil {
		return fmt.Errorf("failed to remove player %s: %w", playerID, err)
	}
	return nil
}

// LookupPlayer resolves a player of the active tournament to its display name
func (a *App) LookupPlayer(ctx context.Context, playerID string) (string, error) {
	id, err := uuid.Parse(playerID)
	if err != nil {
		return "", ErrPlayerNotFound
	}

	t, err := a.repo.ActiveTournament(ctx)
	if err != nil {
		if errors.Is(err, ErrNoActiveTournament) {
			return "", err
		}
		return "", fmt.Errorf("failed to load active tournament: %w", err)
	}

	p, ok := t.FindPlayer(id)
	if !ok {
		return "", ErrPlayerNotFound
	}
	return p.Name, nil
}
