package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/scoreboard/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS tournaments (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS tournaments_single_active ON tournaments (active) WHERE active;
CREATE TABLE IF NOT EXISTS tournament_players (
	seq           BIGSERIAL PRIMARY KEY,
	id            UUID NOT NULL UNIQUE,
	tournament_id UUID NOT NULL REFERENCES tournaments (id) ON DELETE CASCADE,
	name          TEXT NOT NULL,
	club          TEXT
);
CREATE INDEX IF NOT EXISTS tournament_players_tournament ON tournament_players (tournament_id);
`

// queries binds SQL statements to a connection or transaction
type queries struct {
	db sqlutil.DBTX
}

func newQueries(db sqlutil.DBTX) *queries {
	return &queries{db: db}
}

// PostgresRepository stores the roster in Postgres through database/sql
type PostgresRepository struct {
	db *sql.DB
	q  *queries
}

// NewPostgresRepository creates the schema if needed and returns a repository
func NewPostgresRepository(ctx context.Context, db *sql.DB) (*PostgresRepository, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create roster schema: %w", err)
	}
	log.Info().Msg("roster schema ready")
	return &PostgresRepository{db: db, q: newQueries(db)}, nil
}

func (q *queries) tournaments(ctx context.Context, where string, args ...any) ([]Tournament, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, active, created_at FROM tournaments `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query tournaments: %w", err)
	}
	defer rows.Close()

	var out []Tournament
	for rows.Next() {
		var t Tournament
		var createdAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.Name, &t.Active, &createdAt); err != nil {
			return nil, fmt.Errorf("scan tournament: %w", err)
		}
		t.CreatedAt = sqlutil.FromSqlTime(createdAt)
		t.Players = []Player{}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tournaments: %w", err)
	}
	return out, nil
}

func (q *queries) attachPlayers(ctx context.Context, ts []Tournament) error {
	if len(ts) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Tournament, len(ts))
	for i := range ts {
		byID[ts[i].ID] = &ts[i]
	}

	query := `SELECT tournament_id, id, name, club FROM tournament_players`
	var args []any
	if len(ts) == 1 {
		query += ` WHERE tournament_id = $1`
		args = append(args, ts[0].ID)
	}
	rows, err := q.db.QueryContext(ctx, query+` ORDER BY seq`, args...)
	if err != nil {
		return fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tournamentID uuid.UUID
		var p Player
		var club sql.NullString
		if err := rows.Scan(&tournamentID, &p.ID, &p.Name, &club); err != nil {
			return fmt.Errorf("scan player: %w", err)
		}
		p.Club = sqlutil.FromSqlStringPtr(club)
		if t, ok := byID[tournamentID]; ok {
			t.Players = append(t.Players, p)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate players: %w", err)
	}
	return nil
}

func (q *queries) one(ctx context.Context, notFound error, where string, args ...any) (*Tournament, error) {
	ts, err := q.tournaments(ctx, where, args...)
	if err != nil {
		return nil, err
	}
	if len(ts) == 0 {
		return nil, notFound
	}
	if err := q.attachPlayers(ctx, ts[:1]); err != nil {
		return nil, err
	}
	return &ts[0], nil
}

func (q *queries) insertPlayer(ctx context.Context, tournamentID uuid.UUID, p Player) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO tournament_players (id, tournament_id, name, club) VALUES ($1, $2, $3, $4)`,
		p.ID, tournamentID, p.Name, sqlutil.ToSqlString(p.Club))
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

func (q *queries) exists(ctx context.Context, id uuid.UUID) error {
	var found bool
	err := q.db.QueryRowContext(ctx, `SELECT TRUE FROM tournaments WHERE id = $1`, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check tournament: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListTournaments(ctx context.Context) ([]Tournament, error) {
	ts, err := r.q.tournaments(ctx, "")
	if err != nil {
		return nil, err
	}
	if err := r.q.attachPlayers(ctx, ts); err != nil {
		return nil, err
	}
	return ts, nil
}

func (r *PostgresRepository) GetTournament(ctx context.Context, id uuid.UUID) (*Tournament, error) {
	return r.q.one(ctx, ErrNotFound, "WHERE id = $1", id)
}

func (r *PostgresRepository) ActiveTournament(ctx context.Context) (*Tournament, error) {
	return r.q.one(ctx, ErrNoActiveTournament, "WHERE active")
}

func (r *PostgresRepository) CreateTournament(ctx context.Context, t Tournament) (*Tournament, error) {
	err := sqlutil.Run(ctx, r.db, newQueries, func(q *queries) error {
		_, err := q.db.ExecContext(ctx,
			`INSERT INTO tournaments (id, name, active, created_at) VALUES ($1, $2, $3, $4)`,
			t.ID, t.Name, t.Active, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert tournament: %w", err)
		}
		for _, p := range t.Players {
			if err := q.insertPlayer(ctx, t.ID, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresRepository) DeleteTournament(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tournament: %w", err)
	}
	return requireAffected(res, ErrNotFound)
}

func (r *PostgresRepository) SetActive(ctx context.Context, id uuid.UUID) (*Tournament, error) {
	var active *Tournament
	err := sqlutil.Run(ctx, r.db, newQueries, func(q *queries) error {
		if err := q.exists(ctx, id); err != nil {
			return err
		}
		// clear first so the partial unique index never sees two active rows
		if _, err := q.db.ExecContext(ctx, `UPDATE tournaments SET active = FALSE WHERE active AND id <> $1`, id); err != nil {
			return fmt.Errorf("deactivate tournaments: %w", err)
		}
		if _, err := q.db.ExecContext(ctx, `UPDATE tournaments SET active = TRUE WHERE id = $1`, id); err != nil {
			return fmt.Errorf("activate tournament: %w", err)
		}
		t, err := q.one(ctx, ErrNotFound, "WHERE id = $1", id)
		if err != nil {
			return err
		}
		active = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return active, nil
}

func (r *PostgresRepository) AddPlayer(ctx context.Context, tournamentID uuid.UUID, p Player) (*Player, error) {
	err := sqlutil.Run(ctx, r.db, newQueries, func(q *queries) error {
		if err := q.exists(ctx, tournamentID); err != nil {
			return err
		}
		return q.insertPlayer(ctx, tournamentID, p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) RemovePlayer(ctx context.Context, tournamentID, playerID uuid.UUID) error {
	return sqlutil.Run(ctx, r.db, newQueries, func(q *queries) error {
		if err := q.exists(ctx, tournamentID); err != nil {
			return err
		}
		res, err := q.db.ExecContext(ctx,
			`DELETE FROM tournament_players WHERE tournament_id = $1 AND id = $2`, tournamentID, playerID)
		if err != nil {
			return fmt.Errorf("delete player: %w", err)
		}
		return requireAffected(res, ErrPlayerNotFound)
	})
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
