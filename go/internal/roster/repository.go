package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Repository persists tournaments and their players
type Repository interface {
	ListTournaments(ctx context.Context) ([]Tournament, error)
	GetTournament(ctx context.Context, id uuid.UUID) (*Tournament, error)
	CreateTournament(ctx context.Context, t Tournament) (*Tournament, error)
	DeleteTournament(ctx context.Context, id uuid.UUID) error
	// SetActive marks id active and every other tournament inactive
	SetActive(ctx context.Context, id uuid.UUID) (*Tournament, error)
	ActiveTournament(ctx context.Context) (*Tournament, error)
	AddPlayer(ctx context.Context, tournamentID uuid.UUID, p Player) (*Player, error)
	RemovePlayer(ctx context.Context, tournamentID, playerID uuid.UUID) error
}

type document struct {
	Tournaments []Tournament `json:"tournaments"`
}

// FileRepository keeps the whole roster in one JSON document. Every write
// replaces the file through a temp-file rename.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileRepository creates a repository backed by path. The file is created
// on first write; a missing file reads as an empty roster.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) load() (*document, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}
	if len(data) == 0 {
		return &document{}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse roster file %s: %w", r.path, err)
	}
	return &doc, nil
}

func (r *FileRepository) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode roster: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create roster dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".roster-*.json")
	if err != nil {
		return fmt.Errorf("create temp roster file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp roster file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp roster file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace roster file: %w", err)
	}
	return nil
}

// update loads the document, applies fn and saves it when fn succeeds
func (r *FileRepository) update(fn func(doc *document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return r.save(doc)
}

func (r *FileRepository) read() (*document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (d *document) index(id uuid.UUID) int {
	for i := range d.Tournaments {
		if d.Tournaments[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *FileRepository) ListTournaments(ctx context.Context) ([]Tournament, error) {
	doc, err := r.read()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(doc.Tournaments, func(i, j int) bool {
		return doc.Tournaments[i].CreatedAt.Before(doc.Tournaments[j].CreatedAt)
	})
	return doc.Tournaments, nil
}

func (r *FileRepository) GetTournament(ctx context.Context, id uuid.UUID) (*Tournament, error) {
	doc, err := r.read()
	if err != nil {
		return nil, err
	}
	i := doc.index(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return &doc.Tournaments[i], nil
}

func (r *FileRepository) CreateTournament(ctx context.Context, t Tournament) (*Tournament, error) {
	err := r.update(func(doc *document) error {
		if doc.index(t.ID) >= 0 {
			return fmt.Errorf("tournament %s already exists", t.ID)
		}
		doc.Tournaments = append(doc.Tournaments, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *FileRepository) DeleteTournament(ctx context.Context, id uuid.UUID) error {
	return r.update(func(doc *document) error {
		i := doc.index(id)
		if i < 0 {
			return ErrNotFound
		}
		doc.Tournaments = append(doc.Tournaments[:i], doc.Tournaments[i+1:]...)
		return nil
	})
}

func (r *FileRepository) SetActive(ctx context.Context, id uuid.UUID) (*Tournament, error) {
	var active Tournament
	err := r.update(func(doc *document) error {
		i := doc.index(id)
		if i < 0 {
			return ErrNotFound
		}
		for j := range doc.Tournaments {
			doc.Tournaments[j].Active = j == i
		}
		active = doc.Tournaments[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &active, nil
}

func (r *FileRepository) ActiveTournament(ctx context.Context) (*Tournament, error) {
	doc, err := r.read()
	if err != nil {
		return nil, err
	}
	for i := range doc.Tournaments {
		if doc.Tournaments[i].Active {
			return &doc.Tournaments[i], nil
		}
	}
	return nil, ErrNoActiveTournament
}

func (r *FileRepository) AddPlayer(ctx context.Context, tournamentID uuid.UUID, p Player) (*Player, error) {
	err := r.update(func(doc *document) error {
		i := doc.index(tournamentID)
		if i < 0 {
			return ErrNotFound
		}
		doc.Tournaments[i].Players = append(doc.Tournaments[i].Players, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *FileRepository) RemovePlayer(ctx context.Context, tournamentID, playerID uuid.UUID) error {
	return r.update(func(doc *document) error {
		i := doc.index(tournamentID)
		if i < 0 {
			return ErrNotFound
		}
		players := doc.Tournaments[i].Players
		for j := range players {
			if players[j].ID == playerID {
				doc.Tournaments[i].Players = append(players[:j], players[j+1:]...)
				return nil
			}
		}
		return ErrPlayerNotFound
	})
}
