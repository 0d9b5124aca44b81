package roster

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/scoreboard/go/internal/httputil"
	"github.com/rs/zerolog/log"
)

// Service exposes the roster app over JSON/HTTP
type Service struct {
	app *App
}

// NewService creates a new roster HTTP service
func NewService(app *App) *Service {
	return &Service{app: app}
}

// RegisterRoutes registers roster routes with an HTTP mux
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tournaments", s.HandleList)
	mux.HandleFunc("POST /api/tournaments", s.HandleCreate)
	mux.HandleFunc("GET /api/tournaments/active", s.HandleActive)
	mux.HandleFunc("GET /api/tournaments/{id}", s.HandleGet)
	mux.HandleFunc("DELETE /api/tournaments/{id}", s.HandleDelete)
	mux.HandleFunc("POST /api/tournaments/{id}/activate", s.HandleActivate)
	mux.HandleFunc("POST /api/tournaments/{id}/players", s.HandleAddPlayer)
	mux.HandleFunc("DELETE /api/tournaments/{id}/players/{playerId}", s.HandleRemovePlayer)
}

func (s *Service) HandleList(w http.ResponseWriter, r *http.Request) {
	ts, err := s.app.ListTournaments(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ts)
}

func (s *Service) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateTournamentRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := s.app.CreateTournament(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, t)
}

func (s *Service) HandleActive(w http.ResponseWriter, r *http.Request) {
	t, err := s.app.Active(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (s *Service) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	t, err := s.app.GetTournament(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (s *Service) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.DeleteTournament(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) HandleActivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	t, err := s.app.Activate(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (s *Service) HandleAddPlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req AddPlayerRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.app.AddPlayer(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (s *Service) HandleRemovePlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	playerID, ok := pathUUID(w, r, "playerId")
	if !ok {
		return
	}
	if err := s.app.RemovePlayer(r.Context(), id, playerID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ValidationError
	var nf *notFoundError
	switch {
	case errors.As(err, &ve):
		httputil.WriteError(w, http.StatusUnprocessableEntity, ve.Error())
	case errors.As(err, &nf):
		httputil.WriteError(w, http.StatusNotFound, nf.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("roster request failed")
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
