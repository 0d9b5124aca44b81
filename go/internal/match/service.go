package match

import (
	"errors"
	"net/http"

	"github.com/mcdev12/scoreboard/go/internal/httputil"
	"github.com/rs/zerolog/log"
)

// MutationResponse is returned by every mutating endpoint
type MutationResponse struct {
	Status string `json:"status"`
	State  State  `json:"state"`
}

// Service exposes the match app over JSON/HTTP
type Service struct {
	app *App
}

// NewService creates a new match HTTP service
func NewService(app *App) *Service {
	return &Service{app: app}
}

// RegisterRoutes registers match routes with an HTTP mux
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/match/{id}/state", s.HandleGetState)
	mux.HandleFunc("POST /api/match/{id}/setup", s.HandleSetup)
	mux.HandleFunc("POST /api/match/{id}/score", s.HandleScore)
	mux.HandleFunc("POST /api/match/{id}/match-score", s.HandleMatchScore)
	mux.HandleFunc("POST /api/match/{id}/timer/start", s.HandleTimerStart)
	mux.HandleFunc("POST /api/match/{id}/timer/stop", s.HandleTimerStop)
	mux.HandleFunc("POST /api/match/{id}/timer/set", s.HandleTimerSet)
	mux.HandleFunc("POST /api/match/{id}/period/set", s.HandlePeriodSet)
	mux.HandleFunc("POST /api/match/{id}/reset", s.HandleReset)
	mux.HandleFunc("POST /api/match/{id}/player", s.HandleAssignPlayer)
}

// HandleGetState handles GET /api/match/{id}/state
func (s *Service) HandleGetState(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.app.State(r.Context(), r.PathValue("id")))
}

// HandleSetup handles POST /api/match/{id}/setup
func (s *Service) HandleSetup(w http.ResponseWriter, r *http.Request) {
	var req SetupRequest
	if err := httputil.DecodeJSON(r, &req, true); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := s.app.Setup(r.Context(), r.PathValue("id"), req)
	s.respond(w, r, st, err)
}

// HandleScore handles POST /api/match/{id}/score
func (s *Service) HandleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := s.app.AdjustScore(r.Context(), r.PathValue("id"), req)
	s.respond(w, r, st, err)
}

// HandleMatchScore handles POST /api/match/{id}/match-score
func (s *Service) HandleMatchScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := s.app.AdjustMatchScore(r.Context(), r.PathValue("id"), req)
	s.respond(w, r, st, err)
}

// HandleTimerStart handles POST /api/match/{id}/timer/start
func (s *Service) HandleTimerStart(w http.ResponseWriter, r *http.Request) {
	st, err := s.app.StartTimer(r.Context(), r.PathValue("id"))
	s.respond(w, r, st, err)
}

// HandleTimerStop handles POST /api/match/{id}/timer/stop
func (s *Service) HandleTimerStop(w http.ResponseWriter, r *http.Request) {
	st, err := s.app.StopTimer(r.Context(), r.PathValue("id"))
	s.respond(w, r, st, err)
}

// HandleTimerSet handles POST /api/match/{id}/timer/set
func (s *Service) HandleTimerSet(w http.ResponseWriter, r *http.Request) {
	var req TimerSetRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := s.app.SetTimer(r.Context(), r.PathValue("id"), req)
	s.respond(w, r, st, err)
}

// HandlePeriodSet handles POST /api/match/{id}/period/set
func (s *Service) HandlePeriodSet(w http.ResponseWriter, r *http.Request) {
	var req PeriodSetRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := s.app.SetPeriod(r.Context(), r.PathValue("id"), req)
	s.respond(w, r, st, err)
}

// HandleReset handles POST /api/match/{id}/reset
func (s *Service) HandleReset(w http.ResponseWriter, r *http.Request) {
	st, err := s.app.Reset(r.Context(), r.PathValue("id"))
	s.respond(w, r, st, err)
}

// HandleAssignPlayer handles POST /api/match/{id}/player
func (s *Service) HandleAssignPlayer(w http.ResponseWriter, r *http.Request) {
	var req AssignPlayerRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := s.app.AssignPlayer(r.Context(), r.PathValue("id"), req)
	s.respond(w, r, st, err)
}

func (s *Service) respond(w http.ResponseWriter, r *http.Request, st State, err error) {
	if err == nil {
		httputil.WriteJSON(w, http.StatusOK, MutationResponse{Status: "ok", State: st})
		return
	}

	var ve *ValidationError
	var nf *NotFoundError
	switch {
	case errors.As(err, &ve):
		httputil.WriteError(w, http.StatusUnprocessableEntity, ve.Error())
	case errors.As(err, &nf):
		httputil.WriteError(w, http.StatusNotFound, nf.Error())
	default:
		log.Error().
			Err(err).
			Str("match_id", r.PathValue("id")).
			Str("path", r.URL.Path).
			Msg("match request failed")
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
