package gfx

import (
	"errors"
	"io"
	"net/http"

	"github.com/mcdev12/scoreboard/go/internal/httputil"
	"github.com/rs/zerolog/log"
)

// MaxUploadBytes caps background image uploads
const MaxUploadBytes = 10 << 20

// UploadResponse is returned by POST /api/match/{id}/background-upload
type UploadResponse struct {
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	Settings Settings `json:"settings"`
}

// Service exposes overlay settings over HTTP
type Service struct {
	store *Store
}

// NewService creates a new gfx HTTP service
func NewService(store *Store) *Service {
	return &Service{store: store}
}

// RegisterRoutes registers gfx routes with an HTTP mux
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/match/{id}/gfx-settings", s.HandleGet)
	mux.HandleFunc("POST /api/match/{id}/gfx-settings", s.HandleSet)
	mux.HandleFunc("POST /api/match/{id}/background-upload", s.HandleUpload)
}

func (s *Service) HandleGet(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.store.Get(r.PathValue("id")))
}

func (s *Service) HandleSet(w http.ResponseWriter, r *http.Request) {
	var settings Settings
	if err := httputil.DecodeJSON(r, &settings, false); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.store.Replace(r.PathValue("id"), settings)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) HandleUpload(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	contents, err := io.ReadAll(file)
	if err != nil {
		log.Error().Err(err).Str("match_id", matchID).Msg("failed to read upload")
		httputil.WriteError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	settings := s.store.SetBackgroundImage(matchID, header.Header.Get("Content-Type"), contents)
	httputil.WriteJSON(w, http.StatusOK, UploadResponse{
		Status:   "ok",
		Message:  "Background uploaded successfully",
		Settings: settings,
	})
}
