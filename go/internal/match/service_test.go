package match

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMux(t *testing.T, opts ...Option) (*http.ServeMux, *fixture) {
	t.Helper()
	f := newFixture(t, opts...)
	mux := http.NewServeMux()
	NewService(f.app).RegisterRoutes(mux)
	return mux, f
}

func do(t *testing.T, mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeMutation(t *testing.T, rec *httptest.ResponseRecorder) MutationResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp MutationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	return resp
}

func TestService_GetState(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/match/7/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"match_id": "7",
		"homeName": "Home",
		"awayName": "Away",
		"homeScore": 0,
		"awayScore": 0,
		"homeMatchScore": 0,
		"awayMatchScore": 0,
		"period": 1,
		"timerSecondsRemaining": 0,
		"timerRunning": false,
		"rev": 0
	}`, rec.Body.String())
}

func TestService_Mutations(t *testing.T) {
	mux, _ := newTestMux(t)

	resp := decodeMutation(t, do(t, mux, http.MethodPost, "/api/match/1/setup",
		`{"homeName":"Lions","awayName":"Bears","period":2,"timerSeconds":600}`))
	assert.Equal(t, "Lions", resp.State.HomeName)
	assert.Equal(t, 600, resp.State.TimerSecondsRemaining)

	resp = decodeMutation(t, do(t, mux, http.MethodPost, "/api/match/1/score", `{"team":"home","delta":2}`))
	assert.Equal(t, 2, resp.State.HomeScore)

	resp = decodeMutation(t, do(t, mux, http.MethodPost, "/api/match/1/match-score", `{"team":"away","delta":1}`))
	assert.Equal(t, 1, resp.State.AwayMatchScore)

	resp = decodeMutation(t, do(t, mux, http.MethodPost, "/api/match/1/timer/start", ""))
	assert.True(t, resp.State.TimerRunning)

	resp = decodeMutation(t, do(t, mux, http.MethodPost, "/api/match/1/timer/stop", ""))
	assert.False(t, resp.State.TimerRunning)

	resp = decodeMutation(t, do(t, mux, http.MethodPost, "/api/match/1/timer/set", `{"seconds":30}`))
	assert.Equal(t, 30, resp.State.TimerSecondsRemaining)

	resp = decodeMutation(t, do(t, mux, http.MethodPost, "/api/match/1/period/set", `{"period":5}`))
	assert.Equal(t, 5, resp.State.Period)

	resp = decodeMutation(t, do(t, mux, http.MethodPost, "/api/match/1/reset", ""))
	assert.Equal(t, 0, resp.State.HomeScore)
	assert.Equal(t, 1, resp.State.Period)
	assert.Equal(t, int64(8), resp.State.Rev)
}

func TestService_SetupWithEmptyBody(t *testing.T) {
	mux, _ := newTestMux(t)

	resp := decodeMutation(t, do(t, mux, http.MethodPost, "/api/match/1/setup", ""))
	assert.Equal(t, "Home", resp.State.HomeName)
	assert.Equal(t, int64(1), resp.State.Rev)
}

func TestService_Errors(t *testing.T) {
	mux, _ := newTestMux(t, WithPlayerDirectory(stubDirectory{"p1": "Ann"}))

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"bad team", "/api/match/1/score", `{"team":"left","delta":1}`, http.StatusUnprocessableEntity},
		{"missing delta", "/api/match/1/score", `{"team":"home"}`, http.StatusUnprocessableEntity},
		{"malformed json", "/api/match/1/score", `{"team":`, http.StatusBadRequest},
		{"empty score body", "/api/match/1/match-score", "", http.StatusBadRequest},
		{"period out of range", "/api/match/1/period/set", `{"period":30}`, http.StatusUnprocessableEntity},
		{"negative timer", "/api/match/1/timer/set", `{"seconds":-1}`, http.StatusUnprocessableEntity},
		{"long name", "/api/match/1/setup", `{"homeName":"` + strings.Repeat("x", 51) + `"}`, http.StatusUnprocessableEntity},
		{"unknown player", "/api/match/1/player", `{"team":"home","playerId":"p9"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestService_AssignPlayer(t *testing.T) {
	mux, _ := newTestMux(t, WithPlayerDirectory(stubDirectory{"p1": "Ann"}))

	resp := decodeMutation(t, do(t, mux, http.MethodPost, "/api/match/1/player", `{"team":"home","playerId":"p1"}`))
	assert.Equal(t, "Ann", resp.State.HomeName)
}

func TestService_MethodNotAllowed(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/match/1/reset", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
