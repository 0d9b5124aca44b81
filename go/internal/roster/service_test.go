package roster

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	app, _ := newTestApp(t)
	mux := http.NewServeMux()
	NewService(app).RegisterRoutes(mux)
	return mux
}

func call(t *testing.T, mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder, status int) T {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestService_TournamentLifecycle(t *testing.T) {
	mux := newTestMux(t)

	list := decode[[]Tournament](t, call(t, mux, http.MethodGet, "/api/tournaments", ""), http.StatusOK)
	assert.Empty(t, list)

	created := decode[Tournament](t, call(t, mux, http.MethodPost, "/api/tournaments",
		`{"name":"Club Night","players":[{"name":"Ann","club":"North"}]}`), http.StatusCreated)
	assert.Equal(t, "Club Night", created.Name)
	require.Len(t, created.Players, 1)

	base := "/api/tournaments/" + created.ID.String()

	got := decode[Tournament](t, call(t, mux, http.MethodGet, base, ""), http.StatusOK)
	assert.Equal(t, created.ID, got.ID)

	rec := call(t, mux, http.MethodGet, "/api/tournaments/active", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	active := decode[Tournament](t, call(t, mux, http.MethodPost, base+"/activate", ""), http.StatusOK)
	assert.True(t, active.Active)

	active = decode[Tournament](t, call(t, mux, http.MethodGet, "/api/tournaments/active", ""), http.StatusOK)
	assert.Equal(t, created.ID, active.ID)

	player := decode[Player](t, call(t, mux, http.MethodPost, base+"/players", `{"name":"Bob"}`), http.StatusCreated)
	assert.Equal(t, "Bob", player.Name)

	rec = call(t, mux, http.MethodDelete, base+"/players/"+player.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(t, mux, http.MethodDelete, base+"/players/"+player.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, mux, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(t, mux, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestService_Errors(t *testing.T) {
	mux := newTestMux(t)
	missing := "/api/tournaments/" + uuid.NewString()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"empty name", http.MethodPost, "/api/tournaments", `{"name":""}`, http.StatusUnprocessableEntity},
		{"malformed body", http.MethodPost, "/api/tournaments", `{"name":`, http.StatusBadRequest},
		{"missing body", http.MethodPost, "/api/tournaments", "", http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/tournaments/nope", "", http.StatusBadRequest},
		{"unknown id", http.MethodGet, missing, "", http.StatusNotFound},
		{"activate unknown", http.MethodPost, missing + "/activate", "", http.StatusNotFound},
		{"player on unknown", http.MethodPost, missing + "/players", `{"name":"Ann"}`, http.StatusNotFound},
		{"bad player id", http.MethodDelete, missing + "/players/nope", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, mux, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}
