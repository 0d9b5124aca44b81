package gfx

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/mcdev12/scoreboard/go/internal/broadcast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (c *capture) ID() string { return "capture" }

func (c *capture) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, payload)
	return nil
}

func (c *capture) last(t *testing.T) SettingsMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.msgs)
	var msg SettingsMessage
	require.NoError(t, json.Unmarshal(c.msgs[len(c.msgs)-1], &msg))
	return msg
}

func newTestService(t *testing.T) (*http.ServeMux, *capture) {
	t.Helper()
	hub := broadcast.NewHub(nil)
	sub := &capture{}
	hub.Subscribe("1", sub)

	mux := http.NewServeMux()
	NewService(NewStore(hub)).RegisterRoutes(mux)
	return mux, sub
}

func serve(mux http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, path, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="bg.jpg"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestService_GetDefaultsToEmptyObject(t *testing.T) {
	mux, _ := newTestService(t)

	rec := serve(mux, httptest.NewRequest(http.MethodGet, "/api/match/9/gfx-settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestService_SetReplacesAndPushes(t *testing.T) {
	mux, sub := newTestService(t)

	req := httptest.NewRequest(http.MethodPost, "/api/match/1/gfx-settings",
		strings.NewReader(`{"theme":"dark","fontSize":24}`))
	rec := serve(mux, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	msg := sub.last(t)
	assert.Equal(t, MessageType, msg.Type)
	assert.Equal(t, "dark", msg.Settings["theme"])

	req = httptest.NewRequest(http.MethodPost, "/api/match/1/gfx-settings", strings.NewReader(`{"theme":"light"}`))
	require.Equal(t, http.StatusOK, serve(mux, req).Code)

	rec = serve(mux, httptest.NewRequest(http.MethodGet, "/api/match/1/gfx-settings", nil))
	assert.JSONEq(t, `{"theme":"light"}`, rec.Body.String())
}

func TestService_SetRejectsNonObject(t *testing.T) {
	mux, sub := newTestService(t)

	for _, body := range []string{`[1,2]`, `"x"`, `{`, ``} {
		req := httptest.NewRequest(http.MethodPost, "/api/match/1/gfx-settings", strings.NewReader(body))
		assert.Equal(t, http.StatusBadRequest, serve(mux, req).Code, body)
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Empty(t, sub.msgs)
}

func TestService_BackgroundUpload(t *testing.T) {
	mux, sub := newTestService(t)

	req := httptest.NewRequest(http.MethodPost, "/api/match/1/gfx-settings",
		strings.NewReader(`{"theme":"dark","backgrounds":{"container":{"blur":4},"score":{"type":"color"}}}`))
	require.Equal(t, http.StatusOK, serve(mux, req).Code)

	rec := serve(mux, uploadRequest(t, "/api/match/1/background-upload", "image/jpeg", []byte("abc")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	backgrounds := resp.Settings["backgrounds"].(map[string]any)
	container := backgrounds["container"].(map[string]any)
	assert.Equal(t, "image", container["type"])
	assert.Equal(t, "data:image/jpeg;base64,YWJj", container["imageUrl"])
	assert.Equal(t, "cover", container["imageSize"])
	assert.Equal(t, float64(100), container["imageOpacity"])
	assert.Equal(t, "center", container["imagePositionX"])
	assert.Equal(t, "center", container["imagePositionY"])
	assert.Equal(t, float64(4), container["blur"], "existing container keys are kept")
	assert.NotNil(t, backgrounds["score"])
	assert.Equal(t, "dark", resp.Settings["theme"])

	msg := sub.last(t)
	pushed := msg.Settings["backgrounds"].(map[string]any)["container"].(map[string]any)
	assert.Equal(t, "data:image/jpeg;base64,YWJj", pushed["imageUrl"])
}

func TestService_BackgroundUploadDefaultsMimeType(t *testing.T) {
	mux, _ := newTestService(t)

	rec := serve(mux, uploadRequest(t, "/api/match/2/background-upload", "", []byte{0xff}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	container := resp.Settings["backgrounds"].(map[string]any)["container"].(map[string]any)
	assert.Equal(t, "data:image/png;base64,/w==", container["imageUrl"])
}

func TestService_BackgroundUploadWithoutFile(t *testing.T) {
	mux, _ := newTestService(t)

	req := httptest.NewRequest(http.MethodPost, "/api/match/1/background-upload", strings.NewReader(""))
	rec := serve(mux, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStore_UploadDoesNotMutatePreviousDocument(t *testing.T) {
	store := NewStore(nil)
	before := store.Replace("1", Settings{"backgrounds": map[string]any{"container": map[string]any{"type": "color"}}})

	store.SetBackgroundImage("1", "image/gif", []byte("x"))

	container := before["backgrounds"].(map[string]any)["container"].(map[string]any)
	assert.Equal(t, "color", container["type"])
	assert.NotContains(t, container, "imageUrl")
}
