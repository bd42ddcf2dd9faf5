package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeControls struct {
	inference bool
	remote    bool
	remoteErr error
}

func (c *fakeControls) InferenceEnabled() bool      { return c.inference }
func (c *fakeControls) SetInferenceEnabled(on bool) { c.inference = on }
func (c *fakeControls) Remote() bool                { return c.remote }

func (c *fakeControls) SetRemote(on bool) error {
	if on && c.remoteErr != nil {
		return c.remoteErr
	}
	c.remote = on
	return nil
}

func newTestWeb() (*WebPresenter, *fakeControls, *fakeStats) {
	controls := &fakeControls{inference: true}
	stats := &fakeStats{inFlight: 1, dispatched: 7, failed: 2}
	return NewWebPresenter(controls, stats), controls, stats
}

func TestWeb_ActivityStartsAtZero(t *testing.T) {
	web, _, _ := newTestWeb()
	rec := httptest.NewRecorder()
	web.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/activity", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got ResultMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, ZeroMessage().Probabilities, got.Probabilities)
	assert.Empty(t, got.Label)
}

func TestWeb_ActivityKeepsLastSuccess(t *testing.T) {
	web, _, _ := newTestWeb()
	web.Present(NewResultMessage(standingOutcome(t), 0, time.Now()))
	web.Present(ResultMessage{Backend: "remote", Error: "read timeout"})

	assert.Equal(t, "Standing", web.Latest().Label)

	rec := httptest.NewRecorder()
	web.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, StatusResponse{
		InFlight:         1,
		Dispatched:       7,
		Failed:           2,
		LastElapsedMS:    42,
		LastError:        "read timeout",
		InferenceEnabled: true,
		Remote:           false,
	}, status)
}

func TestWeb_Controls(t *testing.T) {
	web, controls, _ := newTestWeb()
	h := web.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/controls",
		strings.NewReader(`{"inference": false, "remote": true}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, controls.inference)
	assert.True(t, controls.remote)

	var state ControlState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.NotNil(t, state.Inference)
	assert.False(t, *state.Inference)
	assert.True(t, *state.Remote)

	// Partial update leaves the other switch alone.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/controls", strings.NewReader(`{"inference": true}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, controls.inference)
	assert.True(t, controls.remote)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/controls", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"inference": true, "remote": true}`, rec.Body.String())
}

func TestWeb_ControlsErrors(t *testing.T) {
	web, controls, _ := newTestWeb()
	controls.remoteErr = errors.New("no remote backend configured")
	h := web.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/controls", strings.NewReader(`{"remote": true}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "no remote backend")
	assert.False(t, controls.remote)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/controls", strings.NewReader(`{not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/controls", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/activity", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWeb_WebsocketStream(t *testing.T) {
	web, _, _ := newTestWeb()
	srv := httptest.NewServer(web.Handler())
	defer srv.Close()
	defer web.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var initial ResultMessage
	require.NoError(t, conn.ReadJSON(&initial))
	assert.False(t, initial.OK())

	web.Present(NewResultMessage(standingOutcome(t), 0, time.Now()))

	var pushed ResultMessage
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, "Standing", pushed.Label)
}

func TestRenderRadar(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderRadar(&buf, ZeroMessage()))
	html := buf.String()
	assert.Contains(t, html, "Activity Probability Web")
	assert.Contains(t, html, "waiting for first result")
	for _, label := range []string{"Downstairs", "Jogging", "Sitting", "Standing", "Upstairs", "Walking"} {
		assert.Contains(t, html, label)
	}

	assert.Error(t, RenderRadar(&buf, ResultMessage{}))
}

func TestWeb_ChartAndRoot(t *testing.T) {
	web, _, _ := newTestWeb()
	web.Present(NewResultMessage(standingOutcome(t), 0, time.Now()))
	h := web.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chart", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Standing 0.88")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/chart", rec.Header().Get("Location"))
}
