package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benmeehan/geo-locator/internal/controller"
	"github.com/benmeehan/geo-locator/internal/mocks"
	"github.com/benmeehan/geo-locator/pkg/location"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *MapView, *mocks.MockLocator) {
	t.Helper()
	view := newTestMapView()
	locator := new(mocks.MockLocator)
	return NewServer("127.0.0.1:0", locator, view, zerolog.Nop()), view, locator
}

func TestServer_Locate(t *testing.T) {
	s, _, locator := newTestServer(t)
	locator.On("LocateOnce").Return().Once()

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/locate", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	locator.AssertExpectations(t)
}

func TestServer_Locate_WrongMethod(t *testing.T) {
	s, _, locator := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/locate", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	locator.AssertNotCalled(t, "LocateOnce")
}

func TestServer_API_WrongMethods(t *testing.T) {
	s, _, locator := newTestServer(t)
	router := s.Router()

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/tracking/toggle"},
		{http.MethodPost, "/api/state"},
		{http.MethodDelete, "/api/health"},
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", tc.method, tc.path)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	locator.AssertNotCalled(t, "ToggleTracking")
	locator.AssertNotCalled(t, "Tracking")
}

func TestServer_ToggleTracking(t *testing.T) {
	s, _, locator := newTestServer(t)
	locator.On("ToggleTracking").Return().Once()

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tracking/toggle", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	locator.AssertExpectations(t)
}

func TestServer_State(t *testing.T) {
	s, view, locator := newTestServer(t)
	locator.On("Tracking").Return(true).Once()
	view.AddMarker(location.Coordinate{Latitude: 1, Longitude: 2}, "here")

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Tracking)
	require.Len(t, resp.Map.Layers, 1)
	assert.Equal(t, "here", resp.Map.Layers[0].Popup)
	assert.Equal(t, controller.TrackIdle, resp.Map.Buttons.Track)
}

func TestServer_HealthAndStatic(t *testing.T) {
	s, _, _ := newTestServer(t)
	router := s.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="locate-btn"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_WebSocketReceivesSnapshotAndUpdates(t *testing.T) {
	s, view, _ := newTestServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgSnapshot, msg.Type)

	// Registered before the snapshot was sent
	require.Eventually(t, func() bool { return view.Hub().Count() == 1 }, time.Second, 10*time.Millisecond)

	view.Alert("Could not determine your location.")
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgAlert, msg.Type)
	assert.Contains(t, string(msg.Payload), "Could not determine your location.")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "zoom", Zoom: 17}))
	assert.Eventually(t, func() bool { return view.Zoom() == 17 }, time.Second, 10*time.Millisecond)
}

func TestServer_StartStop(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.ShutdownTimeout = time.Second

	require.NoError(t, s.Start())
	assert.NotEmpty(t, s.ListenAddr())

	err := s.Start()
	assert.Error(t, err)
	assert.Equal(t, "web server already running", err.Error())

	resp, err := http.Get("http://" + s.ListenAddr() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.NoError(t, s.Stop())
	err = s.Stop()
	assert.Error(t, err)
	assert.Equal(t, "web server is not running", err.Error())
}
