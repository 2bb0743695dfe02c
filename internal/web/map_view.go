package web

import (
	"sync"

	"github.com/benmeehan/geo-locator/internal/controller"
	"github.com/benmeehan/geo-locator/pkg/location"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Message types sent to browsers.
const (
	MsgSnapshot    = "snapshot"
	MsgAddLayer    = "add_layer"
	MsgRemoveLayer = "remove_layer"
	MsgSetView     = "set_view"
	MsgButtons     = "buttons"
	MsgAlert       = "alert"
)

// Layer kinds.
const (
	LayerMarker = "marker"
	LayerCircle = "circle"
)

// Layer is a marker or accuracy circle currently on the map.
type Layer struct {
	ID     controller.LayerID     `json:"id"`
	Kind   string                 `json:"kind"`
	Center location.Coordinate    `json:"center"`
	Popup  string                 `json:"popup,omitempty"`
	Radius float64                `json:"radius,omitempty"`
	Style  *controller.CircleStyle `json:"style,omitempty"`
}

// View is the map center and zoom level.
type View struct {
	Center location.Coordinate `json:"center"`
	Zoom   int                 `json:"zoom"`
}

// Buttons holds the state of both page controls.
type Buttons struct {
	Locate controller.ButtonState `json:"locate"`
	Track  controller.ButtonState `json:"track"`
}

// TileLayer describes the base map.
type TileLayer struct {
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
}

// Snapshot is the full map state sent to a newly connected browser.
type Snapshot struct {
	Tiles   TileLayer `json:"tiles"`
	View    View      `json:"view"`
	Layers  []Layer   `json:"layers"`
	Buttons Buttons   `json:"buttons"`
}

// MapView is the server side model of the browser map. It implements
// controller.MapDisplay, controller.Controls and controller.Notifier and
// mirrors every change to the connected browsers.
type MapView struct {
	mu      sync.RWMutex
	tiles   TileLayer
	view    View
	layers  map[controller.LayerID]Layer
	order   []controller.LayerID
	buttons Buttons

	hub    *Hub
	logger zerolog.Logger
}

// NewMapView creates a map centered on center at zoom.
func NewMapView(center location.Coordinate, zoom int, tiles TileLayer, logger zerolog.Logger) *MapView {
	m := &MapView{
		tiles:  tiles,
		view:   View{Center: center, Zoom: zoom},
		layers: make(map[controller.LayerID]Layer),
		buttons: Buttons{
			Locate: controller.LocateIdle,
			Track:  controller.TrackIdle,
		},
		logger: logger,
	}
	m.hub = newHub(m.withSnapshot, m.handleClientMessage, logger)
	return m
}

// Hub returns the websocket hub serving this map.
func (m *MapView) Hub() *Hub {
	return m.hub
}

func (m *MapView) AddMarker(at location.Coordinate, popup string) controller.LayerID {
	return m.addLayer(Layer{Kind: LayerMarker, Center: at, Popup: popup})
}

func (m *MapView) AddCircle(center location.Coordinate, radius float64, style controller.CircleStyle) controller.LayerID {
	return m.addLayer(Layer{Kind: LayerCircle, Center: center, Radius: radius, Style: &style})
}

func (m *MapView) addLayer(l Layer) controller.LayerID {
	l.ID = controller.LayerID(uuid.NewString())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.layers[l.ID] = l
	m.order = append(m.order, l.ID)
	m.hub.Broadcast(WSMessage{Type: MsgAddLayer, Payload: l})
	return l.ID
}

func (m *MapView) RemoveLayer(id controller.LayerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.layers[id]; !ok {
		return
	}
	delete(m.layers, id)
	for i, lid := range m.order {
		if lid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.hub.Broadcast(WSMessage{Type: MsgRemoveLayer, Payload: map[string]controller.LayerID{"id": id}})
}

func (m *MapView) SetView(center location.Coordinate, zoom int) {
	v := View{Center: center, Zoom: zoom}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.view = v
	m.hub.Broadcast(WSMessage{Type: MsgSetView, Payload: v})
}

// Zoom returns the last zoom level set on or reported by the map.
func (m *MapView) Zoom() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view.Zoom
}

func (m *MapView) SetLocateButton(state controller.ButtonState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buttons.Locate = state
	m.hub.Broadcast(WSMessage{Type: MsgButtons, Payload: m.buttons})
}

func (m *MapView) SetTrackButton(state controller.ButtonState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buttons.Track = state
	m.hub.Broadcast(WSMessage{Type: MsgButtons, Payload: m.buttons})
}

// Alert shows message in every connected browser.
func (m *MapView) Alert(message string) {
	m.logger.Info().Str("alert", message).Msg("Alert")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hub.Broadcast(WSMessage{Type: MsgAlert, Payload: map[string]string{"message": message}})
}

// Snapshot returns a copy of the current map state.
func (m *MapView) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *MapView) snapshotLocked() Snapshot {
	layers := make([]Layer, 0, len(m.order))
	for _, id := range m.order {
		layers = append(layers, m.layers[id])
	}
	return Snapshot{
		Tiles:   m.tiles,
		View:    m.view,
		Layers:  layers,
		Buttons: m.buttons,
	}
}

// withSnapshot runs fn with the current state while holding the map lock.
// Every mutation broadcasts under the same lock, so a client attached inside
// fn sees each change exactly once: in the snapshot or as a later update.
func (m *MapView) withSnapshot(fn func(WSMessage)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(WSMessage{Type: MsgSnapshot, Payload: m.snapshotLocked()})
}

// handleClientMessage records zoom changes made by the user so later readings
// never zoom the map out.
func (m *MapView) handleClientMessage(msg ClientMessage) {
	switch msg.Type {
	case "zoom":
		if msg.Zoom < 0 {
			return
		}
		m.mu.Lock()
		m.view.Zoom = msg.Zoom
		m.mu.Unlock()
	default:
		m.logger.Debug().Str("type", msg.Type).Msg("Ignoring client message")
	}
}
