package controller

import "github.com/benmeehan/geo-locator/pkg/location"

// LayerID identifies an overlay drawn on the map.
type LayerID string

// CircleStyle is the stroke and fill of an accuracy circle.
type CircleStyle struct {
	Color       string  `json:"color"`
	FillOpacity float64 `json:"fillOpacity"`
}

// MapDisplay is the map the controller draws on.
type MapDisplay interface {
	AddMarker(at location.Coordinate, popup string) LayerID
	AddCircle(center location.Coordinate, radius float64, style CircleStyle) LayerID
	RemoveLayer(id LayerID)
	SetView(center location.Coordinate, zoom int)
	Zoom() int
}

// ButtonState is the visible state of a UI trigger.
type ButtonState struct {
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
	Color    string `json:"color,omitempty"`
}

var (
	LocateIdle  = ButtonState{Label: "Show My Location"}
	LocateBusy  = ButtonState{Label: "Locating...", Disabled: true}
	TrackIdle   = ButtonState{Label: "Start Tracking", Color: "#0078d4"}
	TrackActive = ButtonState{Label: "Stop Tracking", Color: "#d44500"}
)

// Controls receives button state changes for the "locate once" and
// "toggle tracking" triggers.
type Controls interface {
	SetLocateButton(state ButtonState)
	SetTrackButton(state ButtonState)
}

// Notifier shows a message to the user.
type Notifier interface {
	Alert(message string)
}

// ReadingSink receives every reading after it has been drawn. Publish must not block.
type ReadingSink interface {
	Publish(reading location.Reading)
}
