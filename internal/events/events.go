// Package events defines the immutable event values produced by the map core
// and a small observer registry for dispatching them to the host application.
package events

import (
	"image"

	"go.uber.org/zap"

	"slippymap/internal/projection"
)

// MouseMovedEvent reports the pointer position over the map in both screen
// and geographic coordinates.
type MouseMovedEvent struct {
	Screen image.Point
	LonLat projection.LonLat
}

// ViewportChangeEvent is a snapshot of the viewport after a pan, zoom or
// resize.
type ViewportChangeEvent struct {
	Center projection.LonLat
	Zoom   float64
	Size   image.Point
}

// Manager dispatches events to registered listeners. It is owned by the UI
// context and is not safe for concurrent use.
type Manager struct {
	mouseMoved     []func(MouseMovedEvent)
	viewportChange []func(ViewportChangeEvent)
	log            *zap.Logger
}

func NewManager(log *zap.Logger) *Manager {
	return &Manager{log: log}
}

// OnMouseMoved registers a listener for pointer movement events.
func (m *Manager) OnMouseMoved(fn func(MouseMovedEvent)) {
	m.mouseMoved = append(m.mouseMoved, fn)
}

// OnViewportChange registers a listener for viewport snapshots.
func (m *Manager) OnViewportChange(fn func(ViewportChangeEvent)) {
	m.viewportChange = append(m.viewportChange, fn)
}

// TriggerMouseMoved dispatches the event to every registered listener in
// registration order.
func (m *Manager) TriggerMouseMoved(ev MouseMovedEvent) {
	for _, fn := range m.mouseMoved {
		fn(ev)
	}
}

// TriggerViewportChange dispatches the event to every registered listener in
// registration order.
func (m *Manager) TriggerViewportChange(ev ViewportChangeEvent) {
	m.log.Debug("viewport changed",
		zap.Float64("lon", ev.Center.Lon),
		zap.Float64("lat", ev.Center.Lat),
		zap.Float64("zoom", ev.Zoom),
	)
	for _, fn := range m.viewportChange {
		fn(ev)
	}
}
