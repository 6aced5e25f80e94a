package device

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// EventType classifies device events
type EventType int

const (
	EventConnect EventType = iota
	EventDisconnect
	EventChanged
)

func (t EventType) String() string {
	switch t {
	case EventConnect:
		return "device-connect"
	case EventDisconnect:
		return "device-disconnect"
	case EventChanged:
		return "device-changed"
	default:
		return "unknown"
	}
}

// Event is published by a Notifier. Model is empty when the event carries no features.
type Event struct {
	Type        EventType
	Model       string
	Initialized bool
}

// State is the latest observed device state
type State struct {
	Connected   bool
	Initialized bool
	Model       string
}

// Monitor keeps the latest device state observed from an event stream.
// Readers never block and never mutate it.
type Monitor struct {
	state atomic.Pointer[State]
}

func NewMonitor() *Monitor {
	m := &Monitor{}
	m.state.Store(&State{})
	return m
}

// Latest returns the last observed state
func (m *Monitor) Latest() State {
	return *m.state.Load()
}

// Observe applies a single event
func (m *Monitor) Observe(ev Event) {
	next := m.Latest()
	switch ev.Type {
	case EventConnect:
		next.Connected = true
		next.Initialized = ev.Initialized
	case EventDisconnect:
		next.Connected = false
	case EventChanged:
	}
	if ev.Model != "" {
		next.Model = ev.Model
	}
	m.state.Store(&next)
}

// Run consumes events until the channel closes or ctx is done
func (m *Monitor) Run(ctx context.Context, events <-chan Event) {
	log := log.With().Str("component", "device_monitor").Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.Observe(ev)
			log.Debug().
				Str("event", ev.Type.String()).
				Str("model", ev.Model).
				Msg("Device event observed")
		}
	}
}
