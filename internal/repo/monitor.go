package repo

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Event is a database connectivity transition.
type Event string

const (
	EventConnected    Event = "connected"
	EventError        Event = "error"
	EventDisconnected Event = "disconnected"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Monitor periodically probes the database and notifies listeners on
// connectivity changes. EventError fires on every failed probe; the
// connected/disconnected events fire only on transitions.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration

	mu        sync.RWMutex
	connected bool
	listeners []func(Event, error)
}

// NewMonitor returns a Monitor probing p every interval. Each probe is
// bounded by the smaller of interval and 5s.
func NewMonitor(p Pinger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	timeout := 5 * time.Second
	if interval < timeout {
		timeout = interval
	}
	return &Monitor{pinger: p, interval: interval, timeout: timeout}
}

// OnEvent registers fn. Listeners run synchronously on the probing goroutine.
func (m *Monitor) OnEvent(fn func(Event, error)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Connected reports the result of the most recent probe.
func (m *Monitor) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Check probes once and returns the new connectivity state.
func (m *Monitor) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.pinger.PingContext(pctx)
	cancel()

	m.mu.Lock()
	was := m.connected
	m.connected = err == nil
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	var events []Event
	switch {
	case err == nil && !was:
		events = append(events, EventConnected)
	case err != nil:
		events = append(events, EventError)
		if was {
			events = append(events, EventDisconnected)
		}
	}
	for _, ev := range events {
		for _, fn := range listeners {
			fn(ev, err)
		}
	}
	return err == nil
}

// Run probes immediately and then on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.Check(ctx)
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.Check(ctx)
		}
	}
}
