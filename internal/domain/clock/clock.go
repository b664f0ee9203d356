// Package clock provides the authoritative server time.
//
// Every deadline comparison in the ledger and every "time remaining" a client
// computes is measured against the same Clock, so a client that reconciles
// against Service.Now sees auctions close when the ledger closes them.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// System is the wall clock, in UTC.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Manual is a Clock that only moves when told to. Used by tests.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a manual clock starting at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Reading is a server time sample handed to clients.
type Reading struct {
	ServerTime time.Time
	Timestamp  int64 // unix milliseconds
}

// Service is the clock reconciliation service. It is stateless apart from
// the Clock it reads.
type Service struct {
	clock Clock
}

// NewService creates a clock reconciliation service.
func NewService(c Clock) *Service {
	if c == nil {
		c = System{}
	}
	return &Service{clock: c}
}

// Now returns the current server time.
func (s *Service) Now() Reading {
	now := s.clock.Now()
	return Reading{
		ServerTime: now,
		Timestamp:  now.UnixMilli(),
	}
}
