// Package calls keeps the clock of paid video calls: a short connecting
// phase, the purchased minutes, then a brief ended phase before the call is
// forgotten.
package calls

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseConnecting Phase = "connecting"
	PhaseActive     Phase = "active"
	PhaseEnded      Phase = "ended"
)

const (
	DefaultConnectDelay = 10 * time.Second
	DefaultLinger       = 5 * time.Second
)

var ErrInvalidMinutes = errors.New("call minutes must be positive")

// Status is a point-in-time view of a call.
type Status struct {
	Phase            Phase     `json:"phase"`
	Minutes          int       `json:"minutes"`
	StartedAt        time.Time `json:"started_at"`
	ElapsedSeconds   int       `json:"elapsed_seconds"`
	RemainingSeconds int       `json:"remaining_seconds"`
}

// Config tunes the call timer. A zero ConnectDelay means DefaultConnectDelay;
// SkipConnect starts calls directly in the active phase.
type Config struct {
	ConnectDelay time.Duration
	SkipConnect  bool
	Linger       time.Duration
	Now          func() time.Time
}

type call struct {
	minutes   int
	startedAt time.Time
	endedAt   time.Time
}

func (c *call) duration() time.Duration { return time.Duration(c.minutes) * time.Minute }

// Manager tracks at most one call per storefront. Phases are derived from the
// clock on every read, so no timers are involved.
type Manager struct {
	cfg Config

	mu    sync.Mutex
	calls map[uuid.UUID]*call
}

func NewManager(cfg Config) *Manager {
	switch {
	case cfg.SkipConnect:
		cfg.ConnectDelay = 0
	case cfg.ConnectDelay <= 0:
		cfg.ConnectDelay = DefaultConnectDelay
	}
	if cfg.Linger <= 0 {
		cfg.Linger = DefaultLinger
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{cfg: cfg, calls: make(map[uuid.UUID]*call)}
}

// Start begins a call for the storefront, replacing any previous one.
func (m *Manager) Start(storefrontID uuid.UUID, minutes int) (Status, error) {
	if minutes <= 0 {
		return Status{}, ErrInvalidMinutes
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.cfg.Now()
	c := &call{minutes: minutes, startedAt: now}
	m.calls[storefrontID] = c
	log.Printf("[Call] %s: %d min call started", storefrontID, minutes)
	return m.statusLocked(c, now), nil
}

// Get reports the storefront's call. It returns false when there is none or
// the call ended longer than the linger period ago.
func (m *Manager) Get(storefrontID uuid.UUID) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.calls[storefrontID]
	if !ok {
		return Status{}, false
	}
	now := m.cfg.Now()
	if m.expiredLocked(c, now) {
		delete(m.calls, storefrontID)
		return Status{}, false
	}
	return m.statusLocked(c, now), true
}

// End hangs up the storefront's call early.
func (m *Manager) End(storefrontID uuid.UUID) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.calls[storefrontID]
	if !ok {
		return Status{}, false
	}
	now := m.cfg.Now()
	if m.expiredLocked(c, now) {
		delete(m.calls, storefrontID)
		return Status{}, false
	}
	if c.endedAt.IsZero() && now.Before(m.naturalEnd(c)) {
		c.endedAt = now
		log.Printf("[Call] %s: ended by caller", storefrontID)
	}
	return m.statusLocked(c, now), true
}

// Remove forgets the storefront's call.
func (m *Manager) Remove(storefrontID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.calls, storefrontID)
}

// Sweep drops calls whose linger period is over and reports how many.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.cfg.Now()
	removed := 0
	for id, c := range m.calls {
		if m.expiredLocked(c, now) {
			delete(m.calls, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) naturalEnd(c *call) time.Time {
	return c.startedAt.Add(m.cfg.ConnectDelay + c.duration())
}

func (m *Manager) endOf(c *call) time.Time {
	if !c.endedAt.IsZero() {
		return c.endedAt
	}
	return m.naturalEnd(c)
}

func (m *Manager) expiredLocked(c *call, now time.Time) bool {
	return !now.Before(m.endOf(c).Add(m.cfg.Linger))
}

func (m *Manager) statusLocked(c *call, now time.Time) Status {
	st := Status{Minutes: c.minutes, StartedAt: c.startedAt}
	connected := c.startedAt.Add(m.cfg.ConnectDelay)
	end := m.endOf(c)

	switch {
	case !now.Before(end):
		st.Phase = PhaseEnded
		if end.After(connected) {
			st.ElapsedSeconds = int(end.Sub(connected) / time.Second)
		}
	case now.Before(connected):
		st.Phase = PhaseConnecting
		st.RemainingSeconds = int(c.duration() / time.Second)
	default:
		elapsed := now.Sub(connected)
		st.Phase = PhaseActive
		st.ElapsedSeconds = int(elapsed / time.Second)
		st.RemainingSeconds = int((c.duration() - elapsed + time.Second - 1) / time.Second)
	}
	return st
}
