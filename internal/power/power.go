// Package power suspends the device after a period without touch input.
package power

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openclaw/kobo-toucharea/internal/toucharea"
)

var (
	ErrSuspendInProgress = errors.New("power: suspend already in progress")
	ErrSuspendBlocked    = errors.New("power: suspend blocked")
)

const (
	defaultWakeGrace = 30 * time.Second
	maxPollInterval  = 5 * time.Second
)

// Manager suspends to RAM once nothing has touched the screen for
// IdleTimeout. A finger on the panel or a gateway command in flight holds
// suspend off, as does the grace period right after a wake.
type Manager struct {
	IdleTimeout    time.Duration
	SuspendEnabled bool
	OnSuspend      func()
	OnResume       func()
	Logger         zerolog.Logger

	now         func() time.Time
	suspendFunc func() error
	wakeGrace   time.Duration
	poll        time.Duration

	initOnce     sync.Once
	mu           sync.Mutex
	lastActivity time.Time
	lastWake     time.Time
	suspending   bool
	touching     bool
	commands     int
}

// ObserveTouch records a pointer event. A press keeps the device awake
// until the matching release or cancel.
func (m *Manager) ObserveTouch(kind toucharea.Kind) {
	m.init()
	m.mu.Lock()
	defer m.mu.Unlock()
	switch kind {
	case toucharea.Press, toucharea.Move:
		m.touching = true
	case toucharea.Release, toucharea.Cancel:
		m.touching = false
	}
	m.lastActivity = m.now()
}

// BeginCommand marks a gateway command as running. The returned func ends
// it and may be called more than once.
func (m *Manager) BeginCommand() func() {
	m.init()
	m.mu.Lock()
	m.commands++
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.commands--
			m.lastActivity = m.now()
			m.mu.Unlock()
		})
	}
}

// Idle reports how long the screen has gone without activity.
func (m *Manager) Idle() time.Duration {
	m.init()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now().Sub(m.lastActivity)
}

func (m *Manager) Suspend() error {
	m.init()
	if !m.SuspendEnabled {
		return nil
	}
	m.mu.Lock()
	if m.suspending {
		m.mu.Unlock()
		return ErrSuspendInProgress
	}
	if err := m.blockedLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.suspending = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.suspending = false
		m.mu.Unlock()
	}()

	if m.OnSuspend != nil {
		m.OnSuspend()
	}
	m.Logger.Info().Msg("suspending")
	if err := m.suspendFunc(); err != nil {
		return err
	}
	m.mu.Lock()
	m.lastWake = m.now()
	m.lastActivity = m.lastWake
	m.mu.Unlock()
	m.Logger.Info().Msg("resumed")
	if m.OnResume != nil {
		m.OnResume()
	}
	return nil
}

func (m *Manager) blockedLocked() error {
	if m.touching || m.commands > 0 {
		return ErrSuspendBlocked
	}
	if !m.lastWake.IsZero() && m.now().Sub(m.lastWake) < m.wakeGrace {
		return ErrSuspendBlocked
	}
	return nil
}

// Run polls the idle time and suspends once it passes IdleTimeout. It
// returns when ctx ends.
func (m *Manager) Run(ctx context.Context) error {
	m.init()
	if !m.SuspendEnabled || m.IdleTimeout <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(m.pollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if m.Idle() < m.IdleTimeout {
				continue
			}
			if err := m.Suspend(); err != nil {
				m.Logger.Debug().Err(err).Msg("idle suspend skipped")
			}
		}
	}
}

func (m *Manager) pollInterval() time.Duration {
	if m.poll > 0 {
		return m.poll
	}
	interval := m.IdleTimeout / 4
	if interval > maxPollInterval {
		interval = maxPollInterval
	}
	if interval <= 0 {
		interval = time.Second
	}
	return interval
}

func (m *Manager) init() {
	m.initOnce.Do(func() {
		if m.now == nil {
			m.now = time.Now
		}
		if m.suspendFunc == nil {
			m.suspendFunc = suspendToRAM
		}
		if m.wakeGrace == 0 {
			m.wakeGrace = defaultWakeGrace
		}
		m.mu.Lock()
		m.lastActivity = m.now()
		m.mu.Unlock()
	})
}

func suspendToRAM() error {
	return os.WriteFile("/sys/power/state", []byte("mem"), 0)
}
