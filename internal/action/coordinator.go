// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package action

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Bederf/aimthelaw-sub002/internal/logging"
	"github.com/Bederf/aimthelaw-sub002/internal/model"
	"github.com/Bederf/aimthelaw-sub002/internal/store"
)

// ErrActionInProgress is returned by Begin while another action holds the
// session.
var ErrActionInProgress = errors.New("a quick action is already in progress")

// Default coordinator timing.
const (
	// DefaultStaleAfter is the age past which an in-progress marker is
	// treated as abandoned when observed (reload, status checks).
	DefaultStaleAfter = 150 * time.Second

	// DefaultBeginStale is the lighter threshold used when starting a new
	// action: a persisted marker older than this no longer blocks.
	DefaultBeginStale = 30 * time.Second

	// DefaultReleaseDelay keeps the marker alive briefly after completion
	// so a trailing consumer still sees the in-progress state.
	DefaultReleaseDelay = 3 * time.Second
)

// Marker is the persisted record of an action in progress.
type Marker struct {
	Action      model.QuickAction `json:"action"`
	StartedAt   time.Time         `json:"started_at"`
	DocumentIDs []string          `json:"document_ids,omitempty"`
}

// Age returns how long ago the marker was written.
func (m Marker) Age(now time.Time) time.Duration {
	return now.Sub(m.StartedAt)
}

// =============================================================================
// COORDINATOR
// =============================================================================

// CoordinatorConfig overrides the coordinator's timing. Zero values take the
// defaults.
type CoordinatorConfig struct {
	StaleAfter   time.Duration
	BeginStale   time.Duration
	ReleaseDelay time.Duration
}

// Coordinator enforces the one-action-at-a-time rule and owns the persisted
// marker. Callers never touch the storage key directly. Safe for concurrent
// use.
type Coordinator struct {
	mu sync.Mutex
	st *store.Dual

	active       bool
	marker       Marker
	holds        int
	pendingClear bool
	// clearAt is when a pending clear becomes eligible. A hold released
	// before this point must not shortcut the release delay.
	clearAt time.Time

	staleAfter   time.Duration
	beginStale   time.Duration
	releaseDelay time.Duration

	now func() time.Time
	log zerolog.Logger
}

// NewCoordinator creates a coordinator backed by the given store.
func NewCoordinator(st *store.Dual, cfg CoordinatorConfig) *Coordinator {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.BeginStale <= 0 {
		cfg.BeginStale = DefaultBeginStale
	}
	if cfg.ReleaseDelay <= 0 {
		cfg.ReleaseDelay = DefaultReleaseDelay
	}
	return &Coordinator{
		st:           st,
		staleAfter:   cfg.StaleAfter,
		beginStale:   cfg.BeginStale,
		releaseDelay: cfg.ReleaseDelay,
		now:          time.Now,
		log:          logging.For("action"),
	}
}

// Begin claims the session for an action and persists the marker. A live
// session, or a persisted marker younger than the begin threshold, rejects
// the claim; an older persisted marker is treated as abandoned and cleared.
func (c *Coordinator) Begin(action model.QuickAction, documentIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.active && c.marker.Age(now) <= c.staleAfter {
		return ErrActionInProgress
	}
	if !c.active {
		if persisted, ok := c.loadLocked(); ok {
			if persisted.Age(now) <= c.beginStale {
				return ErrActionInProgress
			}
			c.log.Info().Str("action", persisted.Action.String()).
				Dur("age", persisted.Age(now)).
				Msg("clearing abandoned action marker")
		}
	}

	c.marker = Marker{Action: action, StartedAt: now, DocumentIDs: documentIDs}
	c.active = true
	c.pendingClear = false
	c.persistLocked()
	return nil
}

// Active returns the current marker. A persisted marker from a previous
// session is honored until it goes stale; a stale one is cleared on sight.
func (c *Coordinator) Active() (Marker, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return c.marker, true
	}
	persisted, ok := c.loadLocked()
	if !ok {
		return Marker{}, false
	}
	if c.IsStale(persisted) {
		c.clearLocked()
		return Marker{}, false
	}
	return persisted, true
}

// IsStale reports whether a marker is past the observation threshold.
func (c *Coordinator) IsStale(m Marker) bool {
	return m.Age(c.now()) > c.staleAfter
}

// Complete ends the session normally. The marker survives for the release
// delay, and for as long as any hold is outstanding, before it is cleared.
func (c *Coordinator) Complete() { c.finish() }

// Fail ends the session after an error. Same release behavior as Complete.
func (c *Coordinator) Fail() { c.finish() }

// Cancel ends the session after a user cancellation. The marker is cleared
// immediately: nothing trailing a cancelled action needs it.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// ForceClear drops the session and marker unconditionally.
func (c *Coordinator) ForceClear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// Hold keeps the marker alive past the release delay until the returned
// release function is called. For consumers that need the in-progress
// semantics to outlast the action itself.
func (c *Coordinator) Hold() (release func()) {
	c.mu.Lock()
	c.holds++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.holds--
			if c.holds == 0 && c.pendingClear && !c.now().Before(c.clearAt) {
				c.clearLocked()
			}
		})
	}
}

func (c *Coordinator) finish() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.pendingClear = true
	c.clearAt = c.now().Add(c.releaseDelay)
	started := c.marker.StartedAt
	c.mu.Unlock()

	time.AfterFunc(c.releaseDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// A new action may have claimed the session during the delay.
		if !c.pendingClear || !c.marker.StartedAt.Equal(started) {
			return
		}
		if c.holds > 0 {
			return
		}
		c.clearLocked()
	})
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func (c *Coordinator) persistLocked() {
	if c.st == nil {
		return
	}
	data, err := json.Marshal(c.marker)
	if err != nil {
		return
	}
	c.st.Put(store.ActionMarkerKey(), data)
}

func (c *Coordinator) loadLocked() (Marker, bool) {
	if c.st == nil {
		return Marker{}, false
	}
	data, ok := c.st.Get(store.ActionMarkerKey())
	if !ok {
		return Marker{}, false
	}
	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		c.log.Warn().Err(err).Msg("persisted action marker unreadable; clearing")
		c.st.Delete(store.ActionMarkerKey())
		return Marker{}, false
	}
	return m, true
}

func (c *Coordinator) clearLocked() {
	c.active = false
	c.pendingClear = false
	c.marker = Marker{}
	if c.st != nil {
		c.st.Delete(store.ActionMarkerKey())
	}
}
