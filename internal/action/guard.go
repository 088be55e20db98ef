// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package action

import "sync"

// NavigationGuard answers "may the user leave right now". The embedding
// surface asks Allow before navigating; while blocked, the attempt is
// refused and the notice callback fires with the block reason instead of
// the navigation failing silently.
type NavigationGuard struct {
	mu        sync.Mutex
	blocked   bool
	reason    string
	onBlocked func(reason string)
}

// NewNavigationGuard creates an unblocked guard.
func NewNavigationGuard() *NavigationGuard {
	return &NavigationGuard{}
}

// OnBlocked registers a callback fired on every refused navigation attempt.
func (g *NavigationGuard) OnBlocked(fn func(reason string)) {
	g.mu.Lock()
	g.onBlocked = fn
	g.mu.Unlock()
}

// Block refuses navigation until Unblock is called.
func (g *NavigationGuard) Block(reason string) {
	g.mu.Lock()
	g.blocked = true
	g.reason = reason
	g.mu.Unlock()
}

// Unblock allows navigation again.
func (g *NavigationGuard) Unblock() {
	g.mu.Lock()
	g.blocked = false
	g.reason = ""
	g.mu.Unlock()
}

// Blocked reports whether navigation is currently refused.
func (g *NavigationGuard) Blocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blocked
}

// Allow reports whether a navigation attempt may proceed. A refused attempt
// fires the notice callback outside the guard's lock.
func (g *NavigationGuard) Allow() bool {
	g.mu.Lock()
	blocked := g.blocked
	reason := g.reason
	onBlocked := g.onBlocked
	g.mu.Unlock()

	if blocked && onBlocked != nil {
		onBlocked(reason)
	}
	return !blocked
}
