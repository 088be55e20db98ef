// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"github.com/rs/zerolog"

	"github.com/Bederf/aimthelaw-sub002/internal/logging"
)

// =============================================================================
// DUAL-TIER STORE
// =============================================================================

// Dual writes every value to both tiers and reads from the session tier
// first, falling back to the local tier on a miss. Local-tier failures are
// logged, never returned: persistence is best-effort and must not fail the
// in-memory state it mirrors.
type Dual struct {
	session Tier
	local   Tier
	log     zerolog.Logger
}

// NewDual combines a session tier and a local tier.
func NewDual(session, local Tier) *Dual {
	return &Dual{
		session: session,
		local:   local,
		log:     logging.For("store"),
	}
}

// NewEphemeral returns a dual store backed by two in-memory tiers. Useful in
// tests and for callers that opt out of durable state.
func NewEphemeral() *Dual {
	return NewDual(NewMemoryTier(), NewMemoryTier())
}

// Get reads a key, preferring the session tier. A local-tier hit is copied
// back into the session tier so later reads stay fast.
func (d *Dual) Get(key string) ([]byte, bool) {
	if value, ok, err := d.session.Get(key); err == nil && ok {
		return value, true
	}

	value, ok, err := d.local.Get(key)
	if err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("local tier read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	if err := d.session.Put(key, value); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("session tier refresh failed")
	}
	return value, true
}

// Put writes a key to both tiers.
func (d *Dual) Put(key string, value []byte) {
	if err := d.session.Put(key, value); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("session tier write failed")
	}
	if err := d.local.Put(key, value); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("local tier write failed")
	}
}

// Delete removes a key from both tiers.
func (d *Dual) Delete(key string) {
	if err := d.session.Delete(key); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("session tier delete failed")
	}
	if err := d.local.Delete(key); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("local tier delete failed")
	}
}

// Close closes both tiers.
func (d *Dual) Close() error {
	errSession := d.session.Close()
	errLocal := d.local.Close()
	if errLocal != nil {
		return errLocal
	}
	return errSession
}
