// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package bridge

import (
	"context"
	"errors"
	"hash/fnv"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Bederf/aimthelaw-sub002/internal/api"
	"github.com/Bederf/aimthelaw-sub002/internal/convstore"
	"github.com/Bederf/aimthelaw-sub002/internal/logging"
	"github.com/Bederf/aimthelaw-sub002/internal/model"
)

// indexDebounce is the window within which an unchanged conversation is not
// re-indexed.
const indexDebounce = 30 * time.Second

// RemoteStore is the slice of the API client the bridge writes through.
type RemoteStore interface {
	CreateConversation(ctx context.Context, conv model.Conversation) (model.Conversation, error)
	GetConversation(ctx context.Context, id string) (model.Conversation, bool, error)
	UpdateConversation(ctx context.Context, conv model.Conversation) error
	UpsertMessage(ctx context.Context, msg model.Message) error
	InsertMessage(ctx context.Context, msg model.Message) error
	WriteSearchIndex(ctx context.Context, entry api.SearchIndexEntry) error
}

// =============================================================================
// BRIDGE
// =============================================================================

type indexStamp struct {
	at           time.Time
	messageCount int
}

// Bridge mirrors the transcript into the backend's conversation store and
// search index, and into the local file mirror when one is configured.
// Safe for concurrent use.
type Bridge struct {
	mu sync.Mutex
	// synced maps message id to the fingerprint of the last revision
	// written remotely. A message edited in place under the same id gets
	// a new fingerprint and is pushed again.
	synced    map[string]string
	lastIndex map[string]indexStamp

	clientID string
	remote   RemoteStore
	mirror   *convstore.Mirror
	limiter  *rate.Limiter
	now      func() time.Time
	log      zerolog.Logger
}

// New creates a bridge for a client. The mirror may be nil.
func New(clientID string, remote RemoteStore, mirror *convstore.Mirror) *Bridge {
	return &Bridge{
		synced:    make(map[string]string),
		lastIndex: make(map[string]indexStamp),
		clientID:  clientID,
		remote:    remote,
		mirror:    mirror,
		// Index writes are render-driven; cap the global rate on top of
		// the per-conversation debounce.
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		now:     time.Now,
		log:     logging.For("bridge"),
	}
}

// Mirror returns the local conversation mirror, nil when none is configured.
// Callers use it for offline listing, search and export.
func (b *Bridge) Mirror() *convstore.Mirror { return b.mirror }

// EnsureConversation resolves a durable conversation for the transcript. A
// pending or local id gets a backend record created for it; when the backend
// refuses, a local id keeps the session usable and the bridge retries on a
// later call. An existing conversation has its rolling summary refreshed.
func (b *Bridge) EnsureConversation(ctx context.Context, conversationID string, messages []model.Message) (model.Conversation, error) {
	if b.needsCreation(conversationID) {
		return b.createConversation(ctx, messages)
	}

	conv, found, err := b.remote.GetConversation(ctx, conversationID)
	if err != nil {
		return model.Conversation{}, err
	}
	if !found {
		b.log.Warn().Str("conversation_id", conversationID).
			Msg("conversation missing on backend; creating a new one")
		return b.createConversation(ctx, messages)
	}

	conv.Summary = model.RollingSummary(messages)
	conv.UpdatedAt = b.now()
	if err := b.remote.UpdateConversation(ctx, conv); err != nil {
		b.log.Warn().Err(err).Str("conversation_id", conv.ID).
			Msg("conversation summary not updated")
	}
	return conv, nil
}

func (b *Bridge) needsCreation(conversationID string) bool {
	return model.IsPendingConversationID(conversationID)
}

func (b *Bridge) createConversation(ctx context.Context, messages []model.Message) (model.Conversation, error) {
	conv := model.Conversation{
		ClientID: b.clientID,
		Title:    model.DeriveTitle(messages),
		Summary:  model.RollingSummary(messages),
		Status:   model.StatusActive,
	}
	created, err := b.remote.CreateConversation(ctx, conv)
	if err != nil {
		conv.ID = model.NewLocalConversationID()
		b.log.Warn().Err(err).Str("conversation_id", conv.ID).
			Msg("backend conversation creation failed; continuing locally")
		return conv, nil
	}
	return created, nil
}

// =============================================================================
// MESSAGE SYNC
// =============================================================================

// SyncMessages upserts the transcript's messages, skipping placeholders and
// messages already synced. An id collision is resolved by regenerating the
// id with a suffix and inserting; other failures are logged and the message
// stays eligible for the next sync. Returns the number of messages written
// and the last error seen.
func (b *Bridge) SyncMessages(ctx context.Context, conversationID string, messages []model.Message) (int, error) {
	written := 0
	var lastErr error

	for _, msg := range messages {
		if msg.IsPlaceholder {
			continue
		}
		fp := syncFingerprint(msg)
		b.mu.Lock()
		done := b.synced[msg.ID] == fp
		b.mu.Unlock()
		if done {
			continue
		}

		msg.ConversationID = conversationID
		if err := b.writeMessage(ctx, msg); err != nil {
			b.log.Warn().Err(err).Str("message_id", msg.ID).Msg("message not synced")
			lastErr = err
			continue
		}

		b.mu.Lock()
		b.synced[msg.ID] = fp
		b.mu.Unlock()
		written++
	}
	return written, lastErr
}

// syncFingerprint identifies a revision of a message. An in-place content
// edit changes the fingerprint even though the id stays the same.
func syncFingerprint(msg model.Message) string {
	h := fnv.New64a()
	io.WriteString(h, string(msg.Role))
	io.WriteString(h, "\x00")
	io.WriteString(h, msg.Content)
	if msg.IsError {
		io.WriteString(h, "\x00error")
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

func (b *Bridge) writeMessage(ctx context.Context, msg model.Message) error {
	err := b.remote.UpsertMessage(ctx, msg)
	if !errors.Is(err, api.ErrDuplicateID) {
		return err
	}

	// The id belongs to a different conversation's message. Keep the
	// content, take a fresh suffixed id, and insert.
	original := msg.ID
	msg.ID = original + "_" + uuid.NewString()[:8]
	b.log.Info().Str("message_id", original).Str("new_id", msg.ID).
		Msg("duplicate message id; regenerated")
	return b.remote.InsertMessage(ctx, msg)
}

// =============================================================================
// SEARCH INDEX
// =============================================================================

// SyncSearchIndex writes the conversation's search-index entry. A write is
// skipped when the same conversation was indexed within the debounce window
// with the same message count, unless force is set. Skips are not errors.
func (b *Bridge) SyncSearchIndex(ctx context.Context, conv model.Conversation, messageCount int, force bool) error {
	b.mu.Lock()
	stamp, seen := b.lastIndex[conv.ID]
	now := b.now()
	if !force && seen && now.Sub(stamp.at) < indexDebounce && stamp.messageCount == messageCount {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if !force && !b.limiter.Allow() {
		b.log.Debug().Str("conversation_id", conv.ID).Msg("search index write rate-limited")
		return nil
	}

	entry := api.SearchIndexEntry{
		ConversationID: conv.ID,
		ClientID:       b.clientID,
		Title:          conv.Title,
		Summary:        conv.Summary,
		MessageCount:   messageCount,
		UpdatedAt:      now,
	}
	if err := b.remote.WriteSearchIndex(ctx, entry); err != nil {
		b.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("search index not written")
		return err
	}

	b.mu.Lock()
	b.lastIndex[conv.ID] = indexStamp{at: now, messageCount: messageCount}
	b.mu.Unlock()
	return nil
}

// =============================================================================
// FULL SYNC
// =============================================================================

// Sync runs the whole pipeline: resolve the conversation, push unsynced
// messages, refresh the search index, and update the local mirror. Local
// mirror failures only log; the returned conversation is always usable.
func (b *Bridge) Sync(ctx context.Context, conversationID string, messages []model.Message, force bool) (model.Conversation, error) {
	conv, err := b.EnsureConversation(ctx, conversationID, messages)
	if err != nil {
		return model.Conversation{}, err
	}

	if !model.IsLocalConversationID(conv.ID) {
		if _, err := b.SyncMessages(ctx, conv.ID, messages); err != nil {
			b.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("partial message sync")
		}
		// Best-effort; failures are logged and the index catches up on
		// the next sync.
		_ = b.SyncSearchIndex(ctx, conv, countSubstantive(messages), force)
	}

	if b.mirror != nil {
		if err := b.mirror.Save(conv, messages); err != nil {
			b.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("local mirror not updated")
		}
	}
	return conv, nil
}

func countSubstantive(messages []model.Message) int {
	n := 0
	for _, msg := range messages {
		if !msg.IsPlaceholder {
			n++
		}
	}
	return n
}
