// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatlog

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Bederf/aimthelaw-sub002/internal/logging"
	"github.com/Bederf/aimthelaw-sub002/internal/model"
	"github.com/Bederf/aimthelaw-sub002/internal/store"
)

// =============================================================================
// LOG
// =============================================================================

// Log holds the ordered transcript for one conversation.
// Safe for concurrent use.
type Log struct {
	mu             sync.Mutex
	clientID       string
	conversationID string
	messages       []model.Message

	// version guards background persistence: a write only lands if no
	// newer mutation has happened since it was queued. persistMu holds
	// the version check and the store write together so writes land in
	// version order.
	persistMu sync.Mutex
	version   uint64
	persisted uint64

	st       *store.Dual
	onChange func([]model.Message)
	log      zerolog.Logger
}

// New creates a log bound to a conversation. When the store already holds a
// transcript under this conversation's key it is loaded, so a reload mid-action
// resumes with the messages that were visible before.
func New(clientID, conversationID string, st *store.Dual) *Log {
	l := &Log{
		clientID:       clientID,
		conversationID: conversationID,
		st:             st,
		log:            logging.For("chatlog"),
	}
	l.restore()
	return l
}

// OnChange registers a callback invoked with a snapshot after every mutation.
// The callback runs outside the log's lock.
func (l *Log) OnChange(fn func([]model.Message)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// ConversationID returns the conversation the log is currently bound to.
func (l *Log) ConversationID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conversationID
}

// Messages returns a snapshot of the transcript in order.
func (l *Log) Messages() []model.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Len returns the number of messages in the transcript.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Get returns the message with the given id.
func (l *Log) Get(id string) (model.Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if m.ID == id {
			return m, true
		}
	}
	return model.Message{}, false
}

// =============================================================================
// MUTATION
// =============================================================================

// Upsert inserts a message, or replaces the existing message with the same id
// in place. Replacement keeps the message's position in the transcript, so
// updating a message never reorders the conversation.
func (l *Log) Upsert(msg model.Message) {
	l.mu.Lock()
	replaced := false
	for i, m := range l.messages {
		if m.ID == msg.ID {
			l.messages[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		l.messages = append(l.messages, msg)
	}
	l.afterMutationLocked()
}

// ReplacePlaceholder swaps the placeholder with the given id for the final
// message, keeping the placeholder's position. When the placeholder is gone
// (cleared, or never added) the message is appended instead so the content is
// never lost.
func (l *Log) ReplacePlaceholder(placeholderID string, msg model.Message) {
	msg.IsPlaceholder = false
	l.mu.Lock()
	replaced := false
	for i, m := range l.messages {
		if m.ID == placeholderID {
			l.messages[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		l.messages = append(l.messages, msg)
	}
	l.afterMutationLocked()
}

// Remove deletes the message with the given id. Returns false if no such
// message exists.
func (l *Log) Remove(id string) bool {
	l.mu.Lock()
	for i, m := range l.messages {
		if m.ID == id {
			l.messages = append(l.messages[:i], l.messages[i+1:]...)
			l.afterMutationLocked()
			return true
		}
	}
	l.mu.Unlock()
	return false
}

// Clear empties the transcript and removes the persisted copy.
func (l *Log) Clear() {
	l.mu.Lock()
	l.messages = nil
	l.version++
	key := l.keyLocked()
	onChange := l.onChange
	l.mu.Unlock()

	if l.st != nil {
		l.st.Delete(key)
	}
	if onChange != nil {
		onChange(nil)
	}
}

// SetConversationID rebinds the log to a new conversation id, moving the
// persisted transcript from the old key to the new one. Used when a pending
// conversation receives its server-assigned id.
func (l *Log) SetConversationID(conversationID string) {
	l.mu.Lock()
	if l.conversationID == conversationID {
		l.mu.Unlock()
		return
	}
	oldKey := l.keyLocked()
	l.conversationID = conversationID
	for i := range l.messages {
		l.messages[i].ConversationID = conversationID
	}
	l.afterMutationLocked()

	if l.st != nil {
		l.st.Delete(oldKey)
	}
}

// Flush writes the current transcript synchronously. Meant for shutdown
// paths where the background writer may not get a chance to run.
func (l *Log) Flush() {
	l.mu.Lock()
	version := l.version
	data, err := json.Marshal(l.snapshotLocked())
	key := l.keyLocked()
	l.mu.Unlock()

	if err != nil || l.st == nil {
		return
	}
	l.writeIfCurrent(version, key, data)
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func (l *Log) keyLocked() string {
	return store.MessageLogKey(l.clientID, l.conversationID)
}

func (l *Log) snapshotLocked() []model.Message {
	out := make([]model.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// afterMutationLocked bumps the version, queues a background persist and
// fires the change callback. Called with l.mu held; releases it.
func (l *Log) afterMutationLocked() {
	l.version++
	version := l.version
	snapshot := l.snapshotLocked()
	key := l.keyLocked()
	onChange := l.onChange
	l.mu.Unlock()

	if l.st != nil {
		go l.persist(version, key, snapshot)
	}
	if onChange != nil {
		onChange(snapshot)
	}
}

func (l *Log) persist(version uint64, key string, snapshot []model.Message) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		l.log.Warn().Err(err).Msg("transcript not serializable; skipping persist")
		return
	}
	l.writeIfCurrent(version, key, data)
}

// writeIfCurrent drops the write when a newer mutation has already been
// queued, so out-of-order goroutine scheduling cannot persist a stale
// transcript over a fresh one. The store write happens under persistMu:
// checking the version but writing outside the lock would let a stale
// write that passed its check land after a newer one finished.
func (l *Log) writeIfCurrent(version uint64, key string, data []byte) {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	l.mu.Lock()
	current := version == l.version && version > l.persisted
	if current {
		l.persisted = version
	}
	l.mu.Unlock()

	if !current {
		return
	}
	l.st.Put(key, data)
}

// restore loads a previously persisted transcript for this conversation.
func (l *Log) restore() {
	if l.st == nil {
		return
	}
	data, ok := l.st.Get(store.MessageLogKey(l.clientID, l.conversationID))
	if !ok {
		return
	}
	var messages []model.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		l.log.Warn().Err(err).Msg("persisted transcript unreadable; starting empty")
		return
	}
	l.messages = messages
}
