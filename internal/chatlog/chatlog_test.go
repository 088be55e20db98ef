// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatlog

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bederf/aimthelaw-sub002/internal/model"
	"github.com/Bederf/aimthelaw-sub002/internal/store"
)

func TestUpsertPreservesPosition(t *testing.T) {
	l := New("client-1", "conv-1", nil)
	first := model.NewUserMessage("first")
	second := model.NewAssistantMessage("second")
	third := model.NewUserMessage("third")
	l.Upsert(first)
	l.Upsert(second)
	l.Upsert(third)

	updated := second
	updated.Content = "second, revised"
	l.Upsert(updated)

	msgs := l.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second, revised", msgs[1].Content)
	assert.Equal(t, "third", msgs[2].Content)
}

func TestUpsertAppendsUnknownID(t *testing.T) {
	l := New("client-1", "conv-1", nil)
	l.Upsert(model.NewUserMessage("hello"))
	l.Upsert(model.NewAssistantMessage("hi"))

	assert.Equal(t, 2, l.Len())
}

func TestReplacePlaceholder(t *testing.T) {
	l := New("client-1", "conv-1", nil)
	l.Upsert(model.NewUserMessage("question"))
	placeholder := model.NewPlaceholderMessage("Working on it...")
	l.Upsert(placeholder)
	l.Upsert(model.NewUserMessage("follow-up"))

	final := model.NewAssistantMessage("the real answer")
	l.ReplacePlaceholder(placeholder.ID, final)

	msgs := l.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "the real answer", msgs[1].Content)
	assert.False(t, msgs[1].IsPlaceholder)
}

func TestReplacePlaceholderMissingAppends(t *testing.T) {
	l := New("client-1", "conv-1", nil)
	l.Upsert(model.NewUserMessage("question"))

	final := model.NewAssistantMessage("late answer")
	l.ReplacePlaceholder("no-such-id", final)

	msgs := l.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "late answer", msgs[1].Content)
}

func TestRemove(t *testing.T) {
	l := New("client-1", "conv-1", nil)
	msg := model.NewUserMessage("oops")
	l.Upsert(msg)

	assert.True(t, l.Remove(msg.ID))
	assert.False(t, l.Remove(msg.ID))
	assert.Equal(t, 0, l.Len())
}

func TestPersistAndRestore(t *testing.T) {
	st := store.NewEphemeral()
	l := New("client-1", "conv-1", st)
	l.Upsert(model.NewUserMessage("persisted question"))
	l.Upsert(model.NewAssistantMessage("persisted answer"))
	l.Flush()

	reloaded := New("client-1", "conv-1", st)
	msgs := reloaded.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "persisted question", msgs[0].Content)
	assert.Equal(t, "persisted answer", msgs[1].Content)
}

func TestClearRemovesPersistedCopy(t *testing.T) {
	st := store.NewEphemeral()
	l := New("client-1", "conv-1", st)
	l.Upsert(model.NewUserMessage("gone soon"))
	l.Flush()
	l.Clear()

	assert.Equal(t, 0, l.Len())
	_, ok := st.Get(store.MessageLogKey("client-1", "conv-1"))
	assert.False(t, ok)
}

func TestSetConversationIDMigratesKey(t *testing.T) {
	st := store.NewEphemeral()
	l := New("client-1", model.PendingConversationID, st)
	l.Upsert(model.NewUserMessage("early message"))
	l.Flush()

	l.SetConversationID("conv-real")
	l.Flush()

	_, ok := st.Get(store.MessageLogKey("client-1", model.PendingConversationID))
	assert.False(t, ok, "old key should be removed")

	reloaded := New("client-1", "conv-real", st)
	msgs := reloaded.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "conv-real", msgs[0].ConversationID)
}

func TestOnChangeFires(t *testing.T) {
	l := New("client-1", "conv-1", nil)
	var got []model.Message
	l.OnChange(func(msgs []model.Message) { got = msgs })

	l.Upsert(model.NewUserMessage("notify me"))

	require.Len(t, got, 1)
	assert.Equal(t, "notify me", got[0].Content)
}

// jitterTier records every write in order, delaying some of them so racing
// persist goroutines would land out of order if nothing serialized them.
type jitterTier struct {
	mu     sync.Mutex
	writes [][]byte
	values map[string][]byte
	n      int
}

func newJitterTier() *jitterTier {
	return &jitterTier{values: make(map[string][]byte)}
}

func (t *jitterTier) Get(key string) ([]byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.values[key]
	return v, ok, nil
}

func (t *jitterTier) Put(key string, value []byte) error {
	t.mu.Lock()
	t.n++
	delay := t.n%2 == 0
	t.mu.Unlock()

	if delay {
		time.Sleep(time.Millisecond)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append(t.writes, value)
	t.values[key] = value
	return nil
}

func (t *jitterTier) Delete(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.values, key)
	return nil
}

func (t *jitterTier) Close() error { return nil }

func TestPersistedTranscriptNeverRegresses(t *testing.T) {
	tier := newJitterTier()
	st := store.NewDual(tier, store.NewMemoryTier())
	l := New("client-1", "conv-1", st)

	const total = 20
	for i := 0; i < total; i++ {
		l.Upsert(model.NewUserMessage(fmt.Sprintf("message %d", i)))
	}
	l.Flush()

	tier.mu.Lock()
	defer tier.mu.Unlock()
	require.NotEmpty(t, tier.writes)

	prev := 0
	for i, data := range tier.writes {
		var msgs []model.Message
		require.NoError(t, json.Unmarshal(data, &msgs))
		assert.GreaterOrEqual(t, len(msgs), prev,
			"write %d persisted a smaller transcript than an earlier write", i)
		prev = len(msgs)
	}

	var final []model.Message
	require.NoError(t, json.Unmarshal(tier.writes[len(tier.writes)-1], &final))
	assert.Len(t, final, total, "last durable write must hold the full transcript")
}
