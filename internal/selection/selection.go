// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package selection

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Bederf/aimthelaw-sub002/internal/logging"
	"github.com/Bederf/aimthelaw-sub002/internal/model"
	"github.com/Bederf/aimthelaw-sub002/internal/store"
)

// =============================================================================
// TRACKER
// =============================================================================

// Tracker maintains the set of selected documents in selection order.
// Safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	clientID  string
	known     map[string]model.DocumentRef
	selected  []model.DocumentRef
	st        *store.Dual
	onCleared func()
	log       zerolog.Logger
}

// NewTracker creates a tracker for a client, restoring any persisted
// selection.
func NewTracker(clientID string, st *store.Dual) *Tracker {
	t := &Tracker{
		clientID: clientID,
		known:    make(map[string]model.DocumentRef),
		st:       st,
		log:      logging.For("selection"),
	}
	t.restore()
	return t
}

// OnCleared registers a callback fired when the selection is cleared. The
// callback runs outside the tracker's lock.
func (t *Tracker) OnCleared(fn func()) {
	t.mu.Lock()
	t.onCleared = fn
	t.mu.Unlock()
}

// SetKnownDocuments records the client's document list. Already-selected bare
// refs are enriched in place with the full records, and the updated selection
// is persisted.
func (t *Tracker) SetKnownDocuments(docs []model.DocumentRef) {
	t.mu.Lock()
	t.known = make(map[string]model.DocumentRef, len(docs))
	for _, doc := range docs {
		t.known[doc.ID] = doc
	}
	enriched := false
	for i, sel := range t.selected {
		if doc, ok := t.known[sel.ID]; ok && sel.IsBare() {
			t.selected[i] = doc
			enriched = true
		}
	}
	if enriched {
		t.persistLocked()
	}
	t.mu.Unlock()
}

// KnownDocuments returns the recorded document list keyed by id.
func (t *Tracker) KnownDocuments() map[string]model.DocumentRef {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]model.DocumentRef, len(t.known))
	for id, doc := range t.known {
		out[id] = doc
	}
	return out
}

// Toggle flips the selection state of a document id and reports whether the
// document is selected afterwards. Selecting an id already selected is a
// deselect; the full record is attached when the id is known.
func (t *Tracker) Toggle(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, sel := range t.selected {
		if sel.ID == id {
			t.selected = append(t.selected[:i], t.selected[i+1:]...)
			t.persistLocked()
			return false
		}
	}

	ref := model.BareDocumentRef(id)
	if doc, ok := t.known[id]; ok {
		ref = doc
	}
	t.selected = append(t.selected, ref)
	t.persistLocked()
	return true
}

// IsSelected reports whether the document id is currently selected.
func (t *Tracker) IsSelected(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sel := range t.selected {
		if sel.ID == id {
			return true
		}
	}
	return false
}

// Selected returns the selected documents in selection order.
func (t *Tracker) Selected() []model.DocumentRef {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.DocumentRef, len(t.selected))
	copy(out, t.selected)
	return out
}

// SelectedIDs returns the selected document ids in selection order.
func (t *Tracker) SelectedIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return model.DocumentIDs(t.selected)
}

// Count returns the number of selected documents.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.selected)
}

// Clear empties the selection, removes both persisted keys and fires the
// cleared callback.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.selected = nil
	onCleared := t.onCleared
	if t.st != nil {
		t.st.Delete(store.SelectionKey())
		t.st.Delete(store.ClientSelectionKey(t.clientID))
	}
	t.mu.Unlock()

	if onCleared != nil {
		onCleared()
	}
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// persistLocked writes the selection synchronously under both keys with the
// same bytes. Selection changes are rare and small, so the write happens on
// the caller's goroutine rather than in the background.
func (t *Tracker) persistLocked() {
	if t.st == nil {
		return
	}
	// An empty selection leaves no persisted keys, same as Clear, so the
	// two ways of emptying the set are indistinguishable on restore.
	if len(t.selected) == 0 {
		t.st.Delete(store.SelectionKey())
		t.st.Delete(store.ClientSelectionKey(t.clientID))
		return
	}
	data, err := json.Marshal(t.selected)
	if err != nil {
		t.log.Warn().Err(err).Msg("selection not serializable; skipping persist")
		return
	}
	t.st.Put(store.SelectionKey(), data)
	t.st.Put(store.ClientSelectionKey(t.clientID), data)
}

// restore loads a persisted selection. Older persisted forms were a bare id
// array; both shapes are accepted.
func (t *Tracker) restore() {
	if t.st == nil {
		return
	}
	data, ok := t.st.Get(store.SelectionKey())
	if !ok {
		data, ok = t.st.Get(store.ClientSelectionKey(t.clientID))
	}
	if !ok {
		return
	}

	var refs []model.DocumentRef
	if err := json.Unmarshal(data, &refs); err == nil {
		t.selected = refs
		return
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		t.log.Warn().Err(err).Msg("persisted selection unreadable; starting empty")
		return
	}
	for _, id := range ids {
		t.selected = append(t.selected, model.BareDocumentRef(id))
	}
}
