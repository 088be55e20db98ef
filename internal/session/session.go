// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Bederf/aimthelaw-sub002/internal/action"
	"github.com/Bederf/aimthelaw-sub002/internal/api"
	"github.com/Bederf/aimthelaw-sub002/internal/bridge"
	"github.com/Bederf/aimthelaw-sub002/internal/chatlog"
	"github.com/Bederf/aimthelaw-sub002/internal/logging"
	"github.com/Bederf/aimthelaw-sub002/internal/model"
	"github.com/Bederf/aimthelaw-sub002/internal/selection"
	"github.com/Bederf/aimthelaw-sub002/internal/store"
	"github.com/Bederf/aimthelaw-sub002/internal/stream"
)

// Streamer is the streaming slice of the API client.
type Streamer interface {
	StreamQuery(ctx context.Context, req api.QueryRequest) <-chan stream.Chunk
}

// Config assembles a session's collaborators.
type Config struct {
	ClientID       string
	ConversationID string

	Streamer Streamer
	Backend  action.Backend
	Bridge   *bridge.Bridge
	Store    *store.Dual

	// UseRAG controls retrieval on streaming queries.
	UseRAG bool

	// Model overrides the backend's default model when set.
	Model string

	// Actions overrides coordinator timing. Zero values take defaults.
	Actions action.CoordinatorConfig
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the conversation orchestrator for one client.
type Session struct {
	mu sync.Mutex

	clientID string
	useRAG   bool
	model    string

	log       *chatlog.Log
	selection *selection.Tracker
	runner    *action.Runner
	guard     *action.NavigationGuard
	streamer  Streamer
	bridge    *bridge.Bridge

	streamCancel context.CancelFunc
	logger       zerolog.Logger
}

// New builds a session, restoring transcript, selection and any surviving
// action marker from the store.
func New(cfg Config) *Session {
	conversationID := cfg.ConversationID
	if conversationID == "" {
		conversationID = model.PendingConversationID
	}

	guard := action.NewNavigationGuard()
	coord := action.NewCoordinator(cfg.Store, cfg.Actions)

	return &Session{
		clientID:  cfg.ClientID,
		useRAG:    cfg.UseRAG,
		model:     cfg.Model,
		log:       chatlog.New(cfg.ClientID, conversationID, cfg.Store),
		selection: selection.NewTracker(cfg.ClientID, cfg.Store),
		runner:    action.NewRunner(cfg.ClientID, cfg.Backend, coord, guard),
		guard:     guard,
		streamer:  cfg.Streamer,
		bridge:    cfg.Bridge,
		logger:    logging.For("session"),
	}
}

// Log exposes the transcript.
func (s *Session) Log() *chatlog.Log { return s.log }

// Selection exposes the document selection tracker.
func (s *Session) Selection() *selection.Tracker { return s.selection }

// Guard exposes the navigation guard for the embedding surface.
func (s *Session) Guard() *action.NavigationGuard { return s.guard }

// ActionInProgress reports whether a quick action is live, including one
// recovered from a previous session.
func (s *Session) ActionInProgress() bool { return s.runner.InProgress() }

// =============================================================================
// SENDING
// =============================================================================

// Send streams a query and resolves it into the transcript. The user message
// and a placeholder are visible immediately; partial content is delivered to
// onPartial as it arrives. The returned message is the final assistant
// message, which is an error message when the stream failed.
func (s *Session) Send(ctx context.Context, query string, onPartial func(content string)) (model.Message, error) {
	// History is captured before the new user message goes in; the query
	// itself travels in its own field.
	history := s.history()

	userMsg := model.NewUserMessage(query)
	userMsg.ConversationID = s.log.ConversationID()
	s.log.Upsert(userMsg)

	placeholder := model.NewPlaceholderMessage("Thinking...")
	placeholder.ConversationID = userMsg.ConversationID
	s.log.Upsert(placeholder)

	streamCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.streamCancel = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		s.streamCancel = nil
		s.mu.Unlock()
	}()

	chunks := s.streamer.StreamQuery(streamCtx, api.QueryRequest{
		Query:               query,
		ClientID:            s.clientID,
		Documents:           s.selection.SelectedIDs(),
		UseRAG:              s.useRAG,
		Model:               s.model,
		ConversationID:      durableID(s.log.ConversationID()),
		ConversationHistory: history,
	})

	content, sources, errMsg := s.consume(chunks, onPartial)

	var final model.Message
	if errMsg != "" && content == "" {
		final = model.NewErrorMessage(errMsg)
	} else {
		final = model.NewAssistantMessage(content)
		if errMsg != "" {
			// Partial answer, then the stream died. Keep what arrived
			// and say so.
			final.Content += "\n\n*" + errMsg + "*"
			final.IsError = true
		}
		if len(sources) > 0 {
			final.Metadata = map[string]any{"sources": sources}
		}
	}
	final.ConversationID = s.log.ConversationID()
	s.log.ReplacePlaceholder(placeholder.ID, final)

	s.syncAsync()
	return final, nil
}

// consume drains the chunk stream, forwarding partial content.
func (s *Session) consume(chunks <-chan stream.Chunk, onPartial func(string)) (string, []stream.Source, string) {
	var content string
	var sources []stream.Source
	var errMsg string

	for chunk := range chunks {
		content += chunk.Content
		sources = append(sources, chunk.Sources...)
		if chunk.Error != "" {
			errMsg = chunk.Error
		}
		if onPartial != nil && chunk.Content != "" {
			onPartial(content)
		}
	}
	return content, sources, errMsg
}

// CancelStream aborts the in-flight streaming query, if any.
func (s *Session) CancelStream() {
	s.mu.Lock()
	cancel := s.streamCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// history converts the transcript into the wire form, skipping placeholders
// and error messages.
func (s *Session) history() []api.HistoryMessage {
	msgs := s.log.Messages()
	history := make([]api.HistoryMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.IsPlaceholder || msg.IsError {
			continue
		}
		history = append(history, api.HistoryMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return history
}

// durableID returns the conversation id for wire use, empty while the
// conversation only exists locally.
func durableID(id string) string {
	if model.IsPendingConversationID(id) {
		return ""
	}
	return id
}

// =============================================================================
// QUICK ACTIONS
// =============================================================================

// RunQuickAction executes a quick action over the current selection and
// resolves it into the transcript. Whatever happens, the placeholder ends up
// replaced: with the normalized result, a cancellation notice, or an error
// message built from the failure.
func (s *Session) RunQuickAction(ctx context.Context, act model.QuickAction) (model.Message, error) {
	placeholder := model.NewPlaceholderMessage("Running " + act.DisplayName() + "...")
	placeholder.ConversationID = s.log.ConversationID()
	s.log.Upsert(placeholder)

	result, err := s.runner.Run(ctx, act, s.selection.Selected())
	if err != nil {
		final := s.failureMessage(act, err)
		final.ConversationID = s.log.ConversationID()
		s.log.ReplacePlaceholder(placeholder.ID, final)
		s.syncAsync()
		return final, err
	}

	final := model.NewAssistantMessage(result.Content)
	final.IsError = result.IsError
	final.Metadata = result.Metadata
	final.ConversationID = s.log.ConversationID()
	s.log.ReplacePlaceholder(placeholder.ID, final)

	s.syncAsync()
	return final, nil
}

// CancelAction aborts the in-flight quick action, if any.
func (s *Session) CancelAction() { s.runner.Cancel() }

// failureMessage maps a quick-action failure to its transcript message.
func (s *Session) failureMessage(act model.QuickAction, err error) model.Message {
	switch {
	case errors.Is(err, action.ErrCancelled):
		return model.NewSystemMessage(act.DisplayName() + " was cancelled.")
	case errors.Is(err, api.ErrNoDocuments):
		return model.NewErrorMessage("No documents are selected. Select at least one document and try again.")
	case errors.Is(err, action.ErrActionInProgress):
		return model.NewErrorMessage("Another action is already in progress. Please wait for it to finish and try again.")
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return model.NewErrorMessage(apiErr.UserMessage())
	}
	return model.NewErrorMessage(act.DisplayName() + " failed: " + err.Error())
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// syncAsync pushes the transcript through the bridge in the background,
// migrating a pending conversation id to the durable one when the backend
// assigns it.
func (s *Session) syncAsync() {
	if s.bridge == nil {
		return
	}
	conversationID := s.log.ConversationID()
	messages := s.log.Messages()

	go func() {
		conv, err := s.bridge.Sync(context.Background(), conversationID, messages, false)
		if err != nil {
			s.logger.Warn().Err(err).Msg("background sync failed")
			return
		}
		if conv.ID != conversationID && !model.IsLocalConversationID(conv.ID) {
			s.log.SetConversationID(conv.ID)
		}
	}()
}

// Flush synchronously persists the transcript and runs one final sync.
// Meant for teardown.
func (s *Session) Flush(ctx context.Context) {
	s.log.Flush()
	if s.bridge == nil {
		return
	}
	if _, err := s.bridge.Sync(ctx, s.log.ConversationID(), s.log.Messages(), true); err != nil {
		s.logger.Warn().Err(err).Msg("final sync failed")
	}
}
