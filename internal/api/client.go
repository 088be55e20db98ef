// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Bederf/aimthelaw-sub002/internal/logging"
	"github.com/Bederf/aimthelaw-sub002/internal/model"
	"github.com/Bederf/aimthelaw-sub002/internal/stream"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout bounds most AI operations.
	DefaultTimeout = 30 * time.Second

	// DefaultLongTimeout bounds conversation creation and report generation.
	DefaultLongTimeout = 60 * time.Second

	// DefaultMaxRetries is the retry budget for transient failures on
	// non-streaming calls.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay caps the backoff delay.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize caps quick-action response bodies.
	MaxResponseSize = 10 * 1024 * 1024
)

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		// Per-request timeouts are applied via context.
	}

	// sharedStreamingClient has no timeout: streams are bounded by their
	// request context instead.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
)

// =============================================================================
// CLIENT
// =============================================================================

// Config holds client configuration.
type Config struct {
	BaseURL             string
	APIKey              string
	Model               string
	RequestTimeout      time.Duration
	ConversationTimeout time.Duration
	MaxRetries          int
}

// Client talks to the aimthelaw backend.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	timeout     time.Duration
	longTimeout time.Duration
	maxRetries  int
	log         zerolog.Logger
}

// NewClient creates a backend client.
func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		timeout:     cfg.RequestTimeout,
		longTimeout: cfg.ConversationTimeout,
		maxRetries:  cfg.MaxRetries,
		log:         logging.For("api"),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.longTimeout <= 0 {
		c.longTimeout = DefaultLongTimeout
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	return c
}

// setHeaders applies the standard request headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// =============================================================================
// STREAMING QUERY
// =============================================================================

// HistoryMessage is one conversation-history entry sent with a query.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryRequest is the body of the streaming query endpoint.
type QueryRequest struct {
	Query               string           `json:"query"`
	ClientID            string           `json:"client_id"`
	DocumentID          string           `json:"document_id,omitempty"`
	Documents           []string         `json:"documents"`
	UseRAG              bool             `json:"use_rag"`
	MaxTokens           int              `json:"max_tokens,omitempty"`
	SystemPrompt        string           `json:"system_prompt,omitempty"`
	Model               string           `json:"model,omitempty"`
	ConversationID      string           `json:"conversation_id,omitempty"`
	ConversationHistory []HistoryMessage `json:"conversation_history,omitempty"`
}

// StreamQuery posts a query and returns the decoded chunk stream. Transport
// failures before and during the stream surface as a terminal error chunk on
// the channel, never as a separate error path; retry policy belongs to the
// caller.
func (c *Client) StreamQuery(ctx context.Context, req QueryRequest) <-chan stream.Chunk {
	if req.Model == "" {
		req.Model = c.model
	}

	out := make(chan stream.Chunk, 16)
	go func() {
		defer close(out)

		body, err := json.Marshal(req)
		if err != nil {
			out <- stream.Chunk{Error: err.Error(), Done: true}
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/api/streaming/query", bytes.NewReader(body))
		if err != nil {
			out <- stream.Chunk{Error: err.Error(), Done: true}
			return
		}
		c.setHeaders(httpReq)
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("Cache-Control", "no-cache")

		resp, err := sharedStreamingClient.Do(httpReq)
		if err != nil {
			out <- stream.Chunk{Error: ClassifyTransport(err).UserMessage(), Done: true}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
			out <- stream.Chunk{
				Error: ClassifyStatus(resp.StatusCode, respBody).UserMessage(),
				Done:  true,
			}
			return
		}

		for chunk := range stream.Decode(ctx, resp.Body) {
			out <- chunk
		}
	}()
	return out
}

// =============================================================================
// QUICK ACTIONS
// =============================================================================

// ActionRequest is the common body of the quick-action endpoints.
type ActionRequest struct {
	ClientID   string   `json:"client_id"`
	Documents  []string `json:"documents,omitempty"`
	DocumentID string   `json:"document_id,omitempty"`
	Model      string   `json:"model"`
	// Content carries pre-fetched document text for the actions that
	// accept it.
	Content string `json:"content,omitempty"`
}

// RunQuickAction posts to the action's endpoint and returns the raw JSON
// result for the normalizer. Fails fast with ErrNoDocuments before any
// network call when no documents are attached.
func (c *Client) RunQuickAction(ctx context.Context, action model.QuickAction, req ActionRequest) (map[string]any, error) {
	if len(req.Documents) == 0 && req.DocumentID == "" {
		return nil, ErrNoDocuments
	}
	if req.Model == "" {
		req.Model = c.model
	}

	var result map[string]any
	if err := c.doJSON(ctx, http.MethodPost, action.Path(), req, &result, c.timeout); err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// CONVERSATION ENDPOINTS
// =============================================================================

// CreateConversation creates a conversation record. Uses the long timeout:
// conversation creation is one of the slow paths.
func (c *Client) CreateConversation(ctx context.Context, conv model.Conversation) (model.Conversation, error) {
	var created model.Conversation
	err := c.doJSON(ctx, http.MethodPost, "/api/conversations", conv, &created, c.longTimeout)
	if err != nil {
		return model.Conversation{}, err
	}
	return created, nil
}

// GetConversation looks up a conversation. Not-found is a value, not an
// exception: callers branch on the second return.
func (c *Client) GetConversation(ctx context.Context, id string) (model.Conversation, bool, error) {
	var conv model.Conversation
	err := c.doJSON(ctx, http.MethodGet, "/api/conversations/"+id, nil, &conv, c.timeout)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return model.Conversation{}, false, nil
		}
		return model.Conversation{}, false, err
	}
	return conv, true, nil
}

// UpdateConversation updates the summary/title/status of a conversation.
func (c *Client) UpdateConversation(ctx context.Context, conv model.Conversation) error {
	return c.doJSON(ctx, http.MethodPut, "/api/conversations/"+conv.ID, conv, nil, c.timeout)
}

// UpsertMessage writes a message by id. A uniqueness violation the upsert
// cannot resolve surfaces as ErrDuplicateID so the caller can regenerate the
// id and retry as a plain insert.
func (c *Client) UpsertMessage(ctx context.Context, msg model.Message) error {
	err := c.doJSON(ctx, http.MethodPut,
		"/api/conversations/"+msg.ConversationID+"/messages/"+msg.ID, msg, nil, c.timeout)
	return mapDuplicate(err)
}

// InsertMessage inserts a message without upsert semantics.
func (c *Client) InsertMessage(ctx context.Context, msg model.Message) error {
	err := c.doJSON(ctx, http.MethodPost,
		"/api/conversations/"+msg.ConversationID+"/messages", msg, nil, c.timeout)
	return mapDuplicate(err)
}

// mapDuplicate converts a conflict status into ErrDuplicateID.
func mapDuplicate(err error) error {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		return fmt.Errorf("%w: %s", ErrDuplicateID, apiErr.Message)
	}
	return err
}

// SearchIndexEntry is the secondary search-index record for a conversation.
type SearchIndexEntry struct {
	ConversationID string    `json:"conversation_id"`
	ClientID       string    `json:"client_id"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary"`
	MessageCount   int       `json:"message_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// WriteSearchIndex writes the search-index record for a conversation.
func (c *Client) WriteSearchIndex(ctx context.Context, entry SearchIndexEntry) error {
	return c.doJSON(ctx, http.MethodPut,
		"/api/search-index/"+entry.ConversationID, entry, nil, c.timeout)
}

// =============================================================================
// DOCUMENT ENDPOINTS
// =============================================================================

// ListDocuments returns the client's document records.
func (c *Client) ListDocuments(ctx context.Context, clientID string) ([]model.DocumentRef, error) {
	var out struct {
		Documents []model.DocumentRef `json:"documents"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/documents?client_id="+clientID, nil, &out, c.timeout); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

// ProcessDocument asks the backend to (re)process a stored document.
func (c *Client) ProcessDocument(ctx context.Context, clientID, documentID string) error {
	body := map[string]string{"client_id": clientID, "document_id": documentID}
	return c.doJSON(ctx, http.MethodPost, "/api/process-document", body, nil, c.longTimeout)
}

// ReprocessEmbeddings rebuilds the client's document embeddings.
func (c *Client) ReprocessEmbeddings(ctx context.Context, clientID string) error {
	body := map[string]string{"client_id": clientID}
	return c.doJSON(ctx, http.MethodPost, "/api/reprocess-embeddings", body, nil, c.longTimeout)
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// doJSON performs a JSON request with the given timeout, retrying transient
// failures with exponential backoff. 4xx responses are never retried.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, timeout time.Duration) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ClassifyTransport(ctx.Err())
			case <-time.After(calculateBackoff(attempt)):
			}
		}

		err := c.doOnce(ctx, method, path, body, out, timeout)
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *Error
		if errors.As(err, &apiErr) && !apiErr.IsRetryable() {
			return err
		}
		c.log.Debug().Err(err).Str("path", path).Int("attempt", attempt+1).
			Msg("retrying transient failure")
	}
	return lastErr
}

// doOnce performs a single attempt.
func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, out any, timeout time.Duration) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return ClassifyTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return ClassifyTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ClassifyStatus(resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &Error{
				Kind:    KindAPIResponse,
				Message: "The server returned an unreadable response.",
				Err:     err,
			}
		}
	}
	return nil
}

// calculateBackoff returns the exponential backoff delay for an attempt.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
