// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// ErrorKind classifies a backend failure.
type ErrorKind string

const (
	KindNetwork        ErrorKind = "network"
	KindAuthentication ErrorKind = "authentication"
	KindServer         ErrorKind = "server"
	KindAPIResponse    ErrorKind = "apiResponse"
	KindValidation     ErrorKind = "validation"
	KindTokenLimit     ErrorKind = "tokenLimit"
	KindContentFilter  ErrorKind = "contentFilter"
	KindRateLimit      ErrorKind = "rateLimit"
	KindTimeout        ErrorKind = "timeout"
	KindUnknown        ErrorKind = "unknown"
)

// Sentinel errors for fast-fail and retry branching.
var (
	// ErrNoDocuments is returned before any network call when an operation
	// requires attached documents and none are selected.
	ErrNoDocuments = errors.New("no documents selected")

	// ErrDuplicateID is returned by message upserts when the backend
	// reports a uniqueness violation the upsert did not resolve.
	ErrDuplicateID = errors.New("duplicate message id")
)

// Error is a classified backend failure with a user-facing message and
// contextual guidance.
type Error struct {
	Kind     ErrorKind
	Status   int
	Message  string
	Guidance string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the message shown in the conversation transcript.
func (e *Error) UserMessage() string {
	if e.Guidance != "" {
		return e.Message + " " + e.Guidance
	}
	return e.Message
}

// IsRetryable reports whether a retry could plausibly succeed.
func (e *Error) IsRetryable() bool {
	switch e.Kind {
	case KindNetwork, KindServer, KindRateLimit:
		return true
	default:
		return false
	}
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// backendError is the error envelope some endpoints return.
type backendError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (b backendError) text() string {
	switch {
	case b.Message != "":
		return b.Message
	case b.Error != "":
		return b.Error
	default:
		return b.Detail
	}
}

// ClassifyStatus maps an HTTP status and response body to a taxonomy error.
func ClassifyStatus(status int, body []byte) *Error {
	var envelope backendError
	_ = json.Unmarshal(body, &envelope)
	message := envelope.text()
	lower := strings.ToLower(message)

	switch {
	case status == 401 || status == 403:
		return &Error{
			Kind:     KindAuthentication,
			Status:   status,
			Message:  "Your session is no longer valid.",
			Guidance: "Please sign in again.",
		}
	case status == 429:
		return &Error{
			Kind:     KindRateLimit,
			Status:   status,
			Message:  "Too many requests.",
			Guidance: "Please wait a moment and try again.",
		}
	case status == 413 || strings.Contains(lower, "token limit") ||
		strings.Contains(lower, "context length") ||
		strings.Contains(lower, "maximum context"):
		return &Error{
			Kind:     KindTokenLimit,
			Status:   status,
			Message:  "The selected documents exceed the processing limit.",
			Guidance: "Try selecting fewer or smaller documents.",
		}
	case strings.Contains(lower, "content filter") ||
		strings.Contains(lower, "content policy"):
		return &Error{
			Kind:    KindContentFilter,
			Status:  status,
			Message: "The request was blocked by the content filter.",
		}
	case status == 422:
		return &Error{
			Kind:    KindValidation,
			Status:  status,
			Message: firstNonEmpty(message, "The request was rejected as invalid."),
		}
	case status >= 500:
		return &Error{
			Kind:     KindServer,
			Status:   status,
			Message:  "The server ran into a problem.",
			Guidance: "Please try again shortly.",
		}
	case status >= 400:
		return &Error{
			Kind:    KindAPIResponse,
			Status:  status,
			Message: firstNonEmpty(message, "The request could not be completed."),
		}
	default:
		return &Error{
			Kind:    KindUnknown,
			Status:  status,
			Message: firstNonEmpty(message, "Something went wrong."),
		}
	}
}

// ClassifyTransport maps a transport-level error to a taxonomy error.
// Timeouts are a distinct branch: the request may still be processing
// server-side, and the user message must say so.
func ClassifyTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || isNetTimeout(err) {
		return &Error{
			Kind:     KindTimeout,
			Message:  "The operation took too long and may still be processing.",
			Guidance: "Check back in a moment before retrying.",
			Err:      err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{
			Kind:    KindUnknown,
			Message: "The operation was cancelled.",
			Err:     err,
		}
	}
	return &Error{
		Kind:     KindNetwork,
		Message:  "Could not reach the server.",
		Guidance: "Check your connection and try again.",
		Err:      err,
	}
}

// isNetTimeout reports whether err is a net timeout.
func isNetTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
