// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the aimthelaw backend: the streaming
// query endpoint, the per-action quick-action endpoints, and the
// conversation/document endpoints.
//
// Failures are classified into a fixed taxonomy (network, authentication,
// server, apiResponse, validation, tokenLimit, contentFilter, rateLimit,
// timeout, unknown) and carry a user-facing message plus guidance text.
package api
