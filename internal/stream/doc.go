// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the backend's server-sent-events style streaming
// protocol ("data: <json>\n\n" frames) into a lazy sequence of chunks.
//
// The decoder never lets a failure escape its boundary: transport errors
// surface as exactly one terminal chunk with the error set, and malformed
// frames are logged and skipped. Retry policy belongs to the caller.
package stream
