// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the chat and
// quick-action orchestration core: messages, conversations, document
// references and the quick-action catalogue.
package model
