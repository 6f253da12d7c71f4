// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable pieces of the educagestao terminal
// UI: the header, the status bar, auto-dismissing toasts and the centered
// notice overlay used for sign-out and session expiry.
//
// Components hold no references to the session manager. The screens feed
// them plain values and route their tea messages back to them.
package components
