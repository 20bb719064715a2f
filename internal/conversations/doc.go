// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversations keeps the conversation list shown in the sidebar.
//
// The list comes from the backend when it answers. When it does not, the
// service degrades to a built-in mock list (the Stellar bot plus ten
// decorative contacts) so the interface stays usable offline.
package conversations
