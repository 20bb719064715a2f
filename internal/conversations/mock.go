// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversations

import (
	"time"

	"github.com/stellarchat/stellarchat-tui/internal/model"
)

type mockEntry struct {
	id      string
	title   string
	last    string
	minutes int
	unread  int
	botType string
}

var mockEntries = []mockEntry{
	{model.StellarBotID, model.StellarBotTitle, "Olá! Como posso ajudá-lo com a rede Stellar hoje?", 0, 1, model.StellarBotType},
	{"user-1", "Ana Silva", "Oi, tudo bem?", 15, 0, "user"},
	{"user-2", "Carlos Santos", "Vamos nos encontrar hoje?", 30, 2, "user"},
	{"user-3", "Maria Oliveira", "Obrigada pela ajuda!", 45, 0, "user"},
	{"user-4", "João Pereira", "Até mais tarde", 60, 0, "user"},
	{"user-5", "Fernanda Costa", "Perfeito! 👍", 90, 1, "user"},
	{"user-6", "Ricardo Lima", "Pode ser amanhã?", 120, 0, "user"},
	{"user-7", "Juliana Rocha", "Estou chegando", 150, 3, "user"},
	{"user-8", "Pedro Almeida", "Combinado!", 180, 0, "user"},
	{"user-9", "Camila Ferreira", "Vou verificar e te aviso", 210, 0, "user"},
	{"user-10", "Bruno Martins", "Beleza, falamos depois", 240, 1, "user"},
}

// MockConversations returns the offline conversation list with timestamps
// relative to now.
func MockConversations(now time.Time) []model.Conversation {
	out := make([]model.Conversation, 0, len(mockEntries))
	for _, e := range mockEntries {
		ts := now.Add(-time.Duration(e.minutes) * time.Minute)
		out = append(out, model.Conversation{
			ID:              e.id,
			Title:           e.title,
			LastMessage:     e.last,
			LastMessageTime: &ts,
			UnreadCount:     e.unread,
			BotType:         e.botType,
			IsActive:        true,
		})
	}
	return out
}
