// Package domain contains core concepts of the chat system.
// This file defines Message records and related rules.
// Messages are immutable once routed, except for the read flag.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents one chat message exchanged inside a conversation.
// Text is plaintext in memory and on the wire, ciphertext at rest.
type Message struct {
	ID              uuid.UUID
	ConversationKey ConversationKey
	SenderID        string
	SenderRole      Role
	ReceiverID      string
	Text            string
	Timestamp       time.Time
	Read            bool
}

func NewMessage(key ConversationKey, sender Identity, receiverID, text string, at time.Time) Message {
	return Message{
		ID:              uuid.New(),
		ConversationKey: key,
		SenderID:        sender.ParticipantID,
		SenderRole:      sender.Role,
		ReceiverID:      receiverID,
		Text:            text,
		Timestamp:       at.UTC(),
	}
}
