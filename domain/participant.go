// Package domain contains core concepts of the chat system.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"care-chat/errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleDoctor Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleDoctor
}

// Identity is what the auth collaborator vouches for after verifying a token.
type Identity struct {
	ParticipantID string
	Role          Role
}

// ValidateParticipantID rejects ids that are empty, contain the conversation
// separator or any space or control character.
func ValidateParticipantID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", errors.ErrInvalidParticipantID)
	}
	if strings.Contains(id, ConversationSeparator) {
		return fmt.Errorf("%w: %q contains %q", errors.ErrInvalidParticipantID, id, ConversationSeparator)
	}
	if strings.ContainsFunc(id, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) {
		return fmt.Errorf("%w: %q contains a space or control character", errors.ErrInvalidParticipantID, id)
	}
	return nil
}

// Participant is a directory entry used to validate a conversation counterpart.
type Participant struct {
	ID        string
	Role      Role
	Name      string
	CreatedAt time.Time
}

// Pair names the two endpoints of a doctor/user conversation as given on connection.
type Pair struct {
	DoctorID string
	UserID   string
}

// Validate checks both ids and that they name two different participants.
func (p Pair) Validate() error {
	if err := ValidateParticipantID(p.DoctorID); err != nil {
		return err
	}
	if err := ValidateParticipantID(p.UserID); err != nil {
		return err
	}
	if p.DoctorID == p.UserID {
		return fmt.Errorf("%w: %s cannot talk to itself", errors.ErrInvalidParticipantID, p.DoctorID)
	}
	return nil
}

func (p Pair) Key() ConversationKey {
	return NewConversationKey(p.DoctorID, p.UserID)
}

// Counterpart returns the other endpoint of the pair, false when id is not part of it.
func (p Pair) Counterpart(id string) (string, bool) {
	switch id {
	case p.DoctorID:
		return p.UserID, true
	case p.UserID:
		return p.DoctorID, true
	default:
		return "", false
	}
}

// RoleOf tags a sender by its place in the pair.
func (p Pair) RoleOf(senderID string) Role {
	if senderID == p.DoctorID {
		return RoleDoctor
	}
	return RoleUser
}

// Admits reports whether identity names one endpoint of the pair in the role
// that endpoint holds.
func (p Pair) Admits(identity Identity) bool {
	if _, ok := p.Counterpart(identity.ParticipantID); !ok {
		return false
	}
	return p.RoleOf(identity.ParticipantID) == identity.Role
}

// Tag fills the sender role of records stored without one.
func (p Pair) Tag(m Message) Message {
	if !m.SenderRole.Valid() {
		m.SenderRole = p.RoleOf(m.SenderID)
	}
	return m
}
