package domain

import (
	"sort"
	"strings"
)

// ConversationSeparator joins the two sorted participant identities.
// Participant ids never contain it, see ValidateParticipantID.
const ConversationSeparator = "|"

// ConversationKey identifies a two-party thread regardless of who initiated it.
type ConversationKey string

// NewConversationKey is commutative: NewConversationKey(a, b) == NewConversationKey(b, a).
// For valid ids it is also injective, two distinct pairs never share a key.
func NewConversationKey(a, b string) ConversationKey {
	ids := []string{a, b}
	sort.Strings(ids)
	return ConversationKey(strings.Join(ids, ConversationSeparator))
}

func (k ConversationKey) String() string {
	return string(k)
}
