package domain

import (
	"care-chat/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConversationKey_IsCommutative(t *testing.T) {
	req := require.New(t)
	req.Equal(NewConversationKey("U1", "D1"), NewConversationKey("D1", "U1"))
	req.Equal(ConversationKey("D1|U1"), NewConversationKey("U1", "D1"))
	req.NotEqual(NewConversationKey("U1", "D1"), NewConversationKey("U1", "D2"))
}

func TestNewConversationKey_DistinctPairsNeverShareAKey(t *testing.T) {
	req := require.New(t)
	first := Pair{DoctorID: "b_c", UserID: "a"}
	second := Pair{DoctorID: "c", UserID: "a_b"}

	// Underscores are ordinary id characters
	req.NoError(first.Validate())
	req.NoError(second.Validate())
	req.NotEqual(first.Key(), second.Key())

	// Ids that could forge a key are refused before any key is built
	req.ErrorIs(Pair{DoctorID: "b" + ConversationSeparator + "c", UserID: "a"}.Validate(), errors.ErrInvalidParticipantID)
	req.ErrorIs(Pair{DoctorID: "c", UserID: "a" + ConversationSeparator + "b"}.Validate(), errors.ErrInvalidParticipantID)
}

func TestValidateParticipantID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"D1", true},
		{"user_42", true},
		{"dr.house@clinic", true},
		{"", false},
		{"a|b", false},
		{"with space", false},
		{"tab\there", false},
		{"nul\x00", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateParticipantID(tt.id)
			if tt.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, errors.ErrInvalidParticipantID)
		})
	}
}

func TestPair_Validate_RefusesSelfConversation(t *testing.T) {
	require.ErrorIs(t, Pair{DoctorID: "D1", UserID: "D1"}.Validate(), errors.ErrInvalidParticipantID)
}

func TestPair_Admits(t *testing.T) {
	pair := Pair{DoctorID: "D1", UserID: "U1"}

	tests := []struct {
		name     string
		identity Identity
		want     bool
	}{
		{"doctor in doctor slot", Identity{ParticipantID: "D1", Role: RoleDoctor}, true},
		{"user in user slot", Identity{ParticipantID: "U1", Role: RoleUser}, true},
		{"user claiming doctor slot", Identity{ParticipantID: "U1", Role: RoleDoctor}, false},
		{"doctor claiming user slot", Identity{ParticipantID: "D1", Role: RoleUser}, false},
		{"outsider", Identity{ParticipantID: "D2", Role: RoleDoctor}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, pair.Admits(tt.identity))
		})
	}
}

func TestPair_Counterpart(t *testing.T) {
	req := require.New(t)
	pair := Pair{DoctorID: "D1", UserID: "U1"}

	other, ok := pair.Counterpart("U1")
	req.True(ok)
	req.Equal("D1", other)

	_, ok = pair.Counterpart("X")
	req.False(ok)
}

func TestPair_Tag_FillsMissingRoleOnly(t *testing.T) {
	req := require.New(t)
	pair := Pair{DoctorID: "D1", UserID: "U1"}

	legacy := Message{SenderID: "D1"}
	req.Equal(RoleDoctor, pair.Tag(legacy).SenderRole)

	tagged := Message{SenderID: "D1", SenderRole: RoleUser}
	req.Equal(RoleUser, pair.Tag(tagged).SenderRole)
}

func TestRender(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 3, 1, 9, 30, 0, 123000000, time.FixedZone("CET", 3600))
	m := NewMessage(NewConversationKey("U1", "D1"), Identity{ParticipantID: "U1", Role: RoleUser}, "D1", "hello", at)

	frame := Render(m)

	req.Equal(FrameMessage, frame.Type)
	req.Equal(m.ID.String(), frame.ID)
	req.Equal("hello", frame.Text)
	req.Equal("U1", frame.SenderID)
	req.Equal("D1", frame.ReceiverID)
	req.Equal(RoleUser, frame.Sender)
	req.Equal("2024-03-01T08:30:00.123Z", frame.Timestamp)
}

func TestNewHistoryFrame_NeverNil(t *testing.T) {
	require.NotNil(t, NewHistoryFrame(nil).Messages)
}

func TestSessionState_String(t *testing.T) {
	req := require.New(t)
	req.Equal("connecting", StateConnecting.String())
	req.Equal("active", StateActive.String())
	req.Equal("closed", StateClosed.String())
	req.Equal("unknown", SessionState(42).String())
}
