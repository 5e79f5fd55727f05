package services

import (
	"care-chat/codec"
	"care-chat/domain"
	"care-chat/errors"
	"care-chat/mocks"
	"care-chat/repositories"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var user = domain.Identity{ParticipantID: "u1", Role: domain.RoleUser}

func newTestStore(t *testing.T, backoff time.Duration) (*MessageStore, *mocks.MockIMessageRepository, *codec.Codec) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIMessageRepository(ctrl)
	c, err := codec.New("store-test-secret", log, nil)
	require.NoError(t, err)
	return NewMessageStore(repository, c, log, DefaultRetryAttempts, backoff), repository, c
}

func TestMessageStore_Append_RetriesUntilSuccess(t *testing.T) {
	req := require.New(t)
	store, repository, c := newTestStore(t, time.Millisecond)
	key := domain.NewConversationKey("u1", "d1")
	message := domain.NewMessage(key, user, "d1", "hello doctor", time.Now())

	// Given a repository failing twice before accepting the write
	var stored []repositories.DiskMessage
	gomock.InOrder(
		repository.EXPECT().StoreMessage(gomock.Any()).Return(fmt.Errorf("disk busy")).Times(2),
		repository.EXPECT().StoreMessage(gomock.Any()).DoAndReturn(func(m repositories.DiskMessage) error {
			stored = append(stored, m)
			return nil
		}),
	)

	// When the message is appended
	err := store.Append(context.Background(), message)

	// Then the third attempt wins and only ciphertext reaches the repository
	req.NoError(err)
	req.Len(stored, 1)
	req.Equal(message.ID, stored[0].ID)
	req.Equal(key.String(), stored[0].Conversation)
	req.Equal("user", stored[0].SenderRole)
	req.NotEqual("hello doctor", stored[0].Text)
	req.Equal("hello doctor", c.Decrypt(stored[0].Text))
}

func TestMessageStore_Append_GivesUpAfterThreeAttempts(t *testing.T) {
	req := require.New(t)
	store, repository, _ := newTestStore(t, time.Millisecond)
	message := domain.NewMessage(domain.NewConversationKey("u1", "d1"), user, "d1", "hi", time.Now())

	// Given a repository that never accepts writes
	repository.EXPECT().StoreMessage(gomock.Any()).Return(fmt.Errorf("disk full")).Times(DefaultRetryAttempts)

	// When the message is appended
	err := store.Append(context.Background(), message)

	// Then the failure is reported as a persistence error
	req.Error(err)
	req.ErrorIs(err, errors.ErrPersistence)
}

func TestMessageStore_Append_StopsWaitingWhenContextEnds(t *testing.T) {
	req := require.New(t)
	store, repository, _ := newTestStore(t, time.Hour)
	message := domain.NewMessage(domain.NewConversationKey("u1", "d1"), user, "d1", "hi", time.Now())

	// Given a failing repository and a backoff far longer than the test
	repository.EXPECT().StoreMessage(gomock.Any()).Return(fmt.Errorf("disk full")).Times(1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// When the message is appended
	start := time.Now()
	err := store.Append(ctx, message)

	// Then the context cancels the backoff
	req.ErrorIs(err, errors.ErrPersistence)
	req.Less(time.Since(start), 5*time.Second)
}

func TestMessageStore_History_DecryptsInStoredOrder(t *testing.T) {
	req := require.New(t)
	store, repository, c := newTestStore(t, time.Millisecond)
	key := domain.NewConversationKey("u1", "d1")
	now := time.Now().UTC()

	// Given two encrypted records returned newest first
	repository.EXPECT().GetMessages(key.String(), 50).Return([]repositories.DiskMessage{
		{Conversation: key.String(), SenderID: "d1", SenderRole: "doctor", ReceiverID: "u1", Text: c.Encrypt("second"), At: now},
		{Conversation: key.String(), SenderID: "u1", ReceiverID: "d1", Text: c.Encrypt("first"), At: now.Add(-time.Minute), Read: true},
	}, nil)

	// When history is loaded
	history, err := store.History(context.Background(), key, 50)

	// Then the text is plain again and the order is kept
	req.NoError(err)
	req.Len(history, 2)
	req.Equal("second", history[0].Text)
	req.Equal("first", history[1].Text)
	req.True(history[1].Read)
	req.Equal(key, history[0].ConversationKey)
	req.Equal(domain.RoleDoctor, history[0].SenderRole)
}

func TestMessageStore_History_WrapsRepositoryError(t *testing.T) {
	req := require.New(t)
	store, repository, _ := newTestStore(t, time.Millisecond)
	key := domain.NewConversationKey("u1", "d1")

	repository.EXPECT().GetMessages(key.String(), 10).Return(nil, fmt.Errorf("closed"))

	_, err := store.History(context.Background(), key, 10)

	req.Error(err)
	req.Contains(err.Error(), "closed")
}
