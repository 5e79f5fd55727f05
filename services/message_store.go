package services

import (
	"care-chat/domain"
	"care-chat/errors"
	"care-chat/repositories"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryBackoff  = time.Second
)

// Cipher is the codec used to keep plaintext out of persisted records.
type Cipher interface {
	Encrypt(plaintext string) string
	Decrypt(ciphertext string) string
}

// MessageStore owns the persisted copies of messages.
// Writes are encrypted and retried with a fixed backoff, reads are decrypted.
type MessageStore struct {
	repository repositories.IMessageRepository
	cipher     Cipher
	log        *slog.Logger
	attempts   int
	backoff    time.Duration
}

func NewMessageStore(repository repositories.IMessageRepository, cipher Cipher,
	log *slog.Logger, attempts int, backoff time.Duration) *MessageStore {
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}
	if backoff < 0 {
		backoff = DefaultRetryBackoff
	}
	return &MessageStore{
		repository: repository,
		cipher:     cipher,
		log:        log,
		attempts:   attempts,
		backoff:    backoff,
	}
}

// Append encrypts the text and writes the message, trying up to attempts times.
// The returned error wraps errors.ErrPersistence once every attempt has failed.
func (s *MessageStore) Append(ctx context.Context, message domain.Message) error {
	disk := toDiskMessage(message)
	disk.Text = s.cipher.Encrypt(message.Text)

	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if err = s.repository.StoreMessage(disk); err == nil {
			s.log.Debug("Message stored", "message_id", message.ID, "conversation_key", message.ConversationKey)
			return nil
		}
		s.log.Warn("Message write failed",
			"message_id", message.ID,
			"attempt", attempt,
			"max_attempts", s.attempts,
			"error", err)
		if attempt == s.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", errors.ErrPersistence, message.ID, ctx.Err())
		case <-time.After(s.backoff):
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %v", errors.ErrPersistence, message.ID, s.attempts, err)
}

// History returns up to limit messages of the conversation, newest first, decrypted.
func (s *MessageStore) History(_ context.Context, key domain.ConversationKey, limit int) ([]domain.Message, error) {
	diskMessages, err := s.repository.GetMessages(key.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("load history of %s: %w", key, err)
	}
	return lo.Map(diskMessages, func(item repositories.DiskMessage, _ int) domain.Message {
		message := fromDiskMessage(item)
		message.Text = s.cipher.Decrypt(item.Text)
		return message
	}), nil
}

func (s *MessageStore) MarkRead(_ context.Context, messageID uuid.UUID) error {
	return s.repository.MarkRead(messageID)
}

func toDiskMessage(message domain.Message) repositories.DiskMessage {
	return repositories.DiskMessage{
		ID:           message.ID,
		Conversation: message.ConversationKey.String(),
		SenderID:     message.SenderID,
		SenderRole:   string(message.SenderRole),
		ReceiverID:   message.ReceiverID,
		Text:         message.Text,
		At:           message.Timestamp,
		Read:         message.Read,
	}
}

func fromDiskMessage(item repositories.DiskMessage) domain.Message {
	return domain.Message{
		ID:              item.ID,
		ConversationKey: domain.ConversationKey(item.Conversation),
		SenderID:        item.SenderID,
		SenderRole:      domain.Role(item.SenderRole),
		ReceiverID:      item.ReceiverID,
		Text:            item.Text,
		Timestamp:       item.At,
		Read:            item.Read,
	}
}
