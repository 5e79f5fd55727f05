//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"care-chat/errors"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	messagePrefix = "msg:"
	indexPrefix   = "msgid:"
	// seekSuffix sorts after any 19-digit timestamp so a reverse seek starts at the newest key.
	seekSuffix = "9999999999999999999;"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetMessages(conversation string, limit int) ([]DiskMessage, error)
	MarkRead(id uuid.UUID) error
	Ping(ctx context.Context) error
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// DiskMessage is a persisted message. Text holds whatever the caller stored,
// ciphertext in practice.
type DiskMessage struct {
	ID           uuid.UUID `json:"id"`
	Conversation string    `json:"conversation_id"`
	SenderID     string    `json:"sender_id"`
	SenderRole   string    `json:"sender_role,omitempty"`
	ReceiverID   string    `json:"receiver_id"`
	Text         string    `json:"text"`
	At           time.Time `json:"timestamp"`
	Read         bool      `json:"read"`
}

// StoreMessage persists a message and its id index in one transaction.
// The key is formatted as "msg:{conversation_b64}:{timestamp_padded}:{uuid}" to:
//  1. Keep chronological order through 19-digit zero padding (lexicographical order).
//  2. Avoid prefix collisions between conversations, base64 never emits ':'.
//  3. Separate two messages stored at the same nanosecond by their uuid.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	key := messageKey(message)
	bytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		return txn.Set(indexKey(message.ID), key)
	})
}

// GetMessages returns up to limit messages of a conversation, newest first.
// A limit <= 0 returns the whole conversation.
func (m MessageRepository) GetMessages(conversation string, limit int) ([]DiskMessage, error) {
	var diskMessages []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := conversationPrefix(conversation)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(append(prefix, []byte(seekSuffix)...)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(diskMessages) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", limit))
				break
			}
			var message DiskMessage
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &message)
			})
			if err != nil {
				return err
			}
			diskMessages = append(diskMessages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return diskMessages, nil
}

// MarkRead flips the read flag of a stored message. It is a no-op when the flag is already set.
func (m MessageRepository) MarkRead(id uuid.UUID) error {
	return m.db.Update(func(txn *badger.Txn) error {
		indexItem, err := txn.Get(indexKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", errors.ErrMessageNotFound, id)
		}
		if err != nil {
			return err
		}
		key, err := indexItem.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		var message DiskMessage
		if err = item.Value(func(value []byte) error {
			return json.Unmarshal(value, &message)
		}); err != nil {
			return err
		}
		if message.Read {
			return nil
		}
		message.Read = true
		bytes, err := json.Marshal(message)
		if err != nil {
			return err
		}
		return txn.Set(key, bytes)
	})
}

// Ping checks the database is open and can serve a read transaction.
func (m MessageRepository) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.db.IsClosed() {
		return badger.ErrDBClosed
	}
	return m.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(indexPrefix))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

func conversationPrefix(conversation string) []byte {
	return []byte(messagePrefix + base64.RawURLEncoding.EncodeToString([]byte(conversation)) + ":")
}

func messageKey(message DiskMessage) []byte {
	return append(conversationPrefix(message.Conversation),
		[]byte(fmt.Sprintf("%019d:%s", message.At.UnixNano(), message.ID))...)
}

func indexKey(id uuid.UUID) []byte {
	return []byte(indexPrefix + id.String())
}
