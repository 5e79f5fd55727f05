package repositories

import (
	"care-chat/domain"
	"care-chat/errors"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const participantPrefix = "participant:"

type IParticipantRepository interface {
	CreateParticipant(participant domain.Participant) error
	GetParticipant(id string) (domain.Participant, error)
	Lookup(ctx context.Context, id string) (domain.Participant, error)
	ListParticipants() ([]domain.Participant, error)
}

// ParticipantRepository is the directory used to check a conversation counterpart
// exists in the role its slot requires.
type ParticipantRepository struct {
	db *badger.DB
}

func NewParticipantRepository(db *badger.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

type diskParticipant struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Name      string `json:"name,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// CreateParticipant inserts or overwrites a directory entry.
func (p *ParticipantRepository) CreateParticipant(participant domain.Participant) error {
	if err := domain.ValidateParticipantID(participant.ID); err != nil {
		return err
	}
	if !participant.Role.Valid() {
		return fmt.Errorf("invalid role %q", participant.Role)
	}
	if participant.CreatedAt.IsZero() {
		participant.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(diskParticipant{
		ID:        participant.ID,
		Role:      string(participant.Role),
		Name:      participant.Name,
		CreatedAt: participant.CreatedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(participantKey(participant.ID), data)
	})
}

func (p *ParticipantRepository) GetParticipant(id string) (domain.Participant, error) {
	var disk diskParticipant
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(participantKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", errors.ErrParticipantNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
	})
	if err != nil {
		return domain.Participant{}, err
	}
	return disk.toDomain(), nil
}

// ListParticipants returns the whole directory ordered by id.
func (p *ParticipantRepository) ListParticipants() ([]domain.Participant, error) {
	var participants []domain.Participant
	err := p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(participantPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var disk diskParticipant
				if err := json.Unmarshal(val, &disk); err != nil {
					return err
				}
				participants = append(participants, disk.toDomain())
				return nil
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
		}
		return nil
	})
	return participants, err
}

// Lookup returns the directory entry of id, errors.ErrParticipantNotFound when there is none.
func (p *ParticipantRepository) Lookup(_ context.Context, id string) (domain.Participant, error) {
	if id == "" {
		return domain.Participant{}, fmt.Errorf("%w: empty id", errors.ErrParticipantNotFound)
	}
	return p.GetParticipant(id)
}

func (d diskParticipant) toDomain() domain.Participant {
	return domain.Participant{
		ID:        d.ID,
		Role:      domain.Role(d.Role),
		Name:      d.Name,
		CreatedAt: time.Unix(d.CreatedAt, 0).UTC(),
	}
}

func participantKey(id string) []byte {
	return []byte(participantPrefix + id)
}
