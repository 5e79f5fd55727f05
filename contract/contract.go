//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"care-chat/domain"
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Channel is the outbound half of a live connection.
// Send must be safe for concurrent use and fail once the channel is broken.
type Channel interface {
	Send(frame any) error
	Close(code int, reason string)
}

// Liveness is implemented by channels that can tell when the peer last proved
// it is alive (any inbound frame or pong). A write that succeeds proves nothing
// on a half-open connection.
type Liveness interface {
	LastSeen() time.Time
}

// Conn is a full bidirectional connection owned by one session.
// Close must unblock a pending Receive.
type Conn interface {
	Channel
	Receive() (domain.InboundFrame, error)
}

// IdentityVerifier is the auth collaborator: it turns a token into an identity.
type IdentityVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// ParticipantDirectory is the domain lookup collaborator.
// Lookup fails with errors.ErrParticipantNotFound for an unknown id.
type ParticipantDirectory interface {
	Lookup(ctx context.Context, participantID string) (domain.Participant, error)
}

type RateLimiter interface {
	Allow(participantID string) bool
}

type IMessageStore interface {
	Append(ctx context.Context, message domain.Message) error
	History(ctx context.Context, key domain.ConversationKey, limit int) ([]domain.Message, error)
	MarkRead(ctx context.Context, messageID uuid.UUID) error
}

// Deliverer relays a frame to a participant's live channel, if any.
type Deliverer interface {
	Send(participantID string, frame any) bool
}

type IRouter interface {
	Route(ctx context.Context, key domain.ConversationKey, sender domain.Identity, receiverID, text string) (domain.Message, error)
}
