package runtime

import (
	"care-chat/contract"
	"care-chat/domain"
	"care-chat/errors"
	"care-chat/observability"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Router is the single path every chat message takes:
// sender admission, persistence, then live delivery.
// Persistence and delivery are independent, both are attempted.
type Router struct {
	store     contract.IMessageStore
	deliverer contract.Deliverer
	limiter   contract.RateLimiter
	log       *slog.Logger
	metrics   *observability.Metrics
	now       func() time.Time
	clocks    sync.Map // domain.ConversationKey -> *atomic.Int64
}

func NewRouter(store contract.IMessageStore, deliverer contract.Deliverer,
	limiter contract.RateLimiter, log *slog.Logger, metrics *observability.Metrics) *Router {
	return &Router{
		store:     store,
		deliverer: deliverer,
		limiter:   limiter,
		log:       log,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Route builds, persists and relays one message from sender to receiverID.
// Only an exhausted sender window is reported as an error; a failed write
// is logged and the message is still relayed.
func (r *Router) Route(ctx context.Context, key domain.ConversationKey,
	sender domain.Identity, receiverID, text string) (domain.Message, error) {
	if !r.limiter.Allow(sender.ParticipantID) {
		r.metrics.RecordRateLimited("sender")
		return domain.Message{}, fmt.Errorf("%w: %s", errors.ErrRateLimited, sender.ParticipantID)
	}

	start := time.Now()
	message := domain.NewMessage(key, sender, receiverID, text, r.stamp(key))

	persisted := true
	if err := r.store.Append(ctx, message); err != nil {
		persisted = false
		r.metrics.RecordPersistenceFailure()
		r.log.Error("Message not persisted, relaying live only",
			"message_id", message.ID,
			"conversation_key", key,
			"error", err)
	}

	if r.deliverer.Send(receiverID, domain.Render(message)) {
		// Delivered is read.
		message.Read = true
		if persisted {
			if err := r.store.MarkRead(ctx, message.ID); err != nil {
				r.log.Warn("Read flag not persisted", "message_id", message.ID, "error", err)
			}
		}
	}

	r.metrics.TrackMessage(string(domain.FrameMessage))
	r.metrics.ObserveLatency(time.Since(start))
	r.log.Debug("Message routed",
		"message_id", message.ID,
		"conversation_key", key,
		"persisted", persisted,
		"delivered", message.Read)
	return message, nil
}

// stamp returns a timestamp strictly greater than the previous one of the
// same conversation. Distinct conversations never contend.
func (r *Router) stamp(key domain.ConversationKey) time.Time {
	value, _ := r.clocks.LoadOrStore(key, new(atomic.Int64))
	last := value.(*atomic.Int64)
	for {
		previous := last.Load()
		next := r.now().UnixNano()
		if next <= previous {
			next = previous + 1
		}
		if last.CompareAndSwap(previous, next) {
			return time.Unix(0, next)
		}
	}
}
