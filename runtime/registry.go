package runtime

import (
	"care-chat/contract"
	"care-chat/domain"
	"care-chat/errors"
	"care-chat/observability"
	"log/slog"
	"sync"
	"time"
)

const DefaultHeartbeatInterval = 30 * time.Second

// Session is the registry entry of one live connection.
// Only the holder of the handle returned by Register may Release it.
type Session struct {
	ParticipantID string
	CreatedAt     time.Time
	channel       contract.Channel
	stop          chan struct{}
	once          sync.Once
}

// Done is closed when the entry leaves the registry, for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.stop
}

func (s *Session) halt() {
	s.once.Do(func() { close(s.stop) })
}

// Registry maps a participant to its single live channel (last writer wins).
// Each entry owns a heartbeat goroutine that lives exactly as long as the entry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	limiter  contract.RateLimiter
	interval time.Duration
	log      *slog.Logger
	metrics  *observability.Metrics
	wg       sync.WaitGroup
}

// NewRegistry builds a registry whose sends are gated by limiter.
// A nil limiter admits every send.
func NewRegistry(log *slog.Logger, limiter contract.RateLimiter,
	interval time.Duration, metrics *observability.Metrics) *Registry {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Registry{
		sessions: make(map[string]*Session),
		limiter:  limiter,
		interval: interval,
		log:      log,
		metrics:  metrics,
	}
}

// Register inserts or replaces the entry of participantID and starts its heartbeat.
// A replaced channel is closed with CloseSessionReplaced.
func (r *Registry) Register(participantID string, channel contract.Channel) *Session {
	session := &Session{
		ParticipantID: participantID,
		CreatedAt:     time.Now().UTC(),
		channel:       channel,
		stop:          make(chan struct{}),
	}

	r.mu.Lock()
	previous, replaced := r.sessions[participantID]
	r.sessions[participantID] = session
	r.wg.Add(1)
	r.mu.Unlock()

	r.metrics.SessionOpened()
	if replaced {
		previous.halt()
		r.metrics.SessionClosed()
		previous.channel.Close(errors.CloseSessionReplaced, "Session replaced by a new connection")
		r.log.Info("Session replaced", "participant_id", participantID)
	}

	go r.heartbeat(session)
	r.log.Debug("Session registered", "participant_id", participantID)
	return session
}

// Deregister removes whatever entry participantID holds. Idempotent.
func (r *Registry) Deregister(participantID string) {
	r.mu.Lock()
	session, ok := r.sessions[participantID]
	if ok {
		delete(r.sessions, participantID)
	}
	r.mu.Unlock()

	if ok {
		session.halt()
		r.metrics.SessionClosed()
		r.log.Debug("Session deregistered", "participant_id", participantID)
	}
}

// Release removes session only if it is still the current entry of its participant,
// so a session that lost a replacement race cannot evict its successor.
// It always stops the session heartbeat and reports whether the entry was removed.
func (r *Registry) Release(session *Session) bool {
	r.mu.Lock()
	current, ok := r.sessions[session.ParticipantID]
	removed := ok && current == session
	if removed {
		delete(r.sessions, session.ParticipantID)
	}
	r.mu.Unlock()

	session.halt()
	if removed {
		r.metrics.SessionClosed()
		r.log.Debug("Session released", "participant_id", session.ParticipantID)
	}
	return removed
}

// Send writes frame to the live channel of participantID.
// It returns false when nobody is registered, when the recipient window is
// exhausted or when the write fails; none of those is an error for the caller.
func (r *Registry) Send(participantID string, frame any) bool {
	r.mu.RLock()
	session, ok := r.sessions[participantID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	if r.limiter != nil && !r.limiter.Allow(participantID) {
		r.metrics.RecordRateLimited("delivery")
		r.log.Debug("Delivery refused by rate limiter", "participant_id", participantID)
		return false
	}

	if err := session.channel.Send(frame); err != nil {
		r.log.Warn("Live delivery failed, dropping session", "participant_id", participantID, "error", err)
		r.drop(session, "Connection lost")
		return false
	}
	return true
}

// Reachable reports whether participantID currently holds a live entry.
func (r *Registry) Reachable(participantID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[participantID]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll empties the registry, closes every channel with code and waits
// for all heartbeats to return.
func (r *Registry) CloseAll(code int, reason string) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for participantID, session := range r.sessions {
		sessions = append(sessions, session)
		delete(r.sessions, participantID)
	}
	r.mu.Unlock()

	for _, session := range sessions {
		session.halt()
		r.metrics.SessionClosed()
		session.channel.Close(code, reason)
	}
	r.wg.Wait()
	r.log.Info("Registry closed", "sessions", len(sessions))
}

// heartbeat probes the channel every interval until the entry is gone.
// A rejected probe, or a probe left unanswered until the next tick, drops the
// entry, so a half-open connection stays reachable at most one interval
// after its first missed probe.
func (r *Registry) heartbeat(session *Session) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	liveness, tracksPongs := session.channel.(contract.Liveness)
	var probedAt time.Time
	for {
		select {
		case <-session.stop:
			return
		case <-ticker.C:
			if tracksPongs && !probedAt.IsZero() && liveness.LastSeen().Before(probedAt) {
				r.log.Warn("Heartbeat unanswered, dropping session",
					"participant_id", session.ParticipantID, "probed_at", probedAt)
				r.drop(session, "Heartbeat unanswered")
				return
			}
			probedAt = time.Now()
			if err := session.channel.Send(domain.NewPingFrame()); err != nil {
				r.log.Warn("Heartbeat failed, dropping session",
					"participant_id", session.ParticipantID, "error", err)
				r.drop(session, "Heartbeat failed")
				return
			}
		}
	}
}

// drop evicts a broken session and closes its channel, which unblocks the
// receive loop of the session that owns it.
func (r *Registry) drop(session *Session, reason string) {
	r.Release(session)
	session.channel.Close(errors.CloseGoingAway, reason)
}
