package runtime

import (
	"care-chat/contract"
	"care-chat/domain"
	"care-chat/errors"
	"care-chat/observability"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

const (
	DefaultHistoryLimit     = 50
	DefaultMaxContentLength = 4096
)

type SessionConfig struct {
	HistoryLimit     int
	MaxContentLength int
}

// Gateway holds what every session shares and opens one SessionSupervisor per connection.
type Gateway struct {
	verifier  contract.IdentityVerifier
	directory contract.ParticipantDirectory
	limiter   contract.RateLimiter
	registry  *Registry
	store     contract.IMessageStore
	router    contract.IRouter
	log       *slog.Logger
	metrics   *observability.Metrics
	validate  *validator.Validate
	config    SessionConfig
}

// NewGateway wires the session collaborators. limiter gates handshakes only,
// message admission belongs to the router and delivery to the registry.
func NewGateway(
	verifier contract.IdentityVerifier,
	directory contract.ParticipantDirectory,
	limiter contract.RateLimiter,
	registry *Registry,
	store contract.IMessageStore,
	router contract.IRouter,
	log *slog.Logger,
	metrics *observability.Metrics,
	config SessionConfig,
) *Gateway {
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = DefaultHistoryLimit
	}
	if config.MaxContentLength <= 0 {
		config.MaxContentLength = DefaultMaxContentLength
	}
	return &Gateway{
		verifier:  verifier,
		directory: directory,
		limiter:   limiter,
		registry:  registry,
		store:     store,
		router:    router,
		log:       log,
		metrics:   metrics,
		validate:  validator.New(),
		config:    config,
	}
}

// Open binds a connection to the conversation named by pair.
// The returned supervisor is owned by the caller goroutine and must be Run once.
func (g *Gateway) Open(conn contract.Conn, pair domain.Pair, token string) *SessionSupervisor {
	return &SessionSupervisor{
		gateway: g,
		conn:    conn,
		pair:    pair,
		token:   token,
		log:     g.log.With("doctor_id", pair.DoctorID, "user_id", pair.UserID),
	}
}

// SessionSupervisor owns the lifecycle of one connection:
// Connecting -> Authenticated -> Active -> Closed.
type SessionSupervisor struct {
	gateway *Gateway
	conn    contract.Conn
	pair    domain.Pair
	token   string
	log     *slog.Logger
	state   atomic.Int32
}

func (s *SessionSupervisor) State() domain.SessionState {
	return domain.SessionState(s.state.Load())
}

// Run drives the session until it is Closed and returns the error that ended it,
// nil when the peer went away.
// Whatever the path, the registry entry is released once and the connection
// is closed with the code matching that error.
func (s *SessionSupervisor) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session panic: %v", r)
		}
		// A closed channel is a normal end unless the server is shutting down.
		if errors.Is(err, errors.ErrChannelClosed) {
			err = ctx.Err()
		}
		s.close(err)
	}()

	identity, counterpart, err := s.handshake(ctx)
	if err != nil {
		return err
	}
	s.transition(domain.StateAuthenticated)
	s.log = s.log.With("participant_id", identity.ParticipantID)

	if !s.gateway.limiter.Allow(identity.ParticipantID) {
		s.gateway.metrics.RecordRateLimited("handshake")
		return fmt.Errorf("%w: handshake of %s", errors.ErrRateLimited, identity.ParticipantID)
	}

	session := s.gateway.registry.Register(identity.ParticipantID, s.conn)
	defer s.gateway.registry.Release(session)
	s.gateway.metrics.TrackConnection()
	s.transition(domain.StateActive)

	// Shutdown and heartbeat loss both have to unblock Receive.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			code, reason := errors.MapToCloseCode(ctx.Err())
			s.conn.Close(code, reason)
		case <-stop:
		}
	}()

	if err := s.replay(ctx); err != nil {
		return err
	}
	return s.receive(ctx, identity, counterpart)
}

// handshake resolves the token into an identity that belongs to the pair and
// checks that the other endpoint exists in the role of its slot.
func (s *SessionSupervisor) handshake(ctx context.Context) (domain.Identity, string, error) {
	if err := s.pair.Validate(); err != nil {
		return domain.Identity{}, "", err
	}
	identity, err := s.gateway.verifier.Verify(s.token)
	if err != nil {
		return domain.Identity{}, "", err
	}
	if !s.pair.Admits(identity) {
		return domain.Identity{}, "", fmt.Errorf("%w: %s as %s", errors.ErrForbiddenParticipant,
			identity.ParticipantID, identity.Role)
	}

	counterpart, _ := s.pair.Counterpart(identity.ParticipantID)
	participant, err := s.gateway.directory.Lookup(ctx, counterpart)
	if err != nil {
		return domain.Identity{}, "", fmt.Errorf("lookup participant %s: %w", counterpart, err)
	}
	// A user in the doctor slot is no doctor at all
	if want := s.pair.RoleOf(counterpart); participant.Role != want {
		return domain.Identity{}, "", fmt.Errorf("%w: %s is not a %s", errors.ErrParticipantNotFound, counterpart, want)
	}
	return identity, counterpart, nil
}

// replay sends the latest messages of the conversation as one burst, newest first.
// An unreadable history is logged and replayed empty.
func (s *SessionSupervisor) replay(ctx context.Context) error {
	history, err := s.gateway.store.History(ctx, s.pair.Key(), s.gateway.config.HistoryLimit)
	if err != nil {
		s.log.Error("History unavailable, replaying nothing", "error", err)
		history = nil
	}
	frames := lo.Map(history, func(m domain.Message, _ int) domain.MessageFrame {
		return domain.Render(s.pair.Tag(m))
	})
	if err := s.conn.Send(domain.NewHistoryFrame(frames)); err != nil {
		return fmt.Errorf("%w: replay: %v", errors.ErrChannelClosed, err)
	}
	s.log.Debug("History replayed", "count", len(frames))
	return nil
}

func (s *SessionSupervisor) receive(ctx context.Context, identity domain.Identity, counterpart string) error {
	key := s.pair.Key()
	maxLength := fmt.Sprintf("max=%d", s.gateway.config.MaxContentLength)

	for {
		frame, err := s.conn.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, errors.ErrMalformedFrame) {
				if err := s.reject(domain.ErrorCodeMalformed, "Malformed message"); err != nil {
					return err
				}
				continue
			}
			return err
		}

		if strings.TrimSpace(frame.Text) == "" {
			continue
		}
		if frame.SenderID != "" && frame.SenderID != identity.ParticipantID {
			s.log.Warn("Ignoring client supplied sender id", "sender_id", frame.SenderID)
		}
		if err := s.gateway.validate.Var(frame.Text, maxLength); err != nil {
			s.gateway.metrics.TrackMessage("too_long")
			if err := s.reject(domain.ErrorCodeContentTooLong, errors.ErrContentTooLong.Error()); err != nil {
				return err
			}
			continue
		}

		message, err := s.gateway.router.Route(ctx, key, identity, counterpart, frame.Text)
		if errors.Is(err, errors.ErrRateLimited) {
			if err := s.reject(domain.ErrorCodeRateLimited, "Rate limit exceeded"); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		// The sender always gets its confirmation, reachable peer or not.
		if err := s.conn.Send(domain.Render(message)); err != nil {
			return fmt.Errorf("%w: echo: %v", errors.ErrChannelClosed, err)
		}
	}
}

func (s *SessionSupervisor) reject(code, reason string) error {
	if err := s.conn.Send(domain.NewErrorFrame(code, reason)); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrChannelClosed, err)
	}
	return nil
}

func (s *SessionSupervisor) close(err error) {
	s.transition(domain.StateClosed)
	code, reason := errors.MapToCloseCode(err)
	s.conn.Close(code, reason)
	if code == errors.CloseNormal || code == errors.CloseGoingAway {
		s.log.Info("Session closed", "code", code)
		return
	}
	s.log.Warn("Session closed", "code", code, "reason", reason, "error", err)
}

func (s *SessionSupervisor) transition(state domain.SessionState) {
	previous := domain.SessionState(s.state.Swap(int32(state)))
	s.log.Debug("Session state", "from", previous, "to", state)
}
