package realtime

import (
	"care-chat/auth"
	"care-chat/codec"
	"care-chat/domain"
	"care-chat/errors"
	"care-chat/internal"
	"care-chat/observability"
	"care-chat/repositories"
	"care-chat/runtime"
	"care-chat/services"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var secret = []byte("realtime-test-secret")

type wireFrame struct {
	Type       string      `json:"type"`
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	SenderID   string      `json:"sender_id"`
	ReceiverID string      `json:"receiver_id"`
	Timestamp  string      `json:"timestamp"`
	Sender     string      `json:"sender"`
	Code       string      `json:"code"`
	Messages   []wireFrame `json:"messages"`
}

func newTestServer(t *testing.T) string {
	t.Helper()
	url, _ := newServer(t, time.Hour, ConnConfig{})
	return url
}

func newServer(t *testing.T, heartbeat time.Duration, connConfig ConnConfig) (string, *runtime.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	participants := repositories.NewParticipantRepository(db)
	require.NoError(t, participants.CreateParticipant(domain.Participant{ID: "D1", Role: domain.RoleDoctor, Name: "Dr One"}))
	require.NoError(t, participants.CreateParticipant(domain.Participant{ID: "U1", Role: domain.RoleUser, Name: "User One"}))
	require.NoError(t, participants.CreateParticipant(domain.Participant{ID: "U2", Role: domain.RoleUser, Name: "User Two"}))

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	c, err := codec.New("realtime-test-key", log, metrics)
	require.NoError(t, err)
	messages := repositories.NewMessageRepository(db, log)
	store := services.NewMessageStore(messages, c, log, 3, time.Millisecond)
	registry := runtime.NewRegistry(log, runtime.NewRateLimiter(20, time.Minute), heartbeat, metrics)
	router := runtime.NewRouter(store, registry, runtime.NewRateLimiter(20, time.Minute), log, metrics)
	gateway := runtime.NewGateway(auth.NewVerifier(secret), participants, runtime.NewRateLimiter(20, time.Minute),
		registry, store, router, log, metrics, runtime.SessionConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	handler := NewChatHandler(ctx, gateway, connConfig, nil, log)
	health := observability.NewHealthChecker(log, messages, registry.Len)
	server := httptest.NewServer(NewEngine(handler, health, reg))
	t.Cleanup(server.Close)
	t.Cleanup(func() { registry.CloseAll(errors.CloseGoingAway, "test over") })
	t.Cleanup(cancel)
	return server.URL, registry
}

func dial(t *testing.T, baseURL, path string, identity domain.Identity) *websocket.Conn {
	t.Helper()
	token, err := auth.GenerateToken(secret, identity.ParticipantID, identity.Role, time.Hour)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(baseURL, "http") + path + "?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func read(t *testing.T, ws *websocket.Conn) wireFrame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame wireFrame
	require.NoError(t, ws.ReadJSON(&frame))
	return frame
}

func TestChatHandler_RelaysBetweenParticipants(t *testing.T) {
	req := require.New(t)
	baseURL := newTestServer(t)
	doctor := domain.Identity{ParticipantID: "D1", Role: domain.RoleDoctor}
	user := domain.Identity{ParticipantID: "U1", Role: domain.RoleUser}

	// Given both participants connected, each greeted by an empty history
	d1 := dial(t, baseURL, "/chat/D1/U1", doctor)
	req.Equal("history", read(t, d1).Type)
	u1 := dial(t, baseURL, "/chat/D1/U1", user)
	history := read(t, u1)
	req.Equal("history", history.Type)
	req.Empty(history.Messages)

	// When U1 says hello
	req.NoError(u1.WriteJSON(domain.InboundFrame{Text: "hello", SenderID: "U1"}))

	// Then D1 receives it from the user
	received := read(t, d1)
	req.Equal("message", received.Type)
	req.Equal("hello", received.Text)
	req.Equal("U1", received.SenderID)
	req.Equal("D1", received.ReceiverID)
	req.Equal("user", received.Sender)
	_, err := time.Parse(time.RFC3339Nano, received.Timestamp)
	req.NoError(err)

	// And U1 gets the same message back, still tagged with its own role
	echo := read(t, u1)
	req.Equal(received.ID, echo.ID)
	req.Equal("user", echo.Sender)

	// When D1 reconnects, the message is replayed
	req.NoError(d1.Close())
	again := dial(t, baseURL, "/chat/D1/U1", doctor)
	replay := read(t, again)
	req.Equal("history", replay.Type)
	req.Len(replay.Messages, 1)
	req.Equal("hello", replay.Messages[0].Text)
	req.Equal("user", replay.Messages[0].Sender)
}

func TestChatHandler_MalformedPayloadKeepsSession(t *testing.T) {
	req := require.New(t)
	baseURL := newTestServer(t)
	u1 := dial(t, baseURL, "/chat/D1/U1", domain.Identity{ParticipantID: "U1", Role: domain.RoleUser})
	read(t, u1)

	req.NoError(u1.WriteMessage(websocket.TextMessage, []byte("{not json")))
	refused := read(t, u1)
	req.Equal("error", refused.Type)
	req.Equal(domain.ErrorCodeMalformed, refused.Code)

	req.NoError(u1.WriteJSON(domain.InboundFrame{Text: "still here"}))
	req.Equal("still here", read(t, u1).Text)
}

func TestChatHandler_RefusesWithCloseCodes(t *testing.T) {
	baseURL := newTestServer(t)
	tests := []struct {
		name     string
		path     string
		identity domain.Identity
		code     int
	}{
		{"identity outside the conversation", "/chat/D2/U2", domain.Identity{ParticipantID: "U1", Role: domain.RoleUser}, errors.CloseUnauthenticated},
		{"unknown counterpart", "/chat/D404/U1", domain.Identity{ParticipantID: "U1", Role: domain.RoleUser}, errors.CloseNotFound},
		{"user in the doctor slot", "/chat/U2/U1", domain.Identity{ParticipantID: "U1", Role: domain.RoleUser}, errors.CloseNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			ws := dial(t, baseURL, tt.path, tt.identity)
			req.NoError(ws.SetReadDeadline(time.Now().Add(2 * time.Second)))
			_, _, err := ws.ReadMessage()
			req.True(websocket.IsCloseError(err, tt.code), "got %v", err)
		})
	}

	t.Run("forged token", func(t *testing.T) {
		req := require.New(t)
		url := "ws" + strings.TrimPrefix(baseURL, "http") + "/chat/D1/U1?token=forged"
		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		req.NoError(err)
		defer ws.Close()
		req.NoError(ws.SetReadDeadline(time.Now().Add(2 * time.Second)))
		_, _, err = ws.ReadMessage()
		req.True(websocket.IsCloseError(err, errors.CloseUnauthenticated), "got %v", err)
	})
}

func TestChatHandler_RejectsInvalidPairs(t *testing.T) {
	baseURL := newTestServer(t)
	for _, path := range []string{
		"/chat/D1/D1",
		"/chat/D1/U1%7Cx",
		"/chat/D1%20/U1",
	} {
		t.Run(path, func(t *testing.T) {
			req := require.New(t)
			resp, err := http.Get(baseURL + path)
			req.NoError(err)
			defer resp.Body.Close()
			req.Equal(http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestChatHandler_EvictsClientThatStopsReading(t *testing.T) {
	req := require.New(t)
	config := internal.Config{HeartbeatInterval: 100 * time.Millisecond, WriteTimeout: 50 * time.Millisecond}
	baseURL, registry := newServer(t, config.HeartbeatInterval, ConnConfig{
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout(),
	})

	// Given U1 read its history then stopped reading, so it never answers a ping
	u1 := dial(t, baseURL, "/chat/D1/U1", domain.Identity{ParticipantID: "U1", Role: domain.RoleUser})
	read(t, u1)
	silentSince := time.Now()
	req.True(registry.Reachable("U1"))

	// Then U1 leaves the registry within about one heartbeat interval
	req.Eventually(func() bool { return !registry.Reachable("U1") }, time.Second, 5*time.Millisecond)
	req.Less(time.Since(silentSince), 2*config.HeartbeatInterval)
}

func TestEngine_Healthz(t *testing.T) {
	req := require.New(t)
	baseURL := newTestServer(t)

	resp, err := http.Get(baseURL + "/healthz")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	var report observability.HealthReport
	req.NoError(json.NewDecoder(resp.Body).Decode(&report))
	req.Equal("ok", report.Status)
	req.Equal("ok", report.Datastore)
}

func TestEngine_Metrics(t *testing.T) {
	req := require.New(t)
	baseURL := newTestServer(t)
	u1 := dial(t, baseURL, "/chat/D1/U1", domain.Identity{ParticipantID: "U1", Role: domain.RoleUser})
	read(t, u1)

	resp, err := http.Get(baseURL + "/metrics")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
	body := new(strings.Builder)
	_, err = io.Copy(body, resp.Body)
	req.NoError(err)
	req.Contains(body.String(), "carechat_sessions_active 1")
}
