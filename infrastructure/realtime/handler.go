package realtime

import (
	"care-chat/auth"
	"care-chat/domain"
	"care-chat/runtime"
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// ChatHandler upgrades /chat/:doctor_id/:user_id and hands the connection
// to a session supervisor. Authentication happens after the upgrade so a
// refusal reaches the client as a close code.
type ChatHandler struct {
	ctx      context.Context
	gateway  *runtime.Gateway
	upgrader websocket.Upgrader
	config   ConnConfig
	log      *slog.Logger
	sessions sync.WaitGroup
}

// NewChatHandler binds sessions to ctx, cancelling it closes every session with 1001.
// An empty allowedOrigins accepts any origin.
func NewChatHandler(ctx context.Context, gateway *runtime.Gateway, config ConnConfig,
	allowedOrigins []string, log *slog.Logger) *ChatHandler {
	return &ChatHandler{
		ctx:     ctx,
		gateway: gateway,
		config:  config,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				return lo.Contains(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

func (h *ChatHandler) Handle(c *gin.Context) {
	pair := domain.Pair{DoctorID: c.Param("doctor_id"), UserID: c.Param("user_id")}
	if err := pair.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token := auth.TokenFromRequest(c.Request)

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the response
		h.log.Debug("Websocket upgrade refused", "error", err)
		return
	}

	h.sessions.Add(1)
	defer h.sessions.Done()
	conn := NewConnection(ws, h.config)
	_ = h.gateway.Open(conn, pair, token).Run(h.ctx)
}

// Wait blocks until every session served by the handler has ended.
func (h *ChatHandler) Wait() {
	h.sessions.Wait()
}
