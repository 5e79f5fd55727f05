package e2e

import (
	"care-chat/auth"
	"care-chat/domain"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type BaseWsSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ChatAddr == "" {
		s.T().Skip("CHAT_ADDR not set, skipping live chat suite")
	}
	s.Require().NotEmpty(s.Config.JwtSecret, "JWT_SECRET is required to sign test tokens")
}

// Client is one participant connected to the live server.
type Client struct {
	s  *BaseWsSuite
	ws *websocket.Conn
}

// Connect opens the conversation of the configured pair as identity.
func (s *BaseWsSuite) Connect(name string, identity domain.Identity) *Client {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	token, err := auth.GenerateToken([]byte(s.Config.JwtSecret), identity.ParticipantID, identity.Role, time.Hour)
	s.Require().NoError(err)

	target := url.URL{
		Scheme:   "ws",
		Host:     s.Config.ChatAddr,
		Path:     fmt.Sprintf("/chat/%s/%s", s.Config.DoctorID, s.Config.UserID),
		RawQuery: url.Values{"token": {token}}.Encode(),
	}
	ws, _, err := websocket.DefaultDialer.Dial(target.String(), nil)
	s.Require().NoError(err, "Failed to connect to chat server at "+s.Config.ChatAddr)
	return &Client{s: s, ws: ws}
}

func (c *Client) Say(text string) {
	frame := domain.InboundFrame{Text: text}
	c.dump("SEND", frame)
	c.s.Require().NoError(c.ws.WriteJSON(frame))
}

// Next returns the next frame of the given type, skipping heartbeat probes.
func (c *Client) Next(frameType domain.FrameType) map[string]any {
	for {
		c.s.Require().NoError(c.ws.SetReadDeadline(time.Now().Add(10 * time.Second)))
		var frame map[string]any
		c.s.Require().NoError(c.ws.ReadJSON(&frame))
		c.dump("RECV", frame)
		if frame["type"] == string(domain.FramePing) && frameType != domain.FramePing {
			continue
		}
		c.s.Require().Equal(string(frameType), frame["type"])
		return frame
	}
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	_ = c.ws.Close()
}

func (c *Client) dump(direction string, frame any) {
	if !c.s.Config.DebugJSON {
		return
	}
	data, _ := json.MarshalIndent(frame, "", "  ")
	c.s.T().Logf("%s %s", direction, data)
}
