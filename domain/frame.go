package domain

import "time"

type FrameType string

const (
	FrameMessage FrameType = "message"
	FrameHistory FrameType = "history"
	FramePing    FrameType = "ping"
	FrameError   FrameType = "error"
)

// InboundFrame is the only payload a client may send.
type InboundFrame struct {
	Text     string `json:"text"`
	SenderID string `json:"sender_id"`
}

// MessageFrame is a chat message rendered for one recipient.
type MessageFrame struct {
	Type       FrameType `json:"type"`
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Timestamp  string    `json:"timestamp"`
	Sender     Role      `json:"sender"`
}

type HistoryFrame struct {
	Type     FrameType      `json:"type"`
	Messages []MessageFrame `json:"messages"`
}

type PingFrame struct {
	Type FrameType `json:"type"`
}

// Error frame codes. An error frame never ends the session.
const (
	ErrorCodeRateLimited    = "rate_limited"
	ErrorCodeContentTooLong = "content_too_long"
	ErrorCodeMalformed      = "malformed_frame"
)

type ErrorFrame struct {
	Type   FrameType `json:"type"`
	Code   string    `json:"code"`
	Reason string    `json:"reason"`
}

// TimestampLayout is ISO-8601 with sub-second precision.
const TimestampLayout = time.RFC3339Nano

// Render builds the wire shape of a message.
func Render(m Message) MessageFrame {
	return MessageFrame{
		Type:       FrameMessage,
		ID:         m.ID.String(),
		Text:       m.Text,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Timestamp:  m.Timestamp.UTC().Format(TimestampLayout),
		Sender:     m.SenderRole,
	}
}

func NewPingFrame() PingFrame {
	return PingFrame{Type: FramePing}
}

func NewErrorFrame(code, reason string) ErrorFrame {
	return ErrorFrame{Type: FrameError, Code: code, Reason: reason}
}

func NewHistoryFrame(messages []MessageFrame) HistoryFrame {
	if messages == nil {
		messages = []MessageFrame{}
	}
	return HistoryFrame{Type: FrameHistory, Messages: messages}
}
