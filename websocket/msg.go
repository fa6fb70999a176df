package websocket

import (
	"time"

	"github.com/aukilabs/dagaz/models"
)

const (
	ErrTypeMsgDecode          = "msg_decode_failed"
	ErrTypeUnsupportedMsgType = "unsupported_msg_type"
)

type MsgType string

const (
	MsgTypePing          MsgType = "ping"
	MsgTypePingResponse  MsgType = "ping_response"
	MsgTypeQuery         MsgType = "query"
	MsgTypeQueryResponse MsgType = "query_response"
	MsgTypeErrorResponse MsgType = "error_response"
)

// Msg is a message exchanged with a stream client. Requests carry a request id
// that is copied into their response.
type Msg struct {
	Type      MsgType                `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	Scene     string                 `json:"scene,omitempty"`
	Box       *models.Box            `json:"box,omitempty"`
	Objects   []models.ObjectMessage `json:"objects,omitempty"`
	Error     string                 `json:"error,omitempty"`
	ErrorType string                 `json:"error_type,omitempty"`
}

func (m Msg) TypeString() string {
	if m.Type == "" {
		return "unknown"
	}
	return string(m.Type)
}

// Receiver reads the next message of a connection and returns the number of
// bytes read.
type Receiver func() (Msg, int, error)

// Sender writes a message to a connection and returns the number of bytes
// written.
type Sender func(Msg) (int, error)

// ResponseSender sends responses to the client that made a request.
type ResponseSender interface {
	Send(Msg)
}
