package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/dagaz/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	HeaderClientID = "X-Dagaz-Client-ID"

	maxMsgSize = 1 << 16
)

// StreamHandler answers the queries sent by a client over a WebSocket
// connection.
type StreamHandler struct {
	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The store that contains the scenes being queried.
	Scenes *models.SceneStore

	conn     *websocket.Conn
	clientID string
}

func (h *StreamHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn
	h.conn.MaxPayloadBytes = maxMsgSize

	h.clientID = conn.Request().Header.Get(HeaderClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}
}

func (h *StreamHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(Msg{
		Type:      MsgTypePingResponse,
		RequestID: msg.RequestID,
	})
	return nil
}

func (h *StreamHandler) HandleQuery(ctx context.Context, respond ResponseSender, msg Msg) error {
	if msg.Box == nil {
		sendError(respond, msg, errors.New("query box is missing").
			WithType(models.ErrTypeInvalidBox))
		return nil
	}

	bounds, err := msg.Box.BoundingBox()
	if err != nil {
		sendError(respond, msg, err)
		return nil
	}

	scene, ok := h.Scenes.Get(msg.Scene)
	if !ok {
		sendError(respond, msg, errors.New("scene not found").
			WithType(models.ErrTypeSceneNotFound).
			WithTag("scene", msg.Scene))
		return nil
	}

	respond.Send(Msg{
		Type:      MsgTypeQueryResponse,
		RequestID: msg.RequestID,
		Scene:     msg.Scene,
		Objects:   models.NewObjectMessages(scene.Query(bounds)),
	})
	return nil
}

func (h *StreamHandler) HandleDisconnect(err error) {
}

func (h *StreamHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		var data []byte
		if err := websocket.Message.Receive(h.conn, &data); err != nil {
			return Msg{}, 0, err
		}

		var msg Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			return Msg{}, len(data), errors.New("decoding message failed").
				WithType(ErrTypeMsgDecode).
				Wrap(err)
		}
		return msg, len(data), nil
	}
}

func (h *StreamHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		data, err := json.Marshal(msg)
		if err != nil {
			return 0, errors.New("encoding message failed").
				WithTag("msg_type", msg.TypeString()).
				Wrap(err)
		}

		if err := websocket.Message.Send(h.conn, string(data)); err != nil {
			return 0, err
		}
		return len(data), nil
	}
}

func (h *StreamHandler) Close() {
}

func (h *StreamHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *StreamHandler) GetClientID() string {
	return h.clientID
}

func sendError(respond ResponseSender, req Msg, err error) {
	respond.Send(Msg{
		Type:      MsgTypeErrorResponse,
		RequestID: req.RequestID,
		Scene:     req.Scene,
		Error:     err.Error(),
		ErrorType: errors.Type(err),
	})
}
