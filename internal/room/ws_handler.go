package room

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/minato-app/game-service/internal/identity"
	httperrors "github.com/minato-app/game-service/pkg/http/errors"
	"github.com/minato-app/game-service/pkg/http/ws"
)

// WSHandler upgrades clients onto the room event stream. Clients subscribe
// to rooms they are a member of and receive lifecycle broadcasts until the
// room finishes or they disconnect.
type WSHandler struct {
	hub      *ws.Hub
	service  *Service
	verifier *identity.Verifier
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewWSHandler(hub *ws.Hub, service *Service, verifier *identity.Verifier, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:      hub,
		service:  service,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser origins are enforced at the edge proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "room_ws").Logger(),
	}
}

// ServeHTTP handles GET /ws/rooms. Browsers cannot set headers on WebSocket
// dials, so the token also rides a query parameter.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = identity.BearerToken(r)
	}
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "authentication required")
		return
	}

	principal, err := h.verifier.Verify(token)
	if err != nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "invalid or expired token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	wsConn := ws.NewConnection(conn, h.logger.With().Str("user_id", principal.UserID.String()).Logger())
	h.hub.RegisterConnection(principal.UserID, wsConn)

	go wsConn.WritePump()
	go func() {
		defer h.hub.UnregisterConnection(principal.UserID)
		// the request context dies when ServeHTTP returns; the upgraded
		// connection outlives it
		ctx := context.Background()
		wsConn.ReadPump(func(msg ws.Message) error {
			return h.handleMessage(ctx, principal, wsConn, msg)
		})
	}()
}

func (h *WSHandler) handleMessage(ctx context.Context, principal *identity.Principal, conn *ws.Connection, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeSubscribeRoom:
		var payload ws.SubscribeRoomPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return h.sendError(conn, msg.RequestID, httperrors.ErrCodeInvalidPayload, "invalid subscribe payload")
		}
		roomID, err := uuid.Parse(payload.RoomID)
		if err != nil {
			return h.sendError(conn, msg.RequestID, httperrors.ErrCodeInvalidRoomID, "room_id must be a UUID")
		}

		member, err := h.service.isMember(ctx, roomID, principal.UserID)
		if err != nil {
			return h.sendError(conn, msg.RequestID, httperrors.ErrCodeInternalError, "membership check failed")
		}
		if !member {
			return h.sendError(conn, msg.RequestID, httperrors.ErrCodeForbidden, "join the room before subscribing")
		}

		h.hub.SubscribeRoom(roomID, principal.UserID)
		return nil

	case ws.TypeUnsubscribeRoom:
		var payload ws.UnsubscribeRoomPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return h.sendError(conn, msg.RequestID, httperrors.ErrCodeInvalidPayload, "invalid unsubscribe payload")
		}
		roomID, err := uuid.Parse(payload.RoomID)
		if err != nil {
			return h.sendError(conn, msg.RequestID, httperrors.ErrCodeInvalidRoomID, "room_id must be a UUID")
		}
		h.hub.UnsubscribeRoom(roomID, principal.UserID)
		return nil

	case ws.TypePing:
		return conn.Send(ws.Message{Type: ws.TypePong, RequestID: msg.RequestID})

	default:
		return h.sendError(conn, msg.RequestID, httperrors.ErrCodeUnknownMessageType, "unknown message type")
	}
}

func (h *WSHandler) sendError(conn *ws.Connection, requestID, code, message string) error {
	raw, err := json.Marshal(ws.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return err
	}
	return conn.Send(ws.Message{Type: ws.TypeError, Payload: raw, RequestID: requestID})
}
