package room

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/minato-app/game-service/pkg/http/ws"
)

// Broadcaster fans room events out to subscribed WebSocket connections.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToRoom(roomID uuid.UUID, msg ws.Message) error
	DropRoom(roomID uuid.UUID)
}

// Events publishes room lifecycle notifications. Broadcasting is a secondary
// effect: failures are logged and never propagate to the caller. A nil
// *Events is valid and publishes nothing.
type Events struct {
	hub    Broadcaster
	logger zerolog.Logger
}

// NewEvents wraps a broadcaster. hub may be nil for solo-only deployments.
func NewEvents(hub Broadcaster, logger zerolog.Logger) *Events {
	return &Events{
		hub:    hub,
		logger: logger.With().Str("component", "room_events").Logger(),
	}
}

func (e *Events) PlayerJoined(r *Room, p *Player, playerCount int) {
	e.publish(r.ID, ws.TypePlayerJoined, ws.PlayerJoinedPayload{
		RoomID:      r.ID.String(),
		UserID:      p.UserID.String(),
		Username:    p.Username,
		PlayerCount: playerCount,
		MaxPlayers:  r.MaxPlayers,
	})
}

func (e *Events) RoomStarted(r *Room) {
	if r.CurrentQuestion == nil {
		return
	}
	e.publish(r.ID, ws.TypeRoomStarted, ws.RoomStartedPayload{
		RoomID:   r.ID.String(),
		Rounds:   len(r.Questions),
		Question: questionPayload(r.CurrentQuestion),
	})
}

func (e *Events) QuestionAdvanced(r *Room, previousIndex int) {
	if r.CurrentQuestion == nil {
		return
	}
	e.publish(r.ID, ws.TypeQuestionAdvanced, ws.QuestionAdvancedPayload{
		RoomID:        r.ID.String(),
		PreviousIndex: previousIndex,
		Question:      questionPayload(r.CurrentQuestion),
	})
}

func (e *Events) RoomFinished(r *Room) {
	scores := make([]ws.FinalScoreWS, len(r.FinalScores))
	for i, fs := range r.FinalScores {
		scores[i] = ws.FinalScoreWS{
			UserID:         fs.UserID.String(),
			Username:       fs.Username,
			Score:          fs.Score,
			CorrectAnswers: fs.CorrectAnswers,
			Rank:           fs.Rank,
		}
	}
	e.publish(r.ID, ws.TypeRoomFinished, ws.RoomFinishedPayload{
		RoomID:      r.ID.String(),
		FinalScores: scores,
	})
	if e != nil && e.hub != nil {
		e.hub.DropRoom(r.ID)
	}
}

func (e *Events) RoomCancelled(r *Room) {
	e.publish(r.ID, ws.TypeRoomCancelled, ws.RoomCancelledPayload{
		RoomID: r.ID.String(),
		Reason: "cancelled by host",
	})
	if e != nil && e.hub != nil {
		e.hub.DropRoom(r.ID)
	}
}

func (e *Events) QuestionsRefreshed(r *Room) {
	e.publish(r.ID, ws.TypeQuestionsRefreshed, ws.QuestionsRefreshedPayload{
		RoomID:        r.ID.String(),
		QuestionCount: len(r.Questions),
	})
}

// RoomDropped disconnects subscribers after a room is deleted.
func (e *Events) RoomDropped(roomID uuid.UUID) {
	if e == nil || e.hub == nil {
		return
	}
	e.hub.DropRoom(roomID)
}

func (e *Events) publish(roomID uuid.UUID, msgType string, payload any) {
	if e == nil || e.hub == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error().Err(err).Str("type", msgType).Msg("failed to marshal event payload")
		return
	}
	if err := e.hub.BroadcastToRoom(roomID, ws.Message{Type: msgType, Payload: raw}); err != nil {
		e.logger.Warn().Err(err).
			Str("room_id", roomID.String()).
			Str("type", msgType).
			Msg("failed to broadcast room event")
	}
}

func questionPayload(snap *QuestionSnapshot) ws.QuestionPayload {
	return ws.QuestionPayload{
		Index:     snap.Index,
		Prompt:    snap.Question.Prompt,
		Options:   snap.Question.Options,
		StartedAt: snap.StartedAt.UTC().Format(time.RFC3339),
		TimeLimit: snap.TimeLimit,
	}
}
