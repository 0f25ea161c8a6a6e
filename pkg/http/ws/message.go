package ws

import "encoding/json"

// MessageType constants for the room event stream.
const (
	// Client -> Server
	TypeSubscribeRoom   = "subscribe_room"
	TypeUnsubscribeRoom = "unsubscribe_room"

	// Server -> Client
	TypePlayerJoined       = "player_joined"
	TypeRoomStarted        = "room_started"
	TypeQuestionAdvanced   = "question_advanced"
	TypeRoomFinished       = "room_finished"
	TypeRoomCancelled      = "room_cancelled"
	TypeQuestionsRefreshed = "questions_refreshed"
	TypeError              = "error"
	TypePing               = "ping"
	TypePong               = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// Client Messages (incoming)

type SubscribeRoomPayload struct {
	RoomID string `json:"room_id"`
}

type UnsubscribeRoomPayload struct {
	RoomID string `json:"room_id"`
}

// Server Messages (outgoing)

type PlayerJoinedPayload struct {
	RoomID      string `json:"room_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
}

type RoomStartedPayload struct {
	RoomID   string          `json:"room_id"`
	Rounds   int             `json:"rounds"`
	Question QuestionPayload `json:"question"`
}

type QuestionPayload struct {
	Index     int      `json:"index"`
	Prompt    string   `json:"prompt"`
	Options   []string `json:"options"`
	StartedAt string   `json:"started_at"`
	TimeLimit int      `json:"time_limit_seconds"`
}

type QuestionAdvancedPayload struct {
	RoomID        string          `json:"room_id"`
	PreviousIndex int             `json:"previous_index"`
	Question      QuestionPayload `json:"question"`
}

type RoomFinishedPayload struct {
	RoomID      string         `json:"room_id"`
	FinalScores []FinalScoreWS `json:"final_scores"`
}

type FinalScoreWS struct {
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correct_answers"`
	Rank           int    `json:"rank"`
}

type RoomCancelledPayload struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason,omitempty"`
}

type QuestionsRefreshedPayload struct {
	RoomID        string `json:"room_id"`
	QuestionCount int    `json:"question_count"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
