package room

import (
	"time"

	"github.com/google/uuid"

	"github.com/minato-app/game-service/internal/question"
)

// Room modes.
const (
	ModeSolo        = "solo"
	ModeMultiplayer = "multiplayer"
)

// Room lifecycle states.
const (
	StatusLobby      = "lobby"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
	StatusCancelled  = "cancelled"
)

// Room is one game session. The row is the single source of truth for
// lifecycle state; it is read and written wholesale under an optimistic
// version check.
type Room struct {
	ID                   uuid.UUID
	RoomCode             string
	HostUserID           uuid.UUID
	GameType             string
	Difficulty           string
	Mode                 string
	Status               string
	IsPrivate            bool
	MaxPlayers           int
	Rounds               int
	Questions            []question.Question
	CurrentQuestionIndex *int
	CurrentQuestion      *QuestionSnapshot
	Settings             Settings
	FinalScores          []FinalScore
	Version              int
	CreatedAt            time.Time
	StartedAt            *time.Time
	FinishedAt           *time.Time
}

// QuestionSnapshot is the denormalized active question used for client
// display and deadline enforcement.
type QuestionSnapshot struct {
	Index     int               `json:"index"`
	Question  question.Question `json:"question"`
	StartedAt time.Time         `json:"started_at"`
	TimeLimit int               `json:"time_limit_seconds"`
	Deadline  time.Time         `json:"deadline"`
}

// Player is one (room, user) membership. Score only ever grows while the
// room is in progress.
type Player struct {
	RoomID    uuid.UUID
	UserID    uuid.UUID
	Username  string
	AvatarURL string
	Score     int
	JoinedAt  time.Time
}

// Answer is one submission for one question by one player.
type Answer struct {
	RoomID        uuid.UUID
	QuestionIndex int
	UserID        uuid.UUID
	AnswerIndex   int
	AnsweredAt    time.Time
	TimeTaken     time.Duration
}

// FinalScore is one row of the completed room's ranking.
type FinalScore struct {
	UserID         uuid.UUID `json:"user_id"`
	Username       string    `json:"username"`
	Score          int       `json:"score"`
	CorrectAnswers int       `json:"correct_answers"`
	Rank           int       `json:"rank"`
}

// CreateRequest carries the fields needed to open a room.
type CreateRequest struct {
	GameType   string   `json:"game_type"`
	Difficulty string   `json:"difficulty"`
	Rounds     int      `json:"rounds"`
	Mode       string   `json:"mode"`
	MaxPlayers int      `json:"max_players"`
	IsPrivate  bool     `json:"is_private"`
	Settings   Settings `json:"settings"`
}

// AdvanceResult reports what a next-question call did.
type AdvanceResult struct {
	PreviousIndex int          `json:"previous_index"`
	NextIndex     int          `json:"next_index"` // -1 when the room finished
	Finished      bool         `json:"finished"`
	ScoredAnswers int          `json:"scored_answers"`
	FinalScores   []FinalScore `json:"final_scores,omitempty"`
}
