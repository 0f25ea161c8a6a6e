package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/minato-app/game-service/internal/room"
)

// DB is the subset of pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RoomRepository persists rooms, players, and answers. It implements
// room.Store over the game_rooms, room_players, room_answers, and
// room_invites tables.
type RoomRepository struct {
	db DB
}

func NewRoomRepository(db DB) *RoomRepository {
	return &RoomRepository{db: db}
}

const roomColumns = `id::text, room_code, host_user_id::text, game_type, difficulty,
	mode, status, is_private, max_players, rounds, questions,
	current_question_index, current_question, settings, final_scores,
	version, created_at, started_at, finished_at`

// CreateRoom inserts a new room row.
func (r *RoomRepository) CreateRoom(ctx context.Context, rm *room.Room) error {
	questions, settings, currentQuestion, finalScores, err := marshalRoomJSON(rm)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO game_rooms (
			id, room_code, host_user_id, game_type, difficulty, mode, status,
			is_private, max_players, rounds, questions, current_question_index,
			current_question, settings, final_scores, version, created_at,
			started_at, finished_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		rm.ID, rm.RoomCode, rm.HostUserID, rm.GameType, rm.Difficulty, rm.Mode,
		rm.Status, rm.IsPrivate, rm.MaxPlayers, rm.Rounds, questions,
		rm.CurrentQuestionIndex, currentQuestion, settings, finalScores,
		rm.Version, rm.CreatedAt, rm.StartedAt, rm.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// GetRoom loads a room by id. Returns (nil, nil) when no row exists.
func (r *RoomRepository) GetRoom(ctx context.Context, id uuid.UUID) (*room.Room, error) {
	row := r.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM game_rooms WHERE id = $1`, id)
	rm, err := scanRoom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select room: %w", err)
	}
	return rm, nil
}

// UpdateRoom writes the row wholesale, conditional on the expected version.
// A zero-row update means the version moved underneath the caller.
func (r *RoomRepository) UpdateRoom(ctx context.Context, rm *room.Room, expectedVersion int) error {
	questions, settings, currentQuestion, finalScores, err := marshalRoomJSON(rm)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE game_rooms SET
			status = $1,
			questions = $2,
			current_question_index = $3,
			current_question = $4,
			settings = $5,
			final_scores = $6,
			started_at = $7,
			finished_at = $8,
			version = version + 1
		WHERE id = $9 AND version = $10`,
		rm.Status, questions, rm.CurrentQuestionIndex, currentQuestion,
		settings, finalScores, rm.StartedAt, rm.FinishedAt,
		rm.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return room.ErrVersionConflict
	}
	rm.Version = expectedVersion + 1
	return nil
}

// DeleteRoom removes a room; player, answer, and invite rows go with it via
// ON DELETE CASCADE.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM game_rooms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

// RoomCodeActive reports whether a code belongs to a lobby or in-progress
// room. Codes of finished rooms are free for reuse.
func (r *RoomRepository) RoomCodeActive(ctx context.Context, code string) (bool, error) {
	var active bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM game_rooms
			WHERE room_code = $1 AND status IN ('lobby', 'in_progress')
		)`, code).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("check room code: %w", err)
	}
	return active, nil
}

// AddPlayer inserts a membership row. Returns false when the player is
// already in the room.
func (r *RoomRepository) AddPlayer(ctx context.Context, p *room.Player) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO room_players (room_id, user_id, username, avatar_url, score, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (room_id, user_id) DO NOTHING`,
		p.RoomID, p.UserID, p.Username, p.AvatarURL, p.Score, p.JoinedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert player: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListPlayers returns the room's players in join order.
func (r *RoomRepository) ListPlayers(ctx context.Context, roomID uuid.UUID) ([]room.Player, error) {
	rows, err := r.db.Query(ctx, `
		SELECT room_id::text, user_id::text, username, avatar_url, score, joined_at
		FROM room_players
		WHERE room_id = $1
		ORDER BY joined_at ASC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("select players: %w", err)
	}
	defer rows.Close()

	var players []room.Player
	for rows.Next() {
		var p room.Player
		var roomIDStr, userIDStr string
		if err := rows.Scan(&roomIDStr, &userIDStr, &p.Username, &p.AvatarURL, &p.Score, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		if p.RoomID, err = uuid.Parse(roomIDStr); err != nil {
			return nil, fmt.Errorf("parse room id: %w", err)
		}
		if p.UserID, err = uuid.Parse(userIDStr); err != nil {
			return nil, fmt.Errorf("parse user id: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// AddPlayerScores applies score awards in one batch.
func (r *RoomRepository) AddPlayerScores(ctx context.Context, roomID uuid.UUID, awards map[uuid.UUID]int) error {
	if len(awards) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for userID, points := range awards {
		batch.Queue(`
			UPDATE room_players SET score = score + $1
			WHERE room_id = $2 AND user_id = $3`,
			points, roomID, userID,
		)
	}

	pool, ok := r.db.(interface {
		SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	})
	if !ok {
		// plain DB without batch support; fall back to sequential updates
		for userID, points := range awards {
			if _, err := r.db.Exec(ctx, `
				UPDATE room_players SET score = score + $1
				WHERE room_id = $2 AND user_id = $3`,
				points, roomID, userID); err != nil {
				return fmt.Errorf("apply score: %w", err)
			}
		}
		return nil
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()
	for range awards {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("apply score batch: %w", err)
		}
	}
	return nil
}

// InsertAnswer records a submission. The (room, question, user) primary key
// with DO NOTHING makes resubmission a no-op; the first answer wins.
func (r *RoomRepository) InsertAnswer(ctx context.Context, a *room.Answer) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO room_answers (room_id, question_index, user_id, answer_index, answered_at, time_taken_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (room_id, question_index, user_id) DO NOTHING`,
		a.RoomID, a.QuestionIndex, a.UserID, a.AnswerIndex, a.AnsweredAt,
		a.TimeTaken.Milliseconds(),
	)
	if err != nil {
		return false, fmt.Errorf("insert answer: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListAnswers returns the answers for one question of a room.
func (r *RoomRepository) ListAnswers(ctx context.Context, roomID uuid.UUID, questionIndex int) ([]room.Answer, error) {
	rows, err := r.db.Query(ctx, `
		SELECT room_id::text, question_index, user_id::text, answer_index, answered_at, time_taken_ms
		FROM room_answers
		WHERE room_id = $1 AND question_index = $2
		ORDER BY answered_at ASC`, roomID, questionIndex)
	if err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}
	defer rows.Close()
	return scanAnswers(rows)
}

// ListAllAnswers returns every answer of a room, for final-score computation.
func (r *RoomRepository) ListAllAnswers(ctx context.Context, roomID uuid.UUID) ([]room.Answer, error) {
	rows, err := r.db.Query(ctx, `
		SELECT room_id::text, question_index, user_id::text, answer_index, answered_at, time_taken_ms
		FROM room_answers
		WHERE room_id = $1
		ORDER BY question_index ASC, answered_at ASC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}
	defer rows.Close()
	return scanAnswers(rows)
}

// HasAcceptedInvite reports whether the user holds an accepted invite for a
// private room.
func (r *RoomRepository) HasAcceptedInvite(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var accepted bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM room_invites
			WHERE room_id = $1 AND user_id = $2 AND accepted
		)`, roomID, userID).Scan(&accepted)
	if err != nil {
		return false, fmt.Errorf("check invite: %w", err)
	}
	return accepted, nil
}

// ListExpiredAutoAdvance returns in-progress auto-advance rooms whose active
// question deadline has passed.
func (r *RoomRepository) ListExpiredAutoAdvance(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text FROM game_rooms
		WHERE status = 'in_progress'
		  AND (settings->>'auto_advance')::boolean
		  AND (current_question->>'deadline')::timestamptz < $1
		ORDER BY (current_question->>'deadline')::timestamptz ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("select expired rooms: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, fmt.Errorf("scan room id: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse room id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanAnswers(rows pgx.Rows) ([]room.Answer, error) {
	var answers []room.Answer
	for rows.Next() {
		var a room.Answer
		var roomIDStr, userIDStr string
		var takenMS int64
		if err := rows.Scan(&roomIDStr, &a.QuestionIndex, &userIDStr, &a.AnswerIndex, &a.AnsweredAt, &takenMS); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		var err error
		if a.RoomID, err = uuid.Parse(roomIDStr); err != nil {
			return nil, fmt.Errorf("parse room id: %w", err)
		}
		if a.UserID, err = uuid.Parse(userIDStr); err != nil {
			return nil, fmt.Errorf("parse user id: %w", err)
		}
		a.TimeTaken = time.Duration(takenMS) * time.Millisecond
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func scanRoom(row pgx.Row) (*room.Room, error) {
	var rm room.Room
	var idStr, hostStr string
	var questions, currentQuestion, settings, finalScores []byte

	err := row.Scan(
		&idStr, &rm.RoomCode, &hostStr, &rm.GameType, &rm.Difficulty,
		&rm.Mode, &rm.Status, &rm.IsPrivate, &rm.MaxPlayers, &rm.Rounds,
		&questions, &rm.CurrentQuestionIndex, &currentQuestion, &settings,
		&finalScores, &rm.Version, &rm.CreatedAt, &rm.StartedAt, &rm.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	if rm.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse room id: %w", err)
	}
	if rm.HostUserID, err = uuid.Parse(hostStr); err != nil {
		return nil, fmt.Errorf("parse host id: %w", err)
	}

	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &rm.Questions); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
	}
	if len(currentQuestion) > 0 {
		rm.CurrentQuestion = &room.QuestionSnapshot{}
		if err := json.Unmarshal(currentQuestion, rm.CurrentQuestion); err != nil {
			return nil, fmt.Errorf("decode current question: %w", err)
		}
	}
	if err := json.Unmarshal(settings, &rm.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if len(finalScores) > 0 {
		if err := json.Unmarshal(finalScores, &rm.FinalScores); err != nil {
			return nil, fmt.Errorf("decode final scores: %w", err)
		}
	}
	return &rm, nil
}

func marshalRoomJSON(rm *room.Room) (questions, settings, currentQuestion, finalScores []byte, err error) {
	if questions, err = json.Marshal(rm.Questions); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode questions: %w", err)
	}
	if settings, err = json.Marshal(rm.Settings); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode settings: %w", err)
	}
	if rm.CurrentQuestion != nil {
		if currentQuestion, err = json.Marshal(rm.CurrentQuestion); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("encode current question: %w", err)
		}
	}
	if rm.FinalScores != nil {
		if finalScores, err = json.Marshal(rm.FinalScores); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("encode final scores: %w", err)
		}
	}
	return questions, settings, currentQuestion, finalScores, nil
}
