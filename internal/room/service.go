package room

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/minato-app/game-service/internal/identity"
	"github.com/minato-app/game-service/internal/question"
	"github.com/minato-app/game-service/internal/room/scoring"
	httperrors "github.com/minato-app/game-service/pkg/http/errors"
)

// ErrVersionConflict is returned by Store.UpdateRoom when the expected
// version no longer matches the stored row.
var ErrVersionConflict = errors.New("room version conflict")

// Store persists rooms, players, and answers. GetRoom returns (nil, nil) for
// a missing room. UpdateRoom writes the row wholesale, conditional on the
// expected version, and bumps Version on success.
type Store interface {
	CreateRoom(ctx context.Context, r *Room) error
	GetRoom(ctx context.Context, id uuid.UUID) (*Room, error)
	UpdateRoom(ctx context.Context, r *Room, expectedVersion int) error
	DeleteRoom(ctx context.Context, id uuid.UUID) error
	RoomCodeActive(ctx context.Context, code string) (bool, error)

	AddPlayer(ctx context.Context, p *Player) (bool, error)
	ListPlayers(ctx context.Context, roomID uuid.UUID) ([]Player, error)
	AddPlayerScores(ctx context.Context, roomID uuid.UUID, awards map[uuid.UUID]int) error

	InsertAnswer(ctx context.Context, a *Answer) (bool, error)
	ListAnswers(ctx context.Context, roomID uuid.UUID, questionIndex int) ([]Answer, error)
	ListAllAnswers(ctx context.Context, roomID uuid.UUID) ([]Answer, error)

	HasAcceptedInvite(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	ListExpiredAutoAdvance(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// QuestionSource supplies generated question batches.
type QuestionSource interface {
	FetchBatch(ctx context.Context, req question.BatchRequest) ([]question.Question, error)
}

// Entitlements is the subscription-status collaborator.
type Entitlements interface {
	CanPlayMultiplayer(ctx context.Context, userID uuid.UUID) (bool, error)
}

// ResultRecorder receives final scores for leaderboard bookkeeping.
// Recording is best-effort; failures never block room completion.
type ResultRecorder interface {
	RecordRoomResult(ctx context.Context, roomCode string, scores []FinalScore) error
}

// Service is the room lifecycle manager. Each operation is a single
// request-scoped read-modify-write against the store; state transitions carry
// an optimistic version check so concurrent advances cannot double-apply.
type Service struct {
	store        Store
	questions    QuestionSource
	entitlements Entitlements
	recorder     ResultRecorder
	events       *Events
	engine       *scoring.Engine
	logger       zerolog.Logger
	now          func() time.Time
}

// ServiceOptions configures the room service.
type ServiceOptions struct {
	Scoring scoring.Config
	Now     func() time.Time
}

// NewService creates a room service. recorder and events may be nil.
func NewService(
	store Store,
	questions QuestionSource,
	entitlements Entitlements,
	recorder ResultRecorder,
	events *Events,
	opts ServiceOptions,
	logger zerolog.Logger,
) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:        store,
		questions:    questions,
		entitlements: entitlements,
		recorder:     recorder,
		events:       events,
		engine:       scoring.NewEngine(opts.Scoring),
		logger:       logger.With().Str("component", "room_service").Logger(),
		now:          now,
	}
}

// Create opens a new room in the lobby state with the host auto-joined.
func (s *Service) Create(ctx context.Context, req CreateRequest, host identity.Principal) (*Room, error) {
	if req.GameType == "" {
		return nil, httperrors.Validation(httperrors.ErrCodeMissingField, "game_type is required")
	}
	if req.Difficulty == "" {
		return nil, httperrors.Validation(httperrors.ErrCodeMissingField, "difficulty is required")
	}
	if req.Rounds <= 0 {
		return nil, httperrors.Validation(httperrors.ErrCodeMissingField, "rounds is required")
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeSolo
	}

	maxPlayers := req.MaxPlayers
	switch mode {
	case ModeSolo:
		maxPlayers = 1
	case ModeMultiplayer:
		if maxPlayers < 2 {
			return nil, httperrors.Validation(httperrors.ErrCodeValidationFailed, "max_players must be at least 2 for multiplayer rooms")
		}
		allowed, err := s.entitlements.CanPlayMultiplayer(ctx, host.UserID)
		if err != nil {
			return nil, httperrors.Upstream(httperrors.ErrCodeUpstreamError, "could not verify subscription status")
		}
		if !allowed {
			return nil, httperrors.Forbidden(httperrors.ErrCodePlanRestricted, "your plan does not include multiplayer rooms")
		}
	default:
		return nil, httperrors.Validation(httperrors.ErrCodeValidationFailed, fmt.Sprintf("unknown mode %q", mode))
	}

	settings := req.Settings.Normalize()
	if err := settings.Validate(); err != nil {
		return nil, httperrors.Validation(httperrors.ErrCodeValidationFailed, err.Error())
	}

	code, err := generateRoomCode(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("generate room code: %w", err)
	}

	now := s.now()
	r := &Room{
		ID:         uuid.New(),
		RoomCode:   code,
		HostUserID: host.UserID,
		GameType:   req.GameType,
		Difficulty: req.Difficulty,
		Mode:       mode,
		Status:     StatusLobby,
		IsPrivate:  req.IsPrivate,
		MaxPlayers: maxPlayers,
		Rounds:     req.Rounds,
		Settings:   settings,
		Version:    1,
		CreatedAt:  now,
	}

	if err := s.store.CreateRoom(ctx, r); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	hostPlayer := &Player{
		RoomID:    r.ID,
		UserID:    host.UserID,
		Username:  host.Username,
		AvatarURL: host.AvatarURL,
		JoinedAt:  now,
	}
	if _, err := s.store.AddPlayer(ctx, hostPlayer); err != nil {
		return nil, fmt.Errorf("add host player: %w", err)
	}

	roomsCreated.WithLabelValues(mode).Inc()

	s.logger.Info().
		Str("room_id", r.ID.String()).
		Str("room_code", code).
		Str("mode", mode).
		Str("host_id", host.UserID.String()).
		Msg("room created")

	return r, nil
}

// Join adds a player to a lobby room. Joining a room you are already in is a
// no-op that reports success.
func (s *Service) Join(ctx context.Context, roomID uuid.UUID, user identity.Principal) (*Room, error) {
	r, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	players, err := s.store.ListPlayers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	for _, p := range players {
		if p.UserID == user.UserID {
			return r, nil // already a member
		}
	}

	if r.Status != StatusLobby {
		return nil, httperrors.Conflict(httperrors.ErrCodeRoomNotInLobby, "room is no longer accepting players")
	}
	if len(players) >= r.MaxPlayers {
		return nil, httperrors.Conflict(httperrors.ErrCodeRoomFull, "room is full")
	}

	if r.IsPrivate && user.UserID != r.HostUserID {
		invited, err := s.store.HasAcceptedInvite(ctx, roomID, user.UserID)
		if err != nil {
			return nil, fmt.Errorf("check invite: %w", err)
		}
		if !invited {
			return nil, httperrors.Forbidden(httperrors.ErrCodeInviteRequired, "an accepted invitation is required to join this room")
		}
	}

	p := &Player{
		RoomID:    roomID,
		UserID:    user.UserID,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
		JoinedAt:  s.now(),
	}
	if _, err := s.store.AddPlayer(ctx, p); err != nil {
		return nil, fmt.Errorf("add player: %w", err)
	}

	s.events.PlayerJoined(r, p, len(players)+1)

	s.logger.Info().
		Str("room_id", roomID.String()).
		Str("user_id", user.UserID.String()).
		Int("player_count", len(players)+1).
		Msg("player joined room")

	return r, nil
}

// Start transitions lobby -> in_progress. Host only. Questions are generated
// lazily; multiplayer rooms always regenerate so sessions never share a pack.
func (s *Service) Start(ctx context.Context, roomID, requesterID uuid.UUID) (*Room, error) {
	r, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if r.HostUserID != requesterID {
		return nil, httperrors.Forbidden(httperrors.ErrCodeNotRoomHost, "only the host can start the room")
	}
	if r.Status != StatusLobby {
		return nil, httperrors.Conflict(httperrors.ErrCodeRoomNotInLobby, "room has already started")
	}

	if len(r.Questions) == 0 || r.Mode == ModeMultiplayer {
		questions, err := s.generateQuestions(ctx, r)
		if err != nil {
			return nil, err
		}
		r.Questions = questions
	}

	now := s.now()
	idx := 0
	r.Status = StatusInProgress
	r.CurrentQuestionIndex = &idx
	r.CurrentQuestion = s.snapshot(r, idx, now)
	r.StartedAt = &now

	if err := s.applyUpdate(ctx, r); err != nil {
		return nil, err
	}

	s.events.RoomStarted(r)

	s.logger.Info().
		Str("room_id", roomID.String()).
		Int("rounds", len(r.Questions)).
		Msg("room started")

	return r, nil
}

// SubmitAnswer records one player's answer for the active question.
// Duplicate submissions for the same question are silently ignored. Scores
// are not touched here; scoring happens at advancement so every answer for a
// question is judged under one rule.
func (s *Service) SubmitAnswer(ctx context.Context, roomID uuid.UUID, userID uuid.UUID, questionIndex, answerIndex int) error {
	r, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if r.Status != StatusInProgress {
		return httperrors.Conflict(httperrors.ErrCodeRoomNotInProgress, "room is not in progress")
	}
	if r.CurrentQuestionIndex == nil || r.CurrentQuestion == nil {
		return httperrors.Internal("room has no active question")
	}
	if questionIndex != *r.CurrentQuestionIndex {
		return httperrors.Conflict(httperrors.ErrCodeStaleQuestionIndex, "that question is no longer active")
	}

	active := r.CurrentQuestion.Question
	if answerIndex < 0 || answerIndex >= len(active.Options) {
		return httperrors.Validation(httperrors.ErrCodeValidationFailed, "answer_index out of range")
	}

	member, err := s.isMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !member {
		return httperrors.Forbidden(httperrors.ErrCodeForbidden, "you are not a player in this room")
	}

	now := s.now()
	answer := &Answer{
		RoomID:        roomID,
		QuestionIndex: questionIndex,
		UserID:        userID,
		AnswerIndex:   answerIndex,
		AnsweredAt:    now,
		TimeTaken:     now.Sub(r.CurrentQuestion.StartedAt),
	}

	inserted, err := s.store.InsertAnswer(ctx, answer)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	if inserted {
		answersSubmitted.Inc()
	}

	return nil
}

// NextQuestion scores the completed question and advances or finishes the
// room. Host only; the auto-advance worker uses AutoAdvance instead.
func (s *Service) NextQuestion(ctx context.Context, roomID, requesterID uuid.UUID) (*AdvanceResult, error) {
	return s.advance(ctx, roomID, &requesterID)
}

// AutoAdvance is the system-invoked advancement used once a question's time
// limit has elapsed. Absent answers score zero.
func (s *Service) AutoAdvance(ctx context.Context, roomID uuid.UUID) (*AdvanceResult, error) {
	return s.advance(ctx, roomID, nil)
}

func (s *Service) advance(ctx context.Context, roomID uuid.UUID, requesterID *uuid.UUID) (*AdvanceResult, error) {
	r, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if requesterID != nil && r.HostUserID != *requesterID {
		return nil, httperrors.Forbidden(httperrors.ErrCodeNotRoomHost, "only the host can advance the question")
	}
	if r.Status != StatusInProgress {
		return nil, httperrors.Conflict(httperrors.ErrCodeRoomNotInProgress, "room is not in progress")
	}
	if r.CurrentQuestionIndex == nil || r.CurrentQuestion == nil {
		return nil, httperrors.Internal("room has no active question")
	}

	idx := *r.CurrentQuestionIndex
	current := r.Questions[idx]
	timeLimit := time.Duration(r.CurrentQuestion.TimeLimit) * time.Second

	answers, err := s.store.ListAnswers(ctx, roomID, idx)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	awards := make(map[uuid.UUID]int, len(answers))
	for _, a := range answers {
		correct := a.AnswerIndex == current.AnswerIndex
		if points := s.engine.Score(correct, a.TimeTaken, timeLimit); points > 0 {
			awards[a.UserID] = points
		}
	}

	result := &AdvanceResult{PreviousIndex: idx, ScoredAnswers: len(answers)}

	if idx+1 < len(r.Questions) {
		next := idx + 1
		now := s.now()
		r.CurrentQuestionIndex = &next
		r.CurrentQuestion = s.snapshot(r, next, now)

		// the version bump claims this transition; a caller that lost the
		// race gets a conflict before any score is awarded, so a retried
		// advance cannot pay the same question twice
		if err := s.applyUpdate(ctx, r); err != nil {
			return nil, err
		}
		if err := s.awardScores(ctx, roomID, awards); err != nil {
			return nil, err
		}

		result.NextIndex = next
		s.events.QuestionAdvanced(r, idx)
		return result, nil
	}

	finalScores, err := s.finish(ctx, r, awards)
	if err != nil {
		return nil, err
	}
	result.NextIndex = -1
	result.Finished = true
	result.FinalScores = finalScores
	return result, nil
}

func (s *Service) awardScores(ctx context.Context, roomID uuid.UUID, awards map[uuid.UUID]int) error {
	if len(awards) == 0 {
		return nil
	}
	if err := s.store.AddPlayerScores(ctx, roomID, awards); err != nil {
		return fmt.Errorf("apply scores: %w", err)
	}
	return nil
}

// finish computes the final ranking and moves the room to finished. awards
// holds the not-yet-persisted points for the last question; the ranking
// includes them so the stored final scores match the player rows once
// awardScores lands.
func (s *Service) finish(ctx context.Context, r *Room, awards map[uuid.UUID]int) ([]FinalScore, error) {
	players, err := s.store.ListPlayers(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	allAnswers, err := s.store.ListAllAnswers(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	correctCounts := make(map[uuid.UUID]int)
	for _, a := range allAnswers {
		if a.QuestionIndex >= 0 && a.QuestionIndex < len(r.Questions) &&
			a.AnswerIndex == r.Questions[a.QuestionIndex].AnswerIndex {
			correctCounts[a.UserID]++
		}
	}

	for i := range players {
		players[i].Score += awards[players[i].UserID]
	}

	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})

	finalScores := make([]FinalScore, len(players))
	for i, p := range players {
		finalScores[i] = FinalScore{
			UserID:         p.UserID,
			Username:       p.Username,
			Score:          p.Score,
			CorrectAnswers: correctCounts[p.UserID],
			Rank:           i + 1,
		}
	}

	now := s.now()
	r.Status = StatusFinished
	r.CurrentQuestionIndex = nil
	r.CurrentQuestion = nil
	r.FinalScores = finalScores
	r.FinishedAt = &now

	if err := s.applyUpdate(ctx, r); err != nil {
		return nil, err
	}
	if err := s.awardScores(ctx, r.ID, awards); err != nil {
		return nil, err
	}

	roomsFinished.Inc()

	if s.recorder != nil {
		if err := s.recorder.RecordRoomResult(ctx, r.RoomCode, finalScores); err != nil {
			s.logger.Warn().Err(err).Str("room_id", r.ID.String()).Msg("failed to record room result")
		}
	}

	s.events.RoomFinished(r)

	s.logger.Info().
		Str("room_id", r.ID.String()).
		Int("players", len(finalScores)).
		Msg("room finished")

	return finalScores, nil
}

// RegenerateQuestions replaces the question set while the room is still in
// the lobby. Host only.
func (s *Service) RegenerateQuestions(ctx context.Context, roomID, requesterID uuid.UUID) (int, error) {
	r, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if r.HostUserID != requesterID {
		return 0, httperrors.Forbidden(httperrors.ErrCodeNotRoomHost, "only the host can regenerate questions")
	}
	if r.Status != StatusLobby {
		return 0, httperrors.Conflict(httperrors.ErrCodeRoomNotInLobby, "questions can only be regenerated before the room starts")
	}

	questions, err := s.generateQuestions(ctx, r)
	if err != nil {
		return 0, err
	}
	r.Questions = questions

	if err := s.applyUpdate(ctx, r); err != nil {
		return 0, err
	}

	s.events.QuestionsRefreshed(r)
	return len(questions), nil
}

// Cancel moves a lobby or in-progress room to the terminal cancelled state.
func (s *Service) Cancel(ctx context.Context, roomID, requesterID uuid.UUID) error {
	r, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if r.HostUserID != requesterID {
		return httperrors.Forbidden(httperrors.ErrCodeNotRoomHost, "only the host can cancel the room")
	}
	if r.Status != StatusLobby && r.Status != StatusInProgress {
		return httperrors.Conflict(httperrors.ErrCodeConflict, "room can no longer be cancelled")
	}

	now := s.now()
	r.Status = StatusCancelled
	r.CurrentQuestionIndex = nil
	r.CurrentQuestion = nil
	r.FinishedAt = &now

	if err := s.applyUpdate(ctx, r); err != nil {
		return err
	}

	s.events.RoomCancelled(r)
	return nil
}

// Delete removes the room and all its players and answers. Host only.
func (s *Service) Delete(ctx context.Context, roomID, requesterID uuid.UUID) error {
	r, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if r.HostUserID != requesterID {
		return httperrors.Forbidden(httperrors.ErrCodeNotRoomHost, "only the host can delete the room")
	}

	if err := s.store.DeleteRoom(ctx, roomID); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}

	s.events.RoomDropped(roomID)

	s.logger.Info().
		Str("room_id", roomID.String()).
		Str("host_id", requesterID.String()).
		Msg("room deleted")

	return nil
}

// Get returns a room with its players for display.
func (s *Service) Get(ctx context.Context, roomID uuid.UUID) (*Room, []Player, error) {
	r, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	players, err := s.store.ListPlayers(ctx, roomID)
	if err != nil {
		return nil, nil, fmt.Errorf("list players: %w", err)
	}
	return r, players, nil
}

func (s *Service) loadRoom(ctx context.Context, roomID uuid.UUID) (*Room, error) {
	r, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	if r == nil {
		return nil, httperrors.NotFound(httperrors.ErrCodeRoomNotFound, "room not found")
	}
	return r, nil
}

func (s *Service) isMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	players, err := s.store.ListPlayers(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("list players: %w", err)
	}
	for _, p := range players {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) generateQuestions(ctx context.Context, r *Room) ([]question.Question, error) {
	req := question.BatchRequest{
		GameType:    r.GameType,
		Difficulty:  r.Difficulty,
		Rounds:      r.Rounds,
		Language:    r.Settings.Language,
		Topic:       r.Settings.TopicFocus,
		Personality: r.Settings.AIPersonality,
		Seed:        fmt.Sprintf("%s-%d", r.ID.String(), s.now().Unix()),
		SkipCache:   r.Mode == ModeMultiplayer,
	}
	questions, err := s.questions.FetchBatch(ctx, req)
	if err != nil {
		s.logger.Error().Err(err).Str("room_id", r.ID.String()).Msg("question generation failed")
		return nil, httperrors.Upstream(httperrors.ErrCodeQuestionFetchFailed, "could not generate questions")
	}
	return questions, nil
}

func (s *Service) snapshot(r *Room, idx int, now time.Time) *QuestionSnapshot {
	limit := r.Settings.TimePerQuestion
	return &QuestionSnapshot{
		Index:     idx,
		Question:  r.Questions[idx],
		StartedAt: now,
		TimeLimit: limit,
		Deadline:  now.Add(time.Duration(limit) * time.Second),
	}
}

// applyUpdate persists the mutated room under its version check and maps a
// lost race to a conflict the caller can surface or retry.
func (s *Service) applyUpdate(ctx context.Context, r *Room) error {
	expected := r.Version
	if err := s.store.UpdateRoom(ctx, r, expected); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			advanceConflicts.Inc()
			return httperrors.Conflict(httperrors.ErrCodeAdvanceConflict, "room was modified concurrently, retry")
		}
		return fmt.Errorf("update room: %w", err)
	}
	return nil
}
