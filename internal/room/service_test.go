package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minato-app/game-service/internal/identity"
	"github.com/minato-app/game-service/internal/question"
	httperrors "github.com/minato-app/game-service/pkg/http/errors"
)

type fakeStore struct {
	rooms      map[uuid.UUID]*Room
	players    map[uuid.UUID][]Player
	answers    map[uuid.UUID][]Answer
	invites    map[uuid.UUID]map[uuid.UUID]bool
	activeCode map[string]bool

	conflictNextUpdate bool
	updateCalls        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:      make(map[uuid.UUID]*Room),
		players:    make(map[uuid.UUID][]Player),
		answers:    make(map[uuid.UUID][]Answer),
		invites:    make(map[uuid.UUID]map[uuid.UUID]bool),
		activeCode: make(map[string]bool),
	}
}

func (f *fakeStore) CreateRoom(_ context.Context, r *Room) error {
	cp := *r
	f.rooms[r.ID] = &cp
	f.activeCode[r.RoomCode] = true
	return nil
}

func (f *fakeStore) GetRoom(_ context.Context, id uuid.UUID) (*Room, error) {
	r, ok := f.rooms[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) UpdateRoom(_ context.Context, r *Room, expectedVersion int) error {
	f.updateCalls++
	if f.conflictNextUpdate {
		f.conflictNextUpdate = false
		return ErrVersionConflict
	}
	stored, ok := f.rooms[r.ID]
	if !ok || stored.Version != expectedVersion {
		return ErrVersionConflict
	}
	cp := *r
	cp.Version = expectedVersion + 1
	f.rooms[r.ID] = &cp
	r.Version = cp.Version
	return nil
}

func (f *fakeStore) DeleteRoom(_ context.Context, id uuid.UUID) error {
	delete(f.rooms, id)
	delete(f.players, id)
	delete(f.answers, id)
	return nil
}

func (f *fakeStore) RoomCodeActive(_ context.Context, code string) (bool, error) {
	return f.activeCode[code], nil
}

func (f *fakeStore) AddPlayer(_ context.Context, p *Player) (bool, error) {
	for _, existing := range f.players[p.RoomID] {
		if existing.UserID == p.UserID {
			return false, nil
		}
	}
	f.players[p.RoomID] = append(f.players[p.RoomID], *p)
	return true, nil
}

func (f *fakeStore) ListPlayers(_ context.Context, roomID uuid.UUID) ([]Player, error) {
	return append([]Player(nil), f.players[roomID]...), nil
}

func (f *fakeStore) AddPlayerScores(_ context.Context, roomID uuid.UUID, awards map[uuid.UUID]int) error {
	players := f.players[roomID]
	for i := range players {
		if pts, ok := awards[players[i].UserID]; ok {
			players[i].Score += pts
		}
	}
	return nil
}

func (f *fakeStore) InsertAnswer(_ context.Context, a *Answer) (bool, error) {
	for _, existing := range f.answers[a.RoomID] {
		if existing.UserID == a.UserID && existing.QuestionIndex == a.QuestionIndex {
			return false, nil
		}
	}
	f.answers[a.RoomID] = append(f.answers[a.RoomID], *a)
	return true, nil
}

func (f *fakeStore) ListAnswers(_ context.Context, roomID uuid.UUID, questionIndex int) ([]Answer, error) {
	var out []Answer
	for _, a := range f.answers[roomID] {
		if a.QuestionIndex == questionIndex {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAllAnswers(_ context.Context, roomID uuid.UUID) ([]Answer, error) {
	return append([]Answer(nil), f.answers[roomID]...), nil
}

func (f *fakeStore) HasAcceptedInvite(_ context.Context, roomID, userID uuid.UUID) (bool, error) {
	return f.invites[roomID][userID], nil
}

func (f *fakeStore) ListExpiredAutoAdvance(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for id, r := range f.rooms {
		if r.Status == StatusInProgress && r.Settings.AutoAdvanceEnabled() &&
			r.CurrentQuestion != nil && r.CurrentQuestion.Deadline.Before(now) {
			out = append(out, id)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type stubQuestions struct {
	lastReq question.BatchRequest
	err     error
	count   int
}

func (s *stubQuestions) FetchBatch(_ context.Context, req question.BatchRequest) ([]question.Question, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	n := s.count
	if n == 0 {
		n = req.Rounds
	}
	out := make([]question.Question, n)
	for i := range out {
		out[i] = question.Question{
			Prompt:      "question",
			Options:     []string{"a", "b", "c", "d"},
			AnswerIndex: i % 4,
		}
	}
	return out, nil
}

type stubEntitlements struct {
	allowed bool
	err     error
}

func (s *stubEntitlements) CanPlayMultiplayer(context.Context, uuid.UUID) (bool, error) {
	return s.allowed, s.err
}

type stubRecorder struct {
	codes  []string
	scores [][]FinalScore
	err    error
}

func (s *stubRecorder) RecordRoomResult(_ context.Context, roomCode string, scores []FinalScore) error {
	s.codes = append(s.codes, roomCode)
	s.scores = append(s.scores, scores)
	return s.err
}

type testEnv struct {
	svc       *Service
	store     *fakeStore
	questions *stubQuestions
	billing   *stubEntitlements
	recorder  *stubRecorder
	now       time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:     newFakeStore(),
		questions: &stubQuestions{},
		billing:   &stubEntitlements{allowed: true},
		recorder:  &stubRecorder{},
		now:       time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	env.svc = NewService(
		env.store,
		env.questions,
		env.billing,
		env.recorder,
		nil,
		ServiceOptions{Now: func() time.Time { return env.now }},
		zerolog.Nop(),
	)
	return env
}

func (e *testEnv) advanceClock(d time.Duration) {
	e.now = e.now.Add(d)
}

func principal(username string) identity.Principal {
	return identity.Principal{UserID: uuid.New(), Username: username}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, httperrors.IsCode(err, code), "expected code %q, got %v", code, err)
}

func TestCreateSoloRoomDefaults(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")

	r, err := env.svc.Create(context.Background(), CreateRequest{
		GameType:   "trivia",
		Difficulty: "medium",
		Rounds:     5,
	}, host)
	require.NoError(t, err)

	assert.Equal(t, ModeSolo, r.Mode)
	assert.Equal(t, StatusLobby, r.Status)
	assert.Equal(t, 1, r.MaxPlayers)
	assert.Equal(t, 1, r.Version)
	assert.Len(t, r.RoomCode, 6)

	assert.Equal(t, "en", r.Settings.Language)
	assert.Equal(t, PersonalityFriendly, r.Settings.AIPersonality)
	assert.Equal(t, 30, r.Settings.TimePerQuestion)
	assert.True(t, r.Settings.AutoAdvanceEnabled())
	assert.True(t, r.Settings.ExplanationsVisible())

	players, err := env.store.ListPlayers(context.Background(), r.ID)
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, host.UserID, players[0].UserID)
}

func TestCreateMultiplayerRequiresEntitlement(t *testing.T) {
	env := newTestEnv(t)
	env.billing.allowed = false

	_, err := env.svc.Create(context.Background(), CreateRequest{
		GameType:   "trivia",
		Difficulty: "easy",
		Rounds:     3,
		Mode:       ModeMultiplayer,
		MaxPlayers: 4,
	}, principal("alice"))

	assertCode(t, err, httperrors.ErrCodePlanRestricted)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	ctx := context.Background()

	_, err := env.svc.Create(ctx, CreateRequest{Difficulty: "easy", Rounds: 3}, host)
	assertCode(t, err, httperrors.ErrCodeMissingField)

	_, err = env.svc.Create(ctx, CreateRequest{GameType: "trivia", Difficulty: "easy", Rounds: 3, Mode: ModeMultiplayer, MaxPlayers: 1}, host)
	assertCode(t, err, httperrors.ErrCodeValidationFailed)

	_, err = env.svc.Create(ctx, CreateRequest{
		GameType: "trivia", Difficulty: "easy", Rounds: 3,
		Settings: Settings{TimePerQuestion: 300},
	}, host)
	assertCode(t, err, httperrors.ErrCodeValidationFailed)
}

func createMultiplayerRoom(t *testing.T, env *testEnv, host identity.Principal, maxPlayers int) *Room {
	t.Helper()
	r, err := env.svc.Create(context.Background(), CreateRequest{
		GameType:   "trivia",
		Difficulty: "medium",
		Rounds:     3,
		Mode:       ModeMultiplayer,
		MaxPlayers: maxPlayers,
	}, host)
	require.NoError(t, err)
	return r
}

func TestJoinIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)
	guest := principal("bob")

	_, err := env.svc.Join(context.Background(), r.ID, guest)
	require.NoError(t, err)

	_, err = env.svc.Join(context.Background(), r.ID, guest)
	require.NoError(t, err)

	players, err := env.store.ListPlayers(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Len(t, players, 2)
}

func TestJoinFullRoom(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 2)

	_, err := env.svc.Join(context.Background(), r.ID, principal("bob"))
	require.NoError(t, err)

	_, err = env.svc.Join(context.Background(), r.ID, principal("carol"))
	assertCode(t, err, httperrors.ErrCodeRoomFull)
}

func TestJoinAfterStartRejected(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)

	_, err := env.svc.Start(context.Background(), r.ID, host.UserID)
	require.NoError(t, err)

	_, err = env.svc.Join(context.Background(), r.ID, principal("bob"))
	assertCode(t, err, httperrors.ErrCodeRoomNotInLobby)
}

func TestJoinPrivateRoomRequiresInvite(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r, err := env.svc.Create(context.Background(), CreateRequest{
		GameType:   "trivia",
		Difficulty: "medium",
		Rounds:     3,
		Mode:       ModeMultiplayer,
		MaxPlayers: 4,
		IsPrivate:  true,
	}, host)
	require.NoError(t, err)

	stranger := principal("bob")
	_, err = env.svc.Join(context.Background(), r.ID, stranger)
	assertCode(t, err, httperrors.ErrCodeInviteRequired)

	env.store.invites[r.ID] = map[uuid.UUID]bool{stranger.UserID: true}
	_, err = env.svc.Join(context.Background(), r.ID, stranger)
	require.NoError(t, err)
}

func TestStartHostOnly(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)
	guest := principal("bob")
	_, err := env.svc.Join(context.Background(), r.ID, guest)
	require.NoError(t, err)

	_, err = env.svc.Start(context.Background(), r.ID, guest.UserID)
	assertCode(t, err, httperrors.ErrCodeNotRoomHost)
}

func TestStartActivatesFirstQuestion(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)

	started, err := env.svc.Start(context.Background(), r.ID, host.UserID)
	require.NoError(t, err)

	assert.Equal(t, StatusInProgress, started.Status)
	assert.Len(t, started.Questions, 3)
	require.NotNil(t, started.CurrentQuestionIndex)
	assert.Equal(t, 0, *started.CurrentQuestionIndex)
	require.NotNil(t, started.CurrentQuestion)
	assert.Equal(t, env.now, started.CurrentQuestion.StartedAt)
	assert.Equal(t, env.now.Add(30*time.Second), started.CurrentQuestion.Deadline)
	assert.True(t, env.questions.lastReq.SkipCache, "multiplayer rooms must bypass the question cache")

	_, err = env.svc.Start(context.Background(), r.ID, host.UserID)
	assertCode(t, err, httperrors.ErrCodeRoomNotInLobby)
}

func TestStartQuestionGenerationFailure(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)
	env.questions.err = errors.New("generator down")

	_, err := env.svc.Start(context.Background(), r.ID, host.UserID)
	assertCode(t, err, httperrors.ErrCodeQuestionFetchFailed)

	stored, err := env.store.GetRoom(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusLobby, stored.Status)
}

func TestSubmitAnswerStaleIndex(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)
	_, err := env.svc.Start(context.Background(), r.ID, host.UserID)
	require.NoError(t, err)

	err = env.svc.SubmitAnswer(context.Background(), r.ID, host.UserID, 2, 0)
	assertCode(t, err, httperrors.ErrCodeStaleQuestionIndex)
}

func TestSubmitAnswerDuplicateIgnored(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)
	_, err := env.svc.Start(context.Background(), r.ID, host.UserID)
	require.NoError(t, err)

	require.NoError(t, env.svc.SubmitAnswer(context.Background(), r.ID, host.UserID, 0, 0))
	require.NoError(t, env.svc.SubmitAnswer(context.Background(), r.ID, host.UserID, 0, 3))

	answers, err := env.store.ListAnswers(context.Background(), r.ID, 0)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, 0, answers[0].AnswerIndex, "first submission wins")
}

func TestSubmitAnswerNonMemberForbidden(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)
	_, err := env.svc.Start(context.Background(), r.ID, host.UserID)
	require.NoError(t, err)

	err = env.svc.SubmitAnswer(context.Background(), r.ID, uuid.New(), 0, 0)
	assertCode(t, err, httperrors.ErrCodeForbidden)
}

func TestAdvanceScoresFasterAnswersHigher(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)
	fast := principal("bob")
	slow := principal("carol")
	wrong := principal("dave")
	ctx := context.Background()

	for _, p := range []identity.Principal{fast, slow, wrong} {
		_, err := env.svc.Join(ctx, r.ID, p)
		require.NoError(t, err)
	}

	_, err := env.svc.Start(ctx, r.ID, host.UserID)
	require.NoError(t, err)

	// question 0's correct answer is option 0
	env.advanceClock(3 * time.Second)
	require.NoError(t, env.svc.SubmitAnswer(ctx, r.ID, fast.UserID, 0, 0))
	env.advanceClock(15 * time.Second)
	require.NoError(t, env.svc.SubmitAnswer(ctx, r.ID, slow.UserID, 0, 0))
	require.NoError(t, env.svc.SubmitAnswer(ctx, r.ID, wrong.UserID, 0, 1))

	result, err := env.svc.NextQuestion(ctx, r.ID, host.UserID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.PreviousIndex)
	assert.Equal(t, 1, result.NextIndex)
	assert.False(t, result.Finished)
	assert.Equal(t, 3, result.ScoredAnswers)

	score := func(id uuid.UUID) int {
		players, err := env.store.ListPlayers(ctx, r.ID)
		require.NoError(t, err)
		for _, p := range players {
			if p.UserID == id {
				return p.Score
			}
		}
		t.Fatalf("player %s not found", id)
		return 0
	}

	assert.Greater(t, score(fast.UserID), score(slow.UserID))
	assert.GreaterOrEqual(t, score(slow.UserID), 10)
	assert.Zero(t, score(wrong.UserID))
	assert.Zero(t, score(host.UserID), "absent answers score zero")
}

func TestAdvanceNonHostForbidden(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)
	guest := principal("bob")
	_, err := env.svc.Join(context.Background(), r.ID, guest)
	require.NoError(t, err)
	_, err = env.svc.Start(context.Background(), r.ID, host.UserID)
	require.NoError(t, err)

	_, err = env.svc.NextQuestion(context.Background(), r.ID, guest.UserID)
	assertCode(t, err, httperrors.ErrCodeNotRoomHost)
}

func TestAdvanceVersionConflict(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)
	_, err := env.svc.Start(context.Background(), r.ID, host.UserID)
	require.NoError(t, err)

	env.store.conflictNextUpdate = true
	_, err = env.svc.NextQuestion(context.Background(), r.ID, host.UserID)
	assertCode(t, err, httperrors.ErrCodeAdvanceConflict)

	// a retry after the lost race succeeds
	_, err = env.svc.NextQuestion(context.Background(), r.ID, host.UserID)
	require.NoError(t, err)
}

func TestFullGameFinishesWithRanking(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)
	guest := principal("bob")
	ctx := context.Background()

	env.advanceClock(time.Second)
	_, err := env.svc.Join(ctx, r.ID, guest)
	require.NoError(t, err)

	_, err = env.svc.Start(ctx, r.ID, host.UserID)
	require.NoError(t, err)

	// host answers every question correctly and fast; guest is wrong on the
	// last one
	for i := 0; i < 3; i++ {
		correct := i % 4
		env.advanceClock(2 * time.Second)
		require.NoError(t, env.svc.SubmitAnswer(ctx, r.ID, host.UserID, i, correct))
		guestAnswer := correct
		if i == 2 {
			guestAnswer = (correct + 1) % 4
		}
		require.NoError(t, env.svc.SubmitAnswer(ctx, r.ID, guest.UserID, i, guestAnswer))

		result, err := env.svc.NextQuestion(ctx, r.ID, host.UserID)
		require.NoError(t, err)
		if i < 2 {
			assert.Equal(t, i+1, result.NextIndex)
		} else {
			assert.True(t, result.Finished)
			assert.Equal(t, -1, result.NextIndex)
			require.Len(t, result.FinalScores, 2)
			assert.Equal(t, host.UserID, result.FinalScores[0].UserID)
			assert.Equal(t, 1, result.FinalScores[0].Rank)
			assert.Equal(t, 3, result.FinalScores[0].CorrectAnswers)
			assert.Equal(t, 2, result.FinalScores[1].Rank)
			assert.Equal(t, 2, result.FinalScores[1].CorrectAnswers)
			assert.Greater(t, result.FinalScores[0].Score, result.FinalScores[1].Score)
		}
	}

	stored, err := env.store.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, stored.Status)
	assert.Nil(t, stored.CurrentQuestionIndex)
	assert.Nil(t, stored.CurrentQuestion)
	require.NotNil(t, stored.FinishedAt)
	require.Len(t, stored.FinalScores, 2)

	require.Len(t, env.recorder.codes, 1)
	assert.Equal(t, r.RoomCode, env.recorder.codes[0])
}

func TestFinishTiesBreakByJoinOrder(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)
	ctx := context.Background()

	env.advanceClock(time.Second)
	late := principal("bob")
	_, err := env.svc.Join(ctx, r.ID, late)
	require.NoError(t, err)

	_, err = env.svc.Start(ctx, r.ID, host.UserID)
	require.NoError(t, err)

	// nobody answers anything; all scores tie at zero
	var result *AdvanceResult
	for i := 0; i < 3; i++ {
		result, err = env.svc.NextQuestion(ctx, r.ID, host.UserID)
		require.NoError(t, err)
	}

	require.True(t, result.Finished)
	require.Len(t, result.FinalScores, 2)
	assert.Equal(t, host.UserID, result.FinalScores[0].UserID, "earlier join wins the tie")
	assert.Equal(t, late.UserID, result.FinalScores[1].UserID)
}

func TestRecorderFailureDoesNotBlockFinish(t *testing.T) {
	env := newTestEnv(t)
	env.recorder.err = errors.New("redis down")
	host := principal("alice")
	r, err := env.svc.Create(context.Background(), CreateRequest{
		GameType: "trivia", Difficulty: "easy", Rounds: 1,
	}, host)
	require.NoError(t, err)

	_, err = env.svc.Start(context.Background(), r.ID, host.UserID)
	require.NoError(t, err)

	result, err := env.svc.NextQuestion(context.Background(), r.ID, host.UserID)
	require.NoError(t, err)
	assert.True(t, result.Finished)
}

func TestRegenerateQuestionsLobbyOnly(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)
	ctx := context.Background()

	count, err := env.svc.RegenerateQuestions(ctx, r.ID, host.UserID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = env.svc.RegenerateQuestions(ctx, r.ID, uuid.New())
	assertCode(t, err, httperrors.ErrCodeNotRoomHost)

	_, err = env.svc.Start(ctx, r.ID, host.UserID)
	require.NoError(t, err)

	_, err = env.svc.RegenerateQuestions(ctx, r.ID, host.UserID)
	assertCode(t, err, httperrors.ErrCodeRoomNotInLobby)
}

func TestCancelRoom(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)
	ctx := context.Background()

	require.NoError(t, env.svc.Cancel(ctx, r.ID, host.UserID))

	stored, err := env.store.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)

	err = env.svc.Cancel(ctx, r.ID, host.UserID)
	assertCode(t, err, httperrors.ErrCodeConflict)

	_, err = env.svc.Join(ctx, r.ID, principal("bob"))
	assertCode(t, err, httperrors.ErrCodeRoomNotInLobby)
}

func TestDeleteRoom(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)
	ctx := context.Background()

	err := env.svc.Delete(ctx, r.ID, uuid.New())
	assertCode(t, err, httperrors.ErrCodeNotRoomHost)

	require.NoError(t, env.svc.Delete(ctx, r.ID, host.UserID))

	_, _, err = env.svc.Get(ctx, r.ID)
	assertCode(t, err, httperrors.ErrCodeRoomNotFound)
}

func TestGetUnknownRoom(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.svc.Get(context.Background(), uuid.New())
	assertCode(t, err, httperrors.ErrCodeRoomNotFound)
}
