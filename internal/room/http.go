package room

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/minato-app/game-service/internal/identity"
	httperrors "github.com/minato-app/game-service/pkg/http/errors"
)

// HTTPHandlers provides the REST surface for room operations.
type HTTPHandlers struct {
	service *Service
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for room endpoints.
func NewHTTPHandlers(service *Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		service: service,
		logger:  logger.With().Str("component", "room_http").Logger(),
	}
}

// Register wires the room routes onto the mux. Callers wrap the mux with the
// identity middleware; handlers assume an authenticated principal.
func (h *HTTPHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/rooms", h.CreateRoom)
	mux.HandleFunc("GET /v1/rooms/{id}", h.GetRoom)
	mux.HandleFunc("DELETE /v1/rooms/{id}", h.DeleteRoom)
	mux.HandleFunc("POST /v1/rooms/{id}/join", h.JoinRoom)
	mux.HandleFunc("POST /v1/rooms/{id}/start", h.StartRoom)
	mux.HandleFunc("POST /v1/rooms/{id}/answers", h.SubmitAnswer)
	mux.HandleFunc("POST /v1/rooms/{id}/next", h.NextQuestion)
	mux.HandleFunc("POST /v1/rooms/{id}/questions/regenerate", h.RegenerateQuestions)
	mux.HandleFunc("POST /v1/rooms/{id}/cancel", h.CancelRoom)
}

type roomResponse struct {
	ID              string            `json:"id"`
	RoomCode        string            `json:"room_code"`
	HostUserID      string            `json:"host_user_id"`
	GameType        string            `json:"game_type"`
	Difficulty      string            `json:"difficulty"`
	Mode            string            `json:"mode"`
	Status          string            `json:"status"`
	IsPrivate       bool              `json:"is_private"`
	MaxPlayers      int               `json:"max_players"`
	Rounds          int               `json:"rounds"`
	Settings        Settings          `json:"settings"`
	CurrentQuestion *activeQuestion   `json:"current_question,omitempty"`
	FinalScores     []FinalScore      `json:"final_scores,omitempty"`
	Players         []playerResponse  `json:"players,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	FinishedAt      *time.Time        `json:"finished_at,omitempty"`
}

// activeQuestion is the client view of the current question. The correct
// answer index and explanation stay server-side until the room finishes.
type activeQuestion struct {
	Index     int       `json:"index"`
	Prompt    string    `json:"prompt"`
	Options   []string  `json:"options"`
	StartedAt time.Time `json:"started_at"`
	TimeLimit int       `json:"time_limit_seconds"`
	Deadline  time.Time `json:"deadline"`
}

type playerResponse struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Score     int       `json:"score"`
	JoinedAt  time.Time `json:"joined_at"`
}

func toRoomResponse(r *Room, players []Player) roomResponse {
	resp := roomResponse{
		ID:          r.ID.String(),
		RoomCode:    r.RoomCode,
		HostUserID:  r.HostUserID.String(),
		GameType:    r.GameType,
		Difficulty:  r.Difficulty,
		Mode:        r.Mode,
		Status:      r.Status,
		IsPrivate:   r.IsPrivate,
		MaxPlayers:  r.MaxPlayers,
		Rounds:      r.Rounds,
		Settings:    r.Settings,
		FinalScores: r.FinalScores,
		CreatedAt:   r.CreatedAt,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
	if snap := r.CurrentQuestion; snap != nil {
		resp.CurrentQuestion = &activeQuestion{
			Index:     snap.Index,
			Prompt:    snap.Question.Prompt,
			Options:   snap.Question.Options,
			StartedAt: snap.StartedAt,
			TimeLimit: snap.TimeLimit,
			Deadline:  snap.Deadline,
		}
	}
	for _, p := range players {
		resp.Players = append(resp.Players, playerResponse{
			UserID:    p.UserID.String(),
			Username:  p.Username,
			AvatarURL: p.AvatarURL,
			Score:     p.Score,
			JoinedAt:  p.JoinedAt,
		})
	}
	return resp
}

// CreateRoom handles POST /v1/rooms
func (h *HTTPHandlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "authentication required")
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid JSON payload")
		return
	}

	created, err := h.service.Create(r.Context(), req, *principal)
	if err != nil {
		h.respondServiceError(w, r, err, "create room failed")
		return
	}

	h.respondJSON(w, http.StatusCreated, toRoomResponse(created, nil))
}

// GetRoom handles GET /v1/rooms/{id}
func (h *HTTPHandlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.roomID(w, r)
	if !ok {
		return
	}

	rm, players, err := h.service.Get(r.Context(), roomID)
	if err != nil {
		h.respondServiceError(w, r, err, "get room failed")
		return
	}

	h.respondJSON(w, http.StatusOK, toRoomResponse(rm, players))
}

// JoinRoom handles POST /v1/rooms/{id}/join
func (h *HTTPHandlers) JoinRoom(w http.ResponseWriter, r *http.Request) {
	principal, roomID, ok := h.principalAndRoomID(w, r)
	if !ok {
		return
	}

	rm, err := h.service.Join(r.Context(), roomID, *principal)
	if err != nil {
		h.respondServiceError(w, r, err, "join room failed")
		return
	}

	h.respondJSON(w, http.StatusOK, toRoomResponse(rm, nil))
}

// StartRoom handles POST /v1/rooms/{id}/start
func (h *HTTPHandlers) StartRoom(w http.ResponseWriter, r *http.Request) {
	principal, roomID, ok := h.principalAndRoomID(w, r)
	if !ok {
		return
	}

	rm, err := h.service.Start(r.Context(), roomID, principal.UserID)
	if err != nil {
		h.respondServiceError(w, r, err, "start room failed")
		return
	}

	h.respondJSON(w, http.StatusOK, toRoomResponse(rm, nil))
}

type submitAnswerRequest struct {
	QuestionIndex int `json:"question_index"`
	AnswerIndex   int `json:"answer_index"`
}

// SubmitAnswer handles POST /v1/rooms/{id}/answers
func (h *HTTPHandlers) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	principal, roomID, ok := h.principalAndRoomID(w, r)
	if !ok {
		return
	}

	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid JSON payload")
		return
	}

	if err := h.service.SubmitAnswer(r.Context(), roomID, principal.UserID, req.QuestionIndex, req.AnswerIndex); err != nil {
		h.respondServiceError(w, r, err, "submit answer failed")
		return
	}

	h.respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// NextQuestion handles POST /v1/rooms/{id}/next
func (h *HTTPHandlers) NextQuestion(w http.ResponseWriter, r *http.Request) {
	principal, roomID, ok := h.principalAndRoomID(w, r)
	if !ok {
		return
	}

	result, err := h.service.NextQuestion(r.Context(), roomID, principal.UserID)
	if err != nil {
		h.respondServiceError(w, r, err, "advance question failed")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// RegenerateQuestions handles POST /v1/rooms/{id}/questions/regenerate
func (h *HTTPHandlers) RegenerateQuestions(w http.ResponseWriter, r *http.Request) {
	principal, roomID, ok := h.principalAndRoomID(w, r)
	if !ok {
		return
	}

	count, err := h.service.RegenerateQuestions(r.Context(), roomID, principal.UserID)
	if err != nil {
		h.respondServiceError(w, r, err, "regenerate questions failed")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]int{"question_count": count})
}

// CancelRoom handles POST /v1/rooms/{id}/cancel
func (h *HTTPHandlers) CancelRoom(w http.ResponseWriter, r *http.Request) {
	principal, roomID, ok := h.principalAndRoomID(w, r)
	if !ok {
		return
	}

	if err := h.service.Cancel(r.Context(), roomID, principal.UserID); err != nil {
		h.respondServiceError(w, r, err, "cancel room failed")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": StatusCancelled})
}

// DeleteRoom handles DELETE /v1/rooms/{id}
func (h *HTTPHandlers) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	principal, roomID, ok := h.principalAndRoomID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), roomID, principal.UserID); err != nil {
		h.respondServiceError(w, r, err, "delete room failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandlers) principalAndRoomID(w http.ResponseWriter, r *http.Request) (*identity.Principal, uuid.UUID, bool) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "authentication required")
		return nil, uuid.Nil, false
	}
	roomID, ok := h.roomID(w, r)
	if !ok {
		return nil, uuid.Nil, false
	}
	return principal, roomID, true
}

func (h *HTTPHandlers) roomID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRoomID, "room id must be a UUID")
		return uuid.Nil, false
	}
	return roomID, true
}

func (h *HTTPHandlers) respondServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var httpErr *httperrors.Error
	if !errors.As(err, &httpErr) || httpErr.Status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg(msg)
	}
	httperrors.Respond(w, err)
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}
