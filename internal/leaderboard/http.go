package leaderboard

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/minato-app/game-service/internal/identity"
	"github.com/minato-app/game-service/internal/room"
	httperrors "github.com/minato-app/game-service/pkg/http/errors"
)

// HTTPHandlers exposes room leaderboard reads.
type HTTPHandlers struct {
	service *Service
	rooms   *room.Service
	logger  zerolog.Logger
}

func NewHTTPHandlers(service *Service, rooms *room.Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		service: service,
		rooms:   rooms,
		logger:  logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

// Register wires the leaderboard routes onto the mux.
func (h *HTTPHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/rooms/{id}/leaderboard", h.RoomLeaderboard)
}

// RoomLeaderboard handles GET /v1/rooms/{id}/leaderboard
func (h *HTTPHandlers) RoomLeaderboard(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity.FromContext(r.Context()); !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "authentication required")
		return
	}

	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRoomID, "room id must be a UUID")
		return
	}

	rm, _, err := h.rooms.Get(r.Context(), roomID)
	if err != nil {
		httperrors.Respond(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	entries, err := h.service.Top(r.Context(), rm.RoomCode, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("room_code", rm.RoomCode).Msg("leaderboard fetch failed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeLeaderboardFetchFailed, "could not fetch leaderboard")
		return
	}
	if entries == nil {
		entries = []Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"room_code": rm.RoomCode,
		"entries":   entries,
	}); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}
