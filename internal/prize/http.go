package prize

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/minato-app/game-service/internal/identity"
	httperrors "github.com/minato-app/game-service/pkg/http/errors"
)

// HTTPHandlers exposes the payout endpoint.
type HTTPHandlers struct {
	service *Service
	logger  zerolog.Logger
}

func NewHTTPHandlers(service *Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		service: service,
		logger:  logger.With().Str("component", "prize_http").Logger(),
	}
}

// Register wires the prize routes onto the mux.
func (h *HTTPHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/tournaments/{id}/distribute", h.Distribute)
}

type distributeRequest struct {
	WinnerUserID string `json:"winner_user_id"`
	PrizePool    int64  `json:"prize_pool"`
}

// Distribute handles POST /v1/tournaments/{id}/distribute
func (h *HTTPHandlers) Distribute(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity.FromContext(r.Context()); !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "authentication required")
		return
	}

	tournamentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "tournament id must be a UUID")
		return
	}

	var req distributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid JSON payload")
		return
	}
	winnerID, err := uuid.Parse(req.WinnerUserID)
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeValidationFailed, "winner_user_id must be a UUID")
		return
	}

	result, err := h.service.Distribute(r.Context(), tournamentID, winnerID, req.PrizePool)
	if err != nil {
		if !httperrors.IsCode(err, httperrors.ErrCodeWinnerNotFound) {
			h.logger.Error().Err(err).Str("tournament_id", tournamentID.String()).Msg("distribution failed")
		}
		httperrors.Respond(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}
