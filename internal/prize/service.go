package prize

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	httperrors "github.com/minato-app/game-service/pkg/http/errors"
)

// Prize split percentages. Only the winner share is actually credited; the
// runner-up and third shares are computed for the payout report but no
// payees exist for them yet, so they stay unpaid. Tests pin this down.
const (
	winnerSharePct   = 70
	runnerUpSharePct = 20
	thirdSharePct    = 10
)

// Transaction kinds recorded in the payout log.
const (
	KindTournamentWin = "tournament_win"
)

// Store persists profile balances and the payout log. ProfileExists reports
// whether a user has a profile row without loading it.
type Store interface {
	ProfileExists(ctx context.Context, userID uuid.UUID) (bool, error)
	CreditBalance(ctx context.Context, userID uuid.UUID, amount int64) error
	RecordTransaction(ctx context.Context, tx *Transaction) error
	IncrementTournamentStats(ctx context.Context, userID uuid.UUID, winnings int64) error
}

// Transaction is one row of the payout log.
type Transaction struct {
	ID           uuid.UUID
	TournamentID uuid.UUID
	UserID       uuid.UUID
	Amount       int64
	Kind         string
}

// Shares is the computed prize split for one distribution.
type Shares struct {
	Winner   int64 `json:"winner"`
	RunnerUp int64 `json:"runner_up"`
	Third    int64 `json:"third"`
}

// Result reports what a distribution did. Warnings carry secondary effects
// that failed after the balance credit landed; callers surface them without
// treating the payout as failed.
type Result struct {
	TournamentID uuid.UUID `json:"tournament_id"`
	WinnerUserID uuid.UUID `json:"winner_user_id"`
	Credited     int64     `json:"credited"`
	Shares       Shares    `json:"shares"`
	Warnings     []string  `json:"warnings,omitempty"`
}

// Service distributes tournament prize pools.
type Service struct {
	store  Store
	logger zerolog.Logger
}

func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "prize_service").Logger(),
	}
}

// Distribute credits the winner's share of the prize pool. The balance credit
// is the one effect that must succeed; the transaction log and stats update
// are best-effort and reported as warnings when they fail.
func (s *Service) Distribute(ctx context.Context, tournamentID, winnerUserID uuid.UUID, prizePool int64) (*Result, error) {
	if prizePool <= 0 {
		return nil, httperrors.Validation(httperrors.ErrCodeValidationFailed, "prize_pool must be positive")
	}

	exists, err := s.store.ProfileExists(ctx, winnerUserID)
	if err != nil {
		return nil, fmt.Errorf("check winner profile: %w", err)
	}
	if !exists {
		return nil, httperrors.NotFound(httperrors.ErrCodeWinnerNotFound, "winner has no profile")
	}

	shares := Shares{
		Winner:   prizePool * winnerSharePct / 100,
		RunnerUp: prizePool * runnerUpSharePct / 100,
		Third:    prizePool * thirdSharePct / 100,
	}

	if err := s.store.CreditBalance(ctx, winnerUserID, shares.Winner); err != nil {
		return nil, fmt.Errorf("credit winner balance: %w", err)
	}

	result := &Result{
		TournamentID: tournamentID,
		WinnerUserID: winnerUserID,
		Credited:     shares.Winner,
		Shares:       shares,
	}

	tx := &Transaction{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		UserID:       winnerUserID,
		Amount:       shares.Winner,
		Kind:         KindTournamentWin,
	}
	if err := s.store.RecordTransaction(ctx, tx); err != nil {
		s.logger.Warn().Err(err).
			Str("tournament_id", tournamentID.String()).
			Msg("payout transaction log failed")
		result.Warnings = append(result.Warnings, "transaction log write failed")
	}

	if err := s.store.IncrementTournamentStats(ctx, winnerUserID, shares.Winner); err != nil {
		s.logger.Warn().Err(err).
			Str("winner_id", winnerUserID.String()).
			Msg("winner stats update failed")
		result.Warnings = append(result.Warnings, "winner stats update failed")
	}

	s.logger.Info().
		Str("tournament_id", tournamentID.String()).
		Str("winner_id", winnerUserID.String()).
		Int64("credited", shares.Winner).
		Int("warnings", len(result.Warnings)).
		Msg("prize distributed")

	return result, nil
}
