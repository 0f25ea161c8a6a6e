package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/minato-app/game-service/internal/prize"
)

// PrizeRepository persists payout state. It implements prize.Store over the
// user_profiles and prize_transactions tables.
type PrizeRepository struct {
	db DB
}

func NewPrizeRepository(db DB) *PrizeRepository {
	return &PrizeRepository{db: db}
}

// ProfileExists reports whether a user has a profile row.
func (r *PrizeRepository) ProfileExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_profiles WHERE user_id = $1)`,
		userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check profile: %w", err)
	}
	return exists, nil
}

// CreditBalance adds the amount to the user's balance.
func (r *PrizeRepository) CreditBalance(ctx context.Context, userID uuid.UUID, amount int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE user_profiles SET balance = balance + $1 WHERE user_id = $2`,
		amount, userID)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("credit balance: profile %s not found", userID)
	}
	return nil
}

// RecordTransaction appends one row to the payout log.
func (r *PrizeRepository) RecordTransaction(ctx context.Context, tx *prize.Transaction) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO prize_transactions (id, tournament_id, user_id, amount, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		tx.ID, tx.TournamentID, tx.UserID, tx.Amount, tx.Kind)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// IncrementTournamentStats bumps the winner's aggregate counters.
func (r *PrizeRepository) IncrementTournamentStats(ctx context.Context, userID uuid.UUID, winnings int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE user_profiles
		SET tournament_wins = tournament_wins + 1,
		    total_winnings = total_winnings + $1
		WHERE user_id = $2`,
		winnings, userID)
	if err != nil {
		return fmt.Errorf("update tournament stats: %w", err)
	}
	return nil
}
