package room

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	httperrors "github.com/minato-app/game-service/pkg/http/errors"
)

const (
	autoAdvanceScanLockKey = "room:autoadvance:scan_lock"
	autoAdvanceScanLimit   = 100
)

// AutoAdvanceWorker periodically advances in-progress rooms whose active
// question has run past its deadline. With multiple API replicas a short
// Redis lock keeps a scan from running on every instance at once; the
// version check on UpdateRoom makes a double scan harmless anyway.
type AutoAdvanceWorker struct {
	svc      *Service
	rdb      *redis.Client
	logger   zerolog.Logger
	interval time.Duration
}

func NewAutoAdvanceWorker(svc *Service, rdb *redis.Client, interval time.Duration, logger zerolog.Logger) *AutoAdvanceWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &AutoAdvanceWorker{
		svc:      svc,
		rdb:      rdb,
		logger:   logger.With().Str("component", "auto_advance_worker").Logger(),
		interval: interval,
	}
}

// Run blocks until context cancellation.
func (w *AutoAdvanceWorker) Run(ctx context.Context) error {
	if w.svc == nil {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *AutoAdvanceWorker) tick(ctx context.Context) {
	if !w.acquireScanLock(ctx) {
		return
	}

	now := w.svc.now()
	expired, err := w.svc.store.ListExpiredAutoAdvance(ctx, now, autoAdvanceScanLimit)
	if err != nil {
		w.logger.Warn().Err(err).Msg("expired room scan failed")
		return
	}

	for _, roomID := range expired {
		if err := w.advanceRoom(ctx, roomID); err != nil {
			w.logger.Warn().Err(err).Str("room_id", roomID.String()).Msg("auto-advance failed")
		}
	}
}

// advanceRoom retries briefly on lost version races; each retry re-reads the
// room, so a question another caller already advanced exits cleanly.
func (w *AutoAdvanceWorker) advanceRoom(ctx context.Context, roomID uuid.UUID) error {
	backoff := retry.WithMaxRetries(3, retry.NewConstant(100*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		result, err := w.svc.AutoAdvance(ctx, roomID)
		if err != nil {
			if isRetryableAdvance(err) {
				return retry.RetryableError(err)
			}
			if isAdvanceAlreadyDone(err) {
				return nil
			}
			return err
		}

		evt := w.logger.Info().
			Str("room_id", roomID.String()).
			Int("previous_index", result.PreviousIndex).
			Int("answers_scored", result.ScoredAnswers)
		if result.Finished {
			evt.Msg("room auto-finished")
		} else {
			evt.Int("next_index", result.NextIndex).Msg("room auto-advanced")
		}
		return nil
	})
}

func (w *AutoAdvanceWorker) acquireScanLock(ctx context.Context) bool {
	if w.rdb == nil {
		return true
	}
	ok, err := w.rdb.SetNX(ctx, autoAdvanceScanLockKey, "1", w.interval).Result()
	if err != nil {
		w.logger.Warn().Err(err).Msg("scan lock acquisition failed, proceeding without it")
		return true
	}
	return ok
}

func isRetryableAdvance(err error) bool {
	var httpErr *httperrors.Error
	return errors.As(err, &httpErr) && httpErr.Code == httperrors.ErrCodeAdvanceConflict
}

// isAdvanceAlreadyDone reports whether another caller beat the worker to the
// transition, which the worker treats as success.
func isAdvanceAlreadyDone(err error) bool {
	var httpErr *httperrors.Error
	if !errors.As(err, &httpErr) {
		return false
	}
	switch httpErr.Code {
	case httperrors.ErrCodeRoomNotInProgress, httperrors.ErrCodeRoomNotFound:
		return true
	}
	return false
}
