package leaderboard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/minato-app/game-service/internal/room"
)

// Room leaderboards live 7 days past the last finished game, long enough for
// recurring friend groups to keep a running tally.
const roomEntryTTL = 7 * 24 * time.Hour

// Entry is one leaderboard row sent to clients.
type Entry struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Score       int       `json:"score"`
	Wins        int       `json:"wins"`
	Games       int       `json:"games"`
}

// ServiceOptions configures leaderboard behavior.
type ServiceOptions struct {
	TopN           int
	RedisKeyPrefix string
}

// Service keeps per-room running totals in Redis sorted sets, keyed by room
// code so the same group of players accumulates across sessions of the same
// room code.
type Service struct {
	redis  *redis.Client
	logger zerolog.Logger
	topN   int
	prefix string
}

// NewService constructs a leaderboard service instance.
func NewService(rdb *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 50
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "lb"
	}
	return &Service{
		redis:  rdb,
		logger: logger.With().Str("component", "leaderboard").Logger(),
		topN:   topN,
		prefix: prefix,
	}
}

// RecordRoomResult folds a finished room's final scores into the room-code
// leaderboard. It satisfies the room service's result recorder.
func (s *Service) RecordRoomResult(ctx context.Context, roomCode string, scores []room.FinalScore) error {
	if s.redis == nil || len(scores) == 0 {
		return nil
	}

	zKey := s.scoreKey(roomCode)
	pipe := s.redis.TxPipeline()
	for _, fs := range scores {
		metaKey := s.metaKey(roomCode, fs.UserID)
		pipe.ZIncrBy(ctx, zKey, float64(fs.Score), fs.UserID.String())
		pipe.HIncrBy(ctx, metaKey, "games", 1)
		if fs.Rank == 1 {
			pipe.HIncrBy(ctx, metaKey, "wins", 1)
		}
		pipe.HSet(ctx, metaKey, map[string]interface{}{
			"display_name": fs.Username,
		})
		pipe.Expire(ctx, metaKey, roomEntryTTL)
	}
	pipe.Expire(ctx, zKey, roomEntryTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update room leaderboard %s: %w", roomCode, err)
	}
	return nil
}

// Top retrieves the top N entries for a room code.
func (s *Service) Top(ctx context.Context, roomCode string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	zKey := s.scoreKey(roomCode)
	results, err := s.redis.ZRevRangeWithScores(ctx, zKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch room leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for _, z := range results {
		userID, err := uuid.Parse(z.Member.(string))
		if err != nil {
			s.logger.Warn().Str("member", fmt.Sprint(z.Member)).Msg("skipping malformed leaderboard member")
			continue
		}
		entry, err := s.readMeta(ctx, roomCode, userID)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard metadata")
			continue
		}
		entry.Score = int(z.Score)
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (s *Service) readMeta(ctx context.Context, roomCode string, userID uuid.UUID) (*Entry, error) {
	data, err := s.redis.HGetAll(ctx, s.metaKey(roomCode, userID)).Result()
	if err != nil {
		return nil, err
	}

	entry := &Entry{UserID: userID}
	entry.DisplayName = data["display_name"]
	entry.Wins = parseInt(data["wins"])
	entry.Games = parseInt(data["games"])
	return entry, nil
}

func (s *Service) scoreKey(roomCode string) string {
	return fmt.Sprintf("%s:room:%s", s.prefix, roomCode)
}

func (s *Service) metaKey(roomCode string, userID uuid.UUID) string {
	return fmt.Sprintf("%s:room:%s:meta:%s", s.prefix, roomCode, userID.String())
}

func parseInt(val string) int {
	if val == "" {
		return 0
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return i
}
