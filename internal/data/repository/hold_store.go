package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cinema-reservation/internal/data/entity"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HoldStore keeps one ephemeral hold per (showtime, seat). Every mutation
// runs as a single script so checking the owner and writing the hold
// cannot interleave with another session.
type HoldStore interface {
	Acquire(ctx context.Context, showtimeID int64, seatIDs []int64, sessionID, email string, now time.Time, ttl time.Duration) ([]int64, error)
	Release(ctx context.Context, showtimeID int64, seatIDs []int64, sessionID string) (int, error)
	Extend(ctx context.Context, showtimeID int64, seatIDs []int64, sessionID string, extra time.Duration, now time.Time) (int, error)
	Get(ctx context.Context, showtimeID int64, seatIDs []int64) (map[int64]*entity.Hold, error)
	Delete(ctx context.Context, showtimeID int64, seatIDs []int64) error
}

// Holds whose expires_at is not after ARGV now_ms count as absent even if
// Redis has not evicted the key yet.
var acquireScript = redis.NewScript(`
	local session = ARGV[1]
	local email = ARGV[2]
	local created_ms = ARGV[3]
	local expires_ms = ARGV[4]
	local ttl_ms = tonumber(ARGV[5])
	local now_ms = tonumber(ARGV[6])

	local conflicts = {}
	for i, key in ipairs(KEYS) do
		local owner = redis.call('HGET', key, 'session_id')
		local live = false
		if owner and owner ~= session then
			local exp = tonumber(redis.call('HGET', key, 'expires_at'))
			live = exp ~= nil and exp > now_ms
		end
		if live then
			table.insert(conflicts, i)
		else
			redis.call('HSET', key, 'session_id', session, 'customer_email', email,
				'created_at', created_ms, 'expires_at', expires_ms)
			redis.call('PEXPIRE', key, ttl_ms)
		end
	end
	return conflicts
`)

var releaseScript = redis.NewScript(`
	local released = 0
	for _, key in ipairs(KEYS) do
		if redis.call('HGET', key, 'session_id') == ARGV[1] then
			redis.call('DEL', key)
			released = released + 1
		end
	end
	return released
`)

var extendScript = redis.NewScript(`
	local extra_ms = tonumber(ARGV[2])
	local now_ms = tonumber(ARGV[3])

	local extended = 0
	for _, key in ipairs(KEYS) do
		if redis.call('HGET', key, 'session_id') == ARGV[1] then
			local ttl = redis.call('PTTL', key)
			local exp = tonumber(redis.call('HGET', key, 'expires_at'))
			if ttl > 0 and exp ~= nil and exp > now_ms then
				redis.call('PEXPIRE', key, ttl + extra_ms)
				redis.call('HSET', key, 'expires_at', exp + extra_ms)
				extended = extended + 1
			end
		end
	end
	return extended
`)

type holdStore struct {
	rdb redis.UniversalClient
	log *zap.Logger
}

func NewHoldStore(rdb redis.UniversalClient, log *zap.Logger) HoldStore {
	return &holdStore{
		rdb: rdb,
		log: log.With(zap.String("repository", "hold_store")),
	}
}

func holdKey(showtimeID, seatID int64) string {
	return fmt.Sprintf("seat_hold:showtime:%d:seat:%d", showtimeID, seatID)
}

func holdKeys(showtimeID int64, seatIDs []int64) []string {
	keys := make([]string, len(seatIDs))
	for i, seatID := range seatIDs {
		keys[i] = holdKey(showtimeID, seatID)
	}
	return keys
}

func (s *holdStore) Acquire(ctx context.Context, showtimeID int64, seatIDs []int64, sessionID, email string, now time.Time, ttl time.Duration) ([]int64, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}

	res, err := acquireScript.Run(ctx, s.rdb, holdKeys(showtimeID, seatIDs),
		sessionID,
		email,
		now.UnixMilli(),
		now.Add(ttl).UnixMilli(),
		ttl.Milliseconds(),
		now.UnixMilli(),
	).Int64Slice()
	if err != nil {
		s.log.Error("Failed to acquire seat holds",
			zap.Error(err),
			zap.Int64("showtime_id", showtimeID),
			zap.String("session_id", sessionID),
		)
		return nil, fmt.Errorf("acquire holds for showtime %d: %w", showtimeID, err)
	}

	// script returns 1-based positions into KEYS
	conflicts := make([]int64, 0, len(res))
	for _, pos := range res {
		conflicts = append(conflicts, seatIDs[pos-1])
	}
	return conflicts, nil
}

func (s *holdStore) Release(ctx context.Context, showtimeID int64, seatIDs []int64, sessionID string) (int, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}

	n, err := releaseScript.Run(ctx, s.rdb, holdKeys(showtimeID, seatIDs), sessionID).Int()
	if err != nil {
		s.log.Error("Failed to release seat holds",
			zap.Error(err),
			zap.Int64("showtime_id", showtimeID),
			zap.String("session_id", sessionID),
		)
		return 0, fmt.Errorf("release holds for showtime %d: %w", showtimeID, err)
	}
	return n, nil
}

func (s *holdStore) Extend(ctx context.Context, showtimeID int64, seatIDs []int64, sessionID string, extra time.Duration, now time.Time) (int, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}

	n, err := extendScript.Run(ctx, s.rdb, holdKeys(showtimeID, seatIDs),
		sessionID,
		extra.Milliseconds(),
		now.UnixMilli(),
	).Int()
	if err != nil {
		s.log.Error("Failed to extend seat holds",
			zap.Error(err),
			zap.Int64("showtime_id", showtimeID),
			zap.String("session_id", sessionID),
		)
		return 0, fmt.Errorf("extend holds for showtime %d: %w", showtimeID, err)
	}
	return n, nil
}

func (s *holdStore) Get(ctx context.Context, showtimeID int64, seatIDs []int64) (map[int64]*entity.Hold, error) {
	holds := make(map[int64]*entity.Hold, len(seatIDs))
	if len(seatIDs) == 0 {
		return holds, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(seatIDs))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, seatID := range seatIDs {
			cmds[i] = pipe.HGetAll(ctx, holdKey(showtimeID, seatID))
		}
		return nil
	})
	if err != nil {
		s.log.Error("Failed to read seat holds",
			zap.Error(err),
			zap.Int64("showtime_id", showtimeID),
		)
		return nil, fmt.Errorf("get holds for showtime %d: %w", showtimeID, err)
	}

	for i, seatID := range seatIDs {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		holds[seatID] = &entity.Hold{
			ShowtimeID:    showtimeID,
			SeatID:        seatID,
			SessionID:     fields["session_id"],
			CustomerEmail: fields["customer_email"],
			CreatedAt:     parseMillis(fields["created_at"]),
			ExpiresAt:     parseMillis(fields["expires_at"]),
		}
	}
	return holds, nil
}

func (s *holdStore) Delete(ctx context.Context, showtimeID int64, seatIDs []int64) error {
	if len(seatIDs) == 0 {
		return nil
	}

	if err := s.rdb.Del(ctx, holdKeys(showtimeID, seatIDs)...).Err(); err != nil {
		s.log.Error("Failed to delete seat holds",
			zap.Error(err),
			zap.Int64("showtime_id", showtimeID),
		)
		return fmt.Errorf("delete holds for showtime %d: %w", showtimeID, err)
	}
	return nil
}

func parseMillis(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
