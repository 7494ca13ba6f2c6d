package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionHoldIndex remembers which seats a session holds per showtime so
// they can be released or extended in bulk. It is never used to decide
// seat ownership; HoldStore is the only authority for that.
type SessionHoldIndex interface {
	Put(ctx context.Context, sessionID string, showtimeID int64, seatIDs []int64, ttl time.Duration) error
	Get(ctx context.Context, sessionID string, showtimeID int64) ([]int64, error)
	Remove(ctx context.Context, sessionID string, showtimeID int64) error
	Extend(ctx context.Context, sessionID string, extra time.Duration) error
}

var extendIndexScript = redis.NewScript(`
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl > 0 then
		redis.call('PEXPIRE', KEYS[1], ttl + tonumber(ARGV[1]))
		return 1
	end
	return 0
`)

type sessionHoldIndex struct {
	rdb redis.UniversalClient
	log *zap.Logger
}

func NewSessionHoldIndex(rdb redis.UniversalClient, log *zap.Logger) SessionHoldIndex {
	return &sessionHoldIndex{
		rdb: rdb,
		log: log.With(zap.String("repository", "session_hold_index")),
	}
}

func sessionKey(sessionID string) string {
	return "session_holds:" + sessionID
}

func (r *sessionHoldIndex) Put(ctx context.Context, sessionID string, showtimeID int64, seatIDs []int64, ttl time.Duration) error {
	if len(seatIDs) == 0 {
		return r.Remove(ctx, sessionID, showtimeID)
	}

	key := sessionKey(sessionID)
	field := strconv.FormatInt(showtimeID, 10)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, field, joinSeatIDs(seatIDs))
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		r.log.Error("Failed to index session holds",
			zap.Error(err),
			zap.String("session_id", sessionID),
			zap.Int64("showtime_id", showtimeID),
		)
		return fmt.Errorf("index holds of session %s: %w", sessionID, err)
	}
	return nil
}

func (r *sessionHoldIndex) Get(ctx context.Context, sessionID string, showtimeID int64) ([]int64, error) {
	val, err := r.rdb.HGet(ctx, sessionKey(sessionID), strconv.FormatInt(showtimeID, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to read session holds",
			zap.Error(err),
			zap.String("session_id", sessionID),
			zap.Int64("showtime_id", showtimeID),
		)
		return nil, fmt.Errorf("get holds of session %s: %w", sessionID, err)
	}
	return splitSeatIDs(val), nil
}

func (r *sessionHoldIndex) Remove(ctx context.Context, sessionID string, showtimeID int64) error {
	err := r.rdb.HDel(ctx, sessionKey(sessionID), strconv.FormatInt(showtimeID, 10)).Err()
	if err != nil {
		r.log.Error("Failed to remove session holds",
			zap.Error(err),
			zap.String("session_id", sessionID),
			zap.Int64("showtime_id", showtimeID),
		)
		return fmt.Errorf("remove holds of session %s: %w", sessionID, err)
	}
	return nil
}

func (r *sessionHoldIndex) Extend(ctx context.Context, sessionID string, extra time.Duration) error {
	err := extendIndexScript.Run(ctx, r.rdb, []string{sessionKey(sessionID)}, extra.Milliseconds()).Err()
	if err != nil {
		r.log.Error("Failed to extend session index",
			zap.Error(err),
			zap.String("session_id", sessionID),
		)
		return fmt.Errorf("extend holds of session %s: %w", sessionID, err)
	}
	return nil
}

func joinSeatIDs(seatIDs []int64) string {
	parts := make([]string, len(seatIDs))
	for i, id := range seatIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// splitSeatIDs skips malformed entries instead of failing the whole read.
func splitSeatIDs(v string) []int64 {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
