package repo

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/regimeiq/osint-threat-monitor/internal/config"
	"github.com/regimeiq/osint-threat-monitor/internal/models"
	"github.com/regimeiq/osint-threat-monitor/internal/utils"
)

const (
	resultKeyPrefix       = "otm:result:"
	threadKeyPrefix       = "otm:thread:"
	lockKeyPrefix         = "otm:runlock:"
	disagreementKeyPrefix = "otm:disagreement:"
)

// RedisStore is the shared ResultStore for multi-instance deployments.
// Run locks ride on SET NX with a TTL so a crashed run cannot wedge a
// window forever.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, utils.NewAppError("repo.NewRedisStore", "redis ping failed", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) ReplaceWindowResult(ctx context.Context, windowKey string, result models.CorrelateResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return utils.NewAppError("repo.ReplaceWindowResult", "marshal result", err)
	}

	var staleThreads []string
	if prev, err := s.WindowResult(ctx, windowKey); err == nil {
		for _, t := range prev.Threads {
			staleThreads = append(staleThreads, threadKeyPrefix+t.ID)
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(staleThreads) > 0 {
			pipe.Del(ctx, staleThreads...)
		}
		pipe.Set(ctx, resultKeyPrefix+windowKey, payload, 0)
		for _, t := range result.Threads {
			body, err := json.Marshal(t)
			if err != nil {
				return err
			}
			pipe.Set(ctx, threadKeyPrefix+t.ID, body, 0)
		}
		return nil
	})
	if err != nil {
		return utils.NewAppError("repo.ReplaceWindowResult", "redis write failed", err)
	}
	return nil
}

func (s *RedisStore) WindowResult(ctx context.Context, windowKey string) (models.CorrelateResult, error) {
	raw, err := s.client.Get(ctx, resultKeyPrefix+windowKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.CorrelateResult{}, ErrNotFound
	}
	if err != nil {
		return models.CorrelateResult{}, utils.NewAppError("repo.WindowResult", "redis read failed", err)
	}
	var result models.CorrelateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return models.CorrelateResult{}, utils.NewAppError("repo.WindowResult", "unmarshal result", err)
	}
	return result, nil
}

func (s *RedisStore) Thread(ctx context.Context, threadID string) (models.Thread, error) {
	raw, err := s.client.Get(ctx, threadKeyPrefix+threadID).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Thread{}, ErrNotFound
	}
	if err != nil {
		return models.Thread{}, utils.NewAppError("repo.Thread", "redis read failed", err)
	}
	var thread models.Thread
	if err := json.Unmarshal(raw, &thread); err != nil {
		return models.Thread{}, utils.NewAppError("repo.Thread", "unmarshal thread", err)
	}
	return thread, nil
}

func (s *RedisStore) AcquireRunLock(ctx context.Context, windowKey, runID string, ttl time.Duration) error {
	key := lockKeyPrefix + windowKey
	ok, err := s.client.SetNX(ctx, key, runID, ttl).Result()
	if err != nil {
		return utils.NewAppError("repo.AcquireRunLock", "redis setnx failed", err)
	}
	if ok {
		return nil
	}
	holder, err := s.client.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return utils.NewAppError("repo.AcquireRunLock", "redis read failed", err)
	}
	if holder == runID {
		s.client.Expire(ctx, key, ttl)
		return nil
	}
	return ErrRunInProgress
}

var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0
`)

func (s *RedisStore) ReleaseRunLock(ctx context.Context, windowKey, runID string) error {
	if err := releaseLockScript.Run(ctx, s.client, []string{lockKeyPrefix + windowKey}, runID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return utils.NewAppError("repo.ReleaseRunLock", "redis release failed", err)
	}
	return nil
}

func (s *RedisStore) AppendDisagreement(ctx context.Context, rec models.DisagreementRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return utils.NewAppError("repo.AppendDisagreement", "marshal record", err)
	}
	// HSetNX keeps the first write for an (record, run) pair, which is the
	// idempotency contract.
	if err := s.client.HSetNX(ctx, disagreementKeyPrefix+rec.RunID, rec.RecordID, body).Err(); err != nil {
		return utils.NewAppError("repo.AppendDisagreement", "redis write failed", err)
	}
	return nil
}

func (s *RedisStore) Disagreements(ctx context.Context, runID string) ([]models.DisagreementRecord, error) {
	fields, err := s.client.HGetAll(ctx, disagreementKeyPrefix+runID).Result()
	if err != nil {
		return nil, utils.NewAppError("repo.Disagreements", "redis read failed", err)
	}
	out := make([]models.DisagreementRecord, 0, len(fields))
	for _, raw := range fields {
		var rec models.DisagreementRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out, nil
}
