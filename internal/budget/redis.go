package budget

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/rueidis"
)

const redisKeyPrefix = "codepractice:budget:"

// RedisStore shares budget state between processes through Redis
type RedisStore struct {
	redis rueidis.Client
}

// NewRedisStore creates a store on an existing client
func NewRedisStore(redis rueidis.Client) *RedisStore {
	return &RedisStore{redis: redis}
}

// Load returns the stored state, or a zero state when the key is absent
func (s *RedisStore) Load(ctx context.Context, account string) (State, error) {
	reply := s.redis.Do(ctx, s.redis.B().Get().Key(redisKeyPrefix+account).Build())
	if err := reply.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return State{Account: account}, nil
		}
		return State{}, fmt.Errorf("get budget: %w", err)
	}

	var state State
	if err := reply.DecodeJSON(&state); err != nil {
		return State{}, fmt.Errorf("decode budget: %w", err)
	}
	return state, nil
}

func (s *RedisStore) Save(ctx context.Context, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal budget: %w", err)
	}

	cmd := s.redis.B().Set().Key(redisKeyPrefix + state.Account).Value(rueidis.BinaryString(data)).Build()
	if err := s.redis.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
