package charts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

const defaultSettingsStoreKey = "charts:settings:engine:v1"

// RedisSettingsStore keeps EngineSettings as one JSON value.
type RedisSettingsStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisSettingsStore(client redis.UniversalClient, key string) *RedisSettingsStore {
	if client == nil {
		return nil
	}
	storeKey := strings.TrimSpace(key)
	if storeKey == "" {
		storeKey = defaultSettingsStoreKey
	}
	return &RedisSettingsStore{client: client, key: storeKey}
}

func (s *RedisSettingsStore) Load(ctx context.Context) (EngineSettings, bool, error) {
	if s == nil || s.client == nil {
		return EngineSettings{}, false, nil
	}
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return EngineSettings{}, false, nil
		}
		return EngineSettings{}, false, err
	}
	var settings EngineSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return EngineSettings{}, false, err
	}
	return settings, true, nil
}

func (s *RedisSettingsStore) Save(ctx context.Context, settings EngineSettings) error {
	if s == nil || s.client == nil {
		return nil
	}
	payload, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, payload, 0).Err()
}

func (s *RedisSettingsStore) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}
