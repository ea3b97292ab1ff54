package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "wolfie/pkg/logx"

	"github.com/redis/go-redis/v9"
)

// redisStore keeps each region as one JSON string at <prefix>:region:<name>.
type redisStore struct {
	rdb    *redis.Client
	prefix string
	log    logx.Logger
}

func openRedis(cfg Config, log logx.Logger) (Backend, error) {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil, errors.New("storage.redis.addr is required for redis driver")
	}
	st := newRedisStore(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Redis.Prefix, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := st.rdb.Ping(ctx).Err(); err != nil {
		_ = st.rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return st, nil
}

func newRedisStore(opts *redis.Options, prefix string, log logx.Logger) *redisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "wolfie"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &redisStore{rdb: redis.NewClient(opts), prefix: prefix, log: log}
}

func (s *redisStore) key(region string) string {
	return s.prefix + ":region:" + region
}

func (s *redisStore) Load(ctx context.Context, region string) ([]byte, error) {
	if err := ValidRegionName(region); err != nil {
		return nil, err
	}
	b, err := s.rdb.Get(ctx, s.key(region)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", region, err)
	}
	return b, nil
}

func (s *redisStore) Save(ctx context.Context, region string, doc []byte) error {
	if err := ValidRegionName(region); err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(region), doc, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", region, err)
	}
	s.log.Debug("region saved", logx.String("region", region), logx.Int("bytes", len(doc)))
	return nil
}

func (s *redisStore) Close() error { return s.rdb.Close() }
