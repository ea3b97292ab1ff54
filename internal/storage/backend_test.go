package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	logx "wolfie/pkg/logx"
)

func setupTestRedis(t *testing.T) (*redisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	st := newRedisStore(&redis.Options{Addr: mr.Addr()}, "test", logx.Nop())
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	dir := t.TempDir()

	file, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "docs")}, logx.Nop())
	require.NoError(t, err)

	sqlite, err := Open(Config{Driver: "sqlite", Path: filepath.Join(dir, "db", "wolfie.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	rs, _ := setupTestRedis(t)

	return map[string]Backend{
		"file":   file,
		"sqlite": sqlite,
		"redis":  rs,
		"memory": NewMemory(),
	}
}

func TestBackends_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			_, err := b.Load(ctx, "title_queues")
			assert.True(t, errors.Is(err, ErrNoDocument), "expected ErrNoDocument, got %v", err)

			require.NoError(t, b.Save(ctx, "title_queues", []byte(`{"sage":{"entries":[],"cursor":0}}`)))
			got, err := b.Load(ctx, "title_queues")
			require.NoError(t, err)
			assert.JSONEq(t, `{"sage":{"entries":[],"cursor":0}}`, string(got))

			require.NoError(t, b.Save(ctx, "title_queues", []byte(`{}`)))
			got, err = b.Load(ctx, "title_queues")
			require.NoError(t, err)
			assert.JSONEq(t, `{}`, string(got))
		})
	}
}

func TestBackends_RejectBadRegionName(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			assert.Error(t, b.Save(ctx, "../escape", []byte(`{}`)))
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "postgres"}, logx.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage driver")
}

func TestOpen_RedisRequiresAddr(t *testing.T) {
	_, err := Open(Config{Driver: "redis"}, logx.Nop())
	require.Error(t, err)
}

func TestOpen_RedisPing(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	b, err := Open(Config{Driver: "redis", Redis: RedisConfig{Addr: mr.Addr()}}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.Save(context.Background(), "dawn_battle", []byte(`{"d1":{}}`)))
	raw, err := mr.Get("wolfie:region:dawn_battle")
	require.NoError(t, err)
	assert.JSONEq(t, `{"d1":{}}`, raw)
}

func TestFileStore_LeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(Config{Path: dir}, logx.Nop())
	require.NoError(t, err)

	require.NoError(t, b.Save(context.Background(), "user_preferences", []byte(`{}`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "user_preferences.json", entries[0].Name())
}

func TestRedisStore_UsesPrefix(t *testing.T) {
	st, mr := setupTestRedis(t)
	require.NoError(t, st.Save(context.Background(), "wonder_battle", []byte(`{}`)))
	assert.True(t, mr.Exists("test:region:wonder_battle"))
}

func TestValidRegionName(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"title_queues", true},
		{"dawn-battle", true},
		{"a", true},
		{"", false},
		{"Title", false},
		{"_hidden", false},
		{"a/b", false},
		{"..", false},
	}
	for _, tc := range cases {
		err := ValidRegionName(tc.name)
		if tc.ok {
			assert.NoError(t, err, tc.name)
		} else {
			assert.Error(t, err, tc.name)
		}
	}
}
