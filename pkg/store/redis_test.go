package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T, opts Options) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	opts.Addr = mr.Addr()
	s, err := NewRedisStore(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return mr, s
}

func TestSaveAndLoad(t *testing.T) {
	mr, s := setupTestRedis(t, Options{})
	ctx := context.Background()

	body := []byte(`[{"file":"a.jpg","boxes":[]}]`)
	require.NoError(t, s.Save(ctx, "job-1", body))

	got, err := s.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, body, got)

	raw, err := mr.Get("frame_analysis:job-1")
	require.NoError(t, err)
	assert.Equal(t, string(body), raw)
	assert.Zero(t, mr.TTL("frame_analysis:job-1"))
}

func TestSaveWithPrefixAndTTL(t *testing.T) {
	mr, s := setupTestRedis(t, Options{KeyPrefix: "yolo_response:", TTL: time.Hour})
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "42", []byte(`{"path error":"x"}`)))
	assert.True(t, mr.Exists("yolo_response:42"))
	assert.Equal(t, time.Hour, mr.TTL("yolo_response:42"))

	mr.FastForward(2 * time.Hour)
	_, err := s.Load(ctx, "42")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadMissing(t *testing.T) {
	_, s := setupTestRedis(t, Options{})
	_, err := s.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	mr, s := setupTestRedis(t, Options{})
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "gone", []byte("[]")))
	require.NoError(t, s.Delete(ctx, "gone"))
	assert.False(t, mr.Exists("frame_analysis:gone"))
}

func TestSaveRequiresID(t *testing.T) {
	_, s := setupTestRedis(t, Options{})
	assert.Error(t, s.Save(context.Background(), "", []byte("[]")))
}

func TestStoreUnavailable(t *testing.T) {
	mr, s := setupTestRedis(t, Options{})
	require.NoError(t, s.Ping(context.Background()))

	mr.Close()
	assert.Error(t, s.Save(context.Background(), "x", []byte("[]")))
}

func TestNewRedisStoreConnectionError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisStore(context.Background(), Options{Addr: addr})
	assert.Error(t, err)
}
