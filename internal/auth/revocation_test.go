package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRevoker(t *testing.T) (*RedisRevoker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRevoker(client), mr
}

func TestRevokeUntilExpiry(t *testing.T) {
	revoker, mr := newRevoker(t)
	ctx := context.Background()

	require.NoError(t, revoker.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))

	revoked, err := revoker.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = revoker.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevokeExpiredTokenIsNoop(t *testing.T) {
	revoker, mr := newRevoker(t)

	require.NoError(t, revoker.Revoke(context.Background(), "jti-old", time.Now().Add(-time.Second)))
	assert.False(t, mr.Exists(revokedKeyPrefix+"jti-old"))
}

func TestUnknownTokenIsNotRevoked(t *testing.T) {
	revoker, _ := newRevoker(t)
	revoked, err := revoker.IsRevoked(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, revoked)
}
