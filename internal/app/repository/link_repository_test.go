package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/petermyo/DecentralizeFileShare/internal/app/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func fileRecord(code, owner string) *model.Record {
	return model.NewLinkRecord(&model.LinkRecord{
		Code:         code,
		RemoteFileID: "drive-" + code,
		DisplayName:  code + ".bin",
		OwnerID:      owner,
		SizeBytes:    42,
		CreatedAt:    time.Now().UTC(),
	})
}

func TestLinkRegistry_CreateAndLookup(t *testing.T) {
	srv, client := newTestRedis(t)
	reg := NewLinkRegistry(client)
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, fileRecord("xy12ab", "owner-1"), 30*24*time.Hour))

	assert.True(t, srv.Exists("link:xy12ab"))
	assert.Equal(t, 30*24*time.Hour, srv.TTL("link:xy12ab"))

	got, err := reg.Lookup(ctx, model.KindLink, "xy12ab")
	require.NoError(t, err)
	assert.Equal(t, model.KindLink, got.Kind)
	assert.Equal(t, "drive-xy12ab", got.Link.RemoteFileID)

	_, err = reg.Lookup(ctx, model.KindList, "xy12ab")
	assert.ErrorIs(t, err, ErrLinkNotFound, "lists and files live in separate key spaces")
}

func TestLinkRegistry_CreateRejectsDuplicateCode(t *testing.T) {
	_, client := newTestRedis(t)
	reg := NewLinkRegistry(client)
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, fileRecord("dup001", "owner-1"), time.Hour))
	err := reg.Create(ctx, fileRecord("dup001", "owner-2"), time.Hour)
	assert.ErrorIs(t, err, ErrCodeTaken)

	got, err := reg.Lookup(ctx, model.KindLink, "dup001")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", got.OwnerID(), "existing record must be left untouched")
}

func TestLinkRegistry_CreateRollsBackWhenIndexFails(t *testing.T) {
	srv, client := newTestRedis(t)
	reg := NewLinkRegistry(client)

	// A plain string under the index key makes ZADD fail with WRONGTYPE.
	require.NoError(t, srv.Set("owner:owner-1:links", "not-a-zset"))

	err := reg.Create(context.Background(), fileRecord("idx001", "owner-1"), time.Hour)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, srv.Exists("link:idx001"), "record must not outlive a failed index write")
}

func TestLinkRegistry_PutKeepsRetention(t *testing.T) {
	srv, client := newTestRedis(t)
	reg := NewLinkRegistry(client)
	ctx := context.Background()

	rec := fileRecord("keep01", "owner-1")
	require.NoError(t, reg.Create(ctx, rec, 2*time.Hour))
	srv.FastForward(time.Hour)

	pass := "secret"
	rec.SetProtection(&pass, nil)
	require.NoError(t, reg.Put(ctx, rec))

	assert.Equal(t, time.Hour, srv.TTL("link:keep01"))
	got, err := reg.Lookup(ctx, model.KindLink, "keep01")
	require.NoError(t, err)
	assert.Equal(t, "secret", got.Passcode())
}

func TestLinkRegistry_PutMissingRecord(t *testing.T) {
	_, client := newTestRedis(t)
	reg := NewLinkRegistry(client)

	err := reg.Put(context.Background(), fileRecord("ghost1", "owner-1"))
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestLinkRegistry_RetentionExpiry(t *testing.T) {
	srv, client := newTestRedis(t)
	reg := NewLinkRegistry(client)
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, fileRecord("ttl001", "owner-1"), time.Minute))
	srv.FastForward(2 * time.Minute)

	_, err := reg.Lookup(ctx, model.KindLink, "ttl001")
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestLinkRegistry_DeleteAndOwnerIndex(t *testing.T) {
	srv, client := newTestRedis(t)
	reg := NewLinkRegistry(client)
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, fileRecord("aaa111", "owner-1"), time.Hour))
	require.NoError(t, reg.Create(ctx, fileRecord("bbb222", "owner-1"), time.Hour))
	require.NoError(t, reg.Create(ctx, fileRecord("ccc333", "owner-2"), time.Hour))

	records, err := reg.ListByOwner(ctx, "owner-1", model.KindLink)
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NoError(t, reg.Delete(ctx, model.KindLink, "aaa111"))
	require.NoError(t, reg.Delete(ctx, model.KindLink, "aaa111"), "deleting twice is not an error")

	// A record that ages out leaves a stale index member behind until the next read.
	srv.Del("link:bbb222")
	records, err = reg.ListByOwner(ctx, "owner-1", model.KindLink)
	require.NoError(t, err)
	assert.Empty(t, records)

	members, err := srv.ZMembers("owner:owner-1:links")
	if err == nil {
		assert.Empty(t, members)
	}
}

func TestLinkRegistry_StoreUnavailable(t *testing.T) {
	srv, client := newTestRedis(t)
	reg := NewLinkRegistry(client)
	srv.Close()

	_, err := reg.Lookup(context.Background(), model.KindLink, "xy12ab")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.False(t, errors.Is(err, ErrLinkNotFound), "an outage must never look like a missing link")
}

func TestCredentialVault_RoundTrip(t *testing.T) {
	_, client := newTestRedis(t)
	vault := NewCredentialVault(client)
	ctx := context.Background()

	_, err := vault.Get(ctx, "owner-1")
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	entry := &model.CredentialEntry{
		OwnerID:         "owner-1",
		AccessToken:     "access",
		RefreshToken:    "refresh",
		IssuedAt:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ValidForSeconds: 3599,
	}
	require.NoError(t, vault.Put(ctx, entry))

	got, err := vault.Get(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	require.NoError(t, vault.Delete(ctx, "owner-1"))
	_, err = vault.Get(ctx, "owner-1")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}
