package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateKey(t *testing.T) {
	mgr := NewManager(NewMemoryStore())
	ctx := context.Background()

	rawKey, keyInfo, err := mgr.GenerateKey(ctx, "ptn_abc123", "Test key")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rawKey, "pk_"))
	assert.Equal(t, "ptn_abc123", keyInfo.PartnerID)

	got, err := mgr.ValidateKey(ctx, rawKey)
	require.NoError(t, err)
	assert.Equal(t, keyInfo.ID, got.ID)

	// Bearer prefix is accepted too.
	got, err = mgr.ValidateKey(ctx, "Bearer "+rawKey)
	require.NoError(t, err)
	assert.Equal(t, keyInfo.ID, got.ID)
}

func TestValidateKey_Rejections(t *testing.T) {
	mgr := NewManager(NewMemoryStore())
	ctx := context.Background()

	_, err := mgr.ValidateKey(ctx, "")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = mgr.ValidateKey(ctx, "sk_wrongprefix")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	_, err = mgr.ValidateKey(ctx, "pk_nosuchkey")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestRevokeKey(t *testing.T) {
	mgr := NewManager(NewMemoryStore())
	ctx := context.Background()

	rawKey, keyInfo, err := mgr.GenerateKey(ctx, "ptn_abc123", "Test key")
	require.NoError(t, err)

	require.NoError(t, mgr.RevokeKey(ctx, keyInfo.ID, "ptn_abc123"))

	_, err = mgr.ValidateKey(ctx, rawKey)
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	// Revoking someone else's key fails.
	err = mgr.RevokeKey(ctx, keyInfo.ID, "ptn_other")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestValidateKey_Expired(t *testing.T) {
	store := NewMemoryStore()
	mgr := NewManager(store)
	ctx := context.Background()

	rawKey, keyInfo, err := mgr.GenerateKey(ctx, "ptn_abc123", "Short lived")
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	keyInfo.ExpiresAt = &past
	require.NoError(t, store.Update(ctx, keyInfo))

	_, err = mgr.ValidateKey(ctx, rawKey)
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}
