package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tontyoutoure/xianqi/internal/database"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, "test-secret", time.Hour, 24*time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", user.PasswordHash)

	pair, err := svc.Login(ctx, "alice", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "hunter2")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "hunter2")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterRejectsEmptyFields(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register(context.Background(), "", "password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Register(context.Background(), "user", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "bob", "secret")
	require.NoError(t, err)
	pair, err := svc.Login(ctx, "bob", "secret")
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The old refresh token is single use.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	claims, err := svc.VerifyAccess(rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Username)
}

func TestVerifyAccessRejectsGarbage(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.VerifyAccess("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyAccessRejectsForeignSignature(t *testing.T) {
	svcA := newTestService(t)
	svcB := newTestService(t)
	svcB.secret = []byte("other-secret")

	ctx := context.Background()
	_, err := svcA.Register(ctx, "carol", "pw")
	require.NoError(t, err)
	pair, err := svcA.Login(ctx, "carol", "pw")
	require.NoError(t, err)

	_, err = svcB.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}
