package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/pkg/crypt"
	"github.com/shashiranjanraj/storefront/pkg/store"
)

func TestResetPassword_RoundTrip(t *testing.T) {
	mem := store.NewMemory()
	svc := NewService(mem)
	ctx := context.Background()

	sess, _, err := svc.Register(ctx, "jo@example.com", "secret1", "Jo")
	require.NoError(t, err)

	token, err := crypt.EncryptJSON(resetPayload{PrincipalID: sess.PrincipalID, IssuedAt: time.Now().UTC()})
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(ctx, token, "brand-new-pass"))

	_, _, err = svc.Login(ctx, "jo@example.com", "secret1")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "jo@example.com", "brand-new-pass")
	require.NoError(t, err)
}

func TestResetPassword_ExpiredTokenRejected(t *testing.T) {
	mem := store.NewMemory()
	svc := NewService(mem)
	ctx := context.Background()

	sess, _, err := svc.Register(ctx, "jo@example.com", "secret1", "Jo")
	require.NoError(t, err)

	stale, err := crypt.EncryptJSON(resetPayload{
		PrincipalID: sess.PrincipalID,
		IssuedAt:    time.Now().UTC().Add(-resetTTL - time.Minute),
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.ResetPassword(ctx, stale, "brand-new-pass"), ErrResetExpired)
}

func TestResetPassword_GarbageTokenRejected(t *testing.T) {
	svc := NewService(store.NewMemory())

	err := svc.ResetPassword(context.Background(), "not-a-token", "brand-new-pass")
	require.ErrorIs(t, err, ErrResetExpired)
}

func TestResetPassword_WeakReplacementRejected(t *testing.T) {
	svc := NewService(store.NewMemory())

	err := svc.ResetPassword(context.Background(), "whatever", "tiny")
	require.ErrorIs(t, err, ErrWeakCredential)
}

func TestRequestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	svc := NewService(store.NewMemory())

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "nobody@example.com", "https://shop/reset"))
}
