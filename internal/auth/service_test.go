package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/pkg/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(store.NewMemory())
}

func TestRegister_CreatesUserRole(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, token, err := svc.Register(ctx, "jo@example.com", "secret1", "Jo")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, sess.Authenticated)

	// Registration always yields the standard customer role, never admin.
	require.Equal(t, RoleUser, sess.Role)
	require.Equal(t, "jo@example.com", sess.Email)
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "jo@example.com", "secret1", "Jo")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "jo@example.com", "different1", "Josephine")
	require.ErrorIs(t, err, ErrCredentialConflict)
}

func TestRegister_EmailIsCaseInsensitive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "Jo@Example.com", "secret1", "Jo")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "jo@example.com", "secret1", "Jo")
	require.ErrorIs(t, err, ErrCredentialConflict)
}

func TestRegister_RejectsShortPassword(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.Register(context.Background(), "jo@example.com", "five5", "Jo")
	require.ErrorIs(t, err, ErrWeakCredential)
}

func TestLogin_WrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "jo@example.com", "secret1", "Jo")
	require.NoError(t, err)

	_, _, errWrongPass := svc.Login(ctx, "jo@example.com", "not-it")
	_, _, errNoUser := svc.Login(ctx, "nobody@example.com", "secret1")

	require.ErrorIs(t, errWrongPass, ErrInvalidCredentials)
	require.ErrorIs(t, errNoUser, ErrInvalidCredentials)
}

func TestLogin_Succeeds(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	reg, _, err := svc.Register(ctx, "jo@example.com", "secret1", "Jo")
	require.NoError(t, err)

	sess, token, err := svc.Login(ctx, "jo@example.com", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, reg.PrincipalID, sess.PrincipalID)
}

func TestCurrentSession_GarbageTokenIsAnonymous(t *testing.T) {
	svc := newTestService(t)

	sess := svc.CurrentSession(context.Background(), "not-a-jwt")
	require.False(t, sess.Authenticated)
	require.Equal(t, RoleGuest, sess.Role)
}

func TestLogout_RevokesToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, token, err := svc.Register(ctx, "jo@example.com", "secret1", "Jo")
	require.NoError(t, err)

	require.True(t, svc.CurrentSession(ctx, token).Authenticated)
	require.NoError(t, svc.Logout(ctx, token))
	require.False(t, svc.CurrentSession(ctx, token).Authenticated)
}

func TestLogout_IsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, token, err := svc.Register(ctx, "jo@example.com", "secret1", "Jo")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))
	require.NoError(t, svc.Logout(ctx, token))
	require.NoError(t, svc.Logout(ctx, "garbage"))
}

func TestCurrentSession_RoleReadPerResolution(t *testing.T) {
	mem := store.NewMemory()
	svc := NewService(mem)
	ctx := context.Background()

	sess, token, err := svc.Register(ctx, "jo@example.com", "secret1", "Jo")
	require.NoError(t, err)

	// Promote the stored role out of band, as a second writer would.
	u, err := getUser(ctx, mem.Collection("users"), sess.PrincipalID)
	require.NoError(t, err)
	u.Role = "admin"
	require.NoError(t, updateUser(ctx, mem.Collection("users"), sess.PrincipalID, u))

	// The same token now resolves with the new role; no re-login needed.
	require.Equal(t, RoleAdmin, svc.CurrentSession(ctx, token).Role)
}

func TestCurrentSession_UnknownRoleDegradesToGuest(t *testing.T) {
	mem := store.NewMemory()
	svc := NewService(mem)
	ctx := context.Background()

	sess, token, err := svc.Register(ctx, "jo@example.com", "secret1", "Jo")
	require.NoError(t, err)

	u, err := getUser(ctx, mem.Collection("users"), sess.PrincipalID)
	require.NoError(t, err)
	u.Role = "superuser" // not in the enum
	require.NoError(t, updateUser(ctx, mem.Collection("users"), sess.PrincipalID, u))

	got := svc.CurrentSession(ctx, token)
	require.Equal(t, RoleGuest, got.Role)
	require.False(t, got.Role.IsAdmin())
}

func TestUpdateProfile_CannotChangeRole(t *testing.T) {
	mem := store.NewMemory()
	svc := NewService(mem)
	ctx := context.Background()

	sess, token, err := svc.Register(ctx, "jo@example.com", "secret1", "Jo")
	require.NoError(t, err)

	p := Profile{Name: "Jo", Phone: "123456", Address: "1 Main St", City: "Lille"}
	require.NoError(t, svc.UpdateProfile(ctx, sess.PrincipalID, p))

	got := svc.CurrentSession(ctx, token)
	require.Equal(t, p, got.Profile)
	require.Equal(t, RoleUser, got.Role)
}

func TestParseRole_FailsClosed(t *testing.T) {
	cases := map[string]Role{
		"admin": RoleAdmin,
		"user":  RoleUser,
		"guest": RoleGuest,
		"":      RoleGuest,
		"Admin": RoleGuest, // no case folding for privilege strings
		"root":  RoleGuest,
	}
	for in, want := range cases {
		if got := ParseRole(in); got != want {
			t.Errorf("ParseRole(%q) = %q, want %q", in, got, want)
		}
	}
}
