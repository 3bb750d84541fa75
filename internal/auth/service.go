// Package auth is the single source of truth for who is acting and with what
// rights. It owns the users collection: credentials, role records, and
// profile fields all live in one document per principal, keyed by ID.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgauth "github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/store"
)

// minPasswordLen matches the credential policy: anything shorter is rejected
// before a credential is created.
const minPasswordLen = 6

var (
	// ErrCredentialConflict is returned when the email is already registered.
	ErrCredentialConflict = errors.New("auth: email already registered")
	// ErrWeakCredential is returned when the password fails the policy.
	ErrWeakCredential = errors.New("auth: password does not meet the policy")
	// ErrInvalidCredentials is returned on login failure. It deliberately
	// does not reveal whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrUnauthenticated is returned when an operation requires a session.
	ErrUnauthenticated = errors.New("auth: not authenticated")

	// ErrUnauthorized is returned when a session exists but its role does
	// not permit the operation. Authorization fails closed: an unknown or
	// missing role is never treated as sufficient.
	ErrUnauthorized = errors.New("auth: insufficient rights")
)

// userDoc is the wire shape of users/{uid}. PasswordHash never leaves this
// package.
type userDoc struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Role         string    `json:"role"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Address      string    `json:"address"`
	City         string    `json:"city"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Service implements registration, login, logout, and session resolution.
type Service struct {
	users store.Collection

	// revoked is the in-process revocation set; Redis (pkg/cache) carries the
	// same marks across processes. Either hit kills the token.
	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewService creates a Service over the given store.
func NewService(st store.Store) *Service {
	return &Service{
		users:   st.Collection("users"),
		revoked: make(map[string]time.Time),
	}
}

// Register creates a credential plus a role record with role "user" and
// empty profile fields, then signs the principal in.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (Session, string, error) {
	email = normalizeEmail(email)
	if len(password) < minPasswordLen {
		return Anonymous, "", ErrWeakCredential
	}

	if _, _, err := s.findByEmail(ctx, email); err == nil {
		return Anonymous, "", ErrCredentialConflict
	} else if !errors.Is(err, ErrInvalidCredentials) {
		return Anonymous, "", err
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return Anonymous, "", fmt.Errorf("auth: hash password: %w", err)
	}

	id := uuid.NewString()
	doc := userDoc{
		Email:        email,
		PasswordHash: hash,
		Role:         string(RoleUser),
		Name:         displayName,
		CreatedAt:    time.Now().UTC(),
	}
	if err := insertUser(ctx, s.users, id, doc); err != nil {
		return Anonymous, "", fmt.Errorf("auth: create user: %w", err)
	}

	sess := sessionFrom(id, doc)
	token, err := pkgauth.GenerateToken(id, string(sess.Role))
	if err != nil {
		return Anonymous, "", fmt.Errorf("auth: issue token: %w", err)
	}

	logger.Info("auth: registered", "principal", id)
	return sess, token, nil
}

// Login exchanges credentials for a session and token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, string, error) {
	id, doc, err := s.findByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return Anonymous, "", err
	}
	if !pkgauth.CheckPassword(doc.PasswordHash, password) {
		return Anonymous, "", ErrInvalidCredentials
	}

	sess := sessionFrom(id, doc)
	token, err := pkgauth.GenerateToken(id, string(sess.Role))
	if err != nil {
		return Anonymous, "", fmt.Errorf("auth: issue token: %w", err)
	}
	return sess, token, nil
}

// Logout revokes the token. Idempotent: revoking an already-revoked or
// invalid token succeeds silently.
func (s *Service) Logout(_ context.Context, token string) error {
	claims, err := pkgauth.ValidateToken(token)
	if err != nil {
		return nil
	}

	expiry := claims.ExpiresAt.Time
	s.mu.Lock()
	s.revoked[claims.ID] = expiry
	s.mu.Unlock()

	// Cross-process revocation; TTL matches the token so the mark expires
	// exactly when the token would anyway.
	_ = cache.Set(revocationKey(claims.ID), true, time.Until(expiry))
	return nil
}

// CurrentSession resolves a bearer token into a session. Resolution is
// fail-closed: any invalid, expired, or revoked token — and any store
// failure while merging the role record — yields Anonymous.
//
// The role record is re-read on every resolution, so a role change (or the
// record's deletion) takes effect on the next request, not at next login.
// An absent role record is not an error: the session proceeds with a
// guest-equivalent profile.
func (s *Service) CurrentSession(ctx context.Context, token string) Session {
	if token == "" {
		return Anonymous
	}

	claims, err := pkgauth.ValidateToken(token)
	if err != nil {
		return Anonymous
	}
	if s.isRevoked(claims.ID) {
		return Anonymous
	}

	doc, err := getUser(ctx, s.users, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		// Credential outlived its role record: minimal guest-equivalent session.
		return Session{PrincipalID: claims.Subject, Role: RoleGuest, Authenticated: true}
	}
	if err != nil {
		logger.Warn("auth: role record fetch failed", "principal", claims.Subject, "error", err)
		return Anonymous
	}

	return sessionFrom(claims.Subject, doc)
}

// Profile returns the principal's stored profile fields.
func (s *Service) Profile(ctx context.Context, principalID string) (Profile, error) {
	doc, err := getUser(ctx, s.users, principalID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Name: doc.Name, Phone: doc.Phone, Address: doc.Address, City: doc.City}, nil
}

// UpdateProfile overwrites the profile fields. Role, email, and credential
// are untouched — this path must never be able to escalate rights.
func (s *Service) UpdateProfile(ctx context.Context, principalID string, p Profile) error {
	doc, err := getUser(ctx, s.users, principalID)
	if err != nil {
		return err
	}

	doc.Name = p.Name
	doc.Phone = p.Phone
	doc.Address = p.Address
	doc.City = p.City
	return updateUser(ctx, s.users, principalID, doc)
}

// ─── Internals ────────────────────────────────────────────────────────────────

func (s *Service) isRevoked(jti string) bool {
	s.mu.Lock()
	_, local := s.revoked[jti]
	s.mu.Unlock()
	if local {
		return true
	}

	var marked bool
	return cache.Get(revocationKey(jti), &marked) && marked
}

// findByEmail scans the users collection. The store has no secondary
// indexes; at boutique scale a full scan is cheaper than maintaining an
// index document that every registration must keep consistent.
func (s *Service) findByEmail(ctx context.Context, email string) (string, userDoc, error) {
	docs, err := s.users.List(ctx)
	if err != nil {
		return "", userDoc{}, fmt.Errorf("auth: list users: %w", err)
	}
	for _, d := range docs {
		u, err := decodeUser(d)
		if err != nil {
			continue
		}
		if u.Email == email {
			return d.ID, u, nil
		}
	}
	return "", userDoc{}, ErrInvalidCredentials
}

func sessionFrom(id string, doc userDoc) Session {
	return Session{
		PrincipalID:   id,
		Email:         doc.Email,
		Role:          ParseRole(doc.Role),
		Profile:       Profile{Name: doc.Name, Phone: doc.Phone, Address: doc.Address, City: doc.City},
		Authenticated: true,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func revocationKey(jti string) string {
	return "storefront:revoked:" + jti
}
