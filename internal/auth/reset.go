package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgauth "github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/crypt"
	"github.com/shashiranjanraj/storefront/pkg/mail"
	"github.com/shashiranjanraj/storefront/pkg/queue"
)

// resetTTL is how long a password-reset link stays usable.
const resetTTL = 30 * time.Minute

// ErrResetExpired is returned when a reset token is malformed or too old.
var ErrResetExpired = errors.New("auth: reset link expired")

type resetPayload struct {
	PrincipalID string    `json:"principalId"`
	IssuedAt    time.Time `json:"issuedAt"`
}

// RequestPasswordReset mails a reset link to the address, if it is
// registered. An unknown address is silently accepted so the endpoint cannot
// be used to probe which emails have accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email, linkBase string) error {
	id, doc, err := s.findByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrInvalidCredentials) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := crypt.EncryptJSON(resetPayload{PrincipalID: id, IssuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("auth: mint reset token: %w", err)
	}

	return queue.Dispatch(&PasswordResetJob{
		Email: doc.Email,
		Name:  doc.Name,
		Link:  linkBase + "?token=" + token,
	})
}

// ResetPassword redeems a reset token and replaces the credential.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrWeakCredential
	}

	var payload resetPayload
	if err := crypt.DecryptJSON(token, &payload); err != nil {
		return ErrResetExpired
	}
	if time.Since(payload.IssuedAt) > resetTTL {
		return ErrResetExpired
	}

	doc, err := getUser(ctx, s.users, payload.PrincipalID)
	if err != nil {
		return ErrResetExpired
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	doc.PasswordHash = hash
	return updateUser(ctx, s.users, payload.PrincipalID, doc)
}

// PasswordResetJob delivers the reset email off the request path.
type PasswordResetJob struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Link  string `json:"link"`
}

// Handle sends the reset email.
func (j *PasswordResetJob) Handle() error {
	name := j.Name
	if name == "" {
		name = "there"
	}
	return mail.To(j.Email).
		Subject("Reset your password").
		Body(fmt.Sprintf("<p>Hi %s,</p><p><a href=%q>Click here to choose a new password.</a> The link expires in 30 minutes.</p>", name, j.Link)).
		Send()
}
