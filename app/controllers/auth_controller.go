package controllers

import (
	"errors"
	"net/http"

	"github.com/shashiranjanraj/storefront/internal/auth"
	"github.com/shashiranjanraj/storefront/internal/cart"
	"github.com/shashiranjanraj/storefront/pkg/bind"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/middleware"
	"github.com/shashiranjanraj/storefront/pkg/response"
)

type AuthController struct {
	svc   *auth.Service
	carts *cart.Manager
}

func NewAuthController(svc *auth.Service, carts *cart.Manager) *AuthController {
	return &AuthController{svc: svc, carts: carts}
}

// session resolves the full acting session for this request. The lookup is
// fail-closed: any resolution problem yields the anonymous session.
func (c *AuthController) session(r *http.Request) auth.Session {
	token, ok := middleware.TokenFromCtx(r)
	if !ok {
		return auth.Anonymous
	}
	return c.svc.CurrentSession(r.Context(), token)
}

type registerRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name"     validate:"required,min=2,max=100"`
}

func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if errs, err := bind.JSON(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	sess, token, err := c.svc.Register(r.Context(), body.Email, body.Password, body.Name)
	switch {
	case errors.Is(err, auth.ErrCredentialConflict):
		response.Error(w, http.StatusConflict, "An account with this email already exists")
		return
	case errors.Is(err, auth.ErrWeakCredential):
		response.ValidationError(w, map[string]string{"password": "Password is too short."})
		return
	case err != nil:
		logger.WithCtx(r.Context()).Error("register failed", "error", err)
		response.BadGateway(w, "Could not create account")
		return
	}

	response.Created(w, map[string]any{"token": token, "session": sess})
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if errs, err := bind.JSON(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	sess, token, err := c.svc.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		// A wrong password and an unknown email answer identically.
		response.Error(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	response.Success(w, map[string]any{"token": token, "session": sess})
}

// Logout revokes the presented token and discards the principal's cart.
// Logging out twice is fine; revocation is idempotent.
func (c *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.TokenFromCtx(r)
	if !ok {
		response.Success(w, map[string]any{"loggedOut": true})
		return
	}

	sess := c.session(r)
	if err := c.svc.Logout(r.Context(), token); err != nil {
		logger.WithCtx(r.Context()).Warn("logout revocation failed", "error", err)
	}
	if sess.Authenticated {
		c.carts.Drop(sess.PrincipalID)
	}

	response.Success(w, map[string]any{"loggedOut": true})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword always answers 200 so the endpoint cannot be used to probe
// which emails have accounts.
func (c *AuthController) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body forgotPasswordRequest
	if errs, err := bind.JSON(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	linkBase := "https://" + r.Host + "/reset-password"
	if err := c.svc.RequestPasswordReset(r.Context(), body.Email, linkBase); err != nil {
		logger.WithCtx(r.Context()).Error("password reset request failed", "error", err)
	}

	response.Success(w, map[string]any{"sent": true})
}

type resetPasswordRequest struct {
	Token    string `json:"token"    validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

func (c *AuthController) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetPasswordRequest
	if errs, err := bind.JSON(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := c.svc.ResetPassword(r.Context(), body.Token, body.Password); err != nil {
		if errors.Is(err, auth.ErrResetExpired) {
			response.Error(w, http.StatusGone, "Reset link has expired")
			return
		}
		response.Error(w, http.StatusBadRequest, "Invalid reset token")
		return
	}

	response.Success(w, map[string]any{"reset": true})
}

// Me returns the acting session, anonymous included. Clients use it to
// restore state after a reload without guessing at token validity.
func (c *AuthController) Me(w http.ResponseWriter, r *http.Request) {
	response.Success(w, c.session(r))
}

type profileRequest struct {
	Name    string `json:"name"    validate:"required,min=2,max=100"`
	Phone   string `json:"phone"   validate:"nullable,min=6,max=30"`
	Address string `json:"address" validate:"nullable,max=200"`
	City    string `json:"city"    validate:"nullable,max=100"`
}

func (c *AuthController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess := c.session(r)
	if !sess.Authenticated {
		response.Unauthorized(w)
		return
	}

	var body profileRequest
	if errs, err := bind.JSON(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	p := auth.Profile{Name: body.Name, Phone: body.Phone, Address: body.Address, City: body.City}
	if err := c.svc.UpdateProfile(r.Context(), sess.PrincipalID, p); err != nil {
		logger.WithCtx(r.Context()).Error("profile update failed", "error", err)
		response.BadGateway(w, "Could not save profile")
		return
	}

	response.Success(w, p)
}
