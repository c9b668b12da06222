package controllers

import (
	"net/http"
	"time"

	"greenexchange/middleware"
	"greenexchange/services"

	"go.uber.org/zap"
)

// CookieOptions configures the session cookie.
type CookieOptions struct {
	Name   string
	Secure bool
}

// UserController handles signup, login, logout and the profile page
type UserController struct {
	base
	auth   *services.AuthService
	trees  *services.TreeService
	cookie CookieOptions
}

// NewUserController creates a new UserController
func NewUserController(auth *services.AuthService, trees *services.TreeService, renderer Renderer, logger *zap.Logger, cookie CookieOptions, timeout time.Duration) *UserController {
	return &UserController{
		base:   base{renderer: renderer, logger: logger, timeout: timeout},
		auth:   auth,
		trees:  trees,
		cookie: cookie,
	}
}

// SignupForm renders the registration page
func (uc *UserController) SignupForm(w http.ResponseWriter, r *http.Request) {
	uc.render(w, r, "auth/signup", nil)
}

// Signup handles user registration
func (uc *UserController) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}

	ctx, cancel := uc.dbContext(r)
	defer cancel()
	if _, err := uc.auth.Signup(ctx, parseSignupForm(r)); err != nil {
		uc.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// LoginForm renders the login page
func (uc *UserController) LoginForm(w http.ResponseWriter, r *http.Request) {
	uc.render(w, r, "auth/login", nil)
}

// Login checks credentials and sets the session cookie
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}

	ctx, cancel := uc.dbContext(r)
	defer cancel()
	result, err := uc.auth.Login(ctx, parseLoginForm(r))
	if err != nil {
		uc.fail(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     uc.cookie.Name,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.Session.ExpiresAt,
		MaxAge:   int(time.Until(result.Session.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   uc.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout destroys the session, whether or not one exists
func (uc *UserController) Logout(w http.ResponseWriter, r *http.Request) {
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		ctx, cancel := uc.dbContext(r)
		defer cancel()
		if err := uc.auth.Logout(ctx, identity.SessionID); err != nil {
			uc.logger.Error("logout failed", zap.String("session_id", identity.SessionID), zap.Error(err))
		}
	}
	http.SetCookie(w, middleware.ExpiredCookie(uc.cookie.Name))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Profile shows the caller's planted trees and certificates
func (uc *UserController) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	ctx, cancel := uc.dbContext(r)
	defer cancel()
	profile, err := uc.trees.Profile(ctx, userID)
	if err != nil {
		uc.fail(w, r, err)
		return
	}
	uc.render(w, r, "profile", profile)
}
