package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"greenexchange/middleware"
	"greenexchange/services"
	"greenexchange/views"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Renderer renders a named HTML page.
type Renderer interface {
	Render(w http.ResponseWriter, status int, name string, page views.Page) error
}

// base carries what every controller needs.
type base struct {
	renderer Renderer
	logger   *zap.Logger
	timeout  time.Duration
}

func (b *base) dbContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), b.timeout)
}

func (b *base) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	page := views.Page{Data: data}
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		page.CurrentUser = identity.Name
	}
	if err := b.renderer.Render(w, http.StatusOK, name, page); err != nil {
		b.logger.Error("render failed", zap.String("page", name), zap.Error(err))
		http.Error(w, "Something went wrong, please try again", http.StatusInternalServerError)
	}
}

// fail maps a service error to a plain-text response.
func (b *base) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "Something went wrong, please try again"
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrDuplicateEmail):
		status, msg = http.StatusConflict, "Email already registered"
	case errors.Is(err, services.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, services.ErrNotFound):
		status, msg = http.StatusNotFound, "Tree not found"
	case errors.Is(err, services.ErrNotPurchasable):
		status, msg = http.StatusConflict, "Cannot buy this tree"
	case errors.Is(err, services.ErrNotResellable):
		status, msg = http.StatusConflict, "Cannot resell this tree"
	case errors.Is(err, services.ErrNotVerifiable):
		status, msg = http.StatusConflict, "Tree is not pending verification"
	case errors.Is(err, services.ErrUnauthenticated):
		status, msg = http.StatusUnauthorized, "Please log in first"
	}

	if status >= http.StatusInternalServerError {
		b.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	} else {
		b.logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	}
	http.Error(w, msg, status)
}

// treeID parses the {id} route variable.
func treeID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid tree ID", http.StatusBadRequest)
		return primitive.NilObjectID, false
	}
	return id, true
}

// callerID returns the caller; routes using it are wrapped in RequireSession.
func callerID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Please log in first", http.StatusUnauthorized)
		return primitive.NilObjectID, false
	}
	return id.UserID, true
}
