// Package store persists users, trees and sessions. Two implementations
// exist: MongoStore for production and MemoryStore for tests and local runs.
package store

import (
	"context"
	"errors"

	"greenexchange/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when no document matches the lookup.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrConflict is returned when a conditional update matched nothing.
	ErrConflict = errors.New("store: conflicting update")
)

// UserStore persists User documents.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// AppendTree pushes treeID onto the user's planted trees.
	AppendTree(ctx context.Context, userID, treeID primitive.ObjectID) error
	// AddCertificate adds treeID to the user's certificates if absent.
	AddCertificate(ctx context.Context, userID, treeID primitive.ObjectID) error
	// RemoveCertificate pulls every occurrence of treeID from the certificates.
	RemoveCertificate(ctx context.Context, userID, treeID primitive.ObjectID) error
	// ClearTreeRefs empties every user's trees and certificates. Pairs with
	// TreeStore.DeleteAll.
	ClearTreeRefs(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

// TreeStore persists Tree documents.
type TreeStore interface {
	Create(ctx context.Context, tree *models.Tree) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Tree, error)
	// FindMany returns the trees whose ids are in ids, in the order of ids.
	// Unknown ids are skipped.
	FindMany(ctx context.Context, ids []primitive.ObjectID) ([]models.Tree, error)
	List(ctx context.Context) ([]models.Tree, error)
	// Transition applies change only if the stored status equals change.From,
	// returning ErrConflict otherwise and ErrNotFound for unknown ids.
	Transition(ctx context.Context, id primitive.ObjectID, change models.StatusChange) error
	CountByStatus(ctx context.Context, status models.TreeStatus) (int64, error)
	Count(ctx context.Context) (int64, error)
	// DeleteAll removes every tree. Used by the seed command.
	DeleteAll(ctx context.Context) (int64, error)
}

// SessionStore persists login sessions.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	Find(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// Store groups the record stores with a transactional boundary.
type Store interface {
	Users() UserStore
	Trees() TreeStore
	Sessions() SessionStore
	// WithTransaction runs fn so that either all of its writes are applied or
	// none are. fn must use the ctx it is given.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
