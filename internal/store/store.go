// Package store defines the backend-neutral document store contract.
// Two implementations exist: couchbase (N1QL + full-text search against a
// shared bucket) and couchdb (shared databases plus per-user databases with
// security documents). Callers depend only on the interfaces here.
package store

import (
	"context"
	"errors"

	"stockroom-server/internal/models"
)

var (
	// ErrNotFound is returned when a document id or username does not
	// exist. Reads of missing documents are not failures; callers turn
	// this into a 404.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when a create collides with an existing
	// document.
	ErrConflict = errors.New("document already exists")

	// ErrDurability is returned when a write could not satisfy the
	// configured replication acknowledgment within its timeout. The
	// write must be treated as failed.
	ErrDurability = errors.New("durability requirements not met")
)

// Page bounds a listing in stored order.
type Page struct {
	Skip  int
	Limit int
}

// DefaultLimit matches the historical API default for unbounded listings.
const DefaultLimit = 100

func (p Page) Normalize() Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	return p
}

// UserUpdate carries a partial user mutation; nil fields are left untouched.
// HashedPassword is already hashed by the auth layer.
type UserUpdate struct {
	HashedPassword *string
	Email          *string
	FullName       *string
	Roles          *[]models.Role
	AdminChannels  *[]string
	Disabled       *bool
}

// ItemUpdate carries a partial item mutation; nil fields are left untouched.
type ItemUpdate struct {
	Title       *string
	Description *string
}

type UserStore interface {
	// GetUser returns ErrNotFound for an unknown username.
	GetUser(ctx context.Context, username string) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) (*models.User, error)
	UpdateUser(ctx context.Context, username string, upd UserUpdate) (*models.User, error)
	ListUsers(ctx context.Context, p Page) ([]models.User, error)
	// SearchUsers runs a full-text query-string search over user
	// documents.
	SearchUsers(ctx context.Context, query string, p Page) ([]models.User, error)
	// ProvisionUser prepares backend-side resources for a new user, such
	// as the per-user database on CouchDB. It is a no-op on Couchbase.
	ProvisionUser(ctx context.Context, username string) error
}

type ItemStore interface {
	// GetItem returns ErrNotFound for an unknown id.
	GetItem(ctx context.Context, id string) (*models.Item, error)
	UpsertItem(ctx context.Context, item *models.Item) (*models.Item, error)
	UpdateItem(ctx context.Context, id string, upd ItemUpdate) (*models.Item, error)
	DeleteItem(ctx context.Context, id string) error
	ListItems(ctx context.Context, p Page) ([]models.Item, error)
	ListItemsByOwner(ctx context.Context, ownerUsername string, p Page) ([]models.Item, error)
	// SearchItems runs a full-text query-string search over item
	// documents. A non-empty ownerUsername restricts matches to that
	// owner.
	SearchItems(ctx context.Context, query, ownerUsername string, p Page) ([]models.Item, error)
}

// Store is the full backend surface handed to the services at startup.
type Store interface {
	UserStore
	ItemStore
	Ping(ctx context.Context) error
	Close() error
}
