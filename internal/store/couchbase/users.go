package couchbase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/couchbase/gocb/v2"

	"stockroom-server/internal/models"
	"stockroom-server/internal/store"
)

// userDoc is the persisted shape of a user record.
type userDoc struct {
	Type           string   `json:"type"`
	Username       string   `json:"username"`
	Email          string   `json:"email,omitempty"`
	FullName       string   `json:"full_name,omitempty"`
	HashedPassword string   `json:"hashed_password"`
	AdminRoles     []string `json:"admin_roles"`
	AdminChannels  []string `json:"admin_channels"`
	Disabled       bool     `json:"disabled"`
}

func userKey(username string) string {
	return docKey(models.UserDocType, username)
}

func encodeUser(u *models.User) userDoc {
	return userDoc{
		Type:           models.UserDocType,
		Username:       u.Username,
		Email:          u.Email,
		FullName:       u.FullName,
		HashedPassword: u.HashedPassword,
		AdminRoles:     models.EncodeRoles(u.Roles, false),
		AdminChannels:  u.AdminChannels,
		Disabled:       u.Disabled,
	}
}

func decodeUser(doc userDoc) (*models.User, error) {
	roles, _, err := models.ParseRoles(doc.AdminRoles)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", doc.Username, err)
	}
	return &models.User{
		Username:       doc.Username,
		Email:          doc.Email,
		FullName:       doc.FullName,
		HashedPassword: doc.HashedPassword,
		Roles:          roles,
		AdminChannels:  doc.AdminChannels,
		Disabled:       doc.Disabled,
	}, nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*models.User, error) {
	res, err := s.col.Get(userKey(username), &gocb.GetOptions{
		Context: ctx,
		Timeout: s.timeout,
	})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	var doc userDoc
	if err := res.Content(&doc); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return decodeUser(doc)
}

func (s *Store) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	doc := encodeUser(user)
	_, err := s.col.Upsert(userKey(user.Username), doc, &gocb.UpsertOptions{
		Context:   ctx,
		Timeout:   s.timeout,
		PersistTo: s.persistTo,
	})
	if err != nil {
		return nil, writeErr("upsert user", err)
	}
	return s.GetUser(ctx, user.Username)
}

func (s *Store) UpdateUser(ctx context.Context, username string, upd store.UserUpdate) (*models.User, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}

	if upd.HashedPassword != nil {
		user.HashedPassword = *upd.HashedPassword
	}
	if upd.Email != nil {
		user.Email = *upd.Email
	}
	if upd.FullName != nil {
		user.FullName = *upd.FullName
	}
	if upd.Roles != nil {
		user.Roles = *upd.Roles
	}
	if upd.AdminChannels != nil {
		user.AdminChannels = *upd.AdminChannels
	}
	if upd.Disabled != nil {
		user.Disabled = *upd.Disabled
	}

	return s.UpsertUser(ctx, user)
}

func (s *Store) ListUsers(ctx context.Context, p store.Page) ([]models.User, error) {
	p = p.Normalize()
	var users []models.User
	err := s.listByType(ctx, models.UserDocType, p.Skip, p.Limit, func(row func(valuePtr interface{}) error) error {
		var doc userDoc
		if err := row(&doc); err != nil {
			return err
		}
		user, err := decodeUser(doc)
		if err != nil {
			return err
		}
		users = append(users, *user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) SearchUsers(ctx context.Context, query string, p store.Page) ([]models.User, error) {
	p = p.Normalize()
	keys, err := s.searchKeys(ctx, s.userIndex, query, p.Skip, p.Limit)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(keys))
	for _, key := range keys {
		username := strings.TrimPrefix(key, models.UserDocType+"::")
		user, err := s.GetUser(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			// The index can briefly lag behind a delete.
			continue
		}
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, nil
}

// ProvisionUser is a no-op: all documents share one bucket and access is
// enforced by the application, not per-user databases.
func (s *Store) ProvisionUser(ctx context.Context, username string) error {
	return nil
}
