package couchdb

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	kivik "github.com/go-kivik/kivik/v4"

	"stockroom-server/internal/models"
	"stockroom-server/internal/store"
)

// userDoc is the persisted shape of a user record. The roles array keeps the
// legacy "active" literal alongside the admin roles so that Sync-Gateway
// style ACLs keep working against these databases.
type userDoc struct {
	ID             string   `json:"_id"`
	Rev            string   `json:"_rev,omitempty"`
	Type           string   `json:"type"`
	Username       string   `json:"username"`
	Email          string   `json:"email,omitempty"`
	FullName       string   `json:"full_name,omitempty"`
	HashedPassword string   `json:"hashed_password"`
	Roles          []string `json:"roles"`
	AdminChannels  []string `json:"admin_channels"`
}

func userKey(username string) string {
	return docKey(models.UserDocType, username)
}

func encodeUser(u *models.User) userDoc {
	return userDoc{
		ID:             userKey(u.Username),
		Type:           models.UserDocType,
		Username:       u.Username,
		Email:          u.Email,
		FullName:       u.FullName,
		HashedPassword: u.HashedPassword,
		Roles:          models.EncodeRoles(u.Roles, !u.Disabled),
		AdminChannels:  u.AdminChannels,
	}
}

func decodeUser(doc userDoc) (*models.User, error) {
	roles, active, err := models.ParseRoles(doc.Roles)
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
		Disabled:       !active,
	}, nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*models.User, error) {
	var doc userDoc
	err := s.users.Get(ctx, userKey(username)).ScanDoc(&doc)
	if err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return decodeUser(doc)
}

func (s *Store) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	doc := encodeUser(user)
	err := putDoc(ctx, s.users, doc.ID, &doc, func(rev string) { doc.Rev = rev })
	if err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return nil, store.ErrConflict
		}
		return nil, err
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
	rows := s.users.Find(ctx, map[string]interface{}{
		"selector": map[string]interface{}{"type": models.UserDocType},
		"skip":     p.Skip,
		"limit":    p.Limit,
	})

	var users []models.User
	for rows.Next() {
		var doc userDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		user, err := decodeUser(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Store) SearchUsers(ctx context.Context, query string, p store.Page) ([]models.User, error) {
	p = p.Normalize()
	pattern := "(?i)" + regexp.QuoteMeta(query)
	rows := s.users.Find(ctx, map[string]interface{}{
		"selector": map[string]interface{}{
			"type": models.UserDocType,
			"$or": []map[string]interface{}{
				{"username": map[string]interface{}{"$regex": pattern}},
				{"email": map[string]interface{}{"$regex": pattern}},
				{"full_name": map[string]interface{}{"$regex": pattern}},
			},
		},
		"skip":  p.Skip,
		"limit": p.Limit,
	})

	var users []models.User
	for rows.Next() {
		var doc userDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		user, err := decodeUser(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// ProvisionUser creates the user's private database and grants access: the
// user becomes a member, the superuser role an admin. The security document
// update is read-merge-write; CouchDB offers no compare-and-swap for
// _security, so two concurrent grants can lose one write.
func (s *Store) ProvisionUser(ctx context.Context, username string) error {
	dbName := userDatabaseID(username)
	if err := ensureDB(ctx, s.client, dbName); err != nil {
		return err
	}

	db := s.client.DB(dbName)
	if err := addToSecurity(ctx, db, username, string(models.RoleSuperuser)); err != nil {
		return fmt.Errorf("secure database %s: %w", dbName, err)
	}

	if err := db.CreateIndex(ctx, "type", "type", map[string]interface{}{
		"fields": []string{"type"},
	}); err != nil {
		return fmt.Errorf("index database %s: %w", dbName, err)
	}
	return nil
}

func addToSecurity(ctx context.Context, db *kivik.DB, memberName, adminRole string) error {
	sec, err := db.Security(ctx)
	if err != nil {
		return err
	}
	if sec == nil {
		sec = &kivik.Security{}
	}

	changed := false
	if !containsString(sec.Members.Names, memberName) {
		sec.Members.Names = append(sec.Members.Names, memberName)
		changed = true
	}
	if !containsString(sec.Admins.Roles, adminRole) {
		sec.Admins.Roles = append(sec.Admins.Roles, adminRole)
		changed = true
	}
	if !changed {
		return nil
	}
	return db.SetSecurity(ctx, sec)
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
