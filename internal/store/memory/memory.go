// Package memory is an in-memory store used by service and handler tests.
// It mimics the pagination and search behavior of the real backends closely
// enough to exercise the code above the store contract.
package memory

import (
	"context"
	"strings"
	"sync"

	"stockroom-server/internal/models"
	"stockroom-server/internal/store"
)

type Store struct {
	mu          sync.Mutex
	users       map[string]models.User
	items       map[string]models.Item
	userOrder   []string
	itemOrder   []string
	provisioned []string
}

func New() *Store {
	return &Store{
		users: make(map[string]models.User),
		items: make(map[string]models.Item),
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close() error                   { return nil }

// Provisioned returns the usernames ProvisionUser was called with, in order.
func (s *Store) Provisioned() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.provisioned...)
}

func (s *Store) GetUser(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(user), nil
}

func (s *Store) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; !ok {
		s.userOrder = append(s.userOrder, user.Username)
	}
	s.users[user.Username] = *cloneUser(*user)
	stored := s.users[user.Username]
	return cloneUser(stored), nil
}

func (s *Store) UpdateUser(ctx context.Context, username string, upd store.UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
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
		user.Roles = append([]models.Role(nil), (*upd.Roles)...)
	}
	if upd.AdminChannels != nil {
		user.AdminChannels = append([]string(nil), (*upd.AdminChannels)...)
	}
	if upd.Disabled != nil {
		user.Disabled = *upd.Disabled
	}

	s.users[username] = user
	return cloneUser(user), nil
}

func (s *Store) ListUsers(ctx context.Context, p store.Page) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = p.Normalize()

	var users []models.User
	for _, username := range pageSlice(s.userOrder, p) {
		users = append(users, *cloneUser(s.users[username]))
	}
	return users, nil
}

func (s *Store) SearchUsers(ctx context.Context, query string, p store.Page) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = p.Normalize()

	var matched []models.User
	needle := strings.ToLower(query)
	for _, username := range s.userOrder {
		user := s.users[username]
		haystack := strings.ToLower(user.Username + " " + user.Email + " " + user.FullName)
		if strings.Contains(haystack, needle) {
			matched = append(matched, *cloneUser(user))
		}
	}
	return pageUsers(matched, p), nil
}

func (s *Store) ProvisionUser(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provisioned = append(s.provisioned, username)
	return nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) UpsertItem(ctx context.Context, item *models.Item) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		s.itemOrder = append(s.itemOrder, item.ID)
	}
	s.items[item.ID] = *item
	stored := s.items[item.ID]
	return &stored, nil
}

func (s *Store) UpdateItem(ctx context.Context, id string, upd store.ItemUpdate) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	if upd.Title != nil {
		item.Title = *upd.Title
	}
	if upd.Description != nil {
		item.Description = *upd.Description
	}

	s.items[id] = item
	return &item, nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.items, id)
	for i, stored := range s.itemOrder {
		if stored == id {
			s.itemOrder = append(s.itemOrder[:i], s.itemOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context, p store.Page) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = p.Normalize()

	var items []models.Item
	for _, id := range pageSlice(s.itemOrder, p) {
		items = append(items, s.items[id])
	}
	return items, nil
}

func (s *Store) ListItemsByOwner(ctx context.Context, ownerUsername string, p store.Page) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = p.Normalize()

	var matched []models.Item
	for _, id := range s.itemOrder {
		if s.items[id].OwnerUsername == ownerUsername {
			matched = append(matched, s.items[id])
		}
	}
	return pageItems(matched, p), nil
}

func (s *Store) SearchItems(ctx context.Context, query, ownerUsername string, p store.Page) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = p.Normalize()

	needle := strings.ToLower(query)
	var matched []models.Item
	for _, id := range s.itemOrder {
		item := s.items[id]
		if ownerUsername != "" && item.OwnerUsername != ownerUsername {
			continue
		}
		haystack := strings.ToLower(item.Title + " " + item.Description)
		if strings.Contains(haystack, needle) {
			matched = append(matched, item)
		}
	}
	return pageItems(matched, p), nil
}

func cloneUser(u models.User) *models.User {
	out := u
	out.Roles = append([]models.Role(nil), u.Roles...)
	out.AdminChannels = append([]string(nil), u.AdminChannels...)
	return &out
}

func pageSlice(ids []string, p store.Page) []string {
	if p.Skip >= len(ids) {
		return nil
	}
	end := p.Skip + p.Limit
	if end > len(ids) {
		end = len(ids)
	}
	return ids[p.Skip:end]
}

func pageUsers(users []models.User, p store.Page) []models.User {
	if p.Skip >= len(users) {
		return nil
	}
	end := p.Skip + p.Limit
	if end > len(users) {
		end = len(users)
	}
	return users[p.Skip:end]
}

func pageItems(items []models.Item, p store.Page) []models.Item {
	if p.Skip >= len(items) {
		return nil
	}
	end := p.Skip + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[p.Skip:end]
}
