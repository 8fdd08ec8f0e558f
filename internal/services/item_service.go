package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"stockroom-server/internal/models"
	"stockroom-server/internal/store"
	"stockroom-server/internal/utils"
)

type ItemService struct {
	items store.ItemStore
}

type ItemCreateInput struct {
	Title       string
	Description string
}

// ItemUpdateInput is a partial update; nil fields are left untouched.
type ItemUpdateInput struct {
	Title       *string
	Description *string
}

func NewItemService(items store.ItemStore) *ItemService {
	return &ItemService{items: items}
}

// Create stores a new item owned by the current user under a generated id.
func (s *ItemService) Create(ctx context.Context, current *models.User, in ItemCreateInput) (*models.Item, error) {
	item := &models.Item{
		ID:            uuid.NewString(),
		Title:         in.Title,
		Description:   in.Description,
		OwnerUsername: current.Username,
	}

	item, err := s.items.UpsertItem(ctx, item)
	if err != nil {
		return nil, storeWriteError("could not create item", err)
	}
	return item, nil
}

// Get loads an item; access requires ownership or the superuser role.
func (s *ItemService) Get(ctx context.Context, current *models.User, id string) (*models.Item, error) {
	return s.getOwned(ctx, current, id)
}

func (s *ItemService) Update(ctx context.Context, current *models.User, id string, in ItemUpdateInput) (*models.Item, error) {
	if _, err := s.getOwned(ctx, current, id); err != nil {
		return nil, err
	}

	item, err := s.items.UpdateItem(ctx, id, store.ItemUpdate{
		Title:       in.Title,
		Description: in.Description,
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, utils.NewNotFound("Item not found")
	}
	if err != nil {
		return nil, storeWriteError("could not update item", err)
	}
	return item, nil
}

// Delete removes an item and returns the record as it was stored.
func (s *ItemService) Delete(ctx context.Context, current *models.User, id string) (*models.Item, error) {
	item, err := s.getOwned(ctx, current, id)
	if err != nil {
		return nil, err
	}

	if err := s.items.DeleteItem(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, utils.NewNotFound("Item not found")
		}
		return nil, storeWriteError("could not delete item", err)
	}
	return item, nil
}

// List returns all items for a superuser and the owned subset otherwise.
func (s *ItemService) List(ctx context.Context, current *models.User, p store.Page) ([]models.Item, error) {
	var (
		items []models.Item
		err   error
	)
	if current.IsSuperuser() {
		items, err = s.items.ListItems(ctx, p)
	} else {
		items, err = s.items.ListItemsByOwner(ctx, current.Username, p)
	}
	if err != nil {
		return nil, utils.NewAppError(http.StatusInternalServerError, utils.CodeInternal, "could not list items", nil)
	}
	return items, nil
}

// Search runs a full-text query; non-superusers only see their own items.
func (s *ItemService) Search(ctx context.Context, current *models.User, query string, p store.Page) ([]models.Item, error) {
	owner := ""
	if !current.IsSuperuser() {
		owner = current.Username
	}

	items, err := s.items.SearchItems(ctx, query, owner, p)
	if err != nil {
		return nil, utils.NewAppError(http.StatusInternalServerError, utils.CodeInternal, "could not search items", nil)
	}
	return items, nil
}

func (s *ItemService) getOwned(ctx context.Context, current *models.User, id string) (*models.Item, error) {
	item, err := s.items.GetItem(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, utils.NewNotFound("Item not found")
	}
	if err != nil {
		return nil, utils.NewAppError(http.StatusInternalServerError, utils.CodeInternal, "could not load item", nil)
	}

	if !current.IsSuperuser() && item.OwnerUsername != current.Username {
		return nil, utils.NewPermissionDenied("Not enough permissions")
	}
	return item, nil
}
