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

// itemDoc is the persisted shape of an item record.
type itemDoc struct {
	ID            string `json:"_id"`
	Rev           string `json:"_rev,omitempty"`
	Type          string `json:"type"`
	ItemID        string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	OwnerUsername string `json:"owner_username"`
}

func itemKey(id string) string {
	return docKey(models.ItemDocType, id)
}

func encodeItem(item *models.Item) itemDoc {
	return itemDoc{
		ID:            itemKey(item.ID),
		Type:          models.ItemDocType,
		ItemID:        item.ID,
		Title:         item.Title,
		Description:   item.Description,
		OwnerUsername: item.OwnerUsername,
	}
}

func decodeItem(doc itemDoc) models.Item {
	return models.Item{
		ID:            doc.ItemID,
		Title:         doc.Title,
		Description:   doc.Description,
		OwnerUsername: doc.OwnerUsername,
	}
}

func (s *Store) GetItem(ctx context.Context, id string) (*models.Item, error) {
	var doc itemDoc
	err := s.app.Get(ctx, itemKey(id)).ScanDoc(&doc)
	if err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	item := decodeItem(doc)
	return &item, nil
}

func (s *Store) UpsertItem(ctx context.Context, item *models.Item) (*models.Item, error) {
	doc := encodeItem(item)
	err := putDoc(ctx, s.app, doc.ID, &doc, func(rev string) { doc.Rev = rev })
	if err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return s.GetItem(ctx, item.ID)
}

func (s *Store) UpdateItem(ctx context.Context, id string, upd store.ItemUpdate) (*models.Item, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Title != nil {
		item.Title = *upd.Title
	}
	if upd.Description != nil {
		item.Description = *upd.Description
	}

	return s.UpsertItem(ctx, item)
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	key := itemKey(id)
	rev, err := s.app.GetRev(ctx, key)
	if err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return store.ErrNotFound
		}
		return fmt.Errorf("fetch revision of %s: %w", key, err)
	}

	if _, err := s.app.Delete(ctx, key, rev); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context, p store.Page) ([]models.Item, error) {
	return s.findItems(ctx, map[string]interface{}{"type": models.ItemDocType}, p)
}

func (s *Store) ListItemsByOwner(ctx context.Context, ownerUsername string, p store.Page) ([]models.Item, error) {
	return s.findItems(ctx, map[string]interface{}{
		"type":           models.ItemDocType,
		"owner_username": ownerUsername,
	}, p)
}

func (s *Store) SearchItems(ctx context.Context, query, ownerUsername string, p store.Page) ([]models.Item, error) {
	pattern := "(?i)" + regexp.QuoteMeta(query)
	selector := map[string]interface{}{
		"type": models.ItemDocType,
		"$or": []map[string]interface{}{
			{"title": map[string]interface{}{"$regex": pattern}},
			{"description": map[string]interface{}{"$regex": pattern}},
		},
	}
	if ownerUsername != "" {
		selector["owner_username"] = ownerUsername
	}
	return s.findItems(ctx, selector, p)
}

func (s *Store) findItems(ctx context.Context, selector map[string]interface{}, p store.Page) ([]models.Item, error) {
	p = p.Normalize()
	rows := s.app.Find(ctx, map[string]interface{}{
		"selector": selector,
		"skip":     p.Skip,
		"limit":    p.Limit,
	})

	var items []models.Item
	for rows.Next() {
		var doc itemDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, decodeItem(doc))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	return items, nil
}
