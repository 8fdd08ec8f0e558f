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

// itemDoc is the persisted shape of an item record.
type itemDoc struct {
	Type          string `json:"type"`
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	OwnerUsername string `json:"owner_username"`
}

func itemKey(id string) string {
	return docKey(models.ItemDocType, id)
}

func encodeItem(item *models.Item) itemDoc {
	return itemDoc{
		Type:          models.ItemDocType,
		ID:            item.ID,
		Title:         item.Title,
		Description:   item.Description,
		OwnerUsername: item.OwnerUsername,
	}
}

func decodeItem(doc itemDoc) models.Item {
	return models.Item{
		ID:            doc.ID,
		Title:         doc.Title,
		Description:   doc.Description,
		OwnerUsername: doc.OwnerUsername,
	}
}

func (s *Store) GetItem(ctx context.Context, id string) (*models.Item, error) {
	res, err := s.col.Get(itemKey(id), &gocb.GetOptions{
		Context: ctx,
		Timeout: s.timeout,
	})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	var doc itemDoc
	if err := res.Content(&doc); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	item := decodeItem(doc)
	return &item, nil
}

func (s *Store) UpsertItem(ctx context.Context, item *models.Item) (*models.Item, error) {
	doc := encodeItem(item)
	_, err := s.col.Upsert(itemKey(item.ID), doc, &gocb.UpsertOptions{
		Context:   ctx,
		Timeout:   s.timeout,
		PersistTo: s.persistTo,
	})
	if err != nil {
		return nil, writeErr("upsert item", err)
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
	_, err := s.col.Remove(itemKey(id), &gocb.RemoveOptions{
		Context:   ctx,
		Timeout:   s.timeout,
		PersistTo: s.persistTo,
	})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return store.ErrNotFound
		}
		return writeErr("remove item", err)
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context, p store.Page) ([]models.Item, error) {
	p = p.Normalize()
	var items []models.Item
	err := s.listByType(ctx, models.ItemDocType, p.Skip, p.Limit, func(row func(valuePtr interface{}) error) error {
		var doc itemDoc
		if err := row(&doc); err != nil {
			return err
		}
		items = append(items, decodeItem(doc))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListItemsByOwner(ctx context.Context, ownerUsername string, p store.Page) ([]models.Item, error) {
	p = p.Normalize()
	statement := fmt.Sprintf(
		"SELECT b.* FROM `%s` AS b WHERE b.type = $type AND b.owner_username = $owner_username ORDER BY META(b).id LIMIT $limit OFFSET $skip",
		s.bucketName,
	)
	result, err := s.cluster.Query(statement, &gocb.QueryOptions{
		Context: ctx,
		NamedParameters: map[string]interface{}{
			"type":           models.ItemDocType,
			"owner_username": ownerUsername,
			"limit":          p.Limit,
			"skip":           p.Skip,
		},
		ScanConsistency: gocb.QueryScanConsistencyRequestPlus,
		Timeout:         s.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("list items by owner: %w", err)
	}

	var items []models.Item
	for result.Next() {
		var doc itemDoc
		if err := result.Row(&doc); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, decodeItem(doc))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("iterate item rows: %w", err)
	}
	return items, nil
}

func (s *Store) SearchItems(ctx context.Context, query, ownerUsername string, p store.Page) ([]models.Item, error) {
	p = p.Normalize()
	if ownerUsername != "" {
		// Scope the query-string search to the owner unless the caller
		// already added the filter.
		filter := "owner_username:" + ownerUsername
		if !strings.Contains(query, filter) {
			query = strings.TrimSpace(query + " " + filter)
		}
	}

	keys, err := s.searchKeys(ctx, s.itemIndex, query, p.Skip, p.Limit)
	if err != nil {
		return nil, err
	}

	items := make([]models.Item, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, models.ItemDocType+"::")
		item, err := s.GetItem(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			// The index can briefly lag behind a delete.
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}
