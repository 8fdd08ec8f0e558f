package services

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"stockroom-server/internal/models"
	"stockroom-server/internal/store"
	"stockroom-server/internal/store/memory"
	"stockroom-server/internal/utils"
)

// flakyItemStore fails item writes the way a real backend does, with the
// sentinel wrapped in operation context.
type flakyItemStore struct {
	*memory.Store
	writeErr error
}

func (s *flakyItemStore) UpsertItem(ctx context.Context, item *models.Item) (*models.Item, error) {
	if s.writeErr != nil {
		return nil, fmt.Errorf("upsert item: %w", s.writeErr)
	}
	return s.Store.UpsertItem(ctx, item)
}

func (s *flakyItemStore) DeleteItem(ctx context.Context, id string) error {
	if s.writeErr != nil {
		return fmt.Errorf("remove item: %w", s.writeErr)
	}
	return s.Store.DeleteItem(ctx, id)
}

var (
	itemOwner = &models.User{Username: "alice"}
	otherUser = &models.User{Username: "bob"}
	superUser = &models.User{Username: "root", Roles: []models.Role{models.RoleSuperuser}}
)

func newItemService(t *testing.T) *ItemService {
	t.Helper()
	return NewItemService(memory.New())
}

func mustCreateItem(t *testing.T, s *ItemService, owner *models.User, title string) *models.Item {
	t.Helper()
	item, err := s.Create(context.Background(), owner, ItemCreateInput{Title: title})
	if err != nil {
		t.Fatalf("Create(%s) error: %v", title, err)
	}
	return item
}

func TestItemCreateAssignsOwner(t *testing.T) {
	s := newItemService(t)

	item := mustCreateItem(t, s, itemOwner, "first")
	if item.ID == "" {
		t.Fatal("created item has no id")
	}
	if item.OwnerUsername != "alice" {
		t.Fatalf("owner not set: %+v", item)
	}

	got, err := s.Get(context.Background(), itemOwner, item.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Title != "first" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestItemGetNotFound(t *testing.T) {
	s := newItemService(t)

	_, err := s.Get(context.Background(), itemOwner, "missing")
	ae := appErr(t, err)
	if ae.Status != http.StatusNotFound || ae.Message != "Item not found" {
		t.Fatalf("unexpected error: %+v", ae)
	}
}

func TestItemOwnershipEnforced(t *testing.T) {
	s := newItemService(t)
	item := mustCreateItem(t, s, itemOwner, "private")

	_, err := s.Get(context.Background(), otherUser, item.ID)
	ae := appErr(t, err)
	if ae.Status != http.StatusBadRequest || ae.Message != "Not enough permissions" {
		t.Fatalf("unexpected error: %+v", ae)
	}

	title := "hijacked"
	if _, err := s.Update(context.Background(), otherUser, item.ID, ItemUpdateInput{Title: &title}); err == nil {
		t.Fatal("non-owner update should be rejected")
	}
	if _, err := s.Delete(context.Background(), otherUser, item.ID); err == nil {
		t.Fatal("non-owner delete should be rejected")
	}

	// The record is untouched after the rejected writes.
	got, err := s.Get(context.Background(), itemOwner, item.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Title != "private" {
		t.Fatalf("item was modified: %+v", got)
	}
}

func TestItemSuperuserBypassesOwnership(t *testing.T) {
	s := newItemService(t)
	item := mustCreateItem(t, s, itemOwner, "shared")

	if _, err := s.Get(context.Background(), superUser, item.ID); err != nil {
		t.Fatalf("superuser Get error: %v", err)
	}

	title := "renamed"
	updated, err := s.Update(context.Background(), superUser, item.ID, ItemUpdateInput{Title: &title})
	if err != nil {
		t.Fatalf("superuser Update error: %v", err)
	}
	if updated.Title != "renamed" || updated.OwnerUsername != "alice" {
		t.Fatalf("update changed ownership: %+v", updated)
	}
}

func TestItemUpdatePartial(t *testing.T) {
	s := newItemService(t)
	item, err := s.Create(context.Background(), itemOwner, ItemCreateInput{Title: "title", Description: "desc"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	desc := "updated desc"
	updated, err := s.Update(context.Background(), itemOwner, item.ID, ItemUpdateInput{Description: &desc})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.Title != "title" || updated.Description != "updated desc" {
		t.Fatalf("partial update wrong: %+v", updated)
	}
}

func TestItemDeleteReturnsRecord(t *testing.T) {
	s := newItemService(t)
	item := mustCreateItem(t, s, itemOwner, "doomed")

	deleted, err := s.Delete(context.Background(), itemOwner, item.ID)
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if deleted.Title != "doomed" {
		t.Fatalf("unexpected deleted record: %+v", deleted)
	}

	if _, err := s.Get(context.Background(), itemOwner, item.ID); err == nil {
		t.Fatal("deleted item should be gone")
	}
}

func TestItemCreateDurabilityFailure(t *testing.T) {
	st := &flakyItemStore{Store: memory.New(), writeErr: store.ErrDurability}
	s := NewItemService(st)

	_, err := s.Create(context.Background(), itemOwner, ItemCreateInput{Title: "doomed"})
	ae := appErr(t, err)
	if ae.Status != http.StatusBadGateway || ae.Code != utils.CodeUpstream {
		t.Fatalf("unexpected error: %+v", ae)
	}
}

func TestItemDeleteDurabilityFailure(t *testing.T) {
	st := &flakyItemStore{Store: memory.New()}
	s := NewItemService(st)
	item := mustCreateItem(t, s, itemOwner, "sticky")

	st.writeErr = store.ErrDurability
	_, err := s.Delete(context.Background(), itemOwner, item.ID)
	ae := appErr(t, err)
	if ae.Status != http.StatusBadGateway || ae.Code != utils.CodeUpstream {
		t.Fatalf("unexpected error: %+v", ae)
	}
}

func TestItemListScopedByRole(t *testing.T) {
	s := newItemService(t)
	mustCreateItem(t, s, itemOwner, "a1")
	mustCreateItem(t, s, itemOwner, "a2")
	mustCreateItem(t, s, otherUser, "b1")

	mine, err := s.List(context.Background(), itemOwner, store.Page{})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("owner should see 2 items, got %d", len(mine))
	}
	for _, item := range mine {
		if item.OwnerUsername != "alice" {
			t.Fatalf("foreign item leaked: %+v", item)
		}
	}

	all, err := s.List(context.Background(), superUser, store.Page{})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("superuser should see 3 items, got %d", len(all))
	}
}

func TestItemListPagination(t *testing.T) {
	s := newItemService(t)
	for _, title := range []string{"p1", "p2", "p3"} {
		mustCreateItem(t, s, itemOwner, title)
	}

	page, err := s.List(context.Background(), itemOwner, store.Page{Skip: 1, Limit: 1})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(page) != 1 || page[0].Title != "p2" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestItemSearchScopedByRole(t *testing.T) {
	s := newItemService(t)
	mustCreateItem(t, s, itemOwner, "red bicycle")
	mustCreateItem(t, s, otherUser, "red wagon")

	mine, err := s.Search(context.Background(), itemOwner, "red", store.Page{})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(mine) != 1 || mine[0].OwnerUsername != "alice" {
		t.Fatalf("search leaked foreign items: %+v", mine)
	}

	all, err := s.Search(context.Background(), superUser, "red", store.Page{})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("superuser search should match 2, got %d", len(all))
	}
}
