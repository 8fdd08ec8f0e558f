package models

// ItemDocType tags item documents in the store.
const ItemDocType = "item"

type Item struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	OwnerUsername string `json:"owner_username"`
}
