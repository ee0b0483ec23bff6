package model

import (
	"encoding/json"
	"time"
)

type ContactList struct {
	ID       int64
	TenantID int64
	Name     string

	// SavedFilter holds the persisted filter spec as-is. Nil means the list is
	// curated by hand and never touched by the scheduled sync.
	SavedFilter json.RawMessage
}

func (l ContactList) HasSavedFilter() bool {
	return len(l.SavedFilter) > 0 && string(l.SavedFilter) != "null"
}

type ContactListItem struct {
	ID              int64     `json:"id"`
	ContactListID   int64     `json:"contactListId"`
	TenantID        int64     `json:"companyId"`
	Name            string    `json:"name"`
	Number          string    `json:"number"`
	Email           string    `json:"email"`
	IsWhatsappValid bool      `json:"isWhatsappValid"`
	CreatedAt       time.Time `json:"createdAt"`
}

type ItemPage struct {
	Items   []ContactListItem `json:"contacts"`
	Count   int               `json:"count"`
	HasMore bool              `json:"hasMore"`
}

// SyncResult is what both the additive and the rebuild paths report back.
type SyncResult struct {
	Added      int `json:"added"`
	Duplicated int `json:"duplicated"`
	Errors     int `json:"errors"`
}
