package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/LeventeLantos/listsync/internal/filter"
	"github.com/LeventeLantos/listsync/internal/model"
	"github.com/LeventeLantos/listsync/internal/repo"
)

// memStore is an in-memory repo.Store. WithinTx snapshots the item table and
// restores it when fn fails.
type memStore struct {
	mu sync.Mutex

	contacts []model.Contact
	tags     []model.ContactTag
	lists    map[int64]model.ContactList
	items    []model.ContactListItem
	nextID   int64

	failInsert   func(item *model.ContactListItem) error
	failMembers  error
	failMark     error
	failTags     error
	failLists    error
	failGetList  map[int64]error
	findCalls    int
	membersCalls int
}

var _ repo.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{lists: make(map[int64]model.ContactList)}
}

func (s *memStore) addList(l model.ContactList) {
	s.lists[l.ID] = l
}

func (s *memStore) seedItems(listID, tenantID int64, n int) {
	for i := 0; i < n; i++ {
		s.nextID++
		s.items = append(s.items, model.ContactListItem{
			ID:            s.nextID,
			ContactListID: listID,
			TenantID:      tenantID,
			Name:          "stale",
			Number:        "999000" + string(rune('0'+i)),
		})
	}
}

func (s *memStore) itemsOf(listID int64) []model.ContactListItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ContactListItem
	for _, it := range s.items {
		if it.ContactListID == listID {
			out = append(out, it)
		}
	}
	return out
}

func (s *memStore) FindContacts(_ context.Context, tenantID int64, q filter.Query) ([]model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if _, unresolved := q.Tags(); unresolved {
		return nil, errors.New("tag predicate must be resolved")
	}
	var out []model.Contact
	for _, c := range s.contacts {
		c := c
		if c.TenantID == tenantID && q.Match(&c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ContactTags(_ context.Context, tenantID int64, tagIDs []int64) ([]model.ContactTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTags != nil {
		return nil, s.failTags
	}
	want := make(map[int64]bool, len(tagIDs))
	for _, id := range tagIDs {
		want[id] = true
	}
	var out []model.ContactTag
	for _, row := range s.tags {
		if want[row.TagID] {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *memStore) GetList(_ context.Context, tenantID, listID int64) (model.ContactList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failGetList[listID]; err != nil {
		return model.ContactList{}, err
	}
	l, ok := s.lists[listID]
	if !ok || l.TenantID != tenantID {
		return model.ContactList{}, model.ErrNotFound
	}
	return l, nil
}

func (s *memStore) ListsWithSavedFilter(context.Context) ([]model.ContactList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLists != nil {
		return nil, s.failLists
	}
	var out []model.ContactList
	for _, l := range s.lists {
		if l.HasSavedFilter() {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) SetSavedFilter(_ context.Context, tenantID, listID int64, raw json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok || l.TenantID != tenantID {
		return model.ErrNotFound
	}
	l.SavedFilter = raw
	s.lists[listID] = l
	return nil
}

func (s *memStore) ListMembers(_ context.Context, tenantID, listID int64) ([]model.ContactListItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.membersCalls++
	if s.failMembers != nil {
		return nil, s.failMembers
	}
	var out []model.ContactListItem
	for _, it := range s.items {
		if it.ContactListID == listID && it.TenantID == tenantID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *memStore) InsertItem(_ context.Context, item *model.ContactListItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert != nil {
		if err := s.failInsert(item); err != nil {
			return err
		}
	}
	s.nextID++
	item.ID = s.nextID
	item.CreatedAt = time.Now()
	s.items = append(s.items, *item)
	return nil
}

func (s *memStore) MarkItemValidated(_ context.Context, itemID int64, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMark != nil {
		return s.failMark
	}
	for i := range s.items {
		if s.items[i].ID == itemID {
			s.items[i].Number = number
			s.items[i].IsWhatsappValid = true
			return nil
		}
	}
	return model.ErrNotFound
}

func (s *memStore) ClearItems(_ context.Context, tenantID, listID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []model.ContactListItem
	var n int64
	for _, it := range s.items {
		if it.ContactListID == listID && it.TenantID == tenantID {
			n++
			continue
		}
		kept = append(kept, it)
	}
	s.items = kept
	return n, nil
}

func (s *memStore) PageItems(_ context.Context, tenantID, listID int64, search string, limit, offset int) ([]model.ContactListItem, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	search = strings.ToLower(strings.TrimSpace(search))
	var all []model.ContactListItem
	for _, it := range s.items {
		if it.ContactListID != listID || it.TenantID != tenantID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(it.Name), search) && !strings.Contains(it.Number, search) {
			continue
		}
		all = append(all, it)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (s *memStore) WithinTx(_ context.Context, fn func(repo.Store) error) error {
	s.mu.Lock()
	snapshot := append([]model.ContactListItem(nil), s.items...)
	next := s.nextID
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.items = snapshot
		s.nextID = next
		s.mu.Unlock()
		return err
	}
	return nil
}
