package store

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/efreitasn/nftmarket/internal/domain"
)

// NotificationStore is a thread-safe, append-only, chronological log of
// marketplace notifications with a secondary index by collection.
type NotificationStore struct {
	mu           sync.RWMutex
	all          []domain.Notification
	byCollection map[common.Address][]int // collection → indexes into all
}

// NewNotificationStore creates an empty NotificationStore.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		all:          make([]domain.Notification, 0),
		byCollection: make(map[common.Address][]int),
	}
}

// Append adds a notification to the log.
func (s *NotificationStore) Append(n domain.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.all = append(s.all, n)
	if n.Kind != domain.KindProceedsWithdrawn {
		c := n.Key.Collection
		s.byCollection[c] = append(s.byCollection[c], len(s.all)-1)
	}
}

// Recent returns up to limit notifications, newest first. A limit <= 0
// returns the whole log.
func (s *NotificationStore) Recent(limit int) []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.all)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]domain.Notification, 0, n)
	for i := len(s.all) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, s.all[i])
	}
	return result
}

// ByCollection returns up to limit notifications about a collection,
// newest first. Withdrawals are not tied to a collection and never appear.
func (s *NotificationStore) ByCollection(collection common.Address, limit int) []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.byCollection[collection]
	n := len(idx)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]domain.Notification, 0, n)
	for i := len(idx) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, s.all[idx[i]])
	}
	return result
}
