package store

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/efreitasn/nftmarket/internal/domain"
)

// WebhookStore is a thread-safe in-memory store for webhooks.
// Primary index: webhook_id → webhook.
// Secondary index: subscriber → event → webhook.
type WebhookStore struct {
	mu           sync.RWMutex
	webhooks     map[string]*domain.Webhook
	bySubscriber map[common.Address]map[domain.NotificationKind]*domain.Webhook
}

// NewWebhookStore creates an empty WebhookStore.
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{
		webhooks:     make(map[string]*domain.Webhook),
		bySubscriber: make(map[common.Address]map[domain.NotificationKind]*domain.Webhook),
	}
}

// Upsert inserts or updates a subscription keyed by (subscriber, event).
// An existing subscription keeps its webhook_id and only has its URL and
// UpdatedAt refreshed when the URL changed. Returns true if a new
// subscription was created.
func (s *WebhookStore) Upsert(w *domain.Webhook) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if events, ok := s.bySubscriber[w.Subscriber]; ok {
		if existing, ok := events[w.Event]; ok {
			if existing.URL != w.URL {
				existing.URL = w.URL
				existing.UpdatedAt = w.UpdatedAt
			}
			return false
		}
	}

	s.webhooks[w.WebhookID] = w
	if s.bySubscriber[w.Subscriber] == nil {
		s.bySubscriber[w.Subscriber] = make(map[domain.NotificationKind]*domain.Webhook)
	}
	s.bySubscriber[w.Subscriber][w.Event] = w

	return true
}

// Get retrieves a webhook by ID. It returns
// domain.ErrWebhookNotFound if the webhook does not exist.
func (s *WebhookStore) Get(id string) (*domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.webhooks[id]
	if !ok {
		return nil, domain.ErrWebhookNotFound
	}
	return w, nil
}

// ListBySubscriber returns all webhooks of a subscriber.
// Returns an empty slice if there are none.
func (s *WebhookStore) ListBySubscriber(subscriber common.Address) []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.bySubscriber[subscriber]
	result := make([]*domain.Webhook, 0, len(events))
	for _, kind := range domain.NotificationKinds {
		if w, ok := events[kind]; ok {
			result = append(result, w)
		}
	}
	return result
}

// ListByEvent returns every subscription for a notification kind.
func (s *WebhookStore) ListByEvent(event domain.NotificationKind) []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Webhook, 0)
	for _, events := range s.bySubscriber {
		if w, ok := events[event]; ok {
			result = append(result, w)
		}
	}
	return result
}

// Delete removes a webhook by ID from both indexes. It returns
// domain.ErrWebhookNotFound if the webhook does not exist.
func (s *WebhookStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}
	delete(s.webhooks, id)

	if events, ok := s.bySubscriber[w.Subscriber]; ok {
		delete(events, w.Event)
		if len(events) == 0 {
			delete(s.bySubscriber, w.Subscriber)
		}
	}

	return nil
}

// GetBySubscriberEvent returns the webhook for a subscriber+event pair,
// or nil if no subscription exists.
func (s *WebhookStore) GetBySubscriberEvent(subscriber common.Address, event domain.NotificationKind) *domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.bySubscriber[subscriber]
	if events == nil {
		return nil
	}
	return events[event]
}
