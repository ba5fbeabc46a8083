package service

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/nftmarket/internal/domain"
	"github.com/efreitasn/nftmarket/internal/store"
)

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	Subscriber string
	URL        string
	Events     []string
}

// WebhookService handles webhook CRUD and notification dispatch.
type WebhookService struct {
	store  *store.WebhookStore
	client *http.Client
	logger *slog.Logger
}

// NewWebhookService creates a new WebhookService with the given dependencies.
func NewWebhookService(webhookStore *store.WebhookStore, webhookTimeout time.Duration, logger *slog.Logger) *WebhookService {
	return &WebhookService{
		store: webhookStore,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
		logger: logger,
	}
}

// Upsert validates the request and creates or updates webhook subscriptions.
// Returns the resulting webhooks, whether any new subscriptions were created, and any error.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	subscriber, err := parseAddressField("subscriber", req.Subscriber)
	if err != nil {
		return nil, false, err
	}

	// Validate URL.
	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[domain.NotificationKind]bool, len(req.Events))
	events := make([]domain.NotificationKind, 0, len(req.Events))
	for _, e := range req.Events {
		kind := domain.NotificationKind(e)
		if !domain.ValidNotificationKind(kind) {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + e + ". Must be one of: " + kindList(),
			}
		}
		if !seen[kind] {
			seen[kind] = true
			events = append(events, kind)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(events))

	for _, event := range events {
		w := &domain.Webhook{
			WebhookID:  uuid.New().String(),
			Subscriber: subscriber,
			Event:      event,
			URL:        req.URL,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if s.store.Upsert(w) {
			anyCreated = true
			webhooks = append(webhooks, w)
			continue
		}
		if existing := s.store.GetBySubscriberEvent(subscriber, event); existing != nil {
			webhooks = append(webhooks, existing)
		}
	}

	return webhooks, anyCreated, nil
}

// List returns all webhook subscriptions of a subscriber.
func (s *WebhookService) List(subscriber string) ([]*domain.Webhook, error) {
	addr, err := parseAddressField("subscriber", subscriber)
	if err != nil {
		return nil, err
	}
	return s.store.ListBySubscriber(addr), nil
}

// Delete removes a webhook subscription by ID.
func (s *WebhookService) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

// notificationPayload is the JSON body POSTed to subscribers.
type notificationPayload struct {
	Event     string           `json:"event"`
	Timestamp string           `json:"timestamp"`
	Data      notificationData `json:"data"`
}

type notificationData struct {
	NotificationID string `json:"notification_id"`
	Collection     string `json:"collection,omitempty"`
	TokenID        string `json:"token_id,omitempty"`
	Seller         string `json:"seller"`
	Buyer          string `json:"buyer,omitempty"`
	Price          string `json:"price,omitempty"`
	PriceEth       string `json:"price_eth,omitempty"`
	Amount         string `json:"amount,omitempty"`
	AmountEth      string `json:"amount_eth,omitempty"`
}

// Dispatch posts n to every subscription for its kind. Fire-and-forget:
// delivery failures are logged and never reach the caller.
func (s *WebhookService) Dispatch(n domain.Notification) {
	subs := s.store.ListByEvent(n.Kind)
	if len(subs) == 0 {
		return
	}

	payload := buildNotificationPayload(n)
	for _, wh := range subs {
		go s.deliver(wh, payload)
	}
}

func buildNotificationPayload(n domain.Notification) notificationPayload {
	data := notificationData{
		NotificationID: n.ID,
		Seller:         n.Seller.Hex(),
	}
	if n.Kind == domain.KindProceedsWithdrawn {
		data.Amount = n.Amount.Dec()
		data.AmountEth = domain.FormatEther(n.Amount)
	} else {
		data.Collection = n.Key.Collection.Hex()
		data.TokenID = n.Key.TokenID.Dec()
	}
	if !n.Price.IsZero() {
		data.Price = n.Price.Dec()
		data.PriceEth = domain.FormatEther(n.Price)
	}
	if n.Kind == domain.KindItemSold {
		data.Buyer = n.Buyer.Hex()
	}
	return notificationPayload{
		Event:     string(n.Kind),
		Timestamp: n.At.UTC().Truncate(time.Second).Format(time.RFC3339),
		Data:      data,
	}
}

// deliver sends the webhook payload via HTTP POST with the required headers.
func (s *WebhookService) deliver(wh *domain.Webhook, payload notificationPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return
	}

	deliveryID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", deliveryID)
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", payload.Event)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("webhook delivery failed",
			slog.String("webhook_id", wh.WebhookID),
			slog.String("delivery_id", deliveryID),
			slog.String("error", err.Error()),
		)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.logger.Warn("webhook rejected",
			slog.String("webhook_id", wh.WebhookID),
			slog.String("delivery_id", deliveryID),
			slog.Int("status", resp.StatusCode),
		)
	}
}

func kindList() string {
	names := make([]string, len(domain.NotificationKinds))
	for i, k := range domain.NotificationKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
