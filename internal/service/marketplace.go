package service

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/efreitasn/nftmarket/internal/domain"
	"github.com/efreitasn/nftmarket/internal/engine"
	"github.com/efreitasn/nftmarket/internal/store"
)

// Journal is a durable notification log.
type Journal interface {
	Record(ctx context.Context, n domain.Notification) error
	Recent(ctx context.Context, limit int) ([]domain.Notification, error)
}

// Payments holds buyer funds. A purchase is charged before it reaches the
// engine and refunded if the engine rejects it.
type Payments interface {
	Charge(from common.Address, amount uint256.Int) error
	Deposit(to common.Address, amount uint256.Int) error
}

// ListItemRequest represents the input for listing an asset. The price is
// given either in wei or in ether.
type ListItemRequest struct {
	Caller     string
	Collection string
	TokenID    string
	Price      string
	PriceEth   string
}

// UpdateListingRequest represents the input for repricing a listing.
type UpdateListingRequest struct {
	Caller     string
	Collection string
	TokenID    string
	Price      string
	PriceEth   string
}

// BuyItemRequest represents a purchase carrying a payment.
type BuyItemRequest struct {
	Caller     string
	Collection string
	TokenID    string
	Value      string
	ValueEth   string
}

// Stats summarizes marketplace state.
type Stats struct {
	ActiveListings int
	Escrowed       uint256.Int
}

// MarketplaceService validates external input, runs it through the engine,
// and publishes the resulting notifications.
type MarketplaceService struct {
	market        *engine.Marketplace
	payments      Payments
	notifications *store.NotificationStore
	journal       Journal // nil when no journal is configured
	webhookSvc    *WebhookService
	logger        *slog.Logger
}

// NewMarketplaceService creates a new MarketplaceService. journal may be nil.
func NewMarketplaceService(
	market *engine.Marketplace,
	payments Payments,
	notifications *store.NotificationStore,
	journal Journal,
	webhookSvc *WebhookService,
	logger *slog.Logger,
) *MarketplaceService {
	return &MarketplaceService{
		market:        market,
		payments:      payments,
		notifications: notifications,
		journal:       journal,
		webhookSvc:    webhookSvc,
		logger:        logger,
	}
}

// ListItem lists an asset for sale.
func (s *MarketplaceService) ListItem(ctx context.Context, req ListItemRequest) (domain.Listing, error) {
	caller, err := parseAddressField("caller", req.Caller)
	if err != nil {
		return domain.Listing{}, err
	}
	key, err := parseKey(req.Collection, req.TokenID)
	if err != nil {
		return domain.Listing{}, err
	}
	price, err := parseAmount("price", req.Price, req.PriceEth)
	if err != nil {
		return domain.Listing{}, err
	}

	n, err := s.market.ListItem(ctx, key, price, caller)
	if err != nil {
		return domain.Listing{}, err
	}
	s.publish(ctx, n)

	listing, _ := s.market.GetListing(key)
	return listing, nil
}

// UpdateListing reprices the caller's listing.
func (s *MarketplaceService) UpdateListing(ctx context.Context, req UpdateListingRequest) (domain.Listing, error) {
	caller, err := parseAddressField("caller", req.Caller)
	if err != nil {
		return domain.Listing{}, err
	}
	key, err := parseKey(req.Collection, req.TokenID)
	if err != nil {
		return domain.Listing{}, err
	}
	price, err := parseAmount("price", req.Price, req.PriceEth)
	if err != nil {
		return domain.Listing{}, err
	}

	n, err := s.market.UpdateListing(ctx, key, price, caller)
	if err != nil {
		return domain.Listing{}, err
	}
	s.publish(ctx, n)

	listing, _ := s.market.GetListing(key)
	return listing, nil
}

// CancelListing removes the caller's listing.
func (s *MarketplaceService) CancelListing(ctx context.Context, caller, collection, tokenID string) (domain.Notification, error) {
	addr, err := parseAddressField("caller", caller)
	if err != nil {
		return domain.Notification{}, err
	}
	key, err := parseKey(collection, tokenID)
	if err != nil {
		return domain.Notification{}, err
	}

	n, err := s.market.CancelListing(ctx, key, addr)
	if err != nil {
		return domain.Notification{}, err
	}
	s.publish(ctx, n)
	return n, nil
}

// BuyItem purchases a listed asset. The payment is taken from the caller's
// wallet and returned if the purchase fails.
func (s *MarketplaceService) BuyItem(ctx context.Context, req BuyItemRequest) (domain.Notification, error) {
	caller, err := parseAddressField("caller", req.Caller)
	if err != nil {
		return domain.Notification{}, err
	}
	key, err := parseKey(req.Collection, req.TokenID)
	if err != nil {
		return domain.Notification{}, err
	}
	value, err := parseAmount("value", req.Value, req.ValueEth)
	if err != nil {
		return domain.Notification{}, err
	}

	if err := s.payments.Charge(caller, value); err != nil {
		return domain.Notification{}, err
	}
	n, err := s.market.BuyItem(ctx, key, caller, value)
	if err != nil {
		if refundErr := s.payments.Deposit(caller, value); refundErr != nil {
			s.logger.Error("refund failed",
				slog.String("buyer", caller.Hex()),
				slog.String("value", value.Dec()),
				slog.String("error", refundErr.Error()),
			)
		}
		return domain.Notification{}, err
	}
	s.publish(ctx, n)
	return n, nil
}

// WithdrawProceeds pays out the caller's proceeds.
func (s *MarketplaceService) WithdrawProceeds(ctx context.Context, caller string) (domain.Notification, error) {
	addr, err := parseAddressField("caller", caller)
	if err != nil {
		return domain.Notification{}, err
	}

	n, err := s.market.WithdrawProceeds(ctx, addr)
	if err != nil {
		return domain.Notification{}, err
	}
	s.publish(ctx, n)
	return n, nil
}

// GetListing returns the active listing of an asset, or domain.ErrNotListed.
func (s *MarketplaceService) GetListing(collection, tokenID string) (domain.Listing, error) {
	key, err := parseKey(collection, tokenID)
	if err != nil {
		return domain.Listing{}, err
	}
	listing, ok := s.market.GetListing(key)
	if !ok {
		return domain.Listing{}, domain.ErrNotListed
	}
	return listing, nil
}

// GetProceeds returns the wei owed to a seller.
func (s *MarketplaceService) GetProceeds(seller string) (uint256.Int, error) {
	addr, err := parseAddressField("seller", seller)
	if err != nil {
		return uint256.Int{}, err
	}
	return s.market.GetProceeds(addr), nil
}

// Listings returns a collection's active listings, cheapest first.
func (s *MarketplaceService) Listings(collection string, limit int) ([]domain.Listing, error) {
	coll, err := parseAddressField("collection", collection)
	if err != nil {
		return nil, err
	}
	return s.market.Listings(coll, limit), nil
}

// Floor returns the cheapest active listing of a collection, or
// domain.ErrNotListed when the collection has none.
func (s *MarketplaceService) Floor(collection string) (domain.Listing, error) {
	coll, err := parseAddressField("collection", collection)
	if err != nil {
		return domain.Listing{}, err
	}
	listing, ok := s.market.Floor(coll)
	if !ok {
		return domain.Listing{}, domain.ErrNotListed
	}
	return listing, nil
}

// Activity returns recent notifications, newest first. With a collection
// filter it reads the in-memory index; otherwise it prefers the journal,
// which survives restarts.
func (s *MarketplaceService) Activity(ctx context.Context, collection string, limit int) ([]domain.Notification, error) {
	if collection != "" {
		coll, err := parseAddressField("collection", collection)
		if err != nil {
			return nil, err
		}
		return s.notifications.ByCollection(coll, limit), nil
	}
	if s.journal != nil {
		return s.journal.Recent(ctx, limit)
	}
	return s.notifications.Recent(limit), nil
}

// Stats returns the active listing count and the wei held in escrow.
func (s *MarketplaceService) Stats() Stats {
	return Stats{
		ActiveListings: s.market.ActiveListings(),
		Escrowed:       s.market.Escrowed(),
	}
}

// Address returns the marketplace operator address.
func (s *MarketplaceService) Address() common.Address {
	return s.market.Address()
}

// publish fans a notification out to the activity log, the journal and
// webhook subscribers. Failures past the engine never undo the operation.
func (s *MarketplaceService) publish(ctx context.Context, n domain.Notification) {
	s.notifications.Append(n)

	attrs := []any{
		slog.String("id", n.ID),
		slog.String("kind", string(n.Kind)),
		slog.String("seller", n.Seller.Hex()),
	}
	if n.Kind == domain.KindProceedsWithdrawn {
		attrs = append(attrs, slog.String("amount_eth", domain.FormatEther(n.Amount)))
	} else {
		attrs = append(attrs,
			slog.String("asset", n.Key.String()),
			slog.String("price_eth", domain.FormatEther(n.Price)),
		)
	}
	if n.Kind == domain.KindItemSold {
		attrs = append(attrs, slog.String("buyer", n.Buyer.Hex()))
	}
	s.logger.Info("notification", attrs...)

	if s.journal != nil {
		// The engine has already committed; a cancelled request must not
		// drop the journal entry.
		if err := s.journal.Record(context.WithoutCancel(ctx), n); err != nil {
			s.logger.Error("journal record failed",
				slog.String("id", n.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.webhookSvc != nil {
		s.webhookSvc.Dispatch(n)
	}
}
