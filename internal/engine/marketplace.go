package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/efreitasn/nftmarket/internal/domain"
	"github.com/efreitasn/nftmarket/internal/store"
)

// inFlightKey marks a context handed to collaborators while an operation
// holds the engine. Its value is the *Marketplace that set it.
type inFlightKey struct{}

// Marketplace is the ledger engine. It validates every mutating call
// against the listing store, the proceeds ledger and the asset registry,
// applies ledger mutations, and only then calls out to collaborators.
//
// Mutating calls run one at a time. A mutating call made from inside a
// collaborator invoked by this engine fails with domain.ErrReentrancy.
type Marketplace struct {
	address  common.Address // the operator identity registries must approve
	listings *store.ListingStore
	proceeds *store.ProceedsLedger
	registry AssetRegistry
	payouts  ValueTransfer
	sem      chan struct{} // capacity 1; held for the whole of a mutating call
}

// NewMarketplace creates a Marketplace operating as address.
func NewMarketplace(
	address common.Address,
	listings *store.ListingStore,
	proceeds *store.ProceedsLedger,
	registry AssetRegistry,
	payouts ValueTransfer,
) *Marketplace {
	return &Marketplace{
		address:  address,
		listings: listings,
		proceeds: proceeds,
		registry: registry,
		payouts:  payouts,
		sem:      make(chan struct{}, 1),
	}
}

// Address returns the identity the marketplace uses as transfer operator.
func (m *Marketplace) Address() common.Address {
	return m.address
}

// enter acquires the engine for one mutating call. It rejects calls whose
// context carries this engine's in-flight mark, and gives up if ctx ends
// while waiting. The returned context must be used for every collaborator
// call; release must be called exactly once.
func (m *Marketplace) enter(ctx context.Context) (context.Context, func(), error) {
	if owner, ok := ctx.Value(inFlightKey{}).(*Marketplace); ok && owner == m {
		return nil, nil, domain.ErrReentrancy
	}
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	return context.WithValue(ctx, inFlightKey{}, m), func() { <-m.sem }, nil
}

// ListItem creates a listing for an asset owned by caller. The marketplace
// must already be approved to move the asset; custody stays with the
// seller until a sale.
func (m *Marketplace) ListItem(ctx context.Context, key domain.AssetKey, price uint256.Int, caller common.Address) (domain.Notification, error) {
	ctx, release, err := m.enter(ctx)
	if err != nil {
		return domain.Notification{}, err
	}
	defer release()

	if price.IsZero() {
		return domain.Notification{}, domain.ErrInvalidPrice
	}
	if _, listed := m.listings.Get(key); listed {
		return domain.Notification{}, domain.ErrAlreadyListed
	}

	// Ownership is read from the registry every time; it can change
	// outside the marketplace.
	owner, err := m.registry.OwnerOf(ctx, key)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("owner of %s: %w", key, err)
	}
	if owner != caller {
		return domain.Notification{}, domain.ErrNotOwner
	}
	approved, err := m.registry.IsApprovedForTransfer(ctx, key, m.address)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("approval of %s: %w", key, err)
	}
	if !approved {
		return domain.Notification{}, domain.ErrNotApprovedForMarketplace
	}

	now := time.Now().UTC()
	listing := domain.Listing{
		Key:       key,
		Price:     price,
		Seller:    caller,
		ListedAt:  now,
		UpdatedAt: now,
	}
	if err := m.listings.Put(listing); err != nil {
		return domain.Notification{}, err
	}

	return newNotification(domain.KindListingCreated, key, caller, now, func(n *domain.Notification) {
		n.Price = price
	}), nil
}

// UpdateListing changes the price of caller's active listing.
func (m *Marketplace) UpdateListing(ctx context.Context, key domain.AssetKey, newPrice uint256.Int, caller common.Address) (domain.Notification, error) {
	_, release, err := m.enter(ctx)
	if err != nil {
		return domain.Notification{}, err
	}
	defer release()

	listing, err := m.listings.RequireActive(key)
	if err != nil {
		return domain.Notification{}, err
	}
	if newPrice.IsZero() {
		return domain.Notification{}, domain.ErrInvalidPrice
	}
	if listing.Seller != caller {
		return domain.Notification{}, domain.ErrNotOwner
	}

	now := time.Now().UTC()
	listing.Price = newPrice
	listing.UpdatedAt = now
	if err := m.listings.Put(listing); err != nil {
		return domain.Notification{}, err
	}

	return newNotification(domain.KindListingUpdated, key, caller, now, func(n *domain.Notification) {
		n.Price = newPrice
	}), nil
}

// CancelListing removes caller's active listing.
func (m *Marketplace) CancelListing(ctx context.Context, key domain.AssetKey, caller common.Address) (domain.Notification, error) {
	_, release, err := m.enter(ctx)
	if err != nil {
		return domain.Notification{}, err
	}
	defer release()

	listing, err := m.listings.RequireActive(key)
	if err != nil {
		return domain.Notification{}, err
	}
	if listing.Seller != caller {
		return domain.Notification{}, domain.ErrNotOwner
	}

	m.listings.Remove(key)

	return newNotification(domain.KindListingCanceled, key, caller, time.Now().UTC(), nil), nil
}

// BuyItem sells a listed asset to caller against a payment of exactly the
// listed price. The listing is removed and the seller credited before the
// registry is asked to move custody; if the registry refuses, both ledger
// changes are rolled back.
func (m *Marketplace) BuyItem(ctx context.Context, key domain.AssetKey, caller common.Address, paid uint256.Int) (domain.Notification, error) {
	ctx, release, err := m.enter(ctx)
	if err != nil {
		return domain.Notification{}, err
	}
	defer release()

	listing, err := m.listings.RequireActive(key)
	if err != nil {
		return domain.Notification{}, err
	}
	if !paid.Eq(&listing.Price) {
		return domain.Notification{}, domain.ErrPriceMismatch
	}

	var tx txn
	m.listings.Remove(key)
	tx.onRollback(func() { _ = m.listings.Put(listing) })

	if err := m.proceeds.Credit(listing.Seller, listing.Price); err != nil {
		tx.rollback()
		return domain.Notification{}, err
	}
	tx.onRollback(func() { _ = m.proceeds.Debit(listing.Seller, listing.Price) })

	if err := m.registry.Transfer(ctx, m.address, key, listing.Seller, caller); err != nil {
		tx.rollback()
		return domain.Notification{}, fmt.Errorf("buy %s: %w", key, asTransferRejected(err))
	}

	return newNotification(domain.KindItemSold, key, listing.Seller, time.Now().UTC(), func(n *domain.Notification) {
		n.Buyer = caller
		n.Price = listing.Price
	}), nil
}

// WithdrawProceeds pays caller's whole proceeds balance. The balance is
// zeroed before the payout and restored if the payout fails.
func (m *Marketplace) WithdrawProceeds(ctx context.Context, caller common.Address) (domain.Notification, error) {
	ctx, release, err := m.enter(ctx)
	if err != nil {
		return domain.Notification{}, err
	}
	defer release()

	amount, err := m.proceeds.Clear(caller)
	if err != nil {
		return domain.Notification{}, err
	}

	var tx txn
	tx.onRollback(func() { _ = m.proceeds.Credit(caller, amount) })

	if err := m.payouts.Send(ctx, caller, amount); err != nil {
		tx.rollback()
		return domain.Notification{}, fmt.Errorf("withdraw %s: %w", caller.Hex(), asTransferRejected(err))
	}

	return newNotification(domain.KindProceedsWithdrawn, domain.AssetKey{}, caller, time.Now().UTC(), func(n *domain.Notification) {
		n.Amount = amount
	}), nil
}

// GetListing returns the active listing for key, if any.
func (m *Marketplace) GetListing(key domain.AssetKey) (domain.Listing, bool) {
	return m.listings.Get(key)
}

// GetProceeds returns the wei owed to seller.
func (m *Marketplace) GetProceeds(seller common.Address) uint256.Int {
	return m.proceeds.BalanceOf(seller)
}

// Listings returns a collection's active listings ordered by price.
func (m *Marketplace) Listings(collection common.Address, limit int) []domain.Listing {
	return m.listings.ListByCollection(collection, limit)
}

// Floor returns the cheapest active listing of a collection.
func (m *Marketplace) Floor(collection common.Address) (domain.Listing, bool) {
	return m.listings.Floor(collection)
}

// ActiveListings returns the number of active listings across collections.
func (m *Marketplace) ActiveListings() int {
	return m.listings.Count()
}

// Escrowed returns the wei held on behalf of all sellers.
func (m *Marketplace) Escrowed() uint256.Int {
	return m.proceeds.Total()
}

func asTransferRejected(err error) error {
	if errors.Is(err, domain.ErrTransferRejected) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrTransferRejected, err)
}

func newNotification(kind domain.NotificationKind, key domain.AssetKey, seller common.Address, at time.Time, fill func(*domain.Notification)) domain.Notification {
	n := domain.Notification{
		ID:     uuid.New().String(),
		Kind:   kind,
		Key:    key,
		Seller: seller,
		At:     at,
	}
	if fill != nil {
		fill(&n)
	}
	return n
}
