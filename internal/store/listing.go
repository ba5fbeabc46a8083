package store

import (
	"bytes"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/btree"
	"github.com/holiman/uint256"

	"github.com/efreitasn/nftmarket/internal/domain"
)

// priceEntry is a listing's position in the per-collection price index.
type priceEntry struct {
	Collection common.Address
	Price      uint256.Int
	TokenID    uint256.Int
}

// priceLess orders entries by collection, then price ascending, then token
// ID ascending. Within one collection Min() is the floor listing.
func priceLess(a, b priceEntry) bool {
	if c := bytes.Compare(a.Collection[:], b.Collection[:]); c != 0 {
		return c < 0
	}
	if c := a.Price.Cmp(&b.Price); c != 0 {
		return c < 0
	}
	return a.TokenID.Lt(&b.TokenID)
}

func entryFor(l domain.Listing) priceEntry {
	return priceEntry{
		Collection: l.Key.Collection,
		Price:      l.Price,
		TokenID:    l.Key.TokenID,
	}
}

// ListingStore is a thread-safe in-memory store of active listings keyed by
// (collection, token ID), with a B-tree index ordered by price for
// collection browsing.
type ListingStore struct {
	mu       sync.RWMutex
	listings map[domain.AssetKey]domain.Listing
	byPrice  *btree.BTreeG[priceEntry]
}

// NewListingStore creates an empty ListingStore.
func NewListingStore() *ListingStore {
	const degree = 32
	return &ListingStore{
		listings: make(map[domain.AssetKey]domain.Listing),
		byPrice:  btree.NewG[priceEntry](degree, priceLess),
	}
}

// Put inserts or overwrites the listing for l.Key. It returns
// domain.ErrInvalidPrice if the price is zero.
func (s *ListingStore) Put(l domain.Listing) error {
	if l.Price.IsZero() {
		return domain.ErrInvalidPrice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.listings[l.Key]; ok {
		s.byPrice.Delete(entryFor(old))
	}
	s.listings[l.Key] = l
	s.byPrice.ReplaceOrInsert(entryFor(l))
	return nil
}

// Get returns the listing for key and whether it exists.
func (s *ListingStore) Get(key domain.AssetKey) (domain.Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[key]
	return l, ok
}

// Remove deletes the listing for key. It is a no-op if none exists.
func (s *ListingStore) Remove(key domain.AssetKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[key]
	if !ok {
		return
	}
	delete(s.listings, key)
	s.byPrice.Delete(entryFor(l))
}

// RequireActive returns the listing for key, or domain.ErrNotListed.
func (s *ListingStore) RequireActive(key domain.AssetKey) (domain.Listing, error) {
	l, ok := s.Get(key)
	if !ok || l.Price.IsZero() {
		return domain.Listing{}, domain.ErrNotListed
	}
	return l, nil
}

// ListByCollection returns up to limit listings of a collection ordered by
// price ascending, then token ID. A limit <= 0 returns every listing.
func (s *ListingStore) ListByCollection(collection common.Address, limit int) []domain.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Listing, 0)
	s.byPrice.AscendGreaterOrEqual(priceEntry{Collection: collection}, func(e priceEntry) bool {
		if e.Collection != collection {
			return false
		}
		if limit > 0 && len(result) >= limit {
			return false
		}
		result = append(result, s.listings[domain.AssetKey{Collection: e.Collection, TokenID: e.TokenID}])
		return true
	})
	return result
}

// Floor returns the cheapest listing of a collection.
func (s *ListingStore) Floor(collection common.Address) (domain.Listing, bool) {
	listings := s.ListByCollection(collection, 1)
	if len(listings) == 0 {
		return domain.Listing{}, false
	}
	return listings[0], true
}

// Count returns the number of active listings.
func (s *ListingStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.listings)
}
