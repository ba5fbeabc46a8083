// Package registry is an in-memory ERC-721 style asset registry used to run
// the marketplace without a chain. It answers ownership and approval
// queries and moves custody on command.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/efreitasn/nftmarket/internal/domain"
)

// Receiver is called after a token lands at an address that registered
// one, mirroring onERC721Received. Returning an error reverts the transfer.
type Receiver func(ctx context.Context, operator, from common.Address, key domain.AssetKey) error

// collection holds the token state of one contract address.
type collection struct {
	nextID    uint64
	owners    map[uint256.Int]common.Address
	approved  map[uint256.Int]common.Address             // single-token approval
	operators map[common.Address]map[common.Address]bool // owner → operator → approved for all
}

func newCollection() *collection {
	return &collection{
		nextID:    1,
		owners:    make(map[uint256.Int]common.Address),
		approved:  make(map[uint256.Int]common.Address),
		operators: make(map[common.Address]map[common.Address]bool),
	}
}

func (c *collection) isApproved(id uint256.Int, owner, operator common.Address) bool {
	if a, ok := c.approved[id]; ok && a == operator {
		return true
	}
	return c.operators[owner][operator]
}

// Registry is a thread-safe set of ERC-721 collections keyed by address.
type Registry struct {
	mu          sync.Mutex
	collections map[common.Address]*collection
	receivers   map[common.Address]Receiver
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		collections: make(map[common.Address]*collection),
		receivers:   make(map[common.Address]Receiver),
	}
}

// Mint creates the next token of a collection for to. Token IDs start at 1
// and increase by one per mint within a collection.
func (r *Registry) Mint(coll, to common.Address) (domain.AssetKey, error) {
	if to == (common.Address{}) {
		return domain.AssetKey{}, fmt.Errorf("mint to zero address")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.collections[coll]
	if !ok {
		c = newCollection()
		r.collections[coll] = c
	}
	id := *uint256.NewInt(c.nextID)
	c.nextID++
	c.owners[id] = to

	return domain.AssetKey{Collection: coll, TokenID: id}, nil
}

// Approve lets operator move one token. Only the owner or one of the
// owner's operators may approve. The zero address clears the approval.
func (r *Registry) Approve(caller common.Address, key domain.AssetKey, operator common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, owner, err := r.lookup(key)
	if err != nil {
		return err
	}
	if caller != owner && !c.operators[owner][caller] {
		return domain.ErrNotOwner
	}
	if operator == (common.Address{}) {
		delete(c.approved, key.TokenID)
		return nil
	}
	c.approved[key.TokenID] = operator
	return nil
}

// SetApprovalForAll grants or revokes operator rights over every token
// owner holds in a collection, including tokens acquired later.
func (r *Registry) SetApprovalForAll(coll, owner, operator common.Address, approved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.collections[coll]
	if !ok {
		c = newCollection()
		r.collections[coll] = c
	}
	if c.operators[owner] == nil {
		c.operators[owner] = make(map[common.Address]bool)
	}
	c.operators[owner][operator] = approved
}

// OnReceive registers a receive hook for addr. A nil hook removes it.
func (r *Registry) OnReceive(addr common.Address, fn Receiver) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fn == nil {
		delete(r.receivers, addr)
		return
	}
	r.receivers[addr] = fn
}

// OwnerOf returns the owner of a token, or domain.ErrUnknownAsset.
func (r *Registry) OwnerOf(_ context.Context, key domain.AssetKey) (common.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, owner, err := r.lookup(key)
	return owner, err
}

// IsApprovedForTransfer reports whether operator may move the token on
// behalf of its current owner.
func (r *Registry) IsApprovedForTransfer(_ context.Context, key domain.AssetKey, operator common.Address) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, owner, err := r.lookup(key)
	if err != nil {
		return false, err
	}
	return c.isApproved(key.TokenID, owner, operator), nil
}

// Transfer moves a token from from to to on behalf of operator. It fails
// with domain.ErrTransferRejected when from is not the owner or operator is
// neither the owner nor approved. The single-token approval is cleared on
// success. If to has a receive hook it runs after custody moves, without the
// registry lock held; a hook error restores the previous owner and approval.
func (r *Registry) Transfer(ctx context.Context, operator common.Address, key domain.AssetKey, from, to common.Address) error {
	r.mu.Lock()
	c, owner, err := r.lookup(key)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if owner != from {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s is not the owner of %s", domain.ErrTransferRejected, from.Hex(), key)
	}
	if operator != from && !c.isApproved(key.TokenID, owner, operator) {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s is not approved for %s", domain.ErrTransferRejected, operator.Hex(), key)
	}
	if to == (common.Address{}) {
		r.mu.Unlock()
		return fmt.Errorf("%w: transfer to zero address", domain.ErrTransferRejected)
	}

	prevApproval, hadApproval := c.approved[key.TokenID]
	c.owners[key.TokenID] = to
	delete(c.approved, key.TokenID)
	hook := r.receivers[to]
	r.mu.Unlock()

	if hook == nil {
		return nil
	}
	if err := hook(ctx, operator, from, key); err != nil {
		r.mu.Lock()
		if c.owners[key.TokenID] == to {
			c.owners[key.TokenID] = from
			if hadApproval {
				c.approved[key.TokenID] = prevApproval
			}
		}
		r.mu.Unlock()
		return fmt.Errorf("%w: receiver %s: %w", domain.ErrTransferRejected, to.Hex(), err)
	}
	return nil
}

// lookup must be called with r.mu held.
func (r *Registry) lookup(key domain.AssetKey) (*collection, common.Address, error) {
	c, ok := r.collections[key.Collection]
	if !ok {
		return nil, common.Address{}, fmt.Errorf("%w: %s", domain.ErrUnknownAsset, key)
	}
	owner, ok := c.owners[key.TokenID]
	if !ok {
		return nil, common.Address{}, fmt.Errorf("%w: %s", domain.ErrUnknownAsset, key)
	}
	return c, owner, nil
}
