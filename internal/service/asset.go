package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/efreitasn/nftmarket/internal/domain"
	"github.com/efreitasn/nftmarket/internal/registry"
	"github.com/efreitasn/nftmarket/internal/wallet"
)

// ApproveRequest represents a token approval. An empty Operator approves
// the marketplace itself; ForAll approves the operator for every token the
// caller holds in the collection.
type ApproveRequest struct {
	Caller     string
	Collection string
	TokenID    string
	Operator   string
	ForAll     bool
	Revoke     bool
}

// AssetService exposes the in-process registry and wallet that stand in
// for on-chain contracts.
type AssetService struct {
	registry    *registry.Registry
	wallet      *wallet.Wallet
	marketplace common.Address
}

// NewAssetService creates a new AssetService.
func NewAssetService(reg *registry.Registry, w *wallet.Wallet, marketplace common.Address) *AssetService {
	return &AssetService{registry: reg, wallet: w, marketplace: marketplace}
}

// Mint creates the next token of a collection for to.
func (s *AssetService) Mint(collection, to string) (domain.AssetKey, error) {
	coll, err := parseAddressField("collection", collection)
	if err != nil {
		return domain.AssetKey{}, err
	}
	owner, err := parseAddressField("to", to)
	if err != nil {
		return domain.AssetKey{}, err
	}
	return s.registry.Mint(coll, owner)
}

// Approve grants or revokes an operator's right to move a token.
func (s *AssetService) Approve(ctx context.Context, req ApproveRequest) error {
	caller, err := parseAddressField("caller", req.Caller)
	if err != nil {
		return err
	}
	key, err := parseKey(req.Collection, req.TokenID)
	if err != nil {
		return err
	}
	operator := s.marketplace
	if req.Operator != "" {
		if operator, err = parseAddressField("operator", req.Operator); err != nil {
			return err
		}
	}

	if req.ForAll {
		owner, err := s.registry.OwnerOf(ctx, key)
		if err != nil {
			return err
		}
		if owner != caller {
			return domain.ErrNotOwner
		}
		s.registry.SetApprovalForAll(key.Collection, caller, operator, !req.Revoke)
		return nil
	}
	if req.Revoke {
		operator = common.Address{}
	}
	return s.registry.Approve(caller, key, operator)
}

// OwnerOf returns the current holder of a token.
func (s *AssetService) OwnerOf(ctx context.Context, collection, tokenID string) (common.Address, error) {
	key, err := parseKey(collection, tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return s.registry.OwnerOf(ctx, key)
}

// Fund deposits an amount, in wei or in ether, into an address's wallet
// and returns the new balance.
func (s *AssetService) Fund(address, amount, amountEth string) (uint256.Int, error) {
	addr, err := parseAddressField("address", address)
	if err != nil {
		return uint256.Int{}, err
	}
	value, err := parseAmount("amount", amount, amountEth)
	if err != nil {
		return uint256.Int{}, err
	}
	if err := s.wallet.Deposit(addr, value); err != nil {
		return uint256.Int{}, err
	}
	return s.wallet.BalanceOf(addr), nil
}

// Balance returns the wallet balance of an address.
func (s *AssetService) Balance(address string) (uint256.Int, error) {
	addr, err := parseAddressField("address", address)
	if err != nil {
		return uint256.Int{}, err
	}
	return s.wallet.BalanceOf(addr), nil
}
