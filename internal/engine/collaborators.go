package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/efreitasn/nftmarket/internal/domain"
)

// AssetRegistry is the capability the engine needs from the system of
// record for token ownership. Implementations must pass ctx through to any
// hook they invoke so the engine can detect re-entry.
type AssetRegistry interface {
	// OwnerOf returns the current owner, or an error wrapping
	// domain.ErrUnknownAsset.
	OwnerOf(ctx context.Context, key domain.AssetKey) (common.Address, error)
	IsApprovedForTransfer(ctx context.Context, key domain.AssetKey, operator common.Address) (bool, error)
	// Transfer moves custody on behalf of operator, failing with an error
	// wrapping domain.ErrTransferRejected when from is not the owner or
	// operator lacks approval.
	Transfer(ctx context.Context, operator common.Address, key domain.AssetKey, from, to common.Address) error
}

// ValueTransfer pays escrowed value out of the marketplace.
type ValueTransfer interface {
	Send(ctx context.Context, to common.Address, amount uint256.Int) error
}
