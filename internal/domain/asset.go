package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AssetKey identifies one token inside one collection. It is comparable
// and safe to use as a map key.
type AssetKey struct {
	Collection common.Address
	TokenID    uint256.Int
}

// NewAssetKey builds a key from a collection address and a small token ID.
func NewAssetKey(collection common.Address, tokenID uint64) AssetKey {
	return AssetKey{Collection: collection, TokenID: *uint256.NewInt(tokenID)}
}

func (k AssetKey) String() string {
	return k.Collection.Hex() + "#" + k.TokenID.Dec()
}

// ParseAddress parses a 0x-prefixed hex address. The zero address is
// rejected because it never owns or lists anything.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("zero address is not allowed")
	}
	return addr, nil
}

// ParseTokenID parses a base-10 token ID.
func ParseTokenID(s string) (uint256.Int, error) {
	id, err := uint256.FromDecimal(s)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("invalid token id %q: %w", s, err)
	}
	return *id, nil
}
