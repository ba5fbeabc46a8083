package service

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/efreitasn/nftmarket/internal/domain"
)

func parseAddressField(field, s string) (common.Address, error) {
	if strings.TrimSpace(s) == "" {
		return common.Address{}, &domain.ValidationError{Message: field + " is required"}
	}
	addr, err := domain.ParseAddress(s)
	if err != nil {
		return common.Address{}, &domain.ValidationError{Message: field + " must be a non-zero 0x-prefixed address"}
	}
	return addr, nil
}

func parseKey(collection, tokenID string) (domain.AssetKey, error) {
	coll, err := parseAddressField("collection", collection)
	if err != nil {
		return domain.AssetKey{}, err
	}
	if tokenID == "" {
		return domain.AssetKey{}, &domain.ValidationError{Message: "token_id is required"}
	}
	id, err := domain.ParseTokenID(tokenID)
	if err != nil {
		return domain.AssetKey{}, &domain.ValidationError{Message: "token_id must be a base-10 integer below 2^256"}
	}
	return domain.AssetKey{Collection: coll, TokenID: id}, nil
}

// parseAmount reads an amount given either in wei or in ether. Exactly one
// of the two must be set.
func parseAmount(field, wei, eth string) (uint256.Int, error) {
	switch {
	case wei != "" && eth != "":
		return uint256.Int{}, &domain.ValidationError{Message: "only one of " + field + " and " + field + "_eth may be set"}
	case wei != "":
		v, err := domain.ParseWei(wei)
		if err != nil {
			return uint256.Int{}, &domain.ValidationError{Message: field + " must be a base-10 wei amount below 2^256"}
		}
		return v, nil
	case eth != "":
		v, err := domain.ParseEther(eth)
		if errors.Is(err, domain.ErrAmountOverflow) {
			return uint256.Int{}, &domain.ValidationError{Message: field + "_eth does not fit in 256 bits of wei"}
		}
		if err != nil {
			return uint256.Int{}, &domain.ValidationError{Message: field + "_eth must be a non-negative ether amount with at most 18 decimals"}
		}
		return v, nil
	}
	return uint256.Int{}, &domain.ValidationError{Message: field + " is required"}
}
