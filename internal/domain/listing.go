package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Listing is an active sale offer for one asset at one price by one seller.
// A listing only exists while it is active; sold or canceled listings are
// removed rather than flagged.
type Listing struct {
	Key       AssetKey
	Price     uint256.Int // wei, never zero while stored
	Seller    common.Address
	ListedAt  time.Time
	UpdatedAt time.Time
}
