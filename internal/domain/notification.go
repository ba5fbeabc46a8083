package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// NotificationKind names a marketplace event consumed by indexers and
// webhook subscribers.
type NotificationKind string

const (
	KindListingCreated    NotificationKind = "listing.created"
	KindListingUpdated    NotificationKind = "listing.updated"
	KindListingCanceled   NotificationKind = "listing.canceled"
	KindItemSold          NotificationKind = "item.sold"
	KindProceedsWithdrawn NotificationKind = "proceeds.withdrawn"
)

// NotificationKinds lists every kind in emission-independent order.
var NotificationKinds = []NotificationKind{
	KindListingCreated,
	KindListingUpdated,
	KindListingCanceled,
	KindItemSold,
	KindProceedsWithdrawn,
}

// ValidNotificationKind reports whether k is a known kind.
func ValidNotificationKind(k NotificationKind) bool {
	for _, known := range NotificationKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Notification is the structured result of a successful mutating
// operation. Fields that do not apply to a kind are left zero: Buyer is
// only set on item.sold, Amount only on proceeds.withdrawn, and Key is
// zero for proceeds.withdrawn.
type Notification struct {
	ID     string
	Kind   NotificationKind
	Key    AssetKey
	Seller common.Address
	Buyer  common.Address
	Price  uint256.Int
	Amount uint256.Int
	At     time.Time
}
