package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Webhook is a subscriber's registration for one notification kind.
type Webhook struct {
	WebhookID  string
	Subscriber common.Address
	Event      NotificationKind
	URL        string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
