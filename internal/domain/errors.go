package domain

import "errors"

// Sentinel errors for marketplace operations.
// The handler layer maps these to HTTP status codes.
var (
	ErrInvalidPrice              = errors.New("invalid_price")
	ErrAlreadyListed             = errors.New("already_listed")
	ErrNotListed                 = errors.New("not_listed")
	ErrNotOwner                  = errors.New("not_owner")
	ErrNotApprovedForMarketplace = errors.New("not_approved_for_marketplace")
	ErrPriceMismatch             = errors.New("price_mismatch")
	ErrTransferRejected          = errors.New("transfer_rejected")
	ErrNoProceeds                = errors.New("no_proceeds")
	ErrReentrancy                = errors.New("reentrancy")
	ErrUnknownAsset              = errors.New("unknown_asset")
	ErrAmountOverflow            = errors.New("amount_overflow")
	ErrInsufficientFunds         = errors.New("insufficient_funds")
	ErrWebhookNotFound           = errors.New("webhook_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
