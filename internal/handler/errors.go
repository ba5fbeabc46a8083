package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/efreitasn/nftmarket/internal/domain"
)

// mapMarketError maps domain errors to HTTP responses for marketplace,
// proceeds and asset endpoints.
func mapMarketError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	// A rejected transfer can wrap another sentinel raised by the receiver.
	switch {
	case errors.Is(err, domain.ErrTransferRejected):
		WriteError(w, http.StatusBadGateway, "transfer_rejected", err.Error())
	case errors.Is(err, domain.ErrNotListed):
		WriteError(w, http.StatusNotFound, "not_listed", "Asset is not listed")
	case errors.Is(err, domain.ErrUnknownAsset):
		WriteError(w, http.StatusNotFound, "unknown_asset", "Asset does not exist")
	case errors.Is(err, domain.ErrAlreadyListed):
		WriteError(w, http.StatusConflict, "already_listed", "Asset is already listed")
	case errors.Is(err, domain.ErrReentrancy):
		WriteError(w, http.StatusConflict, "reentrancy", "Marketplace call made from inside another marketplace call")
	case errors.Is(err, domain.ErrNotOwner):
		WriteError(w, http.StatusForbidden, "not_owner", "Caller does not own the asset or listing")
	case errors.Is(err, domain.ErrNotApprovedForMarketplace):
		WriteError(w, http.StatusForbidden, "not_approved_for_marketplace", "Marketplace is not approved to transfer the asset")
	case errors.Is(err, domain.ErrInvalidPrice):
		WriteError(w, http.StatusBadRequest, "invalid_price", "Price must be greater than zero")
	case errors.Is(err, domain.ErrPriceMismatch):
		WriteError(w, http.StatusUnprocessableEntity, "price_mismatch", "Payment does not equal the listed price")
	case errors.Is(err, domain.ErrNoProceeds):
		WriteError(w, http.StatusUnprocessableEntity, "no_proceeds", "Caller has no proceeds to withdraw")
	case errors.Is(err, domain.ErrInsufficientFunds):
		WriteError(w, http.StatusUnprocessableEntity, "insufficient_funds", "Caller balance does not cover the payment")
	case errors.Is(err, domain.ErrAmountOverflow):
		WriteError(w, http.StatusUnprocessableEntity, "amount_overflow", "Amount does not fit in 256 bits")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "Marketplace is busy, retry later")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
