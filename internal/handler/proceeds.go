package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/nftmarket/internal/domain"
	"github.com/efreitasn/nftmarket/internal/service"
)

// ProceedsHandler handles HTTP requests for seller proceeds.
type ProceedsHandler struct {
	marketSvc *service.MarketplaceService
}

// NewProceedsHandler creates a new ProceedsHandler.
func NewProceedsHandler(marketSvc *service.MarketplaceService) *ProceedsHandler {
	return &ProceedsHandler{marketSvc: marketSvc}
}

type proceedsResponse struct {
	Seller      string `json:"seller"`
	Proceeds    string `json:"proceeds"`
	ProceedsEth string `json:"proceeds_eth"`
}

// Get handles GET /proceeds/{seller}.
func (h *ProceedsHandler) Get(w http.ResponseWriter, r *http.Request) {
	seller := chi.URLParam(r, "seller")
	amount, err := h.marketSvc.GetProceeds(seller)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	addr, _ := domain.ParseAddress(seller)
	WriteJSON(w, http.StatusOK, proceedsResponse{
		Seller:      addr.Hex(),
		Proceeds:    amount.Dec(),
		ProceedsEth: domain.FormatEther(amount),
	})
}

// Withdraw handles POST /proceeds/withdraw. The caller is taken from the
// X-Caller header; the body is ignored.
func (h *ProceedsHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	n, err := h.marketSvc.WithdrawProceeds(r.Context(), r.Header.Get(callerHeader))
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildNotificationResponse(n))
}
