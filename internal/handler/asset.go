package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/nftmarket/internal/domain"
	"github.com/efreitasn/nftmarket/internal/service"
)

// AssetHandler handles HTTP requests against the dev registry and wallet.
type AssetHandler struct {
	assetSvc *service.AssetService
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assetSvc *service.AssetService) *AssetHandler {
	return &AssetHandler{assetSvc: assetSvc}
}

type mintRequest struct {
	To string `json:"to"`
}

type approveRequest struct {
	Operator string `json:"operator"`
	ForAll   bool   `json:"for_all"`
	Revoke   bool   `json:"revoke"`
}

type fundRequest struct {
	Amount    string `json:"amount"`
	AmountEth string `json:"amount_eth"`
}

type tokenResponse struct {
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
	Owner      string `json:"owner"`
}

type balanceResponse struct {
	Address    string `json:"address"`
	Balance    string `json:"balance"`
	BalanceEth string `json:"balance_eth"`
}

// Mint handles POST /collections/{collection}/tokens.
func (h *AssetHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	key, err := h.assetSvc.Mint(chi.URLParam(r, "collection"), req.To)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	owner, _ := domain.ParseAddress(req.To)
	WriteJSON(w, http.StatusCreated, tokenResponse{
		Collection: key.Collection.Hex(),
		TokenID:    key.TokenID.Dec(),
		Owner:      owner.Hex(),
	})
}

// Approve handles POST /collections/{collection}/tokens/{token_id}/approve.
func (h *AssetHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := ParseOptionalJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	err := h.assetSvc.Approve(r.Context(), service.ApproveRequest{
		Caller:     r.Header.Get(callerHeader),
		Collection: chi.URLParam(r, "collection"),
		TokenID:    chi.URLParam(r, "token_id"),
		Operator:   req.Operator,
		ForAll:     req.ForAll,
		Revoke:     req.Revoke,
	})
	if err != nil {
		mapMarketError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// OwnerOf handles GET /collections/{collection}/tokens/{token_id}/owner.
func (h *AssetHandler) OwnerOf(w http.ResponseWriter, r *http.Request) {
	collection, tokenID := chi.URLParam(r, "collection"), chi.URLParam(r, "token_id")
	owner, err := h.assetSvc.OwnerOf(r.Context(), collection, tokenID)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	coll, _ := domain.ParseAddress(collection)
	id, _ := domain.ParseTokenID(tokenID)
	WriteJSON(w, http.StatusOK, tokenResponse{
		Collection: coll.Hex(),
		TokenID:    id.Dec(),
		Owner:      owner.Hex(),
	})
}

// Fund handles POST /accounts/{address}/fund.
func (h *AssetHandler) Fund(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	address := chi.URLParam(r, "address")
	bal, err := h.assetSvc.Fund(address, req.Amount, req.AmountEth)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	addr, _ := domain.ParseAddress(address)
	WriteJSON(w, http.StatusOK, balanceResponse{
		Address:    addr.Hex(),
		Balance:    bal.Dec(),
		BalanceEth: domain.FormatEther(bal),
	})
}

// Balance handles GET /accounts/{address}/balance.
func (h *AssetHandler) Balance(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	bal, err := h.assetSvc.Balance(address)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	addr, _ := domain.ParseAddress(address)
	WriteJSON(w, http.StatusOK, balanceResponse{
		Address:    addr.Hex(),
		Balance:    bal.Dec(),
		BalanceEth: domain.FormatEther(bal),
	})
}
