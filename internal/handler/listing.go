package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/nftmarket/internal/domain"
	"github.com/efreitasn/nftmarket/internal/service"
)

// ListingHandler handles HTTP requests for listing endpoints.
type ListingHandler struct {
	marketSvc *service.MarketplaceService
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(marketSvc *service.MarketplaceService) *ListingHandler {
	return &ListingHandler{marketSvc: marketSvc}
}

// listItemRequest is the JSON request body for POST /listings.
type listItemRequest struct {
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
	Price      string `json:"price"`
	PriceEth   string `json:"price_eth"`
}

// updateListingRequest is the JSON request body for PATCH /listings/{collection}/{token_id}.
type updateListingRequest struct {
	Price    string `json:"price"`
	PriceEth string `json:"price_eth"`
}

// buyItemRequest is the JSON request body for POST /listings/{collection}/{token_id}/buy.
type buyItemRequest struct {
	Value    string `json:"value"`
	ValueEth string `json:"value_eth"`
}

// listingResponse is the JSON representation of an active listing.
// Amounts are decimal wei strings with an ether rendering alongside.
type listingResponse struct {
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
	Seller     string `json:"seller"`
	Price      string `json:"price"`
	PriceEth   string `json:"price_eth"`
	ListedAt   string `json:"listed_at"`
	UpdatedAt  string `json:"updated_at"`
}

type listingListResponse struct {
	Listings []listingResponse `json:"listings"`
}

// notificationResponse is the JSON representation of a notification.
// Fields that do not apply to the kind are omitted.
type notificationResponse struct {
	NotificationID string `json:"notification_id"`
	Kind           string `json:"kind"`
	Collection     string `json:"collection,omitempty"`
	TokenID        string `json:"token_id,omitempty"`
	Seller         string `json:"seller"`
	Buyer          string `json:"buyer,omitempty"`
	Price          string `json:"price,omitempty"`
	PriceEth       string `json:"price_eth,omitempty"`
	Amount         string `json:"amount,omitempty"`
	AmountEth      string `json:"amount_eth,omitempty"`
	At             string `json:"at"`
}

type activityResponse struct {
	Notifications []notificationResponse `json:"notifications"`
}

type statsResponse struct {
	Marketplace    string `json:"marketplace"`
	ActiveListings int    `json:"active_listings"`
	Escrowed       string `json:"escrowed"`
	EscrowedEth    string `json:"escrowed_eth"`
}

// List handles POST /listings.
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	var req listItemRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	listing, err := h.marketSvc.ListItem(r.Context(), service.ListItemRequest{
		Caller:     r.Header.Get(callerHeader),
		Collection: req.Collection,
		TokenID:    req.TokenID,
		Price:      req.Price,
		PriceEth:   req.PriceEth,
	})
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildListingResponse(listing))
}

// Get handles GET /listings/{collection}/{token_id}.
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	listing, err := h.marketSvc.GetListing(chi.URLParam(r, "collection"), chi.URLParam(r, "token_id"))
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildListingResponse(listing))
}

// Update handles PATCH /listings/{collection}/{token_id}.
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateListingRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	listing, err := h.marketSvc.UpdateListing(r.Context(), service.UpdateListingRequest{
		Caller:     r.Header.Get(callerHeader),
		Collection: chi.URLParam(r, "collection"),
		TokenID:    chi.URLParam(r, "token_id"),
		Price:      req.Price,
		PriceEth:   req.PriceEth,
	})
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildListingResponse(listing))
}

// Cancel handles DELETE /listings/{collection}/{token_id}.
func (h *ListingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	n, err := h.marketSvc.CancelListing(r.Context(),
		r.Header.Get(callerHeader),
		chi.URLParam(r, "collection"),
		chi.URLParam(r, "token_id"),
	)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildNotificationResponse(n))
}

// Buy handles POST /listings/{collection}/{token_id}/buy.
func (h *ListingHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var req buyItemRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	n, err := h.marketSvc.BuyItem(r.Context(), service.BuyItemRequest{
		Caller:     r.Header.Get(callerHeader),
		Collection: chi.URLParam(r, "collection"),
		TokenID:    chi.URLParam(r, "token_id"),
		Value:      req.Value,
		ValueEth:   req.ValueEth,
	})
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildNotificationResponse(n))
}

// ByCollection handles GET /collections/{collection}/listings.
func (h *ListingHandler) ByCollection(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	listings, err := h.marketSvc.Listings(chi.URLParam(r, "collection"), limit)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := listingListResponse{Listings: make([]listingResponse, len(listings))}
	for i, l := range listings {
		resp.Listings[i] = buildListingResponse(l)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Floor handles GET /collections/{collection}/floor.
func (h *ListingHandler) Floor(w http.ResponseWriter, r *http.Request) {
	listing, err := h.marketSvc.Floor(chi.URLParam(r, "collection"))
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildListingResponse(listing))
}

// Activity handles GET /activity.
func (h *ListingHandler) Activity(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	notifications, err := h.marketSvc.Activity(r.Context(), r.URL.Query().Get("collection"), limit)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := activityResponse{Notifications: make([]notificationResponse, len(notifications))}
	for i, n := range notifications {
		resp.Notifications[i] = buildNotificationResponse(n)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Stats handles GET /stats.
func (h *ListingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st := h.marketSvc.Stats()
	WriteJSON(w, http.StatusOK, statsResponse{
		Marketplace:    h.marketSvc.Address().Hex(),
		ActiveListings: st.ActiveListings,
		Escrowed:       st.Escrowed.Dec(),
		EscrowedEth:    domain.FormatEther(st.Escrowed),
	})
}

// parseLimit reads the optional limit query parameter (default 50, max 500).
// It writes a 400 response and returns false on invalid input.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be an integer between 1 and 500")
			return 0, false
		}
		limit = n
	}
	return limit, true
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func buildListingResponse(l domain.Listing) listingResponse {
	return listingResponse{
		Collection: l.Key.Collection.Hex(),
		TokenID:    l.Key.TokenID.Dec(),
		Seller:     l.Seller.Hex(),
		Price:      l.Price.Dec(),
		PriceEth:   domain.FormatEther(l.Price),
		ListedAt:   formatTime(l.ListedAt),
		UpdatedAt:  formatTime(l.UpdatedAt),
	}
}

func buildNotificationResponse(n domain.Notification) notificationResponse {
	resp := notificationResponse{
		NotificationID: n.ID,
		Kind:           string(n.Kind),
		Seller:         n.Seller.Hex(),
		At:             formatTime(n.At),
	}
	if n.Kind == domain.KindProceedsWithdrawn {
		resp.Amount = n.Amount.Dec()
		resp.AmountEth = domain.FormatEther(n.Amount)
		return resp
	}
	resp.Collection = n.Key.Collection.Hex()
	resp.TokenID = n.Key.TokenID.Dec()
	if !n.Price.IsZero() {
		resp.Price = n.Price.Dec()
		resp.PriceEth = domain.FormatEther(n.Price)
	}
	if n.Kind == domain.KindItemSold {
		resp.Buyer = n.Buyer.Hex()
	}
	return resp
}
