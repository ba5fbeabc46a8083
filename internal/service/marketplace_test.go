package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/efreitasn/nftmarket/internal/domain"
	"github.com/efreitasn/nftmarket/internal/engine"
	"github.com/efreitasn/nftmarket/internal/journal"
	"github.com/efreitasn/nftmarket/internal/registry"
	"github.com/efreitasn/nftmarket/internal/store"
	"github.com/efreitasn/nftmarket/internal/wallet"
)

const marketHex = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

type testServices struct {
	market *MarketplaceService
	assets *AssetService
	reg    *registry.Registry
}

func newTestServices(t *testing.T, j Journal) *testServices {
	t.Helper()
	reg := registry.New()
	w := wallet.New()
	marketAddr := common.HexToAddress(marketHex)
	m := engine.NewMarketplace(marketAddr, store.NewListingStore(), store.NewProceedsLedger(), reg, w)

	logger := discardLogger()
	webhookSvc := NewWebhookService(store.NewWebhookStore(), time.Second, logger)
	return &testServices{
		market: NewMarketplaceService(m, w, store.NewNotificationStore(), j, webhookSvc, logger),
		assets: NewAssetService(reg, w, marketAddr),
		reg:    reg,
	}
}

// mintApproved mints the next token of the test collection for seller and
// approves the marketplace on it.
func (ts *testServices) mintApproved(t *testing.T) domain.AssetKey {
	t.Helper()
	key, err := ts.assets.Mint(collectionHex, sellerHex)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	err = ts.assets.Approve(context.Background(), ApproveRequest{
		Caller:     sellerHex,
		Collection: collectionHex,
		TokenID:    key.TokenID.Dec(),
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return key
}

func TestMarketplaceService_FullLifecycle(t *testing.T) {
	ts := newTestServices(t, nil)
	ctx := context.Background()
	key := ts.mintApproved(t)
	tokenID := key.TokenID.Dec()

	listing, err := ts.market.ListItem(ctx, ListItemRequest{
		Caller: sellerHex, Collection: collectionHex, TokenID: tokenID, PriceEth: "1.5",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if listing.Price.Dec() != "1500000000000000000" {
		t.Errorf("price = %s, want 1.5 ether in wei", listing.Price.Dec())
	}
	if listing.Seller != common.HexToAddress(sellerHex) {
		t.Errorf("seller = %s", listing.Seller.Hex())
	}

	updated, err := ts.market.UpdateListing(ctx, UpdateListingRequest{
		Caller: sellerHex, Collection: collectionHex, TokenID: tokenID, Price: "2000",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Price.Uint64() != 2000 {
		t.Errorf("price = %s, want 2000", updated.Price.Dec())
	}

	if _, err := ts.assets.Fund(buyerHex, "2500", ""); err != nil {
		t.Fatalf("fund: %v", err)
	}
	sold, err := ts.market.BuyItem(ctx, BuyItemRequest{
		Caller: buyerHex, Collection: collectionHex, TokenID: tokenID, Value: "2000",
	})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if sold.Kind != domain.KindItemSold || sold.Buyer != common.HexToAddress(buyerHex) {
		t.Errorf("unexpected notification %+v", sold)
	}

	owner, err := ts.assets.OwnerOf(ctx, collectionHex, tokenID)
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if owner != common.HexToAddress(buyerHex) {
		t.Errorf("owner = %s, want buyer", owner.Hex())
	}

	proceeds, err := ts.market.GetProceeds(sellerHex)
	if err != nil {
		t.Fatalf("proceeds: %v", err)
	}
	if proceeds.Uint64() != 2000 {
		t.Errorf("proceeds = %s, want 2000", proceeds.Dec())
	}
	if st := ts.market.Stats(); st.ActiveListings != 0 || st.Escrowed.Uint64() != 2000 {
		t.Errorf("stats = %+v", st)
	}

	withdrawn, err := ts.market.WithdrawProceeds(ctx, sellerHex)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if withdrawn.Amount.Uint64() != 2000 {
		t.Errorf("withdrawn = %s, want 2000", withdrawn.Amount.Dec())
	}
	bal, err := ts.assets.Balance(sellerHex)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Uint64() != 2000 {
		t.Errorf("wallet balance = %s, want 2000", bal.Dec())
	}
	if bal, _ := ts.assets.Balance(buyerHex); bal.Uint64() != 500 {
		t.Errorf("buyer balance = %s, want 500", bal.Dec())
	}

	activity, err := ts.market.Activity(ctx, "", 0)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	wantKinds := []domain.NotificationKind{
		domain.KindProceedsWithdrawn,
		domain.KindItemSold,
		domain.KindListingUpdated,
		domain.KindListingCreated,
	}
	if len(activity) != len(wantKinds) {
		t.Fatalf("got %d notifications, want %d", len(activity), len(wantKinds))
	}
	for i, k := range wantKinds {
		if activity[i].Kind != k {
			t.Errorf("activity[%d] = %s, want %s", i, activity[i].Kind, k)
		}
	}

	byCollection, err := ts.market.Activity(ctx, collectionHex, 0)
	if err != nil {
		t.Fatalf("activity by collection: %v", err)
	}
	if len(byCollection) != 3 {
		t.Errorf("got %d collection notifications, want 3", len(byCollection))
	}
}

func TestMarketplaceService_CancelAndReads(t *testing.T) {
	ts := newTestServices(t, nil)
	ctx := context.Background()
	cheap := ts.mintApproved(t)
	dear := ts.mintApproved(t)

	for _, l := range []struct {
		key   domain.AssetKey
		price string
	}{{dear, "900"}, {cheap, "100"}} {
		if _, err := ts.market.ListItem(ctx, ListItemRequest{
			Caller: sellerHex, Collection: collectionHex, TokenID: l.key.TokenID.Dec(), Price: l.price,
		}); err != nil {
			t.Fatalf("list %s: %v", l.key, err)
		}
	}

	floor, err := ts.market.Floor(collectionHex)
	if err != nil {
		t.Fatalf("floor: %v", err)
	}
	if floor.Key != cheap {
		t.Errorf("floor = %s, want %s", floor.Key, cheap)
	}

	listings, err := ts.market.Listings(collectionHex, 0)
	if err != nil {
		t.Fatalf("listings: %v", err)
	}
	if len(listings) != 2 || listings[0].Key != cheap || listings[1].Key != dear {
		t.Fatalf("unexpected listing order: %+v", listings)
	}

	if _, err := ts.market.CancelListing(ctx, buyerHex, collectionHex, cheap.TokenID.Dec()); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("cancel by stranger: got %v, want ErrNotOwner", err)
	}
	if _, err := ts.market.CancelListing(ctx, sellerHex, collectionHex, cheap.TokenID.Dec()); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := ts.market.GetListing(collectionHex, cheap.TokenID.Dec()); !errors.Is(err, domain.ErrNotListed) {
		t.Errorf("get canceled listing: got %v, want ErrNotListed", err)
	}

	floor, err = ts.market.Floor(collectionHex)
	if err != nil {
		t.Fatalf("floor: %v", err)
	}
	if floor.Key != dear {
		t.Errorf("floor after cancel = %s, want %s", floor.Key, dear)
	}
}

func TestMarketplaceService_EmptyFloor(t *testing.T) {
	ts := newTestServices(t, nil)
	if _, err := ts.market.Floor(collectionHex); !errors.Is(err, domain.ErrNotListed) {
		t.Errorf("got %v, want ErrNotListed", err)
	}
}

func TestMarketplaceService_EngineErrorsPassThrough(t *testing.T) {
	ts := newTestServices(t, nil)
	ctx := context.Background()
	key := ts.mintApproved(t)
	tokenID := key.TokenID.Dec()

	if _, err := ts.market.ListItem(ctx, ListItemRequest{
		Caller: sellerHex, Collection: collectionHex, TokenID: tokenID, Price: "0",
	}); !errors.Is(err, domain.ErrInvalidPrice) {
		t.Fatalf("zero price: got %v, want ErrInvalidPrice", err)
	}
	if _, err := ts.market.ListItem(ctx, ListItemRequest{
		Caller: sellerHex, Collection: collectionHex, TokenID: tokenID, Price: "10",
	}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := ts.assets.Fund(buyerHex, "9", ""); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := ts.market.BuyItem(ctx, BuyItemRequest{
		Caller: buyerHex, Collection: collectionHex, TokenID: tokenID, Value: "9",
	}); !errors.Is(err, domain.ErrPriceMismatch) {
		t.Fatalf("underpay: got %v, want ErrPriceMismatch", err)
	}
	if bal, _ := ts.assets.Balance(buyerHex); bal.Uint64() != 9 {
		t.Fatalf("failed buy must refund the buyer, balance = %s", bal.Dec())
	}
	if _, err := ts.market.WithdrawProceeds(ctx, sellerHex); !errors.Is(err, domain.ErrNoProceeds) {
		t.Fatalf("withdraw: got %v, want ErrNoProceeds", err)
	}
	if _, err := ts.market.ListItem(ctx, ListItemRequest{
		Caller: sellerHex, Collection: collectionHex, TokenID: "999", Price: "10",
	}); !errors.Is(err, domain.ErrUnknownAsset) {
		t.Fatalf("unknown token: got %v, want ErrUnknownAsset", err)
	}

	activity, _ := ts.market.Activity(ctx, "", 0)
	if len(activity) != 1 {
		t.Errorf("failed operations must not publish; got %d notifications", len(activity))
	}
}

func TestMarketplaceService_BuyChargesBuyer(t *testing.T) {
	ts := newTestServices(t, nil)
	ctx := context.Background()
	key := ts.mintApproved(t)
	tokenID := key.TokenID.Dec()

	if _, err := ts.market.ListItem(ctx, ListItemRequest{
		Caller: sellerHex, Collection: collectionHex, TokenID: tokenID, PriceEth: "1",
	}); err != nil {
		t.Fatalf("list: %v", err)
	}

	// An unfunded buyer cannot pay, and nothing changes hands.
	if _, err := ts.market.BuyItem(ctx, BuyItemRequest{
		Caller: buyerHex, Collection: collectionHex, TokenID: tokenID, ValueEth: "1",
	}); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("unfunded buy: got %v, want ErrInsufficientFunds", err)
	}
	if _, err := ts.market.GetListing(collectionHex, tokenID); err != nil {
		t.Fatalf("listing must survive an unfunded buy: %v", err)
	}

	if _, err := ts.assets.Fund(buyerHex, "", "1"); err != nil {
		t.Fatalf("fund: %v", err)
	}

	// A receiver that refuses the token makes the sale fail; the payment
	// comes back.
	ts.reg.OnReceive(common.HexToAddress(buyerHex), func(context.Context, common.Address, common.Address, domain.AssetKey) error {
		return errors.New("not accepting tokens")
	})
	if _, err := ts.market.BuyItem(ctx, BuyItemRequest{
		Caller: buyerHex, Collection: collectionHex, TokenID: tokenID, ValueEth: "1",
	}); !errors.Is(err, domain.ErrTransferRejected) {
		t.Fatalf("rejected buy: got %v, want ErrTransferRejected", err)
	}
	if bal, _ := ts.assets.Balance(buyerHex); domain.FormatEther(bal) != "1" {
		t.Fatalf("rejected buy must refund, balance = %s", bal.Dec())
	}
	ts.reg.OnReceive(common.HexToAddress(buyerHex), nil)

	if _, err := ts.market.BuyItem(ctx, BuyItemRequest{
		Caller: buyerHex, Collection: collectionHex, TokenID: tokenID, ValueEth: "1",
	}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if bal, _ := ts.assets.Balance(buyerHex); !bal.IsZero() {
		t.Errorf("buyer balance = %s, want 0", bal.Dec())
	}

	// Value paid in equals value escrowed plus value paid out.
	if _, err := ts.market.WithdrawProceeds(ctx, sellerHex); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	sellerBal, _ := ts.assets.Balance(sellerHex)
	escrowed := ts.market.Stats().Escrowed
	if domain.FormatEther(sellerBal) != "1" || !escrowed.IsZero() {
		t.Errorf("seller balance = %s, escrowed = %s", sellerBal.Dec(), escrowed.Dec())
	}
}

func TestMarketplaceService_Validation(t *testing.T) {
	ts := newTestServices(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  ListItemRequest
	}{
		{"missing caller", ListItemRequest{Collection: collectionHex, TokenID: "1", Price: "1"}},
		{"zero caller", ListItemRequest{Caller: "0x0000000000000000000000000000000000000000", Collection: collectionHex, TokenID: "1", Price: "1"}},
		{"bad collection", ListItemRequest{Caller: sellerHex, Collection: "nft", TokenID: "1", Price: "1"}},
		{"missing token", ListItemRequest{Caller: sellerHex, Collection: collectionHex, Price: "1"}},
		{"negative token", ListItemRequest{Caller: sellerHex, Collection: collectionHex, TokenID: "-1", Price: "1"}},
		{"missing price", ListItemRequest{Caller: sellerHex, Collection: collectionHex, TokenID: "1"}},
		{"both prices", ListItemRequest{Caller: sellerHex, Collection: collectionHex, TokenID: "1", Price: "1", PriceEth: "1"}},
		{"fractional wei", ListItemRequest{Caller: sellerHex, Collection: collectionHex, TokenID: "1", PriceEth: "0.0000000000000000001"}},
		{"hex price", ListItemRequest{Caller: sellerHex, Collection: collectionHex, TokenID: "1", Price: "0x10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.market.ListItem(ctx, tt.req)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestMarketplaceService_JournalBackedActivity(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	ts := newTestServices(t, j)
	ctx := context.Background()
	key := ts.mintApproved(t)

	created, err := ts.market.ListItem(ctx, ListItemRequest{
		Caller: sellerHex, Collection: collectionHex, TokenID: key.TokenID.Dec(), Price: "42",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	recorded, err := j.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("journal recent: %v", err)
	}
	if len(recorded) != 1 || recorded[0].Kind != domain.KindListingCreated {
		t.Fatalf("unexpected journal contents: %+v", recorded)
	}
	if recorded[0].Key != created.Key || recorded[0].Price.Uint64() != 42 {
		t.Errorf("journal entry = %+v", recorded[0])
	}

	activity, err := ts.market.Activity(ctx, "", 10)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(activity) != 1 || activity[0].ID != recorded[0].ID {
		t.Errorf("activity should come from the journal, got %+v", activity)
	}
}
