package operator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"pickflow/models"
	"pickflow/token"
)

type fakeStore struct {
	orders   []models.Order
	updates  []models.Order
	statuses map[string]string
}

func (f *fakeStore) Orders() []models.Order {
	return f.orders
}

func (f *fakeStore) Get(id string) (models.Order, bool) {
	for _, o := range f.orders {
		if o.ID == id {
			return o, true
		}
	}
	return models.Order{}, false
}

func (f *fakeStore) Update(_ context.Context, order models.Order) error {
	f.updates = append(f.updates, order)
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id, status string) error {
	if f.statuses == nil {
		f.statuses = map[string]string{}
	}
	f.statuses[id] = status
	return nil
}

func testStore() *fakeStore {
	return &fakeStore{orders: []models.Order{
		{
			ID:           "o-1",
			OrderNumber:  "1001",
			PalletNumber: "P1",
			Status:       models.StatusPending,
			Items: []models.PickingItem{
				{ItemID: "i-1", Line: "1", Location: "A-01", Article: "Widget", Quantity: 2, Unit: "UN", Serials: models.SerialList{}},
			},
		},
		{ID: "o-2", OrderNumber: "1002", PalletNumber: "P2", Status: models.StatusCompleted},
	}}
}

func operatorRouter(store *fakeStore) http.Handler {
	r := chi.NewRouter()
	r.Get("/operator", BrowsePageQueryHandler(store))
	r.Get("/operator/orders/{id}", OrderPageQueryHandler(store))
	r.Get("/operator/orders/{id}/items/{itemID}", ItemPageQueryHandler(store))
	r.Post("/operator/orders/{id}/items/{itemID}", ConfirmItemCommandHandler(store))
	r.Post("/operator/orders/{id}/finalize", FinalizeOrderCommandHandler(store))
	r.Post("/operator/resolve", ResolveScanCommandHandler(store))
	return r
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBrowsePageHidesCompletedOrders(t *testing.T) {
	rec := httptest.NewRecorder()
	operatorRouter(testStore()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/operator", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "1001") {
		t.Fatalf("browse page missing active order:\n%s", body)
	}
	if strings.Contains(body, "1002") {
		t.Fatalf("browse page lists completed order:\n%s", body)
	}
}

func TestConfirmItemPushesTrimmedSerials(t *testing.T) {
	store := testStore()
	rec := postForm(t, operatorRouter(store), "/operator/orders/o-1/items/i-1", url.Values{
		"serials": {" SN-A ", "", "SN-B"},
	})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/operator/orders/o-1" {
		t.Fatalf("redirect = %q, want order page", got)
	}
	if len(store.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(store.updates))
	}
	pushed := store.updates[0]
	if pushed.Status != models.StatusPicking {
		t.Fatalf("pushed status = %s, want PICKING", pushed.Status)
	}
	item, _ := pushed.Item("i-1")
	if len(item.Serials) != 2 || item.Serials[0] != "SN-A" || item.Serials[1] != "SN-B" {
		t.Fatalf("pushed serials = %v", item.Serials)
	}
	if item.ScannedCount != 2 {
		t.Fatalf("pushed scanned count = %d, want 2", item.ScannedCount)
	}
}

func TestConfirmItemUnknownOrderRedirectsToBrowse(t *testing.T) {
	store := testStore()
	rec := postForm(t, operatorRouter(store), "/operator/orders/o-9/items/i-1", url.Values{})

	if got := rec.Header().Get("Location"); !strings.HasPrefix(got, "/operator?notice=") {
		t.Fatalf("redirect = %q, want browse with notice", got)
	}
	if len(store.updates) != 0 {
		t.Fatalf("unknown order must not push, got %d updates", len(store.updates))
	}
}

func TestConfirmItemCompletedOrderRedirectsToBrowse(t *testing.T) {
	store := testStore()
	rec := postForm(t, operatorRouter(store), "/operator/orders/o-2/items/i-1", url.Values{})

	loc := rec.Header().Get("Location")
	if !strings.Contains(loc, url.QueryEscape("already finalized")) {
		t.Fatalf("redirect = %q, want finalized notice", loc)
	}
}

func TestFinalizePushesCompletedStatus(t *testing.T) {
	store := testStore()
	rec := postForm(t, operatorRouter(store), "/operator/orders/o-1/finalize", url.Values{})

	if got := store.statuses["o-1"]; got != models.StatusCompleted {
		t.Fatalf("pushed status = %q, want COMPLETED", got)
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, url.QueryEscape("Order finalized")) {
		t.Fatalf("redirect = %q, want finalized notice", loc)
	}
}

func TestResolveScanRoutesToOrder(t *testing.T) {
	store := testStore()
	payload, err := token.Encode(store.orders[0])
	if err != nil {
		t.Fatalf("encode token: %v", err)
	}
	rec := postForm(t, operatorRouter(store), "/operator/resolve", url.Values{"payload": {payload}})

	if got := rec.Header().Get("Location"); got != "/operator/orders/o-1" {
		t.Fatalf("redirect = %q, want order page", got)
	}
}

func TestResolveScanForeignCodeKeepsScanning(t *testing.T) {
	rec := postForm(t, operatorRouter(testStore()), "/operator/resolve", url.Values{
		"payload": {`{"s":"WMS","id":"x"}`},
	})

	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "/operator/scan?notice=") {
		t.Fatalf("redirect = %q, want scan page with notice", loc)
	}
}

func TestResolveScanUnknownOrderAsksForRetry(t *testing.T) {
	store := testStore()
	rec := postForm(t, operatorRouter(store), "/operator/resolve", url.Values{
		"payload": {`{"s":"SGA","id":"o-9","n":"1009","p":"P9"}`},
	})

	loc := rec.Header().Get("Location")
	if !strings.Contains(loc, url.QueryEscape("wait a moment")) {
		t.Fatalf("redirect = %q, want retry notice", loc)
	}
}
