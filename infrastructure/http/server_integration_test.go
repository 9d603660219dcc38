package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"pickflow/extract"
	"pickflow/infrastructure/audit"
	"pickflow/infrastructure/orderstore"
	"pickflow/infrastructure/sqlite"
	"pickflow/models"
	"pickflow/token"
)

type integrationEnv struct {
	server *httptest.Server
	store  *orderstore.Store
}

func setupIntegrationServer(t *testing.T) (*integrationEnv, *http.Client) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "server-integration.db")
	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	migrationsDir := filepath.Join(filepath.Dir(file), "..", "sqlite", "migrations")
	if err := sqlite.ApplyMigrations(context.Background(), db, migrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store, err := orderstore.NewStore(context.Background(), db, audit.NewService())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	s := NewServer("127.0.0.1:0", store, extract.NewExtractor("integration-test-key", slog.New(slog.DiscardHandler)))
	ts := httptest.NewServer(s.router)
	env := &integrationEnv{server: ts, store: store}
	t.Cleanup(func() {
		env.server.Close()
		_ = db.Close()
	})

	return env, newHTTPClient(t)
}

func newHTTPClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func csrfToken(t *testing.T, client *http.Client, baseURL string) string {
	t.Helper()
	resp, err := client.Get(baseURL + "/operator")
	if err != nil {
		t.Fatalf("prime csrf cookie: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	u, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("parse base url: %v", err)
	}
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == "X-CSRF-Token" {
			return c.Value
		}
	}
	return ""
}

func postForm(t *testing.T, client *http.Client, baseURL, path string, data url.Values) *http.Response {
	t.Helper()
	if data == nil {
		data = url.Values{}
	}
	if token := csrfToken(t, client, baseURL); token != "" {
		data.Set("_csrf", token)
	}
	resp, err := client.PostForm(baseURL+path, data)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp
}

func apiCreateOrder(t *testing.T, client *http.Client, baseURL string, order models.Order) string {
	t.Helper()
	body, err := json.Marshal(order)
	if err != nil {
		t.Fatalf("marshal order: %v", err)
	}
	resp, err := client.Post(baseURL+"/api/orders", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/orders failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(resp.Body)
		t.Fatalf("create order status %d: %s", resp.StatusCode, payload)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("create response missing id")
	}
	return created.ID
}

func apiGetOrder(t *testing.T, client *http.Client, baseURL, id string) models.Order {
	t.Helper()
	resp, err := client.Get(baseURL + "/api/orders/" + id)
	if err != nil {
		t.Fatalf("GET /api/orders/%s failed: %v", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get order status %d", resp.StatusCode)
	}
	var order models.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	return order
}

func testOrder(orderNumber, palletNumber string) models.Order {
	return models.Order{
		OrderNumber:  orderNumber,
		PalletNumber: palletNumber,
		Status:       models.StatusPending,
		Items: []models.PickingItem{
			{ItemID: "i-0-1", Line: "1", Location: "A-01", Article: "Widget", Quantity: 2, Unit: "UN", Serials: models.SerialList{}},
			{ItemID: "i-1-1", Line: "2", Location: "B-07", Article: "Cable", Quantity: 1, Unit: "UN", Serials: models.SerialList{}},
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	env, client := setupIntegrationServer(t)
	resp, err := client.Get(env.server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}
}

func TestAPIOrderRoundTrip(t *testing.T) {
	env, client := setupIntegrationServer(t)
	id := apiCreateOrder(t, client, env.server.URL, testOrder("1001", "P100"))

	order := apiGetOrder(t, client, env.server.URL, id)
	if order.OrderNumber != "1001" || order.Status != models.StatusPending {
		t.Fatalf("unexpected order: %+v", order)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}

	resp, err := client.Get(env.server.URL + "/api/orders/no-such-order")
	if err != nil {
		t.Fatalf("GET missing order: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing order, got %d", resp.StatusCode)
	}
}

func TestCSRFRequiredOnBrowserForms(t *testing.T) {
	env, client := setupIntegrationServer(t)

	resp, err := client.PostForm(env.server.URL+"/operator/resolve", url.Values{"payload": {"x"}})
	if err != nil {
		t.Fatalf("POST without csrf: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf token, got %d", resp.StatusCode)
	}
}

func TestScanResolveFlow(t *testing.T) {
	env, client := setupIntegrationServer(t)
	id := apiCreateOrder(t, client, env.server.URL, testOrder("1001", "P100"))
	order := apiGetOrder(t, client, env.server.URL, id)

	payload, err := token.Encode(order)
	if err != nil {
		t.Fatalf("encode token: %v", err)
	}
	resp := postForm(t, client, env.server.URL, "/operator/resolve", url.Values{"payload": {payload}})
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != "/operator/orders/"+id {
		t.Fatalf("expected redirect to order page, got %q", loc)
	}

	// A foreign QR payload sends the operator back to keep scanning.
	resp = postForm(t, client, env.server.URL, "/operator/resolve", url.Values{"payload": {`{"s":"WMS","id":"x"}`}})
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); !strings.HasPrefix(loc, "/operator/scan?") {
		t.Fatalf("foreign payload should return to scan page, got %q", loc)
	}

	// A valid token for an order this server never saw is a retry-later.
	payload, err = token.Encode(models.Order{ID: "elsewhere", OrderNumber: "9", PalletNumber: "P9"})
	if err != nil {
		t.Fatalf("encode token: %v", err)
	}
	resp = postForm(t, client, env.server.URL, "/operator/resolve", url.Values{"payload": {payload}})
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); !strings.HasPrefix(loc, "/operator/scan?") {
		t.Fatalf("unknown order should return to scan page, got %q", loc)
	}
}

func TestConfirmItemAndFinalizeFlow(t *testing.T) {
	env, client := setupIntegrationServer(t)
	id := apiCreateOrder(t, client, env.server.URL, testOrder("1001", "P100"))

	resp := postForm(t, client, env.server.URL, "/operator/orders/"+id+"/items/i-0-1", url.Values{
		"serials": {"SN-A", "SN-B", "SN-C"},
	})
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != "/operator/orders/"+id {
		t.Fatalf("confirm should land on the order page, got %q", loc)
	}

	order := apiGetOrder(t, client, env.server.URL, id)
	if order.Status != models.StatusPicking {
		t.Fatalf("first confirm must promote PENDING to PICKING, got %q", order.Status)
	}
	item, ok := order.Item("i-0-1")
	if !ok {
		t.Fatalf("item missing after confirm")
	}
	// Over-scan past the required quantity is allowed.
	if item.ScannedCount != 3 || len(item.Serials) != 3 {
		t.Fatalf("serials not persisted: %+v", item)
	}

	resp = postForm(t, client, env.server.URL, "/operator/orders/"+id+"/finalize", nil)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); !strings.HasPrefix(loc, "/operator?") {
		t.Fatalf("finalize should return to browse, got %q", loc)
	}

	order = apiGetOrder(t, client, env.server.URL, id)
	if order.Status != models.StatusCompleted {
		t.Fatalf("expected COMPLETED after finalize, got %q", order.Status)
	}

	// Completed orders disappear from the operator browse page.
	browse, err := client.Get(env.server.URL + "/operator")
	if err != nil {
		t.Fatalf("GET /operator: %v", err)
	}
	page, _ := io.ReadAll(browse.Body)
	browse.Body.Close()
	if strings.Contains(string(page), "/operator/orders/"+id) {
		t.Fatalf("finalized order still listed on browse page")
	}
}

func TestAdminSurfaces(t *testing.T) {
	env, client := setupIntegrationServer(t)
	id := apiCreateOrder(t, client, env.server.URL, testOrder("1001", "P100"))

	resp, err := client.Get(env.server.URL + "/admin")
	if err != nil {
		t.Fatalf("GET /admin: %v", err)
	}
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(page), "1001") {
		t.Fatalf("dashboard should list the order, status %d", resp.StatusCode)
	}

	resp, err = client.Get(env.server.URL + "/admin/orders/" + id + "/qr.png")
	if err != nil {
		t.Fatalf("GET qr.png: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("qr endpoint: status %d type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	resp, err = client.Get(env.server.URL + "/admin/orders/" + id + "/ticket.pdf")
	if err != nil {
		t.Fatalf("GET ticket.pdf: %v", err)
	}
	pdfBytes, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !bytes.HasPrefix(pdfBytes, []byte("%PDF")) {
		t.Fatalf("ticket endpoint did not return a PDF")
	}

	resp, err = client.Get(env.server.URL + "/admin/exports/serials.csv?order=" + id)
	if err != nil {
		t.Fatalf("GET serials.csv: %v", err)
	}
	csvBytes, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(csvBytes), "1001") {
		t.Fatalf("csv export missing order data: %s", csvBytes)
	}
}

func TestEventsStreamDeliversSnapshots(t *testing.T) {
	env, client := setupIntegrationServer(t)
	id := apiCreateOrder(t, client, env.server.URL, testOrder("1001", "P100"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/api/events", nil)
	if err != nil {
		t.Fatalf("build events request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read first event: %v", err)
	}
	if !strings.HasPrefix(line, "data: ") {
		t.Fatalf("expected sse data line, got %q", line)
	}
	var orders []models.Order
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &orders); err != nil {
		t.Fatalf("decode sse snapshot: %v", err)
	}
	found := false
	for _, o := range orders {
		if o.ID == id {
			found = true
		}
	}
	if !found {
		t.Fatalf("initial snapshot missing created order")
	}
}
