package admin

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"pickflow/extract"
	"pickflow/models"
)

// Manifest photos above this size are rejected before touching the model.
const maxManifestBytes = 10 << 20

// OrderReader is the slice of the order store the dashboard reads from.
type OrderReader interface {
	Orders() []models.Order
	Get(id string) (models.Order, bool)
}

// OrderCreator persists a freshly extracted order.
type OrderCreator interface {
	Create(ctx context.Context, order models.Order) (string, error)
}

// ManifestExtractor turns a manifest photo into raw picking rows.
type ManifestExtractor interface {
	Extract(ctx context.Context, imageData []byte, mimeType string) ([]extract.Row, error)
}

// DashboardPageQueryHandler renders the admin order dashboard.
func DashboardPageQueryHandler(store OrderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := DashboardPage(PageData{
			Orders:       store.Orders(),
			OrderNumber:  q.Get("order_number"),
			PalletNumber: q.Get("pallet_number"),
			ErrorText:    q.Get("error"),
			StatusText:   q.Get("status"),
		}).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		}
	}
}

// CreateOrderCommandHandler validates the new-order form, extracts the
// manifest rows and stores the order. Validation failures redirect back
// to the dashboard before any extraction work starts, with the typed
// numbers preserved so the operator can retry without retyping.
func CreateOrderCommandHandler(store OrderCreator, extractor ManifestExtractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxManifestBytes); err != nil {
			redirectWithError(w, r, "", "", "Upload too large or malformed")
			return
		}

		orderNumber := strings.TrimSpace(r.FormValue("order_number"))
		palletNumber := strings.TrimSpace(r.FormValue("pallet_number"))
		if orderNumber == "" || palletNumber == "" {
			redirectWithError(w, r, orderNumber, palletNumber, "Order number and pallet number are required")
			return
		}

		file, _, err := r.FormFile("manifest")
		if err != nil {
			redirectWithError(w, r, orderNumber, palletNumber, "A manifest photo is required")
			return
		}
		defer file.Close()

		imageData, err := io.ReadAll(io.LimitReader(file, maxManifestBytes+1))
		if err != nil || len(imageData) == 0 {
			redirectWithError(w, r, orderNumber, palletNumber, "Could not read the manifest photo")
			return
		}
		if len(imageData) > maxManifestBytes {
			redirectWithError(w, r, orderNumber, palletNumber, "Manifest photo is too large")
			return
		}
		mimeType := http.DetectContentType(imageData)
		if !strings.HasPrefix(mimeType, "image/") {
			redirectWithError(w, r, orderNumber, palletNumber, "The uploaded file is not an image")
			return
		}

		rows, err := extractor.Extract(r.Context(), imageData, mimeType)
		if err != nil {
			redirectWithError(w, r, orderNumber, palletNumber, "Could not read the manifest table from the photo, try a sharper shot")
			return
		}

		order := models.Order{
			OrderNumber:  orderNumber,
			PalletNumber: palletNumber,
			Status:       models.StatusPending,
			Items:        extract.Normalize(rows),
		}
		if _, err := store.Create(r.Context(), order); err != nil {
			redirectWithError(w, r, orderNumber, palletNumber, "Failed to save the order")
			return
		}
		http.Redirect(w, r, "/admin?status="+url.QueryEscape("Order "+orderNumber+" created"), http.StatusSeeOther)
	}
}

func redirectWithError(w http.ResponseWriter, r *http.Request, orderNumber, palletNumber, message string) {
	q := url.Values{}
	q.Set("error", message)
	if orderNumber != "" {
		q.Set("order_number", orderNumber)
	}
	if palletNumber != "" {
		q.Set("pallet_number", palletNumber)
	}
	http.Redirect(w, r, "/admin?"+q.Encode(), http.StatusSeeOther)
}
