package exports

import (
	"net/http"
	"strings"

	"pickflow/models"
)

// OrderReader is the read-only slice of the order store the export needs.
type OrderReader interface {
	Orders() []models.Order
	Get(id string) (models.Order, bool)
}

// SerialsExportCSVHandler streams captured serials as CSV. An optional
// ?order=<id> query narrows the export to a single order.
func SerialsExportCSVHandler(store OrderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := strings.TrimSpace(r.URL.Query().Get("order"))

		var orders []models.Order
		filename := "serials.csv"
		if orderID != "" {
			order, ok := store.Get(orderID)
			if !ok {
				http.Error(w, "order not found", http.StatusNotFound)
				return
			}
			orders = []models.Order{order}
			filename = "serials-" + order.OrderNumber + ".csv"
		} else {
			orders = store.Orders()
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename="+filename)
		if err := writeSerialsCSV(w, orders); err != nil {
			http.Error(w, "failed to export csv", http.StatusInternalServerError)
		}
	}
}
