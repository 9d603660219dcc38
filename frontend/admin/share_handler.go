package admin

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pickflow/token"
)

// OrderQRPNGHandler serves the handoff QR for an order as PNG, shown on
// the admin screen for the handheld to scan.
func OrderQRPNGHandler(store OrderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, ok := store.Get(chi.URLParam(r, "id"))
		if !ok {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		qrPNG, err := token.RenderQR(order, 512)
		if err != nil {
			http.Error(w, "failed to render qr", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(qrPNG)
	}
}

// PickTicketPDFHandler serves the printable pick ticket for an order.
func PickTicketPDFHandler(store OrderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, ok := store.Get(chi.URLParam(r, "id"))
		if !ok {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		pdfBytes, err := renderPickTicketPDF(order, time.Now())
		if err != nil {
			http.Error(w, "failed to build pick ticket pdf", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=order-%s-ticket.pdf", order.OrderNumber))
		_, _ = w.Write(pdfBytes)
	}
}
