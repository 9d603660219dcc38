package operator

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"pickflow/models"
	"pickflow/picking"
	"pickflow/token"
)

// Store is the slice of the order store the operator screens work with.
type Store interface {
	Orders() []models.Order
	Get(id string) (models.Order, bool)
	Update(ctx context.Context, order models.Order) error
	UpdateStatus(ctx context.Context, id, status string) error
}

// BrowsePageQueryHandler lists orders that still need picking.
func BrowsePageQueryHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := picking.NewSession(store, store.Orders())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := BrowsePage(session.BrowseList(), r.URL.Query().Get("notice")).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render browse page", http.StatusInternalServerError)
		}
	}
}

// OrderPageQueryHandler shows one order's lines. A vanished order sends the
// operator back to the list with a notice instead of a bare 404.
func OrderPageQueryHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, ok := store.Get(chi.URLParam(r, "id"))
		if !ok {
			redirectToBrowse(w, r, "Order is no longer available")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := OrderPage(order, r.URL.Query().Get("notice")).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render order page", http.StatusInternalServerError)
		}
	}
}

// ItemPageQueryHandler shows one line's serial capture form.
func ItemPageQueryHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, ok := store.Get(chi.URLParam(r, "id"))
		if !ok {
			redirectToBrowse(w, r, "Order is no longer available")
			return
		}
		item, ok := order.Item(chi.URLParam(r, "itemID"))
		if !ok {
			http.Redirect(w, r, "/operator/orders/"+url.PathEscape(order.ID)+"?notice="+url.QueryEscape("Line is no longer on this order"), http.StatusSeeOther)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := ItemPage(order, item, r.URL.Query().Get("notice")).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render item page", http.StatusInternalServerError)
		}
	}
}

// ConfirmItemCommandHandler replaces a line's serial list with the posted
// draft and pushes the whole order. The push runs through the same session
// transitions the handheld uses, so promotion and count rules stay in one
// place.
func ConfirmItemCommandHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "id")
		itemID := chi.URLParam(r, "itemID")
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed form", http.StatusBadRequest)
			return
		}

		serials := make([]string, 0, len(r.PostForm["serials"]))
		for _, s := range r.PostForm["serials"] {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				serials = append(serials, trimmed)
			}
		}

		session := picking.NewSession(store, store.Orders())
		err := confirmDraft(r.Context(), session, orderID, itemID, serials)
		switch {
		case errors.Is(err, picking.ErrOrderNotFound):
			redirectToBrowse(w, r, "Order is no longer available")
			return
		case errors.Is(err, picking.ErrOrderCompleted):
			redirectToBrowse(w, r, "Order was already finalized")
			return
		case err != nil:
			itemURL := "/operator/orders/" + url.PathEscape(orderID) + "/items/" + url.PathEscape(itemID)
			http.Redirect(w, r, itemURL+"?notice="+url.QueryEscape("Saving failed, your serials were not stored. Try again."), http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/operator/orders/"+url.PathEscape(orderID), http.StatusSeeOther)
	}
}

func confirmDraft(ctx context.Context, session *picking.Session, orderID, itemID string, serials []string) error {
	if err := session.SelectOrder(orderID); err != nil {
		return err
	}
	if err := session.OpenItem(itemID); err != nil {
		return err
	}
	for len(session.Draft()) > 0 {
		if err := session.RemoveSerial(0); err != nil {
			return err
		}
	}
	for _, serial := range serials {
		if err := session.AppendSerial(serial); err != nil {
			return err
		}
	}
	return session.ConfirmItem(ctx)
}

// FinalizeOrderCommandHandler marks the order COMPLETED and returns to the
// list. Completeness is not checked; short picks are the floor's call.
func FinalizeOrderCommandHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "id")
		session := picking.NewSession(store, store.Orders())
		if err := session.SelectOrder(orderID); err != nil {
			redirectToBrowse(w, r, "Order is no longer available")
			return
		}
		if err := session.Finalize(r.Context()); err != nil {
			http.Redirect(w, r, "/operator/orders/"+url.PathEscape(orderID)+"?notice="+url.QueryEscape("Finalize failed, try again"), http.StatusSeeOther)
			return
		}
		redirectToBrowse(w, r, "Order finalized")
	}
}

// ScanPageQueryHandler renders the camera scan page.
func ScanPageQueryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := ScanPage(r.URL.Query().Get("notice")).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render scan page", http.StatusInternalServerError)
		}
	}
}

// ResolveScanCommandHandler takes a decoded QR payload and routes the
// operator to the referenced order. Foreign codes and unknown orders both
// send the operator back to keep scanning.
func ResolveScanCommandHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := r.FormValue("payload")
		tok, err := token.Decode(payload)
		if err != nil {
			http.Redirect(w, r, "/operator/scan?notice="+url.QueryEscape("Not a picking code, keep scanning"), http.StatusSeeOther)
			return
		}
		order, ok := store.Get(tok.OrderID)
		if !ok {
			http.Redirect(w, r, "/operator/scan?notice="+url.QueryEscape("Order not on this device yet, wait a moment and rescan"), http.StatusSeeOther)
			return
		}
		if !order.Active() {
			redirectToBrowse(w, r, "Order was already finalized")
			return
		}
		http.Redirect(w, r, "/operator/orders/"+url.PathEscape(order.ID), http.StatusSeeOther)
	}
}

func redirectToBrowse(w http.ResponseWriter, r *http.Request, notice string) {
	http.Redirect(w, r, "/operator?notice="+url.QueryEscape(notice), http.StatusSeeOther)
}
