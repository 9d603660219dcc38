// Package picking implements the operator's picking session: browsing
// active orders, walking into order and item detail, accumulating serial
// captures as a local draft, and pushing confirmed edits back to the shared
// order store.
//
// The session is a state machine over a locally held snapshot of the order
// set. The snapshot is replaced wholesale whenever the store broadcasts a
// change; an unconfirmed item draft is the only local state that survives a
// refresh.
package picking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pickflow/models"
	"pickflow/token"
)

// Store is the outbound half of the order store adapter, as consumed by a
// session. Pushes are fire-and-forget: no retry, no local transaction.
type Store interface {
	Update(ctx context.Context, order models.Order) error
	UpdateStatus(ctx context.Context, id, status string) error
}

// Mode identifies the active screen of a session.
type Mode int

const (
	ModeBrowsing Mode = iota
	ModeOrderDetail
	ModeItemDetail
	ModeScanning
)

func (m Mode) String() string {
	switch m {
	case ModeBrowsing:
		return "browsing"
	case ModeOrderDetail:
		return "order-detail"
	case ModeItemDetail:
		return "item-detail"
	case ModeScanning:
		return "scanning"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

var (
	// ErrOrderNotFound means the referenced order is not in the local
	// projection yet. The usual cause is replication lag after the admin
	// created it, so callers should tell the operator to retry shortly.
	ErrOrderNotFound = errors.New("order not found in local projection")

	// ErrOrderCompleted rejects opening an order that is already done.
	ErrOrderCompleted = errors.New("order is already completed")

	// ErrEmptySerial rejects appending a blank serial.
	ErrEmptySerial = errors.New("serial is empty")

	errNoActiveOrder = errors.New("no active order")
	errNoActiveItem  = errors.New("no active item")
)

// Session is one operator's picking workflow. It is not safe for concurrent
// use; the owning surface (HTTP handler chain or TUI event loop) serializes
// access.
type Session struct {
	store Store

	mode          Mode
	orders        []models.Order
	activeOrderID string
	activeItemID  string
	draft         models.SerialList
	notice        string
}

// NewSession starts in browsing mode over the given snapshot.
func NewSession(store Store, orders []models.Order) *Session {
	return &Session{store: store, mode: ModeBrowsing, orders: orders}
}

// Mode returns the active screen.
func (s *Session) Mode() Mode { return s.mode }

// Notice returns and clears the last transition notice (for example when an
// open order disappeared from the store).
func (s *Session) Notice() string {
	n := s.notice
	s.notice = ""
	return n
}

// BrowseList returns the orders shown on the browsing screen: the external
// set minus completed orders.
func (s *Session) BrowseList() []models.Order {
	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if o.Active() {
			out = append(out, o)
		}
	}
	return out
}

// ActiveOrder resolves the open order against the current snapshot, so a
// refreshed snapshot is immediately visible.
func (s *Session) ActiveOrder() (models.Order, bool) {
	if s.activeOrderID == "" {
		return models.Order{}, false
	}
	return s.find(s.activeOrderID)
}

// ActiveItem resolves the open item against the current snapshot.
func (s *Session) ActiveItem() (models.PickingItem, bool) {
	order, ok := s.ActiveOrder()
	if !ok || s.activeItemID == "" {
		return models.PickingItem{}, false
	}
	return order.Item(s.activeItemID)
}

// Draft returns the unconfirmed serial captures for the open item.
func (s *Session) Draft() []string {
	return append([]string(nil), s.draft...)
}

// ApplySnapshot replaces the local projection with a store broadcast.
// Remote truth wins over any in-memory copy except the unconfirmed draft.
// If the open order vanished entirely the session falls back to browsing
// with an explanatory notice.
func (s *Session) ApplySnapshot(orders []models.Order) {
	s.orders = orders
	if s.activeOrderID == "" {
		return
	}
	if _, ok := s.find(s.activeOrderID); !ok {
		s.reset()
		s.notice = "order no longer available"
		return
	}
	if s.mode == ModeItemDetail {
		if _, ok := s.ActiveItem(); !ok {
			s.activeItemID = ""
			s.draft = nil
			s.mode = ModeOrderDetail
		}
	}
}

// StartScan enters scanning mode from browsing.
func (s *Session) StartScan() error {
	if s.mode != ModeBrowsing {
		return fmt.Errorf("cannot scan from %s", s.mode)
	}
	s.mode = ModeScanning
	return nil
}

// CancelScan leaves scanning mode without a result.
func (s *Session) CancelScan() {
	if s.mode == ModeScanning {
		s.mode = ModeBrowsing
	}
}

// ResolveToken resolves a decoded handoff token against the local
// projection. A miss is a retry-later condition, not a hard failure: the
// admin's write may not have propagated yet.
func (s *Session) ResolveToken(tok token.Token) error {
	if s.mode == ModeScanning {
		s.mode = ModeBrowsing
	}
	return s.SelectOrder(tok.OrderID)
}

// SelectOrder opens an order from the browsing screen.
func (s *Session) SelectOrder(id string) error {
	if s.mode != ModeBrowsing {
		return fmt.Errorf("cannot select order from %s", s.mode)
	}
	order, ok := s.find(id)
	if !ok {
		return ErrOrderNotFound
	}
	if !order.Active() {
		return ErrOrderCompleted
	}
	s.activeOrderID = id
	s.mode = ModeOrderDetail
	return nil
}

// OpenItem opens a line of the active order; the draft starts from the
// serials already confirmed on it.
func (s *Session) OpenItem(itemID string) error {
	if s.mode != ModeOrderDetail {
		return fmt.Errorf("cannot open item from %s", s.mode)
	}
	order, ok := s.ActiveOrder()
	if !ok {
		return errNoActiveOrder
	}
	item, ok := order.Item(itemID)
	if !ok {
		return fmt.Errorf("item %s not on order %s", itemID, order.ID)
	}
	s.activeItemID = itemID
	s.draft = append(models.SerialList(nil), item.Serials...)
	s.mode = ModeItemDetail
	return nil
}

// AppendSerial adds one trimmed serial to the draft. The draft is local
// only; nothing is pushed until ConfirmItem.
func (s *Session) AppendSerial(serial string) error {
	if s.mode != ModeItemDetail {
		return fmt.Errorf("cannot append serial from %s", s.mode)
	}
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return ErrEmptySerial
	}
	s.draft = append(s.draft, serial)
	return nil
}

// RemoveSerial removes one draft serial by position.
func (s *Session) RemoveSerial(index int) error {
	if s.mode != ModeItemDetail {
		return fmt.Errorf("cannot remove serial from %s", s.mode)
	}
	if index < 0 || index >= len(s.draft) {
		return fmt.Errorf("serial index %d out of range", index)
	}
	s.draft = append(s.draft[:index], s.draft[index+1:]...)
	return nil
}

// ConfirmItem pushes the drafted item into the order and the whole order to
// the store. This is the sole point where serial edits become durable. On a
// failed push the session stays in item detail with the draft intact.
func (s *Session) ConfirmItem(ctx context.Context) error {
	if s.mode != ModeItemDetail {
		return fmt.Errorf("cannot confirm from %s", s.mode)
	}
	order, ok := s.ActiveOrder()
	if !ok {
		return errNoActiveOrder
	}
	item, ok := order.Item(s.activeItemID)
	if !ok {
		return errNoActiveItem
	}

	updated := order.Clone()
	item.Serials = append(models.SerialList(nil), s.draft...)
	item.SyncScanned()
	for i := range updated.Items {
		if updated.Items[i].ItemID == item.ItemID {
			updated.Items[i] = item
		}
	}
	// first confirmed line moves a fresh order into picking
	if updated.Status == models.StatusPending {
		updated.Status = models.StatusPicking
	}

	if err := s.store.Update(ctx, updated); err != nil {
		return fmt.Errorf("push item confirmation: %w", err)
	}

	s.applyLocal(updated)
	s.activeItemID = ""
	s.draft = nil
	s.mode = ModeOrderDetail
	return nil
}

// DiscardItem abandons the draft and returns to order detail.
func (s *Session) DiscardItem() {
	if s.mode != ModeItemDetail {
		return
	}
	s.activeItemID = ""
	s.draft = nil
	s.mode = ModeOrderDetail
}

// Finalize marks the active order completed and returns to browsing. It is
// deliberately not gated on every line being done; the caller is expected
// to have collected an explicit confirmation from the operator. On a failed
// push the session stays on the order.
func (s *Session) Finalize(ctx context.Context) error {
	if s.mode != ModeOrderDetail {
		return fmt.Errorf("cannot finalize from %s", s.mode)
	}
	order, ok := s.ActiveOrder()
	if !ok {
		return errNoActiveOrder
	}
	if err := s.store.UpdateStatus(ctx, order.ID, models.StatusCompleted); err != nil {
		return fmt.Errorf("push finalize: %w", err)
	}

	for i := range s.orders {
		if s.orders[i].ID == order.ID {
			s.orders[i].Status = models.StatusCompleted
		}
	}
	s.reset()
	return nil
}

// CloseOrder returns from order detail to browsing without finalizing.
func (s *Session) CloseOrder() {
	if s.mode != ModeOrderDetail {
		return
	}
	s.reset()
}

func (s *Session) reset() {
	s.activeOrderID = ""
	s.activeItemID = ""
	s.draft = nil
	s.mode = ModeBrowsing
}

func (s *Session) find(id string) (models.Order, bool) {
	for _, o := range s.orders {
		if o.ID == id {
			return o, true
		}
	}
	return models.Order{}, false
}

// applyLocal patches the local projection after a successful push so the
// screen reflects the write before the store broadcast lands.
func (s *Session) applyLocal(order models.Order) {
	for i := range s.orders {
		if s.orders[i].ID == order.ID {
			s.orders[i] = order
			return
		}
	}
}
