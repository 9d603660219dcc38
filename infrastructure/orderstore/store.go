// Package orderstore is the single source of truth for picking orders.
//
// All mutations go through Create/Update/UpdateStatus; after every
// successful write the full order set is reloaded and broadcast to every
// subscriber as an immutable snapshot. Both the admin and operator surfaces
// hold only the projections they receive here.
package orderstore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"pickflow/infrastructure/audit"
	"pickflow/infrastructure/sqlite"
	"pickflow/models"
)

// Store persists orders in sqlite and pushes change snapshots.
type Store struct {
	db    *sqlite.DB
	audit *audit.Service

	mu       sync.Mutex
	nextSub  int64
	subs     map[int64]func([]models.Order)
	snapshot []models.Order

	// broadcastMu serializes deliveries so subscribers observe snapshots in
	// write order.
	broadcastMu sync.Mutex
}

// NewStore loads the initial snapshot and returns a ready store.
func NewStore(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service) (*Store, error) {
	s := &Store{
		db:    db,
		audit: auditSvc,
		subs:  make(map[int64]func([]models.Order)),
	}
	orders, err := s.loadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load initial orders: %w", err)
	}
	s.snapshot = orders
	return s, nil
}

// Subscribe registers fn for snapshot pushes and immediately delivers the
// current set. The returned cancel func unregisters the subscriber.
func (s *Store) Subscribe(fn func(orders []models.Order)) func() {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	current := cloneOrders(s.snapshot)
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Orders returns a copy of the current snapshot.
func (s *Store) Orders() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrders(s.snapshot)
}

// Get returns a copy of one order by id.
func (s *Store) Get(id string) (models.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.snapshot {
		if o.ID == id {
			return o.Clone(), true
		}
	}
	return models.Order{}, false
}

// Create persists a new order, assigning its id, and broadcasts the
// refreshed set. The incoming id, if any, is discarded.
func (s *Store) Create(ctx context.Context, order models.Order) (string, error) {
	order.ID = uuid.NewString()
	if order.Status == "" {
		order.Status = models.StatusPending
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		row := order
		row.Items = nil
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return err
		}
		for i := range order.Items {
			item := order.Items[i].Clone()
			item.OrderID = order.ID
			item.Position = int64(i)
			item.SyncScanned()
			if _, err := tx.NewInsert().Model(&item).Exec(ctx); err != nil {
				return err
			}
		}
		if s.audit != nil {
			if err := s.audit.Write(ctx, tx, ActorFromContext(ctx), "order.create", "orders", order.ID, nil, order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}

	if err := s.refresh(ctx); err != nil {
		return order.ID, err
	}
	return order.ID, nil
}

// Update replaces the stored serials and status for an existing order.
// Items are matched by their local item id; the item set itself is fixed at
// creation time, so rows are never added or removed here. Status may only
// move forward.
func (s *Store) Update(ctx context.Context, order models.Order) error {
	if order.ID == "" {
		return fmt.Errorf("update order: missing id")
	}

	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var existing models.Order
		if err := tx.NewSelect().Model(&existing).Where("id = ?", order.ID).Scan(ctx); err != nil {
			return err
		}
		if err := checkStatusTransition(existing.Status, order.Status); err != nil {
			return err
		}

		if _, err := tx.NewUpdate().
			Model((*models.Order)(nil)).
			Set("status = ?", order.Status).
			Where("id = ?", order.ID).
			Exec(ctx); err != nil {
			return err
		}

		for _, item := range order.Items {
			item.SyncScanned()
			res, err := tx.NewUpdate().
				Model((*models.PickingItem)(nil)).
				Set("serials = ?", item.Serials).
				Set("scanned_count = ?", item.ScannedCount).
				Where("order_id = ?", order.ID).
				Where("item_id = ?", item.ItemID).
				Exec(ctx)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return fmt.Errorf("unknown item %s on order %s", item.ItemID, order.ID)
			}
		}

		if s.audit != nil {
			if err := s.audit.Write(ctx, tx, ActorFromContext(ctx), "order.update", "orders", order.ID, existing, order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}
	return s.refresh(ctx)
}

// UpdateStatus pushes a status-only transition, used by finalize.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) error {
	if id == "" {
		return fmt.Errorf("update status: missing order id")
	}

	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var existing models.Order
		if err := tx.NewSelect().Model(&existing).Where("id = ?", id).Scan(ctx); err != nil {
			return err
		}
		if err := checkStatusTransition(existing.Status, status); err != nil {
			return err
		}
		if _, err := tx.NewUpdate().
			Model((*models.Order)(nil)).
			Set("status = ?", status).
			Where("id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		if s.audit != nil {
			action := "order.status"
			if status == models.StatusCompleted {
				action = "order.finalize"
			}
			if err := s.audit.Write(ctx, tx, ActorFromContext(ctx), action, "orders", id, existing.Status, status); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update order %s status: %w", id, err)
	}
	return s.refresh(ctx)
}

// statusRank orders the lifecycle for the monotonic-forward check.
func statusRank(status string) int {
	switch status {
	case models.StatusPending:
		return 0
	case models.StatusPicking:
		return 1
	case models.StatusCompleted:
		return 2
	default:
		return -1
	}
}

func checkStatusTransition(from, to string) error {
	fromRank, toRank := statusRank(from), statusRank(to)
	if toRank < 0 {
		return fmt.Errorf("unknown order status %q", to)
	}
	if toRank < fromRank {
		return fmt.Errorf("status cannot move back from %s to %s", from, to)
	}
	return nil
}

// refresh reloads the full set and broadcasts it.
func (s *Store) refresh(ctx context.Context) error {
	orders, err := s.loadAll(ctx)
	if err != nil {
		return fmt.Errorf("reload orders: %w", err)
	}

	s.broadcastMu.Lock()
	defer s.broadcastMu.Unlock()

	s.mu.Lock()
	s.snapshot = orders
	fns := make([]func([]models.Order), 0, len(s.subs))
	ids := make([]int64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	// map iteration order is random; deliver in registration order
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(cloneOrders(orders))
	}
	slog.Debug("order snapshot broadcast", slog.Int("orders", len(orders)), slog.Int("subscribers", len(fns)))
	return nil
}

func (s *Store) loadAll(ctx context.Context) ([]models.Order, error) {
	orders := make([]models.Order, 0)
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().
			Model(&orders).
			Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.OrderExpr("position ASC, id ASC")
			}).
			OrderExpr("created_at ASC, id ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].Items == nil {
			orders[i].Items = make([]models.PickingItem, 0)
		}
	}
	return orders, nil
}

func cloneOrders(orders []models.Order) []models.Order {
	out := make([]models.Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}
