package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Order lifecycle statuses. Transitions only move forward; COMPLETED is
// terminal and never reversed by this application.
const (
	StatusPending   = "PENDING"
	StatusPicking   = "PICKING"
	StatusCompleted = "COMPLETED"
)

// SerialList stores captured serial numbers as a JSON array column.
type SerialList []string

// Value implements driver.Valuer.
func (s SerialList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *SerialList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = SerialList{}
		return nil
	case string:
		return s.unmarshal([]byte(v))
	case []byte:
		return s.unmarshal(v)
	default:
		return fmt.Errorf("serial list: unsupported source type %T", src)
	}
}

func (s *SerialList) unmarshal(b []byte) error {
	if len(b) == 0 {
		*s = SerialList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("serial list: %w", err)
	}
	*s = SerialList(out)
	return nil
}

// Order is a pallet-level unit of picking work.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID           string        `bun:"id,pk" json:"id"`
	OrderNumber  string        `bun:"order_number,notnull" json:"orderNumber"`
	PalletNumber string        `bun:"pallet_number,notnull" json:"palletNumber"`
	Status       string        `bun:"status,notnull,default:'PENDING'" json:"status"`
	CreatedAt    time.Time     `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	Items        []PickingItem `bun:"rel:has-many,join:id=order_id" json:"items"`
}

// Active reports whether the order still needs picking work.
func (o Order) Active() bool {
	return o.Status != StatusCompleted
}

// Item returns the line with the given local item id.
func (o Order) Item(itemID string) (PickingItem, bool) {
	for _, it := range o.Items {
		if it.ItemID == itemID {
			return it, true
		}
	}
	return PickingItem{}, false
}

// Clone returns a deep copy safe to mutate without touching the source.
func (o Order) Clone() Order {
	out := o
	out.Items = make([]PickingItem, len(o.Items))
	for i, it := range o.Items {
		out.Items[i] = it.Clone()
	}
	return out
}

// PickingItem is one article/location/quantity line within an order
// requiring serial-level capture.
type PickingItem struct {
	bun.BaseModel `bun:"table:picking_items,alias:pi"`

	ID           int64      `bun:"id,pk,autoincrement" json:"-"`
	OrderID      string     `bun:"order_id,notnull" json:"-"`
	ItemID       string     `bun:"item_id,notnull" json:"id"`
	Position     int64      `bun:"position,notnull,default:0" json:"-"`
	Line         string     `bun:"line,notnull" json:"line"`
	Location     string     `bun:"location,notnull" json:"location"`
	Article      string     `bun:"article,notnull" json:"article"`
	Quantity     int64      `bun:"quantity,notnull" json:"quantity"`
	Unit         string     `bun:"unit,notnull" json:"unit"`
	Serials      SerialList `bun:"serials,notnull,default:'[]'" json:"serials"`
	ScannedCount int64      `bun:"scanned_count,notnull,default:0" json:"scannedCount"`
}

// Done reports whether enough serials were captured. Over-scanning past the
// required quantity still counts as done.
func (i PickingItem) Done() bool {
	return i.ScannedCount >= i.Quantity
}

// SyncScanned recomputes the scanned count from the serial list. Must be
// called after every serial mutation before the item is persisted.
func (i *PickingItem) SyncScanned() {
	i.ScannedCount = int64(len(i.Serials))
}

// Clone returns a copy with its own serial slice.
func (i PickingItem) Clone() PickingItem {
	out := i
	out.Serials = append(SerialList(nil), i.Serials...)
	return out
}
