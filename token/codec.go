// Package token encodes and decodes the compact handoff payload that moves
// an order reference from the admin screen to a handheld via a QR code.
package token

import (
	"encoding/json"
	"errors"
	"fmt"

	"pickflow/models"
)

// ProtocolTag marks a scanned payload as belonging to this application.
// Anything scanned without it is simply not ours.
const ProtocolTag = "SGA"

// ErrNotPickingToken reports that scanned text is not a picking handoff
// payload. Scan loops treat it as "no match, keep scanning".
var ErrNotPickingToken = errors.New("not a picking token")

// Token is the decoded handoff payload. The order and pallet numbers ride
// along purely for operator confidence display; the id is what resolves.
type Token struct {
	OrderID      string
	OrderNumber  string
	PalletNumber string
}

// wire is the QR payload shape. Unknown extra fields are ignored on decode
// for forward compatibility.
type wire struct {
	S  string `json:"s"`
	ID string `json:"id"`
	N  string `json:"n"`
	P  string `json:"p"`
}

// Encode serializes a handoff token for the given order.
func Encode(order models.Order) (string, error) {
	if order.ID == "" {
		return "", fmt.Errorf("order has no assigned id")
	}
	b, err := json.Marshal(wire{
		S:  ProtocolTag,
		ID: order.ID,
		N:  order.OrderNumber,
		P:  order.PalletNumber,
	})
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	return string(b), nil
}

// Decode parses arbitrary scanned text. Non-JSON input, or JSON without the
// protocol tag, yields ErrNotPickingToken rather than a hard failure.
func Decode(raw string) (Token, error) {
	var w wire
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return Token{}, ErrNotPickingToken
	}
	if w.S != ProtocolTag {
		return Token{}, ErrNotPickingToken
	}
	return Token{OrderID: w.ID, OrderNumber: w.N, PalletNumber: w.P}, nil
}
