package wsserver

import (
	"clob/domain/orderbook"
	"clob/errs"
)

// Submission is the client wire format for a limit order. Timestamp is
// advisory only; time priority comes from the server-assigned sequence.
type Submission struct {
	ID        uint64 `json:"id,omitempty"`
	UserID    uint64 `json:"user_id"`
	Side      string `json:"side"`
	Price     uint64 `json:"price"`
	Quantity  uint64 `json:"quantity"`
	Timestamp uint64 `json:"timestamp,omitempty"`
}

// Response carries the unfilled remainder back to the submitter.
// Remaining is 0 when the order filled completely.
type Response struct {
	OrderID   uint64 `json:"order_id"`
	Remaining uint64 `json:"remaining"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (m Submission) toOrder() (orderbook.Order, error) {
	var side orderbook.Side
	switch m.Side {
	case "Bid":
		side = orderbook.Bid
	case "Ask":
		side = orderbook.Ask
	default:
		return orderbook.Order{}, errs.Errorf(errs.Decode, "wsserver.toOrder", "invalid side %q", m.Side)
	}
	if m.Quantity == 0 {
		return orderbook.Order{}, errs.Errorf(errs.Decode, "wsserver.toOrder", "quantity must be positive")
	}
	return orderbook.Order{
		ID:     m.ID,
		UserID: m.UserID,
		Side:   side,
		Price:  m.Price,
		Qty:    m.Quantity,
	}, nil
}
