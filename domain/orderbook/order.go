package orderbook

type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "Bid"
	}
	return "Ask"
}

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// Order is a resting limit order. Qty is the remaining amount and is
// decremented in place as the order is filled; an order lives in a
// price level iff Qty > 0.
//
// Seq is assigned by the engine and is the only time-priority signal.
// Client timestamps are advisory and never consulted for ordering.
type Order struct {
	ID     uint64
	UserID uint64
	Side   Side
	Price  uint64
	Qty    uint64
	Seq    uint64

	next *Order
	prev *Order
}

// Next returns the order behind this one at the same price level.
func (o *Order) Next() *Order { return o.next }

// Trade is one execution. Price is always the maker's (resting) price.
type Trade struct {
	MakerID uint64
	TakerID uint64
	Price   uint64
	Qty     uint64
	Seq     uint64
}
