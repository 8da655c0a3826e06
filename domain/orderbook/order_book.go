package orderbook

import "clob/infra/sequence"

// OrderBook is the matching engine for a single instrument. It is
// single-writer and deterministic: all mutation must be serialized by
// the owning service, never by concurrent callers holding copies.
type OrderBook struct {
	bids *BookSide
	asks *BookSide

	ids *sequence.Sequencer
	seq *sequence.Sequencer
}

// MatchResult describes everything one submission changed, in the form
// the persistence layer needs to mirror the book durably.
type MatchResult struct {
	// Remaining is the unfilled quantity of the incoming order.
	Remaining uint64
	// Trades lists executions in the order they happened.
	Trades []Trade
	// Removed holds snapshots of makers fully consumed by this
	// submission, taken at the moment they left the book.
	Removed []Order
	// Reduced is the partially filled maker left at its level head,
	// if any. At most one maker per submission can end partial.
	Reduced *Order
	// Rested is the incoming order if it joined the book.
	Rested *Order
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids: NewBookSide(Bid),
		asks: NewBookSide(Ask),
		ids:  sequence.New(0),
		seq:  sequence.New(0),
	}
}

func (b *OrderBook) Bids() *BookSide { return b.bids }
func (b *OrderBook) Asks() *BookSide { return b.asks }

// LastSeq returns the highest sequence number issued so far.
func (b *OrderBook) LastSeq() uint64 { return b.seq.Current() }

func (b *OrderBook) sides(s Side) (own, opposing *BookSide) {
	if s == Bid {
		return b.bids, b.asks
	}
	return b.asks, b.bids
}

// SubmitLimit matches o against the opposing side under price-time
// priority and rests any remainder. It assigns o.ID (unless the caller
// already did) and always assigns o.Seq; o must have Qty > 0.
//
// The book never ends a submission crossed: the loop only stops when
// the order is exhausted or no opposing level crosses its price.
func (b *OrderBook) SubmitLimit(o *Order) MatchResult {
	if o.ID == 0 {
		o.ID = b.ids.Next()
	}
	o.Seq = b.seq.Next()

	own, opposing := b.sides(o.Side)
	var res MatchResult

	for o.Qty > 0 {
		best := opposing.Best()
		if best == nil || !crosses(o.Side, o.Price, best.Price) {
			break
		}

		head := best.Head()
		traded := min(head.Qty, o.Qty)
		o.Qty -= traded

		res.Trades = append(res.Trades, Trade{
			MakerID: head.ID,
			TakerID: o.ID,
			Price:   best.Price,
			Qty:     traded,
			Seq:     b.seq.Next(),
		})

		if head.Qty == traded {
			best.PopHead()
			res.Removed = append(res.Removed, *head)
			res.Removed[len(res.Removed)-1].Qty = 0
			opposing.PruneIfEmpty(best.Price)
			continue
		}

		// Partial maker fill: the head keeps its position and the
		// incoming order is necessarily exhausted.
		best.ReduceHead(traded)
		snap := *head
		res.Reduced = &snap
	}

	if o.Qty > 0 {
		own.Enqueue(o)
		snap := *o
		res.Rested = &snap
	}

	res.Remaining = o.Qty
	return res
}

// Restore re-inserts a recovered order at the tail of its level.
// Callers must feed orders in (price, seq) scan order so that each
// level's FIFO matches the pre-restart book.
func (b *OrderBook) Restore(o *Order) {
	own, _ := b.sides(o.Side)
	own.Enqueue(o)
}

// ResetSequences moves the id and sequence generators past the highest
// recovered values. Only valid before the book accepts submissions.
func (b *OrderBook) ResetSequences(lastID, lastSeq uint64) {
	b.ids.Reset(lastID)
	b.seq.Reset(lastSeq)
}
