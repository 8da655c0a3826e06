package orderbook

// BookSide holds all resting liquidity for one side of the book as a
// price-ordered tree of FIFO levels. Empty levels never survive a
// mutation: the last fill at a price prunes the level immediately.
type BookSide struct {
	side Side
	tree *RBTree
}

func NewBookSide(side Side) *BookSide {
	return &BookSide{side: side, tree: NewRBTree()}
}

func (s *BookSide) Side() Side { return s.side }

// Depth returns the number of occupied price levels.
func (s *BookSide) Depth() int { return s.tree.Size() }

// Best returns the most aggressive level: highest price for bids,
// lowest for asks. Nil if the side is empty.
func (s *BookSide) Best() *PriceLevel {
	if s.side == Bid {
		return s.tree.MaxLevel()
	}
	return s.tree.MinLevel()
}

// BestPrice returns the best price and whether the side is non-empty.
func (s *BookSide) BestPrice() (uint64, bool) {
	lvl := s.Best()
	if lvl == nil {
		return 0, false
	}
	return lvl.Price, true
}

// Enqueue appends o at the tail of its price level, creating the level
// if absent. Time priority among equal prices is arrival order.
func (s *BookSide) Enqueue(o *Order) {
	s.tree.UpsertLevel(o.Price).Enqueue(o)
}

// PruneIfEmpty removes the level at price if it holds no orders.
func (s *BookSide) PruneIfEmpty(price uint64) {
	if lvl := s.tree.FindLevel(price); lvl != nil && lvl.Empty() {
		s.tree.DeleteLevel(price)
	}
}

// Level returns the queue at price, or nil.
func (s *BookSide) Level(price uint64) *PriceLevel {
	return s.tree.FindLevel(price)
}

// WalkBest visits levels from best to worst until fn returns false.
func (s *BookSide) WalkBest(fn func(*PriceLevel) bool) {
	if s.side == Bid {
		s.tree.ForEachDescending(fn)
	} else {
		s.tree.ForEachAscending(fn)
	}
}

// crosses reports whether an incoming order at price trades against a
// resting level at bestOpposing.
func crosses(side Side, price, bestOpposing uint64) bool {
	if side == Bid {
		return price >= bestOpposing
	}
	return price <= bestOpposing
}
