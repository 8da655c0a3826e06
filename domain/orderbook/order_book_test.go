package orderbook

import (
	"math/rand"
	"testing"
)

func submit(b *OrderBook, side Side, price, qty uint64) MatchResult {
	return b.SubmitLimit(&Order{UserID: 1, Side: side, Price: price, Qty: qty})
}

func TestRestingBidNoMatch(t *testing.T) {
	book := NewOrderBook()

	res := submit(book, Bid, 99, 5)
	if res.Remaining != 5 {
		t.Fatalf("expected remaining=5, got %d", res.Remaining)
	}
	if len(res.Trades) != 0 {
		t.Fatalf("expected no trades, got %d", len(res.Trades))
	}
	if res.Rested == nil || res.Rested.Price != 99 || res.Rested.Qty != 5 {
		t.Fatalf("expected order to rest at 99 with qty 5, got %+v", res.Rested)
	}
	if lvl := book.Bids().Level(99); lvl == nil || lvl.TotalQty != 5 {
		t.Error("bid level 99 missing or wrong size")
	}
}

func TestPartialFillMakerKeepsRest(t *testing.T) {
	book := NewOrderBook()

	ask := submit(book, Ask, 100, 10)
	res := submit(book, Bid, 100, 4)

	if res.Remaining != 0 {
		t.Fatalf("bid should fill completely, remaining=%d", res.Remaining)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("expected one trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.MakerID != ask.Rested.ID || tr.Price != 100 || tr.Qty != 4 {
		t.Fatalf("unexpected trade %+v", tr)
	}

	lvl := book.Asks().Level(100)
	if lvl == nil || lvl.Head().Qty != 6 {
		t.Fatal("maker should still rest at 100 with qty 6")
	}
	if res.Reduced == nil || res.Reduced.Qty != 6 {
		t.Fatalf("expected reduced maker snapshot with qty 6, got %+v", res.Reduced)
	}
	if len(res.Removed) != 0 || res.Rested != nil {
		t.Error("no maker removed and taker must not rest")
	}
}

func TestFullFillRemovesMakerAndPrunesLevel(t *testing.T) {
	book := NewOrderBook()

	ask := submit(book, Ask, 100, 5)
	res := submit(book, Bid, 100, 5)

	if res.Remaining != 0 || len(res.Trades) != 1 {
		t.Fatalf("expected exact fill, got %+v", res)
	}
	if len(res.Removed) != 1 || res.Removed[0].ID != ask.Rested.ID || res.Removed[0].Qty != 0 {
		t.Fatalf("expected maker removal snapshot at qty 0, got %+v", res.Removed)
	}
	if book.Asks().Level(100) != nil {
		t.Error("empty level 100 must be pruned")
	}
	if book.Asks().Depth() != 0 {
		t.Error("ask side should be empty")
	}
}

func TestPriceTimePriority(t *testing.T) {
	book := NewOrderBook()

	a := submit(book, Ask, 100, 5) // arrives first
	b := submit(book, Ask, 100, 5)

	res := submit(book, Bid, 100, 10)
	if res.Remaining != 0 || len(res.Trades) != 2 {
		t.Fatalf("expected both makers consumed, got %+v", res)
	}
	if res.Trades[0].MakerID != a.Rested.ID {
		t.Error("earlier arrival must fill first")
	}
	if res.Trades[1].MakerID != b.Rested.ID {
		t.Error("later arrival must fill second")
	}
	if res.Trades[0].Seq >= res.Trades[1].Seq {
		t.Error("trade sequence numbers must be monotonic")
	}
}

func TestTimePriorityEarlierFillsCompletelyFirst(t *testing.T) {
	book := NewOrderBook()

	a := submit(book, Ask, 100, 5)
	submit(book, Ask, 100, 5)

	// Taker smaller than A: B must be untouched.
	res := submit(book, Bid, 100, 5)
	if res.Remaining != 0 || len(res.Trades) != 1 {
		t.Fatalf("expected one exact fill, got %+v", res)
	}
	if res.Trades[0].MakerID != a.Rested.ID {
		t.Error("trade must hit the earlier maker only")
	}

	lvl := book.Asks().Level(100)
	if lvl == nil || lvl.OrderCount != 1 || lvl.Head().Qty != 5 {
		t.Error("later maker must still rest untouched with qty 5")
	}
}

func TestBetterPriceWinsAcrossLevels(t *testing.T) {
	book := NewOrderBook()

	submit(book, Ask, 101, 5)
	cheap := submit(book, Ask, 100, 5)

	res := submit(book, Bid, 101, 5)
	if len(res.Trades) != 1 || res.Trades[0].MakerID != cheap.Rested.ID {
		t.Fatal("taker must hit the best (lowest) ask first")
	}
	if res.Trades[0].Price != 100 {
		t.Error("trade executes at the maker's price")
	}
}

func TestNoTradeThrough(t *testing.T) {
	book := NewOrderBook()

	submit(book, Ask, 105, 5)
	res := submit(book, Bid, 100, 5)

	if len(res.Trades) != 0 || res.Remaining != 5 {
		t.Fatal("non-crossing bid must not trade")
	}
	if book.Bids().Depth() != 1 || book.Asks().Depth() != 1 {
		t.Fatal("both orders should rest")
	}
}

func TestTakerSweepsMultipleLevels(t *testing.T) {
	book := NewOrderBook()

	submit(book, Ask, 100, 3)
	submit(book, Ask, 101, 3)
	submit(book, Ask, 102, 3)

	res := submit(book, Bid, 101, 10)
	if len(res.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(res.Trades))
	}
	if res.Remaining != 4 {
		t.Fatalf("expected remaining=4, got %d", res.Remaining)
	}
	if res.Rested == nil || res.Rested.Price != 101 {
		t.Fatal("leftover must rest at its own price")
	}
	if book.Asks().Level(100) != nil || book.Asks().Level(101) != nil {
		t.Error("swept levels must be pruned")
	}
	if book.Asks().Level(102) == nil {
		t.Error("level beyond the limit price must survive")
	}
}

// Scenario: Ask{price=100, qty=10}; Bid{price=100, qty=4}.
func TestScenarioPartialMaker(t *testing.T) {
	book := NewOrderBook()

	ask := submit(book, Ask, 100, 10)
	res := submit(book, Bid, 100, 4)

	if res.Remaining != 0 {
		t.Fatalf("bid remaining = %d, want 0", res.Remaining)
	}
	lvl := book.Asks().Level(100)
	if lvl == nil || lvl.Head().ID != ask.Rested.ID || lvl.Head().Qty != 6 {
		t.Fatal("ask must still rest at 100 with qty 6")
	}
	if len(res.Trades) != 1 || res.Trades[0].Qty != 4 || res.Trades[0].Price != 100 {
		t.Fatalf("want one trade qty=4 price=100, got %+v", res.Trades)
	}
}

func TestQuantityConservation(t *testing.T) {
	book := NewOrderBook()

	submit(book, Ask, 100, 7)
	submit(book, Ask, 101, 3)

	incoming := uint64(12)
	res := submit(book, Bid, 101, incoming)

	var traded uint64
	for _, tr := range res.Trades {
		traded += tr.Qty
	}
	if traded != incoming-res.Remaining {
		t.Fatalf("trade sum %d != taker reduction %d", traded, incoming-res.Remaining)
	}
	if traded != 10 {
		t.Fatalf("opposing side reduction %d, want 10", traded)
	}
}

func TestIDAndSeqAssignment(t *testing.T) {
	book := NewOrderBook()

	a := submit(book, Bid, 10, 1)
	b := submit(book, Bid, 11, 1)
	if a.Rested.ID == 0 || b.Rested.ID == 0 {
		t.Fatal("engine must assign ids")
	}
	if a.Rested.ID == b.Rested.ID {
		t.Fatal("ids must be unique")
	}
	if a.Rested.Seq >= b.Rested.Seq {
		t.Fatal("sequence must be monotonic")
	}

	// Caller-assigned id survives.
	res := book.SubmitLimit(&Order{ID: 777, UserID: 2, Side: Ask, Price: 12, Qty: 1})
	if res.Rested.ID != 777 {
		t.Fatalf("caller id overwritten: %d", res.Rested.ID)
	}
}

func checkNotCrossed(t *testing.T, b *OrderBook) {
	t.Helper()
	bid, okB := b.Bids().BestPrice()
	ask, okA := b.Asks().BestPrice()
	if okB && okA && bid >= ask {
		t.Fatalf("crossed book: best bid %d >= best ask %d", bid, ask)
	}
}

func TestBookNeverCrossed(t *testing.T) {
	book := NewOrderBook()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 10000; i++ {
		side := Bid
		if rng.Intn(2) == 1 {
			side = Ask
		}
		price := uint64(90 + rng.Intn(21))
		qty := uint64(1 + rng.Intn(9))
		res := submit(book, side, price, qty)

		var traded uint64
		for _, tr := range res.Trades {
			traded += tr.Qty
		}
		if traded+res.Remaining > qty {
			t.Fatalf("conservation violated: traded=%d remaining=%d qty=%d", traded, res.Remaining, qty)
		}
		checkNotCrossed(t, book)
	}

	// No side may hold an empty level.
	for _, side := range []*BookSide{book.Bids(), book.Asks()} {
		side.WalkBest(func(lvl *PriceLevel) bool {
			if lvl.Empty() || lvl.TotalQty == 0 {
				t.Fatalf("empty level %d not pruned", lvl.Price)
			}
			return true
		})
	}
}
