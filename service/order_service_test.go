package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clob/domain/orderbook"
	"clob/errs"
	"clob/infra/store"
)

func newTestService(t *testing.T) (*OrderService, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc := NewOrderService(orderbook.NewOrderBook(), st, zap.NewNop(), 64)
	svc.Start()
	t.Cleanup(svc.Close)
	return svc, st
}

func TestSubmitRestsAndPersists(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	res, err := svc.SubmitLimitOrder(ctx, orderbook.Order{UserID: 1, Side: orderbook.Bid, Price: 99, Qty: 5})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), res.Remaining)
	assert.Empty(t, res.Trades)

	// The ack happens after the durable commit, so the snapshot must
	// already be readable.
	got, ok, err := st.GetOrder(res.OrderID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(5), got.Qty)
	assert.Equal(t, uint64(99), got.Price)
}

func TestSubmitMatchPersistsAllChanges(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	ask, err := svc.SubmitLimitOrder(ctx, orderbook.Order{UserID: 1, Side: orderbook.Ask, Price: 100, Qty: 10})
	require.NoError(t, err)

	bid, err := svc.SubmitLimitOrder(ctx, orderbook.Order{UserID: 2, Side: orderbook.Bid, Price: 100, Qty: 4})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bid.Remaining)
	require.Len(t, bid.Trades, 1)
	assert.Equal(t, ask.OrderID, bid.Trades[0].MakerID)
	assert.Equal(t, uint64(100), bid.Trades[0].Price)
	assert.Equal(t, uint64(4), bid.Trades[0].Qty)

	// Maker snapshot decremented in place.
	got, ok, err := st.GetOrder(ask.OrderID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(6), got.Qty)

	// Fully filled taker never hits the orders index.
	_, ok, err = st.GetOrder(bid.OrderID)
	require.NoError(t, err)
	assert.False(t, ok)

	// The execution landed in the outbox.
	var trades []orderbook.Trade
	require.NoError(t, st.ScanTrades(func(tr orderbook.Trade) error {
		trades = append(trades, tr)
		return nil
	}))
	require.Len(t, trades, 1)
	assert.Equal(t, bid.Trades[0], trades[0])
}

func TestFullFillTombstonesMaker(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	ask, err := svc.SubmitLimitOrder(ctx, orderbook.Order{UserID: 1, Side: orderbook.Ask, Price: 100, Qty: 5})
	require.NoError(t, err)

	bid, err := svc.SubmitLimitOrder(ctx, orderbook.Order{UserID: 2, Side: orderbook.Bid, Price: 100, Qty: 5})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bid.Remaining)

	_, ok, err := st.GetOrder(ask.OrderID)
	require.NoError(t, err)
	assert.False(t, ok, "filled maker must be removed from the index")

	count := 0
	require.NoError(t, st.ScanLevels(func(price, seq, id uint64) error {
		count++
		return nil
	}))
	assert.Zero(t, count, "no level entries may remain")
}

func TestRejectsZeroQuantity(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SubmitLimitOrder(context.Background(), orderbook.Order{UserID: 1, Side: orderbook.Bid, Price: 10})
	require.Error(t, err)
	assert.Equal(t, errs.Decode, errs.KindOf(err))
}

func TestConcurrentSubmissionsSerialized(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const goroutines, per = 8, 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	var submitted, traded, remaining uint64

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				side := orderbook.Bid
				if (g+i)%2 == 0 {
					side = orderbook.Ask
				}
				qty := uint64(1 + i%5)
				res, err := svc.SubmitLimitOrder(ctx, orderbook.Order{
					UserID: uint64(g + 1),
					Side:   side,
					Price:  uint64(95 + (i*7)%11),
					Qty:    qty,
				})
				if err != nil {
					t.Error(err)
					return
				}
				var tr uint64
				for _, trade := range res.Trades {
					tr += trade.Qty
				}
				mu.Lock()
				submitted += qty
				traded += tr
				remaining += res.Remaining
				mu.Unlock()
			}
		}(g)
	}
	wg.Wait()

	// Each submission conserves quantity; the serialized book must
	// hold exactly the unmatched remainder of both sides.
	var resting uint64
	require.NoError(t, svc.Inspect(ctx, func(b *orderbook.OrderBook) {
		for _, side := range []*orderbook.BookSide{b.Bids(), b.Asks()} {
			side.WalkBest(func(lvl *orderbook.PriceLevel) bool {
				resting += lvl.TotalQty
				return true
			})
		}
		bid, okB := b.Bids().BestPrice()
		ask, okA := b.Asks().BestPrice()
		if okB && okA && bid >= ask {
			t.Errorf("crossed book after concurrent load: %d >= %d", bid, ask)
		}
	}))
	assert.Equal(t, submitted, traded*2+resting,
		"submitted qty must equal twice the traded qty plus resting qty")
}

func TestDepth(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, p := range []uint64{98, 99, 99} {
		_, err := svc.SubmitLimitOrder(ctx, orderbook.Order{UserID: 1, Side: orderbook.Bid, Price: p, Qty: 2})
		require.NoError(t, err)
	}
	_, err := svc.SubmitLimitOrder(ctx, orderbook.Order{UserID: 1, Side: orderbook.Ask, Price: 101, Qty: 3})
	require.NoError(t, err)

	bids, asks, err := svc.Depth(ctx, 10)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Len(t, asks, 1)
	assert.Equal(t, DepthLevel{Price: 99, Qty: 4, Orders: 2}, bids[0], "best bid first")
	assert.Equal(t, DepthLevel{Price: 98, Qty: 2, Orders: 1}, bids[1])
	assert.Equal(t, DepthLevel{Price: 101, Qty: 3, Orders: 1}, asks[0])
}

func TestCloseRejectsNewSubmissions(t *testing.T) {
	st, err := store.Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer st.Close()

	svc := NewOrderService(orderbook.NewOrderBook(), st, zap.NewNop(), 8)
	svc.Start()

	_, err = svc.SubmitLimitOrder(context.Background(), orderbook.Order{UserID: 1, Side: orderbook.Bid, Price: 10, Qty: 1})
	require.NoError(t, err)

	svc.Close()

	_, err = svc.SubmitLimitOrder(context.Background(), orderbook.Order{UserID: 1, Side: orderbook.Bid, Price: 10, Qty: 1})
	assert.ErrorIs(t, err, ErrShuttingDown)

	// The queue drained before Close returned: the resting order is
	// durable.
	count := 0
	require.NoError(t, st.ScanLevels(func(price, seq, id uint64) error {
		count++
		return nil
	}))
	assert.Equal(t, 1, count)
}
