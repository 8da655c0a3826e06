// Package service owns the concurrency discipline of the engine: one
// goroutine mutates the book, one goroutine persists, everyone else
// talks to them through channels.
package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"clob/domain/orderbook"
	"clob/errs"
	"clob/infra/store"
)

// ErrShuttingDown is returned to submissions that arrive after Close.
var ErrShuttingDown = errors.New("engine shutting down")

// SubmitResult is what a caller gets back for one submission, after
// its mutations have been committed durably.
type SubmitResult struct {
	OrderID   uint64
	Remaining uint64
	Trades    []orderbook.Trade
}

type request struct {
	order   *orderbook.Order
	inspect func(*orderbook.OrderBook)
	reply   chan reply
}

type reply struct {
	res  orderbook.MatchResult
	id   uint64
	done <-chan error
}

type persistOp struct {
	batch *store.Batch
	done  chan error
}

// OrderService is the only write entry point into the matching engine.
//
// Exactly one goroutine (run) applies submissions to the book, so
// concurrent callers are serialized, never handed copies of the book.
// A second goroutine (persistLoop) drains a bounded queue of batches in
// exactly submission order; when the queue is full the engine goroutine
// blocks, which is the backpressure policy. A submission is only
// acknowledged to its caller after its batch committed durably.
type OrderService struct {
	book *orderbook.OrderBook
	st   *store.Store
	log  *zap.Logger

	reqs    chan *request
	persist chan *persistOp
	quit    chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewOrderService(book *orderbook.OrderBook, st *store.Store, log *zap.Logger, queueDepth int) *OrderService {
	if queueDepth <= 0 {
		queueDepth = 1024
	}
	return &OrderService{
		book:    book,
		st:      st,
		log:     log,
		reqs:    make(chan *request),
		persist: make(chan *persistOp, queueDepth),
		quit:    make(chan struct{}),
	}
}

// Start launches the engine and persistence goroutines. Recovery must
// have completed before Start.
func (s *OrderService) Start() {
	s.wg.Add(2)
	go s.run()
	go s.persistLoop()
}

// Close stops intake and blocks until every queued persistence batch
// has been committed.
func (s *OrderService) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		s.wg.Wait()
	})
}

// SubmitLimitOrder serializes one submission through the engine and
// returns once its effects are durable. Cancelling ctx abandons the
// wait but never rolls back trades already applied to the book.
func (s *OrderService) SubmitLimitOrder(ctx context.Context, o orderbook.Order) (SubmitResult, error) {
	if o.Qty == 0 {
		return SubmitResult{}, errs.Errorf(errs.Decode, "service.SubmitLimitOrder", "quantity must be positive")
	}

	req := &request{order: &o, reply: make(chan reply, 1)}
	select {
	case s.reqs <- req:
	case <-s.quit:
		return SubmitResult{}, ErrShuttingDown
	case <-ctx.Done():
		return SubmitResult{}, ctx.Err()
	}

	rep := <-req.reply

	select {
	case err := <-rep.done:
		if err != nil {
			return SubmitResult{}, err
		}
	case <-ctx.Done():
		return SubmitResult{}, ctx.Err()
	}

	return SubmitResult{
		OrderID:   rep.id,
		Remaining: rep.res.Remaining,
		Trades:    rep.res.Trades,
	}, nil
}

// Inspect runs fn inside the engine goroutine with exclusive access to
// the book. fn must not retain references past its return.
func (s *OrderService) Inspect(ctx context.Context, fn func(*orderbook.OrderBook)) error {
	req := &request{inspect: fn, reply: make(chan reply, 1)}
	select {
	case s.reqs <- req:
	case <-s.quit:
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
	<-req.reply
	return nil
}

// DepthLevel is one aggregated price level of a depth snapshot.
type DepthLevel struct {
	Price  uint64 `json:"price"`
	Qty    uint64 `json:"qty"`
	Orders int    `json:"orders"`
}

// Depth returns up to maxLevels aggregated levels per side, best first.
func (s *OrderService) Depth(ctx context.Context, maxLevels int) (bids, asks []DepthLevel, err error) {
	err = s.Inspect(ctx, func(b *orderbook.OrderBook) {
		collect := func(side *orderbook.BookSide) []DepthLevel {
			out := make([]DepthLevel, 0, maxLevels)
			side.WalkBest(func(lvl *orderbook.PriceLevel) bool {
				out = append(out, DepthLevel{Price: lvl.Price, Qty: lvl.TotalQty, Orders: lvl.OrderCount})
				return len(out) < maxLevels
			})
			return out
		}
		bids = collect(b.Bids())
		asks = collect(b.Asks())
	})
	return bids, asks, err
}

func (s *OrderService) run() {
	defer s.wg.Done()
	defer close(s.persist)

	for {
		select {
		case <-s.quit:
			return
		case req := <-s.reqs:
			s.handle(req)
		}
	}
}

func (s *OrderService) handle(req *request) {
	if req.inspect != nil {
		req.inspect(s.book)
		req.reply <- reply{}
		return
	}

	res := s.book.SubmitLimit(req.order)

	batch := s.st.NewBatch()
	for _, rm := range res.Removed {
		batch.DeleteOrder(rm)
	}
	if res.Reduced != nil {
		// Level-index key is (price, seq) and neither changed; only
		// the snapshot needs rewriting.
		batch.PutOrder(*res.Reduced)
	}
	if res.Rested != nil {
		batch.PutOrder(*res.Rested)
		batch.PutLevelEntry(*res.Rested)
	}
	for _, t := range res.Trades {
		batch.PutTrade(t)
	}

	done := make(chan error, 1)
	// Blocks when the queue is full; submissions behind us wait.
	s.persist <- &persistOp{batch: batch, done: done}

	req.reply <- reply{res: res, id: req.order.ID, done: done}
}

func (s *OrderService) persistLoop() {
	defer s.wg.Done()

	for op := range s.persist {
		err := s.st.Commit(op.batch)
		if err != nil {
			// The book already holds this submission; the mirror is
			// now behind. Surface the error to the caller and keep
			// serving; recovery semantics degrade to at-least-once
			// for this submission.
			s.log.Error("persistence commit failed", zap.Error(err))
		}
		op.done <- err
	}
}
