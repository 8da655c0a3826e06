package service

import (
	"go.uber.org/zap"

	"clob/domain/orderbook"
	"clob/infra/store"
)

// Recover rebuilds the book from the durable log. It must run to
// completion before the service accepts any submission.
//
// The (price, seq) index is scanned in key order, which already equals
// arrival order within each price, so appending each live order at the
// tail of its level reproduces the pre-crash FIFO exactly. Entries
// whose snapshot is missing or drained to zero are skipped; a filled
// order is never resurrected.
func Recover(st *store.Store, book *orderbook.OrderBook, log *zap.Logger) (int, error) {
	restored := 0
	var lastID, lastSeq uint64

	err := st.ScanLevels(func(price, seq, id uint64) error {
		o, ok, err := st.GetOrder(id)
		if err != nil {
			return err
		}
		if !ok || o.Qty == 0 {
			return nil
		}

		rec := o
		book.Restore(&rec)
		restored++

		if o.ID > lastID {
			lastID = o.ID
		}
		if o.Seq > lastSeq {
			lastSeq = o.Seq
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Unpublished executions may carry ids and sequences beyond any
	// resting order; the counters must clear those too so nothing is
	// ever reused.
	err = st.ScanTrades(func(t orderbook.Trade) error {
		if t.MakerID > lastID {
			lastID = t.MakerID
		}
		if t.TakerID > lastID {
			lastID = t.TakerID
		}
		if t.Seq > lastSeq {
			lastSeq = t.Seq
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	book.ResetSequences(lastID, lastSeq)

	log.Info("recovery complete",
		zap.Int("orders_restored", restored),
		zap.Uint64("last_id", lastID),
		zap.Uint64("last_seq", lastSeq),
	)
	return restored, nil
}
