// Package store is the durable log: a pebble-backed mirror of the book
// used for write-through persistence and startup recovery.
package store

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"clob/domain/orderbook"
	"clob/errs"
)

// commit retry policy for transient storage faults. Unrecoverable
// faults (corruption, disk full) surface after the attempts run out.
const (
	commitAttempts = 3
	commitBackoff  = 10 * time.Millisecond
)

type Store struct {
	db  *pebble.DB
	log *zap.Logger
}

// Open opens (or creates) the durable log at dir.
func Open(dir string, log *zap.Logger) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errs.E(errs.Storage, "store.Open", err)
	}
	log.Info("durable log opened", zap.String("dir", dir))
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errs.E(errs.Storage, "store.Close", err)
	}
	return nil
}

// Batch accumulates every mutation of one submission so the whole set
// commits atomically.
type Batch struct {
	b *pebble.Batch
}

func (s *Store) NewBatch() *Batch {
	return &Batch{b: s.db.NewBatch()}
}

// PutOrder writes the current snapshot of o and its level-index entry.
func (b *Batch) PutOrder(o orderbook.Order) {
	_ = b.b.Set(orderKey(o.ID), encodeOrder(o), nil)
}

// PutLevelEntry indexes an order under (price, seq) for recovery scans.
func (b *Batch) PutLevelEntry(o orderbook.Order) {
	v := make([]byte, 8)
	binary.LittleEndian.PutUint64(v, o.ID)
	_ = b.b.Set(levelKey(o.Price, o.Seq), v, nil)
}

// DeleteOrder removes a fully filled order from both indices.
func (b *Batch) DeleteOrder(o orderbook.Order) {
	_ = b.b.Delete(orderKey(o.ID), nil)
	_ = b.b.Delete(levelKey(o.Price, o.Seq), nil)
}

// PutTrade appends an execution to the outbox.
func (b *Batch) PutTrade(t orderbook.Trade) {
	_ = b.b.Set(tradeKey(t.Seq), encodeTrade(t), nil)
}

// Empty reports whether the batch holds no mutations.
func (b *Batch) Empty() bool { return b.b.Empty() }

// Commit applies the batch durably (fsynced) before returning.
// Transient faults are retried a bounded number of times.
func (s *Store) Commit(b *Batch) error {
	defer b.b.Close()

	var err error
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		err = s.db.Apply(b.b, pebble.Sync)
		if err == nil {
			return nil
		}
		s.log.Warn("durable commit failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		time.Sleep(commitBackoff)
	}
	return errs.E(errs.Storage, "store.Commit", err)
}

// GetOrder fetches the current snapshot of an order. The second return
// is false if the order is absent (filled and tombstoned, or unknown).
func (s *Store) GetOrder(id uint64) (orderbook.Order, bool, error) {
	v, closer, err := s.db.Get(orderKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return orderbook.Order{}, false, nil
	}
	if err != nil {
		return orderbook.Order{}, false, errs.E(errs.Storage, "store.GetOrder", err)
	}
	defer closer.Close()

	o, err := decodeOrder(v)
	if err != nil {
		return orderbook.Order{}, false, err
	}
	return o, true, nil
}

// ScanLevels cursor-scans the (price, seq) index in key order, which is
// numeric price order then arrival order. Recovery depends on exactly
// this ordering.
func (s *Store) ScanLevels(fn func(price, seq, orderID uint64) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{prefixLevel},
		UpperBound: []byte{prefixLevel + 1},
	})
	if err != nil {
		return errs.E(errs.Storage, "store.ScanLevels", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		price, seq, err := parseLevelKey(iter.Key())
		if err != nil {
			return err
		}
		if len(iter.Value()) != 8 {
			return errs.Errorf(errs.Storage, "store.ScanLevels", "malformed level value (%d bytes)", len(iter.Value()))
		}
		id := binary.LittleEndian.Uint64(iter.Value())
		if err := fn(price, seq, id); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return errs.E(errs.Storage, "store.ScanLevels", err)
	}
	return nil
}

// ScanTrades visits outbox entries in execution order.
func (s *Store) ScanTrades(fn func(t orderbook.Trade) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{prefixTrade},
		UpperBound: []byte{prefixTrade + 1},
	})
	if err != nil {
		return errs.E(errs.Storage, "store.ScanTrades", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		t, err := decodeTrade(iter.Value())
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return errs.E(errs.Storage, "store.ScanTrades", err)
	}
	return nil
}

// DeleteTrade removes a published outbox entry.
func (s *Store) DeleteTrade(seq uint64) error {
	if err := s.db.Delete(tradeKey(seq), pebble.Sync); err != nil {
		return errs.E(errs.Storage, "store.DeleteTrade", err)
	}
	return nil
}
