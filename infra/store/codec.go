package store

import (
	"encoding/binary"

	"clob/domain/orderbook"
	"clob/errs"
)

// Key layout. One pebble keyspace carries the two indices plus the
// trade outbox, separated by a prefix byte:
//
//	'o' + id (8B little-endian)          -> order snapshot
//	'l' + price (8B BE) + seq (8B BE)    -> order id (8B LE)
//	't' + trade seq (8B BE)              -> trade record
//
// The level key is big-endian on both components so lexicographic key
// order equals numeric price order, then arrival order. Sequence MUST
// be part of the key: an index keyed by price alone does not preserve
// FIFO order across recovery.
const (
	prefixOrder byte = 'o'
	prefixLevel byte = 'l'
	prefixTrade byte = 't'
)

const (
	orderKeyLen = 1 + 8
	levelKeyLen = 1 + 8 + 8
	tradeKeyLen = 1 + 8

	orderValLen = 8 + 8 + 1 + 8 + 8 + 8
	tradeValLen = 8 + 8 + 8 + 8 + 8
)

func orderKey(id uint64) []byte {
	k := make([]byte, orderKeyLen)
	k[0] = prefixOrder
	binary.LittleEndian.PutUint64(k[1:], id)
	return k
}

func levelKey(price, seq uint64) []byte {
	k := make([]byte, levelKeyLen)
	k[0] = prefixLevel
	binary.BigEndian.PutUint64(k[1:9], price)
	binary.BigEndian.PutUint64(k[9:], seq)
	return k
}

func tradeKey(seq uint64) []byte {
	k := make([]byte, tradeKeyLen)
	k[0] = prefixTrade
	binary.BigEndian.PutUint64(k[1:], seq)
	return k
}

func parseLevelKey(k []byte) (price, seq uint64, err error) {
	if len(k) != levelKeyLen || k[0] != prefixLevel {
		return 0, 0, errs.Errorf(errs.Storage, "store.parseLevelKey", "malformed level key (%d bytes)", len(k))
	}
	return binary.BigEndian.Uint64(k[1:9]), binary.BigEndian.Uint64(k[9:]), nil
}

func encodeOrder(o orderbook.Order) []byte {
	v := make([]byte, orderValLen)
	binary.BigEndian.PutUint64(v[0:8], o.ID)
	binary.BigEndian.PutUint64(v[8:16], o.UserID)
	v[16] = byte(o.Side)
	binary.BigEndian.PutUint64(v[17:25], o.Price)
	binary.BigEndian.PutUint64(v[25:33], o.Qty)
	binary.BigEndian.PutUint64(v[33:41], o.Seq)
	return v
}

func decodeOrder(v []byte) (orderbook.Order, error) {
	if len(v) != orderValLen {
		return orderbook.Order{}, errs.Errorf(errs.Storage, "store.decodeOrder", "malformed order snapshot (%d bytes)", len(v))
	}
	return orderbook.Order{
		ID:     binary.BigEndian.Uint64(v[0:8]),
		UserID: binary.BigEndian.Uint64(v[8:16]),
		Side:   orderbook.Side(v[16]),
		Price:  binary.BigEndian.Uint64(v[17:25]),
		Qty:    binary.BigEndian.Uint64(v[25:33]),
		Seq:    binary.BigEndian.Uint64(v[33:41]),
	}, nil
}

func encodeTrade(t orderbook.Trade) []byte {
	v := make([]byte, tradeValLen)
	binary.BigEndian.PutUint64(v[0:8], t.MakerID)
	binary.BigEndian.PutUint64(v[8:16], t.TakerID)
	binary.BigEndian.PutUint64(v[16:24], t.Price)
	binary.BigEndian.PutUint64(v[24:32], t.Qty)
	binary.BigEndian.PutUint64(v[32:40], t.Seq)
	return v
}

func decodeTrade(v []byte) (orderbook.Trade, error) {
	if len(v) != tradeValLen {
		return orderbook.Trade{}, errs.Errorf(errs.Storage, "store.decodeTrade", "malformed trade record (%d bytes)", len(v))
	}
	return orderbook.Trade{
		MakerID: binary.BigEndian.Uint64(v[0:8]),
		TakerID: binary.BigEndian.Uint64(v[8:16]),
		Price:   binary.BigEndian.Uint64(v[16:24]),
		Qty:     binary.BigEndian.Uint64(v[24:32]),
		Seq:     binary.BigEndian.Uint64(v[32:40]),
	}, nil
}
