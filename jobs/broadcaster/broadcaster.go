// Package broadcaster drains the durable trade outbox and publishes
// executions to Kafka. Delivery is at-least-once: an entry is only
// deleted after the broker acknowledged it, so a crash between publish
// and delete replays the trade.
package broadcaster

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"clob/domain/orderbook"
	"clob/infra/store"
)

// TradeEvent is the published wire format.
type TradeEvent struct {
	V       int    `json:"v"`
	MakerID uint64 `json:"maker_id"`
	TakerID uint64 `json:"taker_id"`
	Price   uint64 `json:"price"`
	Qty     uint64 `json:"qty"`
	Seq     uint64 `json:"seq"`
}

type Broadcaster struct {
	st       *store.Store
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	log      *zap.Logger
}

func New(st *store.Store, brokers []string, topic string, log *zap.Logger) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		st:       st,
		producer: producer,
		topic:    topic,
		interval: 250 * time.Millisecond,
		log:      log,
	}, nil
}

// Run drains the outbox until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("trade broadcaster started", zap.String("topic", b.topic))

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.drainOnce()
		}
	}
}

func (b *Broadcaster) drainOnce() {
	err := b.st.ScanTrades(func(t orderbook.Trade) error {
		payload, err := json.Marshal(TradeEvent{
			V:       1,
			MakerID: t.MakerID,
			TakerID: t.TakerID,
			Price:   t.Price,
			Qty:     t.Qty,
			Seq:     t.Seq,
		})
		if err != nil {
			return err
		}

		_, _, err = b.producer.SendMessage(&sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(encodeSeqKey(t.Seq)),
			Value: sarama.ByteEncoder(payload),
		})
		if err != nil {
			// Leave the entry in place; the next tick retries it.
			b.log.Warn("trade publish failed", zap.Uint64("seq", t.Seq), zap.Error(err))
			return nil
		}

		return b.st.DeleteTrade(t.Seq)
	})
	if err != nil {
		b.log.Error("outbox scan failed", zap.Error(err))
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}

func encodeSeqKey(seq uint64) string {
	buf := [8]byte{}
	for i := 7; i >= 0; i-- {
		buf[i] = byte(seq)
		seq >>= 8
	}
	return string(buf[:])
}
