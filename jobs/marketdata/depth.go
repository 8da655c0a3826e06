// Package marketdata publishes periodic depth snapshots of the book.
// Reads go through the service boundary like every other access; the
// publisher never sees the book concurrently with a mutation.
package marketdata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"clob/service"
)

// DepthSnapshot is the published wire format.
type DepthSnapshot struct {
	Bids []service.DepthLevel `json:"bids"`
	Asks []service.DepthLevel `json:"asks"`
	Time int64                `json:"ts"`
}

type Publisher struct {
	svc      *service.OrderService
	writer   *kafka.Writer
	interval time.Duration
	levels   int
	log      *zap.Logger
}

func NewPublisher(svc *service.OrderService, brokers []string, topic string, interval time.Duration, levels int, log *zap.Logger) *Publisher {
	return &Publisher{
		svc: svc,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
		interval: interval,
		levels:   levels,
		log:      log,
	}
}

// Run publishes until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	p.log.Info("depth publisher started", zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishOnce(ctx)
		}
	}
}

func (p *Publisher) publishOnce(ctx context.Context) {
	bids, asks, err := p.svc.Depth(ctx, p.levels)
	if err != nil {
		p.log.Warn("depth query failed", zap.Error(err))
		return
	}

	payload, err := json.Marshal(DepthSnapshot{
		Bids: bids,
		Asks: asks,
		Time: time.Now().UnixNano(),
	})
	if err != nil {
		p.log.Error("depth marshal failed", zap.Error(err))
		return
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Value: payload}); err != nil {
		p.log.Warn("depth publish failed", zap.Error(err))
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
