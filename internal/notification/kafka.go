package notification

import (
	"context"
	"encoding/json"
	"time"

	"paysession-be/internal/logger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const eventTypePaymentConfirmed = "payment.confirmed"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes payment events to a single topic keyed by order id.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
	newID  func() string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(writer, topic)
}

func newKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) PublishPaymentConfirmed(ctx context.Context, event PaymentConfirmed) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "notification"),
		zap.String("topic", p.topic),
		zap.String("order_id", event.OrderID),
	)

	payload := map[string]interface{}{
		"event_id":      p.newID(),
		"event_type":    eventTypePaymentConfirmed,
		"event_version": 1,
		"occurred_at":   p.now().UTC().Format(time.RFC3339),
		"order_id":      event.OrderID,
		"gateway_ref":   event.GatewayRef,
		"method":        event.Method,
		"amount":        event.Amount,
		"receipt_ref":   event.ReceiptRef,
	}

	value, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to marshal payment confirmed event", zap.Error(err))
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: value,
	})
	if err != nil {
		log.Error("failed to publish payment confirmed event", zap.Error(err))
		return err
	}

	log.Info("payment confirmed event published", zap.Int64("amount", event.Amount))
	return nil
}
