package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DeliveryMarker is what the consumer needs from the allocation service to
// record a delivered package.
type DeliveryMarker interface {
	MarkDelivered(ctx context.Context, sessionID string, warehouseID int) error
}

// KafkaConsumer ingests delivery events from the logistics side and marks the
// matching warehouse outcome as delivered.
type KafkaConsumer struct {
	reader *kafka.Reader
	marker DeliveryMarker
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewKafkaConsumer(brokers string, topic string, groupID string, marker DeliveryMarker, logger *zap.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{brokers},
		Topic:   topic,
		GroupID: groupID,
	})

	ctx, cancel := context.WithCancel(context.Background())

	return &KafkaConsumer{
		reader: reader,
		marker: marker,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (kc *KafkaConsumer) Start() {
	kc.logger.Info("Kafka consumer started",
		zap.String("topic", kc.reader.Config().Topic))
	go kc.consume()
}

func (kc *KafkaConsumer) consume() {
	defer close(kc.done)
	defer kc.reader.Close()

	for {
		msg, err := kc.reader.ReadMessage(kc.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				kc.logger.Info("Kafka consumer stopped")
				return
			}
			kc.logger.Error("Error reading message", zap.Error(err))
			continue
		}

		if err := kc.processMessage(msg); err != nil {
			kc.logger.Error("Error processing message",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
	}
}

func (kc *KafkaConsumer) processMessage(msg kafka.Message) error {
	var event PackageDeliveredEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal delivery event: %w", err)
	}

	kc.logger.Info("Processing delivery event",
		zap.String("event_id", event.EventID),
		zap.String("session_id", event.SessionID),
		zap.Int("warehouse_id", event.WarehouseID))

	if err := kc.marker.MarkDelivered(kc.ctx, event.SessionID, event.WarehouseID); err != nil {
		return fmt.Errorf("mark delivered for session %s: %w", event.SessionID, err)
	}

	return nil
}

func (kc *KafkaConsumer) Stop() {
	kc.logger.Info("Stopping Kafka consumer")
	kc.cancel()
	<-kc.done
}
