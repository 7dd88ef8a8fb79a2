package kafka

import (
	"context"
	"encoding/json"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"

	"github.com/Mehdi856/Chat-Project/service/chat"
)

// Producer publishes message records to the archive topic instead of writing
// Mongo directly. It implements chat.MessageStore, so the gateway can swap it
// in when the broker is enabled; the Archiver drains the topic into Mongo.
type Producer struct {
	prod  sarama.SyncProducer
	topic string
}

func NewProducer(cfg Config) (*Producer, error) {
	prod, err := sarama.NewSyncProducer(cfg.Brokers, newClientConfig())
	if err != nil {
		return nil, errors.Wrap(err, "kafka producer")
	}
	return &Producer{prod: prod, topic: cfg.Topic}, nil
}

// conversationKey keeps all records of one conversation on one partition so
// the archive preserves their relative order.
func conversationKey(rec *chat.MessageRecord) string {
	if rec.GroupID != "" {
		return "g:" + rec.GroupID
	}
	a, b := rec.Sender, rec.Receiver
	if b < a {
		a, b = b, a
	}
	return "d:" + a + ":" + b
}

func (p *Producer) Append(ctx context.Context, rec *chat.MessageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal record")
	}
	_, _, err = p.prod.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(conversationKey(rec)),
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

func (p *Producer) Close() error {
	return p.prod.Close()
}
