package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"

	"github.com/Mehdi856/Chat-Project/logger"
	"github.com/Mehdi856/Chat-Project/service/chat"
	"github.com/Mehdi856/Chat-Project/tools/safe"
)

// Archiver consumes the archive topic and appends each record to the durable
// store. Offsets are marked only after a successful append, so a crash replays
// the batch; the store treats duplicate ids as success.
type Archiver struct {
	group sarama.ConsumerGroup
	topic string
	store chat.MessageStore
}

func NewArchiver(cfg Config, store chat.MessageStore) (*Archiver, error) {
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, newClientConfig())
	if err != nil {
		return nil, errors.Wrap(err, "kafka consumer group")
	}
	return &Archiver{group: group, topic: cfg.Topic, store: store}, nil
}

// Run blocks until ctx is cancelled, rejoining the group after rebalances.
func (a *Archiver) Run(ctx context.Context) error {
	safe.SafeGo(func() {
		for err := range a.group.Errors() {
			logger.Errorf("archiver group error: %v", err)
		}
	})
	for {
		if err := a.group.Consume(ctx, []string{a.topic}, &archiveHandler{store: a.store}); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			logger.Errorf("archiver consume: %v", err)
		}
		if ctx.Err() != nil {
			return a.group.Close()
		}
	}
}

type archiveHandler struct {
	store chat.MessageStore
}

func (h *archiveHandler) Setup(sarama.ConsumerGroupSession) error {
	logger.Info("archiver joined consumer group")
	return nil
}

func (h *archiveHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *archiveHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var rec chat.MessageRecord
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			logger.Warnf("archiver: bad record at %s/%d@%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
			session.MarkMessage(msg, "")
			continue
		}

		ctx, cancel := context.WithTimeout(session.Context(), 5*time.Second)
		err := h.store.Append(ctx, &rec)
		cancel()
		if err != nil {
			logger.Errorf("archiver: append %s: %v", rec.ID, err)
			return err
		}
		session.MarkMessage(msg, "")
	}
	return nil
}
