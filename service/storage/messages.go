package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Mehdi856/Chat-Project/service/chat"
)

const collMessages = "messages"

// Messages is the durable append/query store for message records. It
// implements chat.MessageStore.
type Messages struct {
	coll *mongo.Collection
}

func NewMessages(m *Mongo) *Messages {
	return &Messages{coll: m.DB().Collection(collMessages)}
}

func (s *Messages) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "receiver", Value: 1}, {Key: "sent_at", Value: -1}}},
		{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "sent_at", Value: -1}}},
	})
	return err
}

// Append durably inserts one record. At-least-once: replaying the same id is
// reported as a duplicate and treated as success by callers.
func (s *Messages) Append(ctx context.Context, rec *chat.MessageRecord) error {
	_, err := s.coll.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// HistoryFilter selects either a direct conversation (both directions between
// UserA and UserB) or a group timeline.
type HistoryFilter struct {
	UserA   string
	UserB   string
	GroupID string
	Limit   int64
}

func buildHistoryFilter(f HistoryFilter) bson.M {
	if f.GroupID != "" {
		return bson.M{"group_id": f.GroupID}
	}
	return bson.M{
		"$or": bson.A{
			bson.M{"sender": f.UserA, "receiver": f.UserB},
			bson.M{"sender": f.UserB, "receiver": f.UserA},
		},
	}
}

// History returns the newest records first, capped by Limit (default 50).
func (s *Messages) History(ctx context.Context, f HistoryFilter) ([]chat.MessageRecord, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: -1}}).
		SetLimit(limit)

	cur, err := s.coll.Find(ctx, buildHistoryFilter(f), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []chat.MessageRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
