package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collContacts = "contacts"

// Contact links an owner to one peer identity.
type Contact struct {
	Owner     string    `bson:"owner" json:"owner"`
	Peer      string    `bson:"peer" json:"peer"`
	Alias     string    `bson:"alias,omitempty" json:"alias,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type Contacts struct {
	coll *mongo.Collection
}

func NewContacts(m *Mongo) *Contacts {
	return &Contacts{coll: m.DB().Collection(collContacts)}
}

func (s *Contacts) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "peer", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Add upserts, so re-adding an existing contact is a no-op.
func (s *Contacts) Add(ctx context.Context, c *Contact) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"owner": c.Owner, "peer": c.Peer},
		bson.M{"$setOnInsert": c},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *Contacts) List(ctx context.Context, owner string) ([]Contact, error) {
	cur, err := s.coll.Find(ctx, bson.M{"owner": owner},
		options.Find().SetSort(bson.D{{Key: "peer", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Contact
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Contacts) Remove(ctx context.Context, owner, peer string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"owner": owner, "peer": peer})
	return err
}
