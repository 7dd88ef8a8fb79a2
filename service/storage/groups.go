package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Mehdi856/Chat-Project/tools/errs"
	"github.com/Mehdi856/Chat-Project/tools/ids"
)

const collGroups = "groups"

// Group is the membership document the routing core consumes read-only.
type Group struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Owner     string    `bson:"owner" json:"owner"`
	Members   []string  `bson:"members" json:"members"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Groups implements chat.GroupResolver.
type Groups struct {
	coll *mongo.Collection
}

func NewGroups(m *Mongo) *Groups {
	return &Groups{coll: m.DB().Collection(collGroups)}
}

func (s *Groups) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "members", Value: 1}},
	})
	return err
}

// Create inserts a group; the owner is always a member.
func (s *Groups) Create(ctx context.Context, name, owner string, members []string) (*Group, error) {
	seen := map[string]bool{owner: true}
	all := []string{owner}
	for _, m := range members {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		all = append(all, m)
	}
	g := &Group{
		ID:        ids.GenerateString(),
		Name:      name,
		Owner:     owner,
		Members:   all,
		CreatedAt: time.Now(),
	}
	if _, err := s.coll.InsertOne(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Groups) Get(ctx context.Context, id string) (*Group, error) {
	var g Group
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&g)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFind.WithDetail("group " + id)
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Members resolves a group id to its member identities (chat.GroupResolver).
func (s *Groups) Members(ctx context.Context, id string) ([]string, error) {
	g, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return g.Members, nil
}

func (s *Groups) AddMember(ctx context.Context, id, member string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{"members": member}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.ErrRecordNotFind.WithDetail("group " + id)
	}
	return nil
}

func (s *Groups) ListByMember(ctx context.Context, member string) ([]Group, error) {
	cur, err := s.coll.Find(ctx, bson.M{"members": member},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Group
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
