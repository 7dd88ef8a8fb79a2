package storage

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Mehdi856/Chat-Project/tools/errs"
)

const collUsers = "users"

// User is the account document, keyed by email (the routing identity).
type User struct {
	Email        string    `bson:"_id" json:"email"`
	Username     string    `bson:"username" json:"username"`
	PasswordHash string    `bson:"password" json:"-"`
	AvatarURL    string    `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

type Users struct {
	coll *mongo.Collection
}

func NewUsers(m *Mongo) *Users {
	return &Users{coll: m.DB().Collection(collUsers)}
}

func (s *Users) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "username", Value: 1}},
	})
	return err
}

func (s *Users) Create(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := s.coll.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return errs.ErrRecordIsExist.WithDetail("email " + u.Email)
	}
	return err
}

func (s *Users) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.coll.FindOne(ctx, bson.M{"_id": email}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFind.WithDetail("email " + email)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Users) UpdateAvatar(ctx context.Context, email, url string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": email},
		bson.M{"$set": bson.M{"avatar_url": url}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.ErrRecordNotFind.WithDetail("email " + email)
	}
	return nil
}

// SearchByUsernamePrefix is the range-prefix lookup backing username search.
func (s *Users) SearchByUsernamePrefix(ctx context.Context, prefix string, limit int64) ([]User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	filter := bson.M{"username": primitive.Regex{
		Pattern: "^" + regexp.QuoteMeta(prefix),
		Options: "i",
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "username", Value: 1}}).
		SetLimit(limit)

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
