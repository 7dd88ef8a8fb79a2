package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Mehdi856/Chat-Project/logger"
	"github.com/Mehdi856/Chat-Project/tools/errs"
)

// MongoConfig represents the MongoDB configuration.
type MongoConfig struct {
	URI         string
	Database    string
	MaxPoolSize uint64
	MaxRetry    int
}

func (c *MongoConfig) norm() error {
	if c.URI == "" {
		return errs.New("mongo uri is required")
	}
	if c.Database == "" {
		c.Database = "chat"
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 100
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = 3
	}
	return nil
}

type Mongo struct {
	cli *mongo.Client
	db  *mongo.Database
}

// Dial connects and pings, retrying with a short backoff.
func Dial(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	if err := cfg.norm(); err != nil {
		return nil, err
	}
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetServerSelectionTimeout(10 * time.Second)

	var (
		cli *mongo.Client
		err error
	)
	for i := 0; i < cfg.MaxRetry; i++ {
		cli, err = mongo.Connect(ctx, opts)
		if err == nil {
			if err = cli.Ping(ctx, nil); err == nil {
				break
			}
			_ = cli.Disconnect(ctx)
		}
		logger.Warnf("[mongo] connect attempt %d failed: %v", i+1, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second / 2):
		}
	}
	if err != nil {
		return nil, err
	}
	return &Mongo{cli: cli, db: cli.Database(cfg.Database)}, nil
}

func (m *Mongo) DB() *mongo.Database { return m.db }

func (m *Mongo) Close(ctx context.Context) error {
	return m.cli.Disconnect(ctx)
}
