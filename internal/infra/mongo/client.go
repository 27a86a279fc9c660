package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usersCollection    = "users"
	profilesCollection = "userprofiles"
	codesCollection    = "otps"

	// codeRetention is how long Mongo keeps a code past its expiry before the TTL
	// monitor removes it. Verification still reports expiry inside that window.
	codeRetention = time.Hour
)

// ErrFailedToConnect is returned when every connection attempt failed.
var ErrFailedToConnect = errors.New("failed to connect to mongo")

// Config describes how to reach the database.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	RetryAttempts  int
	RetryInterval  time.Duration
}

// Connect dials and pings Mongo, retrying a few times before giving up.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		client, err := mongo.Connect(options.Client().
			ApplyURI(cfg.URI).
			SetConnectTimeout(timeout))
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, timeout)
			err = client.Ping(pingCtx, nil)
			cancel()
			if err == nil {
				return client, nil
			}
			_ = client.Disconnect(ctx)
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, errors.Join(ErrFailedToConnect, lastErr)
}

// EnsureIndexes creates the unique and TTL indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "googleId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}

	_, err = db.Collection(profilesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "stars", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("profiles indexes: %w", err)
	}

	_, err = db.Collection(codesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}, {Key: "type", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(int32(codeRetention.Seconds()))},
	})
	if err != nil {
		return fmt.Errorf("codes indexes: %w", err)
	}
	return nil
}

// Healthcheck pings the server.
func Healthcheck(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx, nil)
	}
}
