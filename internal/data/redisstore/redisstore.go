package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/immihelp/formapi/pkg/logging"
)

type Store struct {
	client *redis.Client
	logger *logging.Logger
}

// NewStore connects to one redis logical database and pings it, so a
// dead redis is caught at startup and the caller can fall back.
func NewStore(ctx context.Context, addr string, db int) (*Store, error) {
	logger := logging.NewLogger("Redis Store")

	client := redis.NewClient(&redis.Options{
		Addr:                  addr,
		DB:                    db,
		ContextTimeoutEnabled: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("redis is offline", "addr", addr, "error", err)
		return nil, err
	}

	logger.Info("redis store init successfully", "addr", addr, "db", db)
	return &Store{client: client, logger: logger}, nil
}

func (s *Store) Close() {
	if err := s.client.Close(); err != nil {
		s.logger.Error("error closing redis client", "error", err)
	}
}

// NewTestStore wraps an existing client, for miniredis-backed tests.
func NewTestStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		logger: logging.NewLogger("Redis Store"),
	}
}
