package redis

import (
	"context"
	"fmt"
	"time"

	"ms-ticketcodes/internal/logger"

	"github.com/go-redis/redis/v8"
)

// Connect opens a Redis client and checks the connection.
func Connect(addr string, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // no password
		DB:       0,  // use default DB
		PoolSize: 10, // connection pool size
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	log.Info("REDIS", fmt.Sprintf("Connected to Redis at %s for order completion locks", addr))
	return client, nil
}
