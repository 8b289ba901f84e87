package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"readquest-service/internal/app"
	"readquest-service/internal/config"
	redisinfra "readquest-service/internal/infra/redis"
)

// NewSyncCmd runs one flush pass over the Redis-backed pending queue. Useful
// after an outage of the remote persistence backend, or from cron.
func NewSyncCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Flush queued progress writes to the remote backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), *configPath)
		},
	}
}

func runSync(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("redis not configured; only a Redis-backed pending queue survives restarts")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	queue := redisinfra.NewPendingQueue(redisClient)
	coordinator := app.NewSyncCoordinator(progressAPIFromConfig(cfg, pool), queue)

	flushed, err := coordinator.Flush(ctx)
	if err != nil {
		return err
	}
	remaining, _ := queue.Len(ctx)
	log.Printf("sync: flushed %d pending record(s), %d still queued", flushed, remaining)
	return nil
}
