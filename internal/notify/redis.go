package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultChannel = "writing-eval:jobs"

	redisReadTimeout  = 5 * time.Second
	redisWriteTimeout = 5 * time.Second
	redisPoolSize     = 10
)

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	Channel     string
	DialTimeout time.Duration
}

// Redis publishes attempt ids on a pub/sub channel. When the server cannot be reached it
// degrades to a no-op and workers fall back to polling.
type Redis struct {
	client   *redis.Client
	channel  string
	log      *slog.Logger
	degraded atomic.Bool
}

func NewRedis(ctx context.Context, cfg RedisConfig, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  redisReadTimeout,
		WriteTimeout: redisWriteTimeout,
		PoolSize:     redisPoolSize,
	})
	return NewRedisWithClient(ctx, client, cfg.Channel, cfg.DialTimeout, logger)
}

// NewRedisWithClient wraps an existing client and pings it once.
func NewRedisWithClient(ctx context.Context, client *redis.Client, channel string, pingTimeout time.Duration, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	if channel == "" {
		channel = DefaultChannel
	}
	r := &Redis{client: client, channel: channel, log: logger.With("component", "notify", "channel", channel)}

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		r.log.Warn("redis connection failed, notifications disabled", "error", err)
		r.degraded.Store(true)
	}
	return r
}

// Degraded reports whether the notifier gave up on redis.
func (r *Redis) Degraded() bool { return r.degraded.Load() }

func (r *Redis) Notify(ctx context.Context, attemptID string) error {
	if r.degraded.Load() {
		return nil
	}
	if err := r.client.Publish(ctx, r.channel, attemptID).Err(); err != nil {
		r.log.Warn("notify.publish.failed", "attempt_id", attemptID, "error", err)
		return fmt.Errorf("publish %s: %w", r.channel, err)
	}
	r.log.Debug("notify.published", "attempt_id", attemptID)
	return nil
}

func (r *Redis) Subscribe(ctx context.Context) (<-chan string, error) {
	if r.degraded.Load() {
		return Nop{}.Subscribe(ctx)
	}
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- m.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
