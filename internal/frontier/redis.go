package frontier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

// Default Redis keys for the shared frontier structures.
const (
	DefaultFrontierKey = "rfp_frontier"
	DefaultSeenKey     = "rfp_seen"
	DefaultSeqKey      = "rfp_frontier_seq"
)

// seqScale spreads the enqueue sequence into the fractional part of the
// score so that equal-priority items pop most-recent-first.
const seqScale = 1e12

// RedisConfig captures the connection and key layout for the Redis frontier.
type RedisConfig struct {
	URL         string
	FrontierKey string
	SeenKey     string
	SeqKey      string
}

// Redis is the production frontier: a shared sorted set of serialized items
// scored by priority plus a separate seen-set, so dedup survives restarts
// and is shared across processes.
type Redis struct {
	client      *redis.Client
	frontierKey string
	seenKey     string
	seqKey      string
	clock       rfp.Clock
	logger      *zap.Logger
}

// NewRedis connects a frontier to the configured Redis instance.
func NewRedis(cfg RedisConfig, clock rfp.Clock, logger *zap.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.FrontierKey == "" {
		cfg.FrontierKey = DefaultFrontierKey
	}
	if cfg.SeenKey == "" {
		cfg.SeenKey = DefaultSeenKey
	}
	if cfg.SeqKey == "" {
		cfg.SeqKey = DefaultSeqKey
	}
	return &Redis{
		client:      redis.NewClient(opts),
		frontierKey: cfg.FrontierKey,
		seenKey:     cfg.SeenKey,
		seqKey:      cfg.SeqKey,
		clock:       clock,
		logger:      logger,
	}, nil
}

// Add enqueues url unless it has ever been seen. SADD on the seen-set is the
// atomic membership check: exactly one concurrent caller observes a new
// member, so at-most-once enqueue holds without a separate lock.
func (r *Redis) Add(ctx context.Context, rawURL string, priority int, depth int, meta map[string]string) (bool, error) {
	canonical, err := canonicalURL(rawURL)
	if err != nil {
		return false, err
	}

	added, err := r.client.SAdd(ctx, r.seenKey, canonical).Result()
	if err != nil {
		return false, fmt.Errorf("seen-set add: %w", err)
	}
	if added == 0 {
		return false, nil
	}

	seq, err := r.client.Incr(ctx, r.seqKey).Result()
	if err != nil {
		return false, fmt.Errorf("frontier sequence: %w", err)
	}

	item := rfp.FrontierItem{
		URL:        canonical,
		Priority:   priority,
		Depth:      depth,
		Meta:       meta,
		EnqueuedAt: r.clock.Now(),
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Errorf("marshal frontier item: %w", err)
	}

	score := float64(priority) + float64(seq)/seqScale
	if err := r.client.ZAdd(ctx, r.frontierKey, redis.Z{Score: score, Member: string(payload)}).Err(); err != nil {
		return false, fmt.Errorf("frontier zadd: %w", err)
	}
	r.logger.Debug("frontier add",
		zap.String("url", canonical),
		zap.Int("priority", priority),
		zap.Int("depth", depth),
	)
	return true, nil
}

// Pop removes and returns the highest-priority item using a
// remove-then-confirm loop: read the top member, attempt ZREM, and retry
// when a concurrent consumer won the race. An item is returned only after
// its delete succeeded, so no item is delivered twice.
func (r *Redis) Pop(ctx context.Context) (rfp.FrontierItem, error) {
	for {
		if err := ctx.Err(); err != nil {
			return rfp.FrontierItem{}, fmt.Errorf("frontier pop canceled: %w", err)
		}

		members, err := r.client.ZRevRange(ctx, r.frontierKey, 0, 0).Result()
		if err != nil {
			return rfp.FrontierItem{}, fmt.Errorf("frontier zrevrange: %w", err)
		}
		if len(members) == 0 {
			return rfp.FrontierItem{}, rfp.ErrFrontierEmpty
		}

		raw := members[0]
		removed, err := r.client.ZRem(ctx, r.frontierKey, raw).Result()
		if err != nil {
			return rfp.FrontierItem{}, fmt.Errorf("frontier zrem: %w", err)
		}
		if removed == 0 {
			// Raced with another consumer; take the next highest.
			continue
		}

		var item rfp.FrontierItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			r.logger.Error("frontier item unmarshal failed; dropping member",
				zap.String("member_prefix", truncate(raw, 200)),
				zap.Error(err),
			)
			continue
		}
		return item, nil
	}
}

// Size returns the current queue length.
func (r *Redis) Size(ctx context.Context) (int64, error) {
	n, err := r.client.ZCard(ctx, r.frontierKey).Result()
	if err != nil {
		return 0, fmt.Errorf("frontier zcard: %w", err)
	}
	return n, nil
}

// Close releases the Redis connection.
func (r *Redis) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
