package feed

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/umarz317/uniswap-v2-dapp/internal/config"
)

// Event is one executed swap, as published to the stream.
type Event struct {
	SwapTx     string
	ApprovalTx string
	InSymbol   string
	OutSymbol  string
	AmountIn   string
	MinOut     string
	Recipient  string
}

// Publisher appends executed swaps to a Redis Stream so downstream
// consumers (accounting, notifications) can follow along. Nil-safe: a nil
// publisher drops events, which is how the feed is disabled.
type Publisher struct {
	rdb    *redis.Client
	stream string
}

// NewPublisher returns nil when no Redis address is configured.
func NewPublisher(cfg *config.Config) *Publisher {
	if cfg.Redis.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
	})
	return &Publisher{rdb: rdb, stream: cfg.Redis.Stream}
}

func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if p == nil {
		return nil
	}
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"swap_tx":     ev.SwapTx,
			"approval_tx": ev.ApprovalTx,
			"in":          ev.InSymbol,
			"out":         ev.OutSymbol,
			"amount_in":   ev.AmountIn,
			"min_out":     ev.MinOut,
			"recipient":   ev.Recipient,
			"ts_ms":       time.Now().UnixMilli(),
		},
	}).Err()
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.rdb.Close()
}
