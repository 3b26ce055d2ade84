package redis

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"

	"bollmaker/internal/application/port"
)

// Repo 将成交镜像写入 redis：stream 供回放，pub/sub 供实时订阅。
type Repo struct {
	rdb         *redis.Client
	tradeStream string
	tradeChan   string
}

func New(rdb *redis.Client, prefix, tradeStream, tradeChan string) *Repo {
	if strings.TrimSpace(tradeStream) == "" {
		tradeStream = prefix + ":trades"
	}
	if strings.TrimSpace(tradeChan) == "" {
		tradeChan = prefix + ":trades:pub"
	}
	return &Repo{
		rdb:         rdb,
		tradeStream: tradeStream,
		tradeChan:   tradeChan,
	}
}

func (r *Repo) PublishTrade(ctx context.Context, trade port.Trade) error {
	_, err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.tradeStream,
		Values: map[string]any{
			"symbol":      trade.Symbol,
			"side":        trade.Side,
			"price":       trade.Price,
			"quantity":    trade.Quantity,
			"executed_at": trade.ExecutedAt.UnixMilli(),
		},
	}).Result()
	if err != nil {
		return err
	}

	b, _ := json.Marshal(map[string]any{
		"symbol":      trade.Symbol,
		"side":        trade.Side,
		"price":       trade.Price,
		"quantity":    trade.Quantity,
		"executed_at": trade.ExecutedAt.UnixMilli(),
	})
	return r.rdb.Publish(ctx, r.tradeChan, string(b)).Err()
}

func (r *Repo) Close() error { return r.rdb.Close() }

var _ port.TradeMirror = (*Repo)(nil)
