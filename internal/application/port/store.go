package port

import (
	"context"
	"time"
)

// Position 缓存中的持仓快照
type Position struct {
	Size     float64
	AvgPrice float64
}

// Trade 一笔成交记录
type Trade struct {
	Symbol     string
	Side       string
	Price      float64
	Quantity   float64
	ExecutedAt time.Time
}

// PositionStore 持仓与成交历史的持久化存储。
// 实现：sqlite（默认）、postgres。写入方保证串行调用。
type PositionStore interface {
	GetPosition(ctx context.Context, symbol string) (size, cost float64, err error)
	UpdatePosition(ctx context.Context, symbol string, size, cost float64, ts time.Time) error
	AddTrade(ctx context.Context, symbol, side string, price, quantity float64, ts time.Time) error
	RecentTrades(ctx context.Context, symbol string, limit int) ([]Trade, error)
	PruneTrades(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// TradeMirror 将成交镜像发布到外部（redis stream + pub/sub），供下游消费。
type TradeMirror interface {
	PublishTrade(ctx context.Context, trade Trade) error
	Close() error
}
