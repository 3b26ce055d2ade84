package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"bollmaker/internal/application/port"
	"bollmaker/internal/domain/indicator"
)

// RefresherParams K线刷新参数
type RefresherParams struct {
	Symbol        string
	LongInterval  string
	LongPeriod    int
	ShortInterval string
	ShortPeriod   int
	Every         time.Duration
}

// Refresher 周期性拉取两个时间尺度的K线，整体重建布林带窗口。
// 拉取失败只记日志，沿用上一次窗口。
type Refresher struct {
	params RefresherParams
	source port.KlineSource
	engine *indicator.Engine
}

func NewRefresher(params RefresherParams, source port.KlineSource, engine *indicator.Engine) *Refresher {
	if params.Every <= 0 {
		params.Every = time.Minute
	}
	return &Refresher{params: params, source: source, engine: engine}
}

// Run 先同步刷新一次，然后按周期循环。
func (r *Refresher) Run(ctx context.Context) {
	r.refresh(ctx)

	ticker := time.NewTicker(r.params.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	wasReady := r.engine.Ready()

	if closes, err := r.fetchCloses(ctx, r.params.LongInterval, r.params.LongPeriod); err != nil {
		log.Warn().Err(err).Str("interval", r.params.LongInterval).Msg("long kline refresh failed, keeping previous window")
	} else {
		r.engine.ReplaceLong(closes)
	}

	if closes, err := r.fetchCloses(ctx, r.params.ShortInterval, r.params.ShortPeriod); err != nil {
		log.Warn().Err(err).Str("interval", r.params.ShortInterval).Msg("short kline refresh failed, keeping previous window")
	} else {
		r.engine.ReplaceShort(closes)
	}

	if !wasReady && r.engine.Ready() {
		log.Info().Str("symbol", r.params.Symbol).Msg("indicators ready, quoting enabled")
	}
}

// fetchCloses 拉取 2*period 根K线，取最近 period 根的收盘价。
func (r *Refresher) fetchCloses(ctx context.Context, interval string, period int) ([]float64, error) {
	klines, err := r.source.Klines(ctx, r.params.Symbol, interval, period*2)
	if err != nil {
		return nil, err
	}
	closes := make([]float64, 0, len(klines))
	for _, k := range klines {
		closes = append(closes, k.Close)
	}
	if len(closes) > period {
		closes = closes[len(closes)-period:]
	}
	return closes, nil
}
