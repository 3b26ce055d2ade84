package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"bollmaker/internal/application/port"
)

// Ledger 持仓账本：单一 goroutine 独占存储句柄，所有写入（成交）与
// 读取（缓存刷新）都经由同一条队列按到达顺序串行处理，保证任何时刻
// 至多一个写者。高频读走缓存，陈旧度受 refreshEvery 约束。
type Ledger struct {
	store    port.PositionStore
	mirror   port.TradeMirror // 可为 nil
	symbol   string
	keepDays int

	jobs chan ledgerJob

	refreshEvery time.Duration
	waitTimeout  time.Duration

	// 缓存状态；mu 只保护这三个字段
	mu       sync.Mutex
	cached   port.Position
	cachedAt time.Time
	hasCache bool
}

type ledgerJob struct {
	fill  *port.FillEvent
	reply chan port.Position // 读请求；带缓冲，单次使用
}

// LedgerOptions 账本可调参数
type LedgerOptions struct {
	RefreshEvery time.Duration // 缓存刷新间隔，默认 1s
	WaitTimeout  time.Duration // 读等待上限，默认 1s
	KeepDays     int           // 成交记录保留天数，默认 15
	QueueSize    int           // 任务队列长度，默认 256
}

func NewLedger(store port.PositionStore, mirror port.TradeMirror, symbol string, opts LedgerOptions) *Ledger {
	if opts.RefreshEvery <= 0 {
		opts.RefreshEvery = time.Second
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = time.Second
	}
	if opts.KeepDays <= 0 {
		opts.KeepDays = 15
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	return &Ledger{
		store:        store,
		mirror:       mirror,
		symbol:       symbol,
		keepDays:     opts.KeepDays,
		jobs:         make(chan ledgerJob, opts.QueueSize),
		refreshEvery: opts.RefreshEvery,
		waitTimeout:  opts.WaitTimeout,
	}
}

// Run 账本工作循环；退出前排空已入队任务。
func (l *Ledger) Run(ctx context.Context) {
	l.pruneOldTrades(ctx)

	pruneTicker := time.NewTicker(1 * time.Hour)
	defer pruneTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.drain()
			return
		case job := <-l.jobs:
			l.handle(ctx, job)
		case <-pruneTicker.C:
			l.pruneOldTrades(ctx)
		}
	}
}

// ApplyFill 将一笔成交排入账本队列（异步）。
func (l *Ledger) ApplyFill(ctx context.Context, fill port.FillEvent) error {
	select {
	case l.jobs <- ledgerJob{fill: &fill}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CachedPosition 返回持仓缓存。缓存缺失或超过刷新间隔时发出读请求并
// 等待至多 waitTimeout；超时返回最近一次的已知值，从未读到过则返回
// 零持仓。
func (l *Ledger) CachedPosition(ctx context.Context) port.Position {
	l.mu.Lock()
	fresh := l.hasCache && time.Since(l.cachedAt) <= l.refreshEvery
	last := l.cached
	l.mu.Unlock()

	if fresh {
		return last
	}

	reply := make(chan port.Position, 1)
	select {
	case l.jobs <- ledgerJob{reply: reply}:
	case <-ctx.Done():
		return last
	}

	select {
	case pos := <-reply:
		return pos
	case <-time.After(l.waitTimeout):
		log.Warn().Str("symbol", l.symbol).Msg("position cache refresh timed out, using last known value")
		return last
	case <-ctx.Done():
		return last
	}
}

func (l *Ledger) handle(ctx context.Context, job ledgerJob) {
	switch {
	case job.fill != nil:
		l.applyFill(ctx, *job.fill)
	case job.reply != nil:
		job.reply <- l.refresh(ctx)
	}
}

// applyFill 按成交方向更新持仓与成本。
// 买入：size += q, cost += q*p；卖出：size -= q，成本按卖出占比等比
// 扣减 cost -= (q/size0)*cost。两者都下限 0。
func (l *Ledger) applyFill(ctx context.Context, fill port.FillEvent) {
	size, cost, err := l.store.GetPosition(ctx, l.symbol)
	if err != nil {
		log.Error().Err(err).Str("symbol", l.symbol).Msg("ledger read failed, fill dropped")
		return
	}

	q, p := fill.Quantity, fill.Price
	var newSize, newCost float64
	if fill.Side == "Bid" {
		newSize = size + q
		newCost = cost + q*p
	} else {
		newSize = size - q
		if size > 0 {
			newCost = cost - (q/size)*cost
		} else {
			newCost = 0
		}
	}
	if newSize < 0 {
		newSize = 0
	}
	if newCost < 0 {
		newCost = 0
	}

	now := time.Now()
	if err := l.store.UpdatePosition(ctx, l.symbol, newSize, newCost, now); err != nil {
		// 存储失败时不推进缓存：读侧可能短暂读到旧值，这是接受的
		// 有界不一致窗口，不做静默掩盖
		log.Error().Err(err).Str("symbol", l.symbol).Msg("ledger write failed, cache not advanced")
		return
	}

	if err := l.store.AddTrade(ctx, l.symbol, fill.Side, p, q, now); err != nil {
		log.Error().Err(err).Str("symbol", l.symbol).Msg("trade append failed")
	}

	trade := port.Trade{Symbol: l.symbol, Side: fill.Side, Price: p, Quantity: q, ExecutedAt: now}
	if l.mirror != nil {
		if err := l.mirror.PublishTrade(ctx, trade); err != nil {
			log.Warn().Err(err).Msg("trade mirror publish failed")
		}
	}

	l.setCache(positionFrom(newSize, newCost))

	log.Info().
		Str("symbol", l.symbol).
		Str("side", fill.Side).
		Float64("price", p).
		Float64("quantity", q).
		Float64("new_size", newSize).
		Float64("new_cost", newCost).
		Msg("position updated")
}

func (l *Ledger) refresh(ctx context.Context) port.Position {
	size, cost, err := l.store.GetPosition(ctx, l.symbol)
	if err != nil {
		log.Error().Err(err).Str("symbol", l.symbol).Msg("position refresh failed")
		l.mu.Lock()
		last := l.cached
		l.mu.Unlock()
		return last
	}
	pos := positionFrom(size, cost)
	l.setCache(pos)
	return pos
}

func (l *Ledger) drain() {
	for {
		select {
		case job := <-l.jobs:
			l.handle(context.Background(), job)
		default:
			return
		}
	}
}

func (l *Ledger) pruneOldTrades(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -l.keepDays)
	n, err := l.store.PruneTrades(ctx, cutoff)
	if err != nil {
		log.Warn().Err(err).Msg("trade pruning failed")
		return
	}
	if n > 0 {
		log.Info().Int64("removed", n).Int("keep_days", l.keepDays).Msg("old trades pruned")
	}
}

func (l *Ledger) setCache(pos port.Position) {
	l.mu.Lock()
	l.cached = pos
	l.cachedAt = time.Now()
	l.hasCache = true
	l.mu.Unlock()
}

func positionFrom(size, cost float64) port.Position {
	avg := 0.0
	if size != 0 {
		avg = cost / size
	}
	return port.Position{Size: size, AvgPrice: avg}
}
