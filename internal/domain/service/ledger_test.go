package service

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"bollmaker/internal/application/port"
)

// memStore 进程内 PositionStore，账本测试用。记录写入过的最小
// size/cost，用于断言中间状态也从未为负。
type memStore struct {
	mu      sync.Mutex
	size    float64
	cost    float64
	minSize float64
	minCost float64
	trades  []port.Trade
}

func (s *memStore) GetPosition(ctx context.Context, symbol string) (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size, s.cost, nil
}

func (s *memStore) UpdatePosition(ctx context.Context, symbol string, size, cost float64, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size, s.cost = size, cost
	if size < s.minSize {
		s.minSize = size
	}
	if cost < s.minCost {
		s.minCost = cost
	}
	return nil
}

func (s *memStore) minima() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minSize, s.minCost
}

func (s *memStore) AddTrade(ctx context.Context, symbol, side string, price, quantity float64, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, port.Trade{Symbol: symbol, Side: side, Price: price, Quantity: quantity, ExecutedAt: ts})
	return nil
}

func (s *memStore) RecentTrades(ctx context.Context, symbol string, limit int) ([]port.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.trades) > limit {
		return s.trades[len(s.trades)-limit:], nil
	}
	return s.trades, nil
}

func (s *memStore) PruneTrades(ctx context.Context, before time.Time) (int64, error) { return 0, nil }
func (s *memStore) Close() error                                                     { return nil }

func startLedger(t *testing.T, store port.PositionStore) (*Ledger, context.CancelFunc) {
	t.Helper()
	l := NewLedger(store, nil, "SOL_USDC_PERP", LedgerOptions{
		RefreshEvery: time.Millisecond,
		WaitTimeout:  time.Second,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	return l, cancel
}

func TestLedgerBuyAccumulatesCost(t *testing.T) {
	store := &memStore{}
	l, cancel := startLedger(t, store)
	defer cancel()

	ctx := context.Background()
	if err := l.ApplyFill(ctx, port.FillEvent{Side: "Bid", Price: 100, Quantity: 1}); err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}
	if err := l.ApplyFill(ctx, port.FillEvent{Side: "Bid", Price: 110, Quantity: 1}); err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}

	pos := l.CachedPosition(ctx)
	if math.Abs(pos.Size-2) > 1e-12 {
		t.Errorf("size = %v, want 2", pos.Size)
	}
	if math.Abs(pos.AvgPrice-105) > 1e-12 {
		t.Errorf("avg price = %v, want 105", pos.AvgPrice)
	}
}

func TestLedgerSellReducesCostProportionally(t *testing.T) {
	store := &memStore{size: 2, cost: 210}
	l, cancel := startLedger(t, store)
	defer cancel()

	ctx := context.Background()
	if err := l.ApplyFill(ctx, port.FillEvent{Side: "Ask", Price: 120, Quantity: 1}); err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}

	pos := l.CachedPosition(ctx)
	if math.Abs(pos.Size-1) > 1e-12 {
		t.Errorf("size = %v, want 1", pos.Size)
	}
	// 成本等比扣减：210 - (1/2)*210 = 105，均价不变
	if math.Abs(pos.AvgPrice-105) > 1e-9 {
		t.Errorf("avg price = %v, want 105", pos.AvgPrice)
	}
}

func TestLedgerOversellClampsToZero(t *testing.T) {
	store := &memStore{size: 1, cost: 100}
	l, cancel := startLedger(t, store)
	defer cancel()

	ctx := context.Background()
	if err := l.ApplyFill(ctx, port.FillEvent{Side: "Ask", Price: 100, Quantity: 5}); err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}

	pos := l.CachedPosition(ctx)
	if pos.Size != 0 || pos.AvgPrice != 0 {
		t.Errorf("oversell must clamp to zero position, got %+v", pos)
	}
}

func TestLedgerNeverNegativeUnderRandomFills(t *testing.T) {
	store := &memStore{}
	l, cancel := startLedger(t, store)
	defer cancel()

	// 固定种子保证可复现；卖量放大三倍制造频繁超卖
	rng := rand.New(rand.NewSource(20260827))
	ctx := context.Background()
	for i := 0; i < 500; i++ {
		f := port.FillEvent{Side: "Bid", Price: 90 + 20*rng.Float64(), Quantity: rng.Float64()}
		if rng.Intn(2) == 1 {
			f.Side = "Ask"
			f.Quantity *= 3
		}
		if err := l.ApplyFill(ctx, f); err != nil {
			t.Fatalf("ApplyFill #%d: %v", i, err)
		}
	}

	pos := l.CachedPosition(ctx)
	if pos.Size < 0 {
		t.Errorf("size must never go negative, got %v", pos.Size)
	}
	if pos.AvgPrice < 0 {
		t.Errorf("avg price must never go negative, got %v", pos.AvgPrice)
	}
	minSize, minCost := store.minima()
	if minSize < 0 || minCost < 0 {
		t.Errorf("store saw negative intermediate state: min size %v, min cost %v", minSize, minCost)
	}
}

func TestLedgerReadWithoutWorkerFallsBackToZero(t *testing.T) {
	l := NewLedger(&memStore{size: 3, cost: 300}, nil, "SOL_USDC_PERP", LedgerOptions{
		WaitTimeout: 10 * time.Millisecond,
	})

	// 工作循环未启动：读请求只能超时，返回零持仓兜底
	pos := l.CachedPosition(context.Background())
	if pos.Size != 0 || pos.AvgPrice != 0 {
		t.Errorf("timed out read must fall back to zero position, got %+v", pos)
	}
}

func TestLedgerTradeRecorded(t *testing.T) {
	store := &memStore{}
	l, cancel := startLedger(t, store)
	defer cancel()

	ctx := context.Background()
	if err := l.ApplyFill(ctx, port.FillEvent{Side: "Bid", Price: 100, Quantity: 1}); err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}
	l.CachedPosition(ctx) // 等账本处理完队列

	trades, err := store.RecentTrades(ctx, "SOL_USDC_PERP", 10)
	if err != nil {
		t.Fatalf("RecentTrades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 recorded trade, got %d", len(trades))
	}
	if trades[0].Side != "Bid" || trades[0].Price != 100 {
		t.Errorf("unexpected trade %+v", trades[0])
	}
}
