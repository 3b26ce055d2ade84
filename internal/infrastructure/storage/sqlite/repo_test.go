package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestGetPositionMissingIsZero(t *testing.T) {
	repo := newTestRepo(t)

	size, cost, err := repo.GetPosition(context.Background(), "SOL_USDC_PERP")
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if size != 0 || cost != 0 {
		t.Errorf("missing position must read as zero, got size=%v cost=%v", size, cost)
	}
}

func TestUpdateAndGetPosition(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.UpdatePosition(ctx, "SOL_USDC_PERP", 1.5, 300, time.Now()); err != nil {
		t.Fatalf("UpdatePosition: %v", err)
	}
	// 覆盖写
	if err := repo.UpdatePosition(ctx, "SOL_USDC_PERP", 2.0, 410, time.Now()); err != nil {
		t.Fatalf("UpdatePosition upsert: %v", err)
	}

	size, cost, err := repo.GetPosition(ctx, "SOL_USDC_PERP")
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if size != 2.0 || cost != 410 {
		t.Errorf("expected size=2.0 cost=410, got %v %v", size, cost)
	}
}

func TestRecentTradesOrderAndLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		if err := repo.AddTrade(ctx, "SOL_USDC_PERP", "Bid", 100+float64(i), 0.1, ts); err != nil {
			t.Fatalf("AddTrade: %v", err)
		}
	}

	trades, err := repo.RecentTrades(ctx, "SOL_USDC_PERP", 3)
	if err != nil {
		t.Fatalf("RecentTrades: %v", err)
	}
	if len(trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(trades))
	}
	if trades[0].Price != 104 {
		t.Errorf("most recent trade first, got price %v", trades[0].Price)
	}
}

func TestPruneTrades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -30)
	recent := time.Now()
	if err := repo.AddTrade(ctx, "SOL_USDC_PERP", "Bid", 100, 0.1, old); err != nil {
		t.Fatalf("AddTrade: %v", err)
	}
	if err := repo.AddTrade(ctx, "SOL_USDC_PERP", "Ask", 101, 0.1, recent); err != nil {
		t.Fatalf("AddTrade: %v", err)
	}

	n, err := repo.PruneTrades(ctx, time.Now().AddDate(0, 0, -15))
	if err != nil {
		t.Fatalf("PruneTrades: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned trade, got %d", n)
	}

	trades, err := repo.RecentTrades(ctx, "SOL_USDC_PERP", 10)
	if err != nil {
		t.Fatalf("RecentTrades: %v", err)
	}
	if len(trades) != 1 || trades[0].Side != "Ask" {
		t.Errorf("only the recent trade must survive, got %+v", trades)
	}
}
