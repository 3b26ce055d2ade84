package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"bollmaker/internal/application/port"
	"bollmaker/internal/domain/indicator"
)

type fakeKlines struct {
	byInterval map[string][]port.Kline
	err        error
}

func (f *fakeKlines) Klines(ctx context.Context, symbol, interval string, limit int) ([]port.Kline, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byInterval[interval], nil
}

func klinesOf(closes ...float64) []port.Kline {
	out := make([]port.Kline, 0, len(closes))
	for _, c := range closes {
		out = append(out, port.Kline{Close: c})
	}
	return out
}

func TestRefresherFillsBothWindows(t *testing.T) {
	engine := indicator.NewEngine(3, 2.0, 2, 2.0)
	source := &fakeKlines{byInterval: map[string][]port.Kline{
		"1h": klinesOf(1, 2, 3, 4, 5, 6),
		"5m": klinesOf(10, 11, 12, 13),
	}}

	r := NewRefresher(RefresherParams{
		Symbol:        "SOL_USDC_PERP",
		LongInterval:  "1h",
		LongPeriod:    3,
		ShortInterval: "5m",
		ShortPeriod:   2,
		Every:         time.Hour,
	}, source, engine)

	r.refresh(context.Background())

	if !engine.Ready() {
		t.Fatal("engine must be ready after refresh")
	}
	long, short := engine.Snapshot()
	// 长窗口取最后 3 根：4,5,6 → SMA 5
	if long.Middle != 5 {
		t.Errorf("long SMA = %v, want 5", long.Middle)
	}
	// 短窗口取最后 2 根：12,13 → SMA 12.5
	if short.Middle != 12.5 {
		t.Errorf("short SMA = %v, want 12.5", short.Middle)
	}
}

func TestRefresherKeepsWindowOnFetchError(t *testing.T) {
	engine := indicator.NewEngine(2, 2.0, 2, 2.0)
	source := &fakeKlines{byInterval: map[string][]port.Kline{
		"1h": klinesOf(1, 2),
		"5m": klinesOf(3, 4),
	}}

	r := NewRefresher(RefresherParams{
		Symbol:        "SOL_USDC_PERP",
		LongInterval:  "1h",
		LongPeriod:    2,
		ShortInterval: "5m",
		ShortPeriod:   2,
		Every:         time.Hour,
	}, source, engine)

	r.refresh(context.Background())
	if !engine.Ready() {
		t.Fatal("engine must be ready after first refresh")
	}

	source.err = errors.New("exchange down")
	r.refresh(context.Background())

	if !engine.Ready() {
		t.Error("fetch failure must keep the previous window")
	}
	long, _ := engine.Snapshot()
	if long.Middle != 1.5 {
		t.Errorf("long SMA after failed refresh = %v, want 1.5", long.Middle)
	}
}
