package indicator

import (
	"math"
	"testing"
)

func TestBollingerFlatBeforeWindowFull(t *testing.T) {
	b := NewBollinger(3, 2.0)

	upper, middle, lower := b.Update(100)
	if upper != 100 || middle != 100 || lower != 100 {
		t.Errorf("expected flat bands at 100, got %v %v %v", upper, middle, lower)
	}
	if b.Ready() {
		t.Error("window with 1 sample must not be ready")
	}
}

func TestBollingerKnownBands(t *testing.T) {
	b := NewBollinger(3, 2.0)
	b.Update(1)
	b.Update(2)
	upper, middle, lower := b.Update(3)

	if !b.Ready() {
		t.Fatal("window full, must be ready")
	}

	// mean=2, population std=sqrt(2/3)
	std := math.Sqrt(2.0 / 3.0)
	wantUpper := 2 + 2*std
	wantLower := 2 - 2*std

	if math.Abs(middle-2) > 1e-12 {
		t.Errorf("middle = %v, want 2", middle)
	}
	if math.Abs(upper-wantUpper) > 1e-12 {
		t.Errorf("upper = %v, want %v", upper, wantUpper)
	}
	if math.Abs(lower-wantLower) > 1e-12 {
		t.Errorf("lower = %v, want %v", lower, wantLower)
	}
}

func TestBollingerIdenticalClosesCollapse(t *testing.T) {
	b := NewBollinger(4, 2.0)
	for i := 0; i < 4; i++ {
		b.Update(50)
	}
	upper, middle, lower := b.Bands()
	if upper != 50 || middle != 50 || lower != 50 {
		t.Errorf("identical closes must collapse bands, got %v %v %v", upper, middle, lower)
	}
}

func TestBollingerEviction(t *testing.T) {
	b := NewBollinger(3, 2.0)
	for i := 1; i <= 10; i++ {
		b.Update(float64(i))
	}
	if b.Len() != 3 {
		t.Fatalf("window length = %d, want 3", b.Len())
	}
	if sma := b.SMA(); math.Abs(sma-9) > 1e-12 {
		t.Errorf("SMA = %v, want 9 (last three closes 8,9,10)", sma)
	}
}

func TestBollingerReplaceKeepsTail(t *testing.T) {
	b := NewBollinger(3, 2.0)
	b.Replace([]float64{1, 2, 3, 4, 5, 6})
	if b.Len() != 3 {
		t.Fatalf("window length = %d, want 3", b.Len())
	}
	if sma := b.SMA(); math.Abs(sma-5) > 1e-12 {
		t.Errorf("SMA = %v, want 5", sma)
	}
}

func TestEngineReadyRequiresBothWindows(t *testing.T) {
	e := NewEngine(3, 2.0, 2, 2.0)

	e.ReplaceShort([]float64{10, 11})
	if e.Ready() {
		t.Error("long window empty, engine must not be ready")
	}

	e.ReplaceLong([]float64{10, 11, 12})
	if !e.Ready() {
		t.Error("both windows full, engine must be ready")
	}

	long, short := e.Snapshot()
	if !long.Ready || !short.Ready {
		t.Errorf("snapshots must report ready, got long=%v short=%v", long.Ready, short.Ready)
	}
	if !short.InBand(10.5) {
		t.Error("10.5 must be inside short band")
	}
}
