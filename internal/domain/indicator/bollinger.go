// Package indicator 维护布林带等滚动统计指标。
package indicator

import (
	"math"
	"sync"
)

// BandSnapshot 一次性读出的带状态；Upper/Middle/Lower 保证一致。
type BandSnapshot struct {
	Upper  float64
	Middle float64
	Lower  float64
	Ready  bool
}

// InBand 判断价格是否落在带内（含边界）。
func (s BandSnapshot) InBand(price float64) bool {
	return s.Lower <= price && price <= s.Upper
}

// Width 返回带宽。
func (s BandSnapshot) Width() float64 { return s.Upper - s.Lower }

// Bollinger 固定窗口的布林带计算器。非并发安全，由 Engine 串行访问。
type Bollinger struct {
	period int
	numStd float64
	closes []float64
}

func NewBollinger(period int, numStd float64) *Bollinger {
	return &Bollinger{
		period: period,
		numStd: numStd,
		closes: make([]float64, 0, period),
	}
}

// Update 追加一个收盘价并返回当前轨道。
// 窗口未满时三条轨道都等于最新价。
func (b *Bollinger) Update(price float64) (upper, middle, lower float64) {
	b.closes = append(b.closes, price)
	if len(b.closes) > b.period {
		b.closes = b.closes[1:]
	}
	return b.Bands()
}

// Replace 用历史收盘价整体重建窗口，只保留最后 period 个。
func (b *Bollinger) Replace(closes []float64) {
	if len(closes) > b.period {
		closes = closes[len(closes)-b.period:]
	}
	b.closes = append(b.closes[:0], closes...)
}

// Bands 返回 (上轨, 中轨, 下轨)。窗口未满时返回最新价的平带。
func (b *Bollinger) Bands() (upper, middle, lower float64) {
	n := len(b.closes)
	if n == 0 {
		return 0, 0, 0
	}
	last := b.closes[n-1]
	if n < b.period {
		return last, last, last
	}

	mean := 0.0
	for _, p := range b.closes {
		mean += p
	}
	mean /= float64(n)

	// 总体标准差
	variance := 0.0
	for _, p := range b.closes {
		d := p - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(n))

	return mean + b.numStd*std, mean, mean - b.numStd*std
}

// SMA 返回中轨（窗口均值）。
func (b *Bollinger) SMA() float64 {
	_, middle, _ := b.Bands()
	return middle
}

// Ready 表示窗口样本已满一个周期。
func (b *Bollinger) Ready() bool { return len(b.closes) >= b.period }

// Len 当前窗口样本数。
func (b *Bollinger) Len() int { return len(b.closes) }

// Period 配置的窗口周期。
func (b *Bollinger) Period() int { return b.period }

func (b *Bollinger) snapshot() BandSnapshot {
	u, m, l := b.Bands()
	return BandSnapshot{Upper: u, Middle: m, Lower: l, Ready: b.Ready()}
}

// Engine 持有长短两个布林带窗口，读写都在一把锁内完成，
// 计算在锁外进行（临界区只覆盖数据本身）。
type Engine struct {
	mu    sync.Mutex
	long  *Bollinger
	short *Bollinger
}

func NewEngine(longPeriod int, longStd float64, shortPeriod int, shortStd float64) *Engine {
	return &Engine{
		long:  NewBollinger(longPeriod, longStd),
		short: NewBollinger(shortPeriod, shortStd),
	}
}

// Snapshot 原子地读出长短两个带快照。
func (e *Engine) Snapshot() (long, short BandSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.long.snapshot(), e.short.snapshot()
}

// Push 用实时价格推进两个窗口（kline 刷新之间的快路径近似）。
func (e *Engine) Push(price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.long.Update(price)
	e.short.Update(price)
}

// ReplaceLong 用历史K线收盘价重建长窗口。
func (e *Engine) ReplaceLong(closes []float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.long.Replace(closes)
}

// ReplaceShort 用历史K线收盘价重建短窗口。
func (e *Engine) ReplaceShort(closes []float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.short.Replace(closes)
}

// Ready 长短窗口都满时为真，未满前不允许下单。
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.long.Ready() && e.short.Ready()
}

// Lengths 返回 (长窗口样本数, 短窗口样本数)，用于日志。
func (e *Engine) Lengths() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.long.Len(), e.short.Len()
}
