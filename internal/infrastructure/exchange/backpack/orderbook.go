package backpack

import (
	"sort"
	"sync"

	"bollmaker/internal/application/port"
)

// OrderBook 由增量盘口事件维护的本地簿。数量为 0 的档位删除。
type OrderBook struct {
	mu   sync.RWMutex
	bids map[float64]float64
	asks map[float64]float64
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids: make(map[float64]float64),
		asks: make(map[float64]float64),
	}
}

// Apply 合并一次增量更新。
func (b *OrderBook) Apply(ev port.DepthEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, lv := range ev.Bids {
		if lv.Quantity == 0 {
			delete(b.bids, lv.Price)
		} else {
			b.bids[lv.Price] = lv.Quantity
		}
	}
	for _, lv := range ev.Asks {
		if lv.Quantity == 0 {
			delete(b.asks, lv.Price)
		} else {
			b.asks[lv.Price] = lv.Quantity
		}
	}
}

// Best 返回最优买价和最优卖价；任一侧为空时对应返回 0。
func (b *OrderBook) Best() (bid, ask float64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for p := range b.bids {
		if p > bid {
			bid = p
		}
	}
	for p := range b.asks {
		if ask == 0 || p < ask {
			ask = p
		}
	}
	return bid, ask
}

// Mid 中间价；单边为空时返回 0。
func (b *OrderBook) Mid() float64 {
	bid, ask := b.Best()
	if bid <= 0 || ask <= 0 {
		return 0
	}
	return (bid + ask) / 2
}

// Snapshot 按优先级排序返回两侧各前 depth 档。
func (b *OrderBook) Snapshot(depth int) (bids, asks []port.PriceLevel) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bids = make([]port.PriceLevel, 0, len(b.bids))
	for p, q := range b.bids {
		bids = append(bids, port.PriceLevel{Price: p, Quantity: q})
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })

	asks = make([]port.PriceLevel, 0, len(b.asks))
	for p, q := range b.asks {
		asks = append(asks, port.PriceLevel{Price: p, Quantity: q})
	}
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	if depth > 0 {
		if len(bids) > depth {
			bids = bids[:depth]
		}
		if len(asks) > depth {
			asks = asks[:depth]
		}
	}
	return bids, asks
}

// Reset 清空本地簿，重连后调用。
func (b *OrderBook) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids = make(map[float64]float64)
	b.asks = make(map[float64]float64)
}
