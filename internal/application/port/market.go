package port

// Event 是行情流发出的类型化事件。
type Event interface{ event() }

// TickerEvent 最优买卖价更新
type TickerEvent struct {
	Symbol string
	Bid    float64
	Ask    float64
	Ts     int64
}

// PriceLevel 盘口单档 (价格, 数量)
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// DepthEvent 增量盘口更新；Quantity 为 0 表示删除该价位
type DepthEvent struct {
	Symbol string
	Bids   []PriceLevel
	Asks   []PriceLevel
}

// FillEvent 账户订单成交通知
type FillEvent struct {
	OrderID  string
	Side     string // Bid / Ask
	Price    float64
	Quantity float64
	Ts       int64
}

func (TickerEvent) event() {}
func (DepthEvent) event()  {}
func (FillEvent) event()   {}

// Mid 返回中间价；任一侧为零时返回 0。
func (e TickerEvent) Mid() float64 {
	if e.Bid <= 0 || e.Ask <= 0 {
		return 0
	}
	return (e.Bid + e.Ask) / 2
}
