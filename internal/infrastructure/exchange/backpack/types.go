package backpack

import "encoding/json"

// 订单类型 / 方向 / 有效期常量，与交易所枚举一一对应。
const (
	OrderTypeLimit  = "Limit"
	OrderTypeMarket = "Market"

	SideBid = "Bid"
	SideAsk = "Ask"

	TifGTC = "GTC"
	TifIOC = "IOC"
)

// tickerResp /ticker 响应
type tickerResp struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
}

// klineResp /klines 单根K线
type klineResp struct {
	Start string `json:"start"`
	Open  string `json:"open"`
	High  string `json:"high"`
	Low   string `json:"low"`
	Close string `json:"close"`
	End   string `json:"end"`
}

// orderResp 下单/查询返回的订单
type orderResp struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Status   string `json:"status"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// balanceResp /capital 响应中的单币种条目
type balanceResp struct {
	Available string `json:"available"`
	Locked    string `json:"locked"`
	Staked    string `json:"staked"`
}

// borrowLendResp /borrowLend/positions 单条头寸
type borrowLendResp struct {
	Symbol      string `json:"symbol"`
	NetQuantity string `json:"netQuantity"`
}

// fillResp 历史成交单条
type fillResp struct {
	OrderID   string `json:"orderId"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Quantity  string `json:"quantity"`
	Timestamp string `json:"timestamp"`
}

// wsEnvelope 流事件信封
type wsEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// wsBookTicker bookTicker.<symbol> 载荷
type wsBookTicker struct {
	Bid string `json:"b"`
	Ask string `json:"a"`
}

// wsDepth depth.<symbol> 载荷；数量为 0 表示删除价位
type wsDepth struct {
	Bids [][2]string `json:"b"`
	Asks [][2]string `json:"a"`
}

// wsOrderUpdate account.orderUpdate.<symbol> 载荷
type wsOrderUpdate struct {
	EventType string `json:"e"`
	OrderID   string `json:"i"`
	Side      string `json:"S"`
	LastQty   string `json:"l"`
	Price     string `json:"p"`
}
