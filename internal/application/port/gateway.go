package port

import "context"

// OrderRequest 下单请求参数（与交易所 REST 接口字段对应）
type OrderRequest struct {
	Symbol      string
	Side        string // Bid / Ask
	OrderType   string // Limit / Market
	Quantity    string
	Price       string
	TimeInForce string // GTC / IOC
	PostOnly    bool
	ReduceOnly  bool
	ClientID    string
	// 保证金/借贷相关可选项
	QuoteQuantity   string
	AutoBorrow      bool
	AutoLendRedeem  bool
	AutoBorrowRepay bool
	AutoLend        bool
}

// PlacedOrder 交易所返回的已受理订单
type PlacedOrder struct {
	ID       string
	Status   string
	Side     string
	Price    string
	Quantity string
}

// OrderGateway 下单/撤单网关
type OrderGateway interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (PlacedOrder, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	CancelAllOrders(ctx context.Context, symbol string) error
	OpenOrders(ctx context.Context, symbol string) ([]PlacedOrder, error)
}

// Kline 历史K线（只保留策略用到的字段）
type Kline struct {
	Start string
	Close float64
}

// KlineSource 历史K线来源
type KlineSource interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error)
}

// Balance 单一币种余额
type Balance struct {
	Available float64
	Locked    float64
}

// BorrowLendPosition 借贷净头寸
type BorrowLendPosition struct {
	Symbol      string
	NetQuantity float64
}

// AccountGateway 账户查询网关
type AccountGateway interface {
	Balances(ctx context.Context) (map[string]Balance, error)
	BorrowLendPositions(ctx context.Context) ([]BorrowLendPosition, error)
}
