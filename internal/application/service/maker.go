package service

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"bollmaker/internal/application/port"
	"bollmaker/internal/domain/indicator"
	"bollmaker/internal/domain/service"
)

// DepthSink 接收增量盘口事件（本地订单簿）。
type DepthSink interface {
	Apply(ev port.DepthEvent)
}

// MakerParams 做市引擎参数
type MakerParams struct {
	Symbol            string
	OrderInterval     time.Duration
	PricePrecision    int
	QuantityPrecision int

	Grid   service.LadderParams
	Spread service.SpreadParams
	Risk   service.RiskParams

	ScaleMin float64
	ScaleMax float64
}

// Maker 做市引擎：消费行情事件，按节奏重铺网格，成交转入账本，
// 风控触发时市价平仓。
type Maker struct {
	params  MakerParams
	gateway port.OrderGateway
	ledger  *service.Ledger
	engine  *indicator.Engine
	depth   DepthSink // 可为 nil

	lastCycle time.Time
}

func NewMaker(params MakerParams, gateway port.OrderGateway, ledger *service.Ledger, engine *indicator.Engine, depth DepthSink) *Maker {
	return &Maker{
		params:  params,
		gateway: gateway,
		ledger:  ledger,
		engine:  engine,
		depth:   depth,
	}
}

// Run 事件分发循环；events 关闭或 ctx 取消时返回。
func (m *Maker) Run(ctx context.Context, events <-chan port.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch e := ev.(type) {
			case port.TickerEvent:
				m.onTicker(ctx, e)
			case port.DepthEvent:
				if m.depth != nil {
					m.depth.Apply(e)
				}
			case port.FillEvent:
				if err := m.ledger.ApplyFill(ctx, e); err != nil {
					log.Error().Err(err).Str("order_id", e.OrderID).Msg("fill enqueue failed")
				}
			}
		}
	}
}

func (m *Maker) onTicker(ctx context.Context, e port.TickerEvent) {
	price := e.Mid()
	if price <= 0 {
		return
	}
	if time.Since(m.lastCycle) < m.params.OrderInterval {
		return
	}
	if !m.engine.Ready() {
		longN, shortN := m.engine.Lengths()
		log.Debug().Int("long_closes", longN).Int("short_closes", shortN).Msg("indicators warming up, quote cycle skipped")
		return
	}
	m.lastCycle = time.Now()
	m.quoteCycle(ctx, price)
}

// quoteCycle 一轮完整报价：风控 → 撤旧单 → 重铺阶梯。
func (m *Maker) quoteCycle(ctx context.Context, price float64) {
	pos := m.ledger.CachedPosition(ctx)

	if service.EvaluateRisk(price, pos.AvgPrice, m.params.Risk) == service.ActionClose && pos.Size > 0 {
		m.closePosition(ctx, pos)
		return
	}

	long, short := m.engine.Snapshot()

	scale := service.PositionScale(price, long.Upper, long.Lower, short.Upper, short.Lower, m.params.ScaleMin, m.params.ScaleMax)
	askSpread, bidSpread := service.DynamicSpread(price, short.Upper, short.Lower, short.Middle, m.params.Spread)

	grid := m.params.Grid
	grid.AskOffset = askSpread
	grid.BidOffset = bidSpread
	grid.BaseOrderSize = m.params.Grid.BaseOrderSize * scale
	grid.QuoteOrderSize = m.params.Grid.QuoteOrderSize * scale

	// 旧阶梯无条件先撤：本轮即使不铺新单，过时的挂单也不能留在场上
	if err := m.gateway.CancelAllOrders(ctx, m.params.Symbol); err != nil {
		log.Error().Err(err).Msg("cancel all failed, ladder not replaced")
		return
	}

	orders := service.BuildLadder(price, pos.AvgPrice, short, grid)
	if len(orders) == 0 {
		log.Debug().Float64("price", price).Msg("no ladder orders this cycle, resting orders cleared")
		return
	}

	placed := 0
	for _, o := range orders {
		req := port.OrderRequest{
			Symbol:      m.params.Symbol,
			Side:        o.Side,
			OrderType:   "Limit",
			Quantity:    m.formatQty(o.Quantity),
			Price:       m.formatPrice(o.Price),
			TimeInForce: "GTC",
			PostOnly:    true,
		}
		if _, err := m.gateway.PlaceOrder(ctx, req); err != nil {
			log.Warn().Err(err).Str("side", o.Side).Float64("price", o.Price).Msg("ladder order rejected")
			continue
		}
		placed++
	}

	log.Info().
		Float64("price", price).
		Float64("scale", scale).
		Float64("ask_spread", askSpread).
		Float64("bid_spread", bidSpread).
		Int("placed", placed).
		Int("total", len(orders)).
		Msg("ladder replaced")
}

// closePosition 撤掉全部挂单后市价平仓。
func (m *Maker) closePosition(ctx context.Context, pos port.Position) {
	log.Warn().
		Float64("size", pos.Size).
		Float64("avg_price", pos.AvgPrice).
		Msg("risk control triggered, closing position")

	if err := m.gateway.CancelAllOrders(ctx, m.params.Symbol); err != nil {
		log.Error().Err(err).Msg("cancel all before close failed")
	}

	req := port.OrderRequest{
		Symbol:      m.params.Symbol,
		Side:        "Ask",
		OrderType:   "Market",
		Quantity:    m.formatQty(pos.Size),
		TimeInForce: "IOC",
		ReduceOnly:  true,
	}
	if _, err := m.gateway.PlaceOrder(ctx, req); err != nil {
		log.Error().Err(err).Msg("close order failed")
	}
}

func (m *Maker) formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', m.params.PricePrecision, 64)
}

func (m *Maker) formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', m.params.QuantityPrecision, 64)
}
