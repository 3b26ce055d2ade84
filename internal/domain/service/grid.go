package service

import (
	"math"

	"bollmaker/internal/domain/indicator"
)

// LadderParams 网格阶梯参数
type LadderParams struct {
	Levels            int     // 每侧层数
	Step              float64 // 每层相对价距
	AskOffset         float64 // 卖侧首层相对价距（动态价差）
	BidOffset         float64 // 买侧首层相对价距（动态价差）
	PricePrecision    int
	QuantityPrecision int

	BaseOrderSize   float64 // 每层下单量（基础资产）
	QuoteOrderSize  float64 // 每层下单额（计价资产）；>0 时优先于 BaseOrderSize
	TotalInvestment float64 // 总投入（计价资产）
	SideBudgetRatio float64 // 每侧预算占比

	MinProfitSpread float64 // 卖单相对成本的最小利润价差

	TradeInBand bool // 只在短周期带内挂单
	BuyBelowSMA bool // 买侧额外要求价格低于短周期 SMA
}

// LadderOrder 待提交的一层网格单
type LadderOrder struct {
	Side     string // Bid / Ask
	Price    float64
	Quantity float64
}

// BuildLadder 以 price 为中心构造多层买卖阶梯。首层离中心 Ask/BidOffset，
// 之后每层再远 Step。
//
// 每侧由内向外逐层累计预算：买侧按计价资产名义额封顶，卖侧按基础
// 资产数量封顶；第一个会突破预算的层即停止该侧（不跳过继续）。
// 有持仓成本时，卖价不高于 cost*(1+MinProfitSpread) 的层被跳过。
func BuildLadder(price, positionCost float64, short indicator.BandSnapshot, p LadderParams) []LadderOrder {
	canBuy, canSell := true, true
	if p.TradeInBand {
		inBand := short.InBand(price)
		canBuy, canSell = inBand, inBand
	}
	if p.BuyBelowSMA {
		canBuy = canBuy && price < short.Middle
	}

	size := p.BaseOrderSize
	if p.QuoteOrderSize > 0 && price > 0 {
		size = p.QuoteOrderSize / price
	}
	qty := roundTo(size, p.QuantityPrecision)
	if qty <= 0 {
		return nil
	}

	buyCapQuote := p.TotalInvestment * p.SideBudgetRatio
	sellCapBase := p.TotalInvestment * p.SideBudgetRatio / price

	var minSellPrice float64
	if positionCost > 0 {
		minSellPrice = roundTo(positionCost*(1+p.MinProfitSpread), p.PricePrecision)
	}

	var orders []LadderOrder

	if canBuy {
		usedQuote := 0.0
		for i := 1; i <= p.Levels; i++ {
			bp := roundTo(price*(1-p.BidOffset-p.Step*float64(i-1)), p.PricePrecision)
			if bp <= 0 {
				continue
			}
			notional := bp * qty
			if usedQuote+notional > buyCapQuote {
				break
			}
			orders = append(orders, LadderOrder{Side: "Bid", Price: bp, Quantity: qty})
			usedQuote += notional
		}
	}

	if canSell {
		usedBase := 0.0
		for i := 1; i <= p.Levels; i++ {
			ap := roundTo(price*(1+p.AskOffset+p.Step*float64(i-1)), p.PricePrecision)
			if ap <= 0 {
				continue
			}
			if minSellPrice > 0 && ap <= minSellPrice {
				continue
			}
			if usedBase+qty > sellCapBase {
				break
			}
			orders = append(orders, LadderOrder{Side: "Ask", Price: ap, Quantity: qty})
			usedBase += qty
		}
	}

	return orders
}

func roundTo(x float64, precision int) float64 {
	pow := math.Pow(10, float64(precision))
	return math.Round(x*pow) / pow
}
