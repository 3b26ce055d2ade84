package service

import (
	"context"
	"strings"

	"bollmaker/internal/application/port"
)

// Portfolio 账户在某一价格下的折算结果
type Portfolio struct {
	BaseQuantity  float64 // 含借贷净头寸
	QuoteQuantity float64
	TotalInQuote  float64
}

// Valuer 把余额与借贷头寸折算为计价资产总值。
type Valuer struct {
	account    port.AccountGateway
	baseAsset  string
	quoteAsset string
}

func NewValuer(account port.AccountGateway, baseAsset, quoteAsset string) *Valuer {
	return &Valuer{account: account, baseAsset: baseAsset, quoteAsset: quoteAsset}
}

// Value 按 price（基础资产的计价资产价格）估值。
// 借贷净头寸按符号并入对应资产：借入为负，出借为正。
func (v *Valuer) Value(ctx context.Context, price float64) (Portfolio, error) {
	balances, err := v.account.Balances(ctx)
	if err != nil {
		return Portfolio{}, err
	}

	var pf Portfolio
	if b, ok := balances[v.baseAsset]; ok {
		pf.BaseQuantity = b.Available + b.Locked
	}
	if b, ok := balances[v.quoteAsset]; ok {
		pf.QuoteQuantity = b.Available + b.Locked
	}

	positions, err := v.account.BorrowLendPositions(ctx)
	if err != nil {
		return Portfolio{}, err
	}
	for _, p := range positions {
		switch strings.ToUpper(p.Symbol) {
		case v.baseAsset:
			pf.BaseQuantity += p.NetQuantity
		case v.quoteAsset:
			pf.QuoteQuantity += p.NetQuantity
		}
	}

	pf.TotalInQuote = pf.QuoteQuantity + pf.BaseQuantity*price
	return pf, nil
}
