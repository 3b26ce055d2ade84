package service

// SpreadParams 动态价差参数
type SpreadParams struct {
	Base    float64 // 固定价差（dynamic 关闭时双边使用）
	Dynamic bool
	Min     float64
	Max     float64
	VolLow  float64 // 低波动阈值，默认 0.25%
	VolHigh float64 // 高波动阈值，默认 5%

	SkewEnabled bool
	Uptrend     float64 // < 1，上涨时收紧卖侧
	Downtrend   float64 // > 1，下跌时放宽卖侧
}

// DynamicSpread 由短周期带宽推导双边价差。
// 波动率 = (short_upper - short_lower) / price，线性映射到 [Min, Max]；
// 趋势偏移保持 ask+bid 名义和不变，最终双边都收敛到 [Min, Max]。
func DynamicSpread(price, shortUpper, shortLower, shortSMA float64, p SpreadParams) (ask, bid float64) {
	if !p.Dynamic {
		return p.Base, p.Base
	}

	volatility := abs(shortUpper-shortLower) / price

	var base float64
	switch {
	case volatility <= p.VolLow:
		base = p.Min
	case volatility >= p.VolHigh:
		base = p.Max
	default:
		normalized := (volatility - p.VolLow) / (p.VolHigh - p.VolLow)
		base = p.Min + (p.Max-p.Min)*normalized
	}

	if p.SkewEnabled {
		if price > shortSMA {
			// 上涨：卖侧贴近市场，买侧拉开控风险
			ask = base * p.Uptrend
			bid = base * (2 - p.Uptrend)
		} else {
			ask = base * p.Downtrend
			bid = base * (2 - p.Downtrend)
		}
	} else {
		ask, bid = base, base
	}

	return clamp(ask, p.Min, p.Max), clamp(bid, p.Min, p.Max)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
