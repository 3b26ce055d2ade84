package service

// RiskParams 止损/止盈参数
type RiskParams struct {
	StopLossActivation float64 // 触发检查的 |ROI| 阈值
	StopLossRatio      float64 // 止损比例
	TakeProfitRatio    float64 // 止盈比例
}

// RiskAction 风控判定结果
type RiskAction int

const (
	// ActionContinue 继续本轮挂单
	ActionContinue RiskAction = iota
	// ActionClose 市价平掉全部持仓并中止本轮
	ActionClose
)

// EvaluateRisk 按 ROI = (price-cost)/cost 判定风控动作。
// cost <= 0 时无持仓成本，直接放行。止损与止盈都只在 |ROI| 越过
// 激活阈值后才检查。
func EvaluateRisk(price, cost float64, p RiskParams) RiskAction {
	if cost <= 0 {
		return ActionContinue
	}

	roi := (price - cost) / cost
	if abs(roi) < p.StopLossActivation {
		return ActionContinue
	}

	if roi < 0 && abs(roi) >= p.StopLossRatio {
		return ActionClose
	}
	if roi >= p.TakeProfitRatio {
		return ActionClose
	}
	return ActionContinue
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
