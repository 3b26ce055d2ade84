package service

// minBandRange 低于该带宽认为数据退化，返回中性值。
const minBandRange = 0.0001

// PositionScale 按价格在长短带中的位置计算目标仓位倍数。
// 价格越低期望仓位越大：归一化 → 截断 [0,1] → 取反 → 长短平均 →
// 线性映射到 [minScale, maxScale]。带数据退化时返回中性 1.0。
func PositionScale(price, longUpper, longLower, shortUpper, shortLower, minScale, maxScale float64) float64 {
	if longUpper == 0 || longLower == 0 || shortUpper == 0 || shortLower == 0 {
		return 1.0
	}

	longRange := longUpper - longLower
	shortRange := shortUpper - shortLower
	if longRange <= minBandRange || shortRange <= minBandRange {
		return 1.0
	}

	longPos := clamp((price-longLower)/longRange, 0, 1)
	shortPos := clamp((price-shortLower)/shortRange, 0, 1)

	// 取反：下轨附近 → 1，上轨附近 → 0
	longPos = 1 - longPos
	shortPos = 1 - shortPos

	avg := (longPos + shortPos) / 2
	return minScale + (maxScale-minScale)*avg
}
