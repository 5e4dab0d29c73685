package fancurve

func clampInt(value, minValue, maxValue int) int {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}
	return value
}

// ClampDuty 限制占空比到 0-100
func ClampDuty(duty int) int {
	return clampInt(duty, 0, 100)
}
