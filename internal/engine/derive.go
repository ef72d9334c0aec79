package engine

// MarginFactor is a placeholder rate carried over from the demo dashboard.
const MarginFactor = 0.1

func DerivedMargin(unitValue float64) float64 {
	return unitValue * MarginFactor
}

func DerivedTotal(quantity, unitValue float64) float64 {
	return quantity * unitValue
}
