package extraction

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Validate keeps the targets above price whose upside lies within the configured band.
// Bounds are inclusive and compared in decimal so 10% exactly is accepted.
func (e *TargetExtractor) Validate(targets []float64, price float64) []float64 {
	if price <= 0 {
		return nil
	}

	p := decimal.NewFromFloat(price)
	lo := decimal.NewFromFloat(e.thresholds.MinUpside)
	hi := decimal.NewFromFloat(e.thresholds.MaxUpside)

	out := make([]float64, 0, len(targets))
	for _, t := range targets {
		if t <= price {
			continue
		}
		up := decimal.NewFromFloat(t).Sub(p).Div(p)
		if up.LessThan(lo) || up.GreaterThan(hi) {
			continue
		}
		out = append(out, t)
	}
	sort.Float64s(out)
	return out
}

// UpsidePercent returns (target-price)/price*100 rounded to 4 places
func UpsidePercent(target, price float64) float64 {
	if price == 0 {
		return 0
	}
	p := decimal.NewFromFloat(price)
	v, _ := decimal.NewFromFloat(target).Sub(p).Div(p).Mul(decimal.NewFromInt(100)).Round(4).Float64()
	return v
}

// UpsideRange returns the upside of the lowest and highest targets
func UpsideRange(targets []float64, price float64) (nearest, furthest float64) {
	if len(targets) == 0 {
		return 0, 0
	}
	lo, hi := targets[0], targets[0]
	for _, t := range targets[1:] {
		if t < lo {
			lo = t
		}
		if t > hi {
			hi = t
		}
	}
	return UpsidePercent(lo, price), UpsidePercent(hi, price)
}
