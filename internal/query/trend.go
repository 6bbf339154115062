package query

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/tinyland-inc/tinyland-analytics/internal/analytics"
)

// Trend directions.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// trendThresholdPercent separates "stable" from a real move.
const trendThresholdPercent = 5.0

// TrendResult compares the most recent window against the one before it.
type TrendResult struct {
	Category         analytics.Category
	WindowDays       int
	CurrentTotal     decimal.Decimal
	PreviousTotal    decimal.Decimal
	PercentageChange float64
	Direction        string
}

// Trend sums the category's totals over the most recent windowDays and over
// the immediately preceding window of equal length. A month is attributed
// to the window containing its first calendar day. The percentage change is
// rounded to one decimal place; with an empty previous window it is 0 and
// the trend is stable unless defined otherwise by the thresholds.
func (e *Engine) Trend(category analytics.Category, windowDays int) (TrendResult, error) {
	now := e.nowFn()
	currentStart := now.AddDate(0, 0, -windowDays)
	previousStart := now.AddDate(0, 0, -2*windowDays)

	points, err := e.monthlyPoints(category, &previousStart, &now)
	if err != nil {
		return TrendResult{}, err
	}

	current := decimal.Zero
	previous := decimal.Zero
	for _, p := range points {
		switch {
		case !p.Date.Before(currentStart) && !p.Date.After(now):
			current = current.Add(p.Total)
		case !p.Date.Before(previousStart) && p.Date.Before(currentStart):
			previous = previous.Add(p.Total)
		}
	}

	change := 0.0
	if previous.IsPositive() {
		ratio, _ := current.Sub(previous).Div(previous).Float64()
		change = math.Round(ratio*1000) / 10
	}

	direction := TrendStable
	switch {
	case change > trendThresholdPercent:
		direction = TrendUp
	case change < -trendThresholdPercent:
		direction = TrendDown
	}

	return TrendResult{
		Category:         category,
		WindowDays:       windowDays,
		CurrentTotal:     current,
		PreviousTotal:    previous,
		PercentageChange: change,
		Direction:        direction,
	}, nil
}
