package model

import "math"

// SalesSummary aggregates a set of orders for the admin dashboard.
type SalesSummary struct {
	TotalBuys   int     `json:"totalBuys"`
	TotalImages int     `json:"totalImages"`
	TotalSum    float64 `json:"totalSum"`
}

// Summarize counts orders and purchased images and sums order totals,
// rounded to cents.
func Summarize(orders []Order) SalesSummary {
	summary := SalesSummary{TotalBuys: len(orders)}
	var sum float64
	for i := range orders {
		summary.TotalImages += len(orders[i].Items)
		sum += orders[i].Total
	}
	summary.TotalSum = math.Round(sum*100) / 100
	return summary
}
