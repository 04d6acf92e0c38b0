package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	items := func(n int) []OrderItem {
		out := make([]OrderItem, n)
		for i := range out {
			out[i] = OrderItem{ImageID: string(rune('a' + i))}
		}
		return out
	}

	tests := []struct {
		name   string
		orders []Order
		want   SalesSummary
	}{
		{name: "no orders", want: SalesSummary{}},
		{
			name:   "single order",
			orders: []Order{{Total: 9.99, Items: items(2)}},
			want:   SalesSummary{TotalBuys: 1, TotalImages: 2, TotalSum: 9.99},
		},
		{
			name: "sum is rounded to cents",
			orders: []Order{
				{Total: 19.99, Items: items(2)},
				{Total: 10.004, Items: items(1)},
				{Total: 0.1, Items: items(1)},
			},
			want: SalesSummary{TotalBuys: 3, TotalImages: 4, TotalSum: 30.09},
		},
		{
			name:   "orders without items still count as buys",
			orders: []Order{{Total: 5}, {Total: 2.5, Items: items(3)}},
			want:   SalesSummary{TotalBuys: 2, TotalImages: 3, TotalSum: 7.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.orders))
		})
	}
}
