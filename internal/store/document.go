package store

import (
	"bytes"
	"encoding/json"
	"sort"

	"hq-entitlements/internal/model"
)

// encodeDocument serialises orders oldest first so the document diffs cleanly.
func encodeDocument(orders []model.Order) ([]byte, error) {
	sorted := make([]model.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	return json.MarshalIndent(sorted, "", "  ")
}

// decodeDocument parses a persisted document. Blank input is an empty collection.
func decodeDocument(data []byte) ([]model.Order, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []model.Order{}, nil
	}

	var orders []model.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}
