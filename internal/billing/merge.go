package billing

import "mesa-table-service/internal/utils"

// mergeLineItems folds incoming items into the existing bill items. Matching
// itemIds accumulate quantity and total; new items are appended in arrival
// order. Inputs are not mutated.
func mergeLineItems(existing []LineItem, incoming []LineItem) []LineItem {
	merged := make([]LineItem, len(existing))
	copy(merged, existing)

	index := make(map[int64]int, len(merged))
	for i, item := range merged {
		index[item.ItemID] = i
	}

	for _, item := range incoming {
		if i, ok := index[item.ItemID]; ok {
			merged[i].Quantity += item.Quantity
			merged[i].Total = utils.RoundCurrency(merged[i].Total + item.Total)
			continue
		}
		index[item.ItemID] = len(merged)
		merged = append(merged, item)
	}

	return merged
}

func computeTotals(items []LineItem, taxRate float64) (subtotal, tax, total float64) {
	for _, item := range items {
		subtotal += item.Total
	}
	subtotal = utils.RoundCurrency(subtotal)
	tax = utils.RoundCurrency(subtotal * taxRate)
	total = utils.RoundCurrency(subtotal + tax)
	return subtotal, tax, total
}

func validateItems(items []LineItem) (field string, ok bool) {
	if len(items) == 0 {
		return "items", false
	}
	for _, item := range items {
		if item.ItemID <= 0 {
			return "itemId", false
		}
		if item.Quantity <= 0 {
			return "quantity", false
		}
		// Zero is allowed: comped items carry a zero line total.
		if item.Total < 0 {
			return "total", false
		}
	}
	return "", true
}
