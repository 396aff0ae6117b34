package dayclose

import (
	"sort"

	"mesa-table-service/internal/orders"
	"mesa-table-service/internal/utils"
)

const topItemCount = 5

// aggregateOrders computes the report figures from one day's orders.
// Ordering is deterministic: items tie-break on name, tables on the
// lexicographically smaller table number (so "T10" beats "T9" on a tie),
// and repeated closes over the same data produce identical reports.
func aggregateOrders(dayOrders []closedOrder) (totalOrders int, totalRevenue float64, totalPayments int, topItems []ItemCount, mostActiveTable string) {
	totalOrders = len(dayOrders)

	itemTotals := make(map[int64]ItemCount)
	tableCounts := make(map[string]int)

	for _, order := range dayOrders {
		totalRevenue += order.TotalAmount
		if order.PaymentStatus == orders.PaymentPaid {
			totalPayments++
		}
		tableCounts[order.TableNumber]++
		for _, item := range order.Items {
			entry := itemTotals[item.ItemID]
			entry.ItemID = item.ItemID
			entry.Name = item.Name
			entry.Quantity += item.Quantity
			itemTotals[item.ItemID] = entry
		}
	}
	totalRevenue = utils.RoundCurrency(totalRevenue)

	topItems = make([]ItemCount, 0, len(itemTotals))
	for _, entry := range itemTotals {
		topItems = append(topItems, entry)
	}
	sort.Slice(topItems, func(i, j int) bool {
		if topItems[i].Quantity != topItems[j].Quantity {
			return topItems[i].Quantity > topItems[j].Quantity
		}
		return topItems[i].Name < topItems[j].Name
	})
	if len(topItems) > topItemCount {
		topItems = topItems[:topItemCount]
	}

	for table, count := range tableCounts {
		if mostActiveTable == "" {
			mostActiveTable = table
			continue
		}
		best := tableCounts[mostActiveTable]
		if count > best || (count == best && table < mostActiveTable) {
			mostActiveTable = table
		}
	}

	return totalOrders, totalRevenue, totalPayments, topItems, mostActiveTable
}
