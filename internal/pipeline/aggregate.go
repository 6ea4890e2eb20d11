package pipeline

import (
	"slices"
	"strings"

	"sales-insights/internal/models"
)

// MonthlyRevenue sums line totals per calendar month, ascending. Buckets are
// keyed by the first day of the month so they serialize as full ISO dates.
func MonthlyRevenue(lines []models.OrderLine) []models.MonthlyRevenue {
	groups := make(map[string]float64)
	for _, line := range lines {
		if line.OrderDate.IsZero() {
			continue
		}
		groups[line.OrderDate.Format("2006-01")+"-01"] += line.LineTotal
	}

	result := make([]models.MonthlyRevenue, 0, len(groups))
	for month, revenue := range groups {
		result = append(result, models.MonthlyRevenue{Month: month, Revenue: revenue})
	}
	slices.SortFunc(result, func(a, b models.MonthlyRevenue) int {
		return strings.Compare(a.Month, b.Month)
	})
	return result
}

// CategoryRevenue sums line totals per category name, descending by revenue.
// Lines whose product dimension did not resolve carry no category and are
// skipped, matching a grouped rollup that drops null keys.
func CategoryRevenue(lines []models.OrderLine) []models.CategoryRevenue {
	groups := make(map[string]float64)
	for _, line := range lines {
		if line.CategoryName == "" {
			continue
		}
		groups[line.CategoryName] += line.LineTotal
	}

	result := make([]models.CategoryRevenue, 0, len(groups))
	for name, revenue := range groups {
		result = append(result, models.CategoryRevenue{Category: name, Revenue: revenue})
	}
	slices.SortFunc(result, func(a, b models.CategoryRevenue) int {
		if a.Revenue != b.Revenue {
			if a.Revenue > b.Revenue {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Category, b.Category)
	})
	return result
}

// TerritoryRevenue sums line totals per territory name, descending by revenue.
func TerritoryRevenue(lines []models.OrderLine) []models.TerritoryRevenue {
	groups := make(map[string]float64)
	for _, line := range lines {
		if line.TerritoryName == "" {
			continue
		}
		groups[line.TerritoryName] += line.LineTotal
	}

	result := make([]models.TerritoryRevenue, 0, len(groups))
	for name, revenue := range groups {
		result = append(result, models.TerritoryRevenue{Territory: name, Revenue: revenue})
	}
	slices.SortFunc(result, func(a, b models.TerritoryRevenue) int {
		if a.Revenue != b.Revenue {
			if a.Revenue > b.Revenue {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Territory, b.Territory)
	})
	return result
}

// Summarize produces the headline statistics record. Values stay unrounded
// here; rounding happens only where they are serialized.
func Summarize(lines []models.OrderLine) models.Summary {
	var (
		revenue    float64
		orders     = make(map[int]struct{})
		customers  = make(map[int]struct{})
		start, end string
	)
	for _, line := range lines {
		revenue += line.LineTotal
		orders[line.SalesOrderID] = struct{}{}
		// Lines whose header never resolved carry no customer id and do not
		// add a distinct customer.
		if line.CustomerID != 0 {
			customers[line.CustomerID] = struct{}{}
		}
		if line.OrderDate.IsZero() {
			continue
		}
		day := line.OrderDate.Format("2006-01-02")
		if start == "" || day < start {
			start = day
		}
		if day > end {
			end = day
		}
	}

	totalOrders := len(orders)
	divisor := totalOrders
	if divisor < 1 {
		divisor = 1
	}
	return models.Summary{
		TotalRevenue:    revenue,
		TotalOrders:     totalOrders,
		TotalCustomers:  len(customers),
		AvgOrderValue:   revenue / float64(divisor),
		DataPeriodStart: start,
		DataPeriodEnd:   end,
	}
}

// BuildOrders groups order lines into one aggregate per sales order, with
// total_due recomputed as the sum of its line totals. Output is sorted by
// order id so reruns on the same input are byte-identical.
func BuildOrders(lines []models.OrderLine) []models.Order {
	groups := make(map[int]*models.Order)
	for _, line := range lines {
		order, ok := groups[line.SalesOrderID]
		if !ok {
			order = &models.Order{
				SalesOrderID:    line.SalesOrderID,
				CustomerID:      line.CustomerID,
				TerritoryID:     line.TerritoryID,
				OrderDate:       line.OrderDate,
				OnlineOrderFlag: line.OnlineOrderFlag,
			}
			groups[line.SalesOrderID] = order
		}
		order.TotalDue += line.LineTotal
	}

	result := make([]models.Order, 0, len(groups))
	for _, order := range groups {
		result = append(result, *order)
	}
	slices.SortFunc(result, func(a, b models.Order) int {
		return a.SalesOrderID - b.SalesOrderID
	})
	return result
}

// OrderHistory is the served per-order rollup: one row per order with its
// territory name carried along, sorted by order date then order id.
func OrderHistory(lines []models.OrderLine) []models.CustomerOrder {
	groups := make(map[int]*models.CustomerOrder)
	for _, line := range lines {
		order, ok := groups[line.SalesOrderID]
		if !ok {
			order = &models.CustomerOrder{
				SalesOrderID:    line.SalesOrderID,
				CustomerID:      line.CustomerID,
				TerritoryID:     line.TerritoryID,
				TerritoryName:   line.TerritoryName,
				OrderDate:       line.OrderDate,
				OnlineOrderFlag: line.OnlineOrderFlag,
			}
			groups[line.SalesOrderID] = order
		}
		order.OrderValue += line.LineTotal
	}

	result := make([]models.CustomerOrder, 0, len(groups))
	for _, order := range groups {
		result = append(result, *order)
	}
	slices.SortFunc(result, func(a, b models.CustomerOrder) int {
		if !a.OrderDate.Equal(b.OrderDate) {
			if a.OrderDate.Before(b.OrderDate) {
				return -1
			}
			return 1
		}
		return a.SalesOrderID - b.SalesOrderID
	})
	return result
}
