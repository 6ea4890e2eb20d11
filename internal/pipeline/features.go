package pipeline

import (
	"slices"
	"time"

	"sales-insights/internal/models"
)

const (
	// Sentinel for "no prior order"; numeric models cannot take a null.
	firstOrderGapSentinel = 999
	// Sentinel for an order with no territory.
	missingTerritory = -1
)

// BuildForecastRows turns per-order history into leakage-free training rows
// for the days-until-next-purchase model. Every feature looks strictly
// backward from the row's order date; the label looks one order forward, so
// each customer's chronologically last order is dropped for lack of a label.
func BuildForecastRows(orders []models.Order) []models.ForecastRow {
	byCustomer := make(map[int][]models.Order)
	customerIDs := make([]int, 0)
	for _, order := range orders {
		if _, ok := byCustomer[order.CustomerID]; !ok {
			customerIDs = append(customerIDs, order.CustomerID)
		}
		byCustomer[order.CustomerID] = append(byCustomer[order.CustomerID], order)
	}
	slices.Sort(customerIDs)

	var rows []models.ForecastRow
	for _, customerID := range customerIDs {
		history := byCustomer[customerID]
		slices.SortStableFunc(history, func(a, b models.Order) int {
			if !a.OrderDate.Equal(b.OrderDate) {
				if a.OrderDate.Before(b.OrderDate) {
					return -1
				}
				return 1
			}
			return a.SalesOrderID - b.SalesOrderID
		})

		firstDate := history[0].OrderDate
		spendToDate := 0.0
		for i, order := range history {
			spendToDate += order.TotalDue
			if i == len(history)-1 {
				break // last order has no observable label
			}

			sequence := float64(i + 1)
			row := models.ForecastRow{
				CustomerID:          customerID,
				OrderDate:           order.OrderDate,
				OrderSequence:       sequence,
				DaysSincePrev:       firstOrderGapSentinel,
				TotalDue:            order.TotalDue,
				AvgOrderValueToDate: spendToDate / sequence,
				TenureDays:          daysBetween(firstDate, order.OrderDate),
				TerritoryID:         float64(order.TerritoryID),
				DaysUntilNext:       daysBetween(order.OrderDate, history[i+1].OrderDate),
			}
			if i > 0 {
				row.DaysSincePrev = daysBetween(history[i-1].OrderDate, order.OrderDate)
			}
			if order.TerritoryID == 0 {
				row.TerritoryID = missingTerritory
			}
			if order.OnlineOrderFlag {
				row.OnlineOrderFlag = 1
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}
