package pipeline

import (
	"testing"
	"time"

	"sales-insights/internal/models"
)

func order(customerID, orderID int, date time.Time, totalDue float64) models.Order {
	return models.Order{
		SalesOrderID: orderID,
		CustomerID:   customerID,
		OrderDate:    date,
		TotalDue:     totalDue,
	}
}

func TestBuildForecastRows_SingleCustomerHistory(t *testing.T) {
	// Three orders on days 1, 10, and 25. The day-25 order has no follower
	// and must be dropped; the other two rows carry the gap to the next
	// order as their label.
	orders := []models.Order{
		order(7, 3, day(25), 300),
		order(7, 1, day(1), 100),
		order(7, 2, day(10), 200),
	}

	rows := BuildForecastRows(orders)

	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 (last order has no label)", len(rows))
	}

	first, second := rows[0], rows[1]

	if first.OrderSequence != 1 || second.OrderSequence != 2 {
		t.Errorf("order sequence = [%v %v], want [1 2]", first.OrderSequence, second.OrderSequence)
	}
	if first.DaysSincePrev != 999 {
		t.Errorf("first order days_since_prev = %v, want sentinel 999", first.DaysSincePrev)
	}
	if second.DaysSincePrev != 9 {
		t.Errorf("second order days_since_prev = %v, want 9", second.DaysSincePrev)
	}
	if first.DaysUntilNext != 9 || second.DaysUntilNext != 15 {
		t.Errorf("labels = [%v %v], want [9 15]", first.DaysUntilNext, second.DaysUntilNext)
	}
	if first.TenureDays != 0 || second.TenureDays != 9 {
		t.Errorf("tenure = [%v %v], want [0 9]", first.TenureDays, second.TenureDays)
	}
	if first.AvgOrderValueToDate != 100 || second.AvgOrderValueToDate != 150 {
		t.Errorf("running avg = [%v %v], want [100 150]", first.AvgOrderValueToDate, second.AvgOrderValueToDate)
	}
}

func TestBuildForecastRows_DropsExactlyLastOrders(t *testing.T) {
	orders := []models.Order{
		order(1, 10, day(1), 50),
		order(1, 11, day(8), 60),
		order(1, 12, day(20), 70),
		order(2, 20, day(3), 80), // single order: never labelable
		order(3, 30, day(2), 90),
		order(3, 31, day(9), 95),
	}

	rows := BuildForecastRows(orders)

	// Customer 1 keeps 2 rows, customer 2 none, customer 3 one.
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	lastDates := map[int]time.Time{1: day(20), 2: day(3), 3: day(9)}
	for _, row := range rows {
		if row.OrderDate.Equal(lastDates[row.CustomerID]) {
			t.Errorf("customer %d row for its last order %v should have been dropped",
				row.CustomerID, row.OrderDate)
		}
		if row.DaysUntilNext <= 0 {
			t.Errorf("label = %v, want positive gap", row.DaysUntilNext)
		}
	}
}

func TestBuildForecastRows_Sentinels(t *testing.T) {
	orders := []models.Order{
		// Territory id 0 means the order had no territory.
		order(5, 1, day(1), 10),
		{SalesOrderID: 2, CustomerID: 5, OrderDate: day(6), TotalDue: 20, TerritoryID: 4, OnlineOrderFlag: true},
	}

	rows := BuildForecastRows(orders)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].TerritoryID != -1 {
		t.Errorf("missing territory encoded as %v, want -1", rows[0].TerritoryID)
	}
	if rows[0].OnlineOrderFlag != 0 {
		t.Errorf("offline order flag = %v, want 0", rows[0].OnlineOrderFlag)
	}
}

func TestBuildForecastRows_EmptyInput(t *testing.T) {
	if rows := BuildForecastRows(nil); len(rows) != 0 {
		t.Errorf("rows from empty input = %d, want 0", len(rows))
	}
}
