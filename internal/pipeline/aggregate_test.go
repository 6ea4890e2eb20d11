package pipeline

import (
	"math"
	"reflect"
	"testing"

	"sales-insights/internal/models"
)

func TestMonthlyRevenue(t *testing.T) {
	monthly := MonthlyRevenue(Enrich(testCore()))

	want := []struct {
		month   string
		revenue float64
	}{
		{"2023-01-01", 120},
		{"2023-02-01", 280},
	}
	if len(monthly) != len(want) {
		t.Fatalf("months = %d, want %d", len(monthly), len(want))
	}
	for i, w := range want {
		if monthly[i].Month != w.month || math.Abs(monthly[i].Revenue-w.revenue) > 1e-9 {
			t.Errorf("monthly[%d] = %+v, want %s/%v", i, monthly[i], w.month, w.revenue)
		}
	}
}

func TestCategoryRevenue(t *testing.T) {
	categories := CategoryRevenue(Enrich(testCore()))

	// Product 1003 has no category and must not contribute a group.
	if len(categories) != 2 {
		t.Fatalf("categories = %d, want 2", len(categories))
	}
	if categories[0].Category != "Bikes" || categories[0].Revenue != 300 {
		t.Errorf("top category = %+v, want Bikes/300", categories[0])
	}
	if categories[1].Category != "Accessories" || categories[1].Revenue != 50 {
		t.Errorf("second category = %+v, want Accessories/50", categories[1])
	}
}

func TestTerritoryRevenue(t *testing.T) {
	territories := TerritoryRevenue(Enrich(testCore()))

	if len(territories) != 2 {
		t.Fatalf("territories = %d, want 2", len(territories))
	}
	if territories[0].Territory != "Northwest" || territories[0].Revenue != 320 {
		t.Errorf("top territory = %+v, want Northwest/320", territories[0])
	}
	if territories[1].Territory != "Canada" || territories[1].Revenue != 80 {
		t.Errorf("second territory = %+v, want Canada/80", territories[1])
	}
}

func TestSummarize(t *testing.T) {
	lines := Enrich(testCore())
	summary := Summarize(lines)

	if summary.TotalRevenue != 400 {
		t.Errorf("total revenue = %v, want 400", summary.TotalRevenue)
	}
	if summary.TotalOrders != 3 {
		t.Errorf("total orders = %d, want 3", summary.TotalOrders)
	}
	if summary.TotalCustomers != 2 {
		t.Errorf("total customers = %d, want 2", summary.TotalCustomers)
	}

	// Average order value derives from the distinct order count, not from
	// line count.
	want := summary.TotalRevenue / float64(summary.TotalOrders)
	if math.Abs(summary.AvgOrderValue-want) > 1e-9 {
		t.Errorf("avg order value = %v, want %v", summary.AvgOrderValue, want)
	}
	if summary.DataPeriodStart != "2023-01-05" || summary.DataPeriodEnd != "2023-02-15" {
		t.Errorf("period = %s..%s, want 2023-01-05..2023-02-15", summary.DataPeriodStart, summary.DataPeriodEnd)
	}
}

func TestSummarize_SkipsUnresolvedCustomer(t *testing.T) {
	// A detail row whose header is missing keeps its order id but has no
	// customer; it contributes revenue without a distinct customer.
	lines := append(Enrich(testCore()), models.OrderLine{SalesOrderID: 9, LineTotal: 10})
	summary := Summarize(lines)

	if summary.TotalCustomers != 2 {
		t.Errorf("total customers = %d, want 2", summary.TotalCustomers)
	}
	if summary.TotalOrders != 4 {
		t.Errorf("total orders = %d, want 4", summary.TotalOrders)
	}
	if summary.TotalRevenue != 410 {
		t.Errorf("total revenue = %v, want 410", summary.TotalRevenue)
	}
}

func TestSummarize_EmptyInput(t *testing.T) {
	summary := Summarize(nil)

	if summary.TotalOrders != 0 || summary.TotalRevenue != 0 {
		t.Errorf("empty summary not zero: %+v", summary)
	}
	// Division is guarded: zero orders must not divide by zero.
	if summary.AvgOrderValue != 0 {
		t.Errorf("avg order value = %v, want 0", summary.AvgOrderValue)
	}
}

func TestBuildOrders(t *testing.T) {
	orders := BuildOrders(Enrich(testCore()))

	if len(orders) != 3 {
		t.Fatalf("orders = %d, want 3", len(orders))
	}
	totals := map[int]float64{1: 120, 2: 200, 3: 80}
	for _, order := range orders {
		if math.Abs(order.TotalDue-totals[order.SalesOrderID]) > 1e-9 {
			t.Errorf("order %d total_due = %v, want %v", order.SalesOrderID, order.TotalDue, totals[order.SalesOrderID])
		}
	}
}

func TestOrderHistory_SortedByDate(t *testing.T) {
	history := OrderHistory(Enrich(testCore()))

	if len(history) != 3 {
		t.Fatalf("history rows = %d, want 3", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].OrderDate.Before(history[i-1].OrderDate) {
			t.Errorf("history not sorted ascending at %d: %v before %v",
				i, history[i].OrderDate, history[i-1].OrderDate)
		}
	}
}

func TestRollups_Idempotent(t *testing.T) {
	lines := Enrich(testCore())

	if !reflect.DeepEqual(MonthlyRevenue(lines), MonthlyRevenue(lines)) {
		t.Error("monthly rollup differs across runs on unchanged input")
	}
	if !reflect.DeepEqual(CategoryRevenue(lines), CategoryRevenue(lines)) {
		t.Error("category rollup differs across runs on unchanged input")
	}
	if !reflect.DeepEqual(TerritoryRevenue(lines), TerritoryRevenue(lines)) {
		t.Error("territory rollup differs across runs on unchanged input")
	}
	if !reflect.DeepEqual(OrderHistory(lines), OrderHistory(lines)) {
		t.Error("order history differs across runs on unchanged input")
	}
}
