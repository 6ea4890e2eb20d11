package models

import "time"

// OrderLine is the fact grain: one row per original sales order detail row.
// Dimension fields resolved through a left join may be zero-valued when the
// dimension row is missing.
type OrderLine struct {
	SalesOrderID       int
	SalesOrderDetailID int
	OrderDate          time.Time
	ShipDate           time.Time
	CustomerID         int
	PersonID           int
	TerritoryID        int
	TerritoryName      string
	OnlineOrderFlag    bool
	TotalDue           float64
	City               string
	StateName          string
	CountryName        string
	PostalCode         string
	ProductID          int
	ProductName        string
	ProductNumber      string
	SubcategoryID      int
	SubcategoryName    string
	CategoryID         int
	CategoryName       string
	OrderQty           int
	UnitPrice          float64
	UnitPriceDiscount  float64
	LineTotal          float64
}

// Order is the per-order aggregate derived by grouping OrderLine rows.
type Order struct {
	SalesOrderID    int
	CustomerID      int
	TerritoryID     int
	OrderDate       time.Time
	OnlineOrderFlag bool
	TotalDue        float64
}

// CustomerOrder is one row of the served order history rollup.
type CustomerOrder struct {
	SalesOrderID    int       `json:"sales_order_id"`
	CustomerID      int       `json:"customer_id"`
	TerritoryID     int       `json:"territory_id"`
	TerritoryName   string    `json:"territory_name"`
	OrderDate       time.Time `json:"order_date"`
	OnlineOrderFlag bool      `json:"online_order_flag"`
	OrderValue      float64   `json:"order_value"`
}

// RFMRecord holds one customer's recency/frequency/monetary scores and the
// segment assigned from them. Scores are quintile ranks in 1..5.
type RFMRecord struct {
	CustomerID     int       `json:"customer_id"`
	LastOrder      time.Time `json:"last_order"`
	Frequency      int       `json:"frequency"`
	Monetary       float64   `json:"monetary"`
	Recency        int       `json:"recency"`
	RecencyScore   int       `json:"recency_score"`
	FrequencyScore int       `json:"frequency_score"`
	MonetaryScore  int       `json:"monetary_score"`
	Segment        string    `json:"segment"`
}

type SegmentCount struct {
	Segment       string `json:"segment"`
	CustomerCount int    `json:"customer_count"`
}

type RFMSummary struct {
	Segments      []SegmentCount `json:"segments"`
	GeneratedRows int            `json:"generated_rows"`
}

// ForecastRow is one training example for the next-purchase model. All
// feature fields are float64 so they can be projected straight into the
// model's input vector. DaysUntilNext is the label; rows for a customer's
// last order carry no label and are never emitted.
type ForecastRow struct {
	CustomerID          int
	OrderDate           time.Time
	OrderSequence       float64
	DaysSincePrev       float64
	TotalDue            float64
	AvgOrderValueToDate float64
	TenureDays          float64
	TerritoryID         float64
	OnlineOrderFlag     float64
	DaysUntilNext       float64
}

type MonthlyRevenue struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
}

type CategoryRevenue struct {
	Category string  `json:"category"`
	Revenue  float64 `json:"revenue"`
}

type TerritoryRevenue struct {
	Territory string  `json:"territory"`
	Revenue   float64 `json:"revenue"`
}

type Summary struct {
	TotalRevenue    float64 `json:"total_revenue"`
	TotalOrders     int     `json:"total_orders"`
	TotalCustomers  int     `json:"total_customers"`
	AvgOrderValue   float64 `json:"avg_order_value"`
	DataPeriodStart string  `json:"data_period_start"`
	DataPeriodEnd   string  `json:"data_period_end"`
}

// PredictionRequest carries the caller-supplied features for an on-demand
// next-purchase forecast. JSON names double as the model's feature column
// names.
type PredictionRequest struct {
	DaysSincePrev       float64 `json:"days_since_prev"`
	OrderSequence       float64 `json:"order_sequence"`
	TotalDue            float64 `json:"total_due"`
	AvgOrderValueToDate float64 `json:"avg_order_value_to_date"`
	TenureDays          float64 `json:"tenure_days"`
	TerritoryID         float64 `json:"territory_id"`
	OnlineOrderFlag     float64 `json:"online_order_flag"`
}

// Field returns the value for a feature column name, used to project the
// request onto the order of columns the model was trained with.
func (p PredictionRequest) Field(column string) (float64, bool) {
	switch column {
	case "days_since_prev":
		return p.DaysSincePrev, true
	case "order_sequence":
		return p.OrderSequence, true
	case "total_due":
		return p.TotalDue, true
	case "avg_order_value_to_date":
		return p.AvgOrderValueToDate, true
	case "tenure_days":
		return p.TenureDays, true
	case "territory_id":
		return p.TerritoryID, true
	case "online_order_flag":
		return p.OnlineOrderFlag, true
	}
	return 0, false
}
