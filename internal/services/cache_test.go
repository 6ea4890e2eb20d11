package services

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sales-insights/internal/artifacts"
	"sales-insights/internal/config"
	"sales-insights/internal/errors"
	"sales-insights/internal/forecast"
	"sales-insights/internal/models"
)

func emptyStore(t *testing.T) *artifacts.Store {
	t.Helper()
	base := t.TempDir()
	return artifacts.NewStore(config.DataConfig{
		ProcessedDir: filepath.Join(base, "processed"),
		ModelsDir:    filepath.Join(base, "models"),
	})
}

// populatedStore writes a full artifact set: the enriched fact table, three
// customers, four orders, and a small trained model.
func populatedStore(t *testing.T) *artifacts.Store {
	t.Helper()
	store := emptyStore(t)
	saveRollupArtifacts(t, store)

	day := func(d int) time.Time {
		return time.Date(2023, 1, d, 0, 0, 0, 0, time.UTC)
	}
	if err := store.SaveEnriched([]models.OrderLine{
		{SalesOrderID: 1, SalesOrderDetailID: 1, CustomerID: 11, OrderDate: day(3), LineTotal: 150, CategoryName: "Bikes", TerritoryName: "Northwest"},
		{SalesOrderID: 2, SalesOrderDetailID: 2, CustomerID: 12, OrderDate: day(10), LineTotal: 200, CategoryName: "Bikes", TerritoryName: "Northwest"},
		{SalesOrderID: 3, SalesOrderDetailID: 3, CustomerID: 11, OrderDate: day(15), LineTotal: 250, CategoryName: "Accessories", TerritoryName: "Northwest"},
		{SalesOrderID: 4, SalesOrderDetailID: 4, CustomerID: 13, OrderDate: day(2), LineTotal: 100, CategoryName: "Clothing", TerritoryName: "Northwest"},
	}); err != nil {
		t.Fatalf("save artifact: %v", err)
	}
	return store
}

// saveRollupArtifacts writes every artifact except the enriched fact table.
func saveRollupArtifacts(t *testing.T, store *artifacts.Store) {
	t.Helper()

	day := func(d int) time.Time {
		return time.Date(2023, 1, d, 0, 0, 0, 0, time.UTC)
	}

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("save artifact: %v", err)
		}
	}

	must(store.SaveSummary(models.Summary{
		TotalRevenue:    700,
		TotalOrders:     4,
		TotalCustomers:  3,
		AvgOrderValue:   175,
		DataPeriodStart: "2023-01-01",
		DataPeriodEnd:   "2023-01-20",
	}))
	must(store.SaveMonthlyRevenue([]models.MonthlyRevenue{{Month: "2023-01-01", Revenue: 700}}))
	must(store.SaveCategoryRevenue([]models.CategoryRevenue{
		{Category: "Bikes", Revenue: 500},
		{Category: "Accessories", Revenue: 150},
		{Category: "Clothing", Revenue: 50},
	}))
	must(store.SaveTerritoryRevenue([]models.TerritoryRevenue{{Territory: "Northwest", Revenue: 700}}))
	must(store.SaveRFM([]models.RFMRecord{
		{CustomerID: 11, LastOrder: day(15), Frequency: 2, Monetary: 400,
			Recency: 5, RecencyScore: 5, FrequencyScore: 5, MonetaryScore: 5, Segment: "Champions"},
		{CustomerID: 12, LastOrder: day(10), Frequency: 1, Monetary: 200,
			Recency: 10, RecencyScore: 3, FrequencyScore: 2, MonetaryScore: 3, Segment: "Others"},
		{CustomerID: 13, LastOrder: day(2), Frequency: 1, Monetary: 100,
			Recency: 18, RecencyScore: 1, FrequencyScore: 1, MonetaryScore: 1, Segment: "Hibernating"},
	}))
	must(store.SaveRFMSummary(models.RFMSummary{
		Segments: []models.SegmentCount{
			{Segment: "Champions", CustomerCount: 1},
			{Segment: "Hibernating", CustomerCount: 1},
			{Segment: "Others", CustomerCount: 1},
		},
		GeneratedRows: 3,
	}))
	must(store.SaveOrderHistory([]models.CustomerOrder{
		{SalesOrderID: 1, CustomerID: 11, OrderDate: day(3), OrderValue: 150},
		{SalesOrderID: 2, CustomerID: 12, OrderDate: day(10), OrderValue: 200},
		{SalesOrderID: 3, CustomerID: 11, OrderDate: day(15), OrderValue: 250},
		{SalesOrderID: 4, CustomerID: 13, OrderDate: day(2), OrderValue: 100},
	}))

	rows := make([]models.ForecastRow, 40)
	for i := range rows {
		gap := float64(4 + i%9*6)
		rows[i] = models.ForecastRow{
			OrderSequence: float64(1 + i%4),
			DaysSincePrev: gap,
			TotalDue:      float64(90 + i),
			TenureDays:    float64(i * 2),
			TerritoryID:   float64(i % 6),
			DaysUntilNext: gap,
		}
	}
	cfg := forecast.DefaultConfig()
	cfg.Trees = 10
	model, report, err := forecast.Train(rows, cfg)
	if err != nil {
		t.Fatalf("Train() error: %v", err)
	}
	must(store.SaveModel(model))
	must(store.SaveModelReport(report))
}

func testProvider(t *testing.T) *CacheProvider {
	t.Helper()
	return NewCacheProvider(populatedStore(t), slog.Default())
}

func TestCacheProvider_ConcurrentGetReturnsSameCache(t *testing.T) {
	provider := testProvider(t)
	ctx := context.Background()

	const goroutines = 8
	caches := make([]*ServingCache, goroutines)
	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache, err := provider.Get(ctx)
			if err != nil {
				t.Errorf("Get() error: %v", err)
				return
			}
			caches[i] = cache
		}()
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if caches[i] != caches[0] {
			t.Fatal("concurrent Get() calls returned different cache instances")
		}
	}
}

func TestCacheProvider_StickyFailure(t *testing.T) {
	provider := NewCacheProvider(emptyStore(t), slog.Default())
	ctx := context.Background()

	_, firstErr := provider.Get(ctx)
	if !errors.HasCode(firstErr, errors.CodeMissingData) {
		t.Fatalf("Get() error = %v, want MISSING_DATA", firstErr)
	}
	_, secondErr := provider.Get(ctx)
	if secondErr != firstErr {
		t.Errorf("second Get() error = %v, want the same sticky error", secondErr)
	}
}

func TestCacheProvider_MissingEnrichedArtifact(t *testing.T) {
	// Every rollup present but the enriched fact table absent must fail the
	// whole construction, same as any other missing artifact.
	store := emptyStore(t)
	saveRollupArtifacts(t, store)

	_, err := NewCacheProvider(store, slog.Default()).Get(context.Background())
	if !errors.HasCode(err, errors.CodeMissingData) {
		t.Fatalf("Get() error = %v, want MISSING_DATA", err)
	}
}

func TestServingCache_Reads(t *testing.T) {
	cache, err := testProvider(t).Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	if got := cache.Summary().TotalRevenue; got != 700 {
		t.Errorf("summary revenue = %v, want 700", got)
	}
	if got := len(cache.MonthlyRevenue()); got != 1 {
		t.Errorf("monthly rows = %d, want 1", got)
	}
	if got := len(cache.CategoryRevenue(2)); got != 2 {
		t.Errorf("top-2 categories = %d rows, want 2", got)
	}
	if got := len(cache.CategoryRevenue(0)); got != 3 {
		t.Errorf("all categories = %d rows, want 3", got)
	}
	if got := cache.SegmentSummary().GeneratedRows; got != 3 {
		t.Errorf("segment summary rows = %d, want 3", got)
	}
	if got := cache.Stats()["customers"]; got != 3 {
		t.Errorf("stats customers = %v, want 3", got)
	}
	if got := cache.Stats()["fact_rows"]; got != 4 {
		t.Errorf("stats fact_rows = %v, want 4", got)
	}
}

func TestServingCache_CustomerRFM(t *testing.T) {
	cache, err := testProvider(t).Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	record, err := cache.CustomerRFM(11)
	if err != nil {
		t.Fatalf("CustomerRFM(11) error: %v", err)
	}
	if record.Segment != "Champions" {
		t.Errorf("segment = %q, want Champions", record.Segment)
	}

	if _, err := cache.CustomerRFM(999); !errors.HasCode(err, errors.CodeNotFound) {
		t.Errorf("CustomerRFM(999) error = %v, want NOT_FOUND", err)
	}
}

func TestServingCache_CustomerOrders(t *testing.T) {
	cache, err := testProvider(t).Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	orders, err := cache.CustomerOrders(11, 10)
	if err != nil {
		t.Fatalf("CustomerOrders(11) error: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("orders = %d, want 2", len(orders))
	}

	// Limit 1 keeps the most recent order, not the oldest.
	limited, err := cache.CustomerOrders(11, 1)
	if err != nil {
		t.Fatalf("CustomerOrders(11, 1) error: %v", err)
	}
	if len(limited) != 1 || limited[0].SalesOrderID != 3 {
		t.Errorf("limited orders = %+v, want just order 3", limited)
	}

	if _, err := cache.CustomerOrders(999, 10); !errors.HasCode(err, errors.CodeNotFound) {
		t.Errorf("CustomerOrders(999) error = %v, want NOT_FOUND", err)
	}
}

func validRequest() models.PredictionRequest {
	return models.PredictionRequest{
		DaysSincePrev:       14,
		OrderSequence:       3,
		TotalDue:            120,
		AvgOrderValueToDate: 95,
		TenureDays:          200,
		TerritoryID:         4,
		OnlineOrderFlag:     1,
	}
}

func TestServingCache_Predict(t *testing.T) {
	cache, err := testProvider(t).Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	days, err := cache.Predict(validRequest())
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if days < 0 {
		t.Errorf("predicted days = %v, want non-negative", days)
	}
}

func TestServingCache_PredictValidation(t *testing.T) {
	cache, err := testProvider(t).Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*models.PredictionRequest)
	}{
		{"negative days_since_prev", func(r *models.PredictionRequest) { r.DaysSincePrev = -1 }},
		{"zero order_sequence", func(r *models.PredictionRequest) { r.OrderSequence = 0 }},
		{"negative total_due", func(r *models.PredictionRequest) { r.TotalDue = -5 }},
		{"territory below sentinel", func(r *models.PredictionRequest) { r.TerritoryID = -2 }},
		{"fractional online flag", func(r *models.PredictionRequest) { r.OnlineOrderFlag = 0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			if _, err := cache.Predict(req); !errors.HasCode(err, errors.CodeValidation) {
				t.Errorf("Predict() error = %v, want VALIDATION_ERROR", err)
			}
		})
	}
}

func TestServingCache_PredictContractMismatch(t *testing.T) {
	store := populatedStore(t)

	// A report trained against a feature the request type does not carry
	// must be rejected rather than silently mis-ordered.
	report, err := store.LoadModelReport()
	if err != nil {
		t.Fatalf("LoadModelReport() error: %v", err)
	}
	report.FeatureColumns = append(append([]string{}, report.FeatureColumns...), "weekday")
	if err := store.SaveModelReport(report); err != nil {
		t.Fatalf("SaveModelReport() error: %v", err)
	}

	cache, err := NewCacheProvider(store, slog.Default()).Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if _, err := cache.Predict(validRequest()); !errors.HasCode(err, errors.CodeContractMismatch) {
		t.Errorf("Predict() error = %v, want CONTRACT_MISMATCH", err)
	}
}
