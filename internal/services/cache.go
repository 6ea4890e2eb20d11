// Package services holds the serving cache: the load-once, in-memory view of
// every processed artifact that answers read queries without touching
// storage per request.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sales-insights/internal/artifacts"
	"sales-insights/internal/errors"
	"sales-insights/internal/forecast"
	"sales-insights/internal/models"
)

// ServingCache is fully populated before it is handed out and never mutated
// afterwards, so reads need no locking.
type ServingCache struct {
	enriched     []models.OrderLine
	summary      models.Summary
	monthly      []models.MonthlyRevenue
	category     []models.CategoryRevenue
	territory    []models.TerritoryRevenue
	rfm          []models.RFMRecord
	rfmByID      map[int]models.RFMRecord
	rfmSummary   models.RFMSummary
	orderHistory []models.CustomerOrder
	ordersByID   map[int][]models.CustomerOrder
	report       *forecast.Report
	model        *forecast.Forest
	loadedAt     time.Time
}

// CacheProvider guards the one-time construction of the serving cache.
// Concurrent first accesses race to a single construction; every caller
// observes the same completed cache or the same failure. A fresh pipeline
// run needs a fresh provider to be observed.
type CacheProvider struct {
	store  *artifacts.Store
	logger *slog.Logger

	once  sync.Once
	cache *ServingCache
	err   error
}

func NewCacheProvider(store *artifacts.Store, logger *slog.Logger) *CacheProvider {
	return &CacheProvider{store: store, logger: logger}
}

// Get returns the serving cache, constructing it on first access.
func (p *CacheProvider) Get(ctx context.Context) (*ServingCache, error) {
	p.once.Do(func() {
		start := time.Now()
		p.cache, p.err = buildCache(p.store)
		if p.err != nil {
			p.logger.Error("serving cache construction failed", "error", p.err)
			return
		}
		p.logger.Info("serving cache ready",
			"fact_rows", len(p.cache.enriched),
			"customers", len(p.cache.rfm),
			"orders", len(p.cache.orderHistory),
			"duration", time.Since(start),
		)
	})
	return p.cache, p.err
}

// buildCache loads every persisted artifact in one pass. A single absent
// artifact fails the whole construction; nothing partial is ever returned.
func buildCache(store *artifacts.Store) (*ServingCache, error) {
	c := &ServingCache{loadedAt: time.Now()}

	var err error
	if c.enriched, err = store.LoadEnriched(); err != nil {
		return nil, err
	}
	if c.summary, err = store.LoadSummary(); err != nil {
		return nil, err
	}
	if c.monthly, err = store.LoadMonthlyRevenue(); err != nil {
		return nil, err
	}
	if c.category, err = store.LoadCategoryRevenue(); err != nil {
		return nil, err
	}
	if c.territory, err = store.LoadTerritoryRevenue(); err != nil {
		return nil, err
	}
	if c.rfm, err = store.LoadRFM(); err != nil {
		return nil, err
	}
	if c.rfmSummary, err = store.LoadRFMSummary(); err != nil {
		return nil, err
	}
	if c.orderHistory, err = store.LoadOrderHistory(); err != nil {
		return nil, err
	}
	if c.report, err = store.LoadModelReport(); err != nil {
		return nil, err
	}
	if c.model, err = store.LoadModel(); err != nil {
		return nil, err
	}

	c.rfmByID = make(map[int]models.RFMRecord, len(c.rfm))
	for _, record := range c.rfm {
		c.rfmByID[record.CustomerID] = record
	}

	// orderHistory is persisted date-sorted; the per-customer slices keep
	// that order, so the tail is always the most recent orders.
	c.ordersByID = make(map[int][]models.CustomerOrder)
	for _, order := range c.orderHistory {
		c.ordersByID[order.CustomerID] = append(c.ordersByID[order.CustomerID], order)
	}

	return c, nil
}

func (c *ServingCache) Summary() models.Summary {
	return c.summary
}

func (c *ServingCache) MonthlyRevenue() []models.MonthlyRevenue {
	return c.monthly
}

func (c *ServingCache) CategoryRevenue(topK int) []models.CategoryRevenue {
	if topK > 0 && len(c.category) > topK {
		return c.category[:topK]
	}
	return c.category
}

func (c *ServingCache) TerritoryRevenue() []models.TerritoryRevenue {
	return c.territory
}

func (c *ServingCache) SegmentSummary() models.RFMSummary {
	return c.rfmSummary
}

func (c *ServingCache) ModelReport() *forecast.Report {
	return c.report
}

// CustomerRFM returns the customer's segmentation record.
func (c *ServingCache) CustomerRFM(customerID int) (models.RFMRecord, error) {
	record, ok := c.rfmByID[customerID]
	if !ok {
		return models.RFMRecord{}, errors.NotFound(fmt.Sprintf("customer %d not found", customerID))
	}
	return record, nil
}

// CustomerOrders returns the customer's most recent orders, up to limit.
func (c *ServingCache) CustomerOrders(customerID, limit int) ([]models.CustomerOrder, error) {
	history, ok := c.ordersByID[customerID]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("customer %d not found", customerID))
	}
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history, nil
}

// Predict validates the request, projects it onto the feature columns the
// model was trained with, and returns the forecast in days.
func (c *ServingCache) Predict(req models.PredictionRequest) (float64, error) {
	if err := validatePredictionRequest(req); err != nil {
		return 0, err
	}

	features := make([]float64, 0, len(c.report.FeatureColumns))
	for _, column := range c.report.FeatureColumns {
		value, ok := req.Field(column)
		if !ok {
			return 0, errors.ContractMismatch(fmt.Sprintf(
				"request does not supply feature column %q required by the model", column))
		}
		features = append(features, value)
	}
	if len(features) != c.model.NumFeatures {
		return 0, errors.ContractMismatch(fmt.Sprintf(
			"model expects %d features, request built %d", c.model.NumFeatures, len(features)))
	}

	return c.model.Predict(features), nil
}

func validatePredictionRequest(req models.PredictionRequest) error {
	switch {
	case req.DaysSincePrev < 0:
		return errors.Validation("days_since_prev must be >= 0")
	case req.OrderSequence < 1:
		return errors.Validation("order_sequence must be >= 1")
	case req.TotalDue < 0:
		return errors.Validation("total_due must be >= 0")
	case req.AvgOrderValueToDate < 0:
		return errors.Validation("avg_order_value_to_date must be >= 0")
	case req.TenureDays < 0:
		return errors.Validation("tenure_days must be >= 0")
	case req.TerritoryID < -1:
		return errors.Validation("territory_id must be >= -1")
	case req.OnlineOrderFlag != 0 && req.OnlineOrderFlag != 1:
		return errors.Validation("online_order_flag must be 0 or 1")
	}
	return nil
}

// Stats reports cache shape for the admin endpoint.
func (c *ServingCache) Stats() map[string]any {
	return map[string]any{
		"loaded_at":   c.loadedAt,
		"fact_rows":   len(c.enriched),
		"customers":   len(c.rfm),
		"orders":      len(c.orderHistory),
		"months":      len(c.monthly),
		"categories":  len(c.category),
		"territories": len(c.territory),
		"model_trees": len(c.model.Trees),
	}
}
