package handlers

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"sales-insights/internal/errors"
	"sales-insights/internal/models"
	"sales-insights/internal/observability"
	"sales-insights/internal/services"
)

const (
	defaultTopCategories = 10
	defaultOrderLimit    = 25
	maxOrderLimit        = 200
	cacheMaxAge          = "public, max-age=300"
)

type APIHandlers struct {
	provider *services.CacheProvider
	logger   *slog.Logger
}

func NewAPIHandlers(provider *services.CacheProvider, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		provider: provider,
		logger:   logger,
	}
}

// cache fetches the serving cache, writing the failure response itself when
// construction is impossible (for example after a pipeline run never
// happened).
func (h *APIHandlers) cache(w http.ResponseWriter, r *http.Request) (*services.ServingCache, bool) {
	cache, err := h.provider.Get(r.Context())
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return nil, false
	}
	return cache, true
}

// Monetary values are rounded to two decimals here, at the serialization
// boundary, never inside the aggregation itself.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	cache, ok := h.cache(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, cache.Stats())
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	cache, ok := h.cache(w, r)
	if !ok {
		return
	}

	summary := cache.Summary()
	summary.TotalRevenue = round2(summary.TotalRevenue)
	summary.AvgOrderValue = round2(summary.AvgOrderValue)

	errors.WriteSuccessWithHeaders(w, summary, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleMonthlyRevenue(w http.ResponseWriter, r *http.Request) {
	cache, ok := h.cache(w, r)
	if !ok {
		return
	}

	monthly := cache.MonthlyRevenue()
	response := make([]models.MonthlyRevenue, len(monthly))
	for i, m := range monthly {
		response[i] = models.MonthlyRevenue{Month: m.Month, Revenue: round2(m.Revenue)}
	}

	errors.WriteSuccessWithHeaders(w, response, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleCategoryRevenue(w http.ResponseWriter, r *http.Request) {
	cache, ok := h.cache(w, r)
	if !ok {
		return
	}

	topK := defaultTopCategories
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			errors.WriteError(w, h.logger, errors.BadRequest("top_k must be a positive integer"),
				observability.GetRequestID(r.Context()))
			return
		}
		topK = parsed
	}

	categories := cache.CategoryRevenue(topK)
	response := make([]models.CategoryRevenue, len(categories))
	for i, c := range categories {
		response[i] = models.CategoryRevenue{Category: c.Category, Revenue: round2(c.Revenue)}
	}

	errors.WriteSuccessWithHeaders(w, response, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleTerritoryRevenue(w http.ResponseWriter, r *http.Request) {
	cache, ok := h.cache(w, r)
	if !ok {
		return
	}

	territories := cache.TerritoryRevenue()
	response := make([]models.TerritoryRevenue, len(territories))
	for i, t := range territories {
		response[i] = models.TerritoryRevenue{Territory: t.Territory, Revenue: round2(t.Revenue)}
	}

	errors.WriteSuccessWithHeaders(w, response, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleSegments(w http.ResponseWriter, r *http.Request) {
	cache, ok := h.cache(w, r)
	if !ok {
		return
	}
	errors.WriteSuccessWithHeaders(w, cache.SegmentSummary(), map[string]string{"Cache-Control": cacheMaxAge})
}

type customerRFMResponse struct {
	CustomerID     int     `json:"customer_id"`
	LastOrder      string  `json:"last_order"`
	Frequency      int     `json:"frequency"`
	Monetary       float64 `json:"monetary"`
	Recency        int     `json:"recency"`
	RecencyScore   int     `json:"recency_score"`
	FrequencyScore int     `json:"frequency_score"`
	MonetaryScore  int     `json:"monetary_score"`
	Segment        string  `json:"segment"`
}

func (h *APIHandlers) HandleCustomerRFM(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	customerID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errors.WriteError(w, h.logger, errors.BadRequest("customer id must be an integer"), requestID)
		return
	}

	cache, ok := h.cache(w, r)
	if !ok {
		return
	}

	record, err := cache.CustomerRFM(customerID)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	errors.WriteSuccess(w, customerRFMResponse{
		CustomerID:     record.CustomerID,
		LastOrder:      record.LastOrder.Format("2006-01-02"),
		Frequency:      record.Frequency,
		Monetary:       round2(record.Monetary),
		Recency:        record.Recency,
		RecencyScore:   record.RecencyScore,
		FrequencyScore: record.FrequencyScore,
		MonetaryScore:  record.MonetaryScore,
		Segment:        record.Segment,
	})
}

type customerOrderResponse struct {
	SalesOrderID    int     `json:"sales_order_id"`
	OrderDate       string  `json:"order_date"`
	TerritoryID     int     `json:"territory_id"`
	TerritoryName   string  `json:"territory_name"`
	OnlineOrderFlag bool    `json:"online_order_flag"`
	OrderValue      float64 `json:"order_value"`
}

func (h *APIHandlers) HandleCustomerOrders(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	customerID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errors.WriteError(w, h.logger, errors.BadRequest("customer id must be an integer"), requestID)
		return
	}

	limit := defaultOrderLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxOrderLimit {
			errors.WriteError(w, h.logger,
				errors.BadRequest("limit must be an integer between 1 and 200"), requestID)
			return
		}
		limit = parsed
	}

	cache, ok := h.cache(w, r)
	if !ok {
		return
	}

	orders, err := cache.CustomerOrders(customerID, limit)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	response := make([]customerOrderResponse, len(orders))
	for i, order := range orders {
		response[i] = customerOrderResponse{
			SalesOrderID:    order.SalesOrderID,
			OrderDate:       order.OrderDate.Format("2006-01-02"),
			TerritoryID:     order.TerritoryID,
			TerritoryName:   order.TerritoryName,
			OnlineOrderFlag: order.OnlineOrderFlag,
			OrderValue:      round2(order.OrderValue),
		}
	}

	errors.WriteSuccess(w, response)
}

type forecastResponse struct {
	PredictedDaysUntilNextPurchase float64                  `json:"predicted_days_until_next_purchase"`
	ModelMetrics                   any                      `json:"model_metrics"`
	Inputs                         models.PredictionRequest `json:"inputs"`
}

func (h *APIHandlers) HandleForecast(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	var req models.PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "invalid prediction request body"), requestID)
		return
	}

	cache, ok := h.cache(w, r)
	if !ok {
		return
	}

	prediction, err := cache.Predict(req)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	errors.WriteSuccess(w, forecastResponse{
		PredictedDaysUntilNextPurchase: round2(prediction),
		ModelMetrics:                   cache.ModelReport().Metrics,
		Inputs:                         req,
	})
}
