package server

import (
	"log/slog"
	"net/http"

	"sales-insights/internal/handlers"
	"sales-insights/internal/services"
)

type Server struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
}

func NewServer(provider *services.CacheProvider, logger *slog.Logger) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(provider, logger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// Rollup metrics
	s.mux.HandleFunc("GET /metrics/summary", s.apiHandlers.HandleSummary)
	s.mux.HandleFunc("GET /metrics/monthly", s.apiHandlers.HandleMonthlyRevenue)
	s.mux.HandleFunc("GET /metrics/categories", s.apiHandlers.HandleCategoryRevenue)
	s.mux.HandleFunc("GET /metrics/territories", s.apiHandlers.HandleTerritoryRevenue)

	// Segmentation
	s.mux.HandleFunc("GET /rfm/segments", s.apiHandlers.HandleSegments)
	s.mux.HandleFunc("GET /rfm/customers/{id}", s.apiHandlers.HandleCustomerRFM)

	// Customer history and forecasting
	s.mux.HandleFunc("GET /customers/{id}/orders", s.apiHandlers.HandleCustomerOrders)
	s.mux.HandleFunc("POST /forecast/next-purchase", s.apiHandlers.HandleForecast)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
