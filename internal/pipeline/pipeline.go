// Package pipeline turns the raw relational sales extracts into the
// denormalized fact table, rollup metrics, RFM segmentation, and the trained
// next-purchase model. Stages run strictly in order and the whole run either
// completes or aborts; there is no partial checkpointing.
package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"sales-insights/internal/artifacts"
	"sales-insights/internal/forecast"
	"sales-insights/internal/observability"
	"sales-insights/internal/store"
)

type Pipeline struct {
	loader    *store.Loader
	artifacts *artifacts.Store
	modelCfg  forecast.Config
	logger    *slog.Logger
}

func New(loader *store.Loader, artifactStore *artifacts.Store, modelCfg forecast.Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		loader:    loader,
		artifacts: artifactStore,
		modelCfg:  modelCfg,
		logger:    logger,
	}
}

// Run executes the full batch: load, enrich, aggregate, score, train,
// persist. Any stage failure aborts the run and nothing downstream is
// written.
func (p *Pipeline) Run(ctx context.Context) error {
	start := time.Now()

	ctx, span := observability.StartSpan(ctx, "pipeline.run")
	defer span.Finish()

	core, err := p.loader.LoadSalesCore(ctx)
	if err != nil {
		span.SetError(err)
		return err
	}
	p.logger.Info("source tables loaded",
		"order_headers", len(core.Headers),
		"order_details", len(core.Details),
	)

	lines := Enrich(core)
	span.SetTag("fact_rows", strconv.Itoa(len(lines)))
	p.logger.Info("fact table enriched", "rows", len(lines))

	monthly := MonthlyRevenue(lines)
	category := CategoryRevenue(lines)
	territory := TerritoryRevenue(lines)
	summary := Summarize(lines)
	p.logger.Info("rollups aggregated",
		"months", len(monthly),
		"categories", len(category),
		"territories", len(territory),
	)

	rfm, err := ComputeRFM(lines)
	if err != nil {
		span.SetError(err)
		return err
	}
	rfmSummary := SummarizeSegments(rfm)
	p.logger.Info("customers scored", "customers", len(rfm))

	orders := BuildOrders(lines)
	rows := BuildForecastRows(orders)
	model, report, err := forecast.Train(rows, p.modelCfg)
	if err != nil {
		span.SetError(err)
		return err
	}
	p.logger.Info("forecast model trained",
		"train_rows", report.TrainRows,
		"test_rows", report.TestRows,
		"mae", report.Metrics.MAE,
		"rmse", report.Metrics.RMSE,
		"r2", report.Metrics.R2,
	)

	history := OrderHistory(lines)

	saves := []func() error{
		func() error { return p.artifacts.SaveEnriched(lines) },
		func() error { return p.artifacts.SaveOrderHistory(history) },
		func() error { return p.artifacts.SaveMonthlyRevenue(monthly) },
		func() error { return p.artifacts.SaveCategoryRevenue(category) },
		func() error { return p.artifacts.SaveTerritoryRevenue(territory) },
		func() error { return p.artifacts.SaveSummary(summary) },
		func() error { return p.artifacts.SaveRFM(rfm) },
		func() error { return p.artifacts.SaveRFMSummary(rfmSummary) },
		func() error { return p.artifacts.SaveModelReport(report) },
		func() error { return p.artifacts.SaveModel(model) },
	}
	for _, save := range saves {
		if err := save(); err != nil {
			span.SetError(err)
			return err
		}
	}

	p.logger.Info("pipeline run complete", "duration", time.Since(start))
	return nil
}
