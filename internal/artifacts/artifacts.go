// Package artifacts persists and reloads every processed pipeline output:
// gob snapshots for the tabular artifacts, JSON for the operator-facing
// reports, and the serialized forecast model.
package artifacts

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"sales-insights/internal/config"
	"sales-insights/internal/errors"
	"sales-insights/internal/forecast"
	"sales-insights/internal/models"
)

const (
	enrichedFile     = "enriched_sales.gob"
	orderHistoryFile = "order_history.gob"
	monthlyFile      = "monthly_revenue.gob"
	categoryFile     = "category_revenue.gob"
	territoryFile    = "territory_revenue.gob"
	rfmFile          = "rfm_segments.gob"
	summaryFile      = "summary.json"
	rfmSummaryFile   = "rfm_summary.json"
	modelReportFile  = "model_report.json"
	modelFile        = "next_purchase_model.gob"
)

type Store struct {
	processedDir string
	modelsDir    string
}

func NewStore(cfg config.DataConfig) *Store {
	return &Store{processedDir: cfg.ProcessedDir, modelsDir: cfg.ModelsDir}
}

func saveGob(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact %s: %w", path, err)
	}
	defer file.Close()
	return gob.NewEncoder(file).Encode(v)
}

func loadGob(path string, v any) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.MissingDataWrap(err, fmt.Sprintf("processed artifact %s is absent", filepath.Base(path)))
		}
		return fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer file.Close()
	if err := gob.NewDecoder(file).Decode(v); err != nil {
		return fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return nil
}

func saveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.MissingDataWrap(err, fmt.Sprintf("processed artifact %s is absent", filepath.Base(path)))
		}
		return fmt.Errorf("read artifact %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return nil
}

func (s *Store) processed(name string) string {
	return filepath.Join(s.processedDir, name)
}

func (s *Store) SaveEnriched(lines []models.OrderLine) error {
	return saveGob(s.processed(enrichedFile), lines)
}

func (s *Store) LoadEnriched() ([]models.OrderLine, error) {
	var lines []models.OrderLine
	if err := loadGob(s.processed(enrichedFile), &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Store) SaveOrderHistory(orders []models.CustomerOrder) error {
	return saveGob(s.processed(orderHistoryFile), orders)
}

func (s *Store) LoadOrderHistory() ([]models.CustomerOrder, error) {
	var orders []models.CustomerOrder
	if err := loadGob(s.processed(orderHistoryFile), &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) SaveMonthlyRevenue(rollup []models.MonthlyRevenue) error {
	return saveGob(s.processed(monthlyFile), rollup)
}

func (s *Store) LoadMonthlyRevenue() ([]models.MonthlyRevenue, error) {
	var rollup []models.MonthlyRevenue
	if err := loadGob(s.processed(monthlyFile), &rollup); err != nil {
		return nil, err
	}
	return rollup, nil
}

func (s *Store) SaveCategoryRevenue(rollup []models.CategoryRevenue) error {
	return saveGob(s.processed(categoryFile), rollup)
}

func (s *Store) LoadCategoryRevenue() ([]models.CategoryRevenue, error) {
	var rollup []models.CategoryRevenue
	if err := loadGob(s.processed(categoryFile), &rollup); err != nil {
		return nil, err
	}
	return rollup, nil
}

func (s *Store) SaveTerritoryRevenue(rollup []models.TerritoryRevenue) error {
	return saveGob(s.processed(territoryFile), rollup)
}

func (s *Store) LoadTerritoryRevenue() ([]models.TerritoryRevenue, error) {
	var rollup []models.TerritoryRevenue
	if err := loadGob(s.processed(territoryFile), &rollup); err != nil {
		return nil, err
	}
	return rollup, nil
}

func (s *Store) SaveRFM(records []models.RFMRecord) error {
	return saveGob(s.processed(rfmFile), records)
}

func (s *Store) LoadRFM() ([]models.RFMRecord, error) {
	var records []models.RFMRecord
	if err := loadGob(s.processed(rfmFile), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) SaveSummary(summary models.Summary) error {
	return saveJSON(s.processed(summaryFile), summary)
}

func (s *Store) LoadSummary() (models.Summary, error) {
	var summary models.Summary
	err := loadJSON(s.processed(summaryFile), &summary)
	return summary, err
}

func (s *Store) SaveRFMSummary(summary models.RFMSummary) error {
	return saveJSON(s.processed(rfmSummaryFile), summary)
}

func (s *Store) LoadRFMSummary() (models.RFMSummary, error) {
	var summary models.RFMSummary
	err := loadJSON(s.processed(rfmSummaryFile), &summary)
	return summary, err
}

func (s *Store) SaveModelReport(report *forecast.Report) error {
	return saveJSON(s.processed(modelReportFile), report)
}

func (s *Store) LoadModelReport() (*forecast.Report, error) {
	var report forecast.Report
	if err := loadJSON(s.processed(modelReportFile), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Store) SaveModel(model *forecast.Forest) error {
	return saveGob(filepath.Join(s.modelsDir, modelFile), model)
}

func (s *Store) LoadModel() (*forecast.Forest, error) {
	var model forecast.Forest
	if err := loadGob(filepath.Join(s.modelsDir, modelFile), &model); err != nil {
		return nil, err
	}
	return &model, nil
}
