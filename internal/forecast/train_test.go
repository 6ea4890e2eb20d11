package forecast

import (
	"math"
	"reflect"
	"testing"
	"time"

	"sales-insights/internal/errors"
	"sales-insights/internal/models"
)

// syntheticRows builds training rows where the label is a simple function of
// days_since_prev, so a tree ensemble can recover it.
func syntheticRows(n int) []models.ForecastRow {
	rows := make([]models.ForecastRow, n)
	for i := range rows {
		gap := float64(5 + (i%10)*7)
		rows[i] = models.ForecastRow{
			CustomerID:          i % 12,
			OrderDate:           time.Date(2023, 1, 1+i%28, 0, 0, 0, 0, time.UTC),
			OrderSequence:       float64(1 + i%6),
			DaysSincePrev:       gap,
			TotalDue:            float64(50 + i%40),
			AvgOrderValueToDate: float64(60 + i%25),
			TenureDays:          float64(i % 300),
			TerritoryID:         float64(i%10 - 1),
			OnlineOrderFlag:     float64(i % 2),
			DaysUntilNext:       gap,
		}
	}
	return rows
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Trees = 25
	return cfg
}

func TestTrain_ReportContract(t *testing.T) {
	model, report, err := Train(syntheticRows(80), testConfig())
	if err != nil {
		t.Fatalf("Train() error: %v", err)
	}

	if !reflect.DeepEqual(report.FeatureColumns, FeatureColumns) {
		t.Errorf("report feature columns = %v, want %v", report.FeatureColumns, FeatureColumns)
	}
	if model.NumFeatures != len(FeatureColumns) {
		t.Errorf("model features = %d, want %d", model.NumFeatures, len(FeatureColumns))
	}
	if report.TrainRows+report.TestRows != 80 {
		t.Errorf("split sizes %d+%d do not cover 80 rows", report.TrainRows, report.TestRows)
	}
	if report.TestRows != 16 {
		t.Errorf("test rows = %d, want 16 (20%% held out)", report.TestRows)
	}

	for name, v := range map[string]float64{
		"mae":  report.Metrics.MAE,
		"rmse": report.Metrics.RMSE,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			t.Errorf("%s = %v, want finite non-negative", name, v)
		}
	}
	if report.Metrics.RMSE < report.Metrics.MAE {
		t.Errorf("rmse %v < mae %v", report.Metrics.RMSE, report.Metrics.MAE)
	}
}

func TestTrain_LearnsLabel(t *testing.T) {
	model, report, err := Train(syntheticRows(120), testConfig())
	if err != nil {
		t.Fatalf("Train() error: %v", err)
	}

	// The label equals days_since_prev; the ensemble should be far better
	// than guessing the mean.
	if report.Metrics.R2 < 0.5 {
		t.Errorf("r2 = %v, want > 0.5 on a learnable label", report.Metrics.R2)
	}

	probe := syntheticRows(1)[0]
	prediction := model.Predict(FeatureVector(probe))
	if math.Abs(prediction-probe.DaysUntilNext) > 20 {
		t.Errorf("prediction %v too far from label %v", prediction, probe.DaysUntilNext)
	}
}

func TestTrain_Deterministic(t *testing.T) {
	first, firstReport, err := Train(syntheticRows(80), testConfig())
	if err != nil {
		t.Fatalf("Train() error: %v", err)
	}
	second, secondReport, err := Train(syntheticRows(80), testConfig())
	if err != nil {
		t.Fatalf("Train() error: %v", err)
	}

	if firstReport.Metrics != secondReport.Metrics {
		t.Errorf("same seed produced different metrics: %+v vs %+v",
			firstReport.Metrics, secondReport.Metrics)
	}
	probe := FeatureVector(syntheticRows(3)[2])
	if first.Predict(probe) != second.Predict(probe) {
		t.Error("same seed produced different predictions")
	}
}

func TestTrain_TooFewRows(t *testing.T) {
	_, _, err := Train(syntheticRows(3), testConfig())
	if err == nil {
		t.Fatal("Train() should fail with too few labeled rows")
	}
	if !errors.HasCode(err, errors.CodeComputation) {
		t.Errorf("error = %v, want COMPUTATION_ERROR", err)
	}
}

func TestFitTree_SplitsSeparableData(t *testing.T) {
	x := make([][]float64, 10)
	y := make([]float64, 10)
	samples := make([]int, 10)
	for i := range x {
		x[i] = []float64{float64(i)}
		if i >= 5 {
			y[i] = 10
		}
		samples[i] = i
	}

	tree := fitTree(x, y, samples, 1)

	if got := tree.Predict([]float64{2}); got != 0 {
		t.Errorf("predict(2) = %v, want 0", got)
	}
	if got := tree.Predict([]float64{8}); got != 10 {
		t.Errorf("predict(8) = %v, want 10", got)
	}
}
