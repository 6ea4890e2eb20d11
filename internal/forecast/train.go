package forecast

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"sales-insights/internal/errors"
	"sales-insights/internal/models"
)

// FeatureColumns is the wire contract for predictions: the order in which
// features were presented to the model at training time.
var FeatureColumns = []string{
	"days_since_prev",
	"order_sequence",
	"total_due",
	"avg_order_value_to_date",
	"tenure_days",
	"territory_id",
	"online_order_flag",
}

type Config struct {
	Trees        int
	MinLeaf      int
	Seed         uint64
	TestFraction float64
}

func DefaultConfig() Config {
	return Config{Trees: 300, MinLeaf: 2, Seed: 42, TestFraction: 0.2}
}

type Metrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// Report describes one training run: the feature contract, held-out metrics,
// and split sizes. It is immutable once written; a new run replaces it.
type Report struct {
	FeatureColumns []string `json:"feature_columns"`
	Metrics        Metrics  `json:"metrics"`
	TrainRows      int      `json:"train_rows"`
	TestRows       int      `json:"test_rows"`
}

// FeatureVector projects a forecast row into FeatureColumns order.
func FeatureVector(row models.ForecastRow) []float64 {
	return []float64{
		row.DaysSincePrev,
		row.OrderSequence,
		row.TotalDue,
		row.AvgOrderValueToDate,
		row.TenureDays,
		row.TerritoryID,
		row.OnlineOrderFlag,
	}
}

// Train fits a bagged-tree regressor for days-until-next-purchase on a
// seeded random 80/20 split and evaluates it on the held-out rows. The same
// seed always produces the same model and the same metrics.
func Train(rows []models.ForecastRow, cfg Config) (*Forest, *Report, error) {
	testCount := int(math.Round(float64(len(rows)) * cfg.TestFraction))
	if testCount < 1 || len(rows)-testCount < 2*cfg.MinLeaf {
		return nil, nil, errors.Computation(fmt.Sprintf(
			"not enough labeled orders to train: %d rows with test fraction %g", len(rows), cfg.TestFraction))
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, 0))

	perm := rng.Perm(len(rows))
	testIdx := perm[:testCount]
	trainIdx := perm[testCount:]

	trainX := make([][]float64, len(trainIdx))
	trainY := make([]float64, len(trainIdx))
	for i, idx := range trainIdx {
		trainX[i] = FeatureVector(rows[idx])
		trainY[i] = rows[idx].DaysUntilNext
	}

	forest := fitForest(trainX, trainY, cfg.Trees, cfg.MinLeaf, rng)

	actual := make([]float64, len(testIdx))
	predicted := make([]float64, len(testIdx))
	for i, idx := range testIdx {
		actual[i] = rows[idx].DaysUntilNext
		predicted[i] = forest.Predict(FeatureVector(rows[idx]))
	}

	report := &Report{
		FeatureColumns: FeatureColumns,
		Metrics:        evaluate(actual, predicted),
		TrainRows:      len(trainIdx),
		TestRows:       len(testIdx),
	}
	return forest, report, nil
}

func evaluate(actual, predicted []float64) Metrics {
	var absSum, sqSum float64
	for i := range actual {
		diff := predicted[i] - actual[i]
		absSum += math.Abs(diff)
		sqSum += diff * diff
	}
	n := float64(len(actual))

	mean := stat.Mean(actual, nil)
	ssTot := 0.0
	for _, v := range actual {
		ssTot += (v - mean) * (v - mean)
	}

	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - sqSum/ssTot
	}
	return Metrics{
		MAE:  absSum / n,
		RMSE: math.Sqrt(sqSum / n),
		R2:   r2,
	}
}
