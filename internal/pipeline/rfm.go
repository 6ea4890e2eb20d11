package pipeline

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"sales-insights/internal/errors"
	"sales-insights/internal/models"
)

type scoreRange struct {
	Low, High int
}

func (r scoreRange) contains(v int) bool {
	return r.Low <= v && v <= r.High
}

// segmentRule names one segment and the inclusive (recency, frequency,
// monetary) score ranges that admit it.
type segmentRule struct {
	Name      string
	Recency   scoreRange
	Frequency scoreRange
	Monetary  scoreRange
}

// segmentRules is a priority list, not a partition: ranges overlap and the
// first matching rule wins.
var segmentRules = []segmentRule{
	{"Champions", scoreRange{4, 5}, scoreRange{4, 5}, scoreRange{4, 5}},
	{"Loyal", scoreRange{2, 5}, scoreRange{3, 5}, scoreRange{3, 5}},
	{"Potential Loyalist", scoreRange{3, 5}, scoreRange{2, 4}, scoreRange{2, 4}},
	{"Need Attention", scoreRange{2, 3}, scoreRange{2, 3}, scoreRange{2, 3}},
	{"At Risk", scoreRange{1, 2}, scoreRange{3, 5}, scoreRange{3, 5}},
	{"Hibernating", scoreRange{1, 2}, scoreRange{1, 2}, scoreRange{1, 2}},
}

const fallbackSegment = "Others"

func labelSegment(recency, frequency, monetary int) string {
	for _, rule := range segmentRules {
		if rule.Recency.contains(recency) && rule.Frequency.contains(frequency) && rule.Monetary.contains(monetary) {
			return rule.Name
		}
	}
	return fallbackSegment
}

// quintileScores buckets values into 5 equal-population bins and maps each
// bin to the corresponding label. Bin edges come from linear-interpolated
// quantiles, so repeated values can collapse edges; that degenerate case is
// reported as a computation error naming the metric.
func quintileScores(metric string, values []float64, labels [5]int) ([]int, error) {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var edges [6]float64
	for i := 0; i <= 5; i++ {
		edges[i] = stat.Quantile(float64(i)/5, stat.LinInterp, sorted, nil)
	}
	for i := 1; i < 5; i++ {
		if edges[i] <= edges[i-1] {
			return nil, errors.Computation(fmt.Sprintf(
				"cannot form 5 distinct quantile bins for %s: too few distinct values", metric))
		}
	}

	scores := make([]int, len(values))
	for i, v := range values {
		bucket := 0
		for j := 1; j < 5; j++ {
			if v > edges[j] {
				bucket = j
			}
		}
		scores[i] = labels[bucket]
	}
	return scores, nil
}

// firstSeenRanks assigns 1-based ranks ordered by value, breaking ties by
// position in the slice. Tied customers therefore rank in ascending id
// order, since callers pass values sorted by customer id.
func firstSeenRanks(values []float64) []float64 {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if values[a] != values[b] {
			if values[a] < values[b] {
				return -1
			}
			return 1
		}
		return a - b
	})

	ranks := make([]float64, len(values))
	for rank, idx := range order {
		ranks[idx] = float64(rank + 1)
	}
	return ranks
}

// ComputeRFM scores every customer with at least one order line. The
// snapshot date is one day past the newest order so recency is always >= 1.
func ComputeRFM(lines []models.OrderLine) ([]models.RFMRecord, error) {
	if len(lines) == 0 {
		return nil, errors.Computation("cannot score RFM: no order lines")
	}

	type customerAgg struct {
		lastOrder time.Time
		orders    map[int]struct{}
		monetary  float64
	}

	var maxDate time.Time
	byCustomer := make(map[int]*customerAgg)
	for _, line := range lines {
		// Lines whose header never resolved carry no customer id and are
		// not scored.
		if line.CustomerID == 0 {
			continue
		}
		agg, ok := byCustomer[line.CustomerID]
		if !ok {
			agg = &customerAgg{orders: make(map[int]struct{})}
			byCustomer[line.CustomerID] = agg
		}
		agg.orders[line.SalesOrderID] = struct{}{}
		agg.monetary += line.LineTotal
		if line.OrderDate.After(agg.lastOrder) {
			agg.lastOrder = line.OrderDate
		}
		if line.OrderDate.After(maxDate) {
			maxDate = line.OrderDate
		}
	}

	if len(byCustomer) < 5 {
		return nil, errors.Computation(fmt.Sprintf(
			"cannot form quintile scores with %d customers; at least 5 are required", len(byCustomer)))
	}

	snapshot := maxDate.Add(24 * time.Hour)

	customerIDs := make([]int, 0, len(byCustomer))
	for id := range byCustomer {
		customerIDs = append(customerIDs, id)
	}
	slices.Sort(customerIDs)

	records := make([]models.RFMRecord, len(customerIDs))
	recency := make([]float64, len(customerIDs))
	frequency := make([]float64, len(customerIDs))
	monetary := make([]float64, len(customerIDs))
	for i, id := range customerIDs {
		agg := byCustomer[id]
		days := int(snapshot.Sub(agg.lastOrder).Hours() / 24)
		records[i] = models.RFMRecord{
			CustomerID: id,
			LastOrder:  agg.lastOrder,
			Frequency:  len(agg.orders),
			Monetary:   agg.monetary,
			Recency:    days,
		}
		recency[i] = float64(days)
		frequency[i] = float64(len(agg.orders))
		monetary[i] = agg.monetary
	}

	// Smaller recency means a better customer, so recency bins map to
	// descending labels. Frequency is binned on first-seen ranks because its
	// raw values repeat heavily.
	recencyScores, err := quintileScores("recency", recency, [5]int{5, 4, 3, 2, 1})
	if err != nil {
		return nil, err
	}
	frequencyScores, err := quintileScores("frequency", firstSeenRanks(frequency), [5]int{1, 2, 3, 4, 5})
	if err != nil {
		return nil, err
	}
	monetaryScores, err := quintileScores("monetary", monetary, [5]int{1, 2, 3, 4, 5})
	if err != nil {
		return nil, err
	}

	for i := range records {
		records[i].RecencyScore = recencyScores[i]
		records[i].FrequencyScore = frequencyScores[i]
		records[i].MonetaryScore = monetaryScores[i]
		records[i].Segment = labelSegment(recencyScores[i], frequencyScores[i], monetaryScores[i])
	}
	return records, nil
}

// SummarizeSegments counts customers per segment, descending.
func SummarizeSegments(records []models.RFMRecord) models.RFMSummary {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Segment]++
	}

	segments := make([]models.SegmentCount, 0, len(counts))
	for segment, count := range counts {
		segments = append(segments, models.SegmentCount{Segment: segment, CustomerCount: count})
	}
	slices.SortFunc(segments, func(a, b models.SegmentCount) int {
		if a.CustomerCount != b.CustomerCount {
			return b.CustomerCount - a.CustomerCount
		}
		return strings.Compare(a.Segment, b.Segment)
	})
	return models.RFMSummary{Segments: segments, GeneratedRows: len(records)}
}
