package features

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"payer-analytics/internal/core"
	"payer-analytics/internal/dataset"
)

// SchemaError reports a required column missing from an interim table.
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("table %s is missing required column %s", e.Table, e.Column)
}

// Params are the externally configured knobs the builders depend on.
type Params struct {
	// HighUtilizerPercentile is the claim-count/spend quantile above which a
	// member counts as a high utilizer (e.g. 0.8).
	HighUtilizerPercentile float64
}

// FeatureTable is one task's engineered dataset: one row per prediction
// subject, a fixed feature column order, and an optional label column.
type FeatureTable struct {
	Task     core.Task
	IDColumn string
	Columns  []string
	Label    string // empty for unlabeled tasks

	IDs    []string
	Rows   [][]float64
	Labels []float64 // empty for unlabeled tasks
}

// Documented feature schemas, one per task. The prediction service validates
// requests against these same column lists.
var (
	ChurnFeatures = []string{"female", "chronic_count", "total_claims", "total_spend", "high_util_risk", "dx_variety"}
	CostFeatures  = []string{"female", "chronic_count", "inpatient_claims", "outpatient_claims", "rx_cost", "days_supply"}
	RiskFeatures  = []string{"female", "chronic_count", "dx_variety", "total_claims", "rx_cost"}
	FraudFeatures = []string{"payment_amount", "inpatient", "member_claim_count", "amount_ratio"}
)

// Build constructs the feature table for the given task from the interim
// tables. Builders are pure functions of their inputs and can run in any
// order.
func Build(task core.Task, in *dataset.Interim, params Params) (*FeatureTable, error) {
	switch task {
	case core.TaskChurn:
		return BuildChurn(in, params)
	case core.TaskCost:
		return BuildCost(in)
	case core.TaskRisk:
		return BuildRisk(in, params)
	case core.TaskFraud:
		return BuildFraud(in)
	default:
		return nil, fmt.Errorf("unknown task %q", task)
	}
}

func (ft *FeatureTable) NumRows() int {
	return len(ft.Rows)
}

// Header returns the full column list as written to disk.
func (ft *FeatureTable) Header() []string {
	header := append([]string{ft.IDColumn}, ft.Columns...)
	if ft.Label != "" {
		header = append(header, ft.Label)
	}
	return header
}

func (ft *FeatureTable) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create feature table %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(ft.Header()); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", path, err)
	}

	for i, row := range ft.Rows {
		record := make([]string, 0, len(row)+2)
		record = append(record, ft.IDs[i])
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if ft.Label != "" {
			record = append(record, strconv.FormatFloat(ft.Labels[i], 'f', -1, 64))
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write row to %s: %w", path, err)
		}
	}
	w.Flush()

	return w.Error()
}

// LoadFeatureTable reads a feature table written by WriteCSV and verifies it
// against the task's documented schema.
func LoadFeatureTable(path string, task core.Task) (*FeatureTable, error) {
	table, err := dataset.ReadCSV(path, string(task))
	if err != nil {
		return nil, err
	}

	ft := &FeatureTable{Task: task}
	switch task {
	case core.TaskChurn:
		ft.IDColumn, ft.Columns, ft.Label = "member_id", ChurnFeatures, "churn"
	case core.TaskCost:
		ft.IDColumn, ft.Columns, ft.Label = "member_id", CostFeatures, "total_cost"
	case core.TaskRisk:
		ft.IDColumn, ft.Columns, ft.Label = "member_id", RiskFeatures, "high_risk"
	case core.TaskFraud:
		ft.IDColumn, ft.Columns, ft.Label = "claim_id", FraudFeatures, ""
	default:
		return nil, fmt.Errorf("unknown task %q", task)
	}

	expected := ft.Header()
	if len(table.Columns) != len(expected) {
		return nil, fmt.Errorf("feature table %s has %d columns, expected %d", path, len(table.Columns), len(expected))
	}
	for i, col := range expected {
		if table.Columns[i] != col {
			return nil, &SchemaError{Table: string(task), Column: col}
		}
	}

	for _, row := range table.Rows {
		ft.IDs = append(ft.IDs, row[0])

		values := make([]float64, len(ft.Columns))
		for i := range ft.Columns {
			v, err := strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("feature table %s: invalid value %q in column %s: %w", path, row[i+1], ft.Columns[i], err)
			}
			values[i] = v
		}
		ft.Rows = append(ft.Rows, values)

		if ft.Label != "" {
			label, err := strconv.ParseFloat(row[len(row)-1], 64)
			if err != nil {
				return nil, fmt.Errorf("feature table %s: invalid label %q: %w", path, row[len(row)-1], err)
			}
			ft.Labels = append(ft.Labels, label)
		}
	}

	return ft, nil
}

// column fetches a column from an interim table, reporting a SchemaError if
// the table does not carry it.
func column(t *dataset.Table, name string) (int, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return 0, &SchemaError{Table: t.Name, Column: name}
	}
	return idx, nil
}

func parseFloat(t *dataset.Table, row []string, idx int) (float64, error) {
	v, err := strconv.ParseFloat(row[idx], 64)
	if err != nil {
		return 0, fmt.Errorf("table %s: invalid numeric value %q in column %s", t.Name, row[idx], t.Columns[idx])
	}
	return v, nil
}

// percentile computes the p-quantile with linear interpolation between order
// statistics, matching the convention the original pipeline's quantile used.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}

	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}
