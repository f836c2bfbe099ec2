package features

import (
	"payer-analytics/internal/core"
	"payer-analytics/internal/dataset"
)

// BuildRisk produces the risk scoring table. The label marks members whose
// total claim spend falls above the configured percentile.
func BuildRisk(in *dataset.Interim, params Params) (*FeatureTable, error) {
	ids, demos, err := demographics(in.Beneficiaries)
	if err != nil {
		return nil, err
	}

	claims, err := aggregateClaims(in)
	if err != nil {
		return nil, err
	}

	rx, err := aggregateRx(in.Prescriptions)
	if err != nil {
		return nil, err
	}

	var spends []float64
	for _, m := range claims {
		spends = append(spends, m.totalSpend)
	}
	threshold := percentile(spends, params.HighUtilizerPercentile)

	ft := &FeatureTable{
		Task:     core.TaskRisk,
		IDColumn: "member_id",
		Columns:  RiskFeatures,
		Label:    "high_risk",
	}

	for _, id := range ids {
		demo := demos[id]

		var totalClaims, totalSpend, dxVariety float64
		if m, ok := claims[id]; ok {
			totalClaims = m.totalClaims
			totalSpend = m.totalSpend
			dxVariety = float64(len(m.diagnoses))
		}

		var rxCost float64
		if m, ok := rx[id]; ok {
			rxCost = m.cost
		}

		var highRisk float64
		if totalSpend > threshold {
			highRisk = 1
		}

		ft.IDs = append(ft.IDs, id)
		ft.Rows = append(ft.Rows, []float64{demo.female, demo.chronicCount, dxVariety, totalClaims, rxCost})
		ft.Labels = append(ft.Labels, highRisk)
	}

	return ft, nil
}
