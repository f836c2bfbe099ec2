package features

import (
	"payer-analytics/internal/core"
	"payer-analytics/internal/dataset"
)

// BuildCost produces the cost regression table. The target is the member's
// total claim payments; prescription spend and supply are predictors.
func BuildCost(in *dataset.Interim) (*FeatureTable, error) {
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

	ft := &FeatureTable{
		Task:     core.TaskCost,
		IDColumn: "member_id",
		Columns:  CostFeatures,
		Label:    "total_cost",
	}

	for _, id := range ids {
		demo := demos[id]

		var inpatientClaims, outpatientClaims, totalSpend float64
		if m, ok := claims[id]; ok {
			inpatientClaims = m.inpatientClaims
			outpatientClaims = m.outpatientClaims
			totalSpend = m.totalSpend
		}

		var rxCost, daysSupply float64
		if m, ok := rx[id]; ok {
			rxCost = m.cost
			daysSupply = m.days
		}

		ft.IDs = append(ft.IDs, id)
		ft.Rows = append(ft.Rows, []float64{demo.female, demo.chronicCount, inpatientClaims, outpatientClaims, rxCost, daysSupply})
		ft.Labels = append(ft.Labels, totalSpend)
	}

	return ft, nil
}
