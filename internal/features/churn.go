package features

import (
	"payer-analytics/internal/core"
	"payer-analytics/internal/dataset"
)

// BuildChurn produces the churn training table. A member is in scope if they
// were enrolled in 2008 or 2009; the label is 1 when they are absent from the
// 2010 enrollment file.
func BuildChurn(in *dataset.Interim, params Params) (*FeatureTable, error) {
	ids, demos, err := demographics(in.Beneficiaries)
	if err != nil {
		return nil, err
	}

	claims, err := aggregateClaims(in)
	if err != nil {
		return nil, err
	}

	// High-utilizer threshold over members that have at least one claim,
	// using the configured percentile rather than a hardcoded cutoff.
	var claimCounts []float64
	for _, m := range claims {
		claimCounts = append(claimCounts, m.totalClaims)
	}
	threshold := percentile(claimCounts, params.HighUtilizerPercentile)

	ft := &FeatureTable{
		Task:     core.TaskChurn,
		IDColumn: "member_id",
		Columns:  ChurnFeatures,
		Label:    "churn",
	}

	for _, id := range ids {
		demo := demos[id]
		if !demo.active2008 && !demo.active2009 {
			continue
		}

		var totalClaims, totalSpend, dxVariety, highUtil float64
		if m, ok := claims[id]; ok {
			totalClaims = m.totalClaims
			totalSpend = m.totalSpend
			dxVariety = float64(len(m.diagnoses))
			if m.totalClaims > threshold {
				highUtil = 1
			}
		}

		var churn float64
		if !demo.active2010 {
			churn = 1
		}

		ft.IDs = append(ft.IDs, id)
		ft.Rows = append(ft.Rows, []float64{demo.female, demo.chronicCount, totalClaims, totalSpend, highUtil, dxVariety})
		ft.Labels = append(ft.Labels, churn)
	}

	return ft, nil
}
