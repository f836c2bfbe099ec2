package features

import (
	"payer-analytics/internal/core"
	"payer-analytics/internal/dataset"
)

// BuildFraud produces the per-claim anomaly table. There is no fraud label in
// the source data, so the table is unlabeled and scored by the anomaly
// detector at training time.
func BuildFraud(in *dataset.Interim) (*FeatureTable, error) {
	claims, err := aggregateClaims(in)
	if err != nil {
		return nil, err
	}

	ft := &FeatureTable{
		Task:     core.TaskFraud,
		IDColumn: "claim_id",
		Columns:  FraudFeatures,
	}

	add := func(t *dataset.Table, inpatient float64) error {
		claimIdx, err := column(t, "claim_id")
		if err != nil {
			return err
		}
		memberIdx, err := column(t, "member_id")
		if err != nil {
			return err
		}
		amtIdx, err := column(t, "payment_amount")
		if err != nil {
			return err
		}

		for _, row := range t.Rows {
			amount, err := parseFloat(t, row, amtIdx)
			if err != nil {
				return err
			}

			member := claims[row[memberIdx]]
			memberCount := member.totalClaims

			// Payment relative to the member's own average claim; 1 means
			// "typical for this member".
			ratio := 1.0
			if memberCount > 0 && member.totalSpend != 0 {
				ratio = amount / (member.totalSpend / memberCount)
			}

			ft.IDs = append(ft.IDs, row[claimIdx])
			ft.Rows = append(ft.Rows, []float64{amount, inpatient, memberCount, ratio})
		}
		return nil
	}

	if err := add(in.Inpatient, 1); err != nil {
		return nil, err
	}
	if err := add(in.Outpatient, 0); err != nil {
		return nil, err
	}

	return ft, nil
}
