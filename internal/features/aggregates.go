package features

import (
	"payer-analytics/internal/dataset"
)

type memberDemographics struct {
	female       float64
	chronicCount float64
	active2008   bool
	active2009   bool
	active2010   bool
}

type memberClaims struct {
	totalClaims      float64
	inpatientClaims  float64
	outpatientClaims float64
	totalSpend       float64
	diagnoses        map[string]struct{}
}

type memberRx struct {
	cost float64
	days float64
}

// demographics flattens the beneficiaries table into per-member predictors,
// preserving the table's (sorted) member order.
func demographics(t *dataset.Table) ([]string, map[string]*memberDemographics, error) {
	idIdx, err := column(t, "member_id")
	if err != nil {
		return nil, nil, err
	}
	sexIdx, err := column(t, "sex")
	if err != nil {
		return nil, nil, err
	}
	alzIdx, err := column(t, "alzheimers")
	if err != nil {
		return nil, nil, err
	}
	chfIdx, err := column(t, "heart_failure")
	if err != nil {
		return nil, nil, err
	}
	cncrIdx, err := column(t, "cancer")
	if err != nil {
		return nil, nil, err
	}
	a08Idx, err := column(t, "active_2008")
	if err != nil {
		return nil, nil, err
	}
	a09Idx, err := column(t, "active_2009")
	if err != nil {
		return nil, nil, err
	}
	a10Idx, err := column(t, "active_2010")
	if err != nil {
		return nil, nil, err
	}

	ids := make([]string, 0, t.NumRows())
	members := make(map[string]*memberDemographics, t.NumRows())

	for _, row := range t.Rows {
		id := row[idIdx]

		var female float64
		if row[sexIdx] == "2" { // SynPUF sex coding: 1 = male, 2 = female
			female = 1
		}

		var chronic float64
		for _, idx := range []int{alzIdx, chfIdx, cncrIdx} {
			v, err := parseFloat(t, row, idx)
			if err != nil {
				return nil, nil, err
			}
			chronic += v
		}

		ids = append(ids, id)
		members[id] = &memberDemographics{
			female:       female,
			chronicCount: chronic,
			active2008:   row[a08Idx] == "1",
			active2009:   row[a09Idx] == "1",
			active2010:   row[a10Idx] == "1",
		}
	}

	return ids, members, nil
}

// aggregateClaims rolls the claim-level inpatient and outpatient tables up to
// member-level utilization measures.
func aggregateClaims(in *dataset.Interim) (map[string]*memberClaims, error) {
	agg := make(map[string]*memberClaims)

	add := func(t *dataset.Table, inpatient bool) error {
		idIdx, err := column(t, "member_id")
		if err != nil {
			return err
		}
		amtIdx, err := column(t, "payment_amount")
		if err != nil {
			return err
		}
		dxIdx, err := column(t, "primary_diagnosis")
		if err != nil {
			return err
		}

		for _, row := range t.Rows {
			id := row[idIdx]
			m, ok := agg[id]
			if !ok {
				m = &memberClaims{diagnoses: make(map[string]struct{})}
				agg[id] = m
			}

			amount, err := parseFloat(t, row, amtIdx)
			if err != nil {
				return err
			}

			m.totalClaims++
			m.totalSpend += amount
			if inpatient {
				m.inpatientClaims++
			} else {
				m.outpatientClaims++
			}
			if dx := row[dxIdx]; dx != "" {
				m.diagnoses[dx] = struct{}{}
			}
		}
		return nil
	}

	if err := add(in.Inpatient, true); err != nil {
		return nil, err
	}
	if err := add(in.Outpatient, false); err != nil {
		return nil, err
	}

	return agg, nil
}

// aggregateRx rolls prescription events up to member-level cost and supply.
func aggregateRx(t *dataset.Table) (map[string]*memberRx, error) {
	idIdx, err := column(t, "member_id")
	if err != nil {
		return nil, err
	}
	costIdx, err := column(t, "rx_cost")
	if err != nil {
		return nil, err
	}
	daysIdx, err := column(t, "days_supply")
	if err != nil {
		return nil, err
	}

	agg := make(map[string]*memberRx)
	for _, row := range t.Rows {
		id := row[idIdx]
		m, ok := agg[id]
		if !ok {
			m = &memberRx{}
			agg[id] = m
		}

		cost, err := parseFloat(t, row, costIdx)
		if err != nil {
			return nil, err
		}
		days, err := parseFloat(t, row, daysIdx)
		if err != nil {
			return nil, err
		}

		m.cost += cost
		m.days += days
	}

	return agg, nil
}
