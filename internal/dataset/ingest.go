package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/schollz/progressbar/v3"
)

// Raw CMS DE-SynPUF source files expected under the raw data directory.
const (
	RawBeneficiary2008 = "Beneficiary_2008.csv"
	RawBeneficiary2009 = "Beneficiary_2009.csv"
	RawBeneficiary2010 = "Beneficiary_2010.csv"
	RawInpatient       = "Inpatient_Claims.csv"
	RawOutpatient      = "Outpatient_Claims.csv"
	RawPrescriptions   = "Prescriptions.csv"
)

// Interim table files produced by ingestion.
const (
	BeneficiariesTable = "beneficiaries.csv"
	InpatientTable     = "inpatient_claims.csv"
	OutpatientTable    = "outpatient_claims.csv"
	PrescriptionsTable = "prescriptions.csv"
)

// IngestionError reports a missing or malformed raw source file.
type IngestionError struct {
	File string
	Err  error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed for %s: %v", e.File, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// Interim holds the four cleaned tables shared by every feature builder.
type Interim struct {
	Beneficiaries *Table
	Inpatient     *Table
	Outpatient    *Table
	Prescriptions *Table
}

type beneficiaryRecord struct {
	sex, race                          string
	alzheimers, heartFailure, cancer   string
	active2008, active2009, active2010 bool
}

// Ingest reads the raw CMS files from rawDir and produces the interim tables.
// The result is deterministic for identical raw input: beneficiary years are
// merged with first-seen demographics and every table is sorted by id.
func Ingest(rawDir string) (*Interim, error) {
	bar := progressbar.NewOptions(6,
		progressbar.OptionSetDescription("ingesting raw files"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)

	members := make(map[string]*beneficiaryRecord)
	var memberOrder []string

	beneficiaryFiles := []struct {
		file string
		year int
	}{
		{RawBeneficiary2008, 2008},
		{RawBeneficiary2009, 2009},
		{RawBeneficiary2010, 2010},
	}

	for _, bf := range beneficiaryFiles {
		if err := readBeneficiaryFile(filepath.Join(rawDir, bf.file), bf.year, members, &memberOrder); err != nil {
			return nil, err
		}
		bar.Add(1) //nolint:errcheck
	}

	beneficiaries := NewTable("beneficiaries",
		"member_id", "sex", "race", "alzheimers", "heart_failure", "cancer",
		"active_2008", "active_2009", "active_2010")
	for _, id := range memberOrder {
		m := members[id]
		if err := beneficiaries.AppendRow(id, m.sex, m.race, m.alzheimers, m.heartFailure, m.cancer,
			boolFlag(m.active2008), boolFlag(m.active2009), boolFlag(m.active2010)); err != nil {
			return nil, &IngestionError{File: BeneficiariesTable, Err: err}
		}
	}
	beneficiaries.SortRows()

	inpatient, err := readClaimsFile(filepath.Join(rawDir, RawInpatient), "inpatient_claims")
	if err != nil {
		return nil, err
	}
	bar.Add(1) //nolint:errcheck

	outpatient, err := readClaimsFile(filepath.Join(rawDir, RawOutpatient), "outpatient_claims")
	if err != nil {
		return nil, err
	}
	bar.Add(1) //nolint:errcheck

	prescriptions, err := readPrescriptionsFile(filepath.Join(rawDir, RawPrescriptions))
	if err != nil {
		return nil, err
	}
	bar.Add(1) //nolint:errcheck

	slog.Info("ingestion complete",
		"beneficiaries", beneficiaries.NumRows(),
		"inpatient_claims", inpatient.NumRows(),
		"outpatient_claims", outpatient.NumRows(),
		"prescriptions", prescriptions.NumRows())

	return &Interim{
		Beneficiaries: beneficiaries,
		Inpatient:     inpatient,
		Outpatient:    outpatient,
		Prescriptions: prescriptions,
	}, nil
}

// WriteInterim writes all four interim tables under dir.
func (in *Interim) Write(dir string) error {
	tables := map[string]*Table{
		BeneficiariesTable: in.Beneficiaries,
		InpatientTable:     in.Inpatient,
		OutpatientTable:    in.Outpatient,
		PrescriptionsTable: in.Prescriptions,
	}
	for file, table := range tables {
		if err := table.WriteCSV(filepath.Join(dir, file)); err != nil {
			return err
		}
	}
	return nil
}

// LoadInterim reads previously written interim tables from dir.
func LoadInterim(dir string) (*Interim, error) {
	load := func(file, name string) (*Table, error) {
		table, err := ReadCSV(filepath.Join(dir, file), name)
		if err != nil {
			return nil, &IngestionError{File: file, Err: err}
		}
		return table, nil
	}

	beneficiaries, err := load(BeneficiariesTable, "beneficiaries")
	if err != nil {
		return nil, err
	}
	inpatient, err := load(InpatientTable, "inpatient_claims")
	if err != nil {
		return nil, err
	}
	outpatient, err := load(OutpatientTable, "outpatient_claims")
	if err != nil {
		return nil, err
	}
	prescriptions, err := load(PrescriptionsTable, "prescriptions")
	if err != nil {
		return nil, err
	}

	return &Interim{
		Beneficiaries: beneficiaries,
		Inpatient:     inpatient,
		Outpatient:    outpatient,
		Prescriptions: prescriptions,
	}, nil
}

func openRawCSV(path string) (*os.File, *csv.Reader, map[string]int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, &IngestionError{File: filepath.Base(path), Err: err}
	}

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1 // CMS extracts vary in trailing columns

	header, err := r.Read()
	if err != nil {
		file.Close()
		return nil, nil, nil, &IngestionError{File: filepath.Base(path), Err: fmt.Errorf("failed to read header: %w", err)}
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[col] = i
	}

	return file, r, index, nil
}

func requireColumns(file string, index map[string]int, columns ...string) error {
	for _, col := range columns {
		if _, ok := index[col]; !ok {
			return &IngestionError{File: file, Err: fmt.Errorf("missing required column %s", col)}
		}
	}
	return nil
}

func readBeneficiaryFile(path string, year int, members map[string]*beneficiaryRecord, order *[]string) error {
	name := filepath.Base(path)

	file, r, index, err := openRawCSV(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := requireColumns(name, index,
		"DESYNPUF_ID", "BENE_SEX_IDENT_CD", "BENE_RACE_CD", "SP_ALZHDMTA", "SP_CHF", "SP_CNCR"); err != nil {
		return err
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &IngestionError{File: name, Err: err}
		}

		id := row[index["DESYNPUF_ID"]]
		if id == "" {
			return &IngestionError{File: name, Err: fmt.Errorf("row with empty DESYNPUF_ID")}
		}

		m, seen := members[id]
		if !seen {
			m = &beneficiaryRecord{
				sex:          row[index["BENE_SEX_IDENT_CD"]],
				race:         row[index["BENE_RACE_CD"]],
				alzheimers:   chronicFlag(row[index["SP_ALZHDMTA"]]),
				heartFailure: chronicFlag(row[index["SP_CHF"]]),
				cancer:       chronicFlag(row[index["SP_CNCR"]]),
			}
			members[id] = m
			*order = append(*order, id)
		}

		switch year {
		case 2008:
			m.active2008 = true
		case 2009:
			m.active2009 = true
		case 2010:
			m.active2010 = true
		}
	}

	return nil
}

func readClaimsFile(path, tableName string) (*Table, error) {
	name := filepath.Base(path)

	file, r, index, err := openRawCSV(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := requireColumns(name, index, "DESYNPUF_ID", "CLM_ID", "CLM_PMT_AMT", "ICD9_DGNS_CD_1"); err != nil {
		return nil, err
	}

	table := NewTable(tableName, "claim_id", "member_id", "payment_amount", "primary_diagnosis")
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &IngestionError{File: name, Err: err}
		}

		amount, err := parseAmount(row[index["CLM_PMT_AMT"]])
		if err != nil {
			return nil, &IngestionError{File: name, Err: fmt.Errorf("claim %s: %w", row[index["CLM_ID"]], err)}
		}

		if err := table.AppendRow(
			row[index["CLM_ID"]],
			row[index["DESYNPUF_ID"]],
			amount,
			row[index["ICD9_DGNS_CD_1"]],
		); err != nil {
			return nil, &IngestionError{File: name, Err: err}
		}
	}
	table.SortRows()

	return table, nil
}

func readPrescriptionsFile(path string) (*Table, error) {
	name := filepath.Base(path)

	file, r, index, err := openRawCSV(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := requireColumns(name, index, "DESYNPUF_ID", "PDE_ID", "TOT_RX_CST_AMT", "DAYS_SUPLY_NUM"); err != nil {
		return nil, err
	}

	table := NewTable("prescriptions", "event_id", "member_id", "rx_cost", "days_supply")
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &IngestionError{File: name, Err: err}
		}

		cost, err := parseAmount(row[index["TOT_RX_CST_AMT"]])
		if err != nil {
			return nil, &IngestionError{File: name, Err: fmt.Errorf("event %s: %w", row[index["PDE_ID"]], err)}
		}
		days, err := parseAmount(row[index["DAYS_SUPLY_NUM"]])
		if err != nil {
			return nil, &IngestionError{File: name, Err: fmt.Errorf("event %s: %w", row[index["PDE_ID"]], err)}
		}

		if err := table.AppendRow(
			row[index["PDE_ID"]],
			row[index["DESYNPUF_ID"]],
			cost,
			days,
		); err != nil {
			return nil, &IngestionError{File: name, Err: err}
		}
	}
	table.SortRows()

	return table, nil
}

// chronicFlag maps the SynPUF chronic condition coding (1 = present, 2 =
// absent) onto a 0/1 indicator.
func chronicFlag(code string) string {
	if code == "1" {
		return "1"
	}
	return "0"
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// parseAmount canonicalizes a numeric field so the interim representation is
// stable regardless of raw formatting ("10.50" and "10.5" both become "10.5").
func parseAmount(value string) (string, error) {
	if value == "" {
		return "0", nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return "", fmt.Errorf("invalid numeric value %q", value)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}
