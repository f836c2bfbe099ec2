package dataset_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"payer-analytics/internal/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// writeRawFiles produces a small but complete set of raw source files:
// three members, two of whom drop out of the 2010 enrollment.
func writeRawFiles(t *testing.T, dir string) {
	t.Helper()

	writeFile(t, dir, dataset.RawBeneficiary2008,
		"DESYNPUF_ID,BENE_SEX_IDENT_CD,BENE_RACE_CD,SP_ALZHDMTA,SP_CHF,SP_CNCR\n"+
			"M001,2,1,1,2,2\n"+
			"M002,1,1,2,1,2\n"+
			"M003,1,2,2,2,2\n")
	// M001 reappears with a different sex code; first-seen demographics win.
	writeFile(t, dir, dataset.RawBeneficiary2009,
		"DESYNPUF_ID,BENE_SEX_IDENT_CD,BENE_RACE_CD,SP_ALZHDMTA,SP_CHF,SP_CNCR\n"+
			"M001,1,1,1,2,2\n"+
			"M002,1,1,2,1,2\n")
	writeFile(t, dir, dataset.RawBeneficiary2010,
		"DESYNPUF_ID,BENE_SEX_IDENT_CD,BENE_RACE_CD,SP_ALZHDMTA,SP_CHF,SP_CNCR\n"+
			"M001,2,1,1,2,2\n")

	writeFile(t, dir, dataset.RawInpatient,
		"DESYNPUF_ID,CLM_ID,CLM_PMT_AMT,ICD9_DGNS_CD_1\n"+
			"M001,C100,1000.50,25000\n"+
			"M002,C200,200,4019\n")
	writeFile(t, dir, dataset.RawOutpatient,
		"DESYNPUF_ID,CLM_ID,CLM_PMT_AMT,ICD9_DGNS_CD_1\n"+
			"M001,C300,50.50,25000\n"+
			"M001,C301,75,V700\n")
	writeFile(t, dir, dataset.RawPrescriptions,
		"DESYNPUF_ID,PDE_ID,TOT_RX_CST_AMT,DAYS_SUPLY_NUM\n"+
			"M001,P100,30.5,30\n"+
			"M002,P200,10,15\n")
}

func TestIngestDeterminism(t *testing.T) {
	rawDir := t.TempDir()
	writeRawFiles(t, rawDir)

	dir1, dir2 := t.TempDir(), t.TempDir()

	for _, dir := range []string{dir1, dir2} {
		interim, err := dataset.Ingest(rawDir)
		require.NoError(t, err)
		require.NoError(t, interim.Write(dir))
	}

	files := []string{
		dataset.BeneficiariesTable,
		dataset.InpatientTable,
		dataset.OutpatientTable,
		dataset.PrescriptionsTable,
	}
	for _, file := range files {
		first, err := os.ReadFile(filepath.Join(dir1, file))
		require.NoError(t, err)
		second, err := os.ReadFile(filepath.Join(dir2, file))
		require.NoError(t, err)
		assert.Equal(t, first, second, "interim table %s differs between runs", file)
	}
}

func TestIngestMissingSourceFile(t *testing.T) {
	rawDir := t.TempDir()
	writeRawFiles(t, rawDir)
	require.NoError(t, os.Remove(filepath.Join(rawDir, dataset.RawPrescriptions)))

	_, err := dataset.Ingest(rawDir)
	require.Error(t, err)

	var ingErr *dataset.IngestionError
	require.ErrorAs(t, err, &ingErr)
	assert.Equal(t, dataset.RawPrescriptions, ingErr.File)
}

func TestIngestMissingColumn(t *testing.T) {
	rawDir := t.TempDir()
	writeRawFiles(t, rawDir)
	writeFile(t, rawDir, dataset.RawInpatient,
		"DESYNPUF_ID,CLM_ID,ICD9_DGNS_CD_1\nM001,C100,25000\n")

	_, err := dataset.Ingest(rawDir)
	require.Error(t, err)

	var ingErr *dataset.IngestionError
	require.ErrorAs(t, err, &ingErr)
	assert.Equal(t, dataset.RawInpatient, ingErr.File)
	assert.Contains(t, ingErr.Error(), "CLM_PMT_AMT")
}

func TestIngestMergesBeneficiaryYears(t *testing.T) {
	rawDir := t.TempDir()
	writeRawFiles(t, rawDir)

	interim, err := dataset.Ingest(rawDir)
	require.NoError(t, err)

	b := interim.Beneficiaries
	require.Equal(t, 3, b.NumRows())

	get := func(row []string, col string) string {
		idx := b.ColumnIndex(col)
		require.GreaterOrEqual(t, idx, 0, "missing column %s", col)
		return row[idx]
	}

	// Rows are sorted by member id.
	m001, m002, m003 := b.Rows[0], b.Rows[1], b.Rows[2]

	assert.Equal(t, "M001", get(m001, "member_id"))
	assert.Equal(t, "2", get(m001, "sex"), "first-seen demographics should win")
	assert.Equal(t, "1", get(m001, "alzheimers"))
	assert.Equal(t, "0", get(m001, "heart_failure"), "condition code 2 means absent")
	assert.Equal(t, "1", get(m001, "active_2008"))
	assert.Equal(t, "1", get(m001, "active_2009"))
	assert.Equal(t, "1", get(m001, "active_2010"))

	assert.Equal(t, "1", get(m002, "active_2009"))
	assert.Equal(t, "0", get(m002, "active_2010"))

	assert.Equal(t, "1", get(m003, "active_2008"))
	assert.Equal(t, "0", get(m003, "active_2009"))
	assert.Equal(t, "0", get(m003, "active_2010"))
}

func TestIngestCanonicalizesAmounts(t *testing.T) {
	rawDir := t.TempDir()
	writeRawFiles(t, rawDir)

	interim, err := dataset.Ingest(rawDir)
	require.NoError(t, err)

	in := interim.Inpatient
	amtIdx := in.ColumnIndex("payment_amount")
	require.GreaterOrEqual(t, amtIdx, 0)

	assert.Equal(t, "1000.5", in.Rows[0][amtIdx], "trailing zero should be dropped")
	assert.Equal(t, "200", in.Rows[1][amtIdx])
}

func TestInterimRoundTrip(t *testing.T) {
	rawDir := t.TempDir()
	writeRawFiles(t, rawDir)

	interim, err := dataset.Ingest(rawDir)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, interim.Write(dir))

	loaded, err := dataset.LoadInterim(dir)
	require.NoError(t, err)

	assert.Equal(t, interim.Beneficiaries, loaded.Beneficiaries)
	assert.Equal(t, interim.Inpatient, loaded.Inpatient)
	assert.Equal(t, interim.Outpatient, loaded.Outpatient)
	assert.Equal(t, interim.Prescriptions, loaded.Prescriptions)
}

func TestLoadInterimMissingTable(t *testing.T) {
	_, err := dataset.LoadInterim(t.TempDir())
	require.Error(t, err)

	var ingErr *dataset.IngestionError
	assert.True(t, errors.As(err, &ingErr))
}
