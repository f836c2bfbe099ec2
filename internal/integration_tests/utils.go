package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"payer-analytics/internal/database"
	"payer-analytics/internal/dataset"
	"payer-analytics/internal/messaging"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/minio"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

const (
	minioUsername = "admin"
	minioPassword = "password"
)

func setupMinioContainer(t *testing.T, ctx context.Context) string {
	minioContainer, err := minio.Run(
		ctx,
		"minio/minio:RELEASE.2024-01-16T16-07-38Z",
		minio.WithUsername(minioUsername),
		minio.WithPassword(minioPassword),
	)
	require.NoError(t, err, "Failed to start MinIO container")

	t.Cleanup(func() {
		err := minioContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate MinIO container")
	})

	connStr, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get MinIO connection string")

	return "http://" + connStr
}

func setupPostgresContainer(t *testing.T, ctx context.Context) string {
	dbName, dbUser, dbPassword := "test_db", "test_user", "test_password"

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	t.Cleanup(func() {
		err := postgresContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate PostgreSQL container")
	})

	connStr, err := postgresContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get PostgreSQL connection string")

	return connStr
}

func setupRabbitMQContainer(t *testing.T, ctx context.Context) (messaging.Publisher, messaging.Receiver) {
	rabbitmqContainer, err := rabbitmq.Run(ctx, "rabbitmq:3.12.11-management-alpine")
	require.NoError(t, err, "Failed to start RabbitMQ container")

	t.Cleanup(func() {
		err := rabbitmqContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate RabbitMQ container")
	})

	connStr, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err, "Failed to get RabbitMQ AMQP URL")

	publisher, err := messaging.NewRabbitMQPublisher(connStr)
	require.NoError(t, err, "Failed to create publisher")
	t.Cleanup(publisher.Close)

	receiver, err := messaging.NewRabbitMQReceiver(connStr)
	require.NoError(t, err, "Failed to create receiver")

	return publisher, receiver
}

func createDB(t *testing.T) *gorm.DB {
	uri := setupPostgresContainer(t, context.Background())
	db, err := database.NewDatabase(uri)
	require.NoError(t, err)

	return db
}

func httpRequest(api http.Handler, method, endpoint string, payload any, dest any) error {
	var body io.Reader
	if payload != nil {
		requestBody, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(requestBody)
	}

	req := httptest.NewRequest(method, endpoint, body)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	api.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		return fmt.Errorf("expected status code 200, got %d: %v", rr.Code, rr.Body.String())
	}

	if dest != nil {
		if err := json.Unmarshal(rr.Body.Bytes(), dest); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// writeRawDataset generates a synthetic claims extract with 40 members. Odd
// members disappear from the 2010 enrollment and carry heavier utilization.
func writeRawDataset(t *testing.T, dir string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, os.ModePerm))

	beneHeader := "DESYNPUF_ID,BENE_SEX_IDENT_CD,BENE_RACE_CD,SP_ALZHDMTA,SP_CHF,SP_CNCR\n"
	claimsHeader := "DESYNPUF_ID,CLM_ID,CLM_PMT_AMT,ICD9_DGNS_CD_1\n"

	files := map[string]*bytes.Buffer{
		dataset.RawBeneficiary2008: bytes.NewBufferString(beneHeader),
		dataset.RawBeneficiary2009: bytes.NewBufferString(beneHeader),
		dataset.RawBeneficiary2010: bytes.NewBufferString(beneHeader),
		dataset.RawInpatient:       bytes.NewBufferString(claimsHeader),
		dataset.RawOutpatient:      bytes.NewBufferString(claimsHeader),
		dataset.RawPrescriptions:   bytes.NewBufferString("DESYNPUF_ID,PDE_ID,TOT_RX_CST_AMT,DAYS_SUPLY_NUM\n"),
	}

	claim := 0
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("M%03d", i)
		row := fmt.Sprintf("%s,%d,1,%d,2,2\n", id, 1+i%2, 1+i%2)

		files[dataset.RawBeneficiary2008].WriteString(row)
		files[dataset.RawBeneficiary2009].WriteString(row)
		if i%2 == 0 {
			files[dataset.RawBeneficiary2010].WriteString(row)
		}

		claim++
		files[dataset.RawInpatient].WriteString(fmt.Sprintf("%s,C%04d,%d,4019\n", id, claim, 500+i*10))

		for j := 0; j < 1+(i%2)*3; j++ {
			claim++
			files[dataset.RawOutpatient].WriteString(fmt.Sprintf("%s,C%04d,%d,250%d\n", id, claim, 40+j*5+(i%2)*200, j))
		}

		files[dataset.RawPrescriptions].WriteString(fmt.Sprintf("%s,P%04d,%d,30\n", id, i, 10+(i%2)*90))
	}

	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), content.Bytes(), 0o644))
	}
}
