package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"payer-analytics/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createProvider(t *testing.T) *storage.LocalProvider {
	t.Helper()

	provider, err := storage.NewLocalProvider(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, provider.CreateBucket(context.Background(), storage.DatasetBucket))
	return provider
}

func TestLocalPutGetObject(t *testing.T) {
	provider := createProvider(t)
	ctx := context.Background()

	content := "member_id,total_spend\nM001,1126\n"
	require.NoError(t, provider.PutObject(ctx, storage.DatasetBucket, "interim/beneficiaries.csv", strings.NewReader(content)))

	data, err := provider.GetObject(ctx, storage.DatasetBucket, "interim/beneficiaries.csv")
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	// Overwrite replaces the object.
	require.NoError(t, provider.PutObject(ctx, storage.DatasetBucket, "interim/beneficiaries.csv", strings.NewReader("updated")))
	data, err = provider.GetObject(ctx, storage.DatasetBucket, "interim/beneficiaries.csv")
	require.NoError(t, err)
	assert.Equal(t, "updated", string(data))

	_, err = provider.GetObject(ctx, storage.DatasetBucket, "interim/missing.csv")
	assert.Error(t, err)
}

func TestLocalListObjects(t *testing.T) {
	provider := createProvider(t)
	ctx := context.Background()

	for _, key := range []string{"interim/b.csv", "interim/a.csv", "raw/x.csv"} {
		require.NoError(t, provider.PutObject(ctx, storage.DatasetBucket, key, strings.NewReader(key)))
	}

	objects, err := provider.ListObjects(ctx, storage.DatasetBucket, "interim/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "interim/a.csv", objects[0].Name)
	assert.Equal(t, "interim/b.csv", objects[1].Name)
	assert.Equal(t, int64(len("interim/a.csv")), objects[0].Size)

	all, err := provider.ListObjects(ctx, storage.DatasetBucket, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Listing a bucket that was never created is empty, not an error.
	none, err := provider.ListObjects(ctx, "nonexistent", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLocalUploadDownloadDir(t *testing.T) {
	provider := createProvider(t)
	ctx := context.Background()

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), os.ModePerm))
	require.NoError(t, os.WriteFile(filepath.Join(src, "beneficiaries.csv"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "claims.csv"), []byte("b"), 0o644))

	require.NoError(t, provider.UploadDir(ctx, storage.DatasetBucket, storage.InterimPrefix, src))

	objects, err := provider.ListObjects(ctx, storage.DatasetBucket, storage.InterimPrefix)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "interim/beneficiaries.csv", objects[0].Name)
	assert.Equal(t, "interim/nested/claims.csv", objects[1].Name)

	dest := filepath.Join(t.TempDir(), "downloaded")
	require.NoError(t, provider.DownloadDir(ctx, storage.DatasetBucket, storage.InterimPrefix, dest, false))

	data, err := os.ReadFile(filepath.Join(dest, "beneficiaries.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
	data, err = os.ReadFile(filepath.Join(dest, "nested", "claims.csv"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))

	// A second download fails unless overwrite is requested.
	assert.Error(t, provider.DownloadDir(ctx, storage.DatasetBucket, storage.InterimPrefix, dest, false))
	assert.NoError(t, provider.DownloadDir(ctx, storage.DatasetBucket, storage.InterimPrefix, dest, true))
}
