package memory

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/records-crawler/internal/storage"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "requests/requests.zip", "application/zip", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://requests/requests.zip", uri)
	require.Equal(t, "application/zip", store.ContentType("requests/requests.zip"))
	require.Equal(t, []string{"requests/requests.zip"}, store.Paths())

	payload[0] = 'C'
	rc, err := store.GetObject(context.Background(), "requests/requests.zip")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "content", string(got))
}

func TestBlobStoreMissing(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().GetObject(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
