package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/records-crawler/internal/crawler"
	"github.com/JakeFAU/records-crawler/internal/storage/memory"
)

func sampleRecords() []crawler.Record {
	return []crawler.Record{
		{
			ID: "21-1", Status: "Closed", Description: "line one\nline, \"two\"",
			Documents: []crawler.Document{{Title: "a.pdf", Link: "https://portal.test/documents/1"}},
			Messages:  []crawler.Message{{Title: "Closed", Detail: "done\nthanks", Time: "Jan 2"}},
		},
		{ID: "21-2"}, // incomplete, dropped
		{ID: "21-3", Status: "Open", Departments: "Police"},
		{ID: "21-3", Status: "Open", Departments: "Police"}, // exact duplicate
		{ID: "21-3", Status: "Closed", Departments: "Police"},
	}
}

func TestRowsFiltersAndDeduplicates(t *testing.T) {
	rows, err := Rows(sampleRecords())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "21-1", rows[0][0])
	assert.Equal(t, "title,link\na.pdf,https://portal.test/documents/1\n", rows[0][5])
	assert.Equal(t, "title,item,time\nClosed,\"done\nthanks\",Jan 2\n", rows[0][7])
	assert.Equal(t, []string{"21-3", "Open"}, rows[1][:2])
	assert.Equal(t, []string{"21-3", "Closed"}, rows[2][:2])
	assert.Empty(t, rows[1][5])
}

func TestExportRoundTrip(t *testing.T) {
	store := memory.NewBlobStore()
	exp, err := New(store, Config{Name: "requests", Prefix: "/la/"}, nil)
	require.NoError(t, err)

	res, err := exp.Export(context.Background(), sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, "memory://la/requests.zip", res.Location)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, ContentType, store.ContentType("la/requests.zip"))
	assert.True(t, strings.HasPrefix(res.Checksum, "sha256:"))

	records, err := Load(context.Background(), store, exp.ObjectPath())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, sampleRecords()[0], records[0])
	assert.Equal(t, "Police", records[2].Departments)
	assert.Nil(t, records[1].Documents)
}

func TestExportEmpty(t *testing.T) {
	store := memory.NewBlobStore()
	exp, err := New(store, Config{Name: "requests"}, nil)
	require.NoError(t, err)

	res, err := exp.Export(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Rows)

	records, err := Load(context.Background(), store, "requests.zip")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLoadMissingArchive(t *testing.T) {
	records, err := Load(context.Background(), memory.NewBlobStore(), "absent.zip")
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestReadArchiveRejectsGarbage(t *testing.T) {
	_, err := ReadArchive([]byte("not a zip"))
	require.ErrorIs(t, err, ErrBadArchive)

	var buf bytes.Buffer
	require.NoError(t, WriteArchive(&buf, "x", nil))
	records, err := ReadArchive(buf.Bytes())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Config{Name: "requests"}, nil)
	require.Error(t, err)
	_, err = New(memory.NewBlobStore(), Config{}, nil)
	require.Error(t, err)
}

type failingStore struct{}

func (failingStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("bucket gone")
}

func (failingStore) GetObject(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("bucket gone")
}

func TestExportStoreFailure(t *testing.T) {
	exp, err := New(failingStore{}, Config{Name: "requests"}, nil)
	require.NoError(t, err)

	_, err = exp.Export(context.Background(), sampleRecords())
	require.Error(t, err)

	_, err = Load(context.Background(), failingStore{}, "requests.zip")
	require.Error(t, err)
}

func TestObjectPath(t *testing.T) {
	assert.Equal(t, "requests.zip", ObjectPath("", "requests"))
	assert.Equal(t, "a/b/requests.zip", ObjectPath("/a/b/", "requests"))
}
