package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBaseURL(t *testing.T) {
	_, err := ParseBaseURL("")
	require.Error(t, err)
	_, err = ParseBaseURL("requests/")
	require.Error(t, err)

	u, err := ParseBaseURL("https://lacity.nextrequest.com/requests")
	require.NoError(t, err)
	assert.Equal(t, "https://lacity.nextrequest.com/requests/", u.String())
}

func TestRecordURL(t *testing.T) {
	u, err := ParseBaseURL("https://lacity.nextrequest.com/requests/")
	require.NoError(t, err)
	assert.Equal(t, "https://lacity.nextrequest.com/requests/21-500", RecordURL(u, "21-500"))
	assert.Equal(t, "https://lacity.nextrequest.com/requests/a%20b", RecordURL(u, "a b"))
	assert.Equal(t, "https://lacity.nextrequest.com/requests/50%25", RecordURL(u, "50%"))
}

func TestRecordURLRoundTripsID(t *testing.T) {
	u, err := ParseBaseURL("https://lacity.nextrequest.com/requests/")
	require.NoError(t, err)
	for _, id := range []string{"21-500", "a b", "50%", "a%20b", "1"} {
		assert.Equal(t, id, RecordIDFromURL(RecordURL(u, id)), id)
	}
}

func TestRecordIDFromURL(t *testing.T) {
	assert.Equal(t, "21-500", RecordIDFromURL("https://lacity.nextrequest.com/requests/21-500"))
	assert.Equal(t, "21-500", RecordIDFromURL("https://lacity.nextrequest.com/requests/21-500/"))
	assert.Empty(t, RecordIDFromURL("https://lacity.nextrequest.com/"))
}
