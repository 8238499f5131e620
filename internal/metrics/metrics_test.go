package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_RecordsPollsAndMutations(t *testing.T) {
	m := New()
	m.ChainsChanged("devices", 3)
	m.Fetched("devices", nil)
	m.Fetched("devices", errors.New("boom"))
	m.Mutation("upload", nil)

	body := scrape(t, m)
	assert.Contains(t, body, `otadash_poll_chains{registry="devices"} 3`)
	assert.Contains(t, body, `otadash_poll_fetches_total{registry="devices",result="error"} 1`)
	assert.Contains(t, body, `otadash_poll_fetches_total{registry="devices",result="ok"} 1`)
	assert.Contains(t, body, `otadash_mutations_total{kind="upload",result="ok"} 1`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ChainsChanged("devices", 1)
	m.Fetched("devices", nil)
	m.Mutation("cancel", nil)
}
