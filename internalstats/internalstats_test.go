package internalstats

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bicycleday/gostatsd/processor"
)

func TestExporterServesTrackedKeysAndIngestCounters(t *testing.T) {
	cfg := processor.DefaultConfig()
	proc := processor.New(cfg, func() float64 { return 0 }, nil)
	proc.Ingest("a:1|c")
	proc.Ingest("b:5|ms")

	exp := New(proc)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "gostatsd_ingest_total")
	assert.Contains(t, text, "gostatsd_tracked_keys")
	assert.Contains(t, text, `type="c"`)
	assert.Contains(t, text, `type="ms"`)
}
