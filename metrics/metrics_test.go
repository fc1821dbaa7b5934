package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionsCounter(t *testing.T) {
	before := testutil.ToFloat64(Submissions.WithLabelValues(Recorded))
	Submissions.WithLabelValues(Recorded).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Submissions.WithLabelValues(Recorded)))
}

func TestHandlerExposesMetrics(t *testing.T) {
	ExportedRows.WithLabelValues("csv").Add(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `survey_exported_rows_total{format="csv"}`)
}
