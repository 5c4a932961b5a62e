package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.AlertsDispatched.WithLabelValues("solana", "sent").Inc()
	m.AlertsDispatched.WithLabelValues("solana", "sent").Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AlertsDispatched.WithLabelValues("solana", "sent")))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_alert_dispatched_total")
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.TransactionDuplicates.WithLabelValues("bsc"))
	RecordTransaction("bsc", false)
	assert.Equal(t, before+1, testutil.ToFloat64(DefaultMetrics.TransactionDuplicates.WithLabelValues("bsc")))

	errsBefore := testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "insert"))
	RecordDBQuery("postgres", "insert", 0.01, errors.New("boom"))
	RecordDBQuery("postgres", "insert", 0.01, nil)
	assert.Equal(t, errsBefore+1, testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "insert")))
}

func TestHandler(t *testing.T) {
	RecordPriceLookup("native", "hit")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "safeguard_bot_price_lookups_total"))
}
