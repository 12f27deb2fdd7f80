package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotNil(t, apiRequestsTotal)
	require.NotNil(t, crawlerNodesTotal)
	require.NotNil(t, httpRequestsTotal)
}

func TestObserveAPIRequest(t *testing.T) {
	Init()
	counter := apiRequestsTotal.WithLabelValues("id", "found")
	before := testutil.ToFloat64(counter)

	ObserveAPIRequest("id", "found", 20*time.Millisecond)
	require.InDelta(t, before+1, testutil.ToFloat64(counter), 0.0001)
	require.Positive(t, testutil.CollectAndCount(apiRequestDurationSeconds))
}

func TestObserveSnapshotStatus(t *testing.T) {
	Init()
	ok := crawlerSnapshotsTotal.WithLabelValues("checkpoint", "success")
	failed := crawlerSnapshotsTotal.WithLabelValues("checkpoint", "error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	ObserveSnapshot("checkpoint", nil)
	ObserveSnapshot("checkpoint", errors.New("boom"))

	require.InDelta(t, okBefore+1, testutil.ToFloat64(ok), 0.0001)
	require.InDelta(t, failedBefore+1, testutil.ToFloat64(failed), 0.0001)
}

func TestRouter(t *testing.T) {
	ts := httptest.NewServer(Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "http_requests_total")

	require.GreaterOrEqual(t, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200")), 1.0)
}
