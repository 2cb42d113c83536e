package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("film", "read", "404"))

	Observe("film", "read", http.StatusNotFound, 15*time.Millisecond)
	Observe("film", "read", http.StatusNotFound, 5*time.Millisecond)

	assert.Equal(t, before+2, testutil.ToFloat64(RequestsTotal.WithLabelValues("film", "read", "404")))
	assert.Positive(t, testutil.CollectAndCount(RequestDuration, "restable_request_duration_seconds"))
}

func TestStartPrometheusServer(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	Observe("actor", "list", http.StatusOK, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	StartPrometheusServer(ctx, &wg, &PromServerOpts{Addr: addr})

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	assert.Contains(t, body, `restable_requests_total{operation="list",resource="actor",status="200"}`)

	cancel()
	wg.Wait()
}
