package server_test

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendrelay/trendrelay/internal/observability"
	"github.com/trendrelay/trendrelay/internal/ratelimit"
	"github.com/trendrelay/trendrelay/internal/relay"
	"github.com/trendrelay/trendrelay/internal/server"
	"github.com/trendrelay/trendrelay/internal/wecom"
)

// isPermissionError reports sandbox socket restrictions so tests can skip.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"permission denied", "operation not permitted", "not permitted"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func initMetricsOrSkip(t *testing.T) {
	t.Helper()

	if err := observability.InitMetrics("test", 0, "test"); err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping metrics tests due to sandbox permissions: %v", err)
		}
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = observability.StopMetrics() })
}

// startServer serves srv on an IPv4 loopback listener.
func startServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping server setup: %v", err)
		}
		require.NoError(t, err)
	}

	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts
}

func TestRelayUnderLoadRecordsMetrics(t *testing.T) {
	observability.InitServerLogger("test", "error")
	initMetricsOrSkip(t)

	var delivered atomic.Int64
	webhook := startServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Add(1)
		_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))

	const limit = 20
	svc := relay.NewService(
		[]relay.Channel{{Name: relay.DefaultChannel, URL: webhook.URL + "/send?key=k"}},
		ratelimit.New(ratelimit.WithLimit(ratelimit.Limit{Max: limit, Window: time.Minute})),
		wecom.NewClient(2*time.Second),
	)
	ts := startServer(t, server.New("127.0.0.1", 0, server.Dependencies{Relayer: svc}).Handler())
	client := ts.Client()

	const numRequests = 50
	const numWorkers = 10

	requests := make(chan int, numRequests)
	for i := 0; i < numRequests; i++ {
		requests <- i
	}
	close(requests)

	var throttled atomic.Int64
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for range requests {
				resp, err := client.Post(ts.URL+"/", "application/json", strings.NewReader(`{"tm_data":"{\"monitorId\":\"M\"}"}`))
				if err != nil {
					continue
				}
				body, _ := io.ReadAll(resp.Body)
				_ = resp.Body.Close()
				if resp.StatusCode == http.StatusOK && !strings.Contains(string(body), "wechatResult") {
					throttled.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), delivered.Load())
	assert.Equal(t, int64(numRequests-limit), throttled.Load())

	resp, err := client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	content := string(body)
	assert.Contains(t, content, "relay_messages_total")
	assert.Contains(t, content, "relay_upstream_duration_ms")
	assert.Contains(t, content, "http_requests_total")
}

func TestMetricsEndpointWithTelemetryDisabled(t *testing.T) {
	observability.InitServerLogger("test", "error")
	require.NoError(t, observability.StopMetrics())

	ts := startServer(t, server.New("127.0.0.1", 0, server.Dependencies{}).Handler())

	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
