package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/web3-frozen/dedust-pool-monitor/internal/handler"
	"github.com/web3-frozen/dedust-pool-monitor/internal/query"
	"github.com/web3-frozen/dedust-pool-monitor/internal/snapshot"
)

const poolFile = `[{"timestamp":"2024-01-01 00:00:00","pools":[{"name":"TON/USDT","tvl":"$1,000","volume":"$500","fees":"$1","apr":"5%"}]}]`

func newTestServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pool_data.json")
	if body != "" {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	srv := httptest.NewServer(newRouter(query.New(snapshot.New(path)), nil, "*", slog.Default()))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServerWithRuns(t *testing.T, runs handler.RunLister) *httptest.Server {
	t.Helper()
	q := query.New(snapshot.New(filepath.Join(t.TempDir(), "pool_data.json")))
	srv := httptest.NewServer(newRouter(q, runs, "*", slog.Default()))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, string(body)
}

func TestEndToEndPoolFound(t *testing.T) {
	srv := newTestServer(t, poolFile)

	status, body := get(t, srv.URL+"/pool_info?pool_name=TON/USDT")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t,
		`{"timestamp":"2024-01-01 00:00:00","pool_info":{"name":"TON/USDT","tvl":"$1,000","volume":"$500","fees":"$1","apr":"5%"}}`,
		body)
}

func TestEndToEndPoolNotFound(t *testing.T) {
	srv := newTestServer(t, poolFile)

	status, body := get(t, srv.URL+"/pool_info?pool_name=UNKNOWN")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"error":"Pool not found"}`, body)
}

func TestEndToEndHealthWithoutSnapshot(t *testing.T) {
	for name, body := range map[string]string{"present": poolFile, "absent": ""} {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t, body)

			status, got := get(t, srv.URL+"/health")
			require.Equal(t, http.StatusOK, status)
			require.JSONEq(t, `{"status":"OK"}`, got)
		})
	}
}

func TestEndToEndAllPools(t *testing.T) {
	srv := newTestServer(t, poolFile)

	status, body := get(t, srv.URL+"/all_pools")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, poolFile, body)
}

func TestEndToEndAllPoolsPartialFile(t *testing.T) {
	srv := newTestServer(t, `[{"timestamp":"2024-01-01 00:00:00","pools":[{"na`)

	status, body := get(t, srv.URL+"/all_pools")
	require.Equal(t, http.StatusInternalServerError, status)
	require.JSONEq(t, `{"error":"snapshot unavailable"}`, body)
}

func TestRunsRouteDisabledWithoutDatabase(t *testing.T) {
	srv := newTestServer(t, poolFile)

	resp, err := http.Get(srv.URL + "/runs")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
