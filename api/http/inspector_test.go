package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Humphrey-He/hquery/internal/metrics"
	"github.com/Humphrey-He/hquery/pkg/cache"
	"github.com/Humphrey-He/hquery/pkg/loader"
	"github.com/Humphrey-He/hquery/pkg/logger"
	"github.com/Humphrey-He/hquery/pkg/querykey"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	cache  *cache.Client
	server *gin.Engine
	loads  atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	reg := loader.NewRegistry()
	reg.RegisterFunc(querykey.Root, func(_ context.Context, key querykey.Key) (any, error) {
		f.loads.Add(1)
		return key.String(), nil
	})
	f.cache = cache.NewClient(
		cache.WithLoaders(reg),
		cache.WithMetrics(metrics.New("inspector_test", metrics.Basic)),
	)
	t.Cleanup(func() { _ = f.cache.Close() })
	f.server = NewServer(f.cache, logger.NewNop(), "")
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	return w
}

func (f *fixture) subscribe(t *testing.T, key querykey.Key) *cache.Subscription {
	t.Helper()
	sub, err := f.cache.Subscribe(key)
	require.NoError(t, err)
	t.Cleanup(sub.Unsubscribe)
	require.Eventually(t, func() bool {
		return sub.Snapshot().Status == cache.StatusSuccess
	}, time.Second, 5*time.Millisecond)
	return sub
}

func TestHealthAndRequestID(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.JSONEq(t, `{"status":"ok","entries":0}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}

func TestEntries(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, querykey.New("questions", "detail", "1"))
	f.subscribe(t, querykey.New("categories", "list"))

	w := f.do(t, http.MethodGet, "/cache/entries", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get(EntriesHeader))
	assert.Equal(t, "0", w.Header().Get(FetchesHeader))
	var all []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 2)
	for _, e := range all {
		assert.NotContains(t, e, "data")
		assert.Equal(t, "success", e["status"])
	}

	w = f.do(t, http.MethodGet, "/cache/entries?data=true&prefix="+url.QueryEscape(`["questions"]`), "")
	require.Equal(t, http.StatusOK, w.Code)
	var questions []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &questions))
	require.Len(t, questions, 1)
	assert.Equal(t, `["questions","detail","1"]`, questions[0]["data"])

	w = f.do(t, http.MethodGet, "/cache/entries?prefix=notjson", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEntry(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, querykey.New("settings", "system"))

	w := f.do(t, http.MethodGet, "/cache/entry?key="+url.QueryEscape(`["settings","system"]`), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"subscribers":1`)

	w = f.do(t, http.MethodGet, "/cache/entry?key="+url.QueryEscape(`["missing"]`), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidateRefetchesObserved(t *testing.T) {
	f := newFixture(t)
	sub := f.subscribe(t, querykey.New("questions", "summary").With(querykey.Params{"page": 0}))
	before := f.loads.Load()

	w := f.do(t, http.MethodPost, "/cache/invalidate", `{"keys":[["questions"]]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"matched":1}`, w.Body.String())
	assert.Eventually(t, func() bool {
		return f.loads.Load() > before && sub.Snapshot().Status == cache.StatusSuccess
	}, time.Second, 5*time.Millisecond)

	w = f.do(t, http.MethodPost, "/cache/invalidate", `{"keys":[["categories"]]}`)
	assert.JSONEq(t, `{"matched":0}`, w.Body.String())

	w = f.do(t, http.MethodPost, "/cache/invalidate", `{"keys":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkStaleOnly(t *testing.T) {
	f := newFixture(t)
	key := querykey.New("course", "stats")
	sub := f.subscribe(t, key)
	before := f.loads.Load()

	w := f.do(t, http.MethodPost, "/cache/invalidate", `{"keys":[["course"]],"refetch":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, sub.Snapshot().IsStale)
	assert.Equal(t, before, f.loads.Load())
}

func TestRefreshClearAndEvents(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, querykey.New("auth", "me"))
	before := f.loads.Load()

	w := f.do(t, http.MethodPost, "/cache/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"refetched":1}`, w.Body.String())
	assert.Eventually(t, func() bool { return f.loads.Load() > before }, time.Second, 5*time.Millisecond)

	// 默认StaleTime为0，聚焦会重新获取被观察的条目
	w = f.do(t, http.MethodPost, "/cache/events/focus", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodPost, "/cache/events/reconnect", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/cache", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, f.cache.Len())
}

func TestMetricsEndpoints(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, querykey.New("admin", "stats"))

	w := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "inspector_test_")

	w = f.do(t, http.MethodGet, "/metrics/snapshot", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.GreaterOrEqual(t, snap.Fetches, uint64(1))
}
