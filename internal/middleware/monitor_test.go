package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"node-monitor/internal/metrics"
)

type recorder struct {
	mu         sync.Mutex
	obs        []metrics.Observation
	exceptions int
}

func (r *recorder) Observe(_ metrics.ListenerID, o metrics.Observation) bool {
	r.mu.Lock()
	r.obs = append(r.obs, o)
	r.mu.Unlock()
	return true
}

func (r *recorder) RecordException(_ metrics.ListenerID) bool {
	r.mu.Lock()
	r.exceptions++
	r.mu.Unlock()
	return true
}

func (r *recorder) last(t *testing.T) metrics.Observation {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.obs)
	return r.obs[len(r.obs)-1]
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func category(t *testing.T, f metrics.Fragment, name string) metrics.Node {
	t.Helper()
	root, ok := f.(metrics.Node)
	require.True(t, ok)
	n, ok := root[name].(metrics.Node)
	require.True(t, ok, name)
	return n
}

func TestMonitorRecordsResponse(t *testing.T) {
	rec := &recorder{}
	h := Monitor(rec, "id", false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("hello"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/API/Items/list.json?x=1", nil)
	req.Header.Set("mon-platform", "ios")
	req.Header.Set("mon-version", "2.1")
	req.Header.Set("mon-email", "a@example.com")
	w := serve(h, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	o := rec.last(t)
	assert.Equal(t, http.MethodGet, o.Method)
	assert.Equal(t, http.StatusCreated, o.StatusCode)
	assert.Equal(t, int64(5), o.BytesWritten)
	assert.Equal(t, int64(0), o.BytesRead)
	assert.Equal(t, "/api/items/", o.Path)
	assert.Equal(t, 0.0, o.NetworkMs)
	assert.InDelta(t, o.TotalMs, o.NetworkMs+o.ProcessingMs, 1e-6)

	assert.Equal(t, metrics.Scalar(1), category(t, o.Fragment, "platform")["ios"])
	assert.Equal(t, metrics.Scalar(1), category(t, o.Fragment, "version")["2.1"])
	_, hasEmail := o.Fragment.(metrics.Node)["email"]
	assert.False(t, hasEmail)
	assert.Nil(t, o.Sample)
}

func TestMonitorDefaultStatus(t *testing.T) {
	rec := &recorder{}
	h := Monitor(rec, "id", false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	serve(h, httptest.NewRequest(http.MethodHead, "/", nil))

	o := rec.last(t)
	assert.Equal(t, http.StatusOK, o.StatusCode)
	assert.Nil(t, o.Fragment)
}

func TestMonitorSplitsNetworkAndProcessing(t *testing.T) {
	rec := &recorder{}
	h := Monitor(rec, "id", false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.ReadAll(r.Body)
		time.Sleep(20 * time.Millisecond)
	}))

	serve(h, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("abcdef")))

	o := rec.last(t)
	assert.Equal(t, int64(6), o.BytesRead)
	assert.GreaterOrEqual(t, o.ProcessingMs, 20.0)
	assert.Less(t, o.NetworkMs, o.ProcessingMs)
	assert.InDelta(t, o.TotalMs, o.NetworkMs+o.ProcessingMs, 1e-6)
}

func TestMonitorUnreadBodyCountsAsNetwork(t *testing.T) {
	rec := &recorder{}
	h := Monitor(rec, "id", false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
	}))

	serve(h, httptest.NewRequest(http.MethodPut, "/upload", strings.NewReader("abcdef")))

	o := rec.last(t)
	assert.GreaterOrEqual(t, o.NetworkMs, 20.0)
	assert.Equal(t, 0.0, o.ProcessingMs)
}

func TestMonitorRecoversPanic(t *testing.T) {
	rec := &recorder{}
	h := Monitor(rec, "id", false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/explode", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, rec.exceptions)
	assert.Equal(t, http.StatusInternalServerError, rec.last(t).StatusCode)
}

func TestMonitorPropagatesAbortHandler(t *testing.T) {
	rec := &recorder{}
	h := Monitor(rec, "id", false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	w := httptest.NewRecorder()
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/abort", nil))
	})

	assert.Equal(t, 0, rec.exceptions)
	assert.Zero(t, w.Body.Len())
	assert.Equal(t, http.StatusOK, rec.last(t).StatusCode)
}

func TestMonitorCollectAll(t *testing.T) {
	rec := &recorder{}
	h := Monitor(rec, "id", true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("mon-email", "a@example.com")
	req.Header.Set("mon-aname", "shop")
	serve(h, req)

	o := rec.last(t)
	assert.Equal(t, metrics.Scalar(1), category(t, o.Fragment, "email")["a@example.com"])
	assert.Equal(t, metrics.Scalar(1), category(t, o.Fragment, "aname")["shop"])
	assert.Len(t, category(t, o.Fragment, "access_from"), 1)

	sample, ok := o.Sample.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "example.com", sample["host"])
	assert.NotEmpty(t, sample["ip"])
}

func TestMonitorWithRegistry(t *testing.T) {
	reg := metrics.NewRegistry()
	id, err := reg.Register("127.0.0.1:9000", metrics.DefaultRegisterOptions())
	require.NoError(t, err)

	h := Monitor(reg, id, reg.CollectAll(id))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("mon-platform", "android")
		serve(h, req)
	}

	s := reg.Summary(false)
	assert.Equal(t, int64(3), s.Requests)
	assert.Equal(t, int64(6), s.BytesWritten)
	assert.Equal(t, 3.0, s.Tree.Get("platform", "android"))
}
