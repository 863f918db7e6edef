package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/engine"
	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/danielpatrickdp/reflex-engine/internal/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	eng   *engine.Engine
	ticks chan time.Time
	srv   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p, _ := profile.Preset("curious")
	store, err := profile.NewStore(p)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	f := &fixture{ticks: make(chan time.Time)}
	f.eng, err = engine.New(store,
		engine.WithTicks(f.ticks),
		engine.WithID("dash-test"),
		engine.WithMetrics(telemetry.New(reg)))
	require.NoError(t, err)
	require.NoError(t, f.eng.Start(context.Background()))

	f.srv = httptest.NewServer(New(f.eng, reg, DefaultConfig(), zap.NewNop()).Handler())
	t.Cleanup(func() {
		_ = f.eng.Stop()
		f.srv.Close()
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestGetSnapshot(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/snapshot", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap state.Snapshot
	decode(t, resp, &snap)
	assert.Equal(t, "dash-test", snap.EngineID)
	assert.Equal(t, "curious", snap.ProfileName)
}

func TestPresets(t *testing.T) {
	f := newFixture(t)
	var list PresetList
	decode(t, f.do(t, http.MethodGet, "/api/presets", ""), &list)
	assert.Contains(t, list.Names, "energetic")
	assert.Equal(t, profile.Featured, list.Featured)

	var spec profile.Spec
	decode(t, f.do(t, http.MethodGet, "/api/presets/ZEN", ""), &spec)
	require.NotNil(t, spec.RecoverySpeed)
	assert.Equal(t, 0.9, *spec.RecoverySpeed)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/presets/nobody", "").StatusCode)
}

func TestPutProfile(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPut, "/api/profile/preset/timid", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	pending, ok := f.eng.Profiles().Pending()
	require.True(t, ok)
	assert.Equal(t, "timid", pending.Name)

	missing := `{"name":"partial","tension_baseline":0.2}`
	resp = f.do(t, http.MethodPut, "/api/profile", missing)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body ErrorBody
	decode(t, resp, &body)
	assert.Len(t, body.Fields, 8)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/profile", "{").StatusCode)
}

func TestPostStimulus(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/stimulus", `{"kind":"touch","intensity":0.4}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	f.ticks <- time.Now()
	require.Eventually(t, func() bool { return f.eng.Stats().StimuliApplied == 1 }, 2*time.Second, 5*time.Millisecond)

	resp = f.do(t, http.MethodPost, "/api/stimulus", `{"kind":"smell","intensity":0.4}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var stats engine.Stats
	decode(t, f.do(t, http.MethodGet, "/api/stats", ""), &stats)
	assert.Equal(t, uint64(1), stats.Ticks)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.ticks <- time.Now()

	scrape := func() string {
		resp, err := http.Get(f.srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		buf := new(strings.Builder)
		_, err = io.Copy(buf, resp.Body)
		require.NoError(t, err)
		return buf.String()
	}
	require.Eventually(t, func() bool {
		return strings.Contains(scrape(), "reflex_ticks_total 1")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, scrape(), `reflex_mode_current{mode="spike"} 0`)
}

func TestStreamPushesSnapshots(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/stream"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return len(f.eng.Stats().Broadcast.Subscribers) == 1 }, 2*time.Second, 5*time.Millisecond)
	f.ticks <- time.Now()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var snap state.Snapshot
	require.NoError(t, ws.ReadJSON(&snap))
	assert.Equal(t, uint64(1), snap.Tick)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return len(f.eng.Stats().Broadcast.Subscribers) == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestServeOutputs(t *testing.T) {
	f := newFixture(t)
	s := New(f.eng, nil, DefaultConfig(), nil)
	s.ServeOutputs(func() any { return map[string]int{"left": 10} })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/outputs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"left":10}`, rec.Body.String())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
