package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ben458-1/URL-Server-Monitor/internal/broadcast"
	"github.com/ben458-1/URL-Server-Monitor/internal/domain/health"
	"github.com/ben458-1/URL-Server-Monitor/internal/repository/memory"
	"github.com/ben458-1/URL-Server-Monitor/internal/status"
)

func newTestServer(t *testing.T, mem *memory.Store) (*httptest.Server, *broadcast.Hub) {
	t.Helper()
	hub := broadcast.NewHub(zaptest.NewLogger(t), 16)
	srv := NewServer(zaptest.NewLogger(t), status.New(mem), hub, nil, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, hub
}

func getJSON(t *testing.T, url string, wantCode int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantCode, resp.StatusCode)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func seedCheck(t *testing.T, mem *memory.Store, targetID int64, st health.Status, age time.Duration) {
	t.Helper()
	require.NoError(t, mem.Append(context.Background(), &health.Check{
		TargetID:  targetID,
		Status:    st,
		CheckedAt: time.Now().UTC().Add(-age),
	}))
}

func TestServer_Healthz(t *testing.T) {
	ts, _ := newTestServer(t, memory.New())
	getJSON(t, ts.URL+"/healthz", http.StatusOK, nil)
}

func TestServer_HealthzUnready(t *testing.T) {
	hub := broadcast.NewHub(zaptest.NewLogger(t), 16)
	srv := NewServer(zaptest.NewLogger(t), status.New(memory.New()), hub,
		func(context.Context) error { return errors.New("db down") }, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	getJSON(t, ts.URL+"/healthz", http.StatusServiceUnavailable, nil)
}

func TestServer_CurrentStatus(t *testing.T) {
	mem := memory.New()
	seedCheck(t, mem, 1, health.StatusOffline, time.Minute)
	ts, _ := newTestServer(t, mem)

	var got health.Check
	getJSON(t, ts.URL+"/api/health/url/1", http.StatusOK, &got)
	require.Equal(t, int64(1), got.TargetID)
	require.Equal(t, health.StatusOffline, got.Status)
}

func TestServer_CurrentStatusUnknown(t *testing.T) {
	ts, _ := newTestServer(t, memory.New())

	// A never-checked target is 200 unknown, not 404.
	var got map[string]any
	getJSON(t, ts.URL+"/api/health/url/7", http.StatusOK, &got)
	require.Equal(t, "unknown", got["status"])
	require.EqualValues(t, 7, got["target_id"])
}

func TestServer_BadTargetID(t *testing.T) {
	ts, _ := newTestServer(t, memory.New())
	getJSON(t, ts.URL+"/api/health/url/abc", http.StatusBadRequest, nil)
	getJSON(t, ts.URL+"/api/health/url/-1", http.StatusBadRequest, nil)
}

func TestServer_HistoryWindowBounds(t *testing.T) {
	mem := memory.New()
	seedCheck(t, mem, 1, health.StatusOnline, 5*time.Minute)
	seedCheck(t, mem, 1, health.StatusOnline, 25*time.Minute)
	ts, _ := newTestServer(t, mem)

	// Default window is 20 minutes: the older check is excluded.
	var got []health.Check
	getJSON(t, ts.URL+"/api/health/url/1/history", http.StatusOK, &got)
	require.Len(t, got, 1)

	getJSON(t, ts.URL+"/api/health/url/1/history?minutes=60", http.StatusOK, &got)
	require.Len(t, got, 2)

	getJSON(t, ts.URL+"/api/health/url/1/history?minutes=0", http.StatusBadRequest, nil)
	getJSON(t, ts.URL+"/api/health/url/1/history?minutes=1441", http.StatusBadRequest, nil)
	getJSON(t, ts.URL+"/api/health/url/1/history?minutes=nope", http.StatusBadRequest, nil)
}

func TestServer_Uptime(t *testing.T) {
	mem := memory.New()
	seedCheck(t, mem, 1, health.StatusOnline, time.Minute)
	seedCheck(t, mem, 1, health.StatusOffline, 2*time.Minute)
	ts, _ := newTestServer(t, mem)

	var got status.Uptime
	getJSON(t, ts.URL+"/api/health/url/1/uptime", http.StatusOK, &got)
	require.Equal(t, 2, got.Total)
	require.Equal(t, 1, got.Online)
	require.InDelta(t, 0.5, got.Ratio, 1e-9)
	require.False(t, got.NoData)

	getJSON(t, ts.URL+"/api/health/url/2/uptime", http.StatusOK, &got)
	require.True(t, got.NoData)
}

func TestServer_Stats(t *testing.T) {
	mem := memory.New()
	seedCheck(t, mem, 1, health.StatusOnline, time.Minute)
	seedCheck(t, mem, 2, health.StatusOffline, time.Minute)
	ts, _ := newTestServer(t, mem)

	var got status.Overview
	getJSON(t, ts.URL+"/api/health/stats", http.StatusOK, &got)
	require.Equal(t, 2, got.Targets)
	require.Equal(t, 1, got.Online)
	require.Equal(t, 1, got.Offline)
}

func TestServer_AllLatest(t *testing.T) {
	mem := memory.New()
	seedCheck(t, mem, 1, health.StatusOnline, 2*time.Minute)
	seedCheck(t, mem, 1, health.StatusOnline, time.Minute)
	seedCheck(t, mem, 2, health.StatusOffline, time.Minute)
	ts, _ := newTestServer(t, mem)

	var got []health.Check
	getJSON(t, ts.URL+"/api/health/all-latest", http.StatusOK, &got)
	require.Len(t, got, 2)
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServer_WSReceivesHealthUpdates(t *testing.T) {
	mem := memory.New()
	ts, hub := newTestServer(t, mem)
	conn := dialWS(t, ts)

	// Wait for the subscriber to register before publishing.
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 },
		2*time.Second, 10*time.Millisecond)

	ms := int64(42)
	code := 200
	hub.Publish(broadcast.NewHealthUpdate(&health.Check{
		TargetID:     1,
		Status:       health.StatusOnline,
		ResponseTime: &ms,
		StatusCode:   &code,
		CheckedAt:    time.Now().UTC(),
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string                 `json:"type"`
		Data broadcast.HealthUpdate `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, broadcast.EventHealthUpdate, msg.Type)
	require.Equal(t, int64(1), msg.Data.TargetID)
	require.Equal(t, "online", msg.Data.Status)
	require.Equal(t, int64(42), *msg.Data.ResponseTime)
}

func TestServer_WSPongReply(t *testing.T) {
	ts, hub := newTestServer(t, memory.New())
	conn := dialWS(t, ts)

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]string
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "pong", msg["type"])
}

func TestServer_WSDisconnectRemovesSubscriber(t *testing.T) {
	ts, hub := newTestServer(t, memory.New())
	conn := dialWS(t, ts)

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 },
		2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 },
		2*time.Second, 10*time.Millisecond)
}
