package chrome

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingpilot/backend/internal/config"
)

func devtoolsServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json/version":
			w.Write([]byte(`{"Browser":"Chrome/120.0"}`))
		case "/json/list":
			w.Write([]byte(`[
				{"id":"sw","type":"service_worker","title":"","url":"https://www.facebook.com/sw.js"},
				{"id":"a","type":"page","title":"Inbox","url":"https://mail.example.com/"},
				{"id":"b","type":"page","title":"Marketplace","url":"https://www.facebook.com/marketplace/create/vehicle"}
			]`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBrowser_AttachToRunningInstance(t *testing.T) {
	srv := devtoolsServer(t)
	b := NewBrowser(config.ChromeConfig{DebugURL: srv.URL + "/"}, "/marketplace")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, b.Start(ctx))

	targets, err := b.Targets(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 2, "non-page targets are dropped")

	picked, ok := PickTarget(targets, "/marketplace")
	require.True(t, ok)
	assert.Equal(t, "b", picked.ID)
}

func TestPickTarget(t *testing.T) {
	targets := []Target{{ID: "a", URL: "https://mail.example.com"}, {ID: "b", URL: "https://example.com/x"}}

	picked, ok := PickTarget(targets, "/marketplace")
	require.True(t, ok)
	assert.Equal(t, "a", picked.ID, "falls back to the first page")

	_, ok = PickTarget(nil, "/marketplace")
	assert.False(t, ok)
}

func TestBrowser_WaitReadyTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	b := NewBrowser(config.ChromeConfig{DebugURL: url}, "")
	b.baseURL = url
	err := b.waitReady(context.Background(), 300*time.Millisecond)
	assert.Error(t, err)
}

func TestBrowser_ExternalTabsSurviveDetach(t *testing.T) {
	cancelled := false
	b := NewBrowser(config.ChromeConfig{DebugURL: "http://127.0.0.1:9222"}, "")
	b.tabCancel = func() { cancelled = true }
	b.tabTarget = "b"

	b.releaseTab([]Target{{ID: "a"}, {ID: "b"}})
	assert.False(t, cancelled, "open tab is abandoned, not closed")
	assert.Nil(t, b.tabCancel)

	b.tabCancel = func() { cancelled = true }
	b.tabTarget = "gone"
	b.releaseTab([]Target{{ID: "a"}})
	assert.True(t, cancelled, "a tab that is already closed is released")

	cancelled = false
	b.tabCancel = func() { cancelled = true }
	b.Close()
	assert.False(t, cancelled)
}

func TestBrowser_CloseReleasesLaunchedTab(t *testing.T) {
	tabClosed, allocClosed := false, false
	b := NewBrowser(config.ChromeConfig{}, "")
	b.tabCancel = func() { tabClosed = true }
	b.allocCancel = func() { allocClosed = true }

	b.Close()
	assert.True(t, tabClosed)
	assert.True(t, allocClosed)
}
