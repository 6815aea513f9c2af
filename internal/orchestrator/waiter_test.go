package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingpilot/backend/internal/page"
)

func TestAwaitURLContains_ObservesLateNavigation(t *testing.T) {
	p, err := page.NewHTMLPage(`<p></p>`, page.WithURL("https://example.test/home"))
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = p.Navigate(context.Background(), "/marketplace/create/vehicle")
	}()

	w := NavigationWaiter{InitialDelay: 5 * time.Millisecond, Poll: 5 * time.Millisecond}
	err = w.AwaitURLContains(context.Background(), p, "/marketplace/create/vehicle", time.Second)
	assert.NoError(t, err)
}

func TestAwaitURLContains_TimesOut(t *testing.T) {
	p, err := page.NewHTMLPage(`<p></p>`, page.WithURL("https://example.test/home"))
	require.NoError(t, err)

	w := NavigationWaiter{InitialDelay: 5 * time.Millisecond, Poll: 5 * time.Millisecond}
	start := time.Now()
	err = w.AwaitURLContains(context.Background(), p, "/marketplace/create/vehicle", 40*time.Millisecond)
	assert.ErrorIs(t, err, ErrNavigationTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestAwaitURLContains_HonoursCancel(t *testing.T) {
	p, err := page.NewHTMLPage(`<p></p>`)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NavigationWaiter{InitialDelay: time.Second}
	err = w.AwaitURLContains(ctx, p, "/never", 10*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
