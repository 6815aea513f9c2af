package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"listingpilot/backend/internal/page"
)

var ErrNavigationTimeout = errors.New("navigation timeout")

// NavigationWaiter polls the page URL until it contains an expected path.
type NavigationWaiter struct {
	InitialDelay time.Duration
	Poll         time.Duration
}

// AwaitURLContains waits InitialDelay, then polls every Poll until the URL
// contains substring or timeout has passed since the call.
func (w NavigationWaiter) AwaitURLContains(ctx context.Context, p page.Page, substring string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	poll := w.Poll
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}

	if err := sleep(ctx, w.InitialDelay); err != nil {
		return err
	}
	for {
		current, err := p.URL(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("⚠️ Could not read page URL while navigating: %v", err)
		} else if strings.Contains(current, substring) {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w: page did not reach %s within %v (at %q)", ErrNavigationTimeout, substring, timeout, current)
		}
		if err := sleep(ctx, min(poll, remaining)); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
