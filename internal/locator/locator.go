package locator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"listingpilot/backend/internal/page"
)

var ErrNotFound = errors.New("no acceptable element found")

// Options filter candidate matches.
type Options struct {
	MustBeVisible        bool
	ExcludeSearchContext bool
}

func (o Options) accepts(el page.Element) bool {
	if o.MustBeVisible && !el.Visible {
		return false
	}
	if o.ExcludeSearchContext && IsSearchContext(el) {
		return false
	}
	return true
}

// Locate walks selectors in priority order and returns the first one whose
// first DOM match is acceptable. Later matches of the same selector are never
// considered.
func Locate(ctx context.Context, p page.Page, selectors []string, opts Options) (page.Element, error) {
	for _, selector := range selectors {
		if err := ctx.Err(); err != nil {
			return page.Element{}, err
		}
		els, err := p.QueryAll(ctx, selector)
		if err != nil {
			if ctx.Err() != nil {
				return page.Element{}, ctx.Err()
			}
			log.Printf("⚠️ Selector %q skipped: %v", selector, err)
			continue
		}
		if len(els) == 0 {
			continue
		}
		if opts.accepts(els[0]) {
			return els[0], nil
		}
	}
	return page.Element{}, fmt.Errorf("%w among %d selectors", ErrNotFound, len(selectors))
}

var searchMarkers = []string{"search", "query", "q="}

// IsSearchContext reports whether el looks like a site-wide search control
// rather than a form field.
func IsSearchContext(el page.Element) bool {
	if el.InSearchRegion {
		return true
	}
	for _, attr := range []string{el.Placeholder, el.Name, el.ID, el.Class} {
		lower := strings.ToLower(attr)
		for _, marker := range searchMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

// textInputs are the controls the generic keyword scan walks.
const textInputs = `input[type="text"], input:not([type])`

// ScanTextInputs is the last-resort fallback: the first visible, non-search
// text input whose container text or placeholder mentions keyword.
func ScanTextInputs(ctx context.Context, p page.Page, keyword string) (page.Element, error) {
	els, err := p.QueryAll(ctx, textInputs)
	if err != nil {
		return page.Element{}, err
	}
	keyword = strings.ToLower(keyword)
	opts := Options{MustBeVisible: true, ExcludeSearchContext: true}
	for _, el := range els {
		if !opts.accepts(el) {
			continue
		}
		if strings.Contains(strings.ToLower(el.ContainerText), keyword) ||
			strings.Contains(strings.ToLower(el.Placeholder), keyword) {
			return el, nil
		}
	}
	return page.Element{}, fmt.Errorf("%w: no text input mentions %q", ErrNotFound, keyword)
}

// Await probes until it succeeds or timeout passes, sleeping on DOM mutations
// between probes. It is the one wait primitive the engine builds on.
func Await[T any](ctx context.Context, p page.Page, timeout time.Duration, probe func(ctx context.Context) (T, bool, error)) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)
	for {
		v, ok, err := probe(ctx)
		if err != nil {
			return zero, err
		}
		if ok {
			return v, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return zero, fmt.Errorf("%w within %v", ErrNotFound, timeout)
		}
		if _, err := p.NextMutation(ctx, remaining); err != nil {
			return zero, err
		}
	}
}

// LocateWithin is Locate retried on DOM mutations until timeout, for fields
// that render after an earlier step's events.
func LocateWithin(ctx context.Context, p page.Page, selectors []string, opts Options, timeout time.Duration) (page.Element, error) {
	return Await(ctx, p, timeout, func(ctx context.Context) (page.Element, bool, error) {
		el, err := Locate(ctx, p, selectors, opts)
		if errors.Is(err, ErrNotFound) {
			return page.Element{}, false, nil
		}
		if err != nil {
			return page.Element{}, false, err
		}
		return el, true, nil
	})
}

// WaitForAny races signal lists: the first list with any matching selector
// wins. On timeout it waits grace and reports false without an error.
func WaitForAny(ctx context.Context, p page.Page, signals [][]string, timeout, grace time.Duration) (bool, error) {
	_, err := Await(ctx, p, timeout, func(ctx context.Context) (int, bool, error) {
		for i, signal := range signals {
			if _, err := Locate(ctx, p, signal, Options{}); err == nil {
				return i, true, nil
			} else if ctx.Err() != nil {
				return 0, false, ctx.Err()
			}
		}
		return 0, false, nil
	})
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	log.Printf("⚠️ Form readiness not observed within %v, continuing after %v", timeout, grace)
	select {
	case <-time.After(grace):
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
