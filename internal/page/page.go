// Package page is the only surface that touches the browser. Everything above
// it (locator, simulator, fillers, recorder) works on Element snapshots and ref
// selectors, so the same engine runs against a live chromedp tab or an
// in-memory document.
package page

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrDetached is returned when a ref no longer resolves to an element.
	ErrDetached = errors.New("element is no longer attached to the document")
	// ErrUnsupportedSelector is returned by drivers that cannot evaluate a selector form.
	ErrUnsupportedSelector = errors.New("unsupported selector")
)

// Page drives one browser document.
type Page interface {
	URL(ctx context.Context) (string, error)
	// Navigate assigns the document location and returns without waiting for the load.
	Navigate(ctx context.Context, url string) error
	// QueryAll returns matches in document order. Selectors starting with "/" or "("
	// are XPath expressions, everything else is CSS.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// NextMutation blocks until the next subtree mutation or until max elapses.
	// It reports whether a mutation was observed.
	NextMutation(ctx context.Context, max time.Duration) (bool, error)

	Focus(ctx context.Context, ref string) error
	SelectAll(ctx context.Context, ref string) error
	SetValue(ctx context.Context, ref, value string) error
	SetText(ctx context.Context, ref, text string) error
	Dispatch(ctx context.Context, ref, event string) error
	Click(ctx context.Context, ref string) error
	// InsertText inserts into whatever currently holds focus.
	InsertText(ctx context.Context, text string) error
	// TypeKey sends one key press to the focused element.
	TypeKey(ctx context.Context, key string) error
	SetFiles(ctx context.Context, ref string, files []File) error
}

// Capturer is implemented by pages that can run the field mapping wizard.
// InstallClickCapture and RemoveClickCapture are a subscribe/unsubscribe pair.
type Capturer interface {
	ShowIndicator(ctx context.Context, text string) error
	HideIndicator(ctx context.Context) error
	InstallClickCapture(ctx context.Context) error
	RemoveClickCapture(ctx context.Context) error
	// TakeCapture returns the last captured click and clears it, or nil.
	TakeCapture(ctx context.Context) (*Captured, error)
}

// File is an in-memory upload.
type File struct {
	Name string
	MIME string
	Data []byte
}

// Captured describes the element an operator clicked while mapping a field.
type Captured struct {
	XPath       string   `json:"xpath"`
	Tag         string   `json:"tag"`
	ID          string   `json:"id"`
	Classes     []string `json:"classes"`
	AriaLabel   string   `json:"ariaLabel"`
	TestID      string   `json:"testId"`
	Name        string   `json:"name"`
	Placeholder string   `json:"placeholder"`
	Role        string   `json:"role"`
	Text        string   `json:"text"`
}

func IsXPath(selector string) bool {
	s := strings.TrimSpace(selector)
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(")
}

// Standard events dispatched by the simulator.
const (
	EventInput  = "input"
	EventChange = "change"
	EventBlur   = "blur"
)
