package locator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingpilot/backend/internal/page"
)

func newPage(t *testing.T, markup string) *page.HTMLPage {
	t.Helper()
	p, err := page.NewHTMLPage(markup)
	require.NoError(t, err)
	return p
}

func TestLocate_PriorityOrder(t *testing.T) {
	p := newPage(t, `<form>
		<input name="fourth">
		<input name="second">
	</form>`)

	el, err := Locate(context.Background(), p, []string{
		`input[name="first"]`,
		`input[name="second"]`,
		`input[name="third"]`,
		`input[name="fourth"]`,
	}, Options{MustBeVisible: true})
	require.NoError(t, err)
	assert.Equal(t, "second", el.Name, "#2 wins even though #4 comes first in the DOM")
}

func TestLocate_OnlyFirstDOMMatchConsidered(t *testing.T) {
	p := newPage(t, `<form>
		<input class="price" style="display:none">
		<input class="price" name="visible-one">
		<input name="fallback">
	</form>`)

	el, err := Locate(context.Background(), p, []string{"input.price", `input[name="fallback"]`}, Options{MustBeVisible: true})
	require.NoError(t, err)
	assert.Equal(t, "fallback", el.Name)
}

func TestLocate_SearchContextExcluded(t *testing.T) {
	p := newPage(t, `<div role="search"><input type="number" id="year-filter"></div>`)

	_, err := Locate(context.Background(), p, []string{`input[type="number"]`}, Options{MustBeVisible: true, ExcludeSearchContext: true})
	assert.True(t, errors.Is(err, ErrNotFound))

	el, err := Locate(context.Background(), p, []string{`input[type="number"]`}, Options{MustBeVisible: true})
	require.NoError(t, err)
	assert.Equal(t, "year-filter", el.ID)
}

func TestLocate_InvalidSelectorSkipped(t *testing.T) {
	p := newPage(t, `<input name="make">`)
	el, err := Locate(context.Background(), p, []string{"input[", `input[name="make"]`}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "make", el.Name)
}

func TestIsSearchContext(t *testing.T) {
	cases := []struct {
		el   page.Element
		want bool
	}{
		{page.Element{Placeholder: "Search Marketplace"}, true},
		{page.Element{Name: "query"}, true},
		{page.Element{Class: "x1 q=foo"}, true},
		{page.Element{ID: "SEARCHBOX"}, true},
		{page.Element{InSearchRegion: true}, true},
		{page.Element{Placeholder: "Year", Name: "year"}, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsSearchContext(c.el), "%+v", c.el)
	}
}

func TestScanTextInputs(t *testing.T) {
	p := newPage(t, `<body>
		<input type="text" placeholder="Search for cars">
		<div>Vehicle make <input type="text"></div>
		<div style="display:none">Make <input type="text" name="hidden"></div>
		<label>Model<input></label>
	</body>`)
	ctx := context.Background()

	el, err := ScanTextInputs(ctx, p, "Make")
	require.NoError(t, err)
	assert.Equal(t, "", el.Name)
	assert.Contains(t, el.ContainerText, "Vehicle make")

	el, err = ScanTextInputs(ctx, p, "model")
	require.NoError(t, err)
	assert.Equal(t, "input", el.Tag)
	assert.Equal(t, "Model", el.ContainerText)

	_, err = ScanTextInputs(ctx, p, "cars")
	assert.True(t, errors.Is(err, ErrNotFound), "search inputs are never accepted")
}

func TestLocateWithin_ResolvesOnMutation(t *testing.T) {
	p := newPage(t, `<form></form>`)
	p.MutateAfter(10*time.Millisecond, func(doc *goquery.Document) {
		doc.Find("form").AppendHtml(`<input name="price">`)
	})

	el, err := LocateWithin(context.Background(), p, []string{`input[aria-label="Price"]`, `input[name="price"]`}, Options{MustBeVisible: true}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "price", el.Name)
}

func TestLocateWithin_ZeroTimeoutChecksOnce(t *testing.T) {
	p := newPage(t, `<form><input name="price"></form>`)
	el, err := LocateWithin(context.Background(), p, []string{`input[name="price"]`}, Options{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "price", el.Name)
}

func TestLocateWithin_Timeout(t *testing.T) {
	p := newPage(t, `<form></form>`)
	start := time.Now()
	_, err := LocateWithin(context.Background(), p, []string{`input[name="price"]`}, Options{}, 30*time.Millisecond)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestWaitForAny(t *testing.T) {
	p := newPage(t, `<div id="root"></div>`)
	p.MutateAfter(10*time.Millisecond, func(doc *goquery.Document) {
		doc.Find("#root").AppendHtml(`<textarea></textarea>`)
	})

	ready, err := WaitForAny(context.Background(), p, [][]string{{"form input"}, {"textarea"}}, time.Second, time.Second)
	require.NoError(t, err)
	assert.True(t, ready)

	empty := newPage(t, `<div></div>`)
	start := time.Now()
	ready, err = WaitForAny(context.Background(), empty, [][]string{{"form input"}}, 20*time.Millisecond, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestAwait_ContextCancelled(t *testing.T) {
	p := newPage(t, `<div></div>`)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := LocateWithin(ctx, p, []string{"form"}, Options{}, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
