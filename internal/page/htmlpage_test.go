package page

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `<html><body>
<div role="search"><input type="text" placeholder="Search Marketplace" name="q"></div>
<form>
  <label>Price <input id="price" name="price" placeholder="Price"></label>
  <div style="display: none"><input name="hidden-year"></div>
  <input type="hidden" name="token" value="abc">
  <select name="year"><option value="">Year</option><option value="2020">2020</option><option>2021</option></select>
  <textarea aria-label="Description"></textarea>
  <div contenteditable="true" aria-label="Notes"><span>inner</span></div>
  <input type="file" accept="image/*" style="display:none">
</form>
</body></html>`

func newFixture(t *testing.T, opts ...HTMLOption) *HTMLPage {
	t.Helper()
	p, err := NewHTMLPage(fixture, opts...)
	require.NoError(t, err)
	return p
}

func TestQueryAll_Snapshot(t *testing.T) {
	p := newFixture(t)
	ctx := context.Background()

	els, err := p.QueryAll(ctx, "#price")
	require.NoError(t, err)
	require.Len(t, els, 1)
	el := els[0]
	assert.Equal(t, "input", el.Tag)
	assert.Equal(t, "price", el.Name)
	assert.True(t, el.Visible)
	assert.False(t, el.InSearchRegion)
	assert.Contains(t, el.ContainerText, "Price")
	assert.Equal(t, NativeInput, el.Kind())
	assert.Equal(t, `[data-lp-ref="1"]`, el.Ref)

	again, err := p.QueryAll(ctx, "#price")
	require.NoError(t, err)
	assert.Equal(t, el.Ref, again[0].Ref, "refs are stable")

	search, err := p.QueryAll(ctx, `input[name="q"]`)
	require.NoError(t, err)
	assert.True(t, search[0].InSearchRegion)

	hidden, err := p.QueryAll(ctx, `input[name="hidden-year"], input[type="hidden"]`)
	require.NoError(t, err)
	require.Len(t, hidden, 2)
	assert.False(t, hidden[0].Visible)
	assert.False(t, hidden[1].Visible)

	sel, err := p.QueryAll(ctx, "select")
	require.NoError(t, err)
	assert.Equal(t, NativeSelect, sel[0].Kind())
	assert.Equal(t, []Option{{Value: "", Text: "Year"}, {Value: "2020", Text: "2020"}, {Value: "2021", Text: "2021"}}, sel[0].Options)

	editable, err := p.QueryAll(ctx, "span")
	require.NoError(t, err)
	assert.True(t, editable[0].ContentEditable, "inherits from ancestor")
	assert.Equal(t, ContentEditable, editable[0].Kind())
}

func TestQueryAll_CaseInsensitiveAttribute(t *testing.T) {
	p := newFixture(t)
	els, err := p.QueryAll(context.Background(), `textarea[aria-label*="description" i]`)
	require.NoError(t, err)
	assert.Len(t, els, 1)
}

func TestQueryAll_InvalidSelector(t *testing.T) {
	p := newFixture(t)
	_, err := p.QueryAll(context.Background(), "input[")
	assert.True(t, errors.Is(err, ErrUnsupportedSelector))

	_, err = p.QueryAll(context.Background(), `//button[normalize-space(.)="Next"]`)
	assert.True(t, errors.Is(err, ErrUnsupportedSelector))
}

func TestValueOperations(t *testing.T) {
	p := newFixture(t)
	ctx := context.Background()

	els, _ := p.QueryAll(ctx, "#price")
	require.NoError(t, p.SetValue(ctx, els[0].Ref, "18500"))
	v, err := p.Value("#price")
	require.NoError(t, err)
	assert.Equal(t, "18500", v)

	sel, _ := p.QueryAll(ctx, "select")
	require.NoError(t, p.SetValue(ctx, sel[0].Ref, "2021"))
	v, _ = p.Value("select")
	assert.Equal(t, "2021", v)

	ta, _ := p.QueryAll(ctx, "textarea")
	require.NoError(t, p.SetValue(ctx, ta[0].Ref, "Clean car"))
	v, _ = p.Value("textarea")
	assert.Equal(t, "Clean car", v)

	err = p.Focus(ctx, `[data-lp-ref="999"]`)
	assert.True(t, errors.Is(err, ErrDetached))
}

func TestClickFocusesAndTypes(t *testing.T) {
	p := newFixture(t)
	ctx := context.Background()

	label, err := p.QueryAll(ctx, "label")
	require.NoError(t, err)
	require.NoError(t, p.Click(ctx, label[0].Ref))
	require.NoError(t, p.InsertText(ctx, "99"))
	require.NoError(t, p.TypeKey(ctx, "5"))

	v, _ := p.Value("#price")
	assert.Equal(t, "995", v)
}

func TestInsertTextWithoutFocus(t *testing.T) {
	p := newFixture(t)
	assert.Error(t, p.InsertText(context.Background(), "x"))
}

func TestNextMutation(t *testing.T) {
	p := newFixture(t)
	ctx := context.Background()

	mutated, err := p.NextMutation(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, mutated)

	p.MutateAfter(5*time.Millisecond, func(doc *goquery.Document) {
		doc.Find("form").AppendHtml(`<input name="late">`)
	})
	mutated, err = p.NextMutation(ctx, time.Second)
	require.NoError(t, err)
	assert.True(t, mutated)

	els, _ := p.QueryAll(ctx, `input[name="late"]`)
	assert.Len(t, els, 1)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.NextMutation(cancelled, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClickHooks(t *testing.T) {
	p := newFixture(t)
	ctx := context.Background()
	require.NoError(t, p.OnClick("#price", func(doc *goquery.Document) {
		doc.Find("body").AppendHtml(`<div role="listbox"><div role="option">2020</div></div>`)
	}))

	els, _ := p.QueryAll(ctx, "#price")
	require.NoError(t, p.Click(ctx, els[0].Ref))

	opts, _ := p.QueryAll(ctx, `[role="option"]`)
	assert.Len(t, opts, 1)
}

func TestNavigate(t *testing.T) {
	p := newFixture(t, WithURL("https://www.example.com/marketplace"))
	ctx := context.Background()

	require.NoError(t, p.Navigate(ctx, "/marketplace/create/vehicle"))
	u, _ := p.URL(ctx)
	assert.Equal(t, "https://www.example.com/marketplace/create/vehicle", u)

	blocked := newFixture(t, WithURL("https://www.example.com/"), WithBlockedNavigation())
	require.NoError(t, blocked.Navigate(ctx, "/marketplace/create/vehicle"))
	u, _ = blocked.URL(ctx)
	assert.Equal(t, "https://www.example.com/", u)
	assert.Equal(t, []string{"/marketplace/create/vehicle"}, blocked.Navigations())
}

func TestCaptureAndXPathRoundTrip(t *testing.T) {
	p := newFixture(t)
	ctx := context.Background()

	require.NoError(t, p.InstallClickCapture(ctx))
	require.NoError(t, p.UserClick("textarea"))

	c, err := p.TakeCapture(ctx)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "/html[1]/body[1]/form[1]/textarea[1]", c.XPath)
	assert.Equal(t, "Description", c.AriaLabel)

	again, _ := p.TakeCapture(ctx)
	assert.Nil(t, again, "capture is consumed")

	els, err := p.QueryAll(ctx, c.XPath)
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "textarea", els[0].Tag)

	missing, err := p.QueryAll(ctx, "/html[1]/body[1]/form[2]")
	require.NoError(t, err)
	assert.Empty(t, missing)

	require.NoError(t, p.RemoveClickCapture(ctx))
	assert.False(t, p.CaptureInstalled())
	assert.Equal(t, 1, p.CaptureInstalls())
}

func TestSetFilesAndFormState(t *testing.T) {
	p := newFixture(t)
	ctx := context.Background()

	els, _ := p.QueryAll(ctx, `input[type="file"]`)
	require.NoError(t, p.SetFiles(ctx, els[0].Ref, []File{{Name: "image_1.jpg", MIME: "image/jpeg", Data: []byte{1}}}))
	assert.Len(t, p.Files(`input[type="file"]`), 1)

	price, _ := p.QueryAll(ctx, "#price")
	require.NoError(t, p.SetValue(ctx, price[0].Ref, "100"))

	state := p.FormState()
	assert.Equal(t, "100", state["price"])
	assert.Equal(t, "image_1.jpg", state["input#7"])
}
