package page

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// HTMLPage is an in-memory document that behaves like a browser tab for the
// purposes of the engine. It backs the offline rehearse command and the tests.
type HTMLPage struct {
	mutex           sync.Mutex
	doc             *goquery.Document
	url             string
	blockNavigation bool
	nextRef         int
	focused         *html.Node
	events          []Event
	navigations     []string
	files           map[string][]File
	mutated         chan struct{}
	clickHooks      []clickHook

	captureInstalled bool
	captureInstalls  int
	captured         *Captured
	indicator        string
}

// Event is one interaction recorded by HTMLPage.
type Event struct {
	Ref   string `json:"ref" yaml:"ref"`
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

type clickHook struct {
	matcher cascadia.Selector
	fn      func(doc *goquery.Document)
}

type HTMLOption func(*HTMLPage)

func WithURL(u string) HTMLOption {
	return func(p *HTMLPage) { p.url = u }
}

// WithBlockedNavigation makes Navigate a no-op, like a page that never leaves.
func WithBlockedNavigation() HTMLOption {
	return func(p *HTMLPage) { p.blockNavigation = true }
}

func NewHTMLPage(markup string, opts ...HTMLOption) (*HTMLPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	p := &HTMLPage{
		doc:     doc,
		url:     "about:blank",
		files:   make(map[string][]File),
		mutated: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *HTMLPage) URL(ctx context.Context) (string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.url, nil
}

func (p *HTMLPage) Navigate(ctx context.Context, target string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.navigations = append(p.navigations, target)
	if p.blockNavigation {
		return nil
	}
	if base, err := url.Parse(p.url); err == nil {
		if ref, err := url.Parse(target); err == nil {
			p.url = base.ResolveReference(ref).String()
			return nil
		}
	}
	p.url = target
	return nil
}

func (p *HTMLPage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	nodes, err := p.match(selector)
	if err != nil {
		return nil, err
	}
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, p.snapshot(n))
	}
	return elements, nil
}

func (p *HTMLPage) match(selector string) ([]*html.Node, error) {
	if IsXPath(selector) {
		n, err := resolveXPath(p.doc.Get(0), selector)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return nil, nil
		}
		return []*html.Node{n}, nil
	}
	compiled, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrUnsupportedSelector, selector, err)
	}
	return compiled.MatchAll(p.doc.Get(0)), nil
}

func (p *HTMLPage) NextMutation(ctx context.Context, max time.Duration) (bool, error) {
	p.mutex.Lock()
	ch := p.mutated
	p.mutex.Unlock()

	timer := time.NewTimer(max)
	defer timer.Stop()

	select {
	case <-ch:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Mutate changes the document and wakes every NextMutation waiter.
func (p *HTMLPage) Mutate(fn func(doc *goquery.Document)) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	fn(p.doc)
	p.signalLocked()
}

// MutateAfter applies fn from a separate goroutine once delay has passed.
func (p *HTMLPage) MutateAfter(delay time.Duration, fn func(doc *goquery.Document)) {
	go func() {
		time.Sleep(delay)
		p.Mutate(fn)
	}()
}

// OnClick registers fn to run whenever an element matching selector is clicked.
func (p *HTMLPage) OnClick(selector string, fn func(doc *goquery.Document)) error {
	compiled, err := cascadia.Compile(selector)
	if err != nil {
		return err
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.clickHooks = append(p.clickHooks, clickHook{matcher: compiled, fn: fn})
	return nil
}

func (p *HTMLPage) signalLocked() {
	close(p.mutated)
	p.mutated = make(chan struct{})
}

func (p *HTMLPage) byRef(ref string) (*html.Node, error) {
	nodes, err := p.match(ref)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%s: %w", ref, ErrDetached)
	}
	return nodes[0], nil
}

func (p *HTMLPage) record(ref, typ, value string) {
	p.events = append(p.events, Event{Ref: ref, Type: typ, Value: value})
}

func (p *HTMLPage) Focus(ctx context.Context, ref string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	n, err := p.byRef(ref)
	if err != nil {
		return err
	}
	p.focused = n
	p.record(ref, "focus", "")
	return nil
}

func (p *HTMLPage) SelectAll(ctx context.Context, ref string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, err := p.byRef(ref); err != nil {
		return err
	}
	p.record(ref, "select", "")
	return nil
}

func (p *HTMLPage) SetValue(ctx context.Context, ref, value string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	n, err := p.byRef(ref)
	if err != nil {
		return err
	}
	p.setValueLocked(n, value)
	p.record(ref, "value", value)
	return nil
}

func (p *HTMLPage) SetText(ctx context.Context, ref, text string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	n, err := p.byRef(ref)
	if err != nil {
		return err
	}
	p.doc.FindNodes(n).SetText(text)
	p.record(ref, "text", text)
	return nil
}

func (p *HTMLPage) Dispatch(ctx context.Context, ref, event string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, err := p.byRef(ref); err != nil {
		return err
	}
	p.record(ref, event, "")
	return nil
}

func (p *HTMLPage) Click(ctx context.Context, ref string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	n, err := p.byRef(ref)
	if err != nil {
		return err
	}
	p.clickLocked(ref, n)
	return nil
}

func (p *HTMLPage) clickLocked(ref string, n *html.Node) {
	p.record(ref, "click", "")
	p.focused = focusTarget(p.doc.FindNodes(n))

	ran := false
	for _, hook := range p.clickHooks {
		if hook.matcher.Match(n) {
			hook.fn(p.doc)
			ran = true
		}
	}
	if ran {
		p.signalLocked()
	}
}

// focusTarget mirrors what a click focuses: the element itself when editable,
// otherwise its first editable descendant.
func focusTarget(s *goquery.Selection) *html.Node {
	if isEditable(s) {
		return s.Get(0)
	}
	inner := s.Find(`input, textarea, [contenteditable]:not([contenteditable="false"])`).First()
	if inner.Length() > 0 {
		return inner.Get(0)
	}
	return s.Get(0)
}

func isEditable(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "input", "textarea", "select":
		return true
	}
	return contentEditable(s.Get(0))
}

func (p *HTMLPage) InsertText(ctx context.Context, text string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.focused == nil {
		return fmt.Errorf("insert text: nothing has focus")
	}
	p.setValueLocked(p.focused, text)
	p.record(p.refOf(p.focused), "insertText", text)
	return nil
}

func (p *HTMLPage) TypeKey(ctx context.Context, key string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.focused == nil {
		return fmt.Errorf("type key: nothing has focus")
	}
	p.setValueLocked(p.focused, p.valueLocked(p.focused)+key)
	p.record(p.refOf(p.focused), "key", key)
	return nil
}

func (p *HTMLPage) SetFiles(ctx context.Context, ref string, files []File) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, err := p.byRef(ref); err != nil {
		return err
	}
	p.files[ref] = append([]File(nil), files...)
	p.record(ref, "files", strconv.Itoa(len(files)))
	return nil
}

func (p *HTMLPage) ShowIndicator(ctx context.Context, text string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.indicator = text
	return nil
}

func (p *HTMLPage) HideIndicator(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.indicator = ""
	return nil
}

func (p *HTMLPage) InstallClickCapture(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if !p.captureInstalled {
		p.captureInstalled = true
		p.captureInstalls++
	}
	return nil
}

func (p *HTMLPage) RemoveClickCapture(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.captureInstalled = false
	p.captured = nil
	return nil
}

func (p *HTMLPage) TakeCapture(ctx context.Context) (*Captured, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	c := p.captured
	p.captured = nil
	return c, nil
}

// UserClick simulates an operator click. While a capture is installed the click
// is swallowed and described, otherwise it behaves like Click.
func (p *HTMLPage) UserClick(selector string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	nodes, err := p.match(selector)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%s: no element", selector)
	}
	n := nodes[0]
	if p.captureInstalled {
		p.captured = describe(p.doc.FindNodes(n))
		return nil
	}
	p.clickLocked(p.refOf(n), n)
	return nil
}

func (p *HTMLPage) CaptureInstalled() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.captureInstalled
}

func (p *HTMLPage) CaptureInstalls() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.captureInstalls
}

func (p *HTMLPage) Indicator() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.indicator
}

func (p *HTMLPage) Events() []Event {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]Event(nil), p.events...)
}

func (p *HTMLPage) Navigations() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]string(nil), p.navigations...)
}

// Value returns the current value of the first element matching selector.
func (p *HTMLPage) Value(selector string) (string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	nodes, err := p.match(selector)
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return "", fmt.Errorf("%s: no element", selector)
	}
	return p.valueLocked(nodes[0]), nil
}

// Files returns the uploads assigned to the first element matching selector.
func (p *HTMLPage) Files(selector string) []File {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	nodes, err := p.match(selector)
	if err != nil || len(nodes) == 0 {
		return nil
	}
	return append([]File(nil), p.files[p.refOf(nodes[0])]...)
}

// FormState lists every form control that holds a value, keyed by its most
// readable identifier.
func (p *HTMLPage) FormState() map[string]string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	state := make(map[string]string)
	p.doc.Find(`input, textarea, select, [contenteditable]`).Each(func(i int, s *goquery.Selection) {
		n := s.Get(0)
		value := p.valueLocked(n)
		if files := p.files[p.refOf(n)]; len(files) > 0 {
			names := make([]string, 0, len(files))
			for _, f := range files {
				names = append(names, f.Name)
			}
			value = strings.Join(names, ",")
		}
		if value == "" {
			return
		}
		key := firstNonEmpty(s.AttrOr("name", ""), s.AttrOr("id", ""), s.AttrOr("aria-label", ""),
			s.AttrOr("placeholder", ""), goquery.NodeName(s)+"#"+strconv.Itoa(i))
		state[key] = value
	})
	return state
}

func (p *HTMLPage) refOf(n *html.Node) string {
	s := p.doc.FindNodes(n)
	ref, ok := s.Attr("data-lp-ref")
	if !ok {
		p.nextRef++
		ref = strconv.Itoa(p.nextRef)
		s.SetAttr("data-lp-ref", ref)
	}
	return `[data-lp-ref="` + ref + `"]`
}

func (p *HTMLPage) snapshot(n *html.Node) Element {
	s := p.doc.FindNodes(n)
	el := Element{
		Ref:             p.refOf(n),
		Tag:             goquery.NodeName(s),
		Type:            s.AttrOr("type", ""),
		ID:              s.AttrOr("id", ""),
		Name:            s.AttrOr("name", ""),
		Class:           s.AttrOr("class", ""),
		Placeholder:     s.AttrOr("placeholder", ""),
		AriaLabel:       s.AttrOr("aria-label", ""),
		TestID:          s.AttrOr("data-testid", ""),
		Role:            s.AttrOr("role", ""),
		Visible:         visible(n),
		ContentEditable: contentEditable(n),
		InSearchRegion:  s.Closest(`[role="search"], [data-testid*="search" i]`).Length() > 0,
		Text:            clip(strings.TrimSpace(s.Text()), 200),
	}
	if container := s.Closest("label, div"); container.Length() > 0 {
		el.ContainerText = clip(strings.TrimSpace(container.Text()), 200)
	}
	if el.Tag == "select" {
		s.Find("option").Each(func(_ int, o *goquery.Selection) {
			el.Options = append(el.Options, Option{Value: optionValue(o), Text: strings.TrimSpace(o.Text())})
		})
	}
	return el
}

func (p *HTMLPage) valueLocked(n *html.Node) string {
	s := p.doc.FindNodes(n)
	switch goquery.NodeName(s) {
	case "input":
		return s.AttrOr("value", "")
	case "textarea":
		return s.Text()
	case "select":
		selected := s.Find("option[selected]").First()
		if selected.Length() == 0 {
			selected = s.Find("option").First()
		}
		if selected.Length() == 0 {
			return ""
		}
		return optionValue(selected)
	}
	return s.Text()
}

func (p *HTMLPage) setValueLocked(n *html.Node, value string) {
	s := p.doc.FindNodes(n)
	switch goquery.NodeName(s) {
	case "input":
		s.SetAttr("value", value)
	case "select":
		s.Find("option").Each(func(_ int, o *goquery.Selection) {
			if optionValue(o) == value {
				o.SetAttr("selected", "")
			} else {
				o.RemoveAttr("selected")
			}
		})
	default:
		s.SetText(value)
	}
}

func optionValue(o *goquery.Selection) string {
	if v, ok := o.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(o.Text())
}

// visible approximates offsetParent !== null: nothing on the ancestor chain
// is display:none or hidden.
func visible(n *html.Node) bool {
	if n.Type == html.ElementNode && n.Data == "input" && strings.EqualFold(attr(n, "type"), "hidden") {
		return false
	}
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if _, ok := attrOK(cur, "hidden"); ok {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(attr(cur, "style")), " ", "")
		if strings.Contains(style, "display:none") {
			return false
		}
	}
	return true
}

func contentEditable(n *html.Node) bool {
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if v, ok := attrOK(cur, "contenteditable"); ok {
			return !strings.EqualFold(v, "false")
		}
	}
	return false
}

func describe(s *goquery.Selection) *Captured {
	n := s.Get(0)
	var classes []string
	if cls := strings.TrimSpace(s.AttrOr("class", "")); cls != "" {
		classes = strings.Fields(cls)
	}
	return &Captured{
		XPath:       xpathOf(n),
		Tag:         goquery.NodeName(s),
		ID:          s.AttrOr("id", ""),
		Classes:     classes,
		AriaLabel:   s.AttrOr("aria-label", ""),
		TestID:      s.AttrOr("data-testid", ""),
		Name:        s.AttrOr("name", ""),
		Placeholder: s.AttrOr("placeholder", ""),
		Role:        s.AttrOr("role", ""),
		Text:        clip(strings.TrimSpace(s.Text()), 100),
	}
}

func attr(n *html.Node, key string) string {
	v, _ := attrOK(n, key)
	return v
}

func attrOK(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
