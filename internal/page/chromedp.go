package page

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Attacher returns a chromedp context bound to the marketplace tab.
type Attacher func(ctx context.Context) (context.Context, error)

// ChromePage implements Page and Capturer over a live tab. The tab context is
// obtained lazily and re-attached when it has been cancelled.
type ChromePage struct {
	mutex      sync.Mutex
	attach     Attacher
	tabCtx     context.Context
	uploadDir  string
	queryLimit int
}

func NewChromePage(attach Attacher) *ChromePage {
	return &ChromePage{attach: attach, queryLimit: 200}
}

func (p *ChromePage) tab(ctx context.Context) (context.Context, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.tabCtx != nil && p.tabCtx.Err() == nil {
		return p.tabCtx, nil
	}
	tabCtx, err := p.attach(ctx)
	if err != nil {
		return nil, fmt.Errorf("attach to browser tab: %w", err)
	}
	p.tabCtx = tabCtx
	return tabCtx, nil
}

// run executes actions on the tab while honouring the caller's cancellation.
func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	tabCtx, err := p.tab(ctx)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *ChromePage) URL(ctx context.Context) (string, error) {
	var location string
	if err := p.run(ctx, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	script := fmt.Sprintf(`window.location.href = %s`, strconv.Quote(url))
	return p.run(ctx, chromedp.Evaluate(script, nil))
}

type queryResult struct {
	Error    string    `json:"error"`
	Elements []Element `json:"elements"`
}

func (p *ChromePage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	var res queryResult
	script := fmt.Sprintf(queryScript, strconv.Quote(selector), p.queryLimit)
	if err := p.run(ctx, chromedp.Evaluate(script, &res)); err != nil {
		return nil, err
	}
	if res.Error != "" {
		return nil, fmt.Errorf("%w %q: %s", ErrUnsupportedSelector, selector, res.Error)
	}
	return res.Elements, nil
}

func (p *ChromePage) NextMutation(ctx context.Context, max time.Duration) (bool, error) {
	var mutated bool
	script := fmt.Sprintf(mutationScript, max.Milliseconds())
	awaitPromise := func(params *runtime.EvaluateParams) *runtime.EvaluateParams {
		return params.WithAwaitPromise(true)
	}
	if err := p.run(ctx, chromedp.Evaluate(script, &mutated, awaitPromise)); err != nil {
		return false, err
	}
	return mutated, nil
}

func (p *ChromePage) onElement(ctx context.Context, ref, body, arg string) error {
	script := fmt.Sprintf(`(function(ref, arg) {
	var el = document.querySelector(ref);
	if (!el) return false;
	%s
	return true;
})(%s, %s)`, body, strconv.Quote(ref), strconv.Quote(arg))

	var ok bool
	if err := p.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", ref, ErrDetached)
	}
	return nil
}

func (p *ChromePage) Focus(ctx context.Context, ref string) error {
	return p.onElement(ctx, ref, `el.focus();`, "")
}

func (p *ChromePage) SelectAll(ctx context.Context, ref string) error {
	return p.onElement(ctx, ref, `
	if (typeof el.select === 'function') {
		el.select();
	} else if (el.isContentEditable) {
		var range = document.createRange();
		range.selectNodeContents(el);
		var sel = window.getSelection();
		sel.removeAllRanges();
		sel.addRange(range);
	}`, "")
}

// SetValue goes through the prototype's value setter so virtual-DOM frameworks
// that shadow the instance property still see the change.
func (p *ChromePage) SetValue(ctx context.Context, ref, value string) error {
	return p.onElement(ctx, ref, `
	var proto = el.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype
		: el.tagName === 'SELECT' ? HTMLSelectElement.prototype
		: HTMLInputElement.prototype;
	var desc = Object.getOwnPropertyDescriptor(proto, 'value');
	if (desc && desc.set) {
		desc.set.call(el, arg);
	} else {
		el.value = arg;
	}`, value)
}

func (p *ChromePage) SetText(ctx context.Context, ref, text string) error {
	return p.onElement(ctx, ref, `el.textContent = arg;`, text)
}

func (p *ChromePage) Dispatch(ctx context.Context, ref, event string) error {
	return p.onElement(ctx, ref, `
	var ev;
	if (arg === 'input') {
		ev = new InputEvent('input', {bubbles: true, cancelable: true, inputType: 'insertText'});
	} else if (arg === 'blur' || arg === 'focus') {
		ev = new FocusEvent(arg, {bubbles: true});
	} else {
		ev = new Event(arg, {bubbles: true, cancelable: true});
	}
	el.dispatchEvent(ev);`, event)
}

func (p *ChromePage) Click(ctx context.Context, ref string) error {
	return p.onElement(ctx, ref, `
	el.scrollIntoView({block: 'center'});
	['mousedown', 'mouseup'].forEach(function(type) {
		el.dispatchEvent(new MouseEvent(type, {bubbles: true, cancelable: true, view: window}));
	});
	el.click();`, "")
}

func (p *ChromePage) InsertText(ctx context.Context, text string) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.InsertText(text).Do(ctx)
	}))
}

func (p *ChromePage) TypeKey(ctx context.Context, key string) error {
	return p.run(ctx, chromedp.KeyEvent(key))
}

// SetFiles writes the files to a scratch directory that lives until the next
// upload or Close, since the browser reads them lazily.
func (p *ChromePage) SetFiles(ctx context.Context, ref string, files []File) error {
	dir, err := os.MkdirTemp("", "listingpilot-upload-")
	if err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, filepath.Base(f.Name))
		if err := os.WriteFile(path, f.Data, 0o600); err != nil {
			os.RemoveAll(dir)
			return fmt.Errorf("write upload %s: %w", f.Name, err)
		}
		paths = append(paths, path)
	}

	if err := p.run(ctx, chromedp.SetUploadFiles(ref, paths, chromedp.ByQuery)); err != nil {
		os.RemoveAll(dir)
		return err
	}

	p.mutex.Lock()
	previous := p.uploadDir
	p.uploadDir = dir
	p.mutex.Unlock()
	if previous != "" {
		os.RemoveAll(previous)
	}
	return nil
}

func (p *ChromePage) ShowIndicator(ctx context.Context, text string) error {
	script := fmt.Sprintf(indicatorScript, strconv.Quote(text))
	return p.run(ctx, chromedp.Evaluate(script, nil))
}

func (p *ChromePage) HideIndicator(ctx context.Context) error {
	return p.run(ctx, chromedp.Evaluate(`(function() {
	var el = document.getElementById('__lp-indicator');
	if (el) el.remove();
})()`, nil))
}

func (p *ChromePage) InstallClickCapture(ctx context.Context) error {
	return p.run(ctx, chromedp.Evaluate(captureInstallScript, nil))
}

func (p *ChromePage) RemoveClickCapture(ctx context.Context) error {
	return p.run(ctx, chromedp.Evaluate(`(function() {
	var state = window.__lpCapture;
	if (!state) return;
	document.removeEventListener('click', state.handler, true);
	delete window.__lpCapture;
})()`, nil))
}

func (p *ChromePage) TakeCapture(ctx context.Context) (*Captured, error) {
	var captured *Captured
	err := p.run(ctx, chromedp.Evaluate(`(function() {
	var state = window.__lpCapture;
	if (!state || !state.captured) return null;
	var c = state.captured;
	state.captured = null;
	return c;
})()`, &captured))
	if errors.Is(err, chromedp.ErrJSNull) {
		return nil, nil
	}
	return captured, err
}

func (p *ChromePage) Close() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.uploadDir != "" {
		if err := os.RemoveAll(p.uploadDir); err != nil {
			log.Printf("⚠️ Failed to remove upload dir %s: %v", p.uploadDir, err)
		}
		p.uploadDir = ""
	}
}

const queryScript = `(function(sel, limit) {
	var nodes = [];
	try {
		if (sel.charAt(0) === '/' || sel.charAt(0) === '(') {
			var snap = document.evaluate(sel, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
			for (var i = 0; i < snap.snapshotLength; i++) nodes.push(snap.snapshotItem(i));
		} else {
			nodes = Array.prototype.slice.call(document.querySelectorAll(sel));
		}
	} catch (e) {
		return {error: String((e && e.message) || e), elements: []};
	}
	window.__lpRefSeq = window.__lpRefSeq || 0;
	var out = [];
	for (var j = 0; j < nodes.length && out.length < limit; j++) {
		var el = nodes[j];
		if (!(el instanceof Element)) continue;
		var ref = el.getAttribute('data-lp-ref');
		if (!ref) {
			ref = String(++window.__lpRefSeq);
			el.setAttribute('data-lp-ref', ref);
		}
		var container = el.closest('label, div');
		var options = [];
		if (el.tagName === 'SELECT') {
			for (var k = 0; k < el.options.length; k++) {
				options.push({value: el.options[k].value, text: el.options[k].text});
			}
		}
		out.push({
			ref: '[data-lp-ref="' + ref + '"]',
			tag: el.tagName.toLowerCase(),
			type: el.getAttribute('type') || '',
			id: el.id || '',
			name: el.getAttribute('name') || '',
			class: el.getAttribute('class') || '',
			placeholder: el.getAttribute('placeholder') || '',
			ariaLabel: el.getAttribute('aria-label') || '',
			testId: el.getAttribute('data-testid') || '',
			role: el.getAttribute('role') || '',
			visible: el.offsetParent !== null,
			contentEditable: !!el.isContentEditable,
			inSearchRegion: !!el.closest('[role="search"], [data-testid*="search" i]'),
			containerText: container ? (container.textContent || '').trim().slice(0, 200) : '',
			text: (el.textContent || '').trim().slice(0, 200),
			options: options
		});
	}
	return {error: '', elements: out};
})(%s, %d)`

const mutationScript = `new Promise(function(resolve) {
	var target = document.body || document.documentElement;
	var settled = false;
	var timer = null;
	var observer = new MutationObserver(function() {
		if (settled) return;
		settled = true;
		observer.disconnect();
		clearTimeout(timer);
		resolve(true);
	});
	observer.observe(target, {childList: true, subtree: true});
	timer = setTimeout(function() {
		if (settled) return;
		settled = true;
		observer.disconnect();
		resolve(false);
	}, %d);
})`

const indicatorScript = `(function(text) {
	var el = document.getElementById('__lp-indicator');
	if (!el) {
		el = document.createElement('div');
		el.id = '__lp-indicator';
		el.style.cssText = 'position:fixed;top:16px;right:16px;z-index:2147483647;padding:10px 14px;' +
			'background:#1f2937;color:#fff;font:14px sans-serif;border-radius:6px;box-shadow:0 2px 8px rgba(0,0,0,.3)';
		document.body.appendChild(el);
	}
	el.textContent = text;
})(%s)`

const captureInstallScript = `(function() {
	if (window.__lpCapture) return;
	function xpathOf(el) {
		var parts = [];
		while (el && el.nodeType === 1) {
			var idx = 1;
			for (var sib = el.previousElementSibling; sib; sib = sib.previousElementSibling) {
				if (sib.tagName === el.tagName) idx++;
			}
			parts.unshift(el.tagName.toLowerCase() + '[' + idx + ']');
			el = el.parentElement;
		}
		return parts.length ? '/' + parts.join('/') : '';
	}
	var state = {captured: null};
	state.handler = function(ev) {
		var el = ev.target;
		if (!(el instanceof Element) || el.closest('#__lp-indicator')) return;
		ev.preventDefault();
		ev.stopPropagation();
		var cls = (el.getAttribute('class') || '').trim();
		state.captured = {
			xpath: xpathOf(el),
			tag: el.tagName.toLowerCase(),
			id: el.id || '',
			classes: cls ? cls.split(/\s+/) : [],
			ariaLabel: el.getAttribute('aria-label') || '',
			testId: el.getAttribute('data-testid') || '',
			name: el.getAttribute('name') || '',
			placeholder: el.getAttribute('placeholder') || '',
			role: el.getAttribute('role') || '',
			text: (el.textContent || '').trim().slice(0, 100)
		};
		el.style.outline = '3px solid #22c55e';
	};
	document.addEventListener('click', state.handler, true);
	window.__lpCapture = state;
})()`
