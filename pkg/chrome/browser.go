package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"listingpilot/backend/internal/config"
)

// Browser owns the one Chrome the operator stays logged into. It either
// attaches to an already running instance (DebugURL) or launches one with a
// persistent profile so the marketplace session survives restarts.
type Browser struct {
	mutex   sync.Mutex
	cfg     config.ChromeConfig
	match   string
	cmd     *exec.Cmd
	baseURL string
	client  *http.Client

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tabTarget   string
}

// Target is one entry of the DevTools /json listing.
type Target struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// NewBrowser prepares a browser whose preferred tab is the one whose URL
// contains match.
func NewBrowser(cfg config.ChromeConfig, match string) *Browser {
	return &Browser{
		cfg:    cfg,
		match:  match,
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

// Start launches Chrome unless a debug URL was configured, then waits for
// the DevTools endpoint to answer.
func (b *Browser) Start(ctx context.Context) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.cfg.DebugURL != "" {
		b.baseURL = strings.TrimRight(b.cfg.DebugURL, "/")
		log.Printf("🔗 Attaching to running Chrome at %s", b.baseURL)
		return b.waitReady(ctx, 15*time.Second)
	}

	path := FindExecutable()
	if path == "" {
		return fmt.Errorf("chrome not found: install Chrome or set CHROME_PATH")
	}

	args := []string{
		"--remote-debugging-port=" + strconv.Itoa(b.cfg.DebugPort),
		"--user-data-dir=" + b.cfg.UserDataDir,
		fmt.Sprintf("--window-size=%d,%d", b.cfg.Width, b.cfg.Height),
		"--no-first-run",
		"--no-default-browser-check",
	}
	if b.cfg.HeadlessMode {
		args = append(args, "--headless=new")
	}

	b.cmd = exec.Command(path, args...)
	log.Printf("🚀 Starting Chrome: %s %v", path, args)
	if err := b.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start Chrome: %w", err)
	}
	log.Printf("📝 Chrome process started: PID=%d, Port=%d", b.cmd.Process.Pid, b.cfg.DebugPort)

	b.baseURL = fmt.Sprintf("http://localhost:%d", b.cfg.DebugPort)
	if err := b.waitReady(ctx, 15*time.Second); err != nil {
		b.kill()
		return fmt.Errorf("chrome failed to start properly: %w", err)
	}
	return nil
}

// waitReady polls the DevTools version endpoint until it answers.
func (b *Browser) waitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/json/version", nil)
		if err != nil {
			return err
		}
		resp, err := b.client.Do(req)
		if err == nil {
			resp.Body.Close()
			log.Printf("✅ Chrome debugging endpoint is ready at %s", b.baseURL)
			return nil
		}
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("debugging endpoint %s not ready within %v", b.baseURL, timeout)
}

// Targets lists the open page targets.
func (b *Browser) Targets(ctx context.Context) ([]Target, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/json/list", nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list tabs: status %d", resp.StatusCode)
	}

	var all []Target
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		return nil, fmt.Errorf("decode tab list: %w", err)
	}
	pages := all[:0]
	for _, t := range all {
		if t.Type == "page" {
			pages = append(pages, t)
		}
	}
	return pages, nil
}

// PickTarget prefers a tab already on the marketplace, then the first page.
func PickTarget(targets []Target, match string) (Target, bool) {
	if match != "" {
		for _, t := range targets {
			if strings.Contains(t.URL, match) {
				return t, true
			}
		}
	}
	if len(targets) > 0 {
		return targets[0], true
	}
	return Target{}, false
}

// Attach returns a chromedp context bound to the marketplace tab. It has the
// signature of page.Attacher and is called again whenever the previous tab
// context died.
func (b *Browser) Attach(ctx context.Context) (context.Context, error) {
	targets, err := b.Targets(ctx)
	if err != nil {
		return nil, err
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.allocCtx == nil || b.allocCtx.Err() != nil {
		b.allocCtx, b.allocCancel = chromedp.NewRemoteAllocator(context.Background(), b.baseURL)
	}
	b.releaseTab(targets)

	var opts []chromedp.ContextOption
	if t, ok := PickTarget(targets, b.match); ok {
		log.Printf("🗂️ Attaching to tab %q (%s)", t.Title, t.URL)
		opts = append(opts, chromedp.WithTargetID(target.ID(t.ID)))
	} else {
		log.Printf("🗂️ No open tab, creating one")
	}

	tabCtx, cancel := chromedp.NewContext(b.allocCtx, opts...)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("attach to tab: %w", err)
	}
	b.tabCancel = cancel
	if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil {
		b.tabTarget = string(c.Target.TargetID)
	}
	return tabCtx, nil
}

func (b *Browser) external() bool {
	return b.cfg.DebugURL != ""
}

// releaseTab drops the previous tab session. Cancelling a chromedp context on
// a remote allocator closes its tab, so a tab of an external browser that is
// still open is abandoned instead.
func (b *Browser) releaseTab(open []Target) {
	if b.tabCancel == nil {
		return
	}
	if b.external() && b.tabTarget != "" {
		for _, t := range open {
			if t.ID == b.tabTarget {
				log.Printf("🗂️ Leaving tab %s open", t.ID)
				b.tabCancel, b.tabTarget = nil, ""
				return
			}
		}
	}
	b.tabCancel()
	b.tabCancel, b.tabTarget = nil, ""
}

// Close detaches and stops the Chrome this process launched. An attached
// external browser is left running.
func (b *Browser) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.external() {
		// The DevTools connection goes away with the process.
		log.Printf("🔌 Detaching from Chrome at %s, tabs left open", b.baseURL)
		b.tabCancel, b.allocCancel, b.tabTarget = nil, nil, ""
		return
	}
	if b.tabCancel != nil {
		b.tabCancel()
		b.tabCancel = nil
	}
	if b.allocCancel != nil {
		b.allocCancel()
		b.allocCancel = nil
	}
	b.kill()
}

func (b *Browser) kill() {
	if b.cmd == nil || b.cmd.Process == nil {
		return
	}
	pid := b.cmd.Process.Pid
	if err := b.cmd.Process.Signal(os.Interrupt); err != nil {
		log.Printf("⚠️ Failed to signal Chrome process %d: %v", pid, err)
	}

	done := make(chan error, 1)
	go func() { done <- b.cmd.Wait() }()
	select {
	case <-done:
		log.Printf("✅ Chrome process %d terminated gracefully", pid)
	case <-time.After(3 * time.Second):
		log.Printf("🔨 Graceful shutdown timeout, force killing Chrome process %d", pid)
		b.cmd.Process.Kill()
		<-done
	}
	b.cmd = nil
}
