// Package recorder runs the operator-driven field mapping wizard: for each
// mappable field it highlights the target, captures the next click and
// stores the best selector for the clicked element.
package recorder

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"listingpilot/backend/internal/mapping"
	"listingpilot/backend/internal/page"
)

// Step statuses.
const (
	StatusPending  = "pending"
	StatusWaiting  = "waiting"
	StatusCaptured = "captured"
	StatusFailed   = "failed"
)

type Pacing struct {
	Poll         time.Duration
	ConfirmPause time.Duration
}

func DefaultPacing() Pacing {
	return Pacing{Poll: 100 * time.Millisecond, ConfirmPause: 1500 * time.Millisecond}
}

// Step is the wizard's record of one field.
type Step struct {
	Field     string `json:"field"`
	Index     int    `json:"index"`
	Total     int    `json:"total"`
	Status    string `json:"status"`
	Selector  string `json:"selector,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Snapshot is the externally visible state of a wizard.
type Snapshot struct {
	SessionID   string `json:"session_id"`
	IsRecording bool   `json:"is_recording"`
	Cancelled   bool   `json:"cancelled"`
	Steps       []Step `json:"steps"`
}

type Wizard struct {
	sessionID string
	capturer  page.Capturer
	store     mapping.Store
	pacing    Pacing

	ctx         context.Context
	cancel      context.CancelFunc
	release     func()
	done        chan struct{}
	mutex       sync.RWMutex
	isRecording bool
	cancelled   bool
	steps       []Step

	wsMutex sync.Mutex
	wsConn  *websocket.Conn
}

func newWizard(sessionID string, capturer page.Capturer, store mapping.Store, pacing Pacing) *Wizard {
	if pacing.Poll <= 0 {
		pacing.Poll = 100 * time.Millisecond
	}
	steps := make([]Step, len(mapping.Fields))
	for i, f := range mapping.Fields {
		steps[i] = Step{Field: f, Index: i + 1, Total: len(mapping.Fields), Status: StatusPending}
	}
	return &Wizard{
		sessionID: sessionID,
		capturer:  capturer,
		store:     store,
		pacing:    pacing,
		release:   func() {},
		done:      make(chan struct{}),
		steps:     steps,
	}
}

func (w *Wizard) start() {
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.isRecording = true
	go w.run()
}

// Stop cancels the wizard and waits for it to detach from the page.
func (w *Wizard) Stop() {
	w.mutex.Lock()
	if w.isRecording {
		w.cancelled = true
	}
	w.mutex.Unlock()
	w.cancel()
	<-w.done
}

// Done is closed when the wizard has finished or been stopped.
func (w *Wizard) Done() <-chan struct{} { return w.done }

func (w *Wizard) IsRecording() bool {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.isRecording
}

func (w *Wizard) Snapshot() Snapshot {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return Snapshot{
		SessionID:   w.sessionID,
		IsRecording: w.isRecording,
		Cancelled:   w.cancelled,
		Steps:       append([]Step(nil), w.steps...),
	}
}

func (w *Wizard) SetWebSocketConnection(conn *websocket.Conn) {
	w.wsMutex.Lock()
	defer w.wsMutex.Unlock()
	w.wsConn = conn
}

func (w *Wizard) run() {
	defer close(w.done)
	defer w.release()
	defer w.finish()

	log.Printf("🎬 Field mapping session %s started", w.sessionID)
	for i, field := range mapping.Fields {
		if err := w.mapField(i, field); err != nil {
			if w.ctx.Err() == nil {
				log.Printf("❌ Mapping %s failed: %v", field, err)
				w.update(i, StatusFailed, "", err.Error())
			}
			return
		}
	}
	log.Printf("✅ Field mapping session %s completed", w.sessionID)
}

func (w *Wizard) mapField(i int, field string) error {
	ctx := w.ctx
	label := fieldLabel(field)

	w.update(i, StatusWaiting, "", "")
	if err := w.capturer.ShowIndicator(ctx, fmt.Sprintf("Click the %s field (%d/%d)", label, i+1, len(mapping.Fields))); err != nil {
		return fmt.Errorf("show indicator: %w", err)
	}
	if err := w.capturer.InstallClickCapture(ctx); err != nil {
		return fmt.Errorf("install click capture: %w", err)
	}

	captured, err := w.awaitClick(ctx)
	if err != nil {
		return err
	}

	selector := BestSelector(*captured)
	if err := w.store.Save(ctx, field, selector); err != nil {
		return fmt.Errorf("save mapping: %w", err)
	}
	log.Printf("📌 Mapped %s to %s", field, selector)
	w.update(i, StatusCaptured, selector, "")

	if err := w.capturer.ShowIndicator(ctx, fmt.Sprintf("✓ %s mapped", label)); err != nil {
		log.Printf("⚠️ Could not show confirmation: %v", err)
	}
	if err := sleep(ctx, w.pacing.ConfirmPause); err != nil {
		return err
	}
	return w.capturer.RemoveClickCapture(ctx)
}

func (w *Wizard) awaitClick(ctx context.Context) (*page.Captured, error) {
	ticker := time.NewTicker(w.pacing.Poll)
	defer ticker.Stop()

	for {
		captured, err := w.capturer.TakeCapture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("Error reading captured click: %v", err)
		} else if captured != nil {
			return captured, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// finish detaches from the page even when the wizard was cancelled.
func (w *Wizard) finish() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.capturer.RemoveClickCapture(ctx); err != nil {
		log.Printf("⚠️ Failed to remove click capture: %v", err)
	}
	if err := w.capturer.HideIndicator(ctx); err != nil {
		log.Printf("⚠️ Failed to hide indicator: %v", err)
	}

	w.mutex.Lock()
	w.isRecording = false
	w.mutex.Unlock()
	w.send(map[string]any{"type": "finished", "session_id": w.sessionID, "cancelled": w.Snapshot().Cancelled})
}

func (w *Wizard) update(i int, status, selector, errMsg string) {
	w.mutex.Lock()
	step := &w.steps[i]
	step.Status = status
	step.Selector = selector
	step.Error = errMsg
	step.Timestamp = time.Now().UnixMilli()
	snapshot := *step
	w.mutex.Unlock()

	w.send(snapshot)
}

func (w *Wizard) send(v any) {
	w.wsMutex.Lock()
	defer w.wsMutex.Unlock()
	if w.wsConn == nil {
		return
	}
	if err := w.wsConn.WriteJSON(v); err != nil {
		log.Printf("WebSocket write error: %v", err)
		w.wsConn = nil
	}
}

var fieldLabels = map[string]string{
	"vehicle-type": "Vehicle type",
	"year":         "Year",
	"make":         "Make",
	"model":        "Model",
	"mileage":      "Mileage",
	"price":        "Price",
	"description":  "Description",
}

func fieldLabel(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
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
