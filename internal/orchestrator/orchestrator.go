// Package orchestrator drives one form-fill run end to end: navigation to the
// vehicle creation page, the readiness wait and the ordered fillers.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"listingpilot/backend/internal/config"
	"listingpilot/backend/internal/fillers"
	"listingpilot/backend/internal/locator"
	"listingpilot/backend/internal/models"
	"listingpilot/backend/internal/page"
)

const (
	BusyMessage    = "Already posting a vehicle"
	MappingMessage = "Field mapping in progress"
	SuccessMessage = "Vehicle form filled successfully"
)

// IsBusy reports whether res was refused because the page was taken, so the
// same request can be retried later.
func IsBusy(res models.OperationResult) bool {
	return !res.Success && (res.Error == BusyMessage || res.Error == MappingMessage)
}

type State string

const (
	StateIdle            State = "idle"
	StateNavigating      State = "navigating"
	StateWaitingForReady State = "waiting_for_ready"
	StateFilling         State = "filling"
	StateDone            State = "done"
)

// Request is one "post vehicle" command and where it came from.
type Request struct {
	Listing models.VehicleListing
	Source  string
}

// AttemptSink receives the history row of every finished run.
type AttemptSink interface {
	Record(attempt models.PostingAttempt)
}

type Options struct {
	CreateURL         string
	CreatePath        string
	Waiter            NavigationWaiter
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	ReadyTimeout      time.Duration
	ReadyGrace        time.Duration
	Readiness         [][]string
}

func OptionsFromConfig(m config.MarketplaceConfig, t config.TimingConfig, readiness [][]string) Options {
	return Options{
		CreateURL:  m.CreateURL(),
		CreatePath: m.CreatePath,
		Waiter: NavigationWaiter{
			InitialDelay: t.NavigationInitialDelay,
			Poll:         t.NavigationPoll,
		},
		NavigationTimeout: t.NavigationTimeout,
		SettleDelay:       t.SettleDelay,
		ReadyTimeout:      t.ReadyTimeout,
		ReadyGrace:        t.ReadyGrace,
		Readiness:         readiness,
	}
}

// Status is a snapshot of the orchestrator for the status endpoint.
type Status struct {
	State      State                   `json:"state"`
	Posting    bool                    `json:"posting"`
	Reserved   bool                    `json:"reserved"`
	AttemptID  string                  `json:"attempt_id,omitempty"`
	StartedAt  *time.Time              `json:"started_at,omitempty"`
	LastResult *models.OperationResult `json:"last_result,omitempty"`
}

type Orchestrator struct {
	page    page.Page
	fillers []fillers.Filler
	opts    Options
	sink    AttemptSink

	mutex      sync.RWMutex
	posting    bool
	reserved   bool
	state      State
	attemptID  string
	startedAt  time.Time
	lastResult *models.OperationResult
}

func New(p page.Page, fs []fillers.Filler, opts Options, sink AttemptSink) *Orchestrator {
	return &Orchestrator{
		page:    p,
		fillers: fs,
		opts:    opts,
		sink:    sink,
		state:   StateIdle,
	}
}

// Busy reports whether a run is in flight.
func (o *Orchestrator) Busy() bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.posting
}

func (o *Orchestrator) Status() Status {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	s := Status{State: o.state, Posting: o.posting, Reserved: o.reserved, AttemptID: o.attemptID, LastResult: o.lastResult}
	if o.posting {
		started := o.startedAt
		s.StartedAt = &started
	}
	return s
}

// Reserve takes the page for something other than a form fill, such as the
// field mapping wizard. It fails while a run is in flight or another
// reservation is held. Posts are refused until release is called.
func (o *Orchestrator) Reserve() (release func(), ok bool) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if o.posting || o.reserved {
		return nil, false
	}
	o.reserved = true
	var once sync.Once
	return func() {
		once.Do(func() {
			o.mutex.Lock()
			o.reserved = false
			o.mutex.Unlock()
		})
	}, true
}

func (o *Orchestrator) acquire(attemptID string) string {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if o.posting {
		return BusyMessage
	}
	if o.reserved {
		return MappingMessage
	}
	o.posting = true
	o.attemptID = attemptID
	o.startedAt = time.Now()
	o.state = StateIdle
	return ""
}

func (o *Orchestrator) release(result models.OperationResult) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.posting = false
	o.state = StateDone
	o.lastResult = &result
}

func (o *Orchestrator) setState(s State) {
	o.mutex.Lock()
	o.state = s
	o.mutex.Unlock()
	log.Printf("🔄 Orchestrator state: %s", s)
}

// Post fills the vehicle creation form with the listing. A second call while
// one is in flight, or while the page is reserved, returns a busy result
// without touching the page. Cancelling ctx stops the run between steps;
// callers that must not abort a fill pass a context detached from their own.
func (o *Orchestrator) Post(ctx context.Context, req Request) (result models.OperationResult) {
	attemptID := uuid.NewString()
	if refused := o.acquire(attemptID); refused != "" {
		log.Printf("⚠️ Rejected %s request: %s", req.Source, refused)
		return models.Failed(refused)
	}

	started := time.Now()
	var outcomes []models.FieldOutcome

	defer func() {
		if r := recover(); r != nil {
			log.Printf("🚨 PANIC recovered while filling form for attempt %s: %v", attemptID, r)
			result = models.Failed(fmt.Sprintf("Unexpected error while filling form: %v", r))
		}
		o.release(result)
		o.record(attemptID, req, started, result, outcomes)
	}()

	log.Printf("🚀 Posting %s (attempt %s, source %s)", req.Listing.Title(), attemptID, req.Source)
	if err := o.run(ctx, req.Listing, &outcomes); err != nil {
		log.Printf("❌ Form fill failed for attempt %s: %v", attemptID, err)
		return models.Failed(err.Error())
	}

	log.Printf("✅ Form fill completed for attempt %s in %v", attemptID, time.Since(started).Round(time.Millisecond))
	return models.Succeeded(SuccessMessage)
}

func (o *Orchestrator) run(ctx context.Context, v models.VehicleListing, outcomes *[]models.FieldOutcome) error {
	o.setState(StateNavigating)
	if err := o.ensureCreatePage(ctx); err != nil {
		return err
	}

	o.setState(StateWaitingForReady)
	ready, err := locator.WaitForAny(ctx, o.page, o.opts.Readiness, o.opts.ReadyTimeout, o.opts.ReadyGrace)
	if err != nil {
		return fmt.Errorf("waiting for form: %w", err)
	}
	if ready {
		log.Printf("✅ Vehicle form is ready")
	}

	o.setState(StateFilling)
	v = v.Normalized()
	for _, f := range o.fillers {
		if skipper, ok := f.(fillers.Skipper); ok && skipper.Skip(v) {
			log.Printf("⏭️ Skipping %s: nothing to fill", f.Name())
			continue
		}

		begin := time.Now()
		res := f.Fill(ctx, v)
		*outcomes = append(*outcomes, models.FieldOutcome{
			Field:      f.Name(),
			Success:    res.Success,
			Message:    res.Message,
			Error:      res.Error,
			DurationMs: time.Since(begin).Milliseconds(),
		})
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("form fill interrupted after %s: %w", f.Name(), err)
		}
	}
	return nil
}

func (o *Orchestrator) ensureCreatePage(ctx context.Context) error {
	current, err := o.page.URL(ctx)
	if err == nil && strings.Contains(current, o.opts.CreatePath) {
		log.Printf("📄 Already on vehicle creation page")
		return nil
	}

	log.Printf("🌐 Navigating to %s", o.opts.CreateURL)
	if err := o.page.Navigate(ctx, o.opts.CreateURL); err != nil {
		return fmt.Errorf("navigate to vehicle creation page: %w", err)
	}
	if err := o.opts.Waiter.AwaitURLContains(ctx, o.page, o.opts.CreatePath, o.opts.NavigationTimeout); err != nil {
		return fmt.Errorf("navigation to vehicle creation page failed: %w", err)
	}
	return sleep(ctx, o.opts.SettleDelay)
}

func (o *Orchestrator) record(attemptID string, req Request, started time.Time, result models.OperationResult, outcomes []models.FieldOutcome) {
	if o.sink == nil {
		return
	}
	v := req.Listing.Normalized()
	attempt := models.PostingAttempt{
		AttemptID:   attemptID,
		Source:      req.Source,
		VIN:         v.VIN,
		Year:        v.Year,
		Make:        v.Make,
		Model:       v.Model,
		Success:     result.Success,
		Message:     result.Message,
		Error:       result.Error,
		DurationMs:  time.Since(started).Milliseconds(),
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
	attempt.SetFieldLog(outcomes)
	o.sink.Record(attempt)
}
