package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"listingpilot/backend/internal/page"
)

var ErrNoMatchingOption = errors.New("no option matches value")

// Pacing spaces out interactions so reactive UIs settle between steps.
type Pacing struct {
	StepDelay       time.Duration
	FieldPause      time.Duration
	WidgetOpenDelay time.Duration
	KeystrokeMin    time.Duration
	KeystrokeMax    time.Duration
}

type Simulator struct {
	page   page.Page
	pacing Pacing

	rngMutex sync.Mutex
	rng      *rand.Rand
}

func New(p page.Page, pacing Pacing) *Simulator {
	return &Simulator{
		page:   p,
		pacing: pacing,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Simulate drives el so a virtual-DOM framework observes value as user input.
func (s *Simulator) Simulate(ctx context.Context, el page.Element, value string) error {
	var err error
	switch el.Kind() {
	case page.NativeInput:
		err = s.fillInput(ctx, el, value)
	case page.NativeSelect:
		err = s.chooseOption(ctx, el, value)
	case page.ContentEditable:
		err = s.fillEditable(ctx, el, value)
	default:
		err = s.fillWidget(ctx, el, value)
	}
	if err != nil {
		return fmt.Errorf("simulate %s on %s: %w", el.Kind(), el.Describe(), err)
	}
	return nil
}

func (s *Simulator) fillInput(ctx context.Context, el page.Element, value string) error {
	if err := s.page.Focus(ctx, el.Ref); err != nil {
		return err
	}
	if err := s.sleep(ctx, s.pacing.StepDelay); err != nil {
		return err
	}
	if err := s.page.SelectAll(ctx, el.Ref); err != nil {
		return err
	}
	if err := s.page.SetValue(ctx, el.Ref, value); err != nil {
		return err
	}
	if err := s.dispatch(ctx, el.Ref, page.EventInput, page.EventChange, page.EventBlur); err != nil {
		return err
	}
	return s.sleep(ctx, s.pacing.FieldPause)
}

func (s *Simulator) fillEditable(ctx context.Context, el page.Element, value string) error {
	if err := s.page.Focus(ctx, el.Ref); err != nil {
		return err
	}
	if err := s.page.SetText(ctx, el.Ref, value); err != nil {
		return err
	}
	return s.dispatch(ctx, el.Ref, page.EventInput, page.EventChange)
}

func (s *Simulator) fillWidget(ctx context.Context, el page.Element, value string) error {
	if err := s.page.Click(ctx, el.Ref); err != nil {
		return err
	}
	if err := s.sleep(ctx, s.pacing.WidgetOpenDelay); err != nil {
		return err
	}
	if err := s.page.InsertText(ctx, value); err != nil {
		return err
	}
	return s.dispatch(ctx, el.Ref, page.EventInput, page.EventChange)
}

func (s *Simulator) chooseOption(ctx context.Context, el page.Element, value string) error {
	option, ok := MatchOption(el.Options, value)
	if !ok {
		return fmt.Errorf("%w %q", ErrNoMatchingOption, value)
	}
	if err := s.page.SetValue(ctx, el.Ref, option.Value); err != nil {
		return err
	}
	return s.dispatch(ctx, el.Ref, page.EventChange)
}

// MatchOption prefers an exact value match, then a case-insensitive substring
// of the option text.
func MatchOption(options []page.Option, value string) (page.Option, bool) {
	for _, o := range options {
		if o.Value == value {
			return o, true
		}
	}
	needle := strings.ToLower(strings.TrimSpace(value))
	if needle == "" {
		return page.Option{}, false
	}
	for _, o := range options {
		if strings.Contains(strings.ToLower(o.Text), needle) {
			return o, true
		}
	}
	return page.Option{}, false
}

// TypeText is the keystroke-cadence variant for inputs that ignore
// programmatic assignment, such as typeahead boxes.
func (s *Simulator) TypeText(ctx context.Context, el page.Element, value string) error {
	if err := s.page.Click(ctx, el.Ref); err != nil {
		return err
	}
	if err := s.page.Focus(ctx, el.Ref); err != nil {
		return err
	}
	if el.Kind() == page.NativeInput {
		if err := s.page.SelectAll(ctx, el.Ref); err != nil {
			return err
		}
		if err := s.page.SetValue(ctx, el.Ref, ""); err != nil {
			return err
		}
	}
	for _, r := range value {
		if err := s.page.TypeKey(ctx, string(r)); err != nil {
			return fmt.Errorf("type %q into %s: %w", r, el.Describe(), err)
		}
		if err := s.sleep(ctx, s.keystrokeDelay()); err != nil {
			return err
		}
	}
	if err := s.dispatch(ctx, el.Ref, page.EventInput, page.EventChange); err != nil {
		return err
	}
	return s.sleep(ctx, s.pacing.FieldPause)
}

// Click opens a widget and waits for it to render.
func (s *Simulator) Click(ctx context.Context, el page.Element) error {
	if err := s.page.Click(ctx, el.Ref); err != nil {
		return err
	}
	return s.sleep(ctx, s.pacing.WidgetOpenDelay)
}

func (s *Simulator) keystrokeDelay() time.Duration {
	spread := s.pacing.KeystrokeMax - s.pacing.KeystrokeMin
	if spread <= 0 {
		return s.pacing.KeystrokeMin
	}
	s.rngMutex.Lock()
	defer s.rngMutex.Unlock()
	return s.pacing.KeystrokeMin + time.Duration(s.rng.Int63n(int64(spread)))
}

func (s *Simulator) dispatch(ctx context.Context, ref string, events ...string) error {
	for _, ev := range events {
		if err := s.page.Dispatch(ctx, ref, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) sleep(ctx context.Context, d time.Duration) error {
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
