// Package fillers turns one VehicleListing attribute into a filled form field.
// A filler never returns an error or panics upward: every outcome is an
// OperationResult, and a failed field is logged and left for the operator.
package fillers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"listingpilot/backend/internal/locator"
	"listingpilot/backend/internal/models"
	"listingpilot/backend/internal/page"
	"listingpilot/backend/internal/simulator"
)

// Field names shared with the mapping recorder.
const (
	FieldVehicleType = "vehicle-type"
	FieldYear        = "year"
	FieldMake        = "make"
	FieldModel       = "model"
	FieldMileage     = "mileage"
	FieldPrice       = "price"
	FieldDescription = "description"
	FieldLocation    = "location"
	FieldImages      = "images"
)

type Filler interface {
	Name() string
	Fill(ctx context.Context, v models.VehicleListing) models.OperationResult
}

// Skipper is implemented by fillers that only run when the listing has data for them.
type Skipper interface {
	Skip(v models.VehicleListing) bool
}

// MappingSource exposes operator-recorded selectors.
type MappingSource interface {
	Get(ctx context.Context, field string) (string, bool, error)
}

// Env is what every filler shares.
type Env struct {
	Page             page.Page
	Sim              *simulator.Simulator
	Catalog          Catalog
	Mappings         MappingSource
	ElementWait      time.Duration
	DefaultLocation  string
	VehicleTypeValue string
}

// candidates appends the recorded selector for field, when one exists, as
// the lowest-priority candidate.
func (e *Env) candidates(ctx context.Context, field string, selectors []string) []string {
	if e.Mappings == nil {
		return selectors
	}
	recorded, ok, err := e.Mappings.Get(ctx, field)
	if err != nil {
		log.Printf("⚠️ Could not read recorded mapping for %s: %v", field, err)
		return selectors
	}
	if !ok || recorded == "" {
		return selectors
	}
	out := make([]string, 0, len(selectors)+1)
	out = append(out, selectors...)
	return append(out, recorded)
}

// Sequence returns the fillers in the order the form is filled.
func Sequence(e *Env, generator DescriptionGenerator, fetcher ImageFetcher, maxImages int) []Filler {
	return []Filler{
		NewVehicleTypeFiller(e),
		NewPriceFiller(e),
		NewYearFiller(e),
		NewMakeFiller(e),
		NewModelFiller(e),
		NewLocationFiller(e),
		NewDescriptionFiller(e, generator),
		NewImagesFiller(e, fetcher, maxImages),
	}
}

// attempt is one strategy for getting value into the field.
type attempt func(ctx context.Context, value string) error

func (e *Env) locateAndSimulate(field string, selectors []string, opts locator.Options) attempt {
	return func(ctx context.Context, value string) error {
		el, err := locator.LocateWithin(ctx, e.Page, e.candidates(ctx, field, selectors), opts, e.ElementWait)
		if err != nil {
			return err
		}
		return e.Sim.Simulate(ctx, el, value)
	}
}

func (e *Env) scan(keyword string) attempt {
	return func(ctx context.Context, value string) error {
		el, err := locator.ScanTextInputs(ctx, e.Page, keyword)
		if err != nil {
			return err
		}
		return e.Sim.Simulate(ctx, el, value)
	}
}

// pickOption waits for option-like elements to render and clicks the one
// whose text equals value, else the first whose text contains it.
func (e *Env) pickOption(ctx context.Context, value string) error {
	options, err := e.visibleOptions(ctx, e.Catalog.Options)
	if err != nil {
		return err
	}
	choice, ok := matchOptionElement(options, value)
	if !ok {
		return fmt.Errorf("%w %q among %d options", simulator.ErrNoMatchingOption, value, len(options))
	}
	return e.Page.Click(ctx, choice.Ref)
}

func (e *Env) visibleOptions(ctx context.Context, selectors []string) ([]page.Element, error) {
	options, err := locator.Await(ctx, e.Page, e.ElementWait, func(ctx context.Context) ([]page.Element, bool, error) {
		for _, selector := range selectors {
			els, err := e.Page.QueryAll(ctx, selector)
			if err != nil {
				if ctx.Err() != nil {
					return nil, false, ctx.Err()
				}
				continue
			}
			var visible []page.Element
			for _, el := range els {
				if el.Visible {
					visible = append(visible, el)
				}
			}
			if len(visible) > 0 {
				return visible, true, nil
			}
		}
		return nil, false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("options did not render: %w", err)
	}
	return options, nil
}

func matchOptionElement(options []page.Element, value string) (page.Element, bool) {
	needle := strings.ToLower(strings.TrimSpace(value))
	for _, o := range options {
		if strings.ToLower(strings.TrimSpace(o.Text)) == needle {
			return o, true
		}
	}
	for _, o := range options {
		if strings.Contains(strings.ToLower(o.Text), needle) {
			return o, true
		}
	}
	return page.Element{}, false
}

// fieldFiller runs its attempts in order until one lands the value. An
// optional field runs its attempts even when the listing has no value.
type fieldFiller struct {
	name     string
	label    string
	value    func(v models.VehicleListing) string
	optional bool
	attempts []attempt
}

func (f *fieldFiller) Name() string { return f.name }

func (f *fieldFiller) Fill(ctx context.Context, v models.VehicleListing) models.OperationResult {
	value := f.value(v)
	if value == "" && !f.optional {
		log.Printf("⚠️ No %s on listing, leaving field empty", f.name)
		return models.Failed(fmt.Sprintf("No %s value to fill", f.name))
	}

	var lastErr error
	for _, try := range f.attempts {
		err := try(ctx, value)
		if err == nil {
			log.Printf("✅ %s filled with %q", f.label, value)
			return models.Succeeded(f.label + " filled")
		}
		if ctx.Err() != nil {
			log.Printf("❌ %s interrupted: %v", f.label, ctx.Err())
			return models.Failed(fmt.Sprintf("%s interrupted: %v", f.label, ctx.Err()))
		}
		if !errors.Is(err, locator.ErrNotFound) {
			log.Printf("⚠️ %s attempt failed: %v", f.label, err)
		}
		lastErr = err
	}

	log.Printf("❌ %s not filled: %v", f.label, lastErr)
	if errors.Is(lastErr, locator.ErrNotFound) {
		return models.Failed(f.label + " field not found")
	}
	return models.Failed(fmt.Sprintf("Failed to fill %s: %v", strings.ToLower(f.label), lastErr))
}
