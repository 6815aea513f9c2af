package fillers

import (
	"context"
	"errors"
	"log"

	"listingpilot/backend/internal/locator"
	"listingpilot/backend/internal/models"
	"listingpilot/backend/internal/page"
)

var (
	visibleOnly   = locator.Options{MustBeVisible: true}
	visibleInForm = locator.Options{MustBeVisible: true, ExcludeSearchContext: true}
)

var errNoVehicleTypeValue = errors.New("no vehicle-type value configured for the native select")

func NewPriceFiller(e *Env) Filler {
	return &fieldFiller{
		name:  FieldPrice,
		label: "Price",
		value: models.VehicleListing.PriceString,
		attempts: []attempt{
			e.locateAndSimulate(FieldPrice, e.Catalog.Price, visibleOnly),
			e.scan("price"),
		},
	}
}

// NewYearFiller tries form-scoped inputs and selects, then a Year combobox,
// then the keyword scan. Search boxes are never accepted.
func NewYearFiller(e *Env) Filler {
	return &fieldFiller{
		name:  FieldYear,
		label: "Year",
		value: models.VehicleListing.YearString,
		attempts: []attempt{
			e.locateAndSimulate(FieldYear, e.Catalog.Year, visibleInForm),
			e.yearCombobox,
			e.scan("year"),
		},
	}
}

func (e *Env) yearCombobox(ctx context.Context, value string) error {
	el, err := locator.Locate(ctx, e.Page, e.Catalog.YearComboboxes, visibleInForm)
	if err != nil {
		return err
	}
	if err := e.Sim.Click(ctx, el); err != nil {
		return err
	}
	return e.pickOption(ctx, value)
}

func NewMakeFiller(e *Env) Filler {
	return &fieldFiller{
		name:  FieldMake,
		label: "Make",
		value: func(v models.VehicleListing) string { return v.Make },
		attempts: []attempt{
			e.locateAndSimulate(FieldMake, e.Catalog.Make, visibleOnly),
			e.scan("make"),
		},
	}
}

func NewModelFiller(e *Env) Filler {
	return &fieldFiller{
		name:  FieldModel,
		label: "Model",
		value: func(v models.VehicleListing) string { return v.Model },
		attempts: []attempt{
			e.locateAndSimulate(FieldModel, e.Catalog.Model, visibleOnly),
			e.scan("model"),
		},
	}
}

// NewLocationFiller types the location key by key so the typeahead opens,
// then accepts the first suggestion when one renders.
func NewLocationFiller(e *Env) Filler {
	return &fieldFiller{
		name:  FieldLocation,
		label: "Location",
		value: func(v models.VehicleListing) string {
			if v.Location != "" {
				return v.Location
			}
			return e.DefaultLocation
		},
		attempts: []attempt{
			e.typeahead,
			e.scan("location"),
		},
	}
}

func (e *Env) typeahead(ctx context.Context, value string) error {
	el, err := locator.LocateWithin(ctx, e.Page, e.Catalog.Location, visibleOnly, e.ElementWait)
	if err != nil {
		return err
	}
	if err := e.Sim.TypeText(ctx, el, value); err != nil {
		return err
	}
	suggestions, err := e.visibleOptions(ctx, e.Catalog.Suggestions)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("⚠️ No location suggestion appeared, keeping typed text")
		return nil
	}
	return e.Page.Click(ctx, suggestions[0].Ref)
}

// NewVehicleTypeFiller assigns a fixed option on a native select, or opens a
// custom combobox and takes its first option. Only the native select needs a
// configured value.
func NewVehicleTypeFiller(e *Env) Filler {
	return &fieldFiller{
		name:     FieldVehicleType,
		label:    "Vehicle type",
		value:    func(models.VehicleListing) string { return e.VehicleTypeValue },
		optional: true,
		attempts: []attempt{
			e.vehicleType,
		},
	}
}

func (e *Env) vehicleType(ctx context.Context, value string) error {
	el, err := locator.LocateWithin(ctx, e.Page, e.candidates(ctx, FieldVehicleType, e.Catalog.VehicleType), visibleOnly, e.ElementWait)
	if err != nil {
		return err
	}
	if el.Kind() == page.NativeSelect {
		if value == "" {
			return errNoVehicleTypeValue
		}
		if err := e.Page.SetValue(ctx, el.Ref, value); err != nil {
			return err
		}
		return e.Page.Dispatch(ctx, el.Ref, page.EventChange)
	}

	// TODO: match the option text against the listing's body style instead of taking the first option.
	if err := e.Sim.Click(ctx, el); err != nil {
		return err
	}
	options, err := e.visibleOptions(ctx, e.Catalog.Options)
	if err != nil {
		return err
	}
	return e.Page.Click(ctx, options[0].Ref)
}
