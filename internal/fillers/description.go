package fillers

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/dustin/go-humanize"

	"listingpilot/backend/internal/locator"
	"listingpilot/backend/internal/models"
)

// MinDescriptionLength is the shortest supplied description used verbatim.
const MinDescriptionLength = 30

// DescriptionGenerator produces listing copy from structured fields.
type DescriptionGenerator interface {
	Generate(ctx context.Context, v models.VehicleListing) (string, error)
}

type descriptionFiller struct {
	generator DescriptionGenerator
	field     *fieldFiller
}

// NewDescriptionFiller fills the description from the listing, the generator
// or the deterministic template, in that order. generator may be nil.
func NewDescriptionFiller(e *Env, generator DescriptionGenerator) Filler {
	return &descriptionFiller{
		generator: generator,
		field: &fieldFiller{
			name:  FieldDescription,
			label: "Description",
			value: func(v models.VehicleListing) string { return v.Description },
			attempts: []attempt{
				e.locateAndSimulate(FieldDescription, e.Catalog.Description, locator.Options{MustBeVisible: true}),
				e.scan("description"),
			},
		},
	}
}

func (d *descriptionFiller) Name() string { return FieldDescription }

func (d *descriptionFiller) Fill(ctx context.Context, v models.VehicleListing) models.OperationResult {
	v.Description = d.compose(ctx, v)
	return d.field.Fill(ctx, v)
}

func (d *descriptionFiller) compose(ctx context.Context, v models.VehicleListing) string {
	for _, supplied := range []string{v.Description, v.AIDescription} {
		if len(strings.TrimSpace(supplied)) >= MinDescriptionLength {
			return supplied
		}
	}

	if d.generator != nil {
		generated, err := d.generator.Generate(ctx, v)
		if err == nil {
			log.Printf("🤖 Using generated description for %s", v.Title())
			return generated
		}
		log.Printf("⚠️ Description generation failed, using template: %v", err)
	}
	return TemplateDescription(v)
}

// TemplateDescription assembles listing copy from structured fields. Every
// populated field contributes one line; empty fields contribute none.
func TemplateDescription(v models.VehicleListing) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, format, args...)
	}
	optional := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			line("%s: %s", label, value)
		}
	}

	if title := v.Title(); title != "" {
		line("%s", title)
	}
	if v.Mileage > 0 {
		line("Mileage: %s miles", humanize.Comma(int64(v.Mileage)))
	}
	optional("Exterior Color", v.ExteriorColor)
	optional("Interior Color", v.InteriorColor)
	optional("Transmission", v.Transmission)
	optional("Fuel Type", v.FuelType)
	optional("Condition", v.Condition)
	optional("VIN", v.VIN)

	var features []string
	for _, f := range v.Features {
		if f = strings.TrimSpace(f); f != "" {
			features = append(features, f)
		}
	}
	if len(features) > 0 {
		line("Features:")
		for _, f := range features {
			line("• %s", f)
		}
	}
	optional("Contact", v.ContactPhone)
	return b.String()
}
