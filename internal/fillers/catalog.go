package fillers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog holds the ranked selector lists for every field. The marketplace
// DOM changes without notice, so the defaults can be overridden per list from
// a YAML file.
type Catalog struct {
	Price          []string   `yaml:"price"`
	Year           []string   `yaml:"year"`
	YearComboboxes []string   `yaml:"year_comboboxes"`
	Options        []string   `yaml:"options"`
	Make           []string   `yaml:"make"`
	Model          []string   `yaml:"model"`
	Location       []string   `yaml:"location"`
	Suggestions    []string   `yaml:"suggestions"`
	Description    []string   `yaml:"description"`
	VehicleType    []string   `yaml:"vehicle_type"`
	FileInputs     []string   `yaml:"file_inputs"`
	Readiness      [][]string `yaml:"readiness"`
}

// attributeSelectors builds the case-insensitive attribute-substring family
// for a field keyword.
func attributeSelectors(keyword string) []string {
	return []string{
		fmt.Sprintf(`input[placeholder*="%s" i]`, keyword),
		fmt.Sprintf(`input[aria-label*="%s" i]`, keyword),
		fmt.Sprintf(`[data-testid*="%s" i] input`, keyword),
		fmt.Sprintf(`input[data-testid*="%s" i]`, keyword),
		fmt.Sprintf(`input[name*="%s" i]`, keyword),
		fmt.Sprintf(`input[id*="%s" i]`, keyword),
		fmt.Sprintf(`input[class*="%s" i]`, keyword),
		fmt.Sprintf(`[role="combobox"][aria-label*="%s" i]`, keyword),
	}
}

func DefaultCatalog() Catalog {
	return Catalog{
		Price: []string{
			`input[placeholder*="price" i]`,
			`input[aria-label*="price" i]`,
			`[data-testid*="price" i] input`,
			`input[data-testid*="price" i]`,
			`input[name*="price" i]`,
			`input[id*="price" i]`,
			`input[inputmode="numeric"]`,
			`input[type="number"]`,
		},
		Year: []string{
			`form select[name*="year" i]`,
			`form select[aria-label*="year" i]`,
			`form input[name*="year" i]`,
			`form input[placeholder*="year" i]`,
			`form input[aria-label*="year" i]`,
			`form [data-testid*="year" i] input`,
			`form [data-testid*="year" i] select`,
			`input[type="number"]`,
		},
		YearComboboxes: []string{
			`[role="combobox"][aria-label*="year" i]`,
			`label[aria-label*="year" i]`,
			`[role="button"][aria-label*="year" i]`,
			`div[aria-label*="year" i]`,
		},
		Options: []string{
			`[role="listbox"] [role="option"]`,
			`[role="option"]`,
			`[role="menuitem"]`,
			`[role="menuitemradio"]`,
			`ul[role="listbox"] li`,
		},
		Make:  attributeSelectors("make"),
		Model: attributeSelectors("model"),
		Location: []string{
			`input[aria-label*="location" i]`,
			`input[placeholder*="location" i]`,
			`[data-testid*="location" i] input`,
			`input[name*="location" i]`,
			`input[placeholder*="city" i]`,
			`input[aria-label*="city" i]`,
		},
		Suggestions: []string{
			`[role="listbox"] [role="option"]`,
			`ul[role="listbox"] li`,
			`[role="option"]`,
		},
		Description: []string{
			`textarea[aria-label*="description" i]`,
			`textarea[placeholder*="description" i]`,
			`[data-testid*="description" i] textarea`,
			`textarea[name*="description" i]`,
			`[contenteditable="true"][aria-label*="description" i]`,
			`[data-testid*="description" i] [contenteditable="true"]`,
			`textarea`,
			`[contenteditable="true"]`,
		},
		VehicleType: []string{
			`select[name*="vehicle" i]`,
			`select[aria-label*="vehicle type" i]`,
			`[role="combobox"][aria-label*="vehicle type" i]`,
			`label[aria-label*="vehicle type" i]`,
			`[aria-label*="vehicle type" i]`,
			`select`,
		},
		FileInputs: []string{
			`input[type="file"][accept*="image" i]`,
			`input[type="file"][multiple]`,
			`input[type="file"]`,
		},
		Readiness: [][]string{
			{`form input`, `form textarea`, `form select`},
			{`[role="combobox"]`},
			{`input[type="text"]`, `input:not([type])`},
			{`textarea`},
			{`[contenteditable="true"]`},
		},
	}
}

// LoadCatalog reads overrides from path on top of the defaults. Lists absent
// from the file keep their default values.
func LoadCatalog(path string) (Catalog, error) {
	catalog := DefaultCatalog()
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return catalog, fmt.Errorf("read selector catalog: %w", err)
	}
	var override Catalog
	if err := yaml.Unmarshal(data, &override); err != nil {
		return catalog, fmt.Errorf("parse selector catalog %s: %w", path, err)
	}

	pick(&catalog.Price, override.Price)
	pick(&catalog.Year, override.Year)
	pick(&catalog.YearComboboxes, override.YearComboboxes)
	pick(&catalog.Options, override.Options)
	pick(&catalog.Make, override.Make)
	pick(&catalog.Model, override.Model)
	pick(&catalog.Location, override.Location)
	pick(&catalog.Suggestions, override.Suggestions)
	pick(&catalog.Description, override.Description)
	pick(&catalog.VehicleType, override.VehicleType)
	pick(&catalog.FileInputs, override.FileInputs)
	if len(override.Readiness) > 0 {
		catalog.Readiness = override.Readiness
	}
	return catalog, nil
}

func pick(dst *[]string, override []string) {
	if len(override) > 0 {
		*dst = override
	}
}
