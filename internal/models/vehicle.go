package models

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// VehicleListing is the record the dealership backend hands over for posting.
// Price is in whole currency units and is never converted.
type VehicleListing struct {
	Year          int      `json:"year" yaml:"year"`
	Make          string   `json:"make" yaml:"make"`
	Model         string   `json:"model" yaml:"model"`
	Trim          string   `json:"trim,omitempty" yaml:"trim,omitempty"`
	VIN           string   `json:"vin,omitempty" yaml:"vin,omitempty"`
	Mileage       int      `json:"mileage,omitempty" yaml:"mileage,omitempty"`
	ExteriorColor string   `json:"exterior_color,omitempty" yaml:"exterior_color,omitempty"`
	InteriorColor string   `json:"interior_color,omitempty" yaml:"interior_color,omitempty"`
	FuelType      string   `json:"fuel_type,omitempty" yaml:"fuel_type,omitempty"`
	Transmission  string   `json:"transmission,omitempty" yaml:"transmission,omitempty"`
	Condition     string   `json:"condition,omitempty" yaml:"condition,omitempty"`
	Price         int      `json:"price" yaml:"price"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	AIDescription string   `json:"ai_description,omitempty" yaml:"ai_description,omitempty"`
	Features      []string `json:"features,omitempty" yaml:"features,omitempty"`
	Images        []string `json:"images,omitempty" yaml:"images,omitempty"`
	ContactPhone  string   `json:"contact_phone,omitempty" yaml:"contact_phone,omitempty"`
	Location      string   `json:"location,omitempty" yaml:"location,omitempty"`
}

// CapitalizeWord upper-cases the first letter and lower-cases the rest.
// Applying it twice gives the same result as applying it once.
func CapitalizeWord(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// Normalized returns a copy with make and model re-capitalized.
func (v VehicleListing) Normalized() VehicleListing {
	v.Make = CapitalizeWord(strings.TrimSpace(v.Make))
	v.Model = CapitalizeWord(strings.TrimSpace(v.Model))
	return v
}

func (v VehicleListing) YearString() string {
	if v.Year <= 0 {
		return ""
	}
	return strconv.Itoa(v.Year)
}

func (v VehicleListing) PriceString() string {
	if v.Price <= 0 {
		return ""
	}
	return strconv.Itoa(v.Price)
}

// Title is the "year make model [trim]" line.
func (v VehicleListing) Title() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{v.YearString(), v.Make, v.Model, v.Trim} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
