package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapitalizeWord(t *testing.T) {
	cases := map[string]string{
		"toyota":    "Toyota",
		"TOYOTA":    "Toyota",
		"f-150":     "F-150",
		"":          "",
		"mercedes":  "Mercedes",
		"ñandu":     "Ñandu",
		"Cr-v hYbr": "Cr-v hybr",
	}
	for in, want := range cases {
		got := CapitalizeWord(in)
		assert.Equal(t, want, got, "input %q", in)
		assert.Equal(t, got, CapitalizeWord(got), "idempotent for %q", in)
	}
}

func TestNormalized(t *testing.T) {
	v := VehicleListing{Year: 2020, Make: "TOYOTA", Model: "camry ", Price: 18500}
	n := v.Normalized()

	assert.Equal(t, "Toyota", n.Make)
	assert.Equal(t, "Camry", n.Model)
	assert.Equal(t, "TOYOTA", v.Make, "original is untouched")
	assert.Equal(t, n, n.Normalized())
}

func TestStringHelpers(t *testing.T) {
	v := VehicleListing{Year: 2020, Make: "Toyota", Model: "Camry", Trim: "SE", Price: 18500}

	assert.Equal(t, "2020", v.YearString())
	assert.Equal(t, "18500", v.PriceString())
	assert.Equal(t, "2020 Toyota Camry SE", v.Title())

	assert.Equal(t, "", VehicleListing{}.YearString())
	assert.Equal(t, "", VehicleListing{}.PriceString())
	assert.Equal(t, "Toyota", VehicleListing{Make: "Toyota"}.Title())
}

func TestFieldLogRoundTrip(t *testing.T) {
	var a PostingAttempt
	a.SetFieldLog(nil)
	assert.Equal(t, "[]", a.FieldLog)

	a.SetFieldLog([]FieldOutcome{{Field: "price", Success: true, Message: "Price filled"}})
	got, err := a.GetFieldLog()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "price", got[0].Field)
}

func TestGetFieldLog_CorruptColumn(t *testing.T) {
	a := PostingAttempt{FieldLog: `[{"field":`}
	got, err := a.GetFieldLog()
	assert.Error(t, err)
	assert.Nil(t, got)

	empty := PostingAttempt{}
	got, err = empty.GetFieldLog()
	require.NoError(t, err)
	assert.Empty(t, got)
}
