package nutrition

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidServing is returned for non-positive native servings, negative
// consumed amounts and unknown units.
var ErrInvalidServing = errors.New("invalid serving")

// ServingUnit is the unit a serving amount is expressed in.
type ServingUnit string

const (
	UnitGram       ServingUnit = "g"
	UnitMilliliter ServingUnit = "ml"
	UnitCup        ServingUnit = "cup"
	UnitTablespoon ServingUnit = "tbsp"
	UnitTeaspoon   ServingUnit = "tsp"
	UnitPiece      ServingUnit = "piece"
	UnitSlice      ServingUnit = "slice"
	UnitBowl       ServingUnit = "bowl"
)

var validUnits = map[ServingUnit]bool{
	UnitGram: true, UnitMilliliter: true, UnitCup: true, UnitTablespoon: true,
	UnitTeaspoon: true, UnitPiece: true, UnitSlice: true, UnitBowl: true,
}

// Valid reports whether u is one of the supported units.
func (u ServingUnit) Valid() bool { return validUnits[u] }

// ParseServingUnit accepts common spellings ("grams", "Cup", "pieces").
func ParseServingUnit(s string) (ServingUnit, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "gram", "grams", "gm", "gms":
		s = "g"
	case "millilitre", "milliliter", "milliliters", "millilitres":
		s = "ml"
	case "cups":
		s = "cup"
	case "tablespoon", "tablespoons":
		s = "tbsp"
	case "teaspoon", "teaspoons":
		s = "tsp"
	case "pieces", "pc", "pcs":
		s = "piece"
	case "slices":
		s = "slice"
	case "bowls":
		s = "bowl"
	}
	u := ServingUnit(s)
	if !u.Valid() {
		return "", fmt.Errorf("%w: unknown unit %q", ErrInvalidServing, s)
	}
	return u, nil
}

// ServingSize is the reference serving a food's nutrient profile is given for.
type ServingSize struct {
	Amount float64     `json:"amount"`
	Unit   ServingUnit `json:"unit"`
}

// Validate checks amount > 0 and a known unit.
func (s ServingSize) Validate() error {
	if !(s.Amount > 0) {
		return fmt.Errorf("%w: serving amount must be positive, got %v", ErrInvalidServing, s.Amount)
	}
	if !s.Unit.Valid() {
		return fmt.Errorf("%w: unknown unit %q", ErrInvalidServing, s.Unit)
	}
	return nil
}

// ScaleNutrients converts a per-native-serving profile into the absolute
// quantities for consumedAmount. No rounding is applied.
//
// The consumed amount is applied as-is against the native serving; a
// consumed amount entered in another unit (cups against a per-100g profile)
// is not converted.
func ScaleNutrients(profile Profile, nativeServingAmount, consumedAmount float64) (Profile, error) {
	if !(nativeServingAmount > 0) {
		return Profile{}, fmt.Errorf("%w: native serving amount must be positive, got %v", ErrInvalidServing, nativeServingAmount)
	}
	if !(consumedAmount >= 0) {
		return Profile{}, fmt.Errorf("%w: consumed amount must not be negative, got %v", ErrInvalidServing, consumedAmount)
	}
	return profile.Scale(consumedAmount / nativeServingAmount), nil
}
