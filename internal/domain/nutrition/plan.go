package nutrition

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Day is a day of the planning week.
type Day string

const (
	Monday    Day = "monday"
	Tuesday   Day = "tuesday"
	Wednesday Day = "wednesday"
	Thursday  Day = "thursday"
	Friday    Day = "friday"
	Saturday  Day = "saturday"
	Sunday    Day = "sunday"
)

// Days is the fixed iteration order for aggregation.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Slot is a meal slot within a day.
type Slot string

const (
	Breakfast Slot = "breakfast"
	Lunch     Slot = "lunch"
	Snacks    Slot = "snacks"
	Dinner    Slot = "dinner"
)

// Slots is the fixed iteration order for aggregation.
var Slots = []Slot{Breakfast, Lunch, Snacks, Dinner}

// ParseDay accepts full names and three-letter abbreviations in any case.
func ParseDay(s string) (Day, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, d := range Days {
		if s == string(d) || (len(s) == 3 && strings.HasPrefix(string(d), s)) {
			return d, true
		}
	}
	return "", false
}

// ParseSlot accepts slot names in any case plus "snack".
func ParseSlot(s string) (Slot, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "snack" {
		s = string(Snacks)
	}
	for _, sl := range Slots {
		if s == string(sl) {
			return sl, true
		}
	}
	return "", false
}

// Entry is one food added to a meal slot. Name, category, serving and
// nutrition are copied from the catalog when the entry is added; the copy is
// authoritative afterwards.
type Entry struct {
	FoodID      string      `json:"food_id"`
	Name        string      `json:"name"`
	Category    string      `json:"category,omitempty"`
	Serving     ServingSize `json:"serving_size"`
	Nutrition   Profile     `json:"nutrition"`
	Amount      float64     `json:"amount"`
	ServingUnit ServingUnit `json:"serving_unit"`
	// Calculated is Nutrition scaled to Amount, stored at add time.
	Calculated *Profile `json:"calculated_nutrition,omitempty"`
}

// NewEntry snapshots a food and precomputes its scaled contribution. When
// unit is empty the native serving unit is used.
func NewEntry(foodID, name, category string, serving ServingSize, profile Profile, amount float64, unit ServingUnit) (Entry, error) {
	if err := serving.Validate(); err != nil {
		return Entry{}, err
	}
	if unit == "" {
		unit = serving.Unit
	}
	if !unit.Valid() {
		return Entry{}, fmt.Errorf("%w: unknown unit %q", ErrInvalidServing, unit)
	}
	scaled, err := ScaleNutrients(profile, serving.Amount, amount)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		FoodID:      foodID,
		Name:        name,
		Category:    category,
		Serving:     serving,
		Nutrition:   profile.Clone(),
		Amount:      amount,
		ServingUnit: unit,
		Calculated:  &scaled,
	}, nil
}

// Contribution is what this entry adds to the totals. A stored calculated
// profile is used as-is; otherwise the entry is scaled on the fly. An entry
// whose native serving is unusable contributes nothing.
func (e Entry) Contribution() Profile {
	if e.Calculated != nil {
		return *e.Calculated
	}
	scaled, err := ScaleNutrients(e.Nutrition, e.Serving.Amount, e.Amount)
	if err != nil {
		return Profile{}
	}
	return scaled
}

// entryJSON mirrors Entry; the alternative field spellings are accepted on
// decode and folded into the canonical fields.
type entryJSON struct {
	FoodID      string          `json:"food_id"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Serving     *ServingSize    `json:"serving_size"`
	Nutrition   json.RawMessage `json:"nutrition"`
	Macros      json.RawMessage `json:"macronutrients"`
	Amount      float64         `json:"amount"`
	Quantity    float64         `json:"quantity"`
	ServingUnit ServingUnit     `json:"serving_unit"`
	Unit        ServingUnit     `json:"unit"`
	Calculated  json.RawMessage `json:"calculated_nutrition"`
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := Entry{
		FoodID:      raw.FoodID,
		Name:        raw.Name,
		Category:    raw.Category,
		Amount:      raw.Amount,
		ServingUnit: raw.ServingUnit,
	}
	if out.FoodID == "" {
		out.FoodID = raw.ID
	}
	if out.Amount == 0 {
		out.Amount = raw.Quantity
	}
	if out.ServingUnit == "" {
		out.ServingUnit = raw.Unit
	}
	if raw.Serving != nil {
		out.Serving = *raw.Serving
	}
	switch {
	case len(raw.Nutrition) > 0 && string(raw.Nutrition) != "null":
		if err := json.Unmarshal(raw.Nutrition, &out.Nutrition); err != nil {
			return fmt.Errorf("decode nutrition: %w", err)
		}
	case len(raw.Macros) > 0 && string(raw.Macros) != "null":
		var macros map[string]any
		if err := json.Unmarshal(raw.Macros, &macros); err != nil {
			return fmt.Errorf("decode macronutrients: %w", err)
		}
		out.Nutrition = Canonicalize(map[string]any{"macronutrients": macros})
	default:
		out.Nutrition = NewProfile()
	}
	if len(raw.Calculated) > 0 && string(raw.Calculated) != "null" {
		var calc Profile
		if err := json.Unmarshal(raw.Calculated, &calc); err != nil {
			return fmt.Errorf("decode calculated_nutrition: %w", err)
		}
		out.Calculated = &calc
	}
	*e = out
	return nil
}

// Meals maps a slot to its entries.
type Meals map[Slot][]Entry

// WeeklyMealPlan is 7 days by 4 slots. Normalize guarantees every day and
// slot key is present.
type WeeklyMealPlan map[Day]Meals

// NewWeeklyMealPlan returns a complete plan with empty slots.
func NewWeeklyMealPlan() WeeklyMealPlan {
	p := make(WeeklyMealPlan, len(Days))
	p.Normalize()
	return p
}

// Normalize fills missing days and slots with empty lists in place.
func (p WeeklyMealPlan) Normalize() {
	for _, d := range Days {
		meals := p[d]
		if meals == nil {
			meals = make(Meals, len(Slots))
			p[d] = meals
		}
		for _, s := range Slots {
			if meals[s] == nil {
				meals[s] = []Entry{}
			}
		}
	}
}

// ErrInvalidPlan is returned when a plan references a day or slot outside
// the fixed week.
var ErrInvalidPlan = errors.New("invalid meal plan")

// UnmarshalJSON canonicalizes day and slot names ("Mon", "Snack") and
// rejects unknown ones. The decoded plan is always complete.
func (p *WeeklyMealPlan) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string][]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(WeeklyMealPlan, len(Days))
	for dk, meals := range raw {
		d, ok := ParseDay(dk)
		if !ok {
			return fmt.Errorf("%w: unknown day %q", ErrInvalidPlan, dk)
		}
		if out[d] == nil {
			out[d] = make(Meals, len(Slots))
		}
		for sk, entries := range meals {
			s, ok := ParseSlot(sk)
			if !ok {
				return fmt.Errorf("%w: unknown meal slot %q", ErrInvalidPlan, sk)
			}
			out[d][s] = append(out[d][s], entries...)
		}
	}
	out.Normalize()
	*p = out
	return nil
}

// AddEntry appends e to a slot.
func (p WeeklyMealPlan) AddEntry(d Day, s Slot, e Entry) {
	p.Normalize()
	p[d][s] = append(p[d][s], e)
}

// RemoveEntry deletes the entry at index i of a slot and reports whether it
// existed.
func (p WeeklyMealPlan) RemoveEntry(d Day, s Slot, i int) bool {
	entries := p[d][s]
	if i < 0 || i >= len(entries) {
		return false
	}
	p[d][s] = append(entries[:i:i], entries[i+1:]...)
	return true
}

// Len counts entries across the whole week.
func (p WeeklyMealPlan) Len() int {
	n := 0
	for _, d := range Days {
		for _, s := range Slots {
			n += len(p[d][s])
		}
	}
	return n
}
