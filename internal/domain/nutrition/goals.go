package nutrition

import "encoding/json"

// GoalProfile holds daily targets per nutrient. A key that is absent falls
// back to the default target; a key set to 0 means no target.
type GoalProfile struct {
	Macros   Group `json:"macronutrients,omitempty"`
	Vitamins Group `json:"vitamins,omitempty"`
	Minerals Group `json:"minerals,omitempty"`
}

// DefaultGoals returns the population-average daily targets. Units: kcal, g
// for macros; mg unless noted for vitamins and minerals (A, B12, D, K and
// folate in mcg).
func DefaultGoals() GoalProfile {
	return GoalProfile{
		Macros: Group{
			Calories: 2000,
			Protein:  50,
			Carbs:    275,
			Fat:      70,
			Fiber:    28,
		},
		Vitamins: Group{
			VitaminA:   900,
			VitaminB1:  1.2,
			VitaminB2:  1.3,
			VitaminB3:  16,
			VitaminB6:  1.7,
			VitaminB12: 2.4,
			VitaminC:   90,
			VitaminD:   20,
			VitaminE:   15,
			VitaminK:   120,
			Folate:     400,
		},
		Minerals: Group{
			Calcium:    1300,
			Iron:       18,
			Magnesium:  420,
			Phosphorus: 1250,
			Potassium:  4700,
			Sodium:     2300,
			Zinc:       11,
		},
	}
}

// Group returns the map backing the named group.
func (g GoalProfile) Group(name GroupName) Group {
	switch name {
	case GroupMacros:
		return g.Macros
	case GroupVitamins:
		return g.Vitamins
	case GroupMinerals:
		return g.Minerals
	}
	return nil
}

// Resolve overlays g on the defaults: every default key is present, custom
// values win, and extra custom keys are kept.
func (g GoalProfile) Resolve() GoalProfile {
	out := DefaultGoals()
	for _, name := range Groups {
		dst := out.Group(name)
		for k, v := range g.Group(name) {
			dst[k] = v
		}
	}
	return out
}

// Merge overlays override on g and returns the result; g is not modified.
func (g GoalProfile) Merge(override GoalProfile) GoalProfile {
	out := GoalProfile{Macros: Group{}, Vitamins: Group{}, Minerals: Group{}}
	for _, name := range Groups {
		dst := out.Group(name)
		for k, v := range g.Group(name) {
			dst[k] = v
		}
		for k, v := range override.Group(name) {
			dst[k] = v
		}
	}
	return out
}

// UnmarshalJSON accepts the same key spellings as Profile but leaves absent
// keys absent.
func (g *GoalProfile) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p := canonicalizeSparse(raw)
	*g = GoalProfile{Macros: p.Macros, Vitamins: p.Vitamins, Minerals: p.Minerals}
	return nil
}
