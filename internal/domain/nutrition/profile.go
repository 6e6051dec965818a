// Package nutrition converts per-serving food profiles into consumed
// quantities, aggregates a weekly meal plan and evaluates the result against
// a goal profile. Everything here is a pure function of its inputs.
package nutrition

import "math"

// Macronutrient keys.
const (
	Calories = "calories"
	Protein  = "protein"
	Carbs    = "carbs"
	Fat      = "fat"
	Fiber    = "fiber"
)

// Vitamin keys.
const (
	VitaminA   = "vitamin_a"
	VitaminB1  = "vitamin_b1"
	VitaminB2  = "vitamin_b2"
	VitaminB3  = "vitamin_b3"
	VitaminB6  = "vitamin_b6"
	VitaminB12 = "vitamin_b12"
	VitaminC   = "vitamin_c"
	VitaminD   = "vitamin_d"
	VitaminE   = "vitamin_e"
	VitaminK   = "vitamin_k"
	Folate     = "folate"
)

// Mineral keys.
const (
	Calcium    = "calcium"
	Iron       = "iron"
	Magnesium  = "magnesium"
	Phosphorus = "phosphorus"
	Potassium  = "potassium"
	Sodium     = "sodium"
	Zinc       = "zinc"
)

var (
	MacroKeys   = []string{Calories, Protein, Carbs, Fat, Fiber}
	VitaminKeys = []string{VitaminA, VitaminB1, VitaminB2, VitaminB3, VitaminB6, VitaminB12, VitaminC, VitaminD, VitaminE, VitaminK, Folate}
	MineralKeys = []string{Calcium, Iron, Magnesium, Phosphorus, Potassium, Sodium, Zinc}
)

// GroupName identifies one of the three nutrient groups.
type GroupName string

const (
	GroupMacros   GroupName = "macronutrients"
	GroupVitamins GroupName = "vitamins"
	GroupMinerals GroupName = "minerals"
)

// Groups lists the nutrient groups in display order.
var Groups = []GroupName{GroupMacros, GroupVitamins, GroupMinerals}

// KeysFor returns the fixed key set of a group.
func KeysFor(g GroupName) []string {
	switch g {
	case GroupMacros:
		return MacroKeys
	case GroupVitamins:
		return VitaminKeys
	case GroupMinerals:
		return MineralKeys
	}
	return nil
}

// Group holds named nutrient quantities.
type Group map[string]float64

// Profile is the canonical nutrient shape used everywhere inside the engine.
// A missing key reads as zero.
type Profile struct {
	Macros   Group `json:"macronutrients"`
	Vitamins Group `json:"vitamins"`
	Minerals Group `json:"minerals"`
}

// NewProfile returns a profile with every known key present and zero.
func NewProfile() Profile {
	p := Profile{Macros: Group{}, Vitamins: Group{}, Minerals: Group{}}
	for _, g := range Groups {
		grp := p.Group(g)
		for _, k := range KeysFor(g) {
			grp[k] = 0
		}
	}
	return p
}

// Group returns the map backing the named group.
func (p Profile) Group(g GroupName) Group {
	switch g {
	case GroupMacros:
		return p.Macros
	case GroupVitamins:
		return p.Vitamins
	case GroupMinerals:
		return p.Minerals
	}
	return nil
}

func (p *Profile) ensure() {
	if p.Macros == nil {
		p.Macros = Group{}
	}
	if p.Vitamins == nil {
		p.Vitamins = Group{}
	}
	if p.Minerals == nil {
		p.Minerals = Group{}
	}
}

// Get reads a value; absent groups and keys yield 0.
func (p Profile) Get(g GroupName, key string) float64 {
	return p.Group(g)[key]
}

// Add accumulates o into p.
func (p *Profile) Add(o Profile) {
	p.ensure()
	for _, g := range Groups {
		dst := p.Group(g)
		for k, v := range o.Group(g) {
			dst[k] += v
		}
	}
}

// Scale returns a copy of p with every value multiplied by m.
func (p Profile) Scale(m float64) Profile {
	out := Profile{Macros: Group{}, Vitamins: Group{}, Minerals: Group{}}
	for _, g := range Groups {
		dst := out.Group(g)
		for k, v := range p.Group(g) {
			dst[k] = v * m
		}
	}
	return out
}

// Div returns a copy of p with every value divided by d. Dividing instead
// of scaling by 1/d keeps averages exactly equal to total/d.
func (p Profile) Div(d float64) Profile {
	out := Profile{Macros: Group{}, Vitamins: Group{}, Minerals: Group{}}
	for _, g := range Groups {
		dst := out.Group(g)
		for k, v := range p.Group(g) {
			dst[k] = v / d
		}
	}
	return out
}

// Clone returns a deep copy.
func (p Profile) Clone() Profile {
	return p.Scale(1)
}

// IsZero reports whether every value is zero.
func (p Profile) IsZero() bool {
	for _, g := range Groups {
		for _, v := range p.Group(g) {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

// Rounded applies the presentation rounding policy: calories to an integer,
// macros to one decimal, vitamins and minerals to two decimals.
func (p Profile) Rounded() Profile {
	out := Profile{Macros: Group{}, Vitamins: Group{}, Minerals: Group{}}
	for k, v := range p.Macros {
		if k == Calories {
			out.Macros[k] = RoundTo(v, 0)
			continue
		}
		out.Macros[k] = RoundTo(v, 1)
	}
	for k, v := range p.Vitamins {
		out.Vitamins[k] = RoundTo(v, 2)
	}
	for k, v := range p.Minerals {
		out.Minerals[k] = RoundTo(v, 2)
	}
	return out
}

// RoundTo rounds half away from zero to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
