package nutrition

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

type nutrientRef struct {
	group GroupName
	key   string
}

// aliases maps every spelling seen in stored charts, catalog imports and
// proposer replies onto a canonical key. Lookups happen after normalizeKey.
var aliases = map[string]nutrientRef{
	"calories":      {GroupMacros, Calories},
	"calorie":       {GroupMacros, Calories},
	"kcal":          {GroupMacros, Calories},
	"energy":        {GroupMacros, Calories},
	"energy_kcal":   {GroupMacros, Calories},
	"protein":       {GroupMacros, Protein},
	"proteins":      {GroupMacros, Protein},
	"carbs":         {GroupMacros, Carbs},
	"carbohydrate":  {GroupMacros, Carbs},
	"carbohydrates": {GroupMacros, Carbs},
	"fat":           {GroupMacros, Fat},
	"fats":          {GroupMacros, Fat},
	"total_fat":     {GroupMacros, Fat},
	"fiber":         {GroupMacros, Fiber},
	"fibre":         {GroupMacros, Fiber},
	"dietary_fiber": {GroupMacros, Fiber},

	"vitamin_a":     {GroupVitamins, VitaminA},
	"retinol":       {GroupVitamins, VitaminA},
	"vitamin_b1":    {GroupVitamins, VitaminB1},
	"thiamin":       {GroupVitamins, VitaminB1},
	"thiamine":      {GroupVitamins, VitaminB1},
	"vitamin_b2":    {GroupVitamins, VitaminB2},
	"riboflavin":    {GroupVitamins, VitaminB2},
	"vitamin_b3":    {GroupVitamins, VitaminB3},
	"niacin":        {GroupVitamins, VitaminB3},
	"vitamin_b6":    {GroupVitamins, VitaminB6},
	"pyridoxine":    {GroupVitamins, VitaminB6},
	"vitamin_b12":   {GroupVitamins, VitaminB12},
	"cobalamin":     {GroupVitamins, VitaminB12},
	"vitamin_c":     {GroupVitamins, VitaminC},
	"ascorbic_acid": {GroupVitamins, VitaminC},
	"vitamin_d":     {GroupVitamins, VitaminD},
	"vitamin_e":     {GroupVitamins, VitaminE},
	"vitamin_k":     {GroupVitamins, VitaminK},
	"folate":        {GroupVitamins, Folate},
	"folic_acid":    {GroupVitamins, Folate},
	"vitamin_b9":    {GroupVitamins, Folate},

	"calcium":    {GroupMinerals, Calcium},
	"iron":       {GroupMinerals, Iron},
	"magnesium":  {GroupMinerals, Magnesium},
	"phosphorus": {GroupMinerals, Phosphorus},
	"potassium":  {GroupMinerals, Potassium},
	"sodium":     {GroupMinerals, Sodium},
	"zinc":       {GroupMinerals, Zinc},
}

var groupAliases = map[string]GroupName{
	"macronutrients": GroupMacros,
	"macros":         GroupMacros,
	"vitamins":       GroupVitamins,
	"minerals":       GroupMinerals,
}

// wrappers are keys whose value is itself a full profile.
var wrappers = map[string]bool{
	"nutrition":            true,
	"calculated_nutrition": true,
	"nutrients":            true,
	"nutrient_profile":     true,
}

var unitSuffixes = []string{"_mcg", "_ug", "_mg", "_kcal", "_g", "_iu"}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	if _, ok := aliases[k]; ok {
		return k
	}
	for _, s := range unitSuffixes {
		if strings.HasSuffix(k, s) {
			return strings.TrimSuffix(k, s)
		}
	}
	return k
}

// resolve finds the canonical ref for k. Inside a vitamins group a bare
// letter ("c", "b12") is read as the vitamin of that name.
func resolve(k string, hint GroupName) (nutrientRef, bool) {
	nk := normalizeKey(k)
	if ref, ok := aliases[nk]; ok {
		return ref, true
	}
	if hint == GroupVitamins {
		if ref, ok := aliases["vitamin_"+nk]; ok {
			return ref, true
		}
	}
	return nutrientRef{}, false
}

// Canonicalize collapses the nutrient shapes found at the ingestion boundary
// into a Profile with every known key present. Grouped objects, flat objects,
// unit-suffixed keys, numeric strings and wrapper objects ("nutrition",
// "calculated_nutrition") are all accepted. Negative values are clamped to
// zero and unknown keys are dropped.
func Canonicalize(raw map[string]any) Profile {
	p := NewProfile()
	merge(&p, raw, "", true, map[nutrientRef]int{})
	return p
}

// canonicalizeSparse is Canonicalize without pre-filling keys, so absent
// keys stay absent. Goal profiles need that distinction.
func canonicalizeSparse(raw map[string]any) Profile {
	p := Profile{}
	merge(&p, raw, "", false, map[nutrientRef]int{})
	return p
}

// Spelling ranks used when several keys name the same nutrient. The
// canonical spelling beats an alias; between equal ranks the first key in
// sorted order is kept.
const (
	rankAlias = iota + 1
	rankCanonical
)

func merge(p *Profile, raw map[string]any, hint GroupName, clampNegative bool, seen map[nutrientRef]int) {
	p.ensure()
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := raw[k]
		nk := normalizeKey(k)
		if wrappers[nk] {
			if nested, ok := v.(map[string]any); ok {
				merge(p, nested, "", clampNegative, seen)
			}
			continue
		}
		if g, ok := groupAliases[nk]; ok {
			if nested, ok := v.(map[string]any); ok {
				merge(p, nested, g, clampNegative, seen)
			}
			continue
		}
		ref, ok := resolve(k, hint)
		if !ok {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			continue
		}
		if f < 0 && clampNegative {
			f = 0
		}
		rank := rankAlias
		if nk == ref.key {
			rank = rankCanonical
		}
		if rank <= seen[ref] {
			continue
		}
		seen[ref] = rank
		p.Group(ref.group)[ref.key] = f
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// UnmarshalJSON routes every decoded profile through Canonicalize.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Canonicalize(raw)
	return nil
}
