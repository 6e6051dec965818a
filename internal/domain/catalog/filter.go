package catalog

import (
	"sort"
	"strings"
	"unicode"

	"github.com/ayurdiet/ayurdiet/internal/domain/nutrition"
	"github.com/ayurdiet/ayurdiet/pkg/pagination"
)

// TasteAll is the taste selection that disables taste filtering.
const TasteAll = "All"

// DefaultPageSize is used when a query does not set one.
const DefaultPageSize = 12

// DietType is derived from a food's categories and name, never stored.
type DietType string

const (
	DietVeg    DietType = "Veg"
	DietVegEgg DietType = "Veg+Egg"
	DietNonVeg DietType = "Non-Veg"
)

// DietTypes lists every diet type in display order.
var DietTypes = []DietType{DietVeg, DietVegEgg, DietNonVeg}

// ParseDietType accepts the display labels and the usual query spellings.
func ParseDietType(s string) (DietType, bool) {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, " ", ""))) {
	case "veg", "vegetarian":
		return DietVeg, true
	case "veg+egg", "vegegg", "veg-egg", "egg", "eggetarian":
		return DietVegEgg, true
	case "non-veg", "nonveg", "non_veg":
		return DietNonVeg, true
	}
	return "", false
}

// Keyword lists for diet classification. Keywords match whole words, with
// a plural "s" or "es" allowed, so "Crabapple" and "Eggplant" stay Veg.
var (
	nonVegKeywords = []string{
		"non-veg", "nonveg", "meat", "chicken", "mutton", "lamb", "goat", "beef",
		"pork", "bacon", "turkey", "duck", "fish", "seafood", "prawn", "shrimp",
		"crab", "lobster", "squid", "tuna", "salmon", "sardine", "mackerel",
		"pomfret", "rohu", "hilsa",
	}
	eggKeywords = []string{"egg", "omelette", "omelet"}

	// vegPhrases name vegetarian foods that contain a non-veg keyword. They
	// are removed before matching.
	vegPhrases = []string{
		"goat milk", "goats milk", "goat s milk", "goat cheese", "goat ghee",
		"turkey berry", "turkey berries", "duck weed", "duckweed",
	}
)

// ClassifyDiet labels a food by keyword search over its categories and name.
// Non-veg keywords are checked first, so a food matching both lists is
// Non-Veg.
func ClassifyDiet(f *FoodItem) DietType {
	text := dietWords(strings.Join(f.Categories, " ") + " " + f.Name)
	for _, p := range vegPhrases {
		text = strings.ReplaceAll(text, " "+p+" ", " ")
	}
	if containsKeyword(text, nonVegKeywords) {
		return DietNonVeg
	}
	if containsKeyword(text, eggKeywords) {
		return DietVegEgg
	}
	return DietVeg
}

// dietWords lowercases s and reduces it to space-separated words with a
// leading and trailing space.
func dietWords(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(words, " ") + " "
}

func containsKeyword(text string, keywords []string) bool {
	for _, k := range keywords {
		k = strings.TrimSpace(dietWords(k))
		for _, form := range []string{k, k + "s", k + "es"} {
			if strings.Contains(text, " "+form+" ") {
				return true
			}
		}
	}
	return false
}

// SortKey selects the ordering of query results.
type SortKey string

const (
	SortName     SortKey = "name"
	SortCalories SortKey = "calories"
	SortProtein  SortKey = "protein"
	SortCarbs    SortKey = "carbs"
	SortFiber    SortKey = "fiber"
)

var validSortKeys = map[SortKey]bool{
	SortName: true, SortCalories: true, SortProtein: true, SortCarbs: true, SortFiber: true,
}

func (k SortKey) Valid() bool { return validSortKeys[k] }

// DoshaFilter selects foods with the given effect on a dosha, e.g.
// {Dosha: "vata", Effect: "decreases"}.
type DoshaFilter struct {
	Dosha  string `json:"dosha"`
	Effect string `json:"effect"`
}

// ParseDoshaFilter reads "vata:decreases" or "decreases vata".
func ParseDoshaFilter(s string) (DoshaFilter, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if dosha, effect, ok := strings.Cut(s, ":"); ok {
		dosha, effect = strings.TrimSpace(dosha), strings.TrimSpace(effect)
		return DoshaFilter{Dosha: dosha, Effect: effect}, dosha != "" && effect != ""
	}
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return DoshaFilter{}, false
	}
	return DoshaFilter{Dosha: fields[1], Effect: fields[0]}, true
}

// Criteria is one catalog query. Zero values disable the matching filter.
type Criteria struct {
	Search     string        `json:"search,omitempty"`
	Categories []string      `json:"categories,omitempty"`
	Taste      string        `json:"taste,omitempty"`
	Doshas     []DoshaFilter `json:"doshas,omitempty"`
	DietType   DietType      `json:"diet_type,omitempty"`
	SortBy     SortKey       `json:"sort_by,omitempty"`
	Descending bool          `json:"descending,omitempty"`
	Page       int           `json:"page,omitempty"`
	PageSize   int           `json:"page_size,omitempty"`
}

// Result is one page of a query.
type Result struct {
	Items      []*FoodItem `json:"items"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// Query filters, sorts and paginates a catalog snapshot. The snapshot is
// not modified.
func Query(snapshot []*FoodItem, c Criteria) Result {
	items := Sort(Filter(snapshot, c), c.SortBy, c.Descending)

	page, size := c.Page, c.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	return Result{
		Items:      pagination.Page(items, page, size),
		Total:      len(items),
		Page:       page,
		PageSize:   size,
		TotalPages: pagination.TotalPages(len(items), size),
	}
}

// Filter returns the foods matching every predicate of c, in snapshot order.
func Filter(snapshot []*FoodItem, c Criteria) []*FoodItem {
	m := newMatcher(c)
	out := make([]*FoodItem, 0, len(snapshot))
	for _, f := range snapshot {
		if f != nil && m.match(f) {
			out = append(out, f)
		}
	}
	return out
}

type matcher struct {
	search     string
	categories map[string]bool
	taste      string
	doshas     []DoshaFilter
	diet       DietType
}

func newMatcher(c Criteria) matcher {
	m := matcher{
		search: strings.ToLower(strings.TrimSpace(c.Search)),
		diet:   c.DietType,
	}
	for _, cat := range c.Categories {
		if cat = strings.ToLower(strings.TrimSpace(cat)); cat != "" {
			if m.categories == nil {
				m.categories = make(map[string]bool)
			}
			m.categories[cat] = true
		}
	}
	if t := strings.TrimSpace(c.Taste); !strings.EqualFold(t, TasteAll) {
		m.taste = strings.ToLower(t)
	}
	for _, d := range c.Doshas {
		m.doshas = append(m.doshas, DoshaFilter{
			Dosha:  strings.ToLower(strings.TrimSpace(d.Dosha)),
			Effect: strings.ToLower(strings.TrimSpace(d.Effect)),
		})
	}
	return m
}

func (m matcher) match(f *FoodItem) bool {
	if m.search != "" &&
		!strings.Contains(strings.ToLower(f.Name), m.search) &&
		!strings.Contains(strings.ToLower(f.LocalName), m.search) &&
		!strings.Contains(strings.ToLower(f.Description), m.search) {
		return false
	}
	if m.categories != nil && !anyTag(f.Categories, func(t string) bool { return m.categories[t] }) {
		return false
	}
	if m.taste != "" && !anyTag(f.Tastes, func(t string) bool { return t == m.taste }) {
		return false
	}
	for _, d := range m.doshas {
		if !hasEffect(f.DoshaEffects, d) {
			return false
		}
	}
	if m.diet != "" && ClassifyDiet(f) != m.diet {
		return false
	}
	return true
}

func anyTag(tags []string, pred func(string) bool) bool {
	for _, t := range tags {
		if pred(strings.ToLower(strings.TrimSpace(t))) {
			return true
		}
	}
	return false
}

func hasEffect(effects map[string]string, d DoshaFilter) bool {
	for dosha, effect := range effects {
		if strings.EqualFold(dosha, d.Dosha) && strings.EqualFold(strings.TrimSpace(effect), d.Effect) {
			return true
		}
	}
	return false
}

// Sort returns a copy of items ordered by key. Ties keep snapshot order, and
// descending is the exact reverse of ascending. An unknown key keeps
// snapshot order.
func Sort(items []*FoodItem, key SortKey, descending bool) []*FoodItem {
	out := make([]*FoodItem, len(items))
	copy(out, items)
	if key == "" || !key.Valid() {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j], key) })
	if descending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

func less(a, b *FoodItem, key SortKey) bool {
	if key == SortName {
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	}
	return sortValue(a, key) < sortValue(b, key)
}

func sortValue(f *FoodItem, key SortKey) float64 {
	switch key {
	case SortCalories:
		return f.Nutrition.Get(nutrition.GroupMacros, nutrition.Calories)
	case SortProtein:
		return f.Nutrition.Get(nutrition.GroupMacros, nutrition.Protein)
	case SortCarbs:
		return f.Nutrition.Get(nutrition.GroupMacros, nutrition.Carbs)
	case SortFiber:
		return f.Nutrition.Get(nutrition.GroupMacros, nutrition.Fiber)
	}
	return 0
}
