package catalog

import (
	"sort"
	"strings"
)

// tasteTerms keeps rasa words out of the category facet. Category tags in
// imported data often repeat the taste ("Sweet Fruits"), which would
// duplicate the taste filter.
var tasteTerms = []string{
	"sweet", "sour", "salty", "pungent", "bitter", "astringent",
	"madhura", "amla", "lavana", "katu", "tikta", "kashaya",
}

func isTasteTerm(tag string) bool {
	t := strings.ToLower(tag)
	for _, term := range tasteTerms {
		if strings.Contains(t, term) {
			return true
		}
	}
	return false
}

// Facets lists the values the catalog filters can take.
type Facets struct {
	Categories []string   `json:"categories"`
	Tastes     []string   `json:"tastes"`
	DietTypes  []DietType `json:"diet_types"`
	Doshas     []string   `json:"doshas"`
}

// BuildFacets derives filter options from a snapshot.
func BuildFacets(snapshot []*FoodItem) Facets {
	return Facets{
		Categories: CategoryFacets(snapshot),
		Tastes:     TasteFacets(snapshot),
		DietTypes:  DietTypes,
		Doshas:     Doshas,
	}
}

// CategoryFacets returns the distinct category tags, case-insensitively
// deduplicated and sorted, excluding any tag containing a taste term.
func CategoryFacets(snapshot []*FoodItem) []string {
	return distinct(snapshot, func(f *FoodItem) []string { return f.Categories }, isTasteTerm)
}

// TasteFacets returns the distinct taste tags, sorted.
func TasteFacets(snapshot []*FoodItem) []string {
	return distinct(snapshot, func(f *FoodItem) []string { return f.Tastes }, nil)
}

func distinct(snapshot []*FoodItem, tags func(*FoodItem) []string, exclude func(string) bool) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, f := range snapshot {
		if f == nil {
			continue
		}
		for _, t := range tags(f) {
			t = strings.TrimSpace(t)
			k := strings.ToLower(t)
			if t == "" || seen[k] || (exclude != nil && exclude(t)) {
				continue
			}
			seen[k] = true
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}
