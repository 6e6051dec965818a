package catalog

import (
	"fmt"
	"testing"
)

func TestCategoryFacets_ExcludesTasteTerms(t *testing.T) {
	cat := testCatalog()
	cat = append(cat, testFood("Tamarind", []string{"Sour Fruits", "fruits", "Condiments"}, []string{"Sour"}, 239, 2.8))

	got := CategoryFacets(cat)
	want := []string{"Breakfast", "Condiments", "Dairy", "Fats", "Fruits", "Grains", "Legumes", "Non-Veg Dish", "Vegetables"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("CategoryFacets = %v, want %v", got, want)
	}
}

func TestTasteFacets(t *testing.T) {
	got := TasteFacets(testCatalog())
	want := []string{"Astringent", "Bitter", "Pungent", "Salty", "Sweet"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("TasteFacets = %v, want %v", got, want)
	}
}

func TestIsTasteTerm(t *testing.T) {
	tests := []struct {
		tag  string
		want bool
	}{
		{"Sweet Fruits", true},
		{"BITTER greens", true},
		{"Madhura rasa", true},
		{"Legumes", false},
		{"Dairy", false},
	}
	for _, tt := range tests {
		if got := isTasteTerm(tt.tag); got != tt.want {
			t.Errorf("isTasteTerm(%q) = %v, want %v", tt.tag, got, tt.want)
		}
	}
}

func TestBuildFacets_Empty(t *testing.T) {
	f := BuildFacets(nil)
	if f.Categories == nil || len(f.Categories) != 0 {
		t.Errorf("expected empty categories, got %v", f.Categories)
	}
	if len(f.DietTypes) != 3 || len(f.Doshas) != 3 {
		t.Errorf("expected fixed diet types and doshas, got %v %v", f.DietTypes, f.Doshas)
	}
}
