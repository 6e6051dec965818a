package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayurdiet/ayurdiet/internal/domain/nutrition"
)

var (
	ErrValidation = errors.New("invalid food item")
	ErrNotFound   = errors.New("food not found")
)

// Dosha effect values.
const (
	EffectIncreases = "increases"
	EffectDecreases = "decreases"
	EffectBalances  = "balances"
)

// Doshas are the constitutional categories foods are tagged against.
var Doshas = []string{"vata", "pitta", "kapha"}

// FoodItem maps to the food_item table. Nutrition is expressed per Serving.
// The Ayurvedic fields only drive filtering and display.
type FoodItem struct {
	ID           uuid.UUID             `json:"id"`
	Name         string                `json:"name"`
	LocalName    string                `json:"local_name,omitempty"`
	Description  string                `json:"description,omitempty"`
	Categories   []string              `json:"categories"`
	Serving      nutrition.ServingSize `json:"serving_size"`
	Nutrition    nutrition.Profile     `json:"nutrition"`
	Tastes       []string              `json:"tastes,omitempty"`
	DoshaEffects map[string]string     `json:"dosha_effects,omitempty"`
	Qualities    []string              `json:"qualities,omitempty"`
	Virya        string                `json:"virya,omitempty"`
	Vipaka       string                `json:"vipaka,omitempty"`
	VersionID    int                   `json:"version_id"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// Category is the primary category label, used when the food is copied
// into a meal entry.
func (f *FoodItem) Category() string {
	if len(f.Categories) == 0 {
		return ""
	}
	return f.Categories[0]
}

// Validate normalizes tags and checks the serving and nutrient invariants.
func (f *FoodItem) Validate() error {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if err := f.Serving.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	for _, g := range nutrition.Groups {
		for k, v := range f.Nutrition.Group(g) {
			if v < 0 {
				return fmt.Errorf("%w: %s.%s must not be negative", ErrValidation, g, k)
			}
		}
	}
	f.Categories = cleanTags(f.Categories)
	f.Tastes = cleanTags(f.Tastes)
	f.Qualities = cleanTags(f.Qualities)
	if len(f.DoshaEffects) > 0 {
		effects := make(map[string]string, len(f.DoshaEffects))
		for dosha, effect := range f.DoshaEffects {
			d := strings.ToLower(strings.TrimSpace(dosha))
			e := strings.ToLower(strings.TrimSpace(effect))
			if d == "" || e == "" {
				continue
			}
			effects[d] = e
		}
		f.DoshaEffects = effects
	}
	return nil
}

// Entry snapshots the food into a meal entry for the consumed amount. An
// empty unit means the food's native unit.
func (f *FoodItem) Entry(amount float64, unit nutrition.ServingUnit) (nutrition.Entry, error) {
	return nutrition.NewEntry(f.ID.String(), f.Name, f.Category(), f.Serving, f.Nutrition, amount, unit)
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		k := strings.ToLower(t)
		if t == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}
