package nutrition

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCanonicalize_Shapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[GroupName]Group
	}{
		{
			name: "grouped",
			raw:  `{"macronutrients":{"calories":120,"protein":4},"vitamins":{"vitamin_c":12},"minerals":{"iron":1.1}}`,
			want: map[GroupName]Group{
				GroupMacros:   {Calories: 120, Protein: 4},
				GroupVitamins: {VitaminC: 12},
				GroupMinerals: {Iron: 1.1},
			},
		},
		{
			name: "flat with unit suffixes",
			raw:  `{"energy_kcal":95,"Protein_g":3.2,"carbohydrates":18,"calcium_mg":40,"folate_mcg":25}`,
			want: map[GroupName]Group{
				GroupMacros:   {Calories: 95, Protein: 3.2, Carbs: 18},
				GroupVitamins: {Folate: 25},
				GroupMinerals: {Calcium: 40},
			},
		},
		{
			name: "wrapped",
			raw:  `{"nutrition":{"macros":{"kcal":"210","fibre":"2.5"}}}`,
			want: map[GroupName]Group{
				GroupMacros: {Calories: 210, Fiber: 2.5},
			},
		},
		{
			name: "bare vitamin letters",
			raw:  `{"vitamins":{"c":30,"B12":0.4,"a":100}}`,
			want: map[GroupName]Group{
				GroupVitamins: {VitaminC: 30, VitaminB12: 0.4, VitaminA: 100},
			},
		},
		{
			name: "synonyms",
			raw:  `{"thiamine":0.2,"riboflavin":0.1,"niacin":1.5,"dietary-fiber":7}`,
			want: map[GroupName]Group{
				GroupMacros:   {Fiber: 7},
				GroupVitamins: {VitaminB1: 0.2, VitaminB2: 0.1, VitaminB3: 1.5},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw map[string]any
			if err := json.Unmarshal([]byte(tt.raw), &raw); err != nil {
				t.Fatal(err)
			}
			p := Canonicalize(raw)
			for _, g := range Groups {
				if len(p.Group(g)) != len(KeysFor(g)) {
					t.Errorf("%s has %d keys, want %d", g, len(p.Group(g)), len(KeysFor(g)))
				}
				for _, k := range KeysFor(g) {
					want := tt.want[g][k]
					if got := p.Get(g, k); !approx(got, want) {
						t.Errorf("%s.%s = %v, want %v", g, k, got, want)
					}
				}
			}
		})
	}
}

func TestCanonicalize_DropsUnknownAndClampsNegative(t *testing.T) {
	p := Canonicalize(map[string]any{
		"calories": -40,
		"gluten":   3,
		"protein":  "not a number",
		"fat":      2,
	})
	if p.Macros[Calories] != 0 {
		t.Errorf("calories = %v, want 0", p.Macros[Calories])
	}
	if p.Macros[Protein] != 0 {
		t.Errorf("protein = %v, want 0", p.Macros[Protein])
	}
	if p.Macros[Fat] != 2 {
		t.Errorf("fat = %v, want 2", p.Macros[Fat])
	}
	for _, g := range Groups {
		if _, ok := p.Group(g)["gluten"]; ok {
			t.Errorf("unknown key kept in %s", g)
		}
	}
}

func TestProfile_UnmarshalJSON(t *testing.T) {
	var p Profile
	if err := json.Unmarshal([]byte(`{"calories":50,"vitamins":{"k":12}}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.Macros[Calories] != 50 || p.Vitamins[VitaminK] != 12 {
		t.Errorf("unexpected profile %+v", p)
	}
	if _, ok := p.Minerals[Zinc]; !ok {
		t.Error("expected zinc key to be filled")
	}
}

func TestEntry_UnmarshalJSON_Variants(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantID      string
		wantAmount  float64
		wantUnit    ServingUnit
		wantCal     float64
		wantPrecalc bool
	}{
		{
			name:       "canonical",
			raw:        `{"food_id":"f1","name":"Rice","serving_size":{"amount":100,"unit":"g"},"nutrition":{"macronutrients":{"calories":130}},"amount":200,"serving_unit":"g"}`,
			wantID:     "f1",
			wantAmount: 200,
			wantUnit:   UnitGram,
			wantCal:    260,
		},
		{
			name:       "id and quantity spellings",
			raw:        `{"id":"f2","name":"Milk","serving_size":{"amount":250,"unit":"ml"},"macronutrients":{"calories":150},"quantity":125,"unit":"ml"}`,
			wantID:     "f2",
			wantAmount: 125,
			wantUnit:   UnitMilliliter,
			wantCal:    75,
		},
		{
			name:        "precalculated",
			raw:         `{"food_id":"f3","name":"Ghee","serving_size":{"amount":5,"unit":"g"},"nutrition":{"calories":45},"amount":10,"serving_unit":"g","calculated_nutrition":{"macronutrients":{"calories":91}}}`,
			wantID:      "f3",
			wantAmount:  10,
			wantUnit:    UnitGram,
			wantCal:     91,
			wantPrecalc: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Entry
			if err := json.Unmarshal([]byte(tt.raw), &e); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if e.FoodID != tt.wantID {
				t.Errorf("food id = %q, want %q", e.FoodID, tt.wantID)
			}
			if e.Amount != tt.wantAmount {
				t.Errorf("amount = %v, want %v", e.Amount, tt.wantAmount)
			}
			if e.ServingUnit != tt.wantUnit {
				t.Errorf("unit = %q, want %q", e.ServingUnit, tt.wantUnit)
			}
			if (e.Calculated != nil) != tt.wantPrecalc {
				t.Errorf("calculated present = %v, want %v", e.Calculated != nil, tt.wantPrecalc)
			}
			if got := EntryCalories(e); !approx(got, tt.wantCal) {
				t.Errorf("calories = %v, want %v", got, tt.wantCal)
			}
			if got := e.Contribution().Macros[Calories]; !approx(got, tt.wantCal) {
				t.Errorf("contribution calories = %v, want %v", got, tt.wantCal)
			}
		})
	}
}

func TestWeeklyMealPlan_UnmarshalJSON(t *testing.T) {
	raw := `{
		"Mon": {"Breakfast": [{"food_id":"a","name":"Poha","serving_size":{"amount":100,"unit":"g"},"nutrition":{"calories":130},"amount":150}]},
		"monday": {"snack": [{"food_id":"b","name":"Apple","serving_size":{"amount":1,"unit":"piece"},"nutrition":{"calories":95},"amount":1}]}
	}`
	var plan WeeklyMealPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(plan) != 7 {
		t.Fatalf("days = %d, want 7", len(plan))
	}
	if len(plan[Monday][Breakfast]) != 1 || len(plan[Monday][Snacks]) != 1 {
		t.Errorf("monday = %+v", plan[Monday])
	}
	if got := DayCalories(plan, Monday); !approx(got, 290) {
		t.Errorf("monday calories = %v, want 290", got)
	}
	if plan[Sunday][Dinner] == nil {
		t.Error("expected empty sunday dinner slot")
	}
}

func TestWeeklyMealPlan_UnmarshalJSON_Rejects(t *testing.T) {
	for _, raw := range []string{
		`{"funday": {"lunch": []}}`,
		`{"monday": {"brunch": []}}`,
	} {
		var plan WeeklyMealPlan
		err := json.Unmarshal([]byte(raw), &plan)
		if !errors.Is(err, ErrInvalidPlan) {
			t.Errorf("%s: err = %v, want ErrInvalidPlan", raw, err)
		}
	}
}

func TestParseDayAndSlot(t *testing.T) {
	if d, ok := ParseDay("WED"); !ok || d != Wednesday {
		t.Errorf("ParseDay(WED) = %q, %v", d, ok)
	}
	if _, ok := ParseDay("we"); ok {
		t.Error("two-letter day should not parse")
	}
	if s, ok := ParseSlot(" Snack "); !ok || s != Snacks {
		t.Errorf("ParseSlot(Snack) = %q, %v", s, ok)
	}
	if _, ok := ParseSlot("supper"); ok {
		t.Error("supper should not parse")
	}
}

func TestCanonicalize_AliasPrecedence(t *testing.T) {
	for i := 0; i < 50; i++ {
		p := Canonicalize(map[string]any{
			"carbohydrates": 30,
			"carbohydrate":  20,
			"carbs":         12,
			"fibre":         4,
			"dietary_fiber": 6,
		})
		if p.Macros[Carbs] != 12 {
			t.Fatalf("carbs = %v, want canonical spelling 12", p.Macros[Carbs])
		}
		if p.Macros[Fiber] != 6 {
			t.Fatalf("fiber = %v, want first alias in key order 6", p.Macros[Fiber])
		}
	}
}

func TestCanonicalize_CanonicalBeatsWrappedAlias(t *testing.T) {
	p := Canonicalize(map[string]any{
		"calories":  200,
		"nutrition": map[string]any{"kcal": 150},
	})
	if p.Macros[Calories] != 200 {
		t.Errorf("calories = %v, want 200", p.Macros[Calories])
	}
}
