package dietchart

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ayurdiet/ayurdiet/internal/domain/nutrition"
)

func testEntry(t *testing.T, name string, calories, amount float64) nutrition.Entry {
	t.Helper()
	e, err := nutrition.NewEntry(uuid.NewString(), name, "Grains",
		nutrition.ServingSize{Amount: 100, Unit: nutrition.UnitGram},
		nutrition.Profile{Macros: nutrition.Group{nutrition.Calories: calories, nutrition.Protein: 10}},
		amount, "")
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	return e
}

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusActive, true},
		{StatusDraft, StatusCompleted, true},
		{StatusActive, StatusDraft, true},
		{StatusActive, StatusCompleted, true},
		{StatusActive, StatusDiscontinued, true},
		{StatusCompleted, StatusDiscontinued, true},
		{StatusCompleted, StatusActive, false},
		{StatusDiscontinued, StatusActive, false},
		{StatusDiscontinued, StatusDiscontinued, true},
		{StatusActive, Status("archived"), false},
		{Status("archived"), Status("archived"), false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestPatientSnapshot_Validate(t *testing.T) {
	ok := PatientSnapshot{PatientID: uuid.New(), Name: "  Asha  ", Age: 34}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok.Name != "Asha" {
		t.Errorf("expected trimmed name, got %q", ok.Name)
	}

	bad := []PatientSnapshot{
		{Name: "Asha"},
		{PatientID: uuid.New(), Name: " "},
		{PatientID: uuid.New(), Name: "Asha", Age: -1},
		{PatientID: uuid.New(), Name: "Asha", Age: 151},
	}
	for i, p := range bad {
		if err := p.Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestPatch_ChangedAndRecomputes(t *testing.T) {
	instructions := "warm water"
	status := StatusCompleted
	p := Patch{SpecialInstructions: &instructions, Status: &status}
	if got := p.Changed(); !reflect.DeepEqual(got, []string{"special_instructions", "status"}) {
		t.Errorf("unexpected changed fields: %v", got)
	}
	if p.Recomputes() {
		t.Error("instructions and status should not recompute")
	}

	plan := nutrition.NewWeeklyMealPlan()
	if !(Patch{MealPlan: &plan}).Recomputes() {
		t.Error("meal plan change should recompute")
	}
	if !(Patch{Goals: &nutrition.GoalProfile{}}).Recomputes() {
		t.Error("goal change should recompute")
	}
	if len(Patch{}.Changed()) != 0 {
		t.Error("empty patch should change nothing")
	}
}

func TestPatch_Apply(t *testing.T) {
	c := &DietChart{
		Status:              StatusActive,
		SpecialInstructions: "old",
		Considerations:      "keep",
		DietaryRestrictions: []string{"gluten"},
	}
	instructions := "new"
	restrictions := []string{" dairy ", "", "nuts"}
	goals := nutrition.GoalProfile{Macros: nutrition.Group{nutrition.Calories: 1800}}
	Patch{
		SpecialInstructions: &instructions,
		DietaryRestrictions: &restrictions,
		Goals:               &goals,
	}.Apply(c)

	if c.SpecialInstructions != "new" {
		t.Errorf("expected new instructions, got %q", c.SpecialInstructions)
	}
	if c.Considerations != "keep" || c.Status != StatusActive {
		t.Error("unset fields must be left alone")
	}
	if !reflect.DeepEqual(c.DietaryRestrictions, []string{"dairy", "nuts"}) {
		t.Errorf("unexpected restrictions: %v", c.DietaryRestrictions)
	}
	if c.Goals == nil || c.Goals.Macros[nutrition.Calories] != 1800 {
		t.Errorf("goals not applied: %+v", c.Goals)
	}
}

func TestDietChart_Recompute(t *testing.T) {
	c := &DietChart{}
	c.Recompute()
	if len(c.MealPlan) != 7 {
		t.Fatalf("expected a complete plan, got %d days", len(c.MealPlan))
	}
	if c.Summary.Goals.Macros[nutrition.Calories] != 2000 {
		t.Errorf("expected default calorie goal, got %v", c.Summary.Goals.Macros[nutrition.Calories])
	}

	c.MealPlan.AddEntry(nutrition.Monday, nutrition.Breakfast, testEntry(t, "Rice", 100, 700))
	c.Goals = &nutrition.GoalProfile{Macros: nutrition.Group{nutrition.Calories: 1000}}
	c.Recompute()
	if got := c.Summary.WeeklyTotals.Get(nutrition.GroupMacros, nutrition.Calories); got != 700 {
		t.Errorf("expected weekly calories 700, got %v", got)
	}
	if got := c.Summary.DailyAverages.Get(nutrition.GroupMacros, nutrition.Calories); got != 100 {
		t.Errorf("expected daily calories 100, got %v", got)
	}
	if got := c.Summary.Percentages.Macros[nutrition.Calories]; got != 10 {
		t.Errorf("expected 10%% of goal, got %d", got)
	}
}

func TestValidatePlan(t *testing.T) {
	good := nutrition.NewWeeklyMealPlan()
	good.AddEntry(nutrition.Friday, nutrition.Dinner, testEntry(t, "Rice", 130, 150))
	if err := validatePlan(good); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]nutrition.Entry{
		"no identity":  {Amount: 1, Serving: nutrition.ServingSize{Amount: 100, Unit: nutrition.UnitGram}},
		"negative":     {Name: "x", Amount: -1, Serving: nutrition.ServingSize{Amount: 100, Unit: nutrition.UnitGram}},
		"nan":          {Name: "x", Amount: math.NaN(), Serving: nutrition.ServingSize{Amount: 100, Unit: nutrition.UnitGram}},
		"bad unit":     {Name: "x", Amount: 1, ServingUnit: "bucket", Serving: nutrition.ServingSize{Amount: 100, Unit: nutrition.UnitGram}},
		"no serving":   {Name: "x", Amount: 1},
		"zero serving": {Name: "x", Amount: 1, Serving: nutrition.ServingSize{Amount: 0, Unit: nutrition.UnitGram}},
	}
	for name, e := range cases {
		t.Run(name, func(t *testing.T) {
			plan := nutrition.NewWeeklyMealPlan()
			plan.AddEntry(nutrition.Tuesday, nutrition.Lunch, e)
			if err := validatePlan(plan); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}

	// A stored contribution makes the native serving irrelevant.
	calc := nutrition.Profile{Macros: nutrition.Group{nutrition.Calories: 50}}
	plan := nutrition.NewWeeklyMealPlan()
	plan.AddEntry(nutrition.Tuesday, nutrition.Lunch, nutrition.Entry{Name: "legacy", Amount: 1, Calculated: &calc})
	if err := validatePlan(plan); err != nil {
		t.Errorf("entry with calculated nutrition should pass: %v", err)
	}
}

func TestValidateDates(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)
	if err := validateDates(&start, &end); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateDates(&end, &start); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if err := validateDates(nil, &start); err != nil {
		t.Errorf("open start should pass: %v", err)
	}
}
