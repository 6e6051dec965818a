package dietchart

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayurdiet/ayurdiet/internal/domain/nutrition"
)

type Status string

const (
	StatusDraft        Status = "draft"
	StatusActive       Status = "active"
	StatusCompleted    Status = "completed"
	StatusDiscontinued Status = "discontinued"
)

var transitions = map[Status][]Status{
	StatusDraft:        {StatusActive, StatusCompleted, StatusDiscontinued},
	StatusActive:       {StatusDraft, StatusCompleted, StatusDiscontinued},
	StatusCompleted:    {StatusDiscontinued},
	StatusDiscontinued: {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether a chart in s may move to next. Staying in
// the same status is always allowed.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return next.Valid()
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PatientSnapshot is the patient as they were when the chart was written.
// It is never refreshed from the patient record.
type PatientSnapshot struct {
	PatientID    uuid.UUID `json:"patient_id"`
	Name         string    `json:"name"`
	Age          int       `json:"age,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	Constitution string    `json:"constitution,omitempty"`
	Condition    string    `json:"condition,omitempty"`
	Symptoms     []string  `json:"symptoms,omitempty"`
	Allergies    []string  `json:"allergies,omitempty"`
	Goals        []string  `json:"goals,omitempty"`
}

func (p *PatientSnapshot) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient.patient_id is required", ErrValidation)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: patient.name is required", ErrValidation)
	}
	if p.Age < 0 || p.Age > 150 {
		return fmt.Errorf("%w: patient.age %d out of range", ErrValidation, p.Age)
	}
	return nil
}

// DietChart maps to the diet_chart table. Summary is derived from MealPlan
// and Goals and is recomputed whenever either changes.
type DietChart struct {
	ID                  uuid.UUID                `json:"id"`
	PractitionerID      uuid.UUID                `json:"practitioner_id"`
	Patient             PatientSnapshot          `json:"patient"`
	Status              Status                   `json:"status"`
	Goals               *nutrition.GoalProfile   `json:"goals,omitempty"`
	MealPlan            nutrition.WeeklyMealPlan `json:"meal_plan"`
	Summary             nutrition.Summary        `json:"nutrition_summary"`
	SpecialInstructions string                   `json:"special_instructions,omitempty"`
	DietaryRestrictions []string                 `json:"dietary_restrictions"`
	Considerations      string                   `json:"considerations,omitempty"`
	StartDate           *time.Time               `json:"start_date,omitempty"`
	EndDate             *time.Time               `json:"end_date,omitempty"`
	VersionID           int                      `json:"version_id"`
	CreatedAt           time.Time                `json:"created_at"`
	UpdatedAt           time.Time                `json:"updated_at"`
}

// GoalProfile is the chart's custom goals, or the empty profile when the
// defaults apply.
func (c *DietChart) GoalProfile() nutrition.GoalProfile {
	if c.Goals == nil {
		return nutrition.GoalProfile{}
	}
	return *c.Goals
}

// Recompute refreshes the summary from the meal plan and goals.
func (c *DietChart) Recompute() {
	if c.MealPlan == nil {
		c.MealPlan = nutrition.NewWeeklyMealPlan()
	}
	c.MealPlan.Normalize()
	c.Summary = nutrition.Summarize(c.MealPlan, c.GoalProfile())
}

// CreateInput is what a practitioner submits to write a new chart.
type CreateInput struct {
	Patient             PatientSnapshot          `json:"patient"`
	Goals               *nutrition.GoalProfile   `json:"goals,omitempty"`
	MealPlan            nutrition.WeeklyMealPlan `json:"meal_plan"`
	Status              Status                   `json:"status,omitempty"`
	SpecialInstructions string                   `json:"special_instructions,omitempty"`
	DietaryRestrictions []string                 `json:"dietary_restrictions,omitempty"`
	Considerations      string                   `json:"considerations,omitempty"`
	StartDate           *time.Time               `json:"start_date,omitempty"`
	EndDate             *time.Time               `json:"end_date,omitempty"`
}

// Patch names exactly the fields an update changes. Nil fields are left
// alone.
type Patch struct {
	MealPlan            *nutrition.WeeklyMealPlan `json:"meal_plan,omitempty"`
	Goals               *nutrition.GoalProfile    `json:"goals,omitempty"`
	SpecialInstructions *string                   `json:"special_instructions,omitempty"`
	DietaryRestrictions *[]string                 `json:"dietary_restrictions,omitempty"`
	Considerations      *string                   `json:"considerations,omitempty"`
	Status              *Status                   `json:"status,omitempty"`
	StartDate           *time.Time                `json:"start_date,omitempty"`
	EndDate             *time.Time                `json:"end_date,omitempty"`
	// ExpectedVersion, when set, must match the stored version_id.
	ExpectedVersion *int `json:"version_id,omitempty"`
}

// Changed lists the names of the fields the patch sets, sorted.
func (p Patch) Changed() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(p.MealPlan != nil, "meal_plan")
	add(p.Goals != nil, "goals")
	add(p.SpecialInstructions != nil, "special_instructions")
	add(p.DietaryRestrictions != nil, "dietary_restrictions")
	add(p.Considerations != nil, "considerations")
	add(p.Status != nil, "status")
	add(p.StartDate != nil, "start_date")
	add(p.EndDate != nil, "end_date")
	sort.Strings(out)
	return out
}

// Recomputes reports whether applying the patch invalidates the summary.
func (p Patch) Recomputes() bool {
	return p.MealPlan != nil || p.Goals != nil
}

// Apply copies the patch onto c. It does not validate or recompute.
func (p Patch) Apply(c *DietChart) {
	if p.MealPlan != nil {
		c.MealPlan = *p.MealPlan
	}
	if p.Goals != nil {
		g := *p.Goals
		c.Goals = &g
	}
	if p.SpecialInstructions != nil {
		c.SpecialInstructions = *p.SpecialInstructions
	}
	if p.DietaryRestrictions != nil {
		c.DietaryRestrictions = cleanList(*p.DietaryRestrictions)
	}
	if p.Considerations != nil {
		c.Considerations = *p.Considerations
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.StartDate != nil {
		c.StartDate = p.StartDate
	}
	if p.EndDate != nil {
		c.EndDate = p.EndDate
	}
}

// validatePlan checks every entry of a complete plan. Entries carrying a
// precomputed contribution need no usable serving; all others do.
func validatePlan(plan nutrition.WeeklyMealPlan) error {
	for _, d := range nutrition.Days {
		for _, s := range nutrition.Slots {
			for i, e := range plan[d][s] {
				where := fmt.Sprintf("meal_plan.%s.%s[%d]", d, s, i)
				if strings.TrimSpace(e.FoodID) == "" && strings.TrimSpace(e.Name) == "" {
					return fmt.Errorf("%w: %s needs a food_id or name", ErrValidation, where)
				}
				if math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) || e.Amount < 0 {
					return fmt.Errorf("%w: %s amount must be a non-negative number", ErrValidation, where)
				}
				if e.ServingUnit != "" && !e.ServingUnit.Valid() {
					return fmt.Errorf("%w: %s unknown serving unit %q", ErrValidation, where, e.ServingUnit)
				}
				if e.Calculated == nil {
					if err := e.Serving.Validate(); err != nil {
						return fmt.Errorf("%w: %s %v", ErrValidation, where, err)
					}
				}
			}
		}
	}
	return nil
}

func validateDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return fmt.Errorf("%w: end_date before start_date", ErrValidation)
	}
	return nil
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
