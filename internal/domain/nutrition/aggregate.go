package nutrition

// DaysPerWeek is the divisor for daily averages.
const DaysPerWeek = 7

// WeekAggregate holds unrounded weekly totals and their daily averages.
type WeekAggregate struct {
	Totals        Profile
	DailyAverages Profile
}

// AggregateWeek sums every entry's contribution across the week. Days and
// slots are walked in fixed order so results are reproducible bit for bit.
func AggregateWeek(plan WeeklyMealPlan) WeekAggregate {
	totals := NewProfile()
	for _, d := range Days {
		for _, s := range Slots {
			for _, e := range plan[d][s] {
				totals.Add(e.Contribution())
			}
		}
	}
	return WeekAggregate{
		Totals:        totals,
		DailyAverages: totals.Div(DaysPerWeek),
	}
}

// MealTotals sums one slot of one day.
func MealTotals(plan WeeklyMealPlan, d Day, s Slot) Profile {
	totals := NewProfile()
	for _, e := range plan[d][s] {
		totals.Add(e.Contribution())
	}
	return totals
}

// DayTotals sums all slots of one day.
func DayTotals(plan WeeklyMealPlan, d Day) Profile {
	totals := NewProfile()
	for _, s := range Slots {
		totals.Add(MealTotals(plan, d, s))
	}
	return totals
}

// EntryCalories is the calorie contribution of one entry, from the stored
// calculated profile when present, otherwise calories / native * amount.
func EntryCalories(e Entry) float64 {
	if e.Calculated != nil {
		return e.Calculated.Macros[Calories]
	}
	if !(e.Serving.Amount > 0) || !(e.Amount >= 0) {
		return 0
	}
	return e.Nutrition.Macros[Calories] / e.Serving.Amount * e.Amount
}

// MealCalories sums the calories of one slot.
func MealCalories(plan WeeklyMealPlan, d Day, s Slot) float64 {
	var sum float64
	for _, e := range plan[d][s] {
		sum += EntryCalories(e)
	}
	return sum
}

// DayCalories sums the calories of one day.
func DayCalories(plan WeeklyMealPlan, d Day) float64 {
	var sum float64
	for _, s := range Slots {
		sum += MealCalories(plan, d, s)
	}
	return sum
}
