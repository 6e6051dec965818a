package nutrition

import "math"

// PercentGroup holds whole-number percentages of goal.
type PercentGroup map[string]int

// Percentages mirrors GoalProfile so averages, goals and percentages can be
// zipped by group and key.
type Percentages struct {
	Macros   PercentGroup `json:"macronutrients"`
	Vitamins PercentGroup `json:"vitamins"`
	Minerals PercentGroup `json:"minerals"`
}

// Group returns the map backing the named group.
func (p Percentages) Group(name GroupName) PercentGroup {
	switch name {
	case GroupMacros:
		return p.Macros
	case GroupVitamins:
		return p.Vitamins
	case GroupMinerals:
		return p.Minerals
	}
	return nil
}

// PercentOfGoal returns round(value / goal * 100), or 0 when goal is not a
// positive number. The result is not capped.
func PercentOfGoal(value, goal float64) int {
	if !(goal > 0) || math.IsInf(goal, 0) || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return int(math.Round(value / goal * 100))
}

// Evaluate computes percentage-of-goal for every key of the resolved goal
// profile. Omitted goal groups and keys fall back to the defaults.
func Evaluate(dailyAverages Profile, goals GoalProfile) Percentages {
	resolved := goals.Resolve()
	out := Percentages{Macros: PercentGroup{}, Vitamins: PercentGroup{}, Minerals: PercentGroup{}}
	for _, name := range Groups {
		dst := out.Group(name)
		for k, goal := range resolved.Group(name) {
			dst[k] = PercentOfGoal(dailyAverages.Get(name, k), goal)
		}
	}
	return out
}

// ProgressPercent clamps a percentage to [0, 100] for progress bars.
func ProgressPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
