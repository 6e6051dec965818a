package nutrition

// Summary is the derived nutrition view cached on a diet chart.
type Summary struct {
	WeeklyTotals  Profile     `json:"weekly_totals"`
	DailyAverages Profile     `json:"daily_averages"`
	Goals         GoalProfile `json:"goals"`
	Percentages   Percentages `json:"percentages"`
}

// Summarize aggregates plan and evaluates it against goals. Percentages are
// computed from the unrounded averages; totals and averages are rounded for
// presentation.
func Summarize(plan WeeklyMealPlan, goals GoalProfile) Summary {
	agg := AggregateWeek(plan)
	return Summary{
		WeeklyTotals:  agg.Totals.Rounded(),
		DailyAverages: agg.DailyAverages.Rounded(),
		Goals:         goals.Resolve(),
		Percentages:   Evaluate(agg.DailyAverages, goals),
	}
}

// Progress is a single nutrient row for display.
type Progress struct {
	Group    GroupName `json:"group"`
	Key      string    `json:"key"`
	Average  float64   `json:"average"`
	Goal     float64   `json:"goal"`
	Percent  int       `json:"percent"`
	Progress int       `json:"progress"`
}

// Rows flattens the summary into display rows in fixed group and key order.
// Custom goal keys outside the fixed sets are not listed.
func (s Summary) Rows() []Progress {
	var rows []Progress
	for _, g := range Groups {
		for _, k := range KeysFor(g) {
			pct := s.Percentages.Group(g)[k]
			rows = append(rows, Progress{
				Group:    g,
				Key:      k,
				Average:  s.DailyAverages.Get(g, k),
				Goal:     s.Goals.Group(g)[k],
				Percent:  pct,
				Progress: ProgressPercent(pct),
			})
		}
	}
	return rows
}
