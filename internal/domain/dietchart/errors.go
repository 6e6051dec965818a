package dietchart

import "errors"

var (
	ErrValidation = errors.New("invalid diet chart")
	ErrNotFound   = errors.New("diet chart not found")
	// ErrUnauthorized means the caller does not own the chart.
	ErrUnauthorized = errors.New("not the chart's practitioner")
	// ErrUpstreamGeneration wraps every failure to obtain a usable plan from
	// the meal-plan proposer.
	ErrUpstreamGeneration = errors.New("meal plan generation failed")
	// ErrConflict means the chart changed since the version the caller read.
	ErrConflict = errors.New("diet chart was modified concurrently")
)
