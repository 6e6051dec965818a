// Package proposer is the HTTP client for the external meal-plan proposer,
// a retrieval-augmented language model service that suggests a weekly plan
// as food ids and amounts. Any transport or format failure is reported as
// ErrUpstream; nothing is ever substituted for a missing reply.
package proposer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/ayurdiet/ayurdiet/internal/domain/nutrition"
)

// ErrUpstream marks every failure of the proposer call.
var ErrUpstream = errors.New("meal plan proposer failed")

// PatientContext is the serialized patient state sent with each request.
type PatientContext struct {
	Name         string   `json:"name,omitempty"`
	Age          int      `json:"age,omitempty"`
	Gender       string   `json:"gender,omitempty"`
	Constitution string   `json:"constitution,omitempty"`
	Condition    string   `json:"condition,omitempty"`
	Symptoms     []string `json:"symptoms,omitempty"`
	Allergies    []string `json:"allergies,omitempty"`
	Goals        []string `json:"goals,omitempty"`
}

// Request asks for a weekly plan. A nil Goals asks the proposer to choose
// targets as well.
type Request struct {
	Patient      PatientContext         `json:"patient"`
	Goals        *nutrition.GoalProfile `json:"goals"`
	Restrictions []string               `json:"dietary_restrictions,omitempty"`
}

// ProposedEntry is one suggested food in a slot.
type ProposedEntry struct {
	FoodID string  `json:"food_id"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit,omitempty"`
}

// Proposal is the proposer's reply. Day and slot names are as sent by the
// service and still need canonicalizing.
type Proposal struct {
	MealPlan       map[string]map[string][]ProposedEntry `json:"meal_plan"`
	Goals          *nutrition.GoalProfile                `json:"goals,omitempty"`
	Considerations string                                `json:"considerations,omitempty"`
}

// Entries counts proposed entries across the plan.
func (p *Proposal) Entries() int {
	n := 0
	for _, meals := range p.MealPlan {
		for _, entries := range meals {
			n += len(entries)
		}
	}
	return n
}

// Config configures the client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
}

// Client calls the proposer's POST /v1/meal-plans endpoint.
type Client struct {
	http   *resty.Client
	logger zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = time.Second
	}
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(5*cfg.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		rc.SetAuthToken(cfg.APIKey)
	}
	return &Client{
		http:   rc,
		logger: logger.With().Str("component", "proposer").Logger(),
	}
}

// Propose requests a weekly plan. A reply with no entries at all is treated
// as a failure.
func (c *Client) Propose(ctx context.Context, req Request) (*Proposal, error) {
	start := time.Now()
	var out Proposal
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/v1/meal-plans")
	if err != nil {
		c.logger.Error().Err(err).Msg("proposer call failed")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.IsError() {
		c.logger.Error().
			Int("status", resp.StatusCode()).
			Str("body", truncate(resp.String(), 256)).
			Msg("proposer returned error status")
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode())
	}
	if out.MealPlan == nil || out.Entries() == 0 {
		c.logger.Error().Int("status", resp.StatusCode()).Msg("proposer returned an empty meal plan")
		return nil, fmt.Errorf("%w: empty meal plan", ErrUpstream)
	}

	c.logger.Info().
		Int("entries", out.Entries()).
		Dur("latency", time.Since(start)).
		Msg("meal plan proposed")
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
