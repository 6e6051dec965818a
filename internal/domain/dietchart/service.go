package dietchart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayurdiet/ayurdiet/internal/domain/catalog"
	"github.com/ayurdiet/ayurdiet/internal/domain/nutrition"
	"github.com/ayurdiet/ayurdiet/internal/platform/cache"
	"github.com/ayurdiet/ayurdiet/internal/platform/db"
	"github.com/ayurdiet/ayurdiet/internal/platform/proposer"
)

// Proposer suggests a weekly plan for a patient.
type Proposer interface {
	Propose(ctx context.Context, req proposer.Request) (*proposer.Proposal, error)
}

// FoodResolver looks foods up by id, returning the ids it could not find.
type FoodResolver interface {
	Resolve(ctx context.Context, ids []string) (map[string]*catalog.FoodItem, []string, error)
}

func tenantOf(ctx context.Context) string {
	if t := db.TenantFromContext(ctx); t != "" {
		return t
	}
	return "default"
}

// ChartKey is the cache key of a chart's detail view.
func ChartKey(tenant string, id uuid.UUID) string {
	return cache.Key(tenant, "chart", id.String())
}

// PatientChartsKey is the cache key of a patient's chart list.
func PatientChartsKey(tenant string, patientID uuid.UUID) string {
	return cache.Key(tenant, "patient", patientID.String(), "charts")
}

// PractitionerChartsKey is the cache key of a practitioner's chart list.
func PractitionerChartsKey(tenant string, practitionerID uuid.UUID) string {
	return cache.Key(tenant, "practitioner", practitionerID.String(), "charts")
}

// Service runs the diet chart lifecycle. It computes summaries through the
// nutrition engine, persists through the repository and signals the
// invalidator after every successful write.
type Service struct {
	repo        Repository
	foods       FoodResolver
	proposer    Proposer
	store       cache.Store
	invalidator cache.Invalidator
	ttl         time.Duration
	logger      zerolog.Logger
}

func NewService(repo Repository, foods FoodResolver, prop Proposer, store cache.Store, invalidator cache.Invalidator, ttl time.Duration, logger zerolog.Logger) *Service {
	if store == nil {
		store = cache.NewMemoryStore()
	}
	if invalidator == nil {
		invalidator = cache.StoreInvalidator(store)
	}
	return &Service{
		repo:        repo,
		foods:       foods,
		proposer:    prop,
		store:       store,
		invalidator: invalidator,
		ttl:         ttl,
		logger:      logger.With().Str("component", "dietchart").Logger(),
	}
}

// Create validates the input, computes the summary and stores a new chart
// owned by practitionerID. Missing days and slots become empty lists.
func (s *Service) Create(ctx context.Context, practitionerID uuid.UUID, in CreateInput) (*DietChart, error) {
	if practitionerID == uuid.Nil {
		return nil, fmt.Errorf("%w: practitioner is required", ErrValidation)
	}
	if err := in.Patient.Validate(); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	if status != StatusActive && status != StatusDraft {
		return nil, fmt.Errorf("%w: a new chart must be draft or active, got %q", ErrValidation, status)
	}
	if err := validateDates(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	plan := in.MealPlan
	if plan == nil {
		plan = nutrition.NewWeeklyMealPlan()
	}
	plan.Normalize()
	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	c := &DietChart{
		PractitionerID:      practitionerID,
		Patient:             in.Patient,
		Status:              status,
		Goals:               in.Goals,
		MealPlan:            plan,
		SpecialInstructions: in.SpecialInstructions,
		DietaryRestrictions: cleanList(in.DietaryRestrictions),
		Considerations:      in.Considerations,
		StartDate:           in.StartDate,
		EndDate:             in.EndDate,
	}
	c.Recompute()

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create diet chart: %w", err)
	}
	s.invalidate(ctx, c)
	s.logger.Info().
		Str("chart_id", c.ID.String()).
		Str("patient_id", c.Patient.PatientID.String()).
		Int("entries", c.MealPlan.Len()).
		Msg("diet chart created")
	return c, nil
}

// Get returns a chart, from the cache when possible.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*DietChart, error) {
	key := ChartKey(tenantOf(ctx), id)
	c, err := cache.GetJSON[*DietChart](ctx, s.store, key)
	if err == nil && c != nil {
		return c, nil
	}
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn().Err(err).Str("key", key).Msg("chart cache read failed")
	}

	c, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, s.store, key, c, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("chart cache write failed")
	}
	return c, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*DietChart, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]*DietChart, int, error) {
	return s.repo.ListByPractitioner(ctx, practitionerID, limit, offset)
}

// Update applies a patch to a chart owned by practitionerID. The summary is
// recomputed only when the meal plan or goals change.
func (s *Service) Update(ctx context.Context, practitionerID, id uuid.UUID, patch Patch) (*DietChart, error) {
	c, err := s.owned(ctx, practitionerID, id)
	if err != nil {
		return nil, err
	}
	if patch.Status != nil && !c.Status.CanTransition(*patch.Status) {
		return nil, fmt.Errorf("%w: cannot move from %s to %s", ErrValidation, c.Status, *patch.Status)
	}
	if patch.MealPlan != nil && *patch.MealPlan == nil {
		return nil, fmt.Errorf("%w: meal_plan must not be null", ErrValidation)
	}

	patch.Apply(c)
	if err := validateDates(c.StartDate, c.EndDate); err != nil {
		return nil, err
	}
	if patch.Recomputes() {
		c.MealPlan.Normalize()
		if err := validatePlan(c.MealPlan); err != nil {
			return nil, err
		}
		c.Recompute()
	}

	expected := 0
	if patch.ExpectedVersion != nil {
		expected = *patch.ExpectedVersion
	}
	if err := s.repo.Update(ctx, c, expected); err != nil {
		return nil, err
	}
	s.invalidate(ctx, c)
	s.logger.Info().
		Str("chart_id", c.ID.String()).
		Strs("fields", patch.Changed()).
		Bool("recomputed", patch.Recomputes()).
		Msg("diet chart updated")
	return c, nil
}

// SetStatus changes only the status.
func (s *Service) SetStatus(ctx context.Context, practitionerID, id uuid.UUID, status Status) (*DietChart, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.Update(ctx, practitionerID, id, Patch{Status: &status})
}

// Delete discontinues a chart, or removes it when hard is set. Deleting an
// already discontinued chart softly is a no-op.
func (s *Service) Delete(ctx context.Context, practitionerID, id uuid.UUID, hard bool) error {
	c, err := s.owned(ctx, practitionerID, id)
	if err != nil {
		return err
	}
	if !hard {
		if c.Status == StatusDiscontinued {
			return nil
		}
		c.Status = StatusDiscontinued
		if err := s.repo.Update(ctx, c, 0); err != nil {
			return err
		}
		s.invalidate(ctx, c)
		s.logger.Info().Str("chart_id", id.String()).Msg("diet chart discontinued")
		return nil
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, c)
	s.logger.Info().Str("chart_id", id.String()).Msg("diet chart deleted")
	return nil
}

// owned loads a chart straight from the repository and checks ownership.
// A missing chart is reported before an ownership failure.
func (s *Service) owned(ctx context.Context, practitionerID, id uuid.UUID) (*DietChart, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.PractitionerID != practitionerID {
		return nil, ErrUnauthorized
	}
	return c, nil
}

// SummaryView is a chart's summary flattened for progress display.
type SummaryView struct {
	ChartID uuid.UUID            `json:"chart_id"`
	Summary nutrition.Summary    `json:"summary"`
	Rows    []nutrition.Progress `json:"rows"`
}

func (s *Service) Summary(ctx context.Context, id uuid.UUID) (*SummaryView, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SummaryView{ChartID: c.ID, Summary: c.Summary, Rows: c.Summary.Rows()}, nil
}

// ProposeInput is the patient context sent to the proposer. A nil Goals
// lets the proposer choose targets.
type ProposeInput struct {
	Patient             PatientSnapshot        `json:"patient"`
	Goals               *nutrition.GoalProfile `json:"goals,omitempty"`
	DietaryRestrictions []string               `json:"dietary_restrictions,omitempty"`
}

// Proposal is a normalized proposer reply, ready to be reviewed and then
// submitted through Create. Nothing is persisted.
type Proposal struct {
	MealPlan       nutrition.WeeklyMealPlan `json:"meal_plan"`
	Goals          *nutrition.GoalProfile   `json:"goals,omitempty"`
	Considerations string                   `json:"considerations,omitempty"`
	Summary        nutrition.Summary        `json:"nutrition_summary"`
}

// Propose asks the proposer for a plan and resolves it against the catalog.
// Proposer failures and unusable replies are ErrUpstreamGeneration; food ids
// missing from the catalog are ErrNotFound.
func (s *Service) Propose(ctx context.Context, in ProposeInput) (*Proposal, error) {
	if s.proposer == nil {
		return nil, fmt.Errorf("%w: no proposer configured", ErrUpstreamGeneration)
	}
	if err := in.Patient.Validate(); err != nil {
		return nil, err
	}

	reply, err := s.proposer.Propose(ctx, proposer.Request{
		Patient: proposer.PatientContext{
			Name:         in.Patient.Name,
			Age:          in.Patient.Age,
			Gender:       in.Patient.Gender,
			Constitution: in.Patient.Constitution,
			Condition:    in.Patient.Condition,
			Symptoms:     in.Patient.Symptoms,
			Allergies:    in.Patient.Allergies,
			Goals:        in.Patient.Goals,
		},
		Goals:        in.Goals,
		Restrictions: in.DietaryRestrictions,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("patient_id", in.Patient.PatientID.String()).Msg("meal plan proposal failed")
		return nil, fmt.Errorf("%w: %v", ErrUpstreamGeneration, err)
	}
	if reply == nil {
		return nil, fmt.Errorf("%w: empty reply", ErrUpstreamGeneration)
	}

	plan, err := s.normalizeProposal(ctx, reply)
	if err != nil {
		return nil, err
	}

	goals := in.Goals
	if goals == nil {
		goals = reply.Goals
	}
	p := &Proposal{MealPlan: plan, Goals: goals, Considerations: reply.Considerations}
	var gp nutrition.GoalProfile
	if goals != nil {
		gp = *goals
	}
	p.Summary = nutrition.Summarize(plan, gp)
	return p, nil
}

func (s *Service) normalizeProposal(ctx context.Context, reply *proposer.Proposal) (nutrition.WeeklyMealPlan, error) {
	type placed struct {
		day   nutrition.Day
		slot  nutrition.Slot
		entry proposer.ProposedEntry
	}
	var all []placed
	var ids []string
	seen := make(map[string]bool)
	for _, dk := range sortedKeys(reply.MealPlan) {
		meals := reply.MealPlan[dk]
		d, ok := nutrition.ParseDay(dk)
		if !ok {
			return nil, fmt.Errorf("%w: unknown day %q", ErrUpstreamGeneration, dk)
		}
		for _, sk := range sortedKeys(meals) {
			entries := meals[sk]
			sl, ok := nutrition.ParseSlot(sk)
			if !ok {
				return nil, fmt.Errorf("%w: unknown meal slot %q", ErrUpstreamGeneration, sk)
			}
			for _, e := range entries {
				e.FoodID = strings.TrimSpace(e.FoodID)
				if e.FoodID == "" {
					return nil, fmt.Errorf("%w: entry without food_id in %s %s", ErrUpstreamGeneration, d, sl)
				}
				if !(e.Amount > 0) {
					return nil, fmt.Errorf("%w: non-positive amount for %s", ErrUpstreamGeneration, e.FoodID)
				}
				all = append(all, placed{d, sl, e})
				if !seen[e.FoodID] {
					seen[e.FoodID] = true
					ids = append(ids, e.FoodID)
				}
			}
		}
	}

	found, missing, err := s.foods.Resolve(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve proposed foods: %w", err)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: proposed foods not in catalog: %s", ErrNotFound, strings.Join(missing, ", "))
	}

	plan := nutrition.NewWeeklyMealPlan()
	for _, p := range all {
		var unit nutrition.ServingUnit
		if p.entry.Unit != "" {
			if unit, err = nutrition.ParseServingUnit(p.entry.Unit); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUpstreamGeneration, err)
			}
		}
		entry, err := found[p.entry.FoodID].Entry(p.entry.Amount, unit)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamGeneration, err)
		}
		plan.AddEntry(p.day, p.slot, entry)
	}
	return plan, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Service) invalidate(ctx context.Context, c *DietChart) {
	tenant := tenantOf(ctx)
	keys := []string{
		ChartKey(tenant, c.ID),
		PatientChartsKey(tenant, c.Patient.PatientID),
		PractitionerChartsKey(tenant, c.PractitionerID),
	}
	if err := s.invalidator.Invalidate(ctx, keys...); err != nil {
		s.logger.Warn().Err(err).Strs("keys", keys).Msg("diet chart invalidation failed")
	}
}
