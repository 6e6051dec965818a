package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayurdiet/ayurdiet/internal/platform/cache"
	"github.com/ayurdiet/ayurdiet/internal/platform/db"
)

// SnapshotKey is the cache key of a tenant's full catalog.
func SnapshotKey(tenant string) string {
	if tenant == "" {
		tenant = "default"
	}
	return cache.Key(tenant, "catalog")
}

// Service reads the catalog through a cached snapshot and hands that
// snapshot to the filter engine. Writes invalidate the snapshot.
type Service struct {
	repo        FoodRepository
	store       cache.Store
	invalidator cache.Invalidator
	ttl         time.Duration
	pageSize    int
	logger      zerolog.Logger
}

func NewService(repo FoodRepository, store cache.Store, invalidator cache.Invalidator, ttl time.Duration, pageSize int, logger zerolog.Logger) *Service {
	if store == nil {
		store = cache.NewMemoryStore()
	}
	if invalidator == nil {
		invalidator = cache.StoreInvalidator(store)
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{
		repo:        repo,
		store:       store,
		invalidator: invalidator,
		ttl:         ttl,
		pageSize:    pageSize,
		logger:      logger.With().Str("component", "catalog").Logger(),
	}
}

// PageSize is the default page size for queries.
func (s *Service) PageSize() int { return s.pageSize }

// Snapshot returns the tenant's full catalog in insertion order, from the
// cache when possible. A broken cache only costs a database read.
func (s *Service) Snapshot(ctx context.Context) ([]*FoodItem, error) {
	key := SnapshotKey(db.TenantFromContext(ctx))
	items, err := cache.GetJSON[[]*FoodItem](ctx, s.store, key)
	if err == nil {
		return items, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}

	items, err = s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if items == nil {
		items = []*FoodItem{}
	}
	if err := cache.SetJSON(ctx, s.store, key, items, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return items, nil
}

// Query runs the filter engine against the current snapshot.
func (s *Service) Query(ctx context.Context, c Criteria) (Result, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	if c.PageSize <= 0 {
		c.PageSize = s.pageSize
	}
	if c.SortBy != "" && !c.SortBy.Valid() {
		return Result{}, fmt.Errorf("%w: unknown sort key %q", ErrValidation, c.SortBy)
	}
	return Query(snapshot, c), nil
}

func (s *Service) Facets(ctx context.Context) (Facets, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return Facets{}, err
	}
	return BuildFacets(snapshot), nil
}

func (s *Service) GetFood(ctx context.Context, id uuid.UUID) (*FoodItem, error) {
	return s.repo.GetByID(ctx, id)
}

// Resolve looks up foods by id string against the snapshot. Ids that are
// missing from the catalog are returned separately.
func (s *Service) Resolve(ctx context.Context, ids []string) (map[string]*FoodItem, []string, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	index := make(map[string]*FoodItem, len(snapshot))
	for _, f := range snapshot {
		index[f.ID.String()] = f
	}
	found := make(map[string]*FoodItem, len(ids))
	var missing []string
	for _, id := range ids {
		if f, ok := index[id]; ok {
			found[id] = f
			continue
		}
		if parsed, err := uuid.Parse(id); err == nil {
			if f, ok := index[parsed.String()]; ok {
				found[id] = f
				continue
			}
		}
		missing = append(missing, id)
	}
	return found, missing, nil
}

func (s *Service) CreateFood(ctx context.Context, f *FoodItem) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.logger.Info().Str("food_id", f.ID.String()).Str("name", f.Name).Msg("food created")
	return nil
}

func (s *Service) UpdateFood(ctx context.Context, f *FoodItem) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, f); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ImportReport summarizes a bulk import.
type ImportReport struct {
	Total   int        `json:"total"`
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Failed  []RowError `json:"failed"`
}

// Import upserts foods by name. Invalid items are reported by 1-based
// position and skipped; a repository error aborts the import.
func (s *Service) Import(ctx context.Context, items []*FoodItem) (ImportReport, error) {
	report := ImportReport{Total: len(items), Failed: []RowError{}}
	defer func() {
		if report.Created+report.Updated > 0 {
			s.invalidate(ctx)
		}
	}()
	for i, f := range items {
		if err := f.Validate(); err != nil {
			report.Failed = append(report.Failed, RowError{Row: i + 1, Error: err.Error()})
			continue
		}
		created, err := s.repo.UpsertByName(ctx, f)
		if err != nil {
			return report, fmt.Errorf("import %q: %w", f.Name, err)
		}
		if created {
			report.Created++
		} else {
			report.Updated++
		}
	}
	s.logger.Info().
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("failed", len(report.Failed)).
		Msg("catalog imported")
	return report, nil
}

func (s *Service) invalidate(ctx context.Context) {
	key := SnapshotKey(db.TenantFromContext(ctx))
	if err := s.invalidator.Invalidate(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog invalidation failed")
	}
}
