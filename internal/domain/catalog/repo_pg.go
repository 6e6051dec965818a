package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayurdiet/ayurdiet/internal/domain/nutrition"
	"github.com/ayurdiet/ayurdiet/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type foodRepoPG struct{ pool *pgxpool.Pool }

func NewFoodRepoPG(pool *pgxpool.Pool) FoodRepository {
	return &foodRepoPG{pool: pool}
}

func (r *foodRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const foodCols = `id, name, local_name, description, categories, serving_amount, serving_unit,
	nutrition, tastes, dosha_effects, qualities, virya, vipaka,
	version_id, created_at, updated_at`

func (r *foodRepoPG) scanRow(row pgx.Row) (*FoodItem, error) {
	var f FoodItem
	var unit string
	var nutritionJSON, doshaJSON []byte
	err := row.Scan(&f.ID, &f.Name, &f.LocalName, &f.Description, &f.Categories, &f.Serving.Amount, &unit,
		&nutritionJSON, &f.Tastes, &doshaJSON, &f.Qualities, &f.Virya, &f.Vipaka,
		&f.VersionID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	f.Serving.Unit = nutrition.ServingUnit(unit)
	if err := json.Unmarshal(nutritionJSON, &f.Nutrition); err != nil {
		return nil, fmt.Errorf("decode nutrition for food %s: %w", f.ID, err)
	}
	if len(doshaJSON) > 0 {
		if err := json.Unmarshal(doshaJSON, &f.DoshaEffects); err != nil {
			return nil, fmt.Errorf("decode dosha effects for food %s: %w", f.ID, err)
		}
	}
	return &f, nil
}

func encodeJSON(f *FoodItem) (nutritionJSON, doshaJSON []byte, err error) {
	if nutritionJSON, err = json.Marshal(f.Nutrition); err != nil {
		return nil, nil, err
	}
	effects := f.DoshaEffects
	if effects == nil {
		effects = map[string]string{}
	}
	if doshaJSON, err = json.Marshal(effects); err != nil {
		return nil, nil, err
	}
	return nutritionJSON, doshaJSON, nil
}

func (r *foodRepoPG) Create(ctx context.Context, f *FoodItem) error {
	f.ID = uuid.New()
	nj, dj, err := encodeJSON(f)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO food_item (id, name, local_name, description, categories, serving_amount, serving_unit,
			nutrition, tastes, dosha_effects, qualities, virya, vipaka)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING version_id, created_at, updated_at`,
		f.ID, f.Name, f.LocalName, f.Description, f.Categories, f.Serving.Amount, string(f.Serving.Unit),
		nj, f.Tastes, dj, f.Qualities, f.Virya, f.Vipaka).
		Scan(&f.VersionID, &f.CreatedAt, &f.UpdatedAt)
}

func (r *foodRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*FoodItem, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+foodCols+` FROM food_item WHERE id = $1`, id))
}

func (r *foodRepoPG) Update(ctx context.Context, f *FoodItem) error {
	nj, dj, err := encodeJSON(f)
	if err != nil {
		return err
	}
	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE food_item SET name=$2, local_name=$3, description=$4, categories=$5, serving_amount=$6,
			serving_unit=$7, nutrition=$8, tastes=$9, dosha_effects=$10, qualities=$11, virya=$12, vipaka=$13,
			version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING version_id, updated_at`,
		f.ID, f.Name, f.LocalName, f.Description, f.Categories, f.Serving.Amount,
		string(f.Serving.Unit), nj, f.Tastes, dj, f.Qualities, f.Virya, f.Vipaka).
		Scan(&f.VersionID, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *foodRepoPG) UpsertByName(ctx context.Context, f *FoodItem) (bool, error) {
	nj, dj, err := encodeJSON(f)
	if err != nil {
		return false, err
	}
	var created bool
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO food_item (id, name, local_name, description, categories, serving_amount, serving_unit,
			nutrition, tastes, dosha_effects, qualities, virya, vipaka)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT ((lower(name))) DO UPDATE SET
			local_name = EXCLUDED.local_name, description = EXCLUDED.description,
			categories = EXCLUDED.categories, serving_amount = EXCLUDED.serving_amount,
			serving_unit = EXCLUDED.serving_unit, nutrition = EXCLUDED.nutrition,
			tastes = EXCLUDED.tastes, dosha_effects = EXCLUDED.dosha_effects,
			qualities = EXCLUDED.qualities, virya = EXCLUDED.virya, vipaka = EXCLUDED.vipaka,
			version_id = food_item.version_id + 1, updated_at = NOW()
		RETURNING id, version_id, created_at, updated_at, (xmax = 0)`,
		uuid.New(), f.Name, f.LocalName, f.Description, f.Categories, f.Serving.Amount, string(f.Serving.Unit),
		nj, f.Tastes, dj, f.Qualities, f.Virya, f.Vipaka).
		Scan(&f.ID, &f.VersionID, &f.CreatedAt, &f.UpdatedAt, &created)
	return created, err
}

func (r *foodRepoPG) ListAll(ctx context.Context) ([]*FoodItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+foodCols+` FROM food_item ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*FoodItem
	for rows.Next() {
		f, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}
