package dietchart

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

type chartRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &chartRepoPG{pool: pool}
}

func (r *chartRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const chartCols = `id, practitioner_id, patient, status, goals, meal_plan, summary,
	special_instructions, dietary_restrictions, considerations, start_date, end_date,
	version_id, created_at, updated_at`

// chartDocs holds the JSONB columns of a chart.
type chartDocs struct {
	patient, goals, plan, summary []byte
}

func encodeDocs(c *DietChart) (chartDocs, error) {
	var d chartDocs
	var err error
	if d.patient, err = json.Marshal(c.Patient); err != nil {
		return d, fmt.Errorf("encode patient: %w", err)
	}
	if c.Goals != nil {
		if d.goals, err = json.Marshal(c.Goals); err != nil {
			return d, fmt.Errorf("encode goals: %w", err)
		}
	}
	if d.plan, err = json.Marshal(c.MealPlan); err != nil {
		return d, fmt.Errorf("encode meal plan: %w", err)
	}
	if d.summary, err = json.Marshal(c.Summary); err != nil {
		return d, fmt.Errorf("encode summary: %w", err)
	}
	return d, nil
}

func (r *chartRepoPG) scanRow(row pgx.Row) (*DietChart, error) {
	var c DietChart
	var d chartDocs
	var status string
	err := row.Scan(&c.ID, &c.PractitionerID, &d.patient, &status, &d.goals, &d.plan, &d.summary,
		&c.SpecialInstructions, &c.DietaryRestrictions, &c.Considerations, &c.StartDate, &c.EndDate,
		&c.VersionID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Status = Status(status)
	if err := json.Unmarshal(d.patient, &c.Patient); err != nil {
		return nil, fmt.Errorf("decode patient of chart %s: %w", c.ID, err)
	}
	if len(d.goals) > 0 && string(d.goals) != "null" {
		c.Goals = new(nutrition.GoalProfile)
		if err := json.Unmarshal(d.goals, c.Goals); err != nil {
			return nil, fmt.Errorf("decode goals of chart %s: %w", c.ID, err)
		}
	}
	if err := json.Unmarshal(d.plan, &c.MealPlan); err != nil {
		return nil, fmt.Errorf("decode meal plan of chart %s: %w", c.ID, err)
	}
	if err := json.Unmarshal(d.summary, &c.Summary); err != nil {
		return nil, fmt.Errorf("decode summary of chart %s: %w", c.ID, err)
	}
	if c.DietaryRestrictions == nil {
		c.DietaryRestrictions = []string{}
	}
	return &c, nil
}

func (r *chartRepoPG) Create(ctx context.Context, c *DietChart) error {
	c.ID = uuid.New()
	d, err := encodeDocs(c)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO diet_chart (id, patient_id, practitioner_id, patient, status, goals, meal_plan, summary,
			special_instructions, dietary_restrictions, considerations, start_date, end_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING version_id, created_at, updated_at`,
		c.ID, c.Patient.PatientID, c.PractitionerID, d.patient, string(c.Status), d.goals, d.plan, d.summary,
		c.SpecialInstructions, c.DietaryRestrictions, c.Considerations, c.StartDate, c.EndDate).
		Scan(&c.VersionID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *chartRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*DietChart, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+chartCols+` FROM diet_chart WHERE id = $1`, id))
}

func (r *chartRepoPG) Update(ctx context.Context, c *DietChart, expectedVersion int) error {
	d, err := encodeDocs(c)
	if err != nil {
		return err
	}
	q := r.conn(ctx)
	err = q.QueryRow(ctx, `
		UPDATE diet_chart SET status=$2, goals=$3, meal_plan=$4, summary=$5, special_instructions=$6,
			dietary_restrictions=$7, considerations=$8, start_date=$9, end_date=$10,
			version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1 AND ($11::int = 0 OR version_id = $11)
		RETURNING version_id, updated_at`,
		c.ID, string(c.Status), d.goals, d.plan, d.summary, c.SpecialInstructions,
		c.DietaryRestrictions, c.Considerations, c.StartDate, c.EndDate, expectedVersion).
		Scan(&c.VersionID, &c.UpdatedAt)
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM diet_chart WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrConflict
	}
	return ErrNotFound
}

func (r *chartRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM diet_chart WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *chartRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*DietChart, int, error) {
	return r.list(ctx, "patient_id", patientID, limit, offset)
}

func (r *chartRepoPG) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]*DietChart, int, error) {
	return r.list(ctx, "practitioner_id", practitionerID, limit, offset)
}

// list filters on column, which is always one of the two indexed owner
// columns above.
func (r *chartRepoPG) list(ctx context.Context, column string, id uuid.UUID, limit, offset int) ([]*DietChart, int, error) {
	q := r.conn(ctx)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM diet_chart WHERE `+column+` = $1`, id).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+chartCols+` FROM diet_chart WHERE `+column+` = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*DietChart
	for rows.Next() {
		c, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}
