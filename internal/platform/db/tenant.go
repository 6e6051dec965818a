package db

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
	DBConnKey   contextKey = "db_conn"
)

// SchemaPrefix prefixes every tenant schema name.
const SchemaPrefix = "clinic_"

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,48}$`)

// ValidTenantID reports whether id can be used in a schema name.
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

// SchemaName returns the Postgres schema that holds a tenant's clinic data.
func SchemaName(tenantID string) string {
	return SchemaPrefix + strings.ToLower(tenantID)
}

// TenantMiddleware pins a pooled connection to the request with its
// search_path set to the tenant schema. The tenant comes from the token,
// the X-Tenant-ID header or ?tenant_id=, in that order.
func TenantMiddleware(pool *pgxpool.Pool, defaultTenant string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID := extractTenantID(c, defaultTenant)

			if !ValidTenantID(tenantID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer conn.Release()

			_, err = conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", SchemaName(tenantID)))
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "tenant resolution failed")
			}

			ctx = context.WithValue(ctx, TenantIDKey, tenantID)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("tenant_id", tenantID)
			c.Set("db", conn)

			return next(c)
		}
	}
}

// ResolveTenant returns the tenant a request belongs to, the same way
// TenantMiddleware picks it, without pinning a connection.
func ResolveTenant(c echo.Context, defaultTenant string) string {
	return extractTenantID(c, defaultTenant)
}

func extractTenantID(c echo.Context, defaultTenant string) string {
	// token claim, set by the auth middleware
	if tid, ok := c.Get("jwt_tenant_id").(string); ok && tid != "" {
		return tid
	}

	if tid := c.Request().Header.Get("X-Tenant-ID"); tid != "" {
		return tid
	}

	if tid := c.QueryParam("tenant_id"); tid != "" {
		return tid
	}

	return defaultTenant
}

// ConnFromContext returns the tenant-scoped connection pinned by
// TenantMiddleware, or nil.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// TenantFromContext returns the request tenant, or "" outside a request.
func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}

// WithTenant returns ctx carrying tenantID, for work outside an HTTP request
// such as the catalog import command.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// CreateTenantSchema creates the schema for a clinic and applies every
// migration in migrations to it. A nil migrations skips them.
func CreateTenantSchema(ctx context.Context, pool *pgxpool.Pool, tenantID string, migrations fs.FS) error {
	if !ValidTenantID(tenantID) {
		return fmt.Errorf("invalid tenant identifier: %s", tenantID)
	}

	schema := SchemaName(tenantID)

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema))
	if err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if migrations != nil {
		migrator := NewMigrator(pool, migrations)
		if _, err := migrator.Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}

	return nil
}

// RunInTenant runs fn in a transaction scoped to the tenant schema, for work
// outside an HTTP request such as the catalog import command.
func RunInTenant(ctx context.Context, pool *pgxpool.Pool, tenantID string, fn func(ctx context.Context) error) error {
	if !ValidTenantID(tenantID) {
		return fmt.Errorf("invalid tenant identifier: %s", tenantID)
	}
	ctx = WithTenant(ctx, tenantID)
	return RunInTx(ctx, pool, func(ctx context.Context) error {
		tx := TxFromContext(ctx)
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL search_path TO %s, public", SchemaName(tenantID))); err != nil {
			return fmt.Errorf("set search_path: %w", err)
		}
		return fn(ctx)
	})
}
