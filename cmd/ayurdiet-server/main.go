package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/ayurdiet/ayurdiet/internal/config"
	"github.com/ayurdiet/ayurdiet/internal/domain/catalog"
	"github.com/ayurdiet/ayurdiet/internal/platform/db"
	"github.com/ayurdiet/ayurdiet/migrations"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "ayurdiet-server",
		Short:        "Ayurvedic diet chart API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(catalogCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// openPool loads config and connects, for the one-shot commands.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

// migrationSource returns the embedded migrations unless dir is set.
func migrationSource(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to a clinic schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			dir, _ := cmd.Flags().GetString("dir")
			if !db.ValidTenantID(tenant) {
				return fmt.Errorf("invalid tenant identifier: %s", tenant)
			}

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationSource(dir)).Up(ctx, db.SchemaName(tenant))
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) to %s.\n", count, db.SchemaName(tenant))
			return nil
		},
	}
	upCmd.Flags().String("tenant", "default", "Clinic tenant identifier")
	upCmd.Flags().String("dir", "", "Migrations directory (embedded migrations when empty)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status for a clinic schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			dir, _ := cmd.Flags().GetString("dir")
			if !db.ValidTenantID(tenant) {
				return fmt.Errorf("invalid tenant identifier: %s", tenant)
			}

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema := db.SchemaName(tenant)
			statuses, err := db.NewMigrator(pool, migrationSource(dir)).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), schema, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("tenant", "default", "Clinic tenant identifier")
	statusCmd.Flags().String("dir", "", "Migrations directory (embedded migrations when empty)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage clinic tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a clinic schema and apply all migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Creating tenant schema: %s\n", db.SchemaName(name))
			if err := db.CreateTenantSchema(ctx, pool, name, migrations.FS); err != nil {
				return fmt.Errorf("create tenant: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")
	cmd.AddCommand(createCmd)

	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the food catalog",
	}

	importCmd := &cobra.Command{
		Use:   "import <workbook.xlsx>",
		Short: "Upsert foods from a spreadsheet into a clinic catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			items, rowErrs, err := catalog.ReadSpreadsheet(f)
			if err != nil {
				return err
			}

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			// Running servers drop their cached snapshots through the same
			// invalidation path a web import takes.
			caches, err := newCacheLayer(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer caches.Close()
			logger := newLogger(cfg.IsDev())
			svc := catalog.NewService(catalog.NewFoodRepoPG(pool), caches.store, caches.invalidator, cfg.CacheTTL(), cfg.CatalogPageSize, logger)

			var report catalog.ImportReport
			err = db.RunInTenant(ctx, pool, tenant, func(ctx context.Context) error {
				report, err = svc.Import(ctx, items)
				return err
			})
			if err != nil {
				return err
			}
			report.Failed = append(rowErrs, report.Failed...)
			report.Total += len(rowErrs)
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	importCmd.Flags().String("tenant", "default", "Clinic tenant identifier")
	cmd.AddCommand(importCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "template <out.xlsx>",
		Short: "Write an empty catalog workbook with the import headers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := catalog.WriteSpreadsheet(f, nil); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	})

	return cmd
}

func printReport(w io.Writer, r catalog.ImportReport) {
	fmt.Fprintf(w, "Rows: %d  created: %d  updated: %d  failed: %d\n", r.Total, r.Created, r.Updated, len(r.Failed))
	for _, f := range r.Failed {
		fmt.Fprintf(w, "  row %d: %s\n", f.Row, f.Error)
	}
}
