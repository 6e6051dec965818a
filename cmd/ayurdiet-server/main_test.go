package main

import (
	"bytes"
	"context"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/ayurdiet/ayurdiet/internal/config"
	"github.com/ayurdiet/ayurdiet/internal/domain/catalog"
	"github.com/ayurdiet/ayurdiet/internal/platform/db"
)

func TestRootCmd_Commands(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"serve"},
		{"migrate", "up"},
		{"migrate", "status"},
		{"tenant", "create"},
		{"catalog", "import"},
		{"catalog", "template"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not found: %v", path, err)
		}
	}
}

func TestMigrateUp_RejectsInvalidTenant(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"migrate", "up", "--tenant", "no-dashes"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid tenant") {
		t.Errorf("expected invalid tenant error, got %v", err)
	}
}

func TestMigrationSource_Embedded(t *testing.T) {
	names, err := fs.Glob(migrationSource(""), "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(names) == 0 {
		t.Error("expected embedded migrations")
	}
}

func TestNewCacheLayer_Memory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []string
	local := invalidatorFunc(func(keys ...string) { got = append(got, keys...) })
	layer, err := newCacheLayer(ctx, &config.Config{}, local)
	if err != nil {
		t.Fatalf("newCacheLayer: %v", err)
	}
	defer layer.Close()
	if layer.redis != nil {
		t.Fatal("expected no redis client without REDIS_URL")
	}

	if err := layer.store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := layer.invalidator.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := layer.store.Get(ctx, "k"); err == nil {
		t.Error("expected key to be dropped from the store")
	}
	if len(got) != 1 || got[0] != "k" {
		t.Errorf("local listener not notified: %v", got)
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, catalog.ImportReport{
		Total:   3,
		Created: 1,
		Updated: 1,
		Failed:  []catalog.RowError{{Row: 3, Error: "name is required"}},
	})
	out := buf.String()
	if !strings.Contains(out, "created: 1") || !strings.Contains(out, "row 3: name is required") {
		t.Errorf("unexpected report output: %q", out)
	}
}

func TestPrintStatus(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, "clinic_default", []db.MigrationStatus{
		{Version: 1, Name: "food_catalog", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "diet_chart"},
	})
	out := buf.String()
	if !strings.Contains(out, "2026-01-02 03:04:05") || !strings.Contains(out, "pending") {
		t.Errorf("unexpected status output: %q", out)
	}
}

type invalidatorFunc func(keys ...string)

func (f invalidatorFunc) Invalidate(_ context.Context, keys ...string) error {
	f(keys...)
	return nil
}
