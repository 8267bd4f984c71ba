package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"family-tasks/internal/config"
	"family-tasks/internal/repository"
)

func TestNewAppSeedsDemoAndFamily(t *testing.T) {
	cfg := config.Default()
	cfg.SeedDemo = true

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	if got := a.tasks.Stats().TotalTasks; got != 6 {
		t.Errorf("tasks = %d, want 6 demo tasks", got)
	}
	names, err := a.family.Names(context.Background())
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if strings.Join(names, ",") != "Mom,Dad,Emma,Jack" {
		t.Errorf("family = %v", names)
	}
}

func TestNewAppReloadsFileDatabase(t *testing.T) {
	cfg := config.Default()
	cfg.DatabaseURL = filepath.Join(t.TempDir(), "tasks.db")
	cfg.SeedDemo = true

	first, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	if _, err := first.tasks.DeleteTask(context.Background(), first.tasks.Store().Tasks()[0].ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	first.Close()

	cfg.SeedDemo = false
	second, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if got := second.tasks.Stats().TotalTasks; got != 5 {
		t.Errorf("tasks after reload = %d, want 5", got)
	}
	if _, ok := second.store.LastDeleted(); ok {
		t.Error("undo buffer should not survive a restart")
	}
}

func TestExportCommandWritesFile(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "TELEGRAM_TOKEN", "DATABASE_URL", "REPORT_INTERVAL_HOURS", "DAILY_REPORT_AT", "TZ_NAME"} {
		t.Setenv(key, "")
	}
	t.Setenv("SEED_DEMO", "true")
	out := filepath.Join(t.TempDir(), "tasks.csv")

	cmd := exportCmd()
	cmd.SetArgs([]string{"--format", "csv", "--out", out})
	cmd.SetOut(&bytes.Buffer{})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 7 {
		t.Errorf("csv lines = %d, want header + 6", lines)
	}
}

func TestReportCommandPrintsDigest(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "TELEGRAM_TOKEN", "DATABASE_URL", "REPORT_INTERVAL_HOURS", "DAILY_REPORT_AT", "TZ_NAME"} {
		t.Setenv(key, "")
	}
	t.Setenv("SEED_DEMO", "true")

	var buf bytes.Buffer
	cmd := reportCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(&buf)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(buf.String(), "Completion: 50%") {
		t.Errorf("report = %q", buf.String())
	}
}

func TestNewAppClosesDatabaseOnLoadFailure(t *testing.T) {
	cfg := config.Default()
	cfg.DatabaseURL = filepath.Join(t.TempDir(), "tasks.db")

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	err = db.Exec(`INSERT INTO tasks (id, position, title, assignee, due_date, status, recurring, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, "broken", 0, "Broken", "Mom", "someday", "pending", "none", time.Now()).Error
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	closeDB(db)

	var opened *gorm.DB
	t.Cleanup(func() { openDB = repository.NewDB })
	openDB = func(dsn string) (*gorm.DB, error) {
		db, err := repository.NewDB(dsn)
		opened = db
		return db, err
	}

	if _, err := newApp(context.Background(), cfg); err == nil {
		t.Fatal("newApp should fail on an unreadable task row")
	}
	sqlDB, err := opened.DB()
	if err != nil {
		t.Fatalf("DB: %v", err)
	}
	if err := sqlDB.Ping(); err == nil {
		t.Error("database left open after newApp failed")
	}
}
