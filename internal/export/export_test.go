package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"family-tasks/internal/repository"
	"family-tasks/internal/service"
	"family-tasks/internal/store"
)

var fixedNow = time.Date(2023, time.May, 14, 9, 0, 0, 0, time.UTC)

func newExporter(t *testing.T) *Exporter {
	t.Helper()
	n := 0
	st := store.New(
		store.WithClock(func() time.Time { return fixedNow }),
		store.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("t%d", n)
		}),
	)
	tasks := service.NewTaskService(st, nil)
	if _, err := tasks.SeedDemo(context.Background()); err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}

	db, err := repository.NewDB(repository.MemoryDSN)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	members := repository.NewMemberRepository(db)
	if err := members.SeedDefaults(context.Background()); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}

	e := NewExporter(st, service.NewFamilyService(members, st))
	e.now = func() time.Time { return fixedNow }
	return e
}

func TestExportJSON(t *testing.T) {
	out, err := newExporter(t).Export(context.Background(), "JSON")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var report Report
	if err := json.Unmarshal(out, &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(report.Tasks) != 6 || report.Stats.CompletionRate != 50 {
		t.Errorf("report = %d tasks, rate %d", len(report.Tasks), report.Stats.CompletionRate)
	}
	if len(report.Family) != 4 || report.Family[0].Name != "Mom" {
		t.Errorf("family = %+v", report.Family)
	}
	if report.Tasks[1].DueDate.String() != "2023-05-14" {
		t.Errorf("due date = %s", report.Tasks[1].DueDate)
	}
}

func TestExportYAML(t *testing.T) {
	out, err := newExporter(t).Export(context.Background(), "yaml")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	tasks, ok := doc["tasks"].([]any)
	if !ok || len(tasks) != 6 {
		t.Fatalf("tasks = %v", doc["tasks"])
	}
	first := tasks[0].(map[string]any)
	if first["title"] != "Take out the trash" || first["dueDate"] != "2023-05-15" {
		t.Errorf("first task = %v", first)
	}
}

func TestExportCSV(t *testing.T) {
	out, err := newExporter(t).Export(context.Background(), "csv")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 7 {
		t.Fatalf("rows = %d, want header + 6", len(rows))
	}
	if strings.Join(rows[0], ",") != "id,title,description,assignee,due_date,status,recurring,created_at" {
		t.Errorf("header = %v", rows[0])
	}
	want := []string{"t2", "Do the dishes", "", "Emma", "2023-05-14", "pending", "daily", "2023-05-14T09:00:00Z"}
	if strings.Join(rows[2], "|") != strings.Join(want, "|") {
		t.Errorf("row = %v, want %v", rows[2], want)
	}
}

func TestExportPDF(t *testing.T) {
	out, err := newExporter(t).Export(context.Background(), "pdf")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Errorf("output does not look like a PDF: %q", out[:min(len(out), 8)])
	}
}

func TestExportEmptyStoreWithoutRoster(t *testing.T) {
	e := NewExporter(store.New(), nil)
	out, err := e.Export(context.Background(), "json")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var report Report
	if err := json.Unmarshal(out, &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Tasks == nil || len(report.Tasks) != 0 || report.Stats.TotalTasks != 0 {
		t.Errorf("report = %+v", report)
	}
	if _, err := e.Export(context.Background(), "pdf"); err != nil {
		t.Errorf("empty pdf: %v", err)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	_, err := NewExporter(store.New(), nil).Export(context.Background(), "xml")
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("err = %v, want ErrUnknownFormat", err)
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType("PDF"); got != "application/pdf" {
		t.Errorf("ContentType(PDF) = %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	for raw, want := range map[string]string{"json": "json", " YML ": "yaml", "Yaml": "yaml", "PDF": "pdf", "csv": "csv"} {
		got, err := ParseFormat(raw)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParseFormat("docx"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("ParseFormat(docx) err = %v", err)
	}
	if got := ContentType("yaml"); got != "application/yaml" {
		t.Errorf("ContentType(yaml) = %q", got)
	}
}
