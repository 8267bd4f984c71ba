package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"gopkg.in/yaml.v3"

	"family-tasks/internal/model"
	"family-tasks/internal/service"
	"family-tasks/internal/store"
)

// ErrUnknownFormat is returned for formats other than json, yaml, csv and pdf.
var ErrUnknownFormat = errors.New("unknown export format")

// Formats lists the supported export formats.
var Formats = []string{"json", "yaml", "csv", "pdf"}

// Report is the document written by the json and yaml formats.
type Report struct {
	GeneratedAt time.Time                `json:"generatedAt" yaml:"generatedAt"`
	Stats       model.Stats              `json:"stats" yaml:"stats"`
	Family      []service.MemberProgress `json:"family" yaml:"family"`
	Tasks       []model.Task             `json:"tasks" yaml:"tasks"`
}

type Exporter struct {
	st     *store.Store
	family *service.FamilyService
	now    func() time.Time
}

// NewExporter builds an exporter; family may be nil to skip the roster.
func NewExporter(st *store.Store, family *service.FamilyService) *Exporter {
	return &Exporter{st: st, family: family, now: time.Now}
}

// ParseFormat normalises a user-supplied format name; "yml" becomes "yaml".
func ParseFormat(raw string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(raw))
	if format == "yml" {
		format = "yaml"
	}
	for _, f := range Formats {
		if f == format {
			return format, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, raw)
}

// ContentType returns the MIME type of a format.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "json":
		return "application/json"
	case "yaml":
		return "application/yaml"
	case "csv":
		return "text/csv"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Build collects the report from one store snapshot.
func (e *Exporter) Build(ctx context.Context) (Report, error) {
	tasks, stats := e.st.Snapshot()
	report := Report{
		GeneratedAt: e.now(),
		Stats:       stats,
		Family:      []service.MemberProgress{},
		Tasks:       tasks,
	}
	if e.family != nil {
		roster, err := e.family.Roster(ctx)
		if err != nil {
			return Report{}, fmt.Errorf("load roster: %w", err)
		}
		report.Family = roster
	}
	if report.Tasks == nil {
		report.Tasks = []model.Task{}
	}
	return report, nil
}

func (e *Exporter) Export(ctx context.Context, format string) ([]byte, error) {
	format, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	report, err := e.Build(ctx)
	if err != nil {
		return nil, err
	}
	switch format {
	case "json":
		return json.MarshalIndent(report, "", "  ")
	case "yaml":
		return yaml.Marshal(report)
	case "csv":
		return writeCSV(report.Tasks)
	case "pdf":
		return writePDF(report)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func writeCSV(tasks []model.Task) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"id", "title", "description", "assignee", "due_date", "status", "recurring", "created_at"})
	for _, t := range tasks {
		_ = w.Write([]string{
			t.ID,
			t.Title,
			t.Description,
			t.Assignee,
			t.DueDate.String(),
			string(t.Status),
			string(t.Recurring),
			t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func writePDF(report Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Family task report", true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Family Task Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, "Generated "+report.GeneratedAt.Format("2006-01-02 15:04"))
	pdf.Ln(10)

	s := report.Stats
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Overview")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 6, fmt.Sprintf("Total %d   Completed %d   Pending %d   Completion %d%%",
		s.TotalTasks, s.CompletedTasks, s.PendingTasks, s.CompletionRate), "0", "L", false)
	pdf.Ln(4)

	if len(report.Family) > 0 {
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, "Family")
		pdf.Ln(8)
		pdf.SetFont("Arial", "", 10)
		for _, m := range report.Family {
			line := fmt.Sprintf("%s: %d/%d done (%d%%)", m.Name, m.Completed, m.Total, m.Percent)
			pdf.MultiCell(0, 6, tr(line), "0", "L", false)
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Tasks")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	if len(report.Tasks) == 0 {
		pdf.MultiCell(0, 6, "No tasks.", "0", "L", false)
	}
	for _, t := range report.Tasks {
		mark := "[ ]"
		if t.IsCompleted() {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s (%s) due %s, %s", mark, t.Title, t.Assignee, t.DueDate, t.Recurring)
		pdf.MultiCell(0, 6, tr(line), "0", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
