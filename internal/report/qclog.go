// Package report renders the QC log workbook: a stats summary followed by
// one sheet per record kind.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dharsanguruparan/QCBoard/internal/model"
	"github.com/dharsanguruparan/QCBoard/internal/query"
	"github.com/dharsanguruparan/QCBoard/internal/stats"
	"github.com/dharsanguruparan/QCBoard/internal/storage"
)

const (
	SheetSummary     = "Summary"
	SheetSubmittals  = "Submittals"
	SheetRFIs        = "RFIs"
	SheetInspections = "Inspections"

	dateLayout = "2006-01-02"
	headerRow  = 1
)

// Exporter writes QC log workbooks from the stores.
type Exporter struct {
	agg      *stats.Aggregator
	projects storage.Repository[model.Project]
	now      func() time.Time
}

func NewExporter(stores *storage.Stores, now func() time.Time) *Exporter {
	if now == nil {
		now = time.Now
	}
	return &Exporter{agg: stats.NewAggregator(stores, now), projects: stores.Projects, now: now}
}

// Export writes the workbook for projectID, or for every project when it is
// empty. An unknown project is storage.ErrNotFound and nothing is written.
func (e *Exporter) Export(ctx context.Context, projectID string, w io.Writer) error {
	title := "All projects"
	if projectID != "" {
		p, err := e.projects.Get(ctx, projectID)
		if err != nil {
			return err
		}
		title = p.Name
	}
	snap, err := e.agg.Snapshot(ctx, projectID)
	if err != nil {
		return err
	}
	now := e.now()
	f, err := Build(title, snap, now)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Build lays out the workbook. Record sheets are ordered newest first, the
// same order the list endpoints use.
func Build(title string, snap stats.Snapshot, now time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	st := stats.Compute(snap, now)
	summary := [][]any{
		{"Project", title},
		{"Generated", now.Format("2006-01-02 15:04:05")},
		{"Total projects", st.TotalProjects},
		{"Active projects", st.ActiveProjects},
		{"Total submittals", st.TotalSubmittals},
		{"Pending review", st.PendingReview},
		{"Approved today", st.ApprovedToday},
		{"Open RFIs", st.OpenRFIs},
		{"Overdue RFIs", st.OverdueRFIs},
		{"Scheduled inspections", st.ScheduledInspections},
		{"Pass rate (%)", st.PassRate},
		{"Open AI insights", st.AIInsightsCount},
		{"Critical alerts", st.CriticalAlerts},
	}
	if err := writeTable(f, SheetSummary, header, []string{"Metric", "Value"}, summary); err != nil {
		return nil, err
	}

	subs := query.Run(snap.Submittals, query.Options{}, query.SubmittalDate)
	rows := make([][]any, 0, len(subs))
	for _, s := range subs {
		score := ""
		if s.AIScore != nil {
			score = fmt.Sprint(*s.AIScore)
		}
		rows = append(rows, []any{s.Number, s.Title, string(s.Status), s.SpecSection, s.SubmittedBy,
			s.SubmittedDate.Format(dateLayout), s.DueDate.Format(dateLayout), score, s.RevisionNumber})
	}
	if err := addSheet(f, SheetSubmittals, header,
		[]string{"Number", "Title", "Status", "Spec section", "Submitted by", "Submitted", "Due", "AI score", "Revision"}, rows); err != nil {
		return nil, err
	}

	rfis := query.Run(snap.RFIs, query.Options{}, query.RFIDate)
	rows = make([][]any, 0, len(rfis))
	for _, r := range rfis {
		answered := ""
		if r.AnsweredDate != nil {
			answered = r.AnsweredDate.Format(dateLayout)
		}
		rows = append(rows, []any{r.Number, r.Subject, string(r.Status), string(r.Priority), r.AssignedTo,
			r.CreatedDate.Format(dateLayout), r.DueDate.Format(dateLayout), answered})
	}
	if err := addSheet(f, SheetRFIs, header,
		[]string{"Number", "Subject", "Status", "Priority", "Assigned to", "Created", "Due", "Answered"}, rows); err != nil {
		return nil, err
	}

	insps := query.Run(snap.Inspections, query.Options{}, query.InspectionDate)
	rows = make([][]any, 0, len(insps))
	for _, i := range insps {
		rows = append(rows, []any{i.Number, i.Title, i.Type, string(i.Status), i.Inspector, i.Location,
			i.ScheduledDate.Format(dateLayout), fmt.Sprintf("%.0f%%", 100*i.ChecklistProgress()), strings.Join(i.AIFindings, "; ")})
	}
	if err := addSheet(f, SheetInspections, header,
		[]string{"Number", "Title", "Type", "Status", "Inspector", "Location", "Scheduled", "Checklist", "AI findings"}, rows); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

func addSheet(f *excelize.File, name string, style int, headers []string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("new sheet %s: %w", name, err)
	}
	return writeTable(f, name, style, headers, rows)
}

func writeTable(f *excelize.File, sheet string, style int, headers []string, rows [][]any) error {
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, headerRow)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("%s header: %w", sheet, err)
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, headerRow)
	last, _ := excelize.CoordinatesToCellName(len(headers), headerRow)
	if err := f.SetCellStyle(sheet, first, last, style); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetColWidth(sheet, "A", lastCol, 20); err != nil {
		return fmt.Errorf("%s column width: %w", sheet, err)
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, headerRow+1+i)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
