package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dharsanguruparan/QCBoard/internal/model"
	"github.com/dharsanguruparan/QCBoard/internal/storage"
)

func TestPassRate(t *testing.T) {
	for passed := 0; passed <= 6; passed++ {
		for failed := 0; failed <= 6; failed++ {
			t.Run(fmt.Sprintf("%d_%d", passed, failed), func(t *testing.T) {
				got := PassRate(passed, failed)
				if passed+failed == 0 {
					if got != 100 {
						t.Fatalf("expected 100 with nothing resolved, got %d", got)
					}
					return
				}
				// Integer form of round-half-up for non-negative values.
				want := (200*passed + passed + failed) / (2 * (passed + failed))
				if got != want {
					t.Fatalf("expected %d, got %d", want, got)
				}
			})
		}
	}
}

func TestPassRateRoundsHalfUp(t *testing.T) {
	// 1/8 = 12.5%
	if got := PassRate(1, 7); got != 13 {
		t.Fatalf("expected 13, got %d", got)
	}
	// 2/3 = 66.67%
	if got := PassRate(2, 1); got != 67 {
		t.Fatalf("expected 67, got %d", got)
	}
}

func TestComputeCounts(t *testing.T) {
	now := time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)
	s := Snapshot{
		Projects: []model.Project{
			{Status: model.ProjectActive}, {Status: model.ProjectActive}, {Status: model.ProjectOnHold},
		},
		Submittals: []model.Submittal{
			{Status: model.SubmittalPending},
			{Status: model.SubmittalInReview},
			{Status: model.SubmittalRejected},
			{Status: model.SubmittalReviseResubmit},
			{Status: model.SubmittalApproved, SubmittedDate: now.Add(-time.Hour)},
		},
		RFIs: []model.RFI{
			{Status: model.RFIOpen}, {Status: model.RFIOpen}, {Status: model.RFIOverdue}, {Status: model.RFIClosed},
		},
		Inspections: []model.Inspection{
			{Status: model.InspectionScheduled},
			{Status: model.InspectionPassed},
			{Status: model.InspectionPassed},
			{Status: model.InspectionFailed},
			{Status: model.InspectionInProgress},
		},
		Insights: []model.AIInsight{
			{Severity: model.SeverityCritical},
			{Severity: model.SeverityCritical, Resolved: true},
			{Severity: model.SeverityHigh},
		},
	}
	got := Compute(s, now)
	want := model.DashboardStats{
		TotalProjects:        3,
		ActiveProjects:       2,
		TotalSubmittals:      5,
		PendingReview:        2,
		ApprovedToday:        1,
		OpenRFIs:             2,
		OverdueRFIs:          1,
		ScheduledInspections: 1,
		PassRate:             67,
		AIInsightsCount:      2,
		CriticalAlerts:       1,
	}
	if got != want {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
}

// approvedToday is keyed on the submission date, not on when the approval
// happened. A submittal submitted last week and approved today is not
// counted; one submitted today is counted the moment it is approved.
func TestApprovedTodayUsesSubmittedDate(t *testing.T) {
	loc := time.FixedZone("site", -5*3600)
	now := time.Date(2024, 6, 10, 8, 30, 0, 0, loc)
	midnight := time.Date(2024, 6, 10, 0, 0, 0, 0, loc)
	s := Snapshot{Submittals: []model.Submittal{
		{Status: model.SubmittalApproved, SubmittedDate: midnight},
		{Status: model.SubmittalApproved, SubmittedDate: midnight.Add(-time.Nanosecond)},
		{Status: model.SubmittalApproved, SubmittedDate: now.AddDate(0, 0, -7)},
		{Status: model.SubmittalPending, SubmittedDate: now},
	}}
	if got := Compute(s, now).ApprovedToday; got != 1 {
		t.Fatalf("expected 1 approved today, got %d", got)
	}
}

func TestComputeEmpty(t *testing.T) {
	got := Compute(Snapshot{}, time.Now())
	if got != (model.DashboardStats{PassRate: 100}) {
		t.Fatalf("unexpected stats for empty snapshot %+v", got)
	}
}

func seed(t *testing.T) (*storage.Stores, model.AIInsight) {
	t.Helper()
	ctx := context.Background()
	stores := storage.NewMemoryStores()
	now := time.Now()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(stores.Projects.Put(ctx, model.Project{ID: "p1", Name: "P1", Status: model.ProjectActive}))
	must(stores.Projects.Put(ctx, model.Project{ID: "p2", Name: "P2", Status: model.ProjectCompleted}))
	_, err := stores.Submittals.Create(ctx, model.Submittal{ProjectID: "p1", Status: model.SubmittalPending, SubmittedDate: now})
	must(err)
	_, err = stores.Submittals.Create(ctx, model.Submittal{ProjectID: "p2", Status: model.SubmittalPending, SubmittedDate: now})
	must(err)
	_, err = stores.RFIs.Create(ctx, model.RFI{ProjectID: "p1", Status: model.RFIOpen})
	must(err)
	_, err = stores.Inspections.Create(ctx, model.Inspection{ProjectID: "p1", Status: model.InspectionPassed})
	must(err)
	_, err = stores.Inspections.Create(ctx, model.Inspection{ProjectID: "p2", Status: model.InspectionFailed})
	must(err)
	critical, err := stores.Insights.Create(ctx, model.AIInsight{ProjectID: "p1", Severity: model.SeverityCritical})
	must(err)
	return stores, critical
}

func TestAggregatorScopes(t *testing.T) {
	ctx := context.Background()
	stores, _ := seed(t)
	agg := NewAggregator(stores, nil)

	all, err := agg.Stats(ctx, "")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if all.TotalProjects != 2 || all.PendingReview != 2 || all.PassRate != 50 {
		t.Fatalf("unexpected global stats %+v", all)
	}

	p1, _ := agg.Stats(ctx, "p1")
	if p1.TotalProjects != 1 || p1.ActiveProjects != 1 || p1.PendingReview != 1 || p1.OpenRFIs != 1 || p1.PassRate != 100 || p1.CriticalAlerts != 1 {
		t.Fatalf("unexpected project stats %+v", p1)
	}

	unknown, _ := agg.Stats(ctx, "nope")
	if unknown != (model.DashboardStats{PassRate: 100}) {
		t.Fatalf("unexpected stats for unknown project %+v", unknown)
	}
}

func TestResolvingInsightDropsCriticalAlert(t *testing.T) {
	ctx := context.Background()
	stores, critical := seed(t)
	agg := NewAggregator(stores, nil)

	before, _ := agg.Stats(ctx, "")
	if _, err := stores.Insights.Update(ctx, critical.ID, model.Resolve().Apply); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	after, _ := agg.Stats(ctx, "")
	if before.CriticalAlerts-after.CriticalAlerts != 1 || before.AIInsightsCount-after.AIInsightsCount != 1 {
		t.Fatalf("expected both counts to drop by one: before %+v after %+v", before, after)
	}
}
