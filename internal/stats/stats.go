// Package stats computes the dashboard rollups: the stats header and the
// per-project summary bundle.
package stats

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dharsanguruparan/QCBoard/internal/model"
	"github.com/dharsanguruparan/QCBoard/internal/storage"
)

// Snapshot is the set of collections the stats are computed over.
type Snapshot struct {
	Projects    []model.Project
	Submittals  []model.Submittal
	RFIs        []model.RFI
	Inspections []model.Inspection
	Insights    []model.AIInsight
}

// Compute derives the dashboard stats from a snapshot.
//
// ApprovedToday counts approved submittals whose submittedDate is at or after
// midnight of now's day in now's location. It does not look at an approval
// time because records do not carry one.
func Compute(s Snapshot, now time.Time) model.DashboardStats {
	var st model.DashboardStats

	st.TotalProjects = len(s.Projects)
	for _, p := range s.Projects {
		if p.Status == model.ProjectActive {
			st.ActiveProjects++
		}
	}

	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	st.TotalSubmittals = len(s.Submittals)
	for _, sub := range s.Submittals {
		switch sub.Status {
		case model.SubmittalPending, model.SubmittalInReview:
			st.PendingReview++
		case model.SubmittalApproved:
			if !sub.SubmittedDate.Before(midnight) {
				st.ApprovedToday++
			}
		}
	}

	for _, r := range s.RFIs {
		switch r.Status {
		case model.RFIOpen:
			st.OpenRFIs++
		case model.RFIOverdue:
			st.OverdueRFIs++
		}
	}

	var passed, failed int
	for _, i := range s.Inspections {
		switch i.Status {
		case model.InspectionScheduled:
			st.ScheduledInspections++
		case model.InspectionPassed:
			passed++
		case model.InspectionFailed:
			failed++
		}
	}
	st.PassRate = PassRate(passed, failed)

	for _, a := range s.Insights {
		if a.Resolved {
			continue
		}
		st.AIInsightsCount++
		if a.Severity == model.SeverityCritical {
			st.CriticalAlerts++
		}
	}
	return st
}

// PassRate is round(100*passed/(passed+failed)), or 100 when nothing has
// been resolved yet. Halves round away from zero.
func PassRate(passed, failed int) int {
	total := passed + failed
	if total == 0 {
		return 100
	}
	return int(math.Round(100 * float64(passed) / float64(total)))
}

// Aggregator loads snapshots from the stores.
type Aggregator struct {
	stores *storage.Stores
	now    func() time.Time
}

func NewAggregator(stores *storage.Stores, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{stores: stores, now: now}
}

// Snapshot loads the collections, restricted to projectID when it is set.
func (a *Aggregator) Snapshot(ctx context.Context, projectID string) (Snapshot, error) {
	var (
		s   Snapshot
		err error
	)
	if s.Projects, err = a.stores.Projects.List(ctx, projectID); err != nil {
		return s, fmt.Errorf("load projects: %w", err)
	}
	if s.Submittals, err = a.stores.Submittals.List(ctx, projectID); err != nil {
		return s, fmt.Errorf("load submittals: %w", err)
	}
	if s.RFIs, err = a.stores.RFIs.List(ctx, projectID); err != nil {
		return s, fmt.Errorf("load rfis: %w", err)
	}
	if s.Inspections, err = a.stores.Inspections.List(ctx, projectID); err != nil {
		return s, fmt.Errorf("load inspections: %w", err)
	}
	if s.Insights, err = a.stores.Insights.List(ctx, projectID); err != nil {
		return s, fmt.Errorf("load insights: %w", err)
	}
	return s, nil
}

// Stats computes the dashboard stats. An empty projectID covers every
// project; otherwise the same predicates run over that project's records.
func (a *Aggregator) Stats(ctx context.Context, projectID string) (model.DashboardStats, error) {
	s, err := a.Snapshot(ctx, projectID)
	if err != nil {
		return model.DashboardStats{}, err
	}
	return Compute(s, a.now()), nil
}
