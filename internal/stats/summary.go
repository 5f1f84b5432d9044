package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/dharsanguruparan/QCBoard/internal/model"
	"github.com/dharsanguruparan/QCBoard/internal/storage"
)

// HealthSource reports a user's integration health and active company.
// Unknown or empty users read as disconnected.
type HealthSource interface {
	SyncHealth(ctx context.Context, userID string) (model.SyncHealth, string)
}

// Summarizer builds the per-project dashboard bundle.
type Summarizer struct {
	stores *storage.Stores
	health HealthSource
	now    func() time.Time
}

func NewSummarizer(stores *storage.Stores, health HealthSource, now func() time.Time) *Summarizer {
	if now == nil {
		now = time.Now
	}
	return &Summarizer{stores: stores, health: health, now: now}
}

// Summary returns storage.ErrNotFound for an unknown project. A missing user
// is not an error.
func (s *Summarizer) Summary(ctx context.Context, projectID, userID string) (model.DashboardSummary, error) {
	project, err := s.stores.Projects.Get(ctx, projectID)
	if err != nil {
		return model.DashboardSummary{}, err
	}
	drawings, err := s.stores.Drawings.List(ctx, projectID)
	if err != nil {
		return model.DashboardSummary{}, fmt.Errorf("load drawings: %w", err)
	}

	health, activeCompany := s.health.SyncHealth(ctx, userID)
	health.ProjectLastSyncAt = project.LastSyncedAt

	return model.DashboardSummary{
		Project: model.SummaryProject{
			ID:               project.ID,
			Name:             project.Name,
			Status:           project.Status,
			CompanyID:        project.CompanyID,
			ProcoreProjectID: project.ProcoreID,
		},
		CompanyContext: model.CompanyContext{
			ActiveCompanyID:      activeCompany,
			ProjectCompanyID:     project.CompanyID,
			MatchesActiveCompany: activeCompany != "" && activeCompany == project.CompanyID,
		},
		SyncHealth:     health,
		CurrentDrawing: currentDrawing(drawings),
		GeneratedAt:    s.now().UTC(),
	}, nil
}

// currentDrawing is the most recently updated drawing; on a tie the one
// listed first wins.
func currentDrawing(drawings []model.Drawing) *model.DrawingPointer {
	var cur *model.Drawing
	for i := range drawings {
		if cur == nil || drawings[i].UpdatedAt.After(cur.UpdatedAt) {
			cur = &drawings[i]
		}
	}
	if cur == nil {
		return nil
	}
	return &model.DrawingPointer{ID: cur.ID, Name: cur.Name, UpdatedAt: cur.UpdatedAt}
}
