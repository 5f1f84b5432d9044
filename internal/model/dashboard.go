package model

import "time"

// DashboardStats is the rollup shown on the dashboard header.
type DashboardStats struct {
	TotalProjects        int `json:"totalProjects"`
	ActiveProjects       int `json:"activeProjects"`
	TotalSubmittals      int `json:"totalSubmittals"`
	PendingReview        int `json:"pendingReview"`
	ApprovedToday        int `json:"approvedToday"`
	OpenRFIs             int `json:"openRFIs"`
	OverdueRFIs          int `json:"overdueRFIs"`
	ScheduledInspections int `json:"scheduledInspections"`
	PassRate             int `json:"passRate"`
	AIInsightsCount      int `json:"aiInsightsCount"`
	CriticalAlerts       int `json:"criticalAlerts"`
}

type SummaryProject struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Status           ProjectStatus `json:"status"`
	CompanyID        string        `json:"companyId"`
	ProcoreProjectID string        `json:"procoreProjectId,omitempty"`
}

type CompanyContext struct {
	ActiveCompanyID      string `json:"activeCompanyId,omitempty"`
	ProjectCompanyID     string `json:"projectCompanyId"`
	MatchesActiveCompany bool   `json:"matchesActiveCompany"`
}

type SyncHealth struct {
	Connected         bool       `json:"connected"`
	SyncStatus        SyncStatus `json:"syncStatus"`
	ProjectLastSyncAt *time.Time `json:"projectLastSyncAt,omitempty"`
	TokenExpiresAt    *time.Time `json:"tokenExpiresAt,omitempty"`
	ErrorMessage      string     `json:"errorMessage,omitempty"`
}

type DrawingPointer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DashboardSummary bundles everything the project dashboard needs in one
// request. CurrentDrawing is null when the project has no drawings.
type DashboardSummary struct {
	Project        SummaryProject  `json:"project"`
	CompanyContext CompanyContext  `json:"companyContext"`
	SyncHealth     SyncHealth      `json:"syncHealth"`
	CurrentDrawing *DrawingPointer `json:"currentDrawing"`
	GeneratedAt    time.Time       `json:"generatedAt"`
}
