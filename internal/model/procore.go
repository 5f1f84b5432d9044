package model

import "time"

// SyncStatus is the state of the Procore sync state machine:
// idle -> syncing -> idle | error, and error -> syncing on retry.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
	SyncError   SyncStatus = "error"
)

// ProcoreConnection is the client's view of the integration. It lives in the
// session, not in the entity store.
type ProcoreConnection struct {
	Connected       bool       `json:"connected"`
	LastSyncedAt    *time.Time `json:"lastSyncedAt,omitempty"`
	SyncStatus      SyncStatus `json:"syncStatus"`
	ProjectsLinked  int        `json:"projectsLinked"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
	ActiveCompanyID string     `json:"activeCompanyId,omitempty"`
}
