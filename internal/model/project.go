package model

import "time"

// ProjectStatus is the lifecycle state of a construction project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectOnHold    ProjectStatus = "on_hold"
)

// Valid reports whether s is a known project status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectCompleted, ProjectOnHold:
		return true
	}
	return false
}

// Project is a job site. The rollup counters are denormalized and written by
// whoever imports the project; they are not derived at read time.
type Project struct {
	ID                string        `json:"id" yaml:"id"`
	Name              string        `json:"name" yaml:"name"`
	Address           string        `json:"address" yaml:"address"`
	Status            ProjectStatus `json:"status" yaml:"status"`
	CompanyID         string        `json:"companyId" yaml:"companyId"`
	ProcoreID         string        `json:"procoreId,omitempty" yaml:"procoreId"`
	ProcoreSynced     bool          `json:"procoreSynced" yaml:"procoreSynced"`
	LastSyncedAt      *time.Time    `json:"lastSyncedAt,omitempty" yaml:"lastSyncedAt"`
	TotalSubmittals   int           `json:"totalSubmittals" yaml:"totalSubmittals"`
	PendingSubmittals int           `json:"pendingSubmittals" yaml:"pendingSubmittals"`
	TotalRFIs         int           `json:"totalRFIs" yaml:"totalRFIs"`
	OpenRFIs          int           `json:"openRFIs" yaml:"openRFIs"`
	TotalInspections  int           `json:"totalInspections" yaml:"totalInspections"`
	PassedInspections int           `json:"passedInspections" yaml:"passedInspections"`
}

func (p Project) EntityID() string   { return p.ID }
func (p Project) ProjectRef() string { return p.ID }

func (p Project) WithID(id string) Project {
	p.ID = id
	return p
}

func (p Project) Clone() Project {
	p.LastSyncedAt = ptrClone(p.LastSyncedAt)
	return p
}

// Validate checks the fields a project needs before it is stored.
func (p Project) Validate() error {
	if err := required("name", p.Name); err != nil {
		return err
	}
	if !p.Status.Valid() {
		return invalid("status", "unknown project status %q", p.Status)
	}
	return nil
}

// ProjectPatch carries the fields a Procore sync is allowed to overwrite.
type ProjectPatch struct {
	Name          *string        `json:"name,omitempty"`
	Address       *string        `json:"address,omitempty"`
	Status        *ProjectStatus `json:"status,omitempty"`
	CompanyID     *string        `json:"companyId,omitempty"`
	ProcoreID     *string        `json:"procoreId,omitempty"`
	ProcoreSynced *bool          `json:"procoreSynced,omitempty"`
	LastSyncedAt  *time.Time     `json:"lastSyncedAt,omitempty"`
}

// Apply merges the patch into p and returns the result; p is not modified.
func (patch ProjectPatch) Apply(p Project) Project {
	out := p.Clone()
	set(&out.Name, patch.Name)
	set(&out.Address, patch.Address)
	set(&out.Status, patch.Status)
	set(&out.CompanyID, patch.CompanyID)
	set(&out.ProcoreID, patch.ProcoreID)
	set(&out.ProcoreSynced, patch.ProcoreSynced)
	if patch.LastSyncedAt != nil {
		out.LastSyncedAt = ptrClone(patch.LastSyncedAt)
	}
	return out
}

// set overwrites *dst when the patch field is present.
func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
