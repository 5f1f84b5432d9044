package model

import "time"

type InspectionStatus string

const (
	InspectionScheduled  InspectionStatus = "scheduled"
	InspectionInProgress InspectionStatus = "in_progress"
	InspectionPassed     InspectionStatus = "passed"
	InspectionFailed     InspectionStatus = "failed"
	InspectionPending    InspectionStatus = "pending"
)

func (s InspectionStatus) Valid() bool {
	switch s {
	case InspectionScheduled, InspectionInProgress, InspectionPassed, InspectionFailed, InspectionPending:
		return true
	}
	return false
}

// ChecklistItem is one line of an inspection checklist. Passed is nil until
// the inspector resolves the item.
type ChecklistItem struct {
	ID     string `json:"id" yaml:"id"`
	Item   string `json:"item" yaml:"item"`
	Passed *bool  `json:"passed" yaml:"passed"`
	Notes  string `json:"notes,omitempty" yaml:"notes"`
}

// Inspection is a scheduled field verification.
type Inspection struct {
	ID            string           `json:"id" yaml:"id"`
	ProjectID     string           `json:"projectId" yaml:"projectId"`
	Number        string           `json:"number" yaml:"number"`
	Title         string           `json:"title" yaml:"title"`
	Type          string           `json:"type" yaml:"type"`
	Status        InspectionStatus `json:"status" yaml:"status"`
	ScheduledDate time.Time        `json:"scheduledDate" yaml:"scheduledDate"`
	CompletedDate *time.Time       `json:"completedDate,omitempty" yaml:"completedDate"`
	Inspector     string           `json:"inspector" yaml:"inspector"`
	Location      string           `json:"location" yaml:"location"`
	Checklist     []ChecklistItem  `json:"checklist" yaml:"checklist"`
	Photos        []string         `json:"photos" yaml:"photos"`
	Notes         string           `json:"notes,omitempty" yaml:"notes"`
	AIFindings    []string         `json:"aiFindings" yaml:"aiFindings"`
}

func (i Inspection) EntityID() string   { return i.ID }
func (i Inspection) ProjectRef() string { return i.ProjectID }

func (i Inspection) WithID(id string) Inspection {
	i.ID = id
	return i
}

func (i Inspection) Clone() Inspection {
	i.CompletedDate = ptrClone(i.CompletedDate)
	i.Checklist = cloneChecklist(i.Checklist)
	i.Photos = cloneStrings(i.Photos)
	i.AIFindings = cloneStrings(i.AIFindings)
	return i
}

// ChecklistProgress is the fraction of checklist items that have been
// resolved either way. An empty checklist reports 0.
func (i Inspection) ChecklistProgress() float64 {
	if len(i.Checklist) == 0 {
		return 0
	}
	resolved := 0
	for _, c := range i.Checklist {
		if c.Passed != nil {
			resolved++
		}
	}
	return float64(resolved) / float64(len(i.Checklist))
}

func (i Inspection) Validate() error {
	if err := required("projectId", i.ProjectID); err != nil {
		return err
	}
	if err := required("number", i.Number); err != nil {
		return err
	}
	if err := required("title", i.Title); err != nil {
		return err
	}
	if !i.Status.Valid() {
		return invalid("status", "unknown inspection status %q", i.Status)
	}
	return validateChecklist(i.Checklist)
}

type InspectionPatch struct {
	ProjectID     *string           `json:"projectId"`
	Number        *string           `json:"number"`
	Title         *string           `json:"title"`
	Type          *string           `json:"type"`
	Status        *InspectionStatus `json:"status"`
	ScheduledDate *time.Time        `json:"scheduledDate"`
	CompletedDate *time.Time        `json:"completedDate"`
	Inspector     *string           `json:"inspector"`
	Location      *string           `json:"location"`
	Checklist     *[]ChecklistItem  `json:"checklist"`
	Photos        *[]string         `json:"photos"`
	Notes         *string           `json:"notes"`
	AIFindings    *[]string         `json:"aiFindings"`
}

func (p InspectionPatch) Validate() error {
	if p.ProjectID != nil && *p.ProjectID == "" {
		return invalid("projectId", "must not be empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		return invalid("status", "unknown inspection status %q", *p.Status)
	}
	if p.Checklist != nil {
		return validateChecklist(*p.Checklist)
	}
	return nil
}

// Apply replaces the checklist wholesale when present; items are not merged
// individually.
func (p InspectionPatch) Apply(i Inspection) Inspection {
	out := i.Clone()
	set(&out.ProjectID, p.ProjectID)
	set(&out.Number, p.Number)
	set(&out.Title, p.Title)
	set(&out.Type, p.Type)
	set(&out.Status, p.Status)
	set(&out.ScheduledDate, p.ScheduledDate)
	set(&out.Inspector, p.Inspector)
	set(&out.Location, p.Location)
	set(&out.Notes, p.Notes)
	if p.CompletedDate != nil {
		out.CompletedDate = ptrClone(p.CompletedDate)
	}
	if p.Checklist != nil {
		out.Checklist = cloneChecklist(*p.Checklist)
	}
	if p.Photos != nil {
		out.Photos = cloneStrings(*p.Photos)
	}
	if p.AIFindings != nil {
		out.AIFindings = cloneStrings(*p.AIFindings)
	}
	return out
}

func validateChecklist(items []ChecklistItem) error {
	for idx, c := range items {
		if c.Item == "" {
			return invalid("checklist", "item %d has no description", idx)
		}
	}
	return nil
}

func cloneChecklist(in []ChecklistItem) []ChecklistItem {
	if in == nil {
		return nil
	}
	out := make([]ChecklistItem, len(in))
	for i, c := range in {
		c.Passed = ptrClone(c.Passed)
		out[i] = c
	}
	return out
}
