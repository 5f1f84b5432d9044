package model

import "time"

type RFIStatus string

const (
	RFIOpen     RFIStatus = "open"
	RFIAnswered RFIStatus = "answered"
	RFIClosed   RFIStatus = "closed"
	RFIOverdue  RFIStatus = "overdue"
)

func (s RFIStatus) Valid() bool {
	switch s {
	case RFIOpen, RFIAnswered, RFIClosed, RFIOverdue:
		return true
	}
	return false
}

// Severity is shared by RFI priority and insight severity.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// RFI is a request for information raised on site.
type RFI struct {
	ID                  string     `json:"id" yaml:"id"`
	ProjectID           string     `json:"projectId" yaml:"projectId"`
	Number              string     `json:"number" yaml:"number"`
	Subject             string     `json:"subject" yaml:"subject"`
	Question            string     `json:"question" yaml:"question"`
	Status              RFIStatus  `json:"status" yaml:"status"`
	Priority            Severity   `json:"priority" yaml:"priority"`
	CreatedBy           string     `json:"createdBy" yaml:"createdBy"`
	AssignedTo          string     `json:"assignedTo" yaml:"assignedTo"`
	CreatedDate         time.Time  `json:"createdDate" yaml:"createdDate"`
	DueDate             time.Time  `json:"dueDate" yaml:"dueDate"`
	AnsweredDate        *time.Time `json:"answeredDate,omitempty" yaml:"answeredDate"`
	Answer              string     `json:"answer,omitempty" yaml:"answer"`
	DrawingReferences   []string   `json:"drawingReferences" yaml:"drawingReferences"`
	AISuggestedResponse string     `json:"aiSuggestedResponse,omitempty" yaml:"aiSuggestedResponse"`
}

func (r RFI) EntityID() string   { return r.ID }
func (r RFI) ProjectRef() string { return r.ProjectID }

func (r RFI) WithID(id string) RFI {
	r.ID = id
	return r
}

func (r RFI) Clone() RFI {
	r.AnsweredDate = ptrClone(r.AnsweredDate)
	r.DrawingReferences = cloneStrings(r.DrawingReferences)
	return r
}

func (r RFI) Validate() error {
	if err := required("projectId", r.ProjectID); err != nil {
		return err
	}
	if err := required("number", r.Number); err != nil {
		return err
	}
	if err := required("subject", r.Subject); err != nil {
		return err
	}
	if !r.Status.Valid() {
		return invalid("status", "unknown RFI status %q", r.Status)
	}
	if !r.Priority.Valid() {
		return invalid("priority", "unknown priority %q", r.Priority)
	}
	return nil
}

type RFIPatch struct {
	ProjectID           *string    `json:"projectId"`
	Number              *string    `json:"number"`
	Subject             *string    `json:"subject"`
	Question            *string    `json:"question"`
	Status              *RFIStatus `json:"status"`
	Priority            *Severity  `json:"priority"`
	CreatedBy           *string    `json:"createdBy"`
	AssignedTo          *string    `json:"assignedTo"`
	CreatedDate         *time.Time `json:"createdDate"`
	DueDate             *time.Time `json:"dueDate"`
	AnsweredDate        *time.Time `json:"answeredDate"`
	Answer              *string    `json:"answer"`
	DrawingReferences   *[]string  `json:"drawingReferences"`
	AISuggestedResponse *string    `json:"aiSuggestedResponse"`
}

func (p RFIPatch) Validate() error {
	if p.ProjectID != nil && *p.ProjectID == "" {
		return invalid("projectId", "must not be empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		return invalid("status", "unknown RFI status %q", *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return invalid("priority", "unknown priority %q", *p.Priority)
	}
	return nil
}

func (p RFIPatch) Apply(r RFI) RFI {
	out := r.Clone()
	set(&out.ProjectID, p.ProjectID)
	set(&out.Number, p.Number)
	set(&out.Subject, p.Subject)
	set(&out.Question, p.Question)
	set(&out.Status, p.Status)
	set(&out.Priority, p.Priority)
	set(&out.CreatedBy, p.CreatedBy)
	set(&out.AssignedTo, p.AssignedTo)
	set(&out.CreatedDate, p.CreatedDate)
	set(&out.DueDate, p.DueDate)
	set(&out.Answer, p.Answer)
	set(&out.AISuggestedResponse, p.AISuggestedResponse)
	if p.AnsweredDate != nil {
		out.AnsweredDate = ptrClone(p.AnsweredDate)
	}
	if p.DrawingReferences != nil {
		out.DrawingReferences = cloneStrings(*p.DrawingReferences)
	}
	return out
}
