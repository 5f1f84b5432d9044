package model

import "time"

// SubmittalStatus tracks a submittal through review.
type SubmittalStatus string

const (
	SubmittalPending        SubmittalStatus = "pending"
	SubmittalApproved       SubmittalStatus = "approved"
	SubmittalRejected       SubmittalStatus = "rejected"
	SubmittalInReview       SubmittalStatus = "in_review"
	SubmittalReviseResubmit SubmittalStatus = "revise_resubmit"
)

func (s SubmittalStatus) Valid() bool {
	switch s {
	case SubmittalPending, SubmittalApproved, SubmittalRejected, SubmittalInReview, SubmittalReviseResubmit:
		return true
	}
	return false
}

// Submittal is a contractor document (usually a shop drawing) awaiting review
// against a spec section.
type Submittal struct {
	ID              string          `json:"id" yaml:"id"`
	ProjectID       string          `json:"projectId" yaml:"projectId"`
	Number          string          `json:"number" yaml:"number"`
	Title           string          `json:"title" yaml:"title"`
	Description     string          `json:"description" yaml:"description"`
	Status          SubmittalStatus `json:"status" yaml:"status"`
	SpecSection     string          `json:"specSection" yaml:"specSection"`
	SubmittedBy     string          `json:"submittedBy" yaml:"submittedBy"`
	SubmittedDate   time.Time       `json:"submittedDate" yaml:"submittedDate"`
	DueDate         time.Time       `json:"dueDate" yaml:"dueDate"`
	AIScore         *int            `json:"aiScore,omitempty" yaml:"aiScore"`
	AIAnalysis      string          `json:"aiAnalysis,omitempty" yaml:"aiAnalysis"`
	ObjectsCovered  []string        `json:"objectsCovered" yaml:"objectsCovered"`
	AttachmentCount int             `json:"attachmentCount" yaml:"attachmentCount"`
	RevisionNumber  int             `json:"revisionNumber" yaml:"revisionNumber"`
}

func (s Submittal) EntityID() string   { return s.ID }
func (s Submittal) ProjectRef() string { return s.ProjectID }

func (s Submittal) WithID(id string) Submittal {
	s.ID = id
	return s
}

func (s Submittal) Clone() Submittal {
	s.AIScore = ptrClone(s.AIScore)
	s.ObjectsCovered = cloneStrings(s.ObjectsCovered)
	return s
}

// Validate checks a submittal create body.
func (s Submittal) Validate() error {
	if err := required("projectId", s.ProjectID); err != nil {
		return err
	}
	if err := required("number", s.Number); err != nil {
		return err
	}
	if err := required("title", s.Title); err != nil {
		return err
	}
	if !s.Status.Valid() {
		return invalid("status", "unknown submittal status %q", s.Status)
	}
	if err := nonNegative("attachmentCount", s.AttachmentCount); err != nil {
		return err
	}
	if err := nonNegative("revisionNumber", s.RevisionNumber); err != nil {
		return err
	}
	return scoreInRange(s.AIScore)
}

// SubmittalPatch is a partial update; nil fields are left untouched.
type SubmittalPatch struct {
	ProjectID       *string          `json:"projectId"`
	Number          *string          `json:"number"`
	Title           *string          `json:"title"`
	Description     *string          `json:"description"`
	Status          *SubmittalStatus `json:"status"`
	SpecSection     *string          `json:"specSection"`
	SubmittedBy     *string          `json:"submittedBy"`
	SubmittedDate   *time.Time       `json:"submittedDate"`
	DueDate         *time.Time       `json:"dueDate"`
	AIScore         *int             `json:"aiScore"`
	AIAnalysis      *string          `json:"aiAnalysis"`
	ObjectsCovered  *[]string        `json:"objectsCovered"`
	AttachmentCount *int             `json:"attachmentCount"`
	RevisionNumber  *int             `json:"revisionNumber"`
}

// Validate checks only the fields that are present.
func (p SubmittalPatch) Validate() error {
	if p.ProjectID != nil && *p.ProjectID == "" {
		return invalid("projectId", "must not be empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		return invalid("status", "unknown submittal status %q", *p.Status)
	}
	if p.AttachmentCount != nil {
		if err := nonNegative("attachmentCount", *p.AttachmentCount); err != nil {
			return err
		}
	}
	if p.RevisionNumber != nil {
		if err := nonNegative("revisionNumber", *p.RevisionNumber); err != nil {
			return err
		}
	}
	return scoreInRange(p.AIScore)
}

// Apply merges the patch into s and returns the result; s is not modified.
func (p SubmittalPatch) Apply(s Submittal) Submittal {
	out := s.Clone()
	set(&out.ProjectID, p.ProjectID)
	set(&out.Number, p.Number)
	set(&out.Title, p.Title)
	set(&out.Description, p.Description)
	set(&out.Status, p.Status)
	set(&out.SpecSection, p.SpecSection)
	set(&out.SubmittedBy, p.SubmittedBy)
	set(&out.SubmittedDate, p.SubmittedDate)
	set(&out.DueDate, p.DueDate)
	set(&out.AIAnalysis, p.AIAnalysis)
	set(&out.AttachmentCount, p.AttachmentCount)
	set(&out.RevisionNumber, p.RevisionNumber)
	if p.AIScore != nil {
		out.AIScore = ptrClone(p.AIScore)
	}
	if p.ObjectsCovered != nil {
		out.ObjectsCovered = cloneStrings(*p.ObjectsCovered)
	}
	return out
}
