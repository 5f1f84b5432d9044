package model

import "time"

type InsightType string

const (
	InsightCompliance     InsightType = "compliance"
	InsightDeviation      InsightType = "deviation"
	InsightRecommendation InsightType = "recommendation"
	InsightWarning        InsightType = "warning"
)

func (t InsightType) Valid() bool {
	switch t {
	case InsightCompliance, InsightDeviation, InsightRecommendation, InsightWarning:
		return true
	}
	return false
}

// AIInsight is a generated finding about one or more project records.
type AIInsight struct {
	ID                  string      `json:"id" yaml:"id"`
	ProjectID           string      `json:"projectId" yaml:"projectId"`
	Type                InsightType `json:"type" yaml:"type"`
	Severity            Severity    `json:"severity" yaml:"severity"`
	Title               string      `json:"title" yaml:"title"`
	Description         string      `json:"description" yaml:"description"`
	AffectedItems       []string    `json:"affectedItems" yaml:"affectedItems"`
	CreatedAt           time.Time   `json:"createdAt" yaml:"createdAt"`
	Resolved            bool        `json:"resolved" yaml:"resolved"`
	RelatedSubmittalID  string      `json:"relatedSubmittalId,omitempty" yaml:"relatedSubmittalId"`
	RelatedRFIID        string      `json:"relatedRfiId,omitempty" yaml:"relatedRfiId"`
	RelatedInspectionID string      `json:"relatedInspectionId,omitempty" yaml:"relatedInspectionId"`
}

func (a AIInsight) EntityID() string   { return a.ID }
func (a AIInsight) ProjectRef() string { return a.ProjectID }

func (a AIInsight) WithID(id string) AIInsight {
	a.ID = id
	return a
}

func (a AIInsight) Clone() AIInsight {
	a.AffectedItems = cloneStrings(a.AffectedItems)
	return a
}

func (a AIInsight) Validate() error {
	if err := required("projectId", a.ProjectID); err != nil {
		return err
	}
	if err := required("title", a.Title); err != nil {
		return err
	}
	if !a.Type.Valid() {
		return invalid("type", "unknown insight type %q", a.Type)
	}
	if !a.Severity.Valid() {
		return invalid("severity", "unknown severity %q", a.Severity)
	}
	return nil
}

// InsightPatch is only produced internally; the HTTP surface exposes
// resolution and nothing else.
type InsightPatch struct {
	Severity *Severity
	Resolved *bool
}

func (p InsightPatch) Apply(a AIInsight) AIInsight {
	out := a.Clone()
	set(&out.Severity, p.Severity)
	set(&out.Resolved, p.Resolved)
	return out
}

// Resolve marks an insight resolved.
func Resolve() InsightPatch {
	resolved := true
	return InsightPatch{Resolved: &resolved}
}
