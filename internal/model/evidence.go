package model

import (
	"strings"
	"time"
)

// DefaultEvidenceType is used when an upload names no type.
const DefaultEvidenceType = "general"

// Evidence is a file attached to a project as QC proof: site photos,
// videos, test reports. Type is free-form and normalized to lower case.
type Evidence struct {
	ID          string    `json:"id" yaml:"id"`
	ProjectID   string    `json:"projectId" yaml:"projectId"`
	Type        string    `json:"type" yaml:"type"`
	FileName    string    `json:"fileName" yaml:"fileName"`
	ContentType string    `json:"contentType" yaml:"contentType"`
	SizeBytes   int64     `json:"sizeBytes" yaml:"sizeBytes"`
	ObjectKey   string    `json:"objectKey" yaml:"objectKey"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
}

func (e Evidence) EntityID() string   { return e.ID }
func (e Evidence) ProjectRef() string { return e.ProjectID }

func (e Evidence) WithID(id string) Evidence {
	e.ID = id
	return e
}

func (e Evidence) Clone() Evidence { return e }

// EvidenceType trims and lower-cases t and replaces path separators, so the
// type is safe as a storage key segment.
func EvidenceType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	t = strings.NewReplacer("/", "_", `\`, "_").Replace(t)
	if t == "" || t == "." || t == ".." {
		return DefaultEvidenceType
	}
	return t
}
