package model

import "time"

// DrawingStatus tracks a drawing through upload and text extraction.
type DrawingStatus string

const (
	DrawingUploaded   DrawingStatus = "uploaded"
	DrawingQueued     DrawingStatus = "queued"
	DrawingProcessing DrawingStatus = "processing"
	DrawingProcessed  DrawingStatus = "processed"
	DrawingFailed     DrawingStatus = "failed"
)

// Drawing is an uploaded PDF sheet set. ObjectKey points at the original in
// the blob store; ProcessedKey at the extracted text once processing is done.
type Drawing struct {
	ID           string        `json:"id" yaml:"id"`
	ProjectID    string        `json:"projectId" yaml:"projectId"`
	Name         string        `json:"name" yaml:"name"`
	FileName     string        `json:"fileName" yaml:"fileName"`
	ContentType  string        `json:"contentType" yaml:"contentType"`
	SizeBytes    int64         `json:"sizeBytes" yaml:"sizeBytes"`
	ObjectKey    string        `json:"objectKey" yaml:"objectKey"`
	ProcessedKey string        `json:"processedKey,omitempty" yaml:"processedKey"`
	Status       DrawingStatus `json:"status" yaml:"status"`
	PageCount    int           `json:"pageCount" yaml:"pageCount"`
	SheetTitle   string        `json:"sheetTitle,omitempty" yaml:"sheetTitle"`
	Message      string        `json:"message,omitempty" yaml:"message"`
	CreatedAt    time.Time     `json:"createdAt" yaml:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt" yaml:"updatedAt"`
}

func (d Drawing) EntityID() string   { return d.ID }
func (d Drawing) ProjectRef() string { return d.ProjectID }

func (d Drawing) WithID(id string) Drawing {
	d.ID = id
	return d
}

func (d Drawing) Clone() Drawing { return d }

// DrawingPatch is written by the processing pipeline.
type DrawingPatch struct {
	Status       *DrawingStatus
	ProcessedKey *string
	PageCount    *int
	SheetTitle   *string
	Message      *string
	UpdatedAt    *time.Time
}

func (p DrawingPatch) Apply(d Drawing) Drawing {
	set(&d.Status, p.Status)
	set(&d.ProcessedKey, p.ProcessedKey)
	set(&d.PageCount, p.PageCount)
	set(&d.SheetTitle, p.SheetTitle)
	set(&d.Message, p.Message)
	set(&d.UpdatedAt, p.UpdatedAt)
	return d
}

// StatusPatch builds the patch for a plain status transition.
func StatusPatch(status DrawingStatus, msg string, at time.Time) DrawingPatch {
	return DrawingPatch{Status: &status, Message: &msg, UpdatedAt: &at}
}
