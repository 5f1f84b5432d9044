package storage

import "github.com/dharsanguruparan/QCBoard/internal/model"

// Stores bundles one repository per entity kind. Companies are not project
// scoped; they are the local mirror of Procore companies.
type Stores struct {
	Projects    Repository[model.Project]
	Submittals  Repository[model.Submittal]
	RFIs        Repository[model.RFI]
	Inspections Repository[model.Inspection]
	Objects     Repository[model.DrawingObject]
	Insights    Repository[model.AIInsight]
	Drawings    Repository[model.Drawing]
	Evidence    Repository[model.Evidence]
	Companies   Repository[model.Company]
}

// Kind names double as error prefixes and as the kind column in Postgres.
const (
	KindProject    = "project"
	KindSubmittal  = "submittal"
	KindRFI        = "rfi"
	KindInspection = "inspection"
	KindObject     = "object"
	KindInsight    = "insight"
	KindDrawing    = "drawing"
	KindEvidence   = "evidence"
	KindCompany    = "company"
)

// NewMemoryStores returns a Stores backed entirely by process memory.
func NewMemoryStores() *Stores {
	return &Stores{
		Projects:    NewMemoryStore[model.Project](KindProject),
		Submittals:  NewMemoryStore[model.Submittal](KindSubmittal),
		RFIs:        NewMemoryStore[model.RFI](KindRFI),
		Inspections: NewMemoryStore[model.Inspection](KindInspection),
		Objects:     NewMemoryStore[model.DrawingObject](KindObject),
		Insights:    NewMemoryStore[model.AIInsight](KindInsight),
		Drawings:    NewMemoryStore[model.Drawing](KindDrawing),
		Evidence:    NewMemoryStore[model.Evidence](KindEvidence),
		Companies:   NewMemoryStore[model.Company](KindCompany),
	}
}
