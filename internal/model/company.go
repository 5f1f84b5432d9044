package model

// Company is a local row mirroring a Procore company. The id is ours; the
// Procore id is what the API speaks.
type Company struct {
	ID        string `json:"id" yaml:"id"`
	ProcoreID string `json:"procoreId" yaml:"procoreId"`
	Name      string `json:"name" yaml:"name"`
	IsActive  bool   `json:"isActive" yaml:"isActive"`
}

func (c Company) EntityID() string   { return c.ID }
func (c Company) ProjectRef() string { return "" }

func (c Company) WithID(id string) Company {
	c.ID = id
	return c
}

func (c Company) Clone() Company { return c }
