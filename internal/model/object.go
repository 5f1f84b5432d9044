package model

import "github.com/paulmach/orb"

type ObjectStatus string

const (
	ObjectNotStarted          ObjectStatus = "not_started"
	ObjectPendingShopDrawing  ObjectStatus = "pending_shop_drawing"
	ObjectShopDrawingApproved ObjectStatus = "shop_drawing_approved"
	ObjectInstalled           ObjectStatus = "installed"
	ObjectInspected           ObjectStatus = "inspected"
	ObjectAsBuilt             ObjectStatus = "as_built"
)

func (s ObjectStatus) Valid() bool {
	switch s {
	case ObjectNotStarted, ObjectPendingShopDrawing, ObjectShopDrawingApproved,
		ObjectInstalled, ObjectInspected, ObjectAsBuilt:
		return true
	}
	return false
}

// Box is the object's footprint in drawing coordinates; X and Y are the top
// left corner.
type Box struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// DrawingObject is a physical element recognised on a drawing.
type DrawingObject struct {
	ID           string            `json:"id" yaml:"id"`
	ProjectID    string            `json:"projectId" yaml:"projectId"`
	DrawingID    string            `json:"drawingId" yaml:"drawingId"`
	ObjectType   string            `json:"objectType" yaml:"objectType"`
	ObjectID     string            `json:"objectId" yaml:"objectId"`
	Status       ObjectStatus      `json:"status" yaml:"status"`
	BoundingBox  Box               `json:"boundingBox" yaml:"boundingBox"`
	SubmittalID  string            `json:"submittalId,omitempty" yaml:"submittalId"`
	InspectionID string            `json:"inspectionId,omitempty" yaml:"inspectionId"`
	Metadata     map[string]string `json:"metadata" yaml:"metadata"`
}

func (o DrawingObject) EntityID() string   { return o.ID }
func (o DrawingObject) ProjectRef() string { return o.ProjectID }

func (o DrawingObject) WithID(id string) DrawingObject {
	o.ID = id
	return o
}

func (o DrawingObject) Clone() DrawingObject {
	o.Metadata = cloneMap(o.Metadata)
	return o
}

// Bound converts the bounding box to an orb.Bound so it can be tested against
// query rectangles.
func (o DrawingObject) Bound() orb.Bound {
	b := o.BoundingBox
	return orb.Bound{
		Min: orb.Point{b.X, b.Y},
		Max: orb.Point{b.X + b.Width, b.Y + b.Height},
	}
}
