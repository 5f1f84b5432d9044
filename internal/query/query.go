// Package query implements the list semantics shared by every collection
// endpoint: optional project filter, newest first, optional limit.
package query

import (
	"errors"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/dharsanguruparan/QCBoard/internal/model"
)

// ErrBadLimit is returned by ParseOptions for a non-integer or negative
// limit.
var ErrBadLimit = errors.New("limit must be a non-negative integer")

// ErrBadBBox is returned when a bbox parameter is not four numbers with
// min <= max.
var ErrBadBBox = errors.New("bbox must be minX,minY,maxX,maxY")

// Options are the common list parameters. A zero Limit returns everything.
type Options struct {
	ProjectID string
	Limit     int
}

// ParseOptions reads projectId and limit from a query string.
func ParseOptions(q url.Values) (Options, error) {
	opts := Options{ProjectID: strings.TrimSpace(q.Get("projectId"))}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, ErrBadLimit
		}
		opts.Limit = n
	}
	return opts, nil
}

// Run filters items by project, sorts them by dateOf descending and applies
// the limit. The sort is stable: records with equal timestamps keep their
// input order, which for store listings is insertion order.
func Run[T model.Entity[T]](items []T, opts Options, dateOf func(T) time.Time) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if opts.ProjectID != "" && item.ProjectRef() != opts.ProjectID {
			continue
		}
		out = append(out, item)
	}
	if dateOf != nil {
		slices.SortStableFunc(out, func(a, b T) int {
			return dateOf(b).Compare(dateOf(a))
		})
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// Date accessors for each collection.
func SubmittalDate(s model.Submittal) time.Time   { return s.SubmittedDate }
func RFIDate(r model.RFI) time.Time               { return r.CreatedDate }
func InspectionDate(i model.Inspection) time.Time { return i.ScheduledDate }
func InsightDate(a model.AIInsight) time.Time     { return a.CreatedAt }
func DrawingDate(d model.Drawing) time.Time       { return d.CreatedAt }
func EvidenceDate(e model.Evidence) time.Time     { return e.CreatedAt }

// ObjectFilter narrows drawing objects by drawing and by area.
type ObjectFilter struct {
	DrawingID string
	BBox      *orb.Bound
}

// ParseObjectFilter reads drawingId and bbox=minX,minY,maxX,maxY.
func ParseObjectFilter(q url.Values) (ObjectFilter, error) {
	f := ObjectFilter{DrawingID: strings.TrimSpace(q.Get("drawingId"))}
	raw := strings.TrimSpace(q.Get("bbox"))
	if raw == "" {
		return f, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return f, ErrBadBBox
	}
	var v [4]float64
	for i, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return f, ErrBadBBox
		}
		v[i] = n
	}
	if v[0] > v[2] || v[1] > v[3] {
		return f, ErrBadBBox
	}
	b := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	f.BBox = &b
	return f, nil
}

// Apply keeps objects on the requested drawing whose footprint intersects
// the box. Touching edges count as intersecting.
func (f ObjectFilter) Apply(objects []model.DrawingObject) []model.DrawingObject {
	if f.DrawingID == "" && f.BBox == nil {
		return objects
	}
	out := make([]model.DrawingObject, 0, len(objects))
	for _, o := range objects {
		if f.DrawingID != "" && o.DrawingID != f.DrawingID {
			continue
		}
		if f.BBox != nil && !f.BBox.Intersects(o.Bound()) {
			continue
		}
		out = append(out, o)
	}
	return out
}
