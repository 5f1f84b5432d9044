package query

import (
	"errors"
	"net/url"
	"slices"
	"testing"
	"time"

	"github.com/dharsanguruparan/QCBoard/internal/model"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func submittal(id, project string, offset time.Duration) model.Submittal {
	return model.Submittal{ID: id, ProjectID: project, SubmittedDate: base.Add(offset)}
}

func ids(items []model.Submittal) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = s.ID
	}
	return out
}

func TestRunSortsNewestFirstAndLimits(t *testing.T) {
	items := []model.Submittal{
		submittal("a", "p", 1*time.Hour),
		submittal("b", "p", 5*time.Hour),
		submittal("c", "p", 3*time.Hour),
		submittal("d", "p", 2*time.Hour),
		submittal("e", "p", 4*time.Hour),
	}
	got := Run(items, Options{Limit: 2}, SubmittalDate)
	if want := []string{"b", "e"}; !slices.Equal(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
	all := Run(items, Options{}, SubmittalDate)
	if want := []string{"b", "e", "c", "d", "a"}; !slices.Equal(ids(all), want) {
		t.Fatalf("expected %v, got %v", want, ids(all))
	}
}

func TestRunIsStableForEqualDates(t *testing.T) {
	items := []model.Submittal{
		submittal("first", "p", 0),
		submittal("newer", "p", time.Minute),
		submittal("second", "p", 0),
		submittal("third", "p", 0),
	}
	got := Run(items, Options{}, SubmittalDate)
	if want := []string{"newer", "first", "second", "third"}; !slices.Equal(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
}

func TestRunFiltersByProject(t *testing.T) {
	items := []model.Submittal{
		submittal("a", "p1", 0),
		submittal("b", "p2", time.Hour),
		submittal("c", "p1", 2*time.Hour),
	}
	got := Run(items, Options{ProjectID: "p1"}, SubmittalDate)
	if want := []string{"c", "a"}; !slices.Equal(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
	if got := Run(items, Options{ProjectID: "none"}, SubmittalDate); len(got) != 0 {
		t.Fatalf("expected no results, got %v", ids(got))
	}
}

func TestRunLimitLargerThanInput(t *testing.T) {
	items := []model.Submittal{submittal("a", "p", 0)}
	if got := Run(items, Options{Limit: 10}, SubmittalDate); len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		query   string
		want    Options
		wantErr bool
	}{
		{"", Options{}, false},
		{"projectId=p1&limit=5", Options{ProjectID: "p1", Limit: 5}, false},
		{"limit=0", Options{}, false},
		{"limit=-1", Options{}, true},
		{"limit=two", Options{}, true},
	}
	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		got, err := ParseOptions(q)
		if tt.wantErr {
			if !errors.Is(err, ErrBadLimit) {
				t.Fatalf("%q: expected ErrBadLimit, got %v", tt.query, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("%q: got %+v, %v", tt.query, got, err)
		}
	}
}

func TestObjectFilter(t *testing.T) {
	objects := []model.DrawingObject{
		{ID: "left", DrawingID: "d1", BoundingBox: model.Box{X: 0, Y: 0, Width: 10, Height: 10}},
		{ID: "right", DrawingID: "d1", BoundingBox: model.Box{X: 100, Y: 100, Width: 10, Height: 10}},
		{ID: "other", DrawingID: "d2", BoundingBox: model.Box{X: 0, Y: 0, Width: 10, Height: 10}},
	}
	q, _ := url.ParseQuery("drawingId=d1&bbox=5,5,50,50")
	f, err := ParseObjectFilter(q)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := f.Apply(objects)
	if len(got) != 1 || got[0].ID != "left" {
		t.Fatalf("unexpected objects %+v", got)
	}

	noFilter, _ := ParseObjectFilter(url.Values{})
	if len(noFilter.Apply(objects)) != 3 {
		t.Fatalf("empty filter should keep everything")
	}
}

func TestParseObjectFilterRejectsBadBox(t *testing.T) {
	for _, raw := range []string{"1,2,3", "a,b,c,d", "10,0,5,5"} {
		q := url.Values{"bbox": {raw}}
		if _, err := ParseObjectFilter(q); !errors.Is(err, ErrBadBBox) {
			t.Fatalf("%q: expected ErrBadBBox, got %v", raw, err)
		}
	}
}
