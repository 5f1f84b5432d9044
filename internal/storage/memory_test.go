package storage

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/dharsanguruparan/QCBoard/internal/model"
)

func TestCreateThenGetReturnsInputWithID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[model.Submittal](KindSubmittal)
	in := model.Submittal{ProjectID: "p1", Number: "SUB-1", Title: "Doors", Status: model.SubmittalPending, ObjectsCovered: []string{"D1"}}

	created, err := store.Create(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := in
	want.ID = created.ID
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestCreateIgnoresSuppliedID(t *testing.T) {
	store := NewMemoryStore[model.RFI](KindRFI)
	created, _ := store.Create(context.Background(), model.RFI{ID: "chosen"})
	if created.ID == "chosen" {
		t.Fatalf("create must assign its own id")
	}
}

func TestUnknownIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[model.Project](KindProject)

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
	called := false
	_, err := store.Update(ctx, "missing", func(p model.Project) model.Project {
		called = true
		return p
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from update, got %v", err)
	}
	if called {
		t.Fatalf("update must not call the merge function for unknown ids")
	}
	all, _ := store.List(ctx, "")
	if len(all) != 0 {
		t.Fatalf("update fabricated a record: %+v", all)
	}
}

func TestListFiltersByProjectInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[model.AIInsight](KindInsight)
	var ids []string
	for i, pid := range []string{"a", "b", "a", "c", "a"} {
		created, _ := store.Create(ctx, model.AIInsight{ProjectID: pid, Title: fmt.Sprint(i)})
		ids = append(ids, created.ID)
	}

	all, _ := store.List(ctx, "")
	if len(all) != 5 {
		t.Fatalf("expected 5 records, got %d", len(all))
	}
	for i, item := range all {
		if item.ID != ids[i] {
			t.Fatalf("list order differs from insertion order at %d", i)
		}
	}

	onlyA, _ := store.List(ctx, "a")
	if len(onlyA) != 3 {
		t.Fatalf("expected 3 records for project a, got %d", len(onlyA))
	}
	for _, item := range onlyA {
		if item.ProjectID != "a" {
			t.Fatalf("unexpected project %q", item.ProjectID)
		}
	}
	if none, _ := store.List(ctx, "zzz"); len(none) != 0 {
		t.Fatalf("expected empty list, got %d", len(none))
	}
}

func TestReturnedValuesDoNotAliasStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[model.DrawingObject](KindObject)
	created, _ := store.Create(ctx, model.DrawingObject{ProjectID: "p", Metadata: map[string]string{"k": "v"}})

	got, _ := store.Get(ctx, created.ID)
	got.Metadata["k"] = "changed"

	again, _ := store.Get(ctx, created.ID)
	if again.Metadata["k"] != "v" {
		t.Fatalf("caller mutation leaked into the store")
	}
}

func TestUpdatePinsID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[model.Project](KindProject)
	created, _ := store.Create(ctx, model.Project{Name: "A", Status: model.ProjectActive})
	updated, err := store.Update(ctx, created.ID, func(p model.Project) model.Project {
		p.ID = "other"
		p.Name = "B"
		return p
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID || updated.Name != "B" {
		t.Fatalf("unexpected update result %+v", updated)
	}
}

func TestConcurrentPartialUpdatesKeepEveryField(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[model.Submittal](KindSubmittal)
	created, _ := store.Create(ctx, model.Submittal{ProjectID: "p"})

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Update(ctx, created.ID, func(s model.Submittal) model.Submittal {
				s.AttachmentCount++
				return s
			})
		}()
	}
	wg.Wait()

	got, _ := store.Get(ctx, created.ID)
	if got.AttachmentCount != n {
		t.Fatalf("lost updates: expected %d, got %d", n, got.AttachmentCount)
	}
}

func TestLoadSeed(t *testing.T) {
	ctx := context.Background()
	seed, err := LoadSeed("testdata/seed.yaml")
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	stores := NewMemoryStores()
	if err := seed.Apply(ctx, stores); err != nil {
		t.Fatalf("apply seed: %v", err)
	}

	p, err := stores.Projects.Get(ctx, "p-1")
	if err != nil || p.Name != "Harbor Medical Center" {
		t.Fatalf("project not seeded: %+v %v", p, err)
	}
	sub, _ := stores.Submittals.Get(ctx, "s-1")
	if sub.AIScore == nil || *sub.AIScore != 74 || len(sub.ObjectsCovered) != 2 {
		t.Fatalf("unexpected submittal %+v", sub)
	}
	rfis, _ := stores.RFIs.List(ctx, "p-1")
	if len(rfis) != 1 || rfis[0].ID == "" {
		t.Fatalf("rfi without id should get one: %+v", rfis)
	}
	ins, _ := stores.Inspections.Get(ctx, "i-1")
	if len(ins.Checklist) != 2 || ins.Checklist[1].Passed != nil || !*ins.Checklist[0].Passed {
		t.Fatalf("checklist tri-state not preserved: %+v", ins.Checklist)
	}
	if got := seed.Counts()[KindProject]; got != 2 {
		t.Fatalf("expected 2 projects in counts, got %d", got)
	}
}

func TestSeedKeepsExistingRecords(t *testing.T) {
	ctx := context.Background()
	seed, err := LoadSeed("testdata/seed.yaml")
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	stores := NewMemoryStores()
	if err := seed.Apply(ctx, stores); err != nil {
		t.Fatalf("apply seed: %v", err)
	}
	if _, err := stores.Projects.Update(ctx, "p-1", func(p model.Project) model.Project {
		p.Name = "Harbor Medical Center (renamed)"
		return p
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := seed.Apply(ctx, stores); err != nil {
		t.Fatalf("reapply seed: %v", err)
	}
	p, _ := stores.Projects.Get(ctx, "p-1")
	if p.Name != "Harbor Medical Center (renamed)" {
		t.Fatalf("reseeding overwrote a live record: %q", p.Name)
	}
	projects, _ := stores.Projects.List(ctx, "")
	if len(projects) != 2 {
		t.Fatalf("reseeding duplicated projects: %d", len(projects))
	}
}

func TestNotFoundCarriesKind(t *testing.T) {
	store := NewMemoryStore[model.RFI](KindRFI)
	_, err := store.Get(context.Background(), "r-404")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Kind != KindRFI || nf.ID != "r-404" {
		t.Fatalf("expected NotFoundError for rfi r-404, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("NotFoundError must match ErrNotFound")
	}
}
