package procore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dharsanguruparan/QCBoard/internal/model"
)

func TestMemoryConnectionsSingleActive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryConnections()
	for _, company := range []string{"a", "b", "c"} {
		if _, err := store.Upsert(ctx, Connection{UserID: "u", CompanyID: company}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	active, err := store.Active(ctx, "u")
	if err != nil || active.CompanyID != "c" {
		t.Fatalf("last upsert should be active: %+v %v", active, err)
	}
	count := 0
	for _, company := range []string{"a", "b", "c"} {
		c, _ := store.Get(ctx, "u", company)
		if c.IsActive {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one active connection, got %d", count)
	}
}

func TestMemoryConnectionsDeletePromotesMostRecent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryConnections()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	store.Upsert(ctx, Connection{UserID: "u", CompanyID: "a"})
	store.Upsert(ctx, Connection{UserID: "u", CompanyID: "b"})
	store.Upsert(ctx, Connection{UserID: "u", CompanyID: "c"})
	// Touch a so it is the most recently updated inactive row.
	store.FinishSync(ctx, "u", "a", SyncResult{Status: model.SyncIdle, At: base})

	if err := store.Delete(ctx, "u", "c"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	active, err := store.Active(ctx, "u")
	if err != nil || active.CompanyID != "a" {
		t.Fatalf("expected a to be promoted, got %+v %v", active, err)
	}
	if err := store.Delete(ctx, "u", "missing"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestMemoryConnectionsSyncStateMachine(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryConnections()
	store.Upsert(ctx, Connection{UserID: "u", CompanyID: "a"})

	if err := store.BeginSync(ctx, "u", "a"); err != nil {
		t.Fatalf("idle -> syncing: %v", err)
	}
	if err := store.BeginSync(ctx, "u", "a"); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
	store.FinishSync(ctx, "u", "a", SyncResult{Status: model.SyncError, ErrorMessage: "boom"})
	c, _ := store.Get(ctx, "u", "a")
	if c.SyncStatus != model.SyncError || c.ErrorMessage != "boom" || c.LastSyncedAt != nil {
		t.Fatalf("unexpected row after failure %+v", c)
	}
	if err := store.BeginSync(ctx, "u", "a"); err != nil {
		t.Fatalf("error -> syncing: %v", err)
	}
	at := time.Now()
	store.FinishSync(ctx, "u", "a", SyncResult{Status: model.SyncIdle, At: at, ProjectsLinked: 4})
	c, _ = store.Get(ctx, "u", "a")
	if c.SyncStatus != model.SyncIdle || c.ProjectsLinked != 4 || c.LastSyncedAt == nil || c.ErrorMessage != "" {
		t.Fatalf("unexpected row after success %+v", c)
	}
}

func TestMemoryStateStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)
	state, err := store.Issue(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if ok, _ := store.Consume(ctx, state); !ok {
		t.Fatalf("fresh state rejected")
	}
	if ok, _ := store.Consume(ctx, state); ok {
		t.Fatalf("state accepted twice")
	}

	expired, _ := store.Issue(ctx)
	store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if ok, _ := store.Consume(ctx, expired); ok {
		t.Fatalf("expired state accepted")
	}
}

func TestMemoryConnectionsUpdateTokensKeepsActive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryConnections()
	store.Upsert(ctx, Connection{UserID: "u", CompanyID: "a", AccessToken: "old"})
	store.Upsert(ctx, Connection{UserID: "u", CompanyID: "b"})

	got, err := store.UpdateTokens(ctx, Connection{UserID: "u", CompanyID: "a", AccessToken: "new", RefreshToken: "r2"})
	if err != nil {
		t.Fatalf("update tokens: %v", err)
	}
	if got.AccessToken != "new" || got.RefreshToken != "r2" || got.IsActive {
		t.Fatalf("unexpected row %+v", got)
	}
	active, _ := store.Active(ctx, "u")
	if active.CompanyID != "b" {
		t.Fatalf("token update changed the active company to %s", active.CompanyID)
	}
	if _, err := store.UpdateTokens(ctx, Connection{UserID: "u", CompanyID: "missing"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}
