package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/dharsanguruparan/QCBoard/internal/model"
	"github.com/dharsanguruparan/QCBoard/internal/procore"
)

// fakeAPI is an in-memory server: one user with connections to a set of
// companies.
type fakeAPI struct {
	mu        sync.Mutex
	active    map[string]string
	allowed   map[string]bool
	selectErr error
	syncErr   error
	statusErr error
	fetches   map[string]int
	discCalls []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		active:  map[string]string{"u1": "A"},
		allowed: map[string]bool{"A": true, "B": true},
		fetches: map[string]int{},
	}
}

func (f *fakeAPI) Status(_ context.Context, userID string) (procore.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return procore.Status{}, f.statusErr
	}
	company, ok := f.active[userID]
	if !ok {
		return procore.Status{SyncStatus: model.SyncIdle, ErrorMessage: "Not connected to Procore"}, nil
	}
	return procore.Status{Connected: true, SyncStatus: model.SyncIdle, ActiveCompanyID: company, ProjectsLinked: 3}, nil
}

func (f *fakeAPI) Sync(context.Context, string) error { return f.syncErr }

func (f *fakeAPI) Disconnect(_ context.Context, userID, companyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discCalls = append(f.discCalls, companyID)
	delete(f.active, userID)
	return nil
}

func (f *fakeAPI) SelectCompany(_ context.Context, userID, companyID string) error {
	if f.selectErr != nil {
		return f.selectErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.allowed[companyID] {
		return &APIError{Status: 404, Message: "No Procore connection found for that company/user"}
	}
	f.active[userID] = companyID
	return nil
}

func (f *fakeAPI) Companies(context.Context, string) ([]model.Company, error) {
	return []model.Company{{ID: "A"}, {ID: "B"}}, nil
}

func (f *fakeAPI) Fetch(_ context.Context, path string, q url.Values) ([]byte, error) {
	f.mu.Lock()
	f.fetches[Key(path, q)]++
	f.mu.Unlock()
	switch path {
	case "/api/projects":
		return json.Marshal([]model.Project{{ID: "p1", Name: "Harbor"}})
	case "/api/dashboard/stats":
		return json.Marshal(model.DashboardStats{TotalProjects: 1, PassRate: 100})
	case "/api/insights":
		return json.Marshal([]model.AIInsight{{ID: "i1"}})
	default:
		return json.Marshal(model.DashboardSummary{Project: model.SummaryProject{ID: "p1"}})
	}
}

func (f *fakeAPI) fetchCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[key]
}

func started(t *testing.T, api *fakeAPI) *Reconciler {
	t.Helper()
	r := NewReconciler(api, &MemoryPersister{}, NewCache())
	if err := r.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	return r
}

func TestStartLoadsStatus(t *testing.T) {
	r := started(t, newFakeAPI())
	conn := r.Connection()
	if !conn.Connected || conn.ActiveCompanyID != "A" || conn.ProjectsLinked != 3 {
		t.Fatalf("unexpected connection %+v", conn)
	}
	if r.Context().ActiveCompanyID != "A" {
		t.Fatalf("context not updated: %+v", r.Context())
	}
}

func TestSwitchCompanyInvalidatesProjects(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	r := started(t, api)

	if _, err := r.Projects(ctx); err != nil {
		t.Fatalf("projects: %v", err)
	}
	if _, err := r.Projects(ctx); err != nil {
		t.Fatalf("projects: %v", err)
	}
	if n := api.fetchCount("/api/projects"); n != 1 {
		t.Fatalf("expected cached projects, fetched %d times", n)
	}

	if err := r.SwitchCompany(ctx, "B"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if got := r.Context().ActiveCompanyID; got != "B" {
		t.Fatalf("expected active B, got %s", got)
	}
	if got := r.Connection().ActiveCompanyID; got != "B" {
		t.Fatalf("connection not refreshed, got %s", got)
	}
	if r.cache.Has("/api/projects") {
		t.Fatalf("project cache not invalidated")
	}
	r.Projects(ctx)
	if n := api.fetchCount("/api/projects"); n != 2 {
		t.Fatalf("expected refetch after switch, fetched %d times", n)
	}
}

func TestSwitchCompanyFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	r := started(t, api)
	r.Projects(ctx)
	before := r.Connection()

	err := r.SwitchCompany(ctx, "Z")
	if err == nil || err.Error() != "No Procore connection found for that company/user" {
		t.Fatalf("expected server error text, got %v", err)
	}
	if r.Context().ActiveCompanyID != "A" || r.Connection() != before {
		t.Fatalf("failed switch changed state: %+v %+v", r.Context(), r.Connection())
	}
	if r.LastError() != err.Error() {
		t.Fatalf("error not recorded: %q", r.LastError())
	}
	if !r.cache.Has("/api/projects") {
		t.Fatalf("failed switch must not invalidate caches")
	}
}

func TestSwitchToCurrentCompanyIsNoop(t *testing.T) {
	api := newFakeAPI()
	api.selectErr = errors.New("should not be called")
	r := started(t, api)
	if err := r.SwitchCompany(context.Background(), "A"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestSyncFailureSetsErrorStatus(t *testing.T) {
	api := newFakeAPI()
	api.syncErr = &APIError{Status: 502, Message: "sync timed out"}
	r := started(t, api)

	if err := r.Sync(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	conn := r.Connection()
	if conn.SyncStatus != model.SyncError || conn.ErrorMessage != "sync timed out" {
		t.Fatalf("unexpected connection %+v", conn)
	}

	api.syncErr = nil
	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if r.Connection().SyncStatus != model.SyncIdle {
		t.Fatalf("expected idle after retry, got %+v", r.Connection())
	}
}

func TestSyncSucceedsWhenStatusReloadFails(t *testing.T) {
	api := newFakeAPI()
	r := started(t, api)
	api.mu.Lock()
	api.statusErr = errors.New("status unavailable")
	api.mu.Unlock()

	if err := r.Sync(context.Background()); err == nil {
		t.Fatalf("expected the status error to be returned")
	}
	if got := r.Connection().SyncStatus; got != model.SyncIdle {
		t.Fatalf("sync status = %q, want idle", got)
	}
	if r.LastError() != "status unavailable" {
		t.Fatalf("last error = %q", r.LastError())
	}
}

func TestSyncConflictKeepsSyncing(t *testing.T) {
	api := newFakeAPI()
	api.syncErr = &APIError{Status: 409, Message: "Sync already in progress"}
	r := started(t, api)

	if err := r.Sync(context.Background()); err == nil {
		t.Fatalf("expected conflict error")
	}
	conn := r.Connection()
	if conn.SyncStatus != model.SyncSyncing || conn.ErrorMessage != "" {
		t.Fatalf("unexpected connection %+v", conn)
	}
	if r.LastError() != "Sync already in progress" {
		t.Fatalf("last error = %q", r.LastError())
	}
}

func TestActionsRequireUser(t *testing.T) {
	r := NewReconciler(newFakeAPI(), &MemoryPersister{}, nil)
	if err := r.Start(context.Background(), ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx := context.Background()
	if err := r.Sync(ctx); !errors.Is(err, ErrNoUser) {
		t.Fatalf("sync: expected ErrNoUser, got %v", err)
	}
	if err := r.Disconnect(ctx); !errors.Is(err, ErrNoUser) {
		t.Fatalf("disconnect: expected ErrNoUser, got %v", err)
	}
	if err := r.SwitchCompany(ctx, "B"); !errors.Is(err, ErrNoUser) {
		t.Fatalf("switch: expected ErrNoUser, got %v", err)
	}
	if _, err := r.Summary(ctx); !errors.Is(err, ErrNoProject) {
		t.Fatalf("summary: expected ErrNoProject, got %v", err)
	}
}

func TestDisconnectClearsSession(t *testing.T) {
	api := newFakeAPI()
	persister := &MemoryPersister{}
	r := NewReconciler(api, persister, nil)
	r.Start(context.Background(), "u1")
	r.SelectProject("p1")

	if err := r.Disconnect(context.Background()); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if len(api.discCalls) != 1 || api.discCalls[0] != "A" {
		t.Fatalf("expected disconnect of active company, got %v", api.discCalls)
	}
	if stored, _ := persister.Load(); stored != "" {
		t.Fatalf("persisted user not cleared: %q", stored)
	}
	if r.Context() != (Context{}) || r.Connection().Connected {
		t.Fatalf("session not reset: %+v %+v", r.Context(), r.Connection())
	}
}

func TestDataFetchesCarryContext(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	r := started(t, api)
	r.SelectProject("p1")

	if _, err := r.Stats(ctx); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if _, err := r.Insights(ctx, 5); err != nil {
		t.Fatalf("insights: %v", err)
	}
	if _, err := r.Summary(ctx); err != nil {
		t.Fatalf("summary: %v", err)
	}
	for _, key := range []string{
		"/api/dashboard/stats?projectId=p1",
		"/api/insights?limit=5&projectId=p1",
		"/api/projects/p1/dashboard/summary?user_id=u1",
	} {
		if api.fetchCount(key) != 1 {
			t.Fatalf("expected a fetch of %s, got %v", key, api.fetches)
		}
	}

	link := r.DeepLink()
	if link.Get("user_id") != "u1" || link.Get("projectId") != "p1" {
		t.Fatalf("unexpected deep link %v", link)
	}
}
