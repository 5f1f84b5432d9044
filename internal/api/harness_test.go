package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/QCBoard/internal/blob"
	"github.com/dharsanguruparan/QCBoard/internal/config"
	"github.com/dharsanguruparan/QCBoard/internal/drawings"
	"github.com/dharsanguruparan/QCBoard/internal/model"
	"github.com/dharsanguruparan/QCBoard/internal/procore"
	"github.com/dharsanguruparan/QCBoard/internal/signing"
	"github.com/dharsanguruparan/QCBoard/internal/storage"
)

var testNow = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

// stubProcore keeps per-user connections in memory. Each user maps to the
// companies they are connected to; the first entry of active is current.
type stubProcore struct {
	mu        sync.Mutex
	connected map[string][]string
	active    map[string]string
	syncErr   error
	syncs     int
}

func newStubProcore() *stubProcore {
	return &stubProcore{
		connected: map[string][]string{"u-1": {"c-1", "c-2"}},
		active:    map[string]string{"u-1": "c-1"},
	}
}

func (p *stubProcore) AuthorizeURL(context.Context) (string, error) {
	return "https://login.procore.test/oauth/authorize?state=s-1", nil
}

func (p *stubProcore) Callback(_ context.Context, code, state, errParam string) (procore.CallbackResult, error) {
	if state != "s-1" {
		return procore.CallbackResult{}, procore.ErrInvalidState
	}
	if errParam != "" || code == "" {
		return procore.CallbackResult{}, procore.ErrOAuth
	}
	return procore.CallbackResult{UserID: "u-1", CompanyID: "c-1"}, nil
}

func (p *stubProcore) RedirectURL(res procore.CallbackResult) string {
	return "http://frontend.test/settings?procore_connected=true&user_id=" + res.UserID
}

func (p *stubProcore) RefreshToken(_ context.Context, userID string) (time.Time, error) {
	if _, err := p.activeOf(userID); err != nil {
		return time.Time{}, err
	}
	return testNow.Add(time.Hour), nil
}

func (p *stubProcore) activeOf(userID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.active[userID]
	if !ok {
		return "", procore.ErrNotConnected
	}
	return c, nil
}

func (p *stubProcore) Status(_ context.Context, userID string) (procore.Status, error) {
	c, err := p.activeOf(userID)
	if err != nil {
		return procore.Status{SyncStatus: model.SyncIdle, ErrorMessage: "Not connected to Procore"}, nil
	}
	return procore.Status{Connected: true, SyncStatus: model.SyncIdle, ActiveCompanyID: c, ProjectsLinked: 2}, nil
}

func (p *stubProcore) Sync(ctx context.Context, userID string) (procore.Status, error) {
	if _, err := p.activeOf(userID); err != nil {
		return procore.Status{}, err
	}
	p.mu.Lock()
	p.syncs++
	err := p.syncErr
	p.mu.Unlock()
	if err != nil {
		return procore.Status{}, err
	}
	return p.Status(ctx, userID)
}

func (p *stubProcore) Disconnect(_ context.Context, userID, _ string) error {
	if _, err := p.activeOf(userID); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, userID)
	delete(p.connected, userID)
	return nil
}

func (p *stubProcore) LocalCompanies(_ context.Context, userID string) ([]model.Company, error) {
	active, err := p.activeOf(userID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.Company
	for _, c := range p.connected[userID] {
		out = append(out, model.Company{ID: c, Name: "Company " + c, IsActive: c == active})
	}
	return out, nil
}

func (p *stubProcore) Me(_ context.Context, userID string) (procore.User, error) {
	if _, err := p.activeOf(userID); err != nil {
		return procore.User{}, err
	}
	return procore.User{ID: 4242, Login: "qa@example.com", Name: "QA Lead"}, nil
}

func (p *stubProcore) RemoteCompanies(_ context.Context, userID string) ([]procore.RemoteCompany, error) {
	if _, err := p.activeOf(userID); err != nil {
		return nil, err
	}
	return []procore.RemoteCompany{{ID: 11, Name: "Northwind", IsActive: true}}, nil
}

// stubProjects are keyed by Procore company id; "11" is the default.
var stubProjects = map[string][]procore.RemoteProject{
	"11": {{ID: 900, Name: "Harbor Medical", Active: true}},
	"22": {{ID: 950, Name: "Contoso Tower", Active: true}},
}

func (p *stubProcore) RemoteProjects(_ context.Context, userID, companyID string) ([]procore.RemoteProject, error) {
	if _, err := p.activeOf(userID); err != nil {
		return nil, err
	}
	if companyID == "" {
		companyID = "11"
	}
	return stubProjects[companyID], nil
}

func (p *stubProcore) RemoteProject(ctx context.Context, userID, projectID, companyID string) (procore.RemoteProject, error) {
	projects, err := p.RemoteProjects(ctx, userID, companyID)
	if err != nil {
		return procore.RemoteProject{}, err
	}
	for _, rp := range projects {
		if strconv.FormatInt(rp.ID, 10) == projectID {
			return rp, nil
		}
	}
	return procore.RemoteProject{}, procore.ErrRemoteNotFound
}

func (p *stubProcore) ProjectTeam(ctx context.Context, userID, projectID, companyID string) ([]procore.ProjectUser, error) {
	if _, err := p.RemoteProject(ctx, userID, projectID, companyID); err != nil {
		return nil, err
	}
	return []procore.ProjectUser{{ID: 7, Name: "Site Super", JobTitle: "Superintendent"}}, nil
}

func (p *stubProcore) SelectCompany(_ context.Context, userID, companyID string) (procore.SelectResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.connected[userID] {
		if c == companyID {
			p.active[userID] = companyID
			return procore.SelectResult{Success: true, ActiveCompanyID: companyID}, nil
		}
	}
	return procore.SelectResult{}, &procore.Error{
		Code: procore.ErrNotConnected.Code, Status: http.StatusNotFound,
		Message: "No Procore connection found for that company/user",
	}
}

func (p *stubProcore) SyncHealth(_ context.Context, userID string) (model.SyncHealth, string) {
	c, err := p.activeOf(userID)
	if err != nil {
		return model.SyncHealth{SyncStatus: model.SyncIdle}, ""
	}
	return model.SyncHealth{Connected: true, SyncStatus: model.SyncIdle}, c
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, string) error { return nil }

type env struct {
	t       *testing.T
	stores  *storage.Stores
	procore *stubProcore
	server  *Server
	handler http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	stores := storage.NewMemoryStores()
	blobs, err := blob.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	cfg := &config.Config{
		Address:        ":0",
		MaxFileSize:    1 << 20,
		SignedURLTTL:   5 * time.Minute,
		AllowedOrigins: []string{"*"},
	}
	svc := drawings.NewService(stores, blobs, cfg.MaxFileSize, zap.NewNop())
	svc.UseDispatcher(nopDispatcher{})
	pc := newStubProcore()
	srv := New(Deps{
		Config:   cfg,
		Logger:   zap.NewNop(),
		Stores:   stores,
		Procore:  pc,
		Drawings: svc,
		Signer:   signing.NewSigner([]byte("test-secret")),
		Now:      func() time.Time { return testNow },
	})
	return &env{t: t, stores: stores, procore: pc, server: srv, handler: srv.Handler()}
}

func (e *env) put(items ...any) {
	e.t.Helper()
	ctx := context.Background()
	for _, item := range items {
		var err error
		switch v := item.(type) {
		case model.Project:
			err = e.stores.Projects.Put(ctx, v)
		case model.Submittal:
			err = e.stores.Submittals.Put(ctx, v)
		case model.RFI:
			err = e.stores.RFIs.Put(ctx, v)
		case model.Inspection:
			err = e.stores.Inspections.Put(ctx, v)
		case model.DrawingObject:
			err = e.stores.Objects.Put(ctx, v)
		case model.AIInsight:
			err = e.stores.Insights.Put(ctx, v)
		case model.Drawing:
			err = e.stores.Drawings.Put(ctx, v)
		default:
			e.t.Fatalf("unsupported seed type %T", item)
		}
		if err != nil {
			e.t.Fatalf("seed %T: %v", item, err)
		}
	}
}

func (e *env) do(method, target, body string) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	body := decode[map[string]string](t, rec)
	if msg != "" && body["error"] != msg {
		t.Fatalf("error %q, want %q", body["error"], msg)
	}
	if body["error"] == "" {
		t.Fatalf("expected an error message, got %s", rec.Body.String())
	}
}
