package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/dharsanguruparan/QCBoard/internal/model"
	"github.com/dharsanguruparan/QCBoard/internal/procore"
)

var (
	ErrNoUser    = errors.New("no Procore user in session")
	ErrNoProject = errors.New("no project selected")
)

// projectsPrefix covers every cached response whose content depends on the
// active company.
const projectsPrefix = "/api/projects"

// API is the server surface the reconciler needs.
type API interface {
	Status(ctx context.Context, userID string) (procore.Status, error)
	Sync(ctx context.Context, userID string) error
	Disconnect(ctx context.Context, userID, companyID string) error
	SelectCompany(ctx context.Context, userID, companyID string) error
	Companies(ctx context.Context, userID string) ([]model.Company, error)
	// Fetch performs a GET and returns the raw JSON body.
	Fetch(ctx context.Context, path string, q url.Values) ([]byte, error)
}

// Reconciler owns the session context and the connection snapshot. All
// reads and writes of either go through it.
type Reconciler struct {
	api       API
	persister Persister
	cache     *Cache

	mu      sync.Mutex
	sess    Context
	conn    model.ProcoreConnection
	lastErr string
}

func NewReconciler(api API, persister Persister, cache *Cache) *Reconciler {
	if cache == nil {
		cache = NewCache()
	}
	return &Reconciler{
		api:       api,
		persister: persister,
		cache:     cache,
		conn:      model.ProcoreConnection{SyncStatus: model.SyncIdle},
	}
}

// Start resolves the user from the URL value and the persisted value, then
// loads the connection status.
func (r *Reconciler) Start(ctx context.Context, urlUserID string) error {
	sess, err := Resolve(urlUserID, r.persister)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.sess = sess
	r.mu.Unlock()
	if sess.Anonymous() {
		return nil
	}
	_, err = r.refreshStatus(ctx)
	return err
}

// Context returns a copy of the session context.
func (r *Reconciler) Context() Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sess
}

// Connection returns a copy of the last known connection state.
func (r *Reconciler) Connection() model.ProcoreConnection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn
}

// LastError is the message of the most recent failed action, if any.
func (r *Reconciler) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Sync triggers a server-side sync. The snapshot shows syncing while it runs
// and error with the server's message if it fails.
func (r *Reconciler) Sync(ctx context.Context) error {
	r.mu.Lock()
	userID := r.sess.UserID
	if userID == "" {
		r.mu.Unlock()
		return ErrNoUser
	}
	r.conn.SyncStatus = model.SyncSyncing
	r.conn.ErrorMessage = ""
	r.mu.Unlock()

	if err := r.api.Sync(ctx, userID); err != nil {
		r.mu.Lock()
		var apiErr *APIError
		// 409 means another sync is already running on the server.
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict {
			r.conn.SyncStatus = model.SyncError
			r.conn.ErrorMessage = err.Error()
		}
		r.lastErr = err.Error()
		r.mu.Unlock()
		return err
	}
	r.mu.Lock()
	if r.sess.UserID == userID {
		r.conn.SyncStatus = model.SyncIdle
	}
	r.mu.Unlock()
	r.cache.Invalidate(projectsPrefix)
	r.cache.Invalidate("/api/dashboard")
	_, err := r.refreshStatus(ctx)
	return err
}

// Disconnect removes the active company's connection on the server and
// forgets the user locally.
func (r *Reconciler) Disconnect(ctx context.Context) error {
	sess := r.Context()
	if sess.Anonymous() {
		return ErrNoUser
	}
	if err := r.api.Disconnect(ctx, sess.UserID, sess.ActiveCompanyID); err != nil {
		r.setErr(err)
		return err
	}
	if err := r.persister.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	r.mu.Lock()
	r.sess = Context{}
	r.conn = model.ProcoreConnection{SyncStatus: model.SyncIdle}
	r.lastErr = ""
	r.mu.Unlock()
	r.cache.Invalidate("")
	return nil
}

// SwitchCompany makes target the active company. Switching to the current
// company is a no-op. On failure nothing changes locally and the server's
// error text is returned and recorded.
func (r *Reconciler) SwitchCompany(ctx context.Context, target string) error {
	sess := r.Context()
	if sess.Anonymous() {
		return ErrNoUser
	}
	if target == sess.ActiveCompanyID {
		return nil
	}
	if err := r.api.SelectCompany(ctx, sess.UserID, target); err != nil {
		r.setErr(err)
		return err
	}
	status, statusErr := r.api.Status(ctx, sess.UserID)

	r.mu.Lock()
	// The server accepted the switch; only apply it if the session still
	// belongs to the same user.
	if r.sess.UserID == sess.UserID {
		r.sess.ActiveCompanyID = target
		if statusErr == nil {
			r.conn = connectionOf(status)
			r.conn.ActiveCompanyID = target
		} else {
			r.conn.ActiveCompanyID = target
		}
		r.lastErr = ""
	}
	r.mu.Unlock()

	r.cache.Invalidate(projectsPrefix)
	return nil
}

// Companies lists the local companies the user may switch to.
func (r *Reconciler) Companies(ctx context.Context) ([]model.Company, error) {
	sess := r.Context()
	if sess.Anonymous() {
		return nil, ErrNoUser
	}
	return r.api.Companies(ctx, sess.UserID)
}

// SelectProject mirrors the selected project into the context.
func (r *Reconciler) SelectProject(projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sess.ProjectID = projectID
}

// DeepLink returns the query parameters that reopen the current view.
func (r *Reconciler) DeepLink() url.Values {
	return r.Context().DeepLink()
}

// Stats loads dashboard stats, scoped to the selected project when there is
// one.
func (r *Reconciler) Stats(ctx context.Context) (model.DashboardStats, error) {
	q := url.Values{}
	if p := r.Context().ProjectID; p != "" {
		q.Set("projectId", p)
	}
	var out model.DashboardStats
	err := r.fetch(ctx, "/api/dashboard/stats", q, &out)
	return out, err
}

// Insights loads the newest insights for the selected project, or across all
// projects when none is selected. limit <= 0 means no limit.
func (r *Reconciler) Insights(ctx context.Context, limit int) ([]model.AIInsight, error) {
	q := url.Values{}
	if p := r.Context().ProjectID; p != "" {
		q.Set("projectId", p)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []model.AIInsight
	err := r.fetch(ctx, "/api/insights", q, &out)
	return out, err
}

// Summary loads the selected project's dashboard summary.
func (r *Reconciler) Summary(ctx context.Context) (model.DashboardSummary, error) {
	sess := r.Context()
	if sess.ProjectID == "" {
		return model.DashboardSummary{}, ErrNoProject
	}
	q := url.Values{}
	if sess.UserID != "" {
		q.Set("user_id", sess.UserID)
	}
	var out model.DashboardSummary
	err := r.fetch(ctx, "/api/projects/"+url.PathEscape(sess.ProjectID)+"/dashboard/summary", q, &out)
	return out, err
}

// Projects loads the project list.
func (r *Reconciler) Projects(ctx context.Context) ([]model.Project, error) {
	var out []model.Project
	err := r.fetch(ctx, projectsPrefix, nil, &out)
	return out, err
}

func (r *Reconciler) fetch(ctx context.Context, path string, q url.Values, out any) error {
	body, err := r.cache.Get(ctx, Key(path, q), func(ctx context.Context) ([]byte, error) {
		return r.api.Fetch(ctx, path, q)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (r *Reconciler) refreshStatus(ctx context.Context) (model.ProcoreConnection, error) {
	userID := r.Context().UserID
	status, err := r.api.Status(ctx, userID)
	if err != nil {
		r.setErr(err)
		return model.ProcoreConnection{}, err
	}
	conn := connectionOf(status)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess.UserID != userID {
		return conn, nil
	}
	r.conn = conn
	r.sess.ActiveCompanyID = conn.ActiveCompanyID
	return conn, nil
}

func (r *Reconciler) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastErr = err.Error()
}

func connectionOf(s procore.Status) model.ProcoreConnection {
	return model.ProcoreConnection{
		Connected:       s.Connected,
		LastSyncedAt:    s.LastSyncedAt,
		SyncStatus:      s.SyncStatus,
		ProjectsLinked:  s.ProjectsLinked,
		ErrorMessage:    s.ErrorMessage,
		ActiveCompanyID: s.ActiveCompanyID,
	}
}
