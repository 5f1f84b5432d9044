// Package procore integrates with the Procore construction platform: the
// OAuth grant, per-company connections and the project sync.
package procore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/QCBoard/internal/model"
	"github.com/dharsanguruparan/QCBoard/internal/storage"
)

// refreshSkew refreshes tokens slightly before they expire so a request
// started just before expiry does not fail mid-flight.
const refreshSkew = 5 * time.Minute

// Status is the wire shape of GET /api/procore/status.
type Status struct {
	Connected       bool             `json:"connected"`
	LastSyncedAt    *time.Time       `json:"last_synced_at"`
	SyncStatus      model.SyncStatus `json:"sync_status"`
	ProjectsLinked  int              `json:"projects_linked"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	ActiveCompanyID string           `json:"active_company_id,omitempty"`
	TokenExpiresAt  *time.Time       `json:"token_expires_at,omitempty"`
}

// CallbackResult identifies who completed the OAuth flow.
type CallbackResult struct {
	UserID    string
	CompanyID string
}

// SelectResult is returned by SelectCompany.
type SelectResult struct {
	Success         bool   `json:"success"`
	ActiveCompanyID string `json:"active_company_id"`
}

// Service coordinates OAuth, the API client and local storage.
type Service struct {
	cfg    Config
	oauth  *OAuth
	client *Client
	states StateStore
	conns  ConnectionStore
	stores *storage.Stores
	logger *zap.Logger
	now    func() time.Time

	companyMu sync.Mutex
}

func NewService(cfg Config, states StateStore, conns ConnectionStore, stores *storage.Stores, logger *zap.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Service{
		cfg:    cfg,
		oauth:  NewOAuth(cfg),
		client: NewClient(cfg),
		states: states,
		conns:  conns,
		stores: stores,
		logger: logger,
		now:    time.Now,
	}
}

// AuthorizeURL issues a fresh state and returns the Procore login URL.
func (s *Service) AuthorizeURL(ctx context.Context) (string, error) {
	state, err := s.states.Issue(ctx)
	if err != nil {
		return "", err
	}
	return s.oauth.AuthorizeURL(state), nil
}

// Callback completes the OAuth flow: it validates state, exchanges the code,
// mirrors the user's companies locally and activates the first one.
func (s *Service) Callback(ctx context.Context, code, state, errParam string) (CallbackResult, error) {
	ok, err := s.states.Consume(ctx, state)
	if err != nil {
		return CallbackResult{}, err
	}
	if !ok {
		return CallbackResult{}, ErrInvalidState
	}
	if errParam != "" {
		return CallbackResult{}, wrap(ErrOAuth, "OAuth error: "+errParam, nil)
	}
	if code == "" {
		return CallbackResult{}, wrap(ErrOAuth, "Missing authorization code", nil)
	}

	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return CallbackResult{}, err
	}
	me, err := s.client.Me(ctx, tok.AccessToken)
	if err != nil {
		return CallbackResult{}, err
	}
	remote, err := s.client.Companies(ctx, tok.AccessToken)
	if err != nil {
		return CallbackResult{}, err
	}
	if len(remote) == 0 {
		return CallbackResult{}, ErrNoCompanies
	}
	companies, err := s.mirrorCompanies(ctx, remote)
	if err != nil {
		return CallbackResult{}, err
	}

	userID := strconv.FormatInt(me.ID, 10)
	conn, err := s.conns.Upsert(ctx, Connection{
		UserID:         userID,
		CompanyID:      companies[0].ID,
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
		TokenExpiresAt: tok.ExpiresAt,
	})
	if err != nil {
		return CallbackResult{}, fmt.Errorf("store connection: %w", err)
	}
	s.logger.Info("procore connected",
		zap.String("user_id", userID),
		zap.String("company_id", conn.CompanyID),
		zap.Int("companies", len(companies)),
	)
	return CallbackResult{UserID: userID, CompanyID: conn.CompanyID}, nil
}

// RedirectURL is where the browser goes after a successful callback.
func (s *Service) RedirectURL(res CallbackResult) string {
	q := url.Values{}
	q.Set("procore_connected", "true")
	q.Set("user_id", res.UserID)
	if res.CompanyID != "" {
		q.Set("company_id", res.CompanyID)
	}
	return strings.TrimRight(s.cfg.FrontendURL, "/") + "/settings?" + q.Encode()
}

// Status never fails for a missing connection; it reports disconnected.
func (s *Service) Status(ctx context.Context, userID string) (Status, error) {
	conn, err := s.active(ctx, userID)
	if errors.Is(err, ErrNotConnected) {
		return Status{
			Connected:    false,
			SyncStatus:   model.SyncIdle,
			ErrorMessage: "Not connected to Procore",
		}, nil
	}
	if err != nil {
		return Status{}, err
	}
	if !s.now().Before(conn.TokenExpiresAt) {
		conn, err = s.refresh(ctx, conn)
		if err != nil {
			return Status{
				Connected:    false,
				SyncStatus:   model.SyncError,
				ErrorMessage: "Token expired and refresh failed: " + err.Error(),
			}, nil
		}
	}
	return statusOf(conn), nil
}

func statusOf(conn Connection) Status {
	st := Status{
		Connected:       true,
		LastSyncedAt:    conn.LastSyncedAt,
		SyncStatus:      conn.SyncStatus,
		ProjectsLinked:  conn.ProjectsLinked,
		ActiveCompanyID: conn.CompanyID,
	}
	if conn.SyncStatus == model.SyncError {
		st.ErrorMessage = conn.ErrorMessage
	}
	exp := conn.TokenExpiresAt
	st.TokenExpiresAt = &exp
	return st
}

// RefreshToken forces a refresh of the active connection's token.
func (s *Service) RefreshToken(ctx context.Context, userID string) (time.Time, error) {
	conn, err := s.active(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}
	conn, err = s.refresh(ctx, conn)
	if err != nil {
		return time.Time{}, err
	}
	return conn.TokenExpiresAt, nil
}

// Sync pulls the active company's projects into the project store. Only one
// sync per connection runs at a time; the run is bounded by the configured
// timeout and a deadline is reported as "sync timed out".
func (s *Service) Sync(ctx context.Context, userID string) (Status, error) {
	conn, err := s.active(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	if err := s.conns.BeginSync(ctx, conn.UserID, conn.CompanyID); err != nil {
		return Status{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	linked, syncErr := s.runSync(runCtx, conn)
	cancel()

	// The request context may already be gone; the outcome still has to be
	// recorded or the connection stays stuck in syncing.
	finishCtx := context.WithoutCancel(ctx)
	if syncErr != nil {
		msg := syncMessage(syncErr, runCtx.Err())
		if err := s.conns.FinishSync(finishCtx, conn.UserID, conn.CompanyID, SyncResult{
			Status:       model.SyncError,
			At:           s.now().UTC(),
			ErrorMessage: msg,
		}); err != nil {
			s.logger.Error("record sync failure", zap.Error(err))
		}
		s.logger.Warn("procore sync failed",
			zap.String("user_id", conn.UserID),
			zap.String("company_id", conn.CompanyID),
			zap.Error(syncErr),
		)
		var perr *Error
		if errors.As(syncErr, &perr) && msg != "sync timed out" {
			return Status{}, syncErr
		}
		return Status{}, wrap(ErrUpstream, msg, syncErr)
	}

	if err := s.conns.FinishSync(finishCtx, conn.UserID, conn.CompanyID, SyncResult{
		Status:         model.SyncIdle,
		At:             s.now().UTC(),
		ProjectsLinked: linked,
	}); err != nil {
		return Status{}, fmt.Errorf("record sync: %w", err)
	}
	s.logger.Info("procore sync complete",
		zap.String("user_id", conn.UserID),
		zap.String("company_id", conn.CompanyID),
		zap.Int("projects", linked),
	)
	return s.Status(ctx, userID)
}

func syncMessage(err, ctxErr error) string {
	if errors.Is(ctxErr, context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return "sync timed out"
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Message
	}
	return err.Error()
}

func (s *Service) runSync(ctx context.Context, conn Connection) (int, error) {
	conn, err := s.fresh(ctx, conn)
	if err != nil {
		return 0, err
	}
	company, err := s.stores.Companies.Get(ctx, conn.CompanyID)
	if err != nil {
		return 0, fmt.Errorf("load company: %w", err)
	}
	remote, err := s.client.Projects(ctx, conn.AccessToken, company.ProcoreID)
	if err != nil {
		return 0, err
	}

	local, err := s.stores.Projects.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list projects: %w", err)
	}
	byProcoreID := make(map[string]string, len(local))
	for _, p := range local {
		if p.ProcoreID != "" {
			byProcoreID[p.ProcoreID] = p.ID
		}
	}

	now := s.now().UTC()
	for _, rp := range remote {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		procoreID := strconv.FormatInt(rp.ID, 10)
		status := model.ProjectActive
		if !rp.Active {
			status = model.ProjectOnHold
		}
		synced := true
		patch := model.ProjectPatch{
			Name:          &rp.Name,
			Address:       &rp.Address,
			CompanyID:     &company.ID,
			ProcoreID:     &procoreID,
			ProcoreSynced: &synced,
			LastSyncedAt:  &now,
		}
		if id, ok := byProcoreID[procoreID]; ok {
			if _, err := s.stores.Projects.Update(ctx, id, patch.Apply); err != nil {
				return 0, fmt.Errorf("update project %s: %w", id, err)
			}
			continue
		}
		patch.Status = &status
		if _, err := s.stores.Projects.Create(ctx, patch.Apply(model.Project{})); err != nil {
			return 0, fmt.Errorf("create project: %w", err)
		}
	}
	return len(remote), nil
}

// Disconnect removes the connection for companyID, or the active one when
// companyID is empty.
func (s *Service) Disconnect(ctx context.Context, userID, companyID string) error {
	if companyID == "" {
		conn, err := s.active(ctx, userID)
		if err != nil {
			return err
		}
		companyID = conn.CompanyID
	}
	if err := s.conns.Delete(ctx, userID, companyID); err != nil {
		return err
	}
	s.logger.Info("procore disconnected", zap.String("user_id", userID), zap.String("company_id", companyID))
	return nil
}

// LocalCompanies lists the local company rows the user can access in
// Procore. The active company is flagged.
func (s *Service) LocalCompanies(ctx context.Context, userID string) ([]model.Company, error) {
	conn, err := s.active(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conn, err = s.fresh(ctx, conn); err != nil {
		return nil, err
	}
	remote, err := s.client.Companies(ctx, conn.AccessToken)
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(remote))
	for _, rc := range remote {
		allowed[strconv.FormatInt(rc.ID, 10)] = true
	}
	rows, err := s.stores.Companies.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	out := make([]model.Company, 0, len(remote))
	for _, c := range rows {
		if !allowed[c.ProcoreID] {
			continue
		}
		c.IsActive = c.ID == conn.CompanyID
		out = append(out, c)
	}
	return out, nil
}

// SelectCompany switches the user's active company. The user must already
// hold a connection for it.
func (s *Service) SelectCompany(ctx context.Context, userID, companyID string) (SelectResult, error) {
	if _, err := s.conns.Get(ctx, userID, companyID); err != nil {
		if errors.Is(err, ErrNotConnected) {
			return SelectResult{}, wrap(ErrNotConnected, "No Procore connection found for that company/user", nil)
		}
		return SelectResult{}, err
	}
	if err := s.conns.SetActive(ctx, userID, companyID); err != nil {
		return SelectResult{}, err
	}
	return SelectResult{Success: true, ActiveCompanyID: companyID}, nil
}

// SyncHealth reports the connection state for the dashboard summary. It
// never refreshes tokens and never fails: problems read as disconnected.
func (s *Service) SyncHealth(ctx context.Context, userID string) (model.SyncHealth, string) {
	conn, err := s.active(ctx, userID)
	if err != nil {
		return model.SyncHealth{Connected: false, SyncStatus: model.SyncIdle}, ""
	}
	exp := conn.TokenExpiresAt
	health := model.SyncHealth{
		Connected:      s.now().Before(exp),
		SyncStatus:     conn.SyncStatus,
		TokenExpiresAt: &exp,
	}
	if conn.SyncStatus == model.SyncError {
		health.ErrorMessage = conn.ErrorMessage
	}
	if !health.Connected {
		health.ErrorMessage = "Procore token expired"
	}
	return health, conn.CompanyID
}

func (s *Service) active(ctx context.Context, userID string) (Connection, error) {
	if strings.TrimSpace(userID) == "" {
		return Connection{}, ErrNotConnected
	}
	return s.conns.Active(ctx, userID)
}

func (s *Service) fresh(ctx context.Context, conn Connection) (Connection, error) {
	if s.now().Add(refreshSkew).Before(conn.TokenExpiresAt) {
		return conn, nil
	}
	return s.refresh(ctx, conn)
}

func (s *Service) refresh(ctx context.Context, conn Connection) (Connection, error) {
	tok, err := s.oauth.Refresh(ctx, conn.RefreshToken)
	if err != nil {
		return conn, err
	}
	conn.AccessToken = tok.AccessToken
	conn.RefreshToken = tok.RefreshToken
	conn.TokenExpiresAt = tok.ExpiresAt
	updated, err := s.conns.UpdateTokens(ctx, conn)
	if err != nil {
		return conn, fmt.Errorf("store refreshed token: %w", err)
	}
	return updated, nil
}

func (s *Service) mirrorCompanies(ctx context.Context, remote []RemoteCompany) ([]model.Company, error) {
	s.companyMu.Lock()
	defer s.companyMu.Unlock()

	rows, err := s.stores.Companies.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	byProcoreID := make(map[string]model.Company, len(rows))
	for _, c := range rows {
		byProcoreID[c.ProcoreID] = c
	}

	out := make([]model.Company, 0, len(remote))
	for _, rc := range remote {
		procoreID := strconv.FormatInt(rc.ID, 10)
		if c, ok := byProcoreID[procoreID]; ok {
			out = append(out, c)
			continue
		}
		name := rc.Name
		if name == "" {
			name = "Procore Company " + procoreID
		}
		c, err := s.stores.Companies.Create(ctx, model.Company{ProcoreID: procoreID, Name: name})
		if err != nil {
			return nil, fmt.Errorf("create company: %w", err)
		}
		byProcoreID[procoreID] = c
		out = append(out, c)
	}
	return out, nil
}
