package procore

import (
	"context"
	"sync"
	"time"

	"github.com/dharsanguruparan/QCBoard/internal/model"
)

// Connection is the stored grant for one (user, company) pair. Each user has
// at most one active connection; it defines the user's active company.
type Connection struct {
	UserID         string
	CompanyID      string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
	IsActive       bool
	SyncStatus     model.SyncStatus
	LastSyncedAt   *time.Time
	ProjectsLinked int
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SyncResult is recorded when a sync run ends.
type SyncResult struct {
	Status         model.SyncStatus
	At             time.Time
	ProjectsLinked int
	ErrorMessage   string
}

// ConnectionStore persists connections. Lookups of missing rows return
// ErrNotConnected.
type ConnectionStore interface {
	// Upsert stores the tokens for (UserID, CompanyID) and makes that row the
	// active one. Sync bookkeeping on an existing row is preserved.
	Upsert(ctx context.Context, c Connection) (Connection, error)
	Active(ctx context.Context, userID string) (Connection, error)
	Get(ctx context.Context, userID, companyID string) (Connection, error)
	// UpdateTokens replaces the tokens of an existing row and leaves the
	// active flag alone.
	UpdateTokens(ctx context.Context, c Connection) (Connection, error)
	SetActive(ctx context.Context, userID, companyID string) error
	// Delete removes the row. When it was active, the most recently updated
	// remaining row for the user becomes active.
	Delete(ctx context.Context, userID, companyID string) error
	// BeginSync moves the row to syncing, or fails with ErrSyncInProgress.
	BeginSync(ctx context.Context, userID, companyID string) error
	FinishSync(ctx context.Context, userID, companyID string, res SyncResult) error
}

type connKey struct{ user, company string }

// MemoryConnections is the in-process ConnectionStore.
type MemoryConnections struct {
	mu   sync.Mutex
	rows map[connKey]*Connection
	now  func() time.Time
}

func NewMemoryConnections() *MemoryConnections {
	return &MemoryConnections{rows: make(map[connKey]*Connection), now: time.Now}
}

func (m *MemoryConnections) Upsert(_ context.Context, c Connection) (Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	key := connKey{c.UserID, c.CompanyID}
	row, ok := m.rows[key]
	if !ok {
		row = &Connection{UserID: c.UserID, CompanyID: c.CompanyID, SyncStatus: model.SyncIdle, CreatedAt: now}
		m.rows[key] = row
	}
	row.AccessToken = c.AccessToken
	row.RefreshToken = c.RefreshToken
	row.TokenExpiresAt = c.TokenExpiresAt
	row.UpdatedAt = now
	m.activateLocked(c.UserID, c.CompanyID, now)
	return *row, nil
}

func (m *MemoryConnections) Active(_ context.Context, userID string) (Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.UserID == userID && row.IsActive {
			return *row, nil
		}
	}
	return Connection{}, ErrNotConnected
}

func (m *MemoryConnections) Get(_ context.Context, userID, companyID string) (Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[connKey{userID, companyID}]
	if !ok {
		return Connection{}, ErrNotConnected
	}
	return *row, nil
}

func (m *MemoryConnections) UpdateTokens(_ context.Context, c Connection) (Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[connKey{c.UserID, c.CompanyID}]
	if !ok {
		return Connection{}, ErrNotConnected
	}
	row.AccessToken = c.AccessToken
	row.RefreshToken = c.RefreshToken
	row.TokenExpiresAt = c.TokenExpiresAt
	row.UpdatedAt = m.now().UTC()
	return *row, nil
}

func (m *MemoryConnections) SetActive(_ context.Context, userID, companyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[connKey{userID, companyID}]; !ok {
		return ErrNotConnected
	}
	m.activateLocked(userID, companyID, m.now().UTC())
	return nil
}

func (m *MemoryConnections) Delete(_ context.Context, userID, companyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := connKey{userID, companyID}
	row, ok := m.rows[key]
	if !ok {
		return ErrNotConnected
	}
	delete(m.rows, key)
	if !row.IsActive {
		return nil
	}
	var next *Connection
	for _, r := range m.rows {
		if r.UserID == userID && (next == nil || r.UpdatedAt.After(next.UpdatedAt)) {
			next = r
		}
	}
	if next != nil {
		m.activateLocked(userID, next.CompanyID, m.now().UTC())
	}
	return nil
}

func (m *MemoryConnections) BeginSync(_ context.Context, userID, companyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[connKey{userID, companyID}]
	if !ok {
		return ErrNotConnected
	}
	if row.SyncStatus == model.SyncSyncing {
		return ErrSyncInProgress
	}
	row.SyncStatus = model.SyncSyncing
	row.ErrorMessage = ""
	row.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryConnections) FinishSync(_ context.Context, userID, companyID string, res SyncResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[connKey{userID, companyID}]
	if !ok {
		return ErrNotConnected
	}
	row.SyncStatus = res.Status
	row.ErrorMessage = res.ErrorMessage
	if res.Status == model.SyncIdle {
		at := res.At
		row.LastSyncedAt = &at
		row.ProjectsLinked = res.ProjectsLinked
	}
	row.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryConnections) activateLocked(userID, companyID string, now time.Time) {
	for key, row := range m.rows {
		if key.user != userID {
			continue
		}
		active := key.company == companyID
		if row.IsActive != active || active {
			row.IsActive = active
			row.UpdatedAt = now
		}
	}
}
