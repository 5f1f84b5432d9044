// Package session is the client side of the dashboard: who the user is,
// which company and project they are looking at, and the rules that keep
// those in step with the server.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Context travels with every data fetch.
type Context struct {
	UserID          string
	ActiveCompanyID string
	ProjectID       string
}

// Anonymous reports whether no Procore user is associated.
func (c Context) Anonymous() bool { return c.UserID == "" }

// DeepLink renders the context as the query parameters that reopen it.
func (c Context) DeepLink() url.Values {
	q := url.Values{}
	if c.UserID != "" {
		q.Set("user_id", c.UserID)
	}
	if c.ProjectID != "" {
		q.Set("projectId", c.ProjectID)
	}
	return q
}

// Persister remembers the Procore user id between runs.
type Persister interface {
	Load() (string, error)
	Save(userID string) error
	Clear() error
}

// Resolve picks the session user: a non-empty URL value wins over the
// persisted one, and whichever wins is persisted again.
func Resolve(urlUserID string, p Persister) (Context, error) {
	userID := strings.TrimSpace(urlUserID)
	if userID == "" {
		stored, err := p.Load()
		if err != nil {
			return Context{}, fmt.Errorf("load session: %w", err)
		}
		userID = strings.TrimSpace(stored)
	}
	if userID == "" {
		return Context{}, nil
	}
	if err := p.Save(userID); err != nil {
		return Context{}, fmt.Errorf("save session: %w", err)
	}
	return Context{UserID: userID}, nil
}

// FilePersister stores the user id in a small JSON file.
type FilePersister struct {
	path string
}

type persisted struct {
	ProcoreUserID string `json:"procoreUserId"`
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// DefaultPersister stores the session under the user's config directory.
func DefaultPersister() (*FilePersister, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("locate config dir: %w", err)
	}
	return NewFilePersister(filepath.Join(dir, "qcboard", "session.json")), nil
}

func (f *FilePersister) Load() (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("decode %s: %w", f.path, err)
	}
	return p.ProcoreUserID, nil
}

func (f *FilePersister) Save(userID string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(persisted{ProcoreUserID: userID})
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}

func (f *FilePersister) Clear() error {
	err := os.Remove(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryPersister keeps the user id for the life of the process.
type MemoryPersister struct {
	mu     sync.Mutex
	userID string
}

func (m *MemoryPersister) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID, nil
}

func (m *MemoryPersister) Save(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userID = userID
	return nil
}

func (m *MemoryPersister) Clear() error {
	return m.Save("")
}
