package procore

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/QCBoard/internal/storage"
)

// fakeProcore serves the handful of login and REST endpoints the service
// uses.
type fakeProcore struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	companies     []RemoteCompany
	projects      map[string][]RemoteProject
	exchangeCode  int
	refreshCode   int
	projectsDelay time.Duration
	refreshes     int
	lastCompanyHd string
}

func newFakeProcore(t *testing.T) *fakeProcore {
	f := &fakeProcore{
		t:            t,
		companies:    []RemoteCompany{{ID: 11, Name: "Northwind"}, {ID: 22, Name: "Contoso"}},
		projects:     map[string][]RemoteProject{},
		exchangeCode: http.StatusOK,
		refreshCode:  http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", f.token)
	mux.HandleFunc("/rest/v1.0/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeFake(w, User{ID: 4242, Login: "qa@example.com", Name: "QA Lead"})
	})
	mux.HandleFunc("/rest/v1.0/companies", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeFake(w, f.companies)
	})
	mux.HandleFunc("/rest/v1.0/projects", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		delay := f.projectsDelay
		company := r.Header.Get("Procore-Company-Id")
		f.lastCompanyHd = company
		projects := f.projects[company]
		f.mu.Unlock()
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		writeFake(w, projects)
	})
	mux.HandleFunc("/rest/v1.0/projects/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		company := r.Header.Get("Procore-Company-Id")
		f.lastCompanyHd = company
		projects := f.projects[company]
		f.mu.Unlock()
		rest := strings.TrimPrefix(r.URL.Path, "/rest/v1.0/projects/")
		id, sub, _ := strings.Cut(rest, "/")
		for _, p := range projects {
			if strconv.FormatInt(p.ID, 10) != id {
				continue
			}
			switch sub {
			case "":
				writeFake(w, p)
			case "users":
				writeFake(w, []ProjectUser{{ID: 7, Name: "Site Super", JobTitle: "Superintendent", IsEmployee: true}})
			default:
				w.WriteHeader(http.StatusNotFound)
			}
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeProcore) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if f.exchangeCode != http.StatusOK {
			w.WriteHeader(f.exchangeCode)
			return
		}
		writeFake(w, map[string]any{"access_token": "access-1", "refresh_token": "refresh-1", "expires_in": 7200})
	case "refresh_token":
		f.refreshes++
		if f.refreshCode != http.StatusOK {
			w.WriteHeader(f.refreshCode)
			return
		}
		writeFake(w, map[string]any{"access_token": "access-2", "expires_in": 7200})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *fakeProcore) config() Config {
	return Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost:8080/api/procore/oauth/callback",
		LoginURL:     f.srv.URL,
		APIURL:       f.srv.URL,
		FrontendURL:  "http://localhost:5173",
		Timeout:      2 * time.Second,
	}
}

func writeFake(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type harness struct {
	fake   *fakeProcore
	svc    *Service
	conns  *MemoryConnections
	stores *storage.Stores
}

func newHarness(t *testing.T) *harness {
	fake := newFakeProcore(t)
	conns := NewMemoryConnections()
	stores := storage.NewMemoryStores()
	svc := NewService(fake.config(), NewMemoryStateStore(StateTTL), conns, stores, zap.NewNop())
	return &harness{fake: fake, svc: svc, conns: conns, stores: stores}
}
