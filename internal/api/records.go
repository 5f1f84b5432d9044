package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dharsanguruparan/QCBoard/internal/model"
	"github.com/dharsanguruparan/QCBoard/internal/query"
	"github.com/dharsanguruparan/QCBoard/internal/storage"
)

type record[T any] interface {
	model.Entity[T]
	Validate() error
}

type patch[T any] interface {
	Validate() error
	Apply(T) T
}

// resource serves list/get/create/update for one QC record kind. There is
// no delete.
type resource[T record[T], P patch[T]] struct {
	srv    *Server
	noun   string
	plural string
	repo   storage.Repository[T]
	dateOf func(T) time.Time
}

func mountRecords[T record[T], P patch[T]](r *mux.Router, path string, res *resource[T, P]) {
	r.HandleFunc(path, res.list).Methods(http.MethodGet)
	r.HandleFunc(path, res.create).Methods(http.MethodPost)
	r.HandleFunc(path+"/{id}", res.get).Methods(http.MethodGet)
	r.HandleFunc(path+"/{id}", res.update).Methods(http.MethodPatch)
}

func (res *resource[T, P]) list(w http.ResponseWriter, r *http.Request) {
	op := "fetch " + res.plural
	opts, err := query.ParseOptions(r.URL.Query())
	if err != nil {
		res.srv.writeError(w, r, op, err)
		return
	}
	items, err := res.repo.List(r.Context(), opts.ProjectID)
	if err != nil {
		res.srv.writeError(w, r, op, err)
		return
	}
	respondJSON(w, http.StatusOK, query.Run(items, opts, res.dateOf))
}

func (res *resource[T, P]) get(w http.ResponseWriter, r *http.Request) {
	item, err := res.repo.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		res.srv.writeError(w, r, "fetch "+res.noun, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// create ignores any id in the body; the store assigns one.
func (res *resource[T, P]) create(w http.ResponseWriter, r *http.Request) {
	op := "create " + res.noun
	var item T
	if err := decodeBody(r.Body, &item); err != nil {
		res.srv.writeError(w, r, op, err)
		return
	}
	if err := item.Validate(); err != nil {
		res.srv.writeError(w, r, op, err)
		return
	}
	created, err := res.repo.Create(r.Context(), item)
	if err != nil {
		res.srv.writeError(w, r, op, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (res *resource[T, P]) update(w http.ResponseWriter, r *http.Request) {
	op := "update " + res.noun
	var p P
	if err := decodeStrict(r.Body, &p); err != nil {
		res.srv.writeError(w, r, op, err)
		return
	}
	if err := p.Validate(); err != nil {
		res.srv.writeError(w, r, op, err)
		return
	}
	updated, err := res.repo.Update(r.Context(), mux.Vars(r)["id"], p.Apply)
	if err != nil {
		res.srv.writeError(w, r, op, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}
