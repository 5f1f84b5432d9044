package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// typeFieldLimit caps the size of the "type" form field.
const typeFieldLimit = 256

func (s *Server) handleUploadEvidence(w http.ResponseWriter, r *http.Request) {
	const op = "upload evidence"
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	mr, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, r, op, badRequest("expecting multipart form"))
		return
	}
	// The query string is a fallback; a "type" field sent before the file wins.
	evidenceType := r.URL.Query().Get("type")
	part, err := nextEvidencePart(mr, &evidenceType)
	if err != nil {
		var maxed *http.MaxBytesError
		if errors.As(err, &maxed) {
			s.writeError(w, r, op, err)
			return
		}
		s.writeError(w, r, op, badRequest("missing file part"))
		return
	}
	defer part.Close()

	ev, err := s.drawings.UploadEvidence(r.Context(), mux.Vars(r)["id"], evidenceType,
		part.FileName(), part.Header.Get("Content-Type"), part)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	respondJSON(w, http.StatusCreated, ev)
}

// nextEvidencePart returns the file part, recording any "type" field seen
// before it.
func nextEvidencePart(mr *multipart.Reader, evidenceType *string) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		switch part.FormName() {
		case "file":
			return part, nil
		case "type":
			raw, err := io.ReadAll(io.LimitReader(part, typeFieldLimit))
			if err != nil {
				part.Close()
				return nil, err
			}
			if v := strings.TrimSpace(string(raw)); v != "" {
				*evidenceType = v
			}
		}
		part.Close()
	}
}

func (s *Server) handleListEvidence(w http.ResponseWriter, r *http.Request) {
	list, err := s.drawings.ListEvidence(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("type"))
	if err != nil {
		s.writeError(w, r, "fetch evidence", err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}
