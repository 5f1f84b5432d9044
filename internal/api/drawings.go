package api

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dharsanguruparan/QCBoard/internal/model"
)

const downloadPath = "/api/drawings/download"

func (s *Server) handleUploadDrawing(w http.ResponseWriter, r *http.Request) {
	const op = "upload drawing"
	// Leave room for the multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	mr, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, r, op, badRequest("expecting multipart form"))
		return
	}
	part, err := nextFilePart(mr)
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

	d, err := s.drawings.Upload(r.Context(), mux.Vars(r)["id"], part.FileName(), part)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"id":     d.ID,
		"status": string(d.Status),
	})
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}

func (s *Server) handleListDrawings(w http.ResponseWriter, r *http.Request) {
	list, err := s.drawings.List(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, "fetch drawings", err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetDrawing(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	d, err := s.drawings.Get(r.Context(), vars["id"], vars["drawingId"])
	if err != nil {
		s.writeError(w, r, "fetch drawing", err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (s *Server) handleDrawingText(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rc, err := s.drawings.Text(r.Context(), vars["id"], vars["drawingId"])
	if err != nil {
		s.writeError(w, r, "fetch drawing text", err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func (s *Server) handleSignedURL(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	d, err := s.drawings.Get(r.Context(), vars["id"], vars["drawingId"])
	if err != nil {
		s.writeError(w, r, "sign drawing URL", err)
		return
	}
	respondJSON(w, http.StatusOK, s.signer.Link(downloadPath, d.ID, s.cfg.SignedURLTTL, s.now()))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	const op = "download drawing"
	q := r.URL.Query()
	id, expires, signature := q.Get("drawing"), q.Get("expires"), q.Get("signature")
	if id == "" || expires == "" || signature == "" {
		s.writeError(w, r, op, badRequest("missing parameters"))
		return
	}
	if err := s.signer.Verify(id, expires, signature, s.now()); err != nil {
		s.writeError(w, r, op, err)
		return
	}
	d, rc, err := s.drawings.Open(r.Context(), id)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	defer rc.Close()
	serveDrawing(w, d, rc)
}

func serveDrawing(w http.ResponseWriter, d model.Drawing, rc io.Reader) {
	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(d.SizeBytes, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.FileName}))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
