package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/QCBoard/internal/drawings"
	"github.com/dharsanguruparan/QCBoard/internal/model"
	"github.com/dharsanguruparan/QCBoard/internal/procore"
	"github.com/dharsanguruparan/QCBoard/internal/query"
	"github.com/dharsanguruparan/QCBoard/internal/signing"
	"github.com/dharsanguruparan/QCBoard/internal/storage"
)

// errBadRequest marks client mistakes found by the handlers themselves:
// undecodable bodies and missing query parameters.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

var kindLabels = map[string]string{
	storage.KindProject:    "Project",
	storage.KindSubmittal:  "Submittal",
	storage.KindRFI:        "RFI",
	storage.KindInspection: "Inspection",
	storage.KindObject:     "Object",
	storage.KindInsight:    "Insight",
	storage.KindDrawing:    "Drawing",
	storage.KindEvidence:   "Evidence",
	storage.KindCompany:    "Company",
}

// writeError maps err onto a status and an {"error": ...} body. op names
// the operation for the generic 500 text, e.g. "fetch submittals".
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		nf    *storage.NotFoundError
		ve    *model.ValidationError
		perr  *procore.Error
		maxed *http.MaxBytesError
	)
	switch {
	case errors.As(err, &nf):
		label := kindLabels[nf.Kind]
		if label == "" {
			label = "Record"
		}
		respondError(w, http.StatusNotFound, label+" not found")
	case errors.As(err, &ve):
		respondError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, query.ErrBadLimit), errors.Is(err, query.ErrBadBBox):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &maxed):
		respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds limit (%d bytes)", s.cfg.MaxFileSize))
	case errors.Is(err, errBadRequest):
		respondError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), errBadRequest.Error()+": "))
	case errors.As(err, &perr):
		if perr.Status >= 500 {
			s.logger.Warn("procore call failed", zap.String("op", op), zap.String("request_id", requestIDFrom(r)), zap.Error(err))
		}
		respondError(w, perr.Status, perr.Message)
	case errors.Is(err, drawings.ErrNotProcessed):
		respondError(w, http.StatusConflict, "Drawing not processed")
	case errors.Is(err, signing.ErrBadSignature), errors.Is(err, signing.ErrExpired):
		respondError(w, http.StatusUnauthorized, err.Error())
	default:
		s.logger.Error("request failed",
			zap.String("op", op),
			zap.String("request_id", requestIDFrom(r)),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to "+op)
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// decodeStrict reads a JSON body and rejects unknown fields and trailing
// data.
func decodeStrict(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	if dec.More() {
		return badRequest("invalid request body: trailing data")
	}
	return nil
}

func decodeBody(r io.Reader, dst any) error {
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}
