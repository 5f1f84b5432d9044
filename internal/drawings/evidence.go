package drawings

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/QCBoard/internal/model"
	"github.com/dharsanguruparan/QCBoard/internal/query"
)

// UploadEvidence stores a QC evidence file for the project. Any content type
// is accepted; declaredType is the part's Content-Type and wins over the
// sniffed one when set. Evidence needs no processing, so the record is
// complete once the blob is stored.
func (s *Service) UploadEvidence(ctx context.Context, projectID, evidenceType, filename, declaredType string, r io.Reader) (model.Evidence, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return model.Evidence{}, err
	}
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return model.Evidence{}, &model.ValidationError{Field: "file", Reason: "missing filename"}
	}
	tmp, err := s.spool(r)
	if err != nil {
		return model.Evidence{}, err
	}
	defer os.Remove(tmp.path)
	defer tmp.f.Close()

	contentType := strings.TrimSpace(declaredType)
	if contentType == "" {
		contentType = tmp.contentType
	}
	ev, err := s.evidence.Create(ctx, model.Evidence{
		ProjectID:   projectID,
		Type:        model.EvidenceType(evidenceType),
		FileName:    filename,
		ContentType: contentType,
		SizeBytes:   tmp.size,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return model.Evidence{}, fmt.Errorf("create evidence: %w", err)
	}
	key := EvidenceKey(projectID, ev.Type, ev.ID, filename)
	if err := s.blobs.Put(ctx, key, tmp.f, tmp.size, contentType); err != nil {
		return model.Evidence{}, fmt.Errorf("store evidence %s: %w", ev.ID, err)
	}
	ev, err = s.evidence.Update(ctx, ev.ID, func(cur model.Evidence) model.Evidence {
		cur.ObjectKey = key
		return cur
	})
	if err != nil {
		return model.Evidence{}, fmt.Errorf("record evidence key: %w", err)
	}
	s.logger.Info("evidence stored",
		zap.String("evidence_id", ev.ID),
		zap.String("project_id", projectID),
		zap.String("type", ev.Type),
		zap.Int64("size", tmp.size))
	return ev, nil
}

// ListEvidence returns the project's stored evidence, newest first, optionally
// narrowed to one type. Records whose blob never landed are skipped.
func (s *Service) ListEvidence(ctx context.Context, projectID, evidenceType string) ([]model.Evidence, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	items, err := s.evidence.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	want := ""
	if strings.TrimSpace(evidenceType) != "" {
		want = model.EvidenceType(evidenceType)
	}
	out := make([]model.Evidence, 0, len(items))
	for _, ev := range items {
		if ev.ObjectKey == "" || (want != "" && ev.Type != want) {
			continue
		}
		out = append(out, ev)
	}
	return query.Run(out, query.Options{}, query.EvidenceDate), nil
}

// EvidenceKey is where an evidence file is stored.
func EvidenceKey(projectID, evidenceType, evidenceID, filename string) string {
	return path.Join("projects", projectID, "evidence", evidenceType, evidenceID+"__"+filename)
}
