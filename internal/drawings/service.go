// Package drawings handles drawing uploads and the text extraction that runs
// after them, whichever dispatcher (in-process pool or asynq) carries the job.
package drawings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/QCBoard/internal/blob"
	"github.com/dharsanguruparan/QCBoard/internal/model"
	pdfutil "github.com/dharsanguruparan/QCBoard/internal/pdf"
	"github.com/dharsanguruparan/QCBoard/internal/query"
	"github.com/dharsanguruparan/QCBoard/internal/storage"
)

const (
	pdfContentType  = "application/pdf"
	textContentType = "text/plain; charset=utf-8"
	sniffLen        = 512
)

// ErrNotProcessed is returned by Text before extraction has finished.
var ErrNotProcessed = errors.New("drawing not processed")

// Dispatcher hands a drawing id to whatever runs Process.
type Dispatcher interface {
	Dispatch(ctx context.Context, drawingID string) error
}

// Service owns the drawing lifecycle: uploaded, queued, processing, then
// processed or failed.
type Service struct {
	drawings storage.Repository[model.Drawing]
	evidence storage.Repository[model.Evidence]
	projects storage.Repository[model.Project]
	blobs    blob.Store
	dispatch Dispatcher
	maxBytes int64
	logger   *zap.Logger
	now      func() time.Time
	extract  func(io.Reader) (pdfutil.Result, error)
}

// NewService wires the service. A dispatcher must be attached with
// UseDispatcher before uploads are accepted.
func NewService(stores *storage.Stores, blobs blob.Store, maxBytes int64, logger *zap.Logger) *Service {
	return &Service{
		drawings: stores.Drawings,
		evidence: stores.Evidence,
		projects: stores.Projects,
		blobs:    blobs,
		maxBytes: maxBytes,
		logger:   logger,
		now:      time.Now,
		extract:  pdfutil.ExtractFromReader,
	}
}

// UseDispatcher sets the dispatcher. The in-process pool calls back into
// Process, so it can only be built once the Service exists.
func (s *Service) UseDispatcher(d Dispatcher) { s.dispatch = d }

// Upload spools r to a temp file, checks it is a PDF within the size limit,
// stores it and dispatches processing. The returned drawing is queued, or
// failed when the dispatcher refused the job.
func (s *Service) Upload(ctx context.Context, projectID, filename string, r io.Reader) (model.Drawing, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return model.Drawing{}, err
	}
	tmp, err := s.spool(r)
	if err != nil {
		return model.Drawing{}, err
	}
	defer os.Remove(tmp.path)
	defer tmp.f.Close()
	if tmp.contentType != pdfContentType {
		return model.Drawing{}, &model.ValidationError{Field: "file", Reason: "only PDF files supported"}
	}

	filename = filepath.Base(filename)
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		filename = "drawing.pdf"
	}
	now := s.now().UTC()
	d, err := s.drawings.Create(ctx, model.Drawing{
		ProjectID:   projectID,
		Name:        strings.TrimSuffix(filename, filepath.Ext(filename)),
		FileName:    filename,
		ContentType: tmp.contentType,
		SizeBytes:   tmp.size,
		Status:      model.DrawingUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return model.Drawing{}, fmt.Errorf("create drawing: %w", err)
	}

	key := ObjectKey(projectID, d.ID, filename)
	if err := s.blobs.Put(ctx, key, tmp.f, tmp.size, tmp.contentType); err != nil {
		s.fail(ctx, d.ID, "failed to store file")
		return model.Drawing{}, fmt.Errorf("store drawing %s: %w", d.ID, err)
	}
	queued := model.DrawingQueued
	d, err = s.drawings.Update(ctx, d.ID, func(cur model.Drawing) model.Drawing {
		cur.ObjectKey = key
		return model.DrawingPatch{Status: &queued, UpdatedAt: &now}.Apply(cur)
	})
	if err != nil {
		return model.Drawing{}, fmt.Errorf("queue drawing: %w", err)
	}

	if s.dispatch == nil {
		return s.fail(ctx, d.ID, "processing unavailable"), nil
	}
	if err := s.dispatch.Dispatch(ctx, d.ID); err != nil {
		s.logger.Warn("dispatch drawing", zap.String("drawing_id", d.ID), zap.Error(err))
		return s.fail(ctx, d.ID, "processing queue full"), nil
	}
	s.logger.Info("drawing queued",
		zap.String("drawing_id", d.ID),
		zap.String("project_id", projectID),
		zap.Int64("size", tmp.size))
	return d, nil
}

// Process extracts text from a stored drawing. Any failure leaves the drawing
// failed with the reason in its message, and is also returned so queue
// backends can retry.
func (s *Service) Process(ctx context.Context, drawingID string) error {
	processing := model.DrawingProcessing
	d, err := s.drawings.Update(ctx, drawingID, func(cur model.Drawing) model.Drawing {
		msg := ""
		at := s.now().UTC()
		return model.DrawingPatch{Status: &processing, Message: &msg, UpdatedAt: &at}.Apply(cur)
	})
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	failure := func(err error) error {
		s.logger.Error("drawing processing failed", zap.String("drawing_id", drawingID), zap.Error(err))
		s.fail(ctx, drawingID, err.Error())
		return err
	}

	rc, err := s.blobs.Get(ctx, d.ObjectKey)
	if err != nil {
		return failure(err)
	}
	res, err := s.extract(rc)
	rc.Close()
	if err != nil {
		return failure(err)
	}
	textKey := TextKey(d.ObjectKey)
	if err := s.blobs.Put(ctx, textKey, strings.NewReader(res.Text), int64(len(res.Text)), textContentType); err != nil {
		return failure(err)
	}

	done := model.DrawingProcessed
	empty := ""
	at := s.now().UTC()
	patch := model.DrawingPatch{
		Status:       &done,
		ProcessedKey: &textKey,
		PageCount:    &res.Pages,
		SheetTitle:   &res.Title,
		Message:      &empty,
		UpdatedAt:    &at,
	}
	if _, err := s.drawings.Update(ctx, drawingID, patch.Apply); err != nil {
		return failure(err)
	}
	s.logger.Info("drawing processed",
		zap.String("drawing_id", drawingID),
		zap.Int("pages", res.Pages),
		zap.Int("text_bytes", len(res.Text)))
	return nil
}

// List returns the project's drawings, newest first.
func (s *Service) List(ctx context.Context, projectID string) ([]model.Drawing, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	items, err := s.drawings.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return query.Run(items, query.Options{}, query.DrawingDate), nil
}

// Get returns one drawing of the project. A drawing that belongs to another
// project is reported as not found.
func (s *Service) Get(ctx context.Context, projectID, drawingID string) (model.Drawing, error) {
	d, err := s.drawings.Get(ctx, drawingID)
	if err != nil {
		return model.Drawing{}, err
	}
	if projectID != "" && d.ProjectID != projectID {
		return model.Drawing{}, storage.NotFound(storage.KindDrawing, drawingID)
	}
	return d, nil
}

// Open streams the original PDF. The caller closes the reader.
func (s *Service) Open(ctx context.Context, drawingID string) (model.Drawing, io.ReadCloser, error) {
	d, err := s.drawings.Get(ctx, drawingID)
	if err != nil {
		return model.Drawing{}, nil, err
	}
	rc, err := s.blobs.Get(ctx, d.ObjectKey)
	if err != nil {
		return model.Drawing{}, nil, fmt.Errorf("open drawing %s: %w", drawingID, err)
	}
	return d, rc, nil
}

// Text streams the extracted text of a processed drawing.
func (s *Service) Text(ctx context.Context, projectID, drawingID string) (io.ReadCloser, error) {
	d, err := s.Get(ctx, projectID, drawingID)
	if err != nil {
		return nil, err
	}
	if d.Status != model.DrawingProcessed || d.ProcessedKey == "" {
		return nil, ErrNotProcessed
	}
	rc, err := s.blobs.Get(ctx, d.ProcessedKey)
	if err != nil {
		return nil, fmt.Errorf("open text %s: %w", drawingID, err)
	}
	return rc, nil
}

func (s *Service) fail(ctx context.Context, drawingID, msg string) model.Drawing {
	// The caller's context may already be done; the status must still land.
	ctx = context.WithoutCancel(ctx)
	d, err := s.drawings.Update(ctx, drawingID, model.StatusPatch(model.DrawingFailed, msg, s.now().UTC()).Apply)
	if err != nil {
		s.logger.Error("mark drawing failed", zap.String("drawing_id", drawingID), zap.Error(err))
	}
	return d
}

// ObjectKey is where the original upload is stored.
func ObjectKey(projectID, drawingID, filename string) string {
	return path.Join("projects", projectID, "drawings", drawingID, filename)
}

// TextKey swaps the extension of objectKey for .txt.
func TextKey(objectKey string) string {
	base := strings.TrimSuffix(objectKey, path.Ext(objectKey))
	return fmt.Sprintf("%s.txt", base)
}

type spooled struct {
	f           *os.File
	path        string
	size        int64
	contentType string
}

// spool copies r into a temp file while capturing the first 512 bytes for
// http.DetectContentType.
func (s *Service) spool(r io.Reader) (*spooled, error) {
	tmpFile, err := os.CreateTemp("", "qcboard-upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	discard := func(err error) (*spooled, error) {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return nil, err
	}
	var sniff []byte
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > s.maxBytes {
				return discard(&model.ValidationError{Field: "file", Reason: fmt.Sprintf("exceeds limit (%d bytes)", s.maxBytes)})
			}
			if len(sniff) < sniffLen {
				chunk := min(n, sniffLen-len(sniff))
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := tmpFile.Write(buf[:n]); err != nil {
				return discard(fmt.Errorf("write temp file: %w", err))
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return discard(fmt.Errorf("read file: %w", readErr))
		}
	}
	if written == 0 {
		return discard(&model.ValidationError{Field: "file", Reason: "is empty"})
	}
	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		return discard(fmt.Errorf("rewind temp file: %w", err))
	}
	return &spooled{
		f:           tmpFile,
		path:        tmpFile.Name(),
		size:        written,
		contentType: http.DetectContentType(sniff),
	}, nil
}
