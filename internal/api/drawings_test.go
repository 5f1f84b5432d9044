package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/dharsanguruparan/QCBoard/internal/model"
	"github.com/dharsanguruparan/QCBoard/internal/report"
)

const pdfBody = "%PDF-1.4\n1 0 obj << >> endobj\n%%EOF\n"

func (e *env) upload(projectID, filename, content string) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("note", "ignored")
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		e.t.Fatalf("form file: %v", err)
	}
	_, _ = io.WriteString(fw, content)
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/projects/"+projectID+"/drawings", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestDrawingUploadAndDownload(t *testing.T) {
	e := newEnv(t)
	e.put(model.Project{ID: "p-1", Name: "Tower", Status: model.ProjectActive})

	rec := e.upload("p-1", "A-101.pdf", pdfBody)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[map[string]string](t, rec)
	if created["status"] != string(model.DrawingQueued) || created["id"] == "" {
		t.Fatalf("unexpected upload response %v", created)
	}
	id := created["id"]

	list := decode[[]model.Drawing](t, e.do(http.MethodGet, "/api/projects/p-1/drawings", ""))
	if len(list) != 1 || list[0].FileName != "A-101.pdf" {
		t.Fatalf("unexpected list %v", list)
	}
	if rec := e.do(http.MethodGet, "/api/projects/p-1/drawings/"+id, ""); rec.Code != http.StatusOK {
		t.Fatalf("get drawing: %d", rec.Code)
	}
	expectError(t, e.do(http.MethodGet, "/api/projects/p-2/drawings/"+id, ""), http.StatusNotFound, "Drawing not found")
	expectError(t, e.do(http.MethodGet, "/api/projects/p-1/drawings/"+id+"/text", ""), http.StatusConflict, "Drawing not processed")

	link := decode[map[string]string](t, e.do(http.MethodPost, "/api/projects/p-1/drawings/"+id+"/signed-url", ""))
	if !strings.HasPrefix(link["url"], "/api/drawings/download?") || link["expires"] == "" {
		t.Fatalf("unexpected link %v", link)
	}
	rec = e.do(http.MethodGet, link["url"], "")
	if rec.Code != http.StatusOK || rec.Body.String() != pdfBody {
		t.Fatalf("download: %d %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type %q", ct)
	}

	u, _ := url.Parse(link["url"])
	q := u.Query()
	q.Set("signature", strings.Repeat("0", 64))
	expectError(t, e.do(http.MethodGet, "/api/drawings/download?"+q.Encode(), ""), http.StatusUnauthorized, "invalid signature")
	expectError(t, e.do(http.MethodGet, "/api/drawings/download?drawing="+id, ""), http.StatusBadRequest, "missing parameters")
}

func TestDrawingUploadRejections(t *testing.T) {
	e := newEnv(t)
	e.put(model.Project{ID: "p-1", Name: "Tower", Status: model.ProjectActive})

	expectError(t, e.upload("p-1", "notes.pdf", "just some text"), http.StatusBadRequest, "file: only PDF files supported")
	expectError(t, e.upload("p-9", "A-101.pdf", pdfBody), http.StatusNotFound, "Project not found")

	rec := e.do(http.MethodPost, "/api/projects/p-1/drawings", `{"file":"nope"}`)
	expectError(t, rec, http.StatusBadRequest, "expecting multipart form")

	list, _ := e.stores.Drawings.List(context.Background(), "")
	if len(list) != 0 {
		t.Fatalf("rejected uploads must not create drawings, got %d", len(list))
	}
}

func TestQCLogReport(t *testing.T) {
	e := newEnv(t)
	e.put(
		model.Project{ID: "p-1", Name: "Tower", Status: model.ProjectActive},
		model.Submittal{ID: "s-1", ProjectID: "p-1", Number: "S-1", Title: "Doors", Status: model.SubmittalPending, SubmittedDate: testNow},
	)
	rec := e.do(http.MethodGet, "/api/reports/qc-log.xlsx?projectId=p-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("report: %d %s", rec.Code, rec.Body.String())
	}
	f, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(report.SheetSubmittals)
	if len(rows) != 2 || rows[1][0] != "S-1" {
		t.Fatalf("unexpected rows %v", rows)
	}
	expectError(t, e.do(http.MethodGet, "/api/reports/qc-log.xlsx?projectId=p-9", ""), http.StatusNotFound, "Project not found")
}
