package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carledger/internal/dto"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReconciler struct {
	calls int
	rows  []dto.NormalizedRow
	kind  dto.SourceKind
}

func (s *stubReconciler) Reconcile(_ context.Context, rows []dto.NormalizedRow, _ time.Time, kind dto.SourceKind) dto.ReconcileResult {
	s.calls++
	s.rows = rows
	s.kind = kind
	return dto.ReconcileResult{ImportID: "test", EntriesAdded: len(rows)}
}

func importRouter(svc *stubReconciler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewImportHandler(svc)
	r.POST("/v1/imports", h.ImportSnapshot)
	r.POST("/v1/imports/rows", h.ImportRows)
	return r
}

func multipartBody(t *testing.T, fields map[string]string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		fw, err := w.CreateFormFile("file", "report.xlsx")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestImportSnapshotRejectsBadKind(t *testing.T) {
	svc := &stubReconciler{}
	body, contentType := multipartBody(t, map[string]string{"kind": "weekly", "date": "2024-05-01"}, nil)

	req := httptest.NewRequest("POST", "/v1/imports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	importRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.calls)
}

func TestImportSnapshotRejectsBadDate(t *testing.T) {
	svc := &stubReconciler{}
	body, contentType := multipartBody(t, map[string]string{"kind": "full", "date": "01.05.2024"}, nil)

	req := httptest.NewRequest("POST", "/v1/imports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	importRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.calls)
}

func TestImportSnapshotRequiresFile(t *testing.T) {
	svc := &stubReconciler{}
	body, contentType := multipartBody(t, map[string]string{"kind": "full", "date": "2024-05-01"}, nil)

	req := httptest.NewRequest("POST", "/v1/imports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	importRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.calls)
}

func TestImportRows(t *testing.T) {
	svc := &stubReconciler{}
	payload := `{"date":"2024-05-01T00:00:00Z","kind":"full","rows":[{"stockn":10500,"cumulative_amount":"8000"}]}`

	req := httptest.NewRequest("POST", "/v1/imports/rows", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	importRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, dto.SourceKindFull, svc.kind)
	require.Len(t, svc.rows, 1)
	assert.Equal(t, 10500, svc.rows[0].StockN)
}

func TestImportRowsRejectsBadKind(t *testing.T) {
	svc := &stubReconciler{}
	payload := `{"date":"2024-05-01T00:00:00Z","kind":"weekly","rows":[]}`

	req := httptest.NewRequest("POST", "/v1/imports/rows", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	importRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, svc.calls)
}
