package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"fulfill-service/internal/models"
	"fulfill-service/internal/repository"
)

type stubQueue struct {
	enqueued []uuid.UUID
}

func (q *stubQueue) Enqueue(jobID uuid.UUID) bool {
	q.enqueued = append(q.enqueued, jobID)
	return true
}

func newImportTestRouter(t *testing.T) (*gin.Engine, *repository.ImportJobsRepository, *stubQueue) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ImportJob{}))

	jobs := repository.NewImportJobsRepository(db)
	queue := &stubQueue{}
	handler := NewImportHandler(jobs, queue)

	router := gin.New()
	imports := router.Group("/api/v1/products/import")
	{
		imports.GET("", handler.ListImportJobs)
		imports.POST("", handler.UploadImport)
		imports.GET("/template", handler.GetImportTemplate)
		imports.GET("/:id", handler.GetImportStatus)
	}
	return router, jobs, queue
}

func uploadCSV(t *testing.T, router *gin.Engine, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/import", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadImportCreatesPendingJob(t *testing.T) {
	router, jobs, queue := newImportTestRouter(t)

	csv := "name,sku\nWidget,w-1\n"
	w := uploadCSV(t, router, "products.csv", csv)
	require.Equal(t, http.StatusAccepted, w.Code)

	var job models.ImportJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, models.ImportStatusPending, job.Status)
	assert.NotEqual(t, uuid.Nil, job.ID)

	// Payload is persisted with the job but never serialized
	assert.NotContains(t, w.Body.String(), "Widget")
	stored, err := jobs.GetJobByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, csv, stored.FileContent)

	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, job.ID, queue.enqueued[0])
}

func TestUploadImportRejectsNonCSV(t *testing.T) {
	router, _, queue := newImportTestRouter(t)

	w := uploadCSV(t, router, "products.xlsx", "not a csv")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, queue.enqueued)
}

func TestUploadImportRequiresFile(t *testing.T) {
	router, _, _ := newImportTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/import", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetImportStatus(t *testing.T) {
	router, jobs, _ := newImportTestRouter(t)
	ctx := context.Background()

	job := &models.ImportJob{FileContent: "name,sku\n"}
	require.NoError(t, jobs.CreateJob(ctx, job))
	require.NoError(t, jobs.MarkProcessing(ctx, job.ID))
	require.NoError(t, jobs.UpdateProgress(ctx, job.ID, 1, 2))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/import/"+job.ID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var fetched models.ImportJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, models.ImportStatusProcessing, fetched.Status)
	assert.Equal(t, 50, fetched.Progress)
}

func TestGetImportStatusNotFound(t *testing.T) {
	router, _, _ := newImportTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/import/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "JOB_NOT_FOUND", resp.Error.Code)
}

func TestGetImportTemplateJSON(t *testing.T) {
	router, _, _ := newImportTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/import/template", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success  bool                  `json:"success"`
		Template models.ImportTemplate `json:"template"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "products", resp.Template.Entity)
	assert.Len(t, resp.Template.Columns, 4)
}

func TestGetImportTemplateCSV(t *testing.T) {
	router, _, _ := newImportTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/import/template?format=csv", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "products_import_template.csv")
	assert.Contains(t, w.Body.String(), "name,sku,description,active")
}
