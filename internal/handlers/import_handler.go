package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"fulfill-service/internal/models"
	"fulfill-service/internal/repository"
)

// MaxImportFileSize caps uploaded CSV payloads at 20 MB.
const MaxImportFileSize = 20 << 20

// Enqueuer schedules a persisted job for background execution.
type Enqueuer interface {
	Enqueue(jobID uuid.UUID) bool
}

type ImportHandler struct {
	jobs  *repository.ImportJobsRepository
	queue Enqueuer
}

func NewImportHandler(jobs *repository.ImportJobsRepository, queue Enqueuer) *ImportHandler {
	return &ImportHandler{
		jobs:  jobs,
		queue: queue,
	}
}

// UploadImport accepts a CSV file, persists a pending import job carrying
// the payload and schedules it for background processing.
// POST /api/v1/products/import
// @Summary Start a CSV product import
// @Tags imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 202 {object} models.ImportJob
// @Router /products/import [post]
func (h *ImportHandler) UploadImport(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "FILE_REQUIRED", "Please upload a CSV file")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		respondError(c, http.StatusBadRequest, "INVALID_FORMAT", "Only CSV files are supported")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(file, MaxImportFileSize+1))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_FILE", "Failed to read uploaded file")
		return
	}
	if len(payload) > MaxImportFileSize {
		respondError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Import file exceeds the 20MB limit")
		return
	}

	job := &models.ImportJob{
		Status:      models.ImportStatusPending,
		FileContent: string(payload),
	}
	if err := h.jobs.CreateJob(c.Request.Context(), job); err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create import job")
		return
	}

	h.queue.Enqueue(job.ID)

	c.JSON(http.StatusAccepted, job)
}

// GetImportStatus reports the state of one import job.
// GET /api/v1/products/import/:id
// @Summary Get import job status
// @Tags imports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} models.ImportJob
// @Router /products/import/{id} [get]
func (h *ImportHandler) GetImportStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid job ID")
		return
	}

	job, err := h.jobs.GetJobByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "JOB_NOT_FOUND", "Import job not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get import job")
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListImportJobs returns recent import jobs, newest first.
// GET /api/v1/products/import
func (h *ImportHandler) ListImportJobs(c *gin.Context) {
	limit := 20
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	jobs, err := h.jobs.ListJobs(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list import jobs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"jobs":    jobs,
	})
}

// GetImportTemplate returns the import template definition or file
// GET /api/v1/products/import/template
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	template := models.ProductImportTemplate()

	switch format {
	case "csv":
		h.generateCSVTemplate(c, template)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

// generateCSVTemplate generates and downloads a CSV template (headers only)
func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template models.ImportTemplate) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}
	writer.Write(headers)
}

// generateXLSXTemplate generates and downloads an Excel template
func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template models.ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Products"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	// Header row only, no sample data
	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		headerText := col.Name
		if col.Required {
			headerText = col.Name + " *"
		}
		f.SetCellValue(sheetName, cell, headerText)

		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 20)
	}

	// Instructions sheet
	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Product Import Instructions")

	f.SetCellValue("Instructions", "A3", "DUPLICATE HANDLING:")
	f.SetCellValue("Instructions", "A4", "- SKUs are matched case-insensitively; leading and trailing whitespace is ignored.")
	f.SetCellValue("Instructions", "A5", "- A row whose SKU already exists updates that product instead of failing.")
	f.SetCellValue("Instructions", "A6", "- When the same SKU appears multiple times in one file, the last row wins.")
	f.SetCellValue("Instructions", "A7", "- Rows missing a name or SKU are skipped and do not count toward progress.")

	f.SetCellValue("Instructions", "A9", "Column Definitions:")
	f.SetCellValue("Instructions", "A10", "Column")
	f.SetCellValue("Instructions", "B10", "Description")
	f.SetCellValue("Instructions", "C10", "Required")
	f.SetCellValue("Instructions", "D10", "Type")
	f.SetCellValue("Instructions", "E10", "Example")

	for i, col := range template.Columns {
		row := i + 11
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue("Instructions", fmt.Sprintf("B%d", row), col.Description)
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue("Instructions", fmt.Sprintf("C%d", row), required)
		f.SetCellValue("Instructions", fmt.Sprintf("D%d", row), col.Type)
		f.SetCellValue("Instructions", fmt.Sprintf("E%d", row), col.Example)
	}

	f.SetColWidth("Instructions", "A", "A", 25)
	f.SetColWidth("Instructions", "B", "B", 60)
	f.SetColWidth("Instructions", "C", "C", 15)
	f.SetColWidth("Instructions", "D", "D", 15)
	f.SetColWidth("Instructions", "E", "E", 40)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.xlsx")

	f.Write(c.Writer)
}
