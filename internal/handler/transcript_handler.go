package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/unireg-api/internal/service"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
	"github.com/noah-isme/unireg-api/pkg/response"
)

// TranscriptHandler exposes transcript downloads.
type TranscriptHandler struct {
	transcripts *service.TranscriptService
}

// NewTranscriptHandler constructs TranscriptHandler.
func NewTranscriptHandler(transcripts *service.TranscriptService) *TranscriptHandler {
	return &TranscriptHandler{transcripts: transcripts}
}

// Export godoc
// @Summary Download a student's semester transcript
// @Tags Transcripts
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Param semesterId query string true "Semester ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /students/{id}/transcript [get]
func (h *TranscriptHandler) Export(c *gin.Context) {
	semesterID := c.Query("semesterId")
	if semesterID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "semesterId query parameter is required"))
		return
	}
	format := service.TranscriptFormat(c.DefaultQuery("format", "csv"))

	doc, err := h.transcripts.Export(c.Request.Context(), actorFromContext(c), c.Param("id"), semesterID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}
