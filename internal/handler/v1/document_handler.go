package v1

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clinvault/clinvault/internal/normalize"
	"github.com/clinvault/clinvault/internal/service"
)

// maxUploadBytes bounds one multipart upload batch.
const maxUploadBytes = 256 << 20

type DocumentHandler struct {
	svc *service.DocumentService
	log *zap.Logger
}

func NewDocumentHandler(svc *service.DocumentService, log *zap.Logger) *DocumentHandler {
	return &DocumentHandler{svc: svc, log: log}
}

// Analyze ingests a multipart batch of files, runs the analysis pipeline,
// and returns one record per uploaded file, in upload order. The response is
// complete even when individual files degraded.
func (h *DocumentHandler) Analyze(c *gin.Context) {
	profileID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		respondError(c, http.StatusBadRequest, "no files provided")
		return
	}

	files := make([]normalize.FileInput, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, fmt.Sprintf("opening %s: %v", fh.Filename, err))
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			respondError(c, http.StatusBadRequest, fmt.Sprintf("reading %s: %v", fh.Filename, err))
			return
		}
		files = append(files, normalize.FileInput{
			Filename: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}

	total := len(files)
	docs, err := h.svc.AnalyzeBatch(c.Request.Context(), profileID, files, func(processed, total int) {
		h.log.Info("analysis progress",
			zap.String("profile_id", profileID.String()),
			zap.Int("processed", processed),
			zap.Int("total", total),
		)
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.log.Info("analysis complete",
		zap.String("profile_id", profileID.String()),
		zap.Int("files", total),
	)
	respondCreated(c, docs)
}

func (h *DocumentHandler) List(c *gin.Context) {
	profileID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	docs, err := h.svc.ListByProfile(c.Request.Context(), profileID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, docs)
}

// Source streams the retained original bytes for preview. The URL is
// derived per request; nothing about it is persisted.
func (h *DocumentHandler) Source(c *gin.Context) {
	profileID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	docID, ok := parseUUIDParam(c, "docID")
	if !ok {
		return
	}

	doc, err := h.svc.GetSource(c.Request.Context(), profileID, docID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	mime := doc.SourceMime
	if mime == "" {
		mime = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.SourceName))
	c.Data(http.StatusOK, mime, doc.SourceData)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	profileID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	docID, ok := parseUUIDParam(c, "docID")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), profileID, docID, c.ClientIP()); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearHistory wipes documents and report but keeps the profile.
func (h *DocumentHandler) ClearHistory(c *gin.Context) {
	profileID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.svc.ClearHistory(c.Request.Context(), profileID, c.ClientIP()); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
