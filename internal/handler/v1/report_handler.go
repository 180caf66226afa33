package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/clinvault/clinvault/internal/service"
)

type ReportHandler struct {
	svc *service.ReportService
}

func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// Synthesize generates and stores the narrative report for a profile.
// Failures propagate with an explicit status so the client can retry;
// no placeholder report is ever returned.
func (h *ReportHandler) Synthesize(c *gin.Context) {
	profileID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	rep, err := h.svc.Synthesize(c.Request.Context(), profileID, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, rep)
}

func (h *ReportHandler) Get(c *gin.Context) {
	profileID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	rep, err := h.svc.Get(c.Request.Context(), profileID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, rep)
}
