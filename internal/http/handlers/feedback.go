package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/http/response"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/services"
)

type FeedbackHandler struct {
	feedback services.FeedbackService
}

func NewFeedbackHandler(feedback services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback}
}

// metricsView is the dashboard shape; refurb targets are keyed per room.
type metricsView struct {
	WindowDays     int                                 `json:"windowDays"`
	ModuleApproval map[string]services.Approval        `json:"moduleApproval"`
	RefurbPerRoom  map[string]*services.TargetApproval `json:"refurbPerRoom"`
}

func viewOf(s *services.Snapshot) metricsView {
	return metricsView{
		WindowDays:     s.WindowDays,
		ModuleApproval: s.ModuleApproval,
		RefurbPerRoom:  s.TargetApproval,
	}
}

// POST /api/feedback
func (h *FeedbackHandler) Record(c *gin.Context) {
	var in services.RecordFeedbackInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondServiceError(c, bindErr(err))
		return
	}
	snap, err := h.feedback.Record(dbctx.Of(c.Request.Context()), in)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true, "metrics": viewOf(snap)})
}

// GET /api/metrics?property_id=&days=
// A non-numeric days falls back to the default window.
func (h *FeedbackHandler) Metrics(c *gin.Context) {
	var propertyID *string
	if p := strings.TrimSpace(c.Query("property_id")); p != "" {
		propertyID = &p
	}
	days, _ := strconv.Atoi(strings.TrimSpace(c.Query("days")))
	snap, err := h.feedback.Aggregate(dbctx.Of(c.Request.Context()), propertyID, days)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, viewOf(snap))
}
