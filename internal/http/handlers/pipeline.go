package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/http/response"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/services"
)

type PipelineHandler struct {
	query services.PipelineQueryService
}

func NewPipelineHandler(query services.PipelineQueryService) *PipelineHandler {
	return &PipelineHandler{query: query}
}

// GET /api/jobs
func (h *PipelineHandler) ListJobs(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	page, err := h.query.ListJobs(dbctx.Of(c.Request.Context()), f)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": nonNil(page.Items), "total": page.Total})
}

// GET /api/runs
func (h *PipelineHandler) ListRuns(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	page, err := h.query.ListRuns(dbctx.Of(c.Request.Context()), f)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"runs": nonNil(page.Items), "total": page.Total})
}

// GET /api/properties
func (h *PipelineHandler) ListProperties(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	page, err := h.query.ListProperties(dbctx.Of(c.Request.Context()), f)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"properties": nonNil(page.Items), "total": page.Total})
}

func (h *PipelineHandler) filter(c *gin.Context) (services.Filter, bool) {
	f, err := services.FilterFromURLValues(c.Request.URL.Query())
	if err != nil {
		response.RespondServiceError(c, err)
		return f, false
	}
	return f, true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
