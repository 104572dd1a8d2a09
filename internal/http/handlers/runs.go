package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/http/response"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/services"
)

type RunHandler struct {
	runs services.RunService
}

func NewRunHandler(runs services.RunService) *RunHandler {
	return &RunHandler{runs: runs}
}

// POST /api/runs/:run_id/stages
func (h *RunHandler) RecordStage(c *gin.Context) {
	var in services.StageEventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondServiceError(c, bindErr(err))
		return
	}
	run, err := h.runs.RecordStage(dbctx.Of(c.Request.Context()), c.Param("run_id"), in)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}

// POST /api/runs/:run_id/cancel
func (h *RunHandler) Cancel(c *gin.Context) {
	run, err := h.runs.RequestCancel(dbctx.Of(c.Request.Context()), c.Param("run_id"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}

// GET /api/runs/:run_id
func (h *RunHandler) Get(c *gin.Context) {
	run, err := h.runs.Get(dbctx.Of(c.Request.Context()), c.Param("run_id"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}

func bindErr(err error) error {
	if errors.Is(err, io.EOF) {
		return &services.ValidationError{Field: "body", Reason: "required"}
	}
	return &services.ValidationError{Field: "body", Reason: err.Error()}
}
