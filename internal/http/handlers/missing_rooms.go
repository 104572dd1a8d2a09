package handlers

import (
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/domain/uploads"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/http/response"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/services"
)

// MissingRoomHandler is the operator side of the upload lifecycle.
type MissingRoomHandler struct {
	uploads services.UploadTokenService
}

func NewMissingRoomHandler(uploads services.UploadTokenService) *MissingRoomHandler {
	return &MissingRoomHandler{uploads: uploads}
}

// POST /api/missing-rooms
func (h *MissingRoomHandler) Create(c *gin.Context) {
	var in services.OpenRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondServiceError(c, bindErr(err))
		return
	}
	req, issued, err := h.uploads.OpenRequest(dbctx.Of(c.Request.Context()), in)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"request": req, "token": issued.Token, "expires_at": issued.ExpiresAt})
}

// GET /api/missing-rooms/:id
func (h *MissingRoomHandler) Get(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	req, err := h.uploads.Get(dbctx.Of(c.Request.Context()), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"request": req})
}

type issueTokenBody struct {
	TTLHours int  `json:"ttl_hours"`
	Reopen   bool `json:"reopen"`
}

// POST /api/missing-rooms/:id/token
func (h *MissingRoomHandler) IssueToken(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	var body issueTokenBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		response.RespondServiceError(c, bindErr(err))
		return
	}
	if body.TTLHours < 0 {
		response.RespondServiceError(c, &services.ValidationError{Field: "ttl_hours", Reason: "must be positive"})
		return
	}
	issued, err := h.uploads.Issue(dbctx.Of(c.Request.Context()), id, time.Duration(body.TTLHours)*time.Hour, body.Reopen)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, issued)
}

// POST /api/missing-rooms/:id/emailed
func (h *MissingRoomHandler) MarkEmailed(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	req, err := h.uploads.MarkEmailed(dbctx.Of(c.Request.Context()), id)
	h.respond(c, req, err)
}

// POST /api/missing-rooms/:id/processing
func (h *MissingRoomHandler) MarkProcessing(c *gin.Context) {
	h.advance(c, uploads.StatusProcessing)
}

// POST /api/missing-rooms/:id/close
func (h *MissingRoomHandler) Close(c *gin.Context) {
	h.advance(c, uploads.StatusClosed)
}

func (h *MissingRoomHandler) advance(c *gin.Context, to uploads.RequestStatus) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	req, err := h.uploads.Advance(dbctx.Of(c.Request.Context()), id, to)
	h.respond(c, req, err)
}

func (h *MissingRoomHandler) respond(c *gin.Context, req interface{}, err error) {
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"request": req})
}

func requestID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondServiceError(c, &services.ValidationError{Field: "id", Reason: "must be a uuid"})
		return uuid.Nil, false
	}
	return id, true
}
