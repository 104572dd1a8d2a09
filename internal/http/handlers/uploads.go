package handlers

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/http/response"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/apierr"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/services"
)

type UploadHandler struct {
	log          *logger.Logger
	uploads      services.UploadTokenService
	maxBodyBytes int64
}

// NewUploadHandler caps the whole multipart body at maxBodyBytes (0 = no cap).
func NewUploadHandler(log *logger.Logger, uploads services.UploadTokenService, maxBodyBytes int64) *UploadHandler {
	return &UploadHandler{log: log.With("handler", "UploadHandler"), uploads: uploads, maxBodyBytes: maxBodyBytes}
}

type uploadRequestView struct {
	PropertyID string `json:"property_id"`
	RoomKey    string `json:"room_key"`
	RoomLabel  string `json:"room_label,omitempty"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	ExpiresAt  string `json:"token_expires_at,omitempty"`
}

// GET /api/uploads/missing-room?token=
func (h *UploadHandler) Validate(c *gin.Context) {
	req, err := h.uploads.Validate(dbctx.Of(c.Request.Context()), c.Query("token"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	view := uploadRequestView{
		PropertyID: req.PropertyID,
		RoomKey:    req.RoomKey,
		RoomLabel:  req.RoomLabel,
		Kind:       req.Kind,
		Status:     string(req.Status),
	}
	if req.TokenExpiresAt != nil {
		view.ExpiresAt = req.TokenExpiresAt.UTC().Format(time.RFC3339)
	}
	response.RespondOK(c, gin.H{"ok": true, "request": view})
}

// POST /api/uploads/missing-room (multipart: token, files[])
func (h *UploadHandler) Accept(c *gin.Context) {
	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			response.RespondServiceError(c, apierr.PayloadTooLarge(tooBig.Limit))
			return
		}
		response.RespondServiceError(c, &services.ValidationError{Field: "body", Reason: "expected multipart/form-data"})
		return
	}
	defer func() { _ = form.RemoveAll() }()

	token := firstValue(form, "token")
	if token == "" {
		token = c.Query("token")
	}
	headers := append(form.File["files"], form.File["files[]"]...)

	files := make([]services.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll(files)
			response.RespondServiceError(c, &services.ValidationError{Field: "files", Reason: "unreadable file " + fh.Filename})
			return
		}
		files = append(files, services.UploadFile{
			Filename:    fh.Filename,
			ContentType: contentTypeOf(fh),
			Size:        fh.Size,
			Body:        f,
		})
	}
	defer closeAll(files)

	res, err := h.uploads.Accept(dbctx.Of(c.Request.Context()), token, files)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true, "uploaded_count": res.UploadedCount, "urls": res.URLs})
}

func firstValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

func contentTypeOf(fh *multipart.FileHeader) string {
	if ct := strings.TrimSpace(fh.Header.Get("Content-Type")); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename)))
}

func closeAll(files []services.UploadFile) {
	for _, f := range files {
		if c, ok := f.Body.(multipart.File); ok {
			_ = c.Close()
		}
	}
}
