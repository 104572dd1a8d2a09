package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos"
	types "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/domain/uploads"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/observability"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/ctxutil"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

const (
	MinUploadFiles = 1
	MaxUploadFiles = 5

	DefaultTokenTTL = 7 * 24 * time.Hour
	tokenBytes      = 32
)

// BlobStore is where accepted upload bytes live.
type BlobStore interface {
	UploadFile(ctx context.Context, key string, body io.Reader, contentType string) error
	DeleteFile(ctx context.Context, key string) error
	GetPublicURL(key string) string
}

// UploadNotifier forwards accepted uploads to downstream processing.
type UploadNotifier interface {
	MissingRoomUploaded(ctx context.Context, ev uploads.UploadedEvent) error
}

type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type AcceptResult struct {
	RequestID     uuid.UUID `json:"request_id"`
	UploadedCount int       `json:"uploaded_count"`
	URLs          []string  `json:"urls"`
}

type OpenRequestInput struct {
	PropertyID string `json:"property_id"`
	RoomKey    string `json:"room_key"`
	RoomLabel  string `json:"room_label"`
	Kind       string `json:"kind"`
}

type IssuedToken struct {
	RequestID uuid.UUID `json:"request_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type UploadTokenConfig struct {
	TokenTTL       time.Duration
	NotifyTimeout  time.Duration
	MaxUploadBytes int64
}

type UploadTokenService interface {
	OpenRequest(dbc dbctx.Context, in OpenRequestInput) (*types.MissingRoomRequest, *IssuedToken, error)
	Issue(dbc dbctx.Context, requestID uuid.UUID, ttl time.Duration, reopen bool) (*IssuedToken, error)
	MarkEmailed(dbc dbctx.Context, requestID uuid.UUID) (*types.MissingRoomRequest, error)
	Advance(dbc dbctx.Context, requestID uuid.UUID, to uploads.RequestStatus) (*types.MissingRoomRequest, error)
	Get(dbc dbctx.Context, requestID uuid.UUID) (*types.MissingRoomRequest, error)
	Validate(dbc dbctx.Context, token string) (*types.MissingRoomRequest, error)
	Accept(dbc dbctx.Context, token string, files []UploadFile) (*AcceptResult, error)
}

type uploadTokenService struct {
	log      *logger.Logger
	repo     repos.MissingRoomRequestRepo
	blobs    BlobStore
	notifier UploadNotifier
	cfg      UploadTokenConfig
	now      func() time.Time
}

func NewUploadTokenService(
	baseLog *logger.Logger,
	repo repos.MissingRoomRequestRepo,
	blobs BlobStore,
	notifier UploadNotifier,
	cfg UploadTokenConfig,
) UploadTokenService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	return &uploadTokenService{
		log:      baseLog.With("service", "UploadTokenService"),
		repo:     repo,
		blobs:    blobs,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *uploadTokenService) OpenRequest(dbc dbctx.Context, in OpenRequestInput) (*types.MissingRoomRequest, *IssuedToken, error) {
	propertyID := strings.TrimSpace(in.PropertyID)
	roomKey := strings.TrimSpace(in.RoomKey)
	kind := strings.ToLower(strings.TrimSpace(in.Kind))
	if propertyID == "" {
		return nil, nil, invalid("property_id", "required")
	}
	if roomKey == "" {
		return nil, nil, invalid("room_key", "required")
	}
	if kind == "" {
		kind = uploads.KindRoom
	}
	if !uploads.IsKind(kind) {
		return nil, nil, invalid("kind", "must be one of room, epc, roof")
	}
	label := strings.TrimSpace(in.RoomLabel)
	if label == "" {
		label = roomKey
	}
	req := &types.MissingRoomRequest{
		PropertyID: propertyID,
		RoomKey:    roomKey,
		RoomLabel:  label,
		Kind:       kind,
		Status:     uploads.StatusPending,
	}
	if _, err := s.repo.Create(dbc, req); err != nil {
		return nil, nil, storageErr("OpenRequest", err)
	}
	issued, err := s.Issue(dbc, req.ID, 0, false)
	if err != nil {
		return nil, nil, err
	}
	req.Token = &issued.Token
	req.TokenExpiresAt = &issued.ExpiresAt
	return req, issued, nil
}

// Issue mints a fresh token. Closed requests are refused unless reopen is
// set, in which case the request goes back to pending.
func (s *uploadTokenService) Issue(dbc dbctx.Context, requestID uuid.UUID, ttl time.Duration, reopen bool) (*IssuedToken, error) {
	if ttl <= 0 {
		ttl = s.cfg.TokenTTL
	}
	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("mint token: %w", err)
	}
	expiresAt := s.now().Add(ttl)

	disallowed := []string{string(uploads.StatusClosed)}
	var resetTo uploads.RequestStatus
	if reopen {
		disallowed = nil
		resetTo = uploads.StatusPending
	}
	ok, err := s.repo.SetToken(dbc, requestID, token, expiresAt, disallowed, resetTo)
	if err != nil {
		return nil, storageErr("IssueToken", err)
	}
	if !ok {
		if _, gErr := s.Get(dbc, requestID); gErr != nil {
			return nil, gErr
		}
		return nil, ErrTokenExpiredOrClosed
	}
	observability.Current().IncTokenIssued()
	s.log.Info("upload token issued", "request_id", requestID, "expires_at", expiresAt, "reopen", reopen)
	return &IssuedToken{RequestID: requestID, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *uploadTokenService) MarkEmailed(dbc dbctx.Context, requestID uuid.UUID) (*types.MissingRoomRequest, error) {
	return s.transition(dbc, requestID, []string{string(uploads.StatusPending)}, uploads.StatusEmailed)
}

// Advance moves the request forward to `to` from any earlier status.
func (s *uploadTokenService) Advance(dbc dbctx.Context, requestID uuid.UUID, to uploads.RequestStatus) (*types.MissingRoomRequest, error) {
	if to.Rank() <= 0 {
		return nil, invalid("status", fmt.Sprintf("cannot advance to %q", to))
	}
	return s.transition(dbc, requestID, uploads.StatusesBefore(to), to)
}

func (s *uploadTokenService) transition(dbc dbctx.Context, requestID uuid.UUID, from []string, to uploads.RequestStatus) (*types.MissingRoomRequest, error) {
	ok, err := s.repo.TransitionIfStatusIn(dbc, requestID, from, to)
	if err != nil {
		return nil, storageErr("TransitionRequest", err)
	}
	req, err := s.Get(dbc, requestID)
	if err != nil {
		return nil, err
	}
	if !ok && req.Status != to {
		return nil, fmt.Errorf("%w: request is %s, cannot move to %s", ErrConflict, req.Status, to)
	}
	if ok {
		s.log.Info("missing room request advanced", "request_id", requestID, "status", to)
	}
	return req, nil
}

func (s *uploadTokenService) Get(dbc dbctx.Context, requestID uuid.UUID) (*types.MissingRoomRequest, error) {
	req, err := s.repo.GetByID(dbc, requestID)
	if err != nil {
		return nil, &QueryFailedError{Op: "GetMissingRoomRequest", Err: err}
	}
	if req == nil {
		return nil, ErrNotFound
	}
	return req, nil
}

// Validate succeeds only while now < token_expires_at and the status still
// accepts uploads. A request without an expiry is never valid.
func (s *uploadTokenService) Validate(dbc dbctx.Context, token string) (*types.MissingRoomRequest, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenNotFound
	}
	req, err := s.repo.GetByToken(dbc, token)
	if err != nil {
		return nil, &QueryFailedError{Op: "ValidateToken", Err: err}
	}
	if req == nil {
		return nil, ErrTokenNotFound
	}
	if req.TokenExpiresAt == nil || !s.now().Before(*req.TokenExpiresAt) || !req.Status.AcceptsUploads() {
		return nil, ErrTokenExpiredOrClosed
	}
	return req, nil
}

func (s *uploadTokenService) Accept(dbc dbctx.Context, token string, files []UploadFile) (*AcceptResult, error) {
	ctx, span := observability.StartSpan(dbc.Ctx, "uploads.accept", attribute.Int("files", len(files)))
	res, err := s.accept(withCtx(dbc, ctx), token, files)
	observability.EndSpan(span, err)

	outcome := "accepted"
	if err != nil {
		outcome = ErrorCode(err)
	}
	count := 0
	if res != nil {
		count = res.UploadedCount
	}
	observability.Current().IncUploadAccept(outcome, count)
	return res, err
}

func (s *uploadTokenService) accept(dbc dbctx.Context, token string, files []UploadFile) (*AcceptResult, error) {
	if len(files) < MinUploadFiles || len(files) > MaxUploadFiles {
		return nil, invalid("files", fmt.Sprintf("expected %d to %d files, got %d", MinUploadFiles, MaxUploadFiles, len(files)))
	}
	for i, f := range files {
		if f.Body == nil {
			return nil, invalid("files", fmt.Sprintf("file %d is empty", i))
		}
		if !allowedContentType(f.ContentType) {
			return nil, invalid("files", fmt.Sprintf("file %d has unsupported type %q", i, f.ContentType))
		}
		if s.cfg.MaxUploadBytes > 0 && f.Size > s.cfg.MaxUploadBytes {
			return nil, invalid("files", fmt.Sprintf("file %d exceeds %d bytes", i, s.cfg.MaxUploadBytes))
		}
	}
	if s.blobs == nil {
		return nil, &StorageError{Op: "AcceptUpload", Err: fmt.Errorf("blob store not configured")}
	}

	req, err := s.Validate(dbc, token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	keys := make([]string, 0, len(files))
	urls := make([]string, 0, len(files))
	for i, f := range files {
		key := UploadObjectKey(req.PropertyID, req.RoomKey, now, i, f.Filename, f.ContentType)
		if err := s.blobs.UploadFile(dbc.Ctx, key, f.Body, f.ContentType); err != nil {
			s.log.Error("upload blob failed", "request_id", req.ID, "key", key, "error", err)
			s.cleanup(dbc.Ctx, keys)
			return nil, &StorageError{Op: "AcceptUpload", Err: err}
		}
		keys = append(keys, key)
		urls = append(urls, s.blobs.GetPublicURL(key))
	}

	images, err := mergeImages(req.Images, urls)
	if err != nil {
		s.log.Error("stored images unreadable", "request_id", req.ID, "error", err)
		s.cleanup(dbc.Ctx, keys)
		return nil, &StorageError{Op: "AcceptUpload", Err: err}
	}
	ok, err := s.repo.AcceptUpload(dbc, token, req.Revision, uploads.UploadableStatuses(), now, images)
	if err != nil {
		s.cleanup(dbc.Ctx, keys)
		return nil, storageErr("AcceptUpload", err)
	}
	if !ok {
		// lost the race, or the token expired/closed between validate and write.
		s.log.Warn("upload rejected by conditional update", "request_id", req.ID)
		s.cleanup(dbc.Ctx, keys)
		return nil, ErrTokenExpiredOrClosed
	}

	s.log.Info("missing room upload accepted", "request_id", req.ID, "property_id", req.PropertyID, "files", len(urls))
	s.dispatch(dbc.Ctx, uploads.UploadedEvent{
		RequestID:  req.ID.String(),
		PropertyID: req.PropertyID,
		RoomKey:    req.RoomKey,
		Kind:       req.Kind,
		Images:     urls,
		UploadedAt: now,
	})
	return &AcceptResult{RequestID: req.ID, UploadedCount: len(urls), URLs: urls}, nil
}

// dispatch is fire-and-forget; the upload has already been committed.
func (s *uploadTokenService) dispatch(parent context.Context, ev uploads.UploadedEvent) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctxutil.Detached(parent), s.cfg.NotifyTimeout)
	go func() {
		defer cancel()
		if err := s.notifier.MissingRoomUploaded(ctx, ev); err != nil {
			s.log.Warn("upload notification failed", "request_id", ev.RequestID, "error", &NotificationError{Sink: "upload", Err: err})
		}
	}()
}

func (s *uploadTokenService) cleanup(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctxutil.Detached(ctx), 30*time.Second)
	defer cancel()
	for _, k := range keys {
		if err := s.blobs.DeleteFile(ctx, k); err != nil {
			s.log.Warn("orphaned upload blob", "key", k, "error", err)
		}
	}
}

// UploadObjectKey lays blobs out as
// missing-rooms/<property_id>/<room_key>/<unix-nanos>-<i>.<ext>.
func UploadObjectKey(propertyID, roomKey string, at time.Time, i int, filename, contentType string) string {
	return path.Join(
		"missing-rooms",
		safeSegment(propertyID),
		safeSegment(roomKey),
		fmt.Sprintf("%d-%d.%s", at.UnixNano(), i, fileExt(filename, contentType)),
	)
}

func safeSegment(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func fileExt(filename, contentType string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext != "" && len(ext) <= 5 && isAlnum(ext) {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func allowedContentType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "image/") || mt == "application/pdf"
}

func mergeImages(existing datatypes.JSON, added []string) (datatypes.JSON, error) {
	all := []string{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &all); err != nil {
			return nil, fmt.Errorf("decode stored images: %w", err)
		}
	}
	all = append(all, added...)
	b, err := json.Marshal(all)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
