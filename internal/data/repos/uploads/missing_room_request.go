package uploads

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos/dberr"
	types "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain"
	domainuploads "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain/uploads"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

type MissingRoomRequestRepo interface {
	Create(dbc dbctx.Context, req *types.MissingRoomRequest) (*types.MissingRoomRequest, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MissingRoomRequest, error)
	GetByToken(dbc dbctx.Context, token string) (*types.MissingRoomRequest, error)
	// SetToken replaces the token unless the request is in a disallowed status.
	// A non-empty resetTo also rewrites the status (operator reopen).
	SetToken(dbc dbctx.Context, id uuid.UUID, token string, expiresAt time.Time, disallowedStatuses []string, resetTo types.MissingRoomStatus) (bool, error)
	// AcceptUpload is the single conditional write behind an upload. It only
	// succeeds while the token is unexpired, the status is in allowed and the
	// row is still at revision. A request already in processing keeps that status.
	AcceptUpload(dbc dbctx.Context, token string, revision int, allowed []string, now time.Time, images datatypes.JSON) (bool, error)
	// TransitionIfStatusIn moves id to `to` only from one of `from`.
	TransitionIfStatusIn(dbc dbctx.Context, id uuid.UUID, from []string, to types.MissingRoomStatus) (bool, error)
}

type missingRoomRequestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMissingRoomRequestRepo(db *gorm.DB, baseLog *logger.Logger) MissingRoomRequestRepo {
	return &missingRoomRequestRepo{
		db:  db,
		log: baseLog.With("repo", "MissingRoomRequestRepo"),
	}
}

func (r *missingRoomRequestRepo) Create(dbc dbctx.Context, req *types.MissingRoomRequest) (*types.MissingRoomRequest, error) {
	if req == nil {
		return nil, nil
	}
	if err := dbc.DB(r.db).Create(req).Error; err != nil {
		return nil, dberr.Classify(err)
	}
	return req, nil
}

func (r *missingRoomRequestRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MissingRoomRequest, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc, "id = ?", id)
}

func (r *missingRoomRequestRepo) GetByToken(dbc dbctx.Context, token string) (*types.MissingRoomRequest, error) {
	if token == "" {
		return nil, nil
	}
	return r.first(dbc, "token = ?", token)
}

func (r *missingRoomRequestRepo) first(dbc dbctx.Context, where string, arg interface{}) (*types.MissingRoomRequest, error) {
	var out []*types.MissingRoomRequest
	if err := dbc.DB(r.db).Where(where, arg).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *missingRoomRequestRepo) SetToken(dbc dbctx.Context, id uuid.UUID, token string, expiresAt time.Time, disallowedStatuses []string, resetTo types.MissingRoomStatus) (bool, error) {
	q := dbc.DB(r.db).Model(&types.MissingRoomRequest{}).Where("id = ?", id)
	if len(disallowedStatuses) > 0 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}
	updates := map[string]interface{}{
		"token":            token,
		"token_expires_at": expiresAt,
		"updated_at":       time.Now().UTC(),
	}
	if resetTo != "" {
		updates["status"] = string(resetTo)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, dberr.Classify(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *missingRoomRequestRepo) AcceptUpload(dbc dbctx.Context, token string, revision int, allowed []string, now time.Time, images datatypes.JSON) (bool, error) {
	if token == "" || len(allowed) == 0 {
		return false, nil
	}
	res := dbc.DB(r.db).Model(&types.MissingRoomRequest{}).
		Where("token = ?", token).
		Where("status IN ?", allowed).
		Where("revision = ?", revision).
		Where("token_expires_at IS NOT NULL AND token_expires_at > ?", now).
		Updates(map[string]interface{}{
			"status": gorm.Expr("CASE WHEN status = ? THEN status ELSE ? END",
				string(domainuploads.StatusProcessing), string(domainuploads.StatusUploaded)),
			"images":     images,
			"revision":   gorm.Expr("revision + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *missingRoomRequestRepo) TransitionIfStatusIn(dbc dbctx.Context, id uuid.UUID, from []string, to types.MissingRoomStatus) (bool, error) {
	if id == uuid.Nil || len(from) == 0 {
		return false, nil
	}
	res := dbc.DB(r.db).Model(&types.MissingRoomRequest{}).
		Where("id = ?", id).
		Where("status IN ?", from).
		Updates(map[string]interface{}{
			"status":     string(to),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
