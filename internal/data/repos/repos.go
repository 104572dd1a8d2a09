package repos

import (
	"gorm.io/gorm"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos/dberr"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos/feedback"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos/pipeline"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos/uploads"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

var (
	ErrDuplicate = dberr.ErrDuplicate
	ErrNotFound  = dberr.ErrNotFound
)

type ListQuery = pipeline.ListQuery

type IngestJobRepo = pipeline.IngestJobRepo
type RunRepo = pipeline.RunRepo
type StageRunRepo = pipeline.StageRunRepo
type PropertyRepo = pipeline.PropertyRepo

type FeedbackEventRepo = feedback.EventRepo

type MissingRoomRequestRepo = uploads.MissingRoomRequestRepo

func NewIngestJobRepo(db *gorm.DB, baseLog *logger.Logger) IngestJobRepo {
	return pipeline.NewIngestJobRepo(db, baseLog)
}
func NewRunRepo(db *gorm.DB, baseLog *logger.Logger) RunRepo {
	return pipeline.NewRunRepo(db, baseLog)
}
func NewStageRunRepo(db *gorm.DB, baseLog *logger.Logger) StageRunRepo {
	return pipeline.NewStageRunRepo(db, baseLog)
}
func NewPropertyRepo(db *gorm.DB, baseLog *logger.Logger) PropertyRepo {
	return pipeline.NewPropertyRepo(db, baseLog)
}

func NewFeedbackEventRepo(db *gorm.DB, baseLog *logger.Logger) FeedbackEventRepo {
	return feedback.NewEventRepo(db, baseLog)
}

func NewMissingRoomRequestRepo(db *gorm.DB, baseLog *logger.Logger) MissingRoomRequestRepo {
	return uploads.NewMissingRoomRequestRepo(db, baseLog)
}
