package app

import (
	"gorm.io/gorm"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

type Repos struct {
	IngestJob          repos.IngestJobRepo
	Run                repos.RunRepo
	StageRun           repos.StageRunRepo
	Property           repos.PropertyRepo
	FeedbackEvent      repos.FeedbackEventRepo
	MissingRoomRequest repos.MissingRoomRequestRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		IngestJob:          repos.NewIngestJobRepo(db, log),
		Run:                repos.NewRunRepo(db, log),
		StageRun:           repos.NewStageRunRepo(db, log),
		Property:           repos.NewPropertyRepo(db, log),
		FeedbackEvent:      repos.NewFeedbackEventRepo(db, log),
		MissingRoomRequest: repos.NewMissingRoomRequestRepo(db, log),
	}
}
