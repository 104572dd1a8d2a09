package domain

import (
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/domain/feedback"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/domain/pipeline"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/domain/uploads"
)

type IngestJob = pipeline.IngestJob
type Run = pipeline.Run
type StageRun = pipeline.StageRun
type Property = pipeline.Property

type FeedbackEvent = feedback.Event

type MissingRoomRequest = uploads.MissingRoomRequest
type MissingRoomStatus = uploads.RequestStatus

// Models lists every table owned by this service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&pipeline.IngestJob{},
		&pipeline.Run{},
		&pipeline.StageRun{},
		&pipeline.Property{},
		&feedback.Event{},
		&uploads.MissingRoomRequest{},
	}
}
