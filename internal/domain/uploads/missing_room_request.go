package uploads

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusEmailed    RequestStatus = "emailed"
	StatusUploaded   RequestStatus = "uploaded"
	StatusProcessing RequestStatus = "processing"
	StatusClosed     RequestStatus = "closed"
)

const (
	KindRoom = "room"
	KindEPC  = "epc"
	KindRoof = "roof"
)

var statusRank = map[RequestStatus]int{
	StatusPending:    0,
	StatusEmailed:    1,
	StatusUploaded:   2,
	StatusProcessing: 3,
	StatusClosed:     4,
}

// Rank orders statuses along the lifecycle; unknown statuses rank -1.
func (s RequestStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// AcceptsUploads reports whether a token in this status may still be used.
func (s RequestStatus) AcceptsUploads() bool {
	r := s.Rank()
	return r >= 0 && r < statusRank[StatusClosed]
}

// UploadableStatuses is the set a token must be in to be honoured.
func UploadableStatuses() []string {
	return []string{string(StatusPending), string(StatusEmailed), string(StatusUploaded), string(StatusProcessing)}
}

// StatusesBefore lists every status strictly earlier than s.
func StatusesBefore(s RequestStatus) []string {
	out := []string{}
	for _, st := range []RequestStatus{StatusPending, StatusEmailed, StatusUploaded, StatusProcessing, StatusClosed} {
		if st.Rank() < s.Rank() {
			out = append(out, string(st))
		}
	}
	return out
}

func IsKind(s string) bool {
	return s == KindRoom || s == KindEPC || s == KindRoof
}

// MissingRoomRequest is opened when an analysis is missing photos for a room
// (or EPC / roof evidence). Status only moves forward.
type MissingRoomRequest struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PropertyID     string         `gorm:"column:property_id;not null;index" json:"property_id"`
	RoomKey        string         `gorm:"column:room_key;not null" json:"room_key"`
	RoomLabel      string         `gorm:"column:room_label" json:"room_label,omitempty"`
	Kind           string         `gorm:"column:kind;not null;default:room" json:"kind"`
	Token          *string        `gorm:"column:token;uniqueIndex" json:"-"`
	TokenExpiresAt *time.Time     `gorm:"column:token_expires_at" json:"token_expires_at,omitempty"`
	Status         RequestStatus  `gorm:"column:status;not null;index" json:"status"`
	Images         datatypes.JSON `gorm:"column:images" json:"images,omitempty"`

	// Revision is bumped by every accepted upload and guards the conditional write.
	Revision  int       `gorm:"column:revision;not null;default:0" json:"revision"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (MissingRoomRequest) TableName() string { return "missing_room_request" }

func (r *MissingRoomRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if r.Kind == "" {
		r.Kind = KindRoom
	}
	return nil
}
