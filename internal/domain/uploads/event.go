package uploads

import "time"

// UploadedEvent is published after a missing-room upload has been accepted.
type UploadedEvent struct {
	RequestID  string    `json:"request_id"`
	PropertyID string    `json:"property_id"`
	RoomKey    string    `json:"room_key"`
	Kind       string    `json:"kind"`
	Images     []string  `json:"images"`
	UploadedAt time.Time `json:"uploaded_at"`
}
