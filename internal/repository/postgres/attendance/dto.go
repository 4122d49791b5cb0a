package attendance

import (
	"mime/multipart"
	"time"

	"eventattendance/backend/internal/entity"
)

type AttendeeFilter struct {
	EventID int
	Status  *entity.AttendanceStatus
}

type AttendeeResponse struct {
	UserID        int                     `json:"user_id"`
	PrintedID     *string                 `json:"printed_id"`
	Name          *string                 `json:"name"`
	Course        *string                 `json:"course,omitempty"`
	Status        entity.AttendanceStatus `json:"status"`
	CheckedInAt   *time.Time              `json:"checked_in_at"`
	DeclinedAt    *time.Time              `json:"declined_at,omitempty"`
	Reason        *string                 `json:"reason,omitempty"`
	EvidenceImage *string                 `json:"evidence_image,omitempty"`
}

type JoinRequest struct {
	UserID  int `json:"user_id" form:"user_id"`
	EventID int `json:"event_id" form:"event_id"`
}

type CheckInRequest struct {
	UserID  int `json:"user_id" form:"user_id"`
	EventID int `json:"event_id" form:"event_id"`
}

type CheckInByCardRequest struct {
	ChipID  string `json:"rfid_card_id" form:"rfid_card_id"`
	EventID int    `json:"event_id" form:"event_id"`
}

type DeclineRequest struct {
	UserID        int                   `json:"user_id" form:"user_id"`
	EventID       int                   `json:"event_id" form:"event_id"`
	Reason        string                `json:"reason" form:"reason"`
	EvidenceImage *multipart.FileHeader `json:"-" form:"evidence_image"`
}
