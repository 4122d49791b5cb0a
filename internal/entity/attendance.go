package entity

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// AttendanceStatus is closed: pending, present or absent. Only pending
// records can change.
type AttendanceStatus string

const (
	AttendanceStatusPending AttendanceStatus = "pending"
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPending, AttendanceStatusPresent, AttendanceStatusAbsent:
		return true
	}
	return false
}

func (s AttendanceStatus) Terminal() bool {
	return s == AttendanceStatusPresent || s == AttendanceStatusAbsent
}

type Attendance struct {
	bun.BaseModel `bun:"table:attendance"`

	UserID        int              `json:"user_id"                  bun:"user_id,pk"`
	EventID       int              `json:"event_id"                 bun:"event_id,pk"`
	Status        AttendanceStatus `json:"status"                   bun:"status"`
	Reason        *string          `json:"reason,omitempty"         bun:"reason"`
	EvidenceImage *string          `json:"evidence_image,omitempty" bun:"evidence_image"`
	CheckedInAt   *time.Time       `json:"checked_in_at,omitempty"  bun:"checked_in_at"`
	DeclinedAt    *time.Time       `json:"declined_at,omitempty"    bun:"declined_at"`
	CreatedAt     time.Time        `json:"created_at"               bun:"created_at"`
	CreatedBy     *int             `json:"-"                        bun:"created_by"`
	UpdatedAt     *time.Time       `json:"-"                        bun:"updated_at"`
}

// Transition moves a pending record to a final status.
type Transition struct {
	UserID        int
	EventID       int
	To            AttendanceStatus
	At            time.Time
	Reason        string
	EvidenceImage *string
}

// Apply mutates record according to t. It refuses anything but
// pending -> present and pending -> absent and leaves record untouched on
// failure.
func (t Transition) Apply(record *Attendance) error {
	if record.Status != AttendanceStatusPending {
		return NewFailure(KindAlreadyFinalized, "attendance is already %s", record.Status).
			With("status", record.Status)
	}

	at := t.At
	switch t.To {
	case AttendanceStatusPresent:
		record.CheckedInAt = &at
	case AttendanceStatusAbsent:
		reason := strings.TrimSpace(t.Reason)
		if reason == "" {
			return NewFailure(KindValidation, "a reason is required to decline").
				With("reason", "required")
		}
		record.Reason = &reason
		record.EvidenceImage = t.EvidenceImage
		record.DeclinedAt = &at
	default:
		return NewFailure(KindValidation, "cannot move attendance to %q", t.To)
	}

	record.Status = t.To
	record.UpdatedAt = &at

	return nil
}
