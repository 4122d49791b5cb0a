package attendance

import (
	"context"

	"eventattendance/backend/internal/entity"
	"eventattendance/backend/internal/repository/postgres/attendance"
	"eventattendance/backend/internal/service/checkin"
)

type Checkin interface {
	Join(ctx context.Context, userID, eventID int) (checkin.Result, error)
	CheckIn(ctx context.Context, userID, eventID int) (checkin.Result, error)
	CheckInByChip(ctx context.Context, chipID string, eventID int) (checkin.Result, error)
	Decline(ctx context.Context, req checkin.DeclineRequest) (checkin.Result, error)
	Gate(ctx context.Context, eventID int) error
	Event(ctx context.Context, id int) (entity.Event, error)
}

type Attendance interface {
	Version(ctx context.Context, eventID int) (int64, error)
	Snapshot(ctx context.Context, filter attendance.AttendeeFilter) (int64, []attendance.AttendeeResponse, error)
	ListAttendees(ctx context.Context, filter attendance.AttendeeFilter) ([]attendance.AttendeeResponse, error)
}

type Cache interface {
	Get(ctx context.Context, eventID int, version int64, status string) ([]attendance.AttendeeResponse, bool, error)
	Put(ctx context.Context, eventID int, version int64, status string, list []attendance.AttendeeResponse) error
}
