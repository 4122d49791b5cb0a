// Package checkin moves attendance records through their lifecycle: a user
// joins an event (pending), then either taps a card or is checked in manually
// (present), or declines with a reason (absent).
package checkin

import (
	"context"
	"log"
	"strings"
	"time"

	"eventattendance/backend/internal/entity"
	"eventattendance/backend/internal/repository/postgres"
	"eventattendance/backend/internal/service/timegate"

	"github.com/pkg/errors"
)

type Attendance interface {
	CreatePending(ctx context.Context, userID, eventID int, at time.Time) (entity.Attendance, error)
	Transition(ctx context.Context, t entity.Transition) (entity.Attendance, error)
}

type Events interface {
	GetByID(ctx context.Context, id int) (entity.Event, error)
}

type Users interface {
	GetByID(ctx context.Context, id int) (entity.User, error)
}

type Cards interface {
	ResolveByChip(ctx context.Context, chipID string) (entity.User, error)
}

type Service struct {
	log        *log.Logger
	attendance Attendance
	events     Events
	users      Users
	cards      Cards
	now        func() time.Time
}

func New(log *log.Logger, attendance Attendance, events Events, users Users, cards Cards) *Service {
	return &Service{
		log:        log,
		attendance: attendance,
		events:     events,
		users:      users,
		cards:      cards,
		now:        time.Now,
	}
}

// WithClock replaces the clock used for gating and timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Result is what a successful transition reports back to the caller.
type Result struct {
	User       entity.User       `json:"user"`
	Attendance entity.Attendance `json:"attendance"`
}

// Join opens a pending record. Records are never created implicitly, so a
// user has to join before they can check in or decline.
func (s *Service) Join(ctx context.Context, userID, eventID int) (Result, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	event, err := s.Event(ctx, eventID)
	if err != nil {
		return Result{}, err
	}

	if !event.Admits(user) {
		f := entity.NewFailure(entity.KindAudienceIneligible, "event %d is restricted to its audience", eventID)
		if event.Course != nil {
			f.With("course", *event.Course)
		}
		return Result{}, f
	}

	record, err := s.attendance.CreatePending(ctx, userID, eventID, s.now())
	if err != nil {
		return Result{}, err
	}
	s.logf("user %d joined event %d", userID, eventID)

	return Result{User: user, Attendance: record}, nil
}

// CheckInByChip resolves the chip holder and checks them in.
func (s *Service) CheckInByChip(ctx context.Context, chipID string, eventID int) (Result, error) {
	user, err := s.cards.ResolveByChip(ctx, chipID)
	if err != nil {
		return Result{}, err
	}

	record, err := s.finalize(ctx, entity.Transition{
		UserID:  user.ID,
		EventID: eventID,
		To:      entity.AttendanceStatusPresent,
	})
	if err != nil {
		return Result{}, err
	}

	return Result{User: user, Attendance: record}, nil
}

// CheckIn is the manual fallback when no card is at hand.
func (s *Service) CheckIn(ctx context.Context, userID, eventID int) (Result, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	record, err := s.finalize(ctx, entity.Transition{
		UserID:  userID,
		EventID: eventID,
		To:      entity.AttendanceStatusPresent,
	})
	if err != nil {
		return Result{}, err
	}

	return Result{User: user, Attendance: record}, nil
}

type DeclineRequest struct {
	UserID        int
	EventID       int
	Reason        string
	EvidenceImage *string
}

// Decline records an absence. The reason is mandatory.
func (s *Service) Decline(ctx context.Context, req DeclineRequest) (Result, error) {
	if err := ValidateReason(req.Reason); err != nil {
		return Result{}, err
	}

	user, err := s.user(ctx, req.UserID)
	if err != nil {
		return Result{}, err
	}

	record, err := s.finalize(ctx, entity.Transition{
		UserID:        req.UserID,
		EventID:       req.EventID,
		To:            entity.AttendanceStatusAbsent,
		Reason:        req.Reason,
		EvidenceImage: req.EvidenceImage,
	})
	if err != nil {
		return Result{}, err
	}

	return Result{User: user, Attendance: record}, nil
}

// ValidateReason fails the same way a decline with that reason would.
func ValidateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return entity.NewFailure(entity.KindValidation, "a reason is required to decline").
			With("reason", "required")
	}
	return nil
}

// Gate returns nil when the event currently accepts check-ins and declines.
func (s *Service) Gate(ctx context.Context, eventID int) error {
	event, err := s.Event(ctx, eventID)
	if err != nil {
		return err
	}
	return timegate.Of(event).Check(s.now())
}

func (s *Service) finalize(ctx context.Context, t entity.Transition) (entity.Attendance, error) {
	event, err := s.Event(ctx, t.EventID)
	if err != nil {
		return entity.Attendance{}, err
	}

	now := s.now()
	if err := timegate.Of(event).Check(now); err != nil {
		return entity.Attendance{}, err
	}

	t.At = now
	record, err := s.attendance.Transition(ctx, t)
	if err != nil {
		return entity.Attendance{}, err
	}
	s.logf("user %d is %s for event %d", t.UserID, record.Status, t.EventID)

	return record, nil
}

func (s *Service) user(ctx context.Context, id int) (entity.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, postgres.ErrNotFound) {
		return entity.User{}, entity.NewFailure(entity.KindUserNotFound, "user %d not found", id)
	}
	if err != nil {
		return entity.User{}, err
	}
	return user, nil
}

// Event returns an event, mapping a missing row to EventNotFound.
func (s *Service) Event(ctx context.Context, id int) (entity.Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if errors.Is(err, postgres.ErrNotFound) {
		return entity.Event{}, entity.NewFailure(entity.KindEventNotFound, "event %d not found", id)
	}
	if err != nil {
		return entity.Event{}, err
	}
	return event, nil
}

func (s *Service) logf(format string, args ...interface{}) {
	if s.log != nil {
		s.log.Printf("checkin: "+format, args...)
	}
}
