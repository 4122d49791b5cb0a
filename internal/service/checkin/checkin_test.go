package checkin

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	"eventattendance/backend/internal/entity"
	"eventattendance/backend/internal/repository/postgres"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type key struct{ user, event int }

// store mirrors the postgres repository: one mutex stands in for the row lock.
type store struct {
	mu      sync.Mutex
	records map[key]entity.Attendance
	events  map[int]entity.Event
	users   map[int]entity.User
	chips   map[string]int
}

func newStore() *store {
	return &store{
		records: map[key]entity.Attendance{},
		events:  map[int]entity.Event{},
		users:   map[int]entity.User{},
		chips:   map[string]int{},
	}
}

func (s *store) CreatePending(_ context.Context, userID, eventID int, at time.Time) (entity.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key{userID, eventID}]; ok {
		return entity.Attendance{}, entity.NewFailure(entity.KindAlreadyJoined, "already joined")
	}
	record := entity.Attendance{UserID: userID, EventID: eventID, Status: entity.AttendanceStatusPending, CreatedAt: at}
	s.records[key{userID, eventID}] = record
	return record, nil
}

func (s *store) Transition(_ context.Context, t entity.Transition) (entity.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key{t.UserID, t.EventID}]
	if !ok {
		return entity.Attendance{}, entity.NewFailure(entity.KindNotRegisteredForEvent, "not joined")
	}
	if err := t.Apply(&record); err != nil {
		return entity.Attendance{}, err
	}
	s.records[key{t.UserID, t.EventID}] = record
	return record, nil
}

func (s *store) GetByID(_ context.Context, id int) (entity.Event, error) {
	e, ok := s.events[id]
	if !ok {
		return entity.Event{}, errors.Wrap(postgres.ErrNotFound, "event")
	}
	return e, nil
}

type userStore struct{ *store }

func (u userStore) GetByID(_ context.Context, id int) (entity.User, error) {
	user, ok := u.users[id]
	if !ok {
		return entity.User{}, errors.Wrap(postgres.ErrNotFound, "user")
	}
	return user, nil
}

func (s *store) ResolveByChip(_ context.Context, chipID string) (entity.User, error) {
	id, ok := s.chips[chipID]
	if !ok {
		return entity.User{}, entity.NewFailure(entity.KindCardNotRegistered, "card is not registered")
	}
	return s.users[id], nil
}

// version counts records plus finalized records, like the repository.
func (s *store) version(eventID int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var v int64
	for k, r := range s.records {
		if k.event != eventID {
			continue
		}
		v++
		if r.Status != entity.AttendanceStatusPending {
			v++
		}
	}
	return v
}

func (s *store) record(userID, eventID int) entity.Attendance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[key{userID, eventID}]
}

func at(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2026-03-02 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func strp(s string) *string { return &s }

func tp(t time.Time) *time.Time { return &t }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func fixture(t *testing.T) (*Service, *store, *clock, *bytes.Buffer) {
	t.Helper()

	s := newStore()

	u7 := entity.User{PrintedID: strp("20111111"), FullName: strp("Ana"), Course: strp("CS")}
	u7.ID = 7
	u9 := entity.User{PrintedID: strp("20222222"), FullName: strp("Bo"), Course: strp("Math")}
	u9.ID = 9
	s.users[7], s.users[9] = u7, u9
	s.chips["AB12"] = 7

	lecture := entity.Event{Name: strp("Lecture"), StartTime: tp(at("10:00")), EndTime: tp(at("11:00"))}
	lecture.ID = 1
	seminar := entity.Event{
		Name:           strp("CS seminar"),
		StartTime:      tp(at("10:00")),
		EndTime:        tp(at("11:00")),
		TargetAudience: strp(entity.AudienceCourse),
		Course:         strp("CS"),
	}
	seminar.ID = 2
	s.events[1], s.events[2] = lecture, seminar

	c := &clock{now: at("09:00")}
	var buf bytes.Buffer
	svc := New(log.New(&buf, "", 0), s, s, userStore{s}, s).WithClock(c.Now)

	return svc, s, c, &buf
}

func TestCardTapScenario(t *testing.T) {
	ctx := context.Background()
	svc, s, c, _ := fixture(t)

	joined, err := svc.Join(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.AttendanceStatusPending, joined.Attendance.Status)

	c.Set(at("09:30"))
	_, err = svc.CheckInByChip(ctx, "AB12", 1)
	f, ok := entity.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, entity.KindEventNotOpen, f.Kind)
	assert.Equal(t, entity.GateUpcoming, f.Fields["gate"])
	assert.Contains(t, f.Message, "10:00")
	assert.Contains(t, f.Message, "11:00")
	assert.Equal(t, entity.AttendanceStatusPending, s.record(7, 1).Status)

	c.Set(at("10:15"))
	res, err := svc.CheckInByChip(ctx, "AB12", 1)
	require.NoError(t, err)
	assert.Equal(t, 7, res.User.ID)
	assert.Equal(t, entity.AttendanceStatusPresent, res.Attendance.Status)
	require.NotNil(t, res.Attendance.CheckedInAt)
	assert.Equal(t, at("10:15"), *res.Attendance.CheckedInAt)

	c.Set(at("10:20"))
	_, err = svc.CheckInByChip(ctx, "AB12", 1)
	assert.True(t, entity.IsFailure(err, entity.KindAlreadyFinalized))
	assert.Equal(t, at("10:15"), *s.record(7, 1).CheckedInAt)

	assert.Equal(t, int64(2), s.version(1))
}

func TestJoin(t *testing.T) {
	ctx := context.Background()

	t.Run("twice", func(t *testing.T) {
		svc, _, _, _ := fixture(t)

		_, err := svc.Join(ctx, 7, 1)
		require.NoError(t, err)
		_, err = svc.Join(ctx, 7, 1)
		assert.True(t, entity.IsFailure(err, entity.KindAlreadyJoined))
	})

	t.Run("audience", func(t *testing.T) {
		svc, _, _, _ := fixture(t)

		_, err := svc.Join(ctx, 7, 2)
		assert.NoError(t, err)
		_, err = svc.Join(ctx, 9, 2)
		assert.True(t, entity.IsFailure(err, entity.KindAudienceIneligible))
	})

	t.Run("unknown", func(t *testing.T) {
		svc, _, _, _ := fixture(t)

		_, err := svc.Join(ctx, 404, 1)
		assert.True(t, entity.IsFailure(err, entity.KindUserNotFound))
		_, err = svc.Join(ctx, 7, 404)
		assert.True(t, entity.IsFailure(err, entity.KindEventNotFound))
	})
}

func TestCheckIn(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a join", func(t *testing.T) {
		svc, s, c, _ := fixture(t)
		c.Set(at("10:30"))

		_, err := svc.CheckIn(ctx, 9, 1)
		assert.True(t, entity.IsFailure(err, entity.KindNotRegisteredForEvent))
		_, ok := s.records[key{9, 1}]
		assert.False(t, ok)
	})

	t.Run("unknown card", func(t *testing.T) {
		svc, _, c, _ := fixture(t)
		c.Set(at("10:30"))

		_, err := svc.CheckInByChip(ctx, "FFFF", 1)
		assert.True(t, entity.IsFailure(err, entity.KindCardNotRegistered))
	})

	t.Run("after the window", func(t *testing.T) {
		svc, s, c, _ := fixture(t)
		_, err := svc.Join(ctx, 9, 1)
		require.NoError(t, err)

		before := s.record(9, 1)
		c.Set(at("11:01"))
		_, err = svc.CheckIn(ctx, 9, 1)
		f, ok := entity.AsFailure(err)
		require.True(t, ok)
		assert.Equal(t, entity.GateEnded, f.Fields["gate"])
		assert.Equal(t, before, s.record(9, 1))
	})

	t.Run("boundaries are open", func(t *testing.T) {
		svc, _, c, _ := fixture(t)
		for _, id := range []int{7, 9} {
			_, err := svc.Join(ctx, id, 1)
			require.NoError(t, err)
		}

		c.Set(at("10:00"))
		_, err := svc.CheckIn(ctx, 7, 1)
		assert.NoError(t, err)

		c.Set(at("11:00"))
		_, err = svc.CheckIn(ctx, 9, 1)
		assert.NoError(t, err)
	})

	t.Run("every commit moves the version", func(t *testing.T) {
		svc, s, c, logs := fixture(t)
		_, err := svc.Join(ctx, 7, 1)
		require.NoError(t, err)
		seen := s.version(1)

		c.Set(at("10:30"))
		res, err := svc.CheckIn(ctx, 7, 1)
		require.NoError(t, err)
		assert.Equal(t, entity.AttendanceStatusPresent, res.Attendance.Status)
		assert.Greater(t, s.version(1), seen)

		seen = s.version(1)
		_, err = svc.CheckIn(ctx, 7, 1)
		assert.True(t, entity.IsFailure(err, entity.KindAlreadyFinalized))
		assert.Equal(t, seen, s.version(1))

		assert.Contains(t, logs.String(), "checkin: user 7 is present for event 1")
	})
}

func TestConcurrentCheckIn(t *testing.T) {
	ctx := context.Background()
	svc, s, c, _ := fixture(t)

	_, err := svc.Join(ctx, 7, 1)
	require.NoError(t, err)
	c.Set(at("10:15"))

	const callers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		finalized int
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			var err error
			if i%2 == 0 {
				_, err = svc.CheckInByChip(ctx, "AB12", 1)
			} else {
				_, err = svc.CheckIn(ctx, 7, 1)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case entity.IsFailure(err, entity.KindAlreadyFinalized):
				finalized++
			default:
				t.Errorf("caller %d: unexpected error %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, finalized)
	assert.Equal(t, entity.AttendanceStatusPresent, s.record(7, 1).Status)
}

func TestDecline(t *testing.T) {
	ctx := context.Background()

	t.Run("empty reason", func(t *testing.T) {
		svc, s, c, _ := fixture(t)
		_, err := svc.Join(ctx, 7, 1)
		require.NoError(t, err)
		before := s.record(7, 1)

		c.Set(at("10:30"))
		_, err = svc.Decline(ctx, DeclineRequest{UserID: 7, EventID: 1, Reason: "  \n"})
		assert.True(t, entity.IsFailure(err, entity.KindValidation))
		assert.Equal(t, before, s.record(7, 1))
	})

	t.Run("records reason and evidence", func(t *testing.T) {
		svc, _, c, _ := fixture(t)
		_, err := svc.Join(ctx, 7, 1)
		require.NoError(t, err)

		c.Set(at("10:30"))
		res, err := svc.Decline(ctx, DeclineRequest{
			UserID:        7,
			EventID:       1,
			Reason:        " sick ",
			EvidenceImage: strp("evidence/1/7.jpg"),
		})
		require.NoError(t, err)
		assert.Equal(t, entity.AttendanceStatusAbsent, res.Attendance.Status)
		assert.Equal(t, "sick", *res.Attendance.Reason)
		assert.Equal(t, "evidence/1/7.jpg", *res.Attendance.EvidenceImage)
		assert.Equal(t, at("10:30"), *res.Attendance.DeclinedAt)
		assert.Nil(t, res.Attendance.CheckedInAt)

		_, err = svc.CheckIn(ctx, 7, 1)
		assert.True(t, entity.IsFailure(err, entity.KindAlreadyFinalized))
	})

	t.Run("gated", func(t *testing.T) {
		svc, _, _, _ := fixture(t)
		_, err := svc.Join(ctx, 7, 1)
		require.NoError(t, err)

		_, err = svc.Decline(ctx, DeclineRequest{UserID: 7, EventID: 1, Reason: "sick"})
		assert.True(t, entity.IsFailure(err, entity.KindEventNotOpen))
	})
}

func TestGate(t *testing.T) {
	ctx := context.Background()
	svc, _, c, _ := fixture(t)

	assert.True(t, entity.IsFailure(svc.Gate(ctx, 1), entity.KindEventNotOpen))
	c.Set(at("10:30"))
	assert.NoError(t, svc.Gate(ctx, 1))
	assert.True(t, entity.IsFailure(svc.Gate(ctx, 404), entity.KindEventNotFound))
}

func ExampleValidateReason() {
	fmt.Println(ValidateReason(""))
	fmt.Println(ValidateReason("sick"))
	// Output:
	// a reason is required to decline
	// <nil>
}
