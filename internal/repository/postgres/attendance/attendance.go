package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"eventattendance/backend/foundation/web"
	"eventattendance/backend/internal/entity"
	"eventattendance/backend/internal/pkg/repository/postgresql"
	"eventattendance/backend/internal/repository/postgres"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type Repository struct {
	*postgresql.Database
}

func NewRepository(database *postgresql.Database) *Repository {
	return &Repository{Database: database}
}

func (r Repository) Get(ctx context.Context, userID, eventID int) (entity.Attendance, error) {
	var detail entity.Attendance

	err := r.NewSelect().Model(&detail).Where("user_id = ? AND event_id = ?", userID, eventID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Attendance{}, errors.Wrap(postgres.ErrNotFound, "attendance")
	}
	if err != nil {
		return entity.Attendance{}, errors.Wrap(err, "selecting attendance")
	}

	return detail, nil
}

// CreatePending opens a pending record. The (user_id, event_id) primary key
// turns a second join into AlreadyJoined even under concurrent requests.
func (r Repository) CreatePending(ctx context.Context, userID, eventID int, at time.Time) (entity.Attendance, error) {
	record := entity.Attendance{
		UserID:    userID,
		EventID:   eventID,
		Status:    entity.AttendanceStatusPending,
		CreatedAt: at,
	}

	if claims, err := r.CheckClaims(ctx); err == nil {
		record.CreatedBy = &claims.UserId
	}

	_, err := r.NewInsert().Model(&record).Exec(ctx)
	if postgres.IsUniqueViolation(err) {
		return entity.Attendance{}, entity.NewFailure(entity.KindAlreadyJoined, "user %d has already joined event %d", userID, eventID)
	}
	if postgres.IsForeignKeyViolation(err) {
		return entity.Attendance{}, entity.NewFailure(entity.KindEventNotFound, "event %d does not exist", eventID)
	}
	if err != nil {
		return entity.Attendance{}, errors.Wrap(err, "creating attendance")
	}

	return record, nil
}

// Transition is the only place a record leaves pending. The row is locked
// with FOR UPDATE for the duration of the check and the write, so concurrent
// attempts serialize and exactly one of them observes pending. Waiting for
// the lock is bounded by the configured lock timeout.
func (r Repository) Transition(ctx context.Context, t entity.Transition) (entity.Attendance, error) {
	var record entity.Attendance

	err := r.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		lockTimeout := fmt.Sprintf("SET LOCAL lock_timeout = %d", r.LockTimeout().Milliseconds())
		if _, err := tx.ExecContext(ctx, lockTimeout); err != nil {
			return errors.Wrap(err, "setting lock timeout")
		}

		err := tx.NewSelect().Model(&record).
			Where("user_id = ? AND event_id = ?", t.UserID, t.EventID).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return entity.NewFailure(entity.KindNotRegisteredForEvent, "user %d has not joined event %d", t.UserID, t.EventID)
		}
		if err != nil {
			return errors.Wrap(err, "locking attendance")
		}

		if err := t.Apply(&record); err != nil {
			return err
		}

		_, err = tx.NewUpdate().Model(&record).
			Column("status", "reason", "evidence_image", "checked_in_at", "declined_at", "updated_at").
			WherePK().
			Exec(ctx)

		return errors.Wrap(err, "updating attendance")
	})
	if postgres.IsLockNotAvailable(err) {
		return entity.Attendance{}, entity.NewFailure(entity.KindBusy, "attendance record is locked by another check-in, retry")
	}
	if err != nil {
		return entity.Attendance{}, err
	}

	return record, nil
}

// versionQuery counts every mutation an event's records went through.
// Records are never deleted and leave pending at most once, so a join adds
// one and a transition adds one: the value only ever grows, and it is read
// from the same rows the list is, so it cannot fall behind a commit.
const versionQuery = `
	SELECT count(*) + count(*) FILTER (WHERE status <> 'pending')
	FROM attendance
	WHERE event_id = ?
`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Version is the cursor polling clients pass back as since.
func (r Repository) Version(ctx context.Context, eventID int) (int64, error) {
	return version(ctx, r.DB, eventID)
}

func version(ctx context.Context, q querier, eventID int) (int64, error) {
	var v int64
	if err := q.QueryRowContext(ctx, versionQuery, eventID).Scan(&v); err != nil {
		return 0, errors.Wrap(err, "selecting attendance version")
	}
	return v, nil
}

// Snapshot reads the version and the attendee list from one repeatable read
// transaction, so the list is exactly the state the version names.
func (r Repository) Snapshot(ctx context.Context, filter AttendeeFilter) (int64, []AttendeeResponse, error) {
	var (
		v    int64
		list []AttendeeResponse
	)

	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := r.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if v, err = version(ctx, tx, filter.EventID); err != nil {
			return err
		}
		list, err = listAttendees(ctx, tx, filter)
		return err
	})
	if err != nil {
		return 0, nil, err
	}

	return v, list, nil
}

// ListAttendees returns the records of an event with their holders.
func (r Repository) ListAttendees(ctx context.Context, filter AttendeeFilter) ([]AttendeeResponse, error) {
	return listAttendees(ctx, r.DB, filter)
}

func listAttendees(ctx context.Context, q querier, filter AttendeeFilter) ([]AttendeeResponse, error) {
	query := `
		SELECT
			a.user_id,
			u.printed_id,
			u.full_name,
			u.course,
			a.status,
			a.checked_in_at,
			a.declined_at,
			a.reason,
			a.evidence_image
		FROM attendance a
		JOIN users u ON u.id = a.user_id
		WHERE a.event_id = ?
	`
	args := []interface{}{filter.EventID}

	if filter.Status != nil {
		query += ` AND a.status = ?`
		args = append(args, string(*filter.Status))
	}
	query += ` ORDER BY a.checked_in_at ASC NULLS LAST, a.user_id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, web.NewRequestError(errors.Wrap(err, "selecting attendees"), http.StatusInternalServerError)
	}
	defer rows.Close()

	list := []AttendeeResponse{}

	for rows.Next() {
		var detail AttendeeResponse
		var status string

		if err = rows.Scan(
			&detail.UserID,
			&detail.PrintedID,
			&detail.Name,
			&detail.Course,
			&status,
			&detail.CheckedInAt,
			&detail.DeclinedAt,
			&detail.Reason,
			&detail.EvidenceImage); err != nil {
			return nil, web.NewRequestError(errors.Wrap(err, "scanning attendees"), http.StatusInternalServerError)
		}
		detail.Status = entity.AttendanceStatus(status)

		list = append(list, detail)
	}

	if err = rows.Err(); err != nil {
		return nil, web.NewRequestError(errors.Wrap(err, "iterating attendees"), http.StatusInternalServerError)
	}

	return list, nil
}
