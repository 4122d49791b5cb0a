package event

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"eventattendance/backend/foundation/web"
	"eventattendance/backend/internal/entity"
	"eventattendance/backend/internal/pkg/repository/postgresql"
	"eventattendance/backend/internal/repository/postgres"

	"github.com/pkg/errors"
)

type Repository struct {
	*postgresql.Database
}

func NewRepository(database *postgresql.Database) *Repository {
	return &Repository{Database: database}
}

func (r Repository) GetByID(ctx context.Context, id int) (entity.Event, error) {
	var detail entity.Event

	err := r.NewSelect().Model(&detail).Where("id = ? AND deleted_at IS NULL", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Event{}, errors.Wrapf(postgres.ErrNotFound, "event %d", id)
	}
	if err != nil {
		return entity.Event{}, errors.Wrap(err, "selecting event")
	}

	return detail, nil
}

// GetList returns events whose window touches the requested day, or every
// event when no day is given. Attendance counters are included.
func (r Repository) GetList(ctx context.Context, filter Filter) ([]GetListResponse, int, error) {
	q := r.NewSelect().
		TableExpr("events AS e").
		ColumnExpr("e.id, e.name, e.start_time, e.end_time, e.target_audience, e.course").
		ColumnExpr("(SELECT count(*) FROM attendance a WHERE a.event_id = e.id) AS joined").
		ColumnExpr("(SELECT count(*) FROM attendance a WHERE a.event_id = e.id AND a.status = 'present') AS present").
		Where("e.deleted_at IS NULL")

	if filter.Day != nil {
		from := time.Date(filter.Day.Year(), filter.Day.Month(), filter.Day.Day(), 0, 0, 0, 0, time.Local)
		to := from.AddDate(0, 0, 1)

		q.Where("e.start_time < ?", to).
			Where("COALESCE(e.end_time, e.start_time) >= ?", from)
	}
	if filter.Search != nil {
		q.Where("e.name ILIKE ?", "%"+strings.TrimSpace(*filter.Search)+"%")
	}
	if filter.Limit != nil {
		q.Limit(*filter.Limit)
		if filter.Page != nil {
			q.Offset((*filter.Page - 1) * (*filter.Limit))
		}
	}

	var list []GetListResponse

	count, err := q.OrderExpr("e.start_time ASC NULLS LAST, e.id").ScanAndCount(ctx, &list)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, 0, web.NewRequestError(errors.Wrap(err, "selecting events"), http.StatusInternalServerError)
	}

	return list, count, nil
}
