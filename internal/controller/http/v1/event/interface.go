package event

import (
	"context"

	"eventattendance/backend/internal/entity"
	"eventattendance/backend/internal/repository/postgres/event"
)

type Event interface {
	GetByID(ctx context.Context, id int) (entity.Event, error)
	GetList(ctx context.Context, filter event.Filter) ([]event.GetListResponse, int, error)
}
