package course

import (
	"context"

	"eventattendance/backend/internal/repository/postgres/course"
)

type Course interface {
	GetList(ctx context.Context, filter course.Filter) ([]course.GetListResponse, int, error)
	Create(ctx context.Context, request course.CreateRequest) (course.CreateResponse, error)
}
