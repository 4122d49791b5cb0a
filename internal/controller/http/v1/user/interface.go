package user

import (
	"context"

	"eventattendance/backend/internal/entity"
	"eventattendance/backend/internal/repository/postgres/user"
)

type User interface {
	GetByID(ctx context.Context, id int) (entity.User, error)
	GetList(ctx context.Context, filter user.Filter) ([]user.GetListResponse, int, error)
	PrintedIDs(ctx context.Context) (map[string]struct{}, error)
	CreateMany(ctx context.Context, requests []user.CreateRequest) ([]user.CreateResponse, error)
}

type Cards interface {
	BindCard(ctx context.Context, chipID, printedID string) (entity.User, error)
}

type Course interface {
	Names(ctx context.Context) (map[string]struct{}, error)
}
