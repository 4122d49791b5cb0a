package auth

import (
	"context"
	"time"

	"eventattendance/backend/internal/entity"
)

type User interface {
	GetByPrintedID(ctx context.Context, printedID string) (entity.User, error)
}

type Tokens interface {
	GenerateToken(userID int, role string, now time.Time) (string, error)
}
