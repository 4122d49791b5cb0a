package course

import (
	"time"

	"github.com/uptrace/bun"
)

type Filter struct {
	Limit  *int
	Offset *int
	Page   *int
	Search *string
}

type GetListResponse struct {
	ID      int     `json:"id"`
	Name    *string `json:"name"`
	Members int     `json:"members"`
}

type CreateRequest struct {
	Name *string `json:"name" form:"name" validate:"required,max=100"`
}

type CreateResponse struct {
	bun.BaseModel `bun:"table:courses"`

	ID   int     `json:"id"   bun:"-"`
	Name *string `json:"name" bun:"name"`

	CreatedAt time.Time `json:"-" bun:"created_at"`
	CreatedBy int       `json:"-" bun:"created_by"`
}
