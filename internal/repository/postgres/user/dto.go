package user

import (
	"time"

	"github.com/uptrace/bun"
)

type Filter struct {
	Limit  *int
	Offset *int
	Page   *int
	Search *string
	Course *string
}

type SignInRequest struct {
	PrintedID string `json:"printed_id" form:"printed_id"`
	Password  string `json:"password" form:"password"`
}

type LinkCardRequest struct {
	ChipID    string `json:"rfid_card_id" form:"rfid_card_id"`
	PrintedID string `json:"printed_id" form:"printed_id"`
}

type GetListResponse struct {
	ID          int        `json:"id"            bun:"id"`
	PrintedID   *string    `json:"printed_id"    bun:"printed_id"`
	FullName    *string    `json:"full_name"     bun:"full_name"`
	Email       *string    `json:"email"         bun:"email"`
	Course      *string    `json:"course"        bun:"course"`
	Role        *string    `json:"role"          bun:"role"`
	HasCard     bool       `json:"has_card"      bun:"has_card"`
	RFIDBoundAt *time.Time `json:"rfid_bound_at" bun:"rfid_bound_at"`
}

type CreateRequest struct {
	PrintedID *string `json:"printed_id" form:"printed_id" validate:"required,max=64"`
	Password  *string `json:"password"   form:"password"   validate:"required,min=4"`
	Role      *string `json:"role"       form:"role"       validate:"required,oneof=MEMBER ADMIN READER DASHBOARD"`
	FullName  *string `json:"full_name"  form:"full_name"  validate:"required"`
	Email     *string `json:"email"      form:"email"      validate:"omitempty,email"`
	Course    *string `json:"course"     form:"course"`
}

type CreateResponse struct {
	bun.BaseModel `bun:"table:users"`

	ID        int       `json:"id"         bun:"-"`
	PrintedID *string   `json:"printed_id" bun:"printed_id"`
	Password  *string   `json:"-"          bun:"password"`
	Role      *string   `json:"role"       bun:"role"`
	FullName  *string   `json:"full_name"  bun:"full_name"`
	Email     *string   `json:"email"      bun:"email"`
	Course    *string   `json:"course"     bun:"course"`
	CreatedAt time.Time `json:"-"          bun:"created_at"`
	CreatedBy *int      `json:"-"          bun:"created_by"`
}
