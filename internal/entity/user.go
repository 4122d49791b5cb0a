package entity

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	BasicEntity
	PrintedID   *string    `json:"printed_id"     bun:"printed_id"`
	RFIDChipID  *string    `json:"-"              bun:"rfid_chip_id"`
	RFIDBoundAt *time.Time `json:"rfid_bound_at"  bun:"rfid_bound_at"`
	FullName    *string    `json:"full_name"      bun:"full_name"`
	Email       *string    `json:"email"          bun:"email"`
	Course      *string    `json:"course"         bun:"course"`
	Password    *string    `json:"-"              bun:"password"`
	Role        *string    `json:"role"           bun:"role"`
}

// HasCard reports whether a chip is bound to the user.
func (u User) HasCard() bool {
	return u.RFIDChipID != nil && *u.RFIDChipID != ""
}

// DisplayName falls back to the printed id when no name is known.
func (u User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	if u.PrintedID != nil {
		return *u.PrintedID
	}
	return ""
}
