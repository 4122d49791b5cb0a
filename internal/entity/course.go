package entity

import (
	"github.com/uptrace/bun"
)

// Course groups members and scopes events with the COURSE audience.
type Course struct {
	bun.BaseModel `bun:"table:courses"`

	BasicEntity
	Name *string `json:"name"     bun:"name"`
}
