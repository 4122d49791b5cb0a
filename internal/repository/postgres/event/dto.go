package event

import (
	"time"

	"eventattendance/backend/internal/entity"

	"github.com/Azure/go-autorest/autorest/date"
)

type Filter struct {
	Day    *date.Date
	Search *string
	Limit  *int
	Page   *int
}

type GetListResponse struct {
	ID             int         `json:"id"              bun:"id"`
	Name           *string     `json:"name"            bun:"name"`
	StartTime      *time.Time  `json:"start_time"      bun:"start_time"`
	EndTime        *time.Time  `json:"end_time"        bun:"end_time"`
	TargetAudience *string     `json:"target_audience" bun:"target_audience"`
	Course         *string     `json:"course"          bun:"course"`
	Joined         int         `json:"joined"          bun:"joined"`
	Present        int         `json:"present"         bun:"present"`
	Gate           entity.Gate `json:"gate"            bun:"-"`
}
