package entity

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	AudienceAll    = "ALL"
	AudienceCourse = "COURSE"
)

// Gate is the phase of an event relative to its check-in window.
type Gate string

const (
	GateUpcoming Gate = "upcoming"
	GateOngoing  Gate = "ongoing"
	GateEnded    Gate = "ended"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	BasicEntity
	Name           *string    `json:"name"             bun:"name"`
	StartTime      *time.Time `json:"start_time"       bun:"start_time"`
	EndTime        *time.Time `json:"end_time"         bun:"end_time"`
	TargetAudience *string    `json:"target_audience"  bun:"target_audience"`
	Course         *string    `json:"course"           bun:"course"`
}

// Admits reports whether the user belongs to the event's audience.
func (e Event) Admits(u User) bool {
	if e.TargetAudience == nil || *e.TargetAudience != AudienceCourse {
		return true
	}
	if e.Course == nil || u.Course == nil {
		return false
	}
	return *e.Course == *u.Course
}
