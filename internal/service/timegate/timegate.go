// Package timegate decides whether an event currently accepts check-ins.
package timegate

import (
	"time"

	"eventattendance/backend/internal/entity"
)

// Layout is how window bounds are rendered in messages.
const Layout = "2006-01-02 15:04"

// Compute places now relative to the window [start, end]. Both bounds are
// inclusive. An event without an end is over once it has started, and an
// event without a start never opens.
func Compute(now time.Time, start, end *time.Time) entity.Gate {
	if start == nil {
		if end != nil && now.After(*end) {
			return entity.GateEnded
		}
		return entity.GateUpcoming
	}

	if now.Before(*start) {
		return entity.GateUpcoming
	}

	if end == nil || now.After(*end) {
		return entity.GateEnded
	}

	return entity.GateOngoing
}

// Window is the check-in window of one event.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Of returns the window of an event.
func Of(e entity.Event) Window {
	return Window{Start: e.StartTime, End: e.EndTime}
}

func (w Window) Gate(now time.Time) entity.Gate {
	return Compute(now, w.Start, w.End)
}

// Check returns nil while the window is open, otherwise an EventNotOpen
// failure naming the actual window.
func (w Window) Check(now time.Time) error {
	gate := w.Gate(now)
	if gate == entity.GateOngoing {
		return nil
	}

	f := entity.NewFailure(entity.KindEventNotOpen, "%s", w.message(gate)).
		With("gate", gate)
	if w.Start != nil {
		f.With("start_time", *w.Start)
	}
	if w.End != nil {
		f.With("end_time", *w.End)
	}

	return f
}

func (w Window) message(gate entity.Gate) string {
	switch {
	case w.Start == nil:
		return "event has no check-in window"
	case w.End == nil && gate == entity.GateUpcoming:
		return "event has not started: check-in opens at " + w.Start.Format(Layout)
	case w.End == nil:
		return "event has no end time: check-in closed at " + w.Start.Format(Layout)
	case gate == entity.GateUpcoming:
		return "event has not started: check-in opens at " + w.Start.Format(Layout) +
			" and closes at " + w.End.Format(Layout)
	default:
		return "event has ended: check-in was open from " + w.Start.Format(Layout) +
			" to " + w.End.Format(Layout)
	}
}
