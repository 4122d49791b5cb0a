// Package terminal drives a card reader station: one selected event, taps
// checked in against it.
package terminal

import (
	"context"
	"sync"

	"eventattendance/backend/internal/client/api"

	"github.com/pkg/errors"
)

var (
	// ErrCheckinInFlight is returned when the event is changed while a
	// check-in is still waiting for the server or queued behind one.
	ErrCheckinInFlight = errors.New("a check-in is in flight")
	ErrNoEvent         = errors.New("no event selected")
)

type Checkin interface {
	CheckInByCard(ctx context.Context, chipID string, eventID int) (api.CheckIn, error)
}

type Terminal struct {
	client Checkin
	send   chan struct{}

	mu      sync.Mutex
	eventID int
	pending int
}

func New(client Checkin, eventID int) *Terminal {
	return &Terminal{client: client, eventID: eventID, send: make(chan struct{}, 1)}
}

// Event returns the selected event, zero when none is.
func (t *Terminal) Event() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.eventID
}

// Select switches the event taps are checked in against.
func (t *Terminal) Select(eventID int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending > 0 {
		return ErrCheckinInFlight
	}
	t.eventID = eventID
	return nil
}

// Tap checks the chip holder in for the event selected at the moment of the
// tap. Taps are sent one at a time; a tap arriving while another is in
// flight waits for it instead of being dropped.
func (t *Terminal) Tap(ctx context.Context, chipID string) (api.CheckIn, error) {
	t.mu.Lock()
	if t.eventID == 0 {
		t.mu.Unlock()
		return api.CheckIn{}, ErrNoEvent
	}
	t.pending++
	eventID := t.eventID
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.pending--
		t.mu.Unlock()
	}()

	select {
	case t.send <- struct{}{}:
	case <-ctx.Done():
		return api.CheckIn{}, ctx.Err()
	}
	defer func() { <-t.send }()

	return t.client.CheckInByCard(ctx, chipID, eventID)
}
