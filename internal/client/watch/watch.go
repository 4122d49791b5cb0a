// Package watch turns periodic attendee list polls into "new arrival"
// notifications.
package watch

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"eventattendance/backend/internal/client/api"

	"github.com/google/uuid"
)

const (
	// FocusedInterval is used while a screen is dedicated to the event.
	FocusedInterval = 3 * time.Second
	// AmbientInterval is used for background views.
	AmbientInterval = 20 * time.Second
)

// IDSet is one snapshot of attendee ids.
type IDSet map[int]struct{}

func NewIDSet(ids ...int) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Diff returns the ids in current that are not in previous, ascending.
func Diff(previous, current IDSet) []int {
	var arrivals []int
	for id := range current {
		if _, ok := previous[id]; !ok {
			arrivals = append(arrivals, id)
		}
	}
	sort.Ints(arrivals)
	return arrivals
}

// Fetcher is the part of the api client a session polls.
type Fetcher interface {
	Attendees(ctx context.Context, eventID int, since int64) (api.Attendees, error)
}

// Batch is the set of arrivals detected by one poll.
type Batch struct {
	Session string
	EventID int
	UserIDs []int
	At      time.Time
}

// Session polls one event. Each poll is compared against the snapshot of the
// poll before it, so an arrival is reported once.
type Session struct {
	ID string

	fetch    Fetcher
	eventID  int
	interval time.Duration
	notify   func(Batch)
	log      *log.Logger
	now      func() time.Time

	mu         sync.Mutex
	snapshot   IDSet
	version    int64
	generation uint64
	stop       chan struct{}
}

func NewSession(fetch Fetcher, eventID int, interval time.Duration, notify func(Batch), log *log.Logger) *Session {
	if interval <= 0 {
		interval = FocusedInterval
	}
	return &Session{
		ID:       uuid.NewString(),
		fetch:    fetch,
		eventID:  eventID,
		interval: interval,
		notify:   notify,
		log:      log,
		now:      time.Now,
		snapshot: IDSet{},
	}
}

// Present keeps attendees who have checked in.
func Present(list []api.Attendee) IDSet {
	s := IDSet{}
	for _, a := range list {
		if a.Status == "present" {
			s[a.UserID] = struct{}{}
		}
	}
	return s
}

// Poll runs one fetch and diff. It returns the arrivals it reported; results
// of a poll that outlives Stop are dropped.
func (s *Session) Poll(ctx context.Context) ([]int, error) {
	s.mu.Lock()
	gen, since := s.generation, s.version
	s.mu.Unlock()

	res, err := s.fetch.Attendees(ctx, s.eventID, since)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil, nil
	}
	if !res.Changed {
		s.version = res.Version
		s.mu.Unlock()
		return nil, nil
	}

	current := Present(res.Results)
	arrivals := Diff(s.snapshot, current)
	s.snapshot = current
	s.version = res.Version
	s.mu.Unlock()

	if len(arrivals) > 0 && s.notify != nil {
		s.notify(Batch{Session: s.ID, EventID: s.eventID, UserIDs: arrivals, At: s.now()})
	}

	return arrivals, nil
}

// Start polls immediately and then on every interval until Stop or ctx ends.
// Starting a running session restarts it with an empty snapshot.
func (s *Session) Start(ctx context.Context) {
	s.Stop()

	stop := make(chan struct{})

	s.mu.Lock()
	s.snapshot = IDSet{}
	s.version = 0
	s.stop = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			if _, err := s.Poll(ctx); err != nil && ctx.Err() == nil && s.log != nil {
				s.log.Printf("watch %s: event %d: %v", s.ID, s.eventID, err)
			}

			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop tears down the timer. A fetch already in flight still completes but
// its result is discarded.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}
