// Package snapshot caches attendee lists in redis. An entry is keyed by the
// version it was read at and never changes afterwards, so a stale or missing
// entry can only cost a database read.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"eventattendance/backend/internal/repository/postgres/attendance"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New returns a cache. A nil client yields a cache that always misses.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func Key(eventID int, version int64, status string) string {
	if status == "" {
		status = "all"
	}
	return fmt.Sprintf("attendance:event:%d:v%d:%s", eventID, version, status)
}

// Get returns the list stored for the version, ok false on a miss.
func (c *Cache) Get(ctx context.Context, eventID int, version int64, status string) ([]attendance.AttendeeResponse, bool, error) {
	if c == nil || c.rdb == nil {
		return nil, false, nil
	}

	raw, err := c.rdb.Get(ctx, Key(eventID, version, status)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading attendees of event %d", eventID)
	}

	var list []attendance.AttendeeResponse
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false, errors.Wrapf(err, "decoding attendees of event %d", eventID)
	}

	return list, true, nil
}

// Put stores the list read at version.
func (c *Cache) Put(ctx context.Context, eventID int, version int64, status string, list []attendance.AttendeeResponse) error {
	if c == nil || c.rdb == nil {
		return nil
	}

	raw, err := json.Marshal(list)
	if err != nil {
		return errors.Wrapf(err, "encoding attendees of event %d", eventID)
	}

	if err := c.rdb.Set(ctx, Key(eventID, version, status), raw, c.ttl).Err(); err != nil {
		return errors.Wrapf(err, "caching attendees of event %d", eventID)
	}

	return nil
}
