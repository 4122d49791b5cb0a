// Package api is a small client for the attendance HTTP API used by the
// reader terminal and the watcher.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Error is a failure reported by the server.
type Error struct {
	Status  int
	Kind    string
	Message string
	Details map[string]interface{}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.Status, e.Kind)
	}
	return e.Message
}

// IsKind reports whether err is a server failure of the given kind.
func IsKind(err error, kind string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

type Client struct {
	base  string
	token string
	http  *http.Client
}

func New(base, token string, timeout time.Duration) *Client {
	return &Client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: timeout},
	}
}

// WithToken returns a copy of the client that sends token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

type User struct {
	ID        int     `json:"id"`
	PrintedID *string `json:"printed_id"`
	FullName  *string `json:"full_name"`
	Course    *string `json:"course"`
}

type Attendance struct {
	UserID      int        `json:"user_id"`
	EventID     int        `json:"event_id"`
	Status      string     `json:"status"`
	Reason      *string    `json:"reason"`
	CheckedInAt *time.Time `json:"checked_in_at"`
	DeclinedAt  *time.Time `json:"declined_at"`
}

type CheckIn struct {
	User       User       `json:"user"`
	Attendance Attendance `json:"attendance"`
}

type Attendee struct {
	UserID      int        `json:"user_id"`
	PrintedID   *string    `json:"printed_id"`
	Name        *string    `json:"name"`
	Status      string     `json:"status"`
	CheckedInAt *time.Time `json:"checked_in_at"`
}

// Attendees is one poll of an event's attendee list. When Changed is false
// the server skipped the list because Version matched the caller's cursor.
type Attendees struct {
	Version int64      `json:"version"`
	Changed bool       `json:"changed"`
	Results []Attendee `json:"results"`
	Count   int        `json:"count"`
}

type Event struct {
	ID        int        `json:"id"`
	Name      *string    `json:"name"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Gate      string     `json:"gate"`
	Joined    int        `json:"joined"`
	Present   int        `json:"present"`
}

type SignIn struct {
	AccessToken string `json:"access_token"`
	UserID      int    `json:"user_id"`
	Role        string `json:"role"`
}

func (c *Client) SignIn(ctx context.Context, printedID, password string) (SignIn, error) {
	var out SignIn
	err := c.do(ctx, http.MethodPost, "/api/v1/sign-in", nil, map[string]interface{}{
		"printed_id": printedID,
		"password":   password,
	}, &out)
	return out, err
}

// CheckInByCard reports a card tap for the event.
func (c *Client) CheckInByCard(ctx context.Context, chipID string, eventID int) (CheckIn, error) {
	var out CheckIn
	err := c.do(ctx, http.MethodPost, "/api/v1/attendance/rfid-complete-by-card", nil, map[string]interface{}{
		"rfid_card_id": chipID,
		"event_id":     eventID,
	}, &out)
	return out, err
}

// Attendees fetches the attendee list. since is the last version the caller
// has seen, zero for none.
func (c *Client) Attendees(ctx context.Context, eventID int, since int64) (Attendees, error) {
	q := url.Values{}
	q.Set("event_id", strconv.Itoa(eventID))
	if since > 0 {
		q.Set("since", strconv.FormatInt(since, 10))
	}

	var out Attendees
	err := c.do(ctx, http.MethodGet, "/api/v1/attendance/attendees", q, nil, &out)
	return out, err
}

// Events lists events of a day given as YYYY-MM-DD, or all when day is empty.
func (c *Client) Events(ctx context.Context, day string) ([]Event, error) {
	q := url.Values{}
	if day != "" {
		q.Set("day", day)
	}

	var out struct {
		Results []Event `json:"results"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/event/list", q, nil, &out)
	return out.Results, err
}

type envelope struct {
	Status  bool                   `json:"status"`
	Data    json.RawMessage        `json:"data"`
	Error   string                 `json:"error"`
	Kind    string                 `json:"kind"`
	Details map[string]interface{} `json:"details"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &Error{Status: resp.StatusCode, Kind: http.StatusText(resp.StatusCode)}
		}
		return errors.Wrap(err, "decoding response")
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Status {
		return &Error{
			Status:  resp.StatusCode,
			Kind:    env.Kind,
			Message: env.Error,
			Details: env.Details,
		}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Wrap(err, "decoding data")
	}
	return nil
}
