package event

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eventattendance/backend/foundation/web"
	"eventattendance/backend/internal/entity"
	"eventattendance/backend/internal/repository/postgres"
	"eventattendance/backend/internal/repository/postgres/event"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	start = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end   = time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
)

type fakeEvents struct {
	filter event.Filter
}

func (f *fakeEvents) GetByID(_ context.Context, id int) (entity.Event, error) {
	if id != 1 {
		return entity.Event{}, errors.Wrapf(postgres.ErrNotFound, "event %d", id)
	}
	e := entity.Event{StartTime: &start, EndTime: &end}
	e.ID = 1
	return e, nil
}

func (f *fakeEvents) GetList(_ context.Context, filter event.Filter) ([]event.GetListResponse, int, error) {
	f.filter = filter
	return []event.GetListResponse{
		{ID: 1, StartTime: &start, EndTime: &end},
		{ID: 2},
	}, 2, nil
}

func newApp(t *testing.T, now time.Time) (*web.App, *fakeEvents) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	events := &fakeEvents{}
	uc := NewController(events)
	uc.now = func() time.Time { return now }

	app := web.NewApp(log.New(io.Discard, "", 0))
	app.Get("/event/list", uc.GetList)
	app.Get("/event/:id", uc.GetDetailById)
	return app, events
}

func fetch(t *testing.T, app *web.App, target string) (int, map[string]interface{}) {
	t.Helper()

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestGetList(t *testing.T) {
	app, events := newApp(t, start.Add(15*time.Minute))

	code, body := fetch(t, app, "/event/list?day=2026-03-02")
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, events.filter.Day)
	assert.Equal(t, 2026, events.filter.Day.Year())

	results := body["data"].(map[string]interface{})["results"].([]interface{})
	require.Len(t, results, 2)
	assert.Equal(t, "ongoing", results[0].(map[string]interface{})["gate"])
	assert.Equal(t, "upcoming", results[1].(map[string]interface{})["gate"])

	code, body = fetch(t, app, "/event/list?day=02/03/2026")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, map[string]interface{}{"day": "YYYY-MM-DD"}, body["details"])
}

func TestGetDetailById(t *testing.T) {
	tests := []struct {
		now  time.Time
		gate string
	}{
		{start.Add(-time.Minute), "upcoming"},
		{start, "ongoing"},
		{end, "ongoing"},
		{end.Add(time.Second), "ended"},
	}

	for _, tt := range tests {
		app, _ := newApp(t, tt.now)

		code, body := fetch(t, app, "/event/1")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, tt.gate, body["data"].(map[string]interface{})["gate"], tt.now)
	}

	app, _ := newApp(t, start)
	code, body := fetch(t, app, "/event/9")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "EventNotFound", body["kind"])
}
