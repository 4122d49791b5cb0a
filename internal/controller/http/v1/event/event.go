package event

import (
	"net/http"
	"reflect"
	"time"

	"eventattendance/backend/foundation/web"
	"eventattendance/backend/internal/entity"
	"eventattendance/backend/internal/repository/postgres"
	"eventattendance/backend/internal/repository/postgres/event"
	"eventattendance/backend/internal/service/timegate"

	"github.com/Azure/go-autorest/autorest/date"
	"github.com/pkg/errors"
)

type Controller struct {
	event Event
	now   func() time.Time
}

func NewController(event Event) *Controller {
	return &Controller{event: event, now: time.Now}
}

// GetList is what the reader terminal offers to pick the live event from.
func (uc Controller) GetList(c *web.Context) error {
	var filter event.Filter

	if limit, ok := c.GetQueryFunc(reflect.Int, "limit").(*int); ok {
		filter.Limit = limit
	}
	if page, ok := c.GetQueryFunc(reflect.Int, "page").(*int); ok {
		filter.Page = page
	}
	if search, ok := c.GetQueryFunc(reflect.String, "search").(*string); ok {
		filter.Search = search
	}
	if day, ok := c.GetQueryFunc(reflect.String, "day").(*string); ok {
		parsed, err := date.ParseDate(*day)
		if err != nil {
			return c.RespondError(&web.Error{
				Err:    errors.New("invalid date format"),
				Status: http.StatusBadRequest,
				Fields: map[string]interface{}{"day": "YYYY-MM-DD"},
			})
		}
		filter.Day = &parsed
	}

	if err := c.ValidQuery(); err != nil {
		return c.RespondError(err)
	}

	list, count, err := uc.event.GetList(c.Ctx, filter)
	if err != nil {
		return c.RespondError(err)
	}

	now := uc.now()
	for i := range list {
		list[i].Gate = timegate.Compute(now, list[i].StartTime, list[i].EndTime)
	}

	return c.Respond(map[string]interface{}{
		"data": map[string]interface{}{
			"results": list,
			"count":   count,
		},
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) GetDetailById(c *web.Context) error {
	id := c.GetParam(reflect.Int, "id").(int)

	if err := c.ValidParam(); err != nil {
		return c.RespondError(err)
	}

	response, err := uc.event.GetByID(c.Ctx, id)
	if errors.Is(err, postgres.ErrNotFound) {
		return c.RespondError(entity.NewFailure(entity.KindEventNotFound, "event %d not found", id))
	}
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data": map[string]interface{}{
			"event": response,
			"gate":  timegate.Of(response).Gate(uc.now()),
		},
		"status": true,
	}, http.StatusOK)
}
