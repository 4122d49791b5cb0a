package attendance

import (
	"fmt"
	"net/http"
	"reflect"
	"time"

	"eventattendance/backend/foundation/web"
	"eventattendance/backend/internal/auth"
	"eventattendance/backend/internal/entity"
	"eventattendance/backend/internal/repository/postgres/attendance"
	"eventattendance/backend/internal/service"
	"eventattendance/backend/internal/service/checkin"

	"github.com/pkg/errors"
)

type Controller struct {
	checkin    Checkin
	attendance Attendance
	cache      Cache
	mediaDir   string
}

func NewController(checkin Checkin, attendance Attendance, cache Cache, mediaDir string) *Controller {
	return &Controller{checkin, attendance, cache, mediaDir}
}

func (uc Controller) Join(c *web.Context) error {
	var request attendance.JoinRequest

	if err := c.BindFunc(&request, "UserID", "EventID"); err != nil {
		return c.RespondError(err)
	}

	if err := actsFor(c, request.UserID); err != nil {
		return c.RespondError(err)
	}

	response, err := uc.checkin.Join(c.Ctx, request.UserID, request.EventID)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   response,
		"status": true,
	}, http.StatusCreated)
}

// Decline accepts JSON, or multipart when an evidence image is attached.
func (uc Controller) Decline(c *web.Context) error {
	var request attendance.DeclineRequest

	if err := c.BindFunc(&request, "UserID", "EventID"); err != nil {
		return c.RespondError(err)
	}

	if err := actsFor(c, request.UserID); err != nil {
		return c.RespondError(err)
	}

	// Cheap checks first so that rejected declines never leave a file behind.
	if err := checkin.ValidateReason(request.Reason); err != nil {
		return c.RespondError(err)
	}
	if err := uc.checkin.Gate(c.Ctx, request.EventID); err != nil {
		return c.RespondError(err)
	}

	evidence, err := service.SaveEvidence(request.EvidenceImage, uc.mediaDir, request.EventID, request.UserID, time.Now())
	if err != nil {
		return c.RespondError(err)
	}

	response, err := uc.checkin.Decline(c.Ctx, checkin.DeclineRequest{
		UserID:        request.UserID,
		EventID:       request.EventID,
		Reason:        request.Reason,
		EvidenceImage: evidence,
	})
	if err != nil {
		if rmErr := service.RemoveMedia(uc.mediaDir, evidence); rmErr != nil {
			c.Error(rmErr)
		}
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   response,
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) CompleteByCard(c *web.Context) error {
	var request attendance.CheckInByCardRequest

	if err := c.BindFunc(&request, "ChipID", "EventID"); err != nil {
		return c.RespondError(err)
	}

	response, err := uc.checkin.CheckInByChip(c.Ctx, request.ChipID, request.EventID)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   response,
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) Complete(c *web.Context) error {
	var request attendance.CheckInRequest

	if err := c.BindFunc(&request, "UserID", "EventID"); err != nil {
		return c.RespondError(err)
	}

	if err := actsFor(c, request.UserID); err != nil {
		return c.RespondError(err)
	}

	response, err := uc.checkin.CheckIn(c.Ctx, request.UserID, request.EventID)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   response,
		"status": true,
	}, http.StatusOK)
}

// Attendees is polled by watchers. A caller passing the version it already
// holds as since gets changed=false and no list while nothing moved. The
// version is read from postgres on every poll; redis only holds lists that
// were read at a given version.
func (uc Controller) Attendees(c *web.Context) error {
	var filter attendance.AttendeeFilter

	eventID, ok := c.GetQueryFunc(reflect.Int, "event_id").(*int)
	since, _ := c.GetQueryFunc(reflect.Int64, "since").(*int64)
	if status, ok := c.GetQueryFunc(reflect.String, "status").(*string); ok {
		s := entity.AttendanceStatus(*status)
		if !s.Valid() {
			return c.RespondError(&web.Error{
				Err:    errors.New("unknown status"),
				Status: http.StatusBadRequest,
				Fields: map[string]interface{}{"status": "oneof pending present absent"},
			})
		}
		filter.Status = &s
	}

	if err := c.ValidQuery(); err != nil {
		return c.RespondError(err)
	}
	if !ok {
		return c.RespondError(requiredQuery("event_id"))
	}
	filter.EventID = *eventID

	version, err := uc.attendance.Version(c.Ctx, filter.EventID)
	if err != nil {
		return c.RespondError(err)
	}

	if since != nil && version > 0 && *since == version {
		return c.Respond(map[string]interface{}{
			"data": map[string]interface{}{
				"version": version,
				"changed": false,
			},
			"status": true,
		}, http.StatusOK)
	}

	if _, err := uc.checkin.Event(c.Ctx, filter.EventID); err != nil {
		return c.RespondError(err)
	}

	var status string
	if filter.Status != nil {
		status = string(*filter.Status)
	}

	list, hit, err := uc.cache.Get(c.Ctx, filter.EventID, version, status)
	if err != nil {
		c.Logf("attendees cache: %v", err)
	}
	if !hit {
		version, list, err = uc.attendance.Snapshot(c.Ctx, filter)
		if err != nil {
			return c.RespondError(err)
		}
		if err := uc.cache.Put(c.Ctx, filter.EventID, version, status, list); err != nil {
			c.Logf("attendees cache: %v", err)
		}
	}

	return c.Respond(map[string]interface{}{
		"data": map[string]interface{}{
			"version": version,
			"changed": true,
			"results": list,
			"count":   len(list),
		},
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) Export(c *web.Context) error {
	eventID, ok := c.GetQueryFunc(reflect.Int, "event_id").(*int)
	if err := c.ValidQuery(); err != nil {
		return c.RespondError(err)
	}
	if !ok {
		return c.RespondError(requiredQuery("event_id"))
	}

	event, err := uc.checkin.Event(c.Ctx, *eventID)
	if err != nil {
		return c.RespondError(err)
	}

	list, err := uc.attendance.ListAttendees(c.Ctx, attendance.AttendeeFilter{EventID: *eventID})
	if err != nil {
		return c.RespondError(err)
	}

	rows := make([]service.AttendanceRow, 0, len(list))
	for _, a := range list {
		rows = append(rows, service.AttendanceRow{
			PrintedID:   deref(a.PrintedID),
			Name:        deref(a.Name),
			Course:      deref(a.Course),
			Status:      string(a.Status),
			CheckedInAt: a.CheckedInAt,
			DeclinedAt:  a.DeclinedAt,
			Reason:      deref(a.Reason),
		})
	}

	buf, err := service.AttendanceWorkbook(deref(event.Name), rows)
	if err != nil {
		return c.RespondError(err)
	}

	return c.RespondAttachment(
		fmt.Sprintf("attendance-%d.xlsx", event.ID),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes(),
	)
}

// actsFor keeps members to their own records.
func actsFor(c *web.Context, userID int) error {
	claims, ok := auth.FromContext(c.Ctx)
	if !ok {
		return web.NewRequestError(errors.New("claims missing from context"), http.StatusUnauthorized)
	}
	if !claims.ActsFor(userID) {
		return web.NewRequestError(errors.New("members may only act on their own attendance"), http.StatusForbidden)
	}
	return nil
}

func requiredQuery(key string) error {
	return &web.Error{
		Err:    errors.Errorf("%s is required", key),
		Status: http.StatusBadRequest,
		Fields: map[string]interface{}{key: "required"},
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
