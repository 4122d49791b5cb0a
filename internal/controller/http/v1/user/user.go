package user

import (
	"fmt"
	"net/http"
	"reflect"

	"eventattendance/backend/foundation/web"
	"eventattendance/backend/internal/auth"
	"eventattendance/backend/internal/entity"
	"eventattendance/backend/internal/repository/postgres"
	"eventattendance/backend/internal/repository/postgres/user"
	"eventattendance/backend/internal/service"
	"eventattendance/backend/internal/service/roster"

	"github.com/pkg/errors"
)

type Controller struct {
	user   User
	cards  Cards
	course Course
}

func NewController(user User, cards Cards, course Course) *Controller {
	return &Controller{user, cards, course}
}

func (uc Controller) GetUserList(c *web.Context) error {
	var filter user.Filter

	if limit, ok := c.GetQueryFunc(reflect.Int, "limit").(*int); ok {
		filter.Limit = limit
	}
	if offset, ok := c.GetQueryFunc(reflect.Int, "offset").(*int); ok {
		filter.Offset = offset
	}
	if page, ok := c.GetQueryFunc(reflect.Int, "page").(*int); ok {
		filter.Page = page
	}
	if search, ok := c.GetQueryFunc(reflect.String, "search").(*string); ok {
		filter.Search = search
	}
	if course, ok := c.GetQueryFunc(reflect.String, "course").(*string); ok {
		filter.Course = course
	}
	if err := c.ValidQuery(); err != nil {
		return c.RespondError(err)
	}

	list, count, err := uc.user.GetList(c.Ctx, filter)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data": map[string]interface{}{
			"results": list,
			"count":   count,
		},
		"status": true,
	}, http.StatusOK)
}

// LinkRFID binds the tapped chip to the user who typed their printed id.
func (uc Controller) LinkRFID(c *web.Context) error {
	var request user.LinkCardRequest

	if err := c.BindFunc(&request, "ChipID", "PrintedID"); err != nil {
		return c.RespondError(err)
	}

	detail, err := uc.cards.BindCard(c.Ctx, request.ChipID, request.PrintedID)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data": map[string]interface{}{
			"id":            detail.ID,
			"printed_id":    detail.PrintedID,
			"full_name":     detail.FullName,
			"has_card":      detail.HasCard(),
			"rfid_bound_at": detail.RFIDBoundAt,
		},
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) GetCard(c *web.Context) error {
	id := c.GetParam(reflect.Int, "id").(int)

	if err := c.ValidParam(); err != nil {
		return c.RespondError(err)
	}

	claims, ok := auth.FromContext(c.Ctx)
	if !ok || !claims.ActsFor(id) {
		return c.RespondError(web.NewRequestError(errors.New("attempted action is not allowed"), http.StatusForbidden))
	}

	detail, err := uc.user.GetByID(c.Ctx, id)
	if errors.Is(err, postgres.ErrNotFound) {
		return c.RespondError(entity.NewFailure(entity.KindUserNotFound, "user %d not found", id))
	}
	if err != nil {
		return c.RespondError(err)
	}

	pdf, err := service.CardPDF(detail)
	if err != nil {
		return c.RespondError(err)
	}

	return c.RespondAttachment(fmt.Sprintf("card-%d.pdf", id), "application/pdf", pdf)
}

func (uc Controller) CreateUser(c *web.Context) error {
	var request user.CreateRequest

	if err := c.BindFunc(&request, "PrintedID", "Password", "FullName"); err != nil {
		return c.RespondError(err)
	}
	if request.Role == nil {
		role := auth.RoleMember
		request.Role = &role
	}

	list, err := uc.user.CreateMany(c.Ctx, []user.CreateRequest{request})
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   list[0],
		"status": true,
	}, http.StatusCreated)
}

// CreateUserByExcell imports a roster workbook. Valid rows are created in one
// transaction; rejected rows are reported with their line numbers.
func (uc Controller) CreateUserByExcell(c *web.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.RespondError(&web.Error{
			Err:    errors.Wrap(err, "reading upload"),
			Status: http.StatusBadRequest,
			Fields: map[string]interface{}{"file": "required"},
		})
	}

	src, err := file.Open()
	if err != nil {
		return c.RespondError(web.NewRequestError(errors.Wrap(err, "opening upload"), http.StatusBadRequest))
	}
	defer src.Close()

	courses, err := uc.course.Names(c.Ctx)
	if err != nil {
		return c.RespondError(err)
	}
	taken, err := uc.user.PrintedIDs(c.Ctx)
	if err != nil {
		return c.RespondError(err)
	}

	rows, rejected, err := roster.Read(src, courses, taken)
	if err != nil {
		return c.RespondError(web.NewRequestError(err, http.StatusBadRequest))
	}

	requests := make([]user.CreateRequest, 0, len(rows))
	for i := range rows {
		row := rows[i]
		request := user.CreateRequest{
			PrintedID: &row.PrintedID,
			Password:  &row.Password,
			Role:      &row.Role,
			FullName:  &row.FullName,
		}
		if row.Email != "" {
			request.Email = &row.Email
		}
		if row.Course != "" {
			request.Course = &row.Course
		}
		requests = append(requests, request)
	}

	created := []user.CreateResponse{}
	if len(requests) > 0 {
		if created, err = uc.user.CreateMany(c.Ctx, requests); err != nil {
			return c.RespondError(err)
		}
	}

	return c.Respond(map[string]interface{}{
		"data": map[string]interface{}{
			"created":  len(created),
			"results":  created,
			"rejected": rejected,
		},
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) ExportTemplate(c *web.Context) error {
	f, err := roster.Template()
	if err != nil {
		return c.RespondError(err)
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return c.RespondError(errors.Wrap(err, "writing template"))
	}

	return c.RespondAttachment("roster.xlsx",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
