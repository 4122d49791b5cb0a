package user

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eventattendance/backend/foundation/web"
	"eventattendance/backend/internal/auth"
	"eventattendance/backend/internal/entity"
	"eventattendance/backend/internal/repository/postgres"
	"eventattendance/backend/internal/repository/postgres/user"
	"eventattendance/backend/internal/service/roster"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	byID    map[int]entity.User
	printed map[string]struct{}
	created [][]user.CreateRequest
}

func (f *fakeUsers) GetByID(_ context.Context, id int) (entity.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return entity.User{}, errors.Wrapf(postgres.ErrNotFound, "user %d", id)
	}
	return u, nil
}

func (f *fakeUsers) GetList(context.Context, user.Filter) ([]user.GetListResponse, int, error) {
	return []user.GetListResponse{}, 0, nil
}

func (f *fakeUsers) PrintedIDs(context.Context) (map[string]struct{}, error) {
	return f.printed, nil
}

func (f *fakeUsers) CreateMany(_ context.Context, requests []user.CreateRequest) ([]user.CreateResponse, error) {
	f.created = append(f.created, requests)

	list := make([]user.CreateResponse, 0, len(requests))
	for i, r := range requests {
		list = append(list, user.CreateResponse{ID: 100 + i, PrintedID: r.PrintedID, Role: r.Role, FullName: r.FullName})
	}
	return list, nil
}

type fakeCards struct {
	users map[string]entity.User
}

func (f fakeCards) BindCard(_ context.Context, chipID, printedID string) (entity.User, error) {
	u, ok := f.users[printedID]
	if !ok {
		return entity.User{}, entity.NewFailure(entity.KindUserNotFound, "no user with printed id %s", printedID)
	}
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	u.RFIDChipID = &chipID
	u.RFIDBoundAt = &now
	return u, nil
}

type fakeCourses []string

func (f fakeCourses) Names(context.Context) (map[string]struct{}, error) {
	m := map[string]struct{}{}
	for _, n := range f {
		m[n] = struct{}{}
	}
	return m, nil
}

func strp(s string) *string { return &s }

func newApp(t *testing.T, userID int, role string) (*web.App, *fakeUsers) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ana := entity.User{PrintedID: strp("20111111"), FullName: strp("Ana Lima"), Course: strp("CS")}
	ana.ID = 7

	users := &fakeUsers{
		byID:    map[int]entity.User{7: ana},
		printed: map[string]struct{}{"20111111": {}},
	}
	uc := NewController(users, fakeCards{users: map[string]entity.User{"20111111": ana}}, fakeCourses{"CS"})

	claims := func(next web.Handler) web.Handler {
		return func(c *web.Context) error {
			c.Ctx = context.WithValue(c.Ctx, auth.Key, auth.Claims{UserId: userID, Role: role})
			return next(c)
		}
	}

	app := web.NewApp(log.New(io.Discard, "", 0))
	app.Get("/user/list", uc.GetUserList, claims)
	app.Get("/user/:id/card", uc.GetCard, claims)
	app.Post("/user/create", uc.CreateUser, claims)
	app.Post("/user/import", uc.CreateUserByExcell, claims)
	app.Post("/user/link-rfid", uc.LinkRFID, claims)
	app.Get("/user/export_template", uc.ExportTemplate, claims)

	return app, users
}

func serve(app *web.App, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLinkRFID(t *testing.T) {
	app, _ := newApp(t, 2, auth.RoleReader)

	rec := serve(app, http.MethodPost, "/user/link-rfid",
		strings.NewReader(`{"rfid_card_id":"AB12","printed_id":"20111111"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, float64(7), data["id"])
	assert.Equal(t, true, data["has_card"])
	assert.NotContains(t, data, "rfid_chip_id")

	rec = serve(app, http.MethodPost, "/user/link-rfid",
		strings.NewReader(`{"rfid_card_id":"AB12","printed_id":"nobody"}`), "application/json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UserNotFound", decode(t, rec)["kind"])
}

func TestGetCard(t *testing.T) {
	t.Run("own card", func(t *testing.T) {
		app, _ := newApp(t, 7, auth.RoleMember)

		rec := serve(app, http.MethodGet, "/user/7/card", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
	})

	t.Run("someone else's card", func(t *testing.T) {
		app, _ := newApp(t, 9, auth.RoleMember)

		rec := serve(app, http.MethodGet, "/user/7/card", nil, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		app, _ := newApp(t, 1, auth.RoleAdmin)

		rec := serve(app, http.MethodGet, "/user/404/card", nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		app, _ := newApp(t, 1, auth.RoleAdmin)

		rec := serve(app, http.MethodGet, "/user/abc/card", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCreateUser(t *testing.T) {
	app, users := newApp(t, 1, auth.RoleAdmin)

	rec := serve(app, http.MethodPost, "/user/create",
		strings.NewReader(`{"printed_id":"20999999","password":"pw1234","full_name":"Gil"}`), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, users.created, 1)
	assert.Equal(t, auth.RoleMember, *users.created[0][0].Role)
}

func TestCreateUserByExcell(t *testing.T) {
	app, users := newApp(t, 1, auth.RoleAdmin)

	f, err := roster.Template()
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.SetSheetRow(roster.SheetName, "A2", &[]interface{}{"20222222", "Bo Chen", "", "CS", "", "pw1234"}))
	require.NoError(t, f.SetSheetRow(roster.SheetName, "A3", &[]interface{}{"20111111", "Ana Lima", "", "", "", "pw1234"}))
	xlsx, err := f.WriteToBuffer()
	require.NoError(t, err)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "roster.xlsx")
	require.NoError(t, err)
	_, err = io.Copy(part, xlsx)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rec := serve(app, http.MethodPost, "/user/import", &body, w.FormDataContentType())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["created"])
	rejected := data["rejected"].([]interface{})
	require.Len(t, rejected, 1)
	assert.Equal(t, float64(3), rejected[0].(map[string]interface{})["row"])

	require.Len(t, users.created, 1)
	assert.Equal(t, "20222222", *users.created[0][0].PrintedID)

	rec = serve(app, http.MethodPost, "/user/import", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportTemplate(t *testing.T) {
	app, _ := newApp(t, 1, auth.RoleAdmin)

	rec := serve(app, http.MethodGet, "/user/export_template", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="roster.xlsx"`, rec.Header().Get("Content-Disposition"))
}
