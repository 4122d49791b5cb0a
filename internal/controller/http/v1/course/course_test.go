package course

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"eventattendance/backend/foundation/web"
	"eventattendance/backend/internal/entity"
	"eventattendance/backend/internal/repository/postgres/course"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCourses struct {
	filter course.Filter
	names  map[string]bool
}

func (f *fakeCourses) GetList(_ context.Context, filter course.Filter) ([]course.GetListResponse, int, error) {
	f.filter = filter
	name := "CS"
	return []course.GetListResponse{{ID: 1, Name: &name, Members: 12}}, 1, nil
}

func (f *fakeCourses) Create(_ context.Context, request course.CreateRequest) (course.CreateResponse, error) {
	if f.names[*request.Name] {
		return course.CreateResponse{}, entity.NewFailure(entity.KindValidation, "course %q already exists", *request.Name)
	}
	f.names[*request.Name] = true
	return course.CreateResponse{ID: 2, Name: request.Name}, nil
}

func TestCourse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	courses := &fakeCourses{names: map[string]bool{"CS": true}}
	uc := NewController(courses)

	app := web.NewApp(log.New(io.Discard, "", 0))
	app.Get("/course/list", uc.GetList)
	app.Post("/course/create", uc.Create)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/course/list?search=c&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, courses.filter.Search)
	assert.Equal(t, "c", *courses.filter.Search)
	assert.Equal(t, 5, *courses.filter.Limit)

	rec = httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/course/list?limit=five", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	create := func(body string) (int, map[string]interface{}) {
		req := httptest.NewRequest(http.MethodPost, "/course/create", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, req)

		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return rec.Code, out
	}

	code, body := create(`{"name":"Math"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Math", body["data"].(map[string]interface{})["name"])

	code, body = create(`{"name":"CS"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "ValidationError", body["kind"])

	code, _ = create(`{}`)
	assert.Equal(t, http.StatusBadRequest, code)
}
