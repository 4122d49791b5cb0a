package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// Context carries the gin context together with the request scoped
// context.Context that is handed down to services and repositories.
type Context struct {
	*gin.Context
	Ctx context.Context

	log         *log.Logger
	paramErrors map[string]interface{}
	queryErrors map[string]interface{}
}

// NewContext wraps a gin context. Mostly useful in tests, App.Handle builds
// contexts itself.
func NewContext(gc *gin.Context, logger *log.Logger) *Context {
	v := Values{TraceID: gc.GetHeader("X-Request-ID")}
	return &Context{
		Context: gc,
		Ctx:     context.WithValue(gc.Request.Context(), KeyValues, &v),
		log:     logger,
	}
}

// BindFunc decodes the request body (json or form) into data and checks that
// the named fields are set. A name may hold several comma separated fields.
func (c *Context) BindFunc(data interface{}, requiredFields ...string) error {
	if err := c.ShouldBind(data); err != nil {
		return &Error{
			Err:    errors.Wrap(err, "binding request"),
			Status: http.StatusBadRequest,
			Kind:   "ValidationError",
		}
	}

	v := reflect.Indirect(reflect.ValueOf(data))
	if v.Kind() != reflect.Struct {
		return nil
	}

	missing := map[string]interface{}{}
	for _, group := range requiredFields {
		for _, name := range strings.Split(group, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}

			f := v.FieldByName(name)
			if !f.IsValid() || isEmpty(f) {
				missing[fieldName(v.Type(), name)] = "required"
			}
		}
	}

	if len(missing) > 0 {
		return &Error{
			Err:    errors.New("required fields are missing"),
			Status: http.StatusBadRequest,
			Kind:   "ValidationError",
			Fields: missing,
		}
	}

	return nil
}

// GetParam reads a path parameter of the given kind. Parse failures are
// collected and reported by ValidParam.
func (c *Context) GetParam(kind reflect.Kind, key string) interface{} {
	raw := c.Param(key)

	switch kind {
	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.addParamError(key, "must be an integer")
			return 0
		}
		return n
	default:
		if strings.TrimSpace(raw) == "" {
			c.addParamError(key, "required")
		}
		return raw
	}
}

// ValidParam reports every path parameter that failed to parse.
func (c *Context) ValidParam() error {
	if len(c.paramErrors) == 0 {
		return nil
	}

	return &Error{
		Err:    errors.New("invalid path parameters"),
		Status: http.StatusBadRequest,
		Kind:   "ValidationError",
		Fields: c.paramErrors,
	}
}

// GetQueryFunc reads an optional query parameter. It returns nil when the key
// is absent, otherwise a pointer of the requested kind.
func (c *Context) GetQueryFunc(kind reflect.Kind, key string) interface{} {
	raw, ok := c.GetQuery(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}

	switch kind {
	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.addQueryError(key, "must be an integer")
			return nil
		}
		return &n
	case reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.addQueryError(key, "must be an integer")
			return nil
		}
		return &n
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			c.addQueryError(key, "must be a boolean")
			return nil
		}
		return &b
	case reflect.String:
		return &raw
	}

	return nil
}

// ValidQuery reports every query parameter that failed to parse.
func (c *Context) ValidQuery() error {
	if len(c.queryErrors) == 0 {
		return nil
	}

	return &Error{
		Err:    errors.New("invalid query parameters"),
		Status: http.StatusBadRequest,
		Kind:   "ValidationError",
		Fields: c.queryErrors,
	}
}

// Respond converts a Go value to JSON and sends it to the client.
func (c *Context) Respond(data interface{}, statusCode int) error {
	c.setStatus(statusCode)

	if statusCode == http.StatusNoContent {
		c.Status(statusCode)
		return nil
	}

	c.JSON(statusCode, data)
	return nil
}

// RespondAttachment sends raw bytes as a downloadable file.
func (c *Context) RespondAttachment(filename, contentType string, body []byte) error {
	c.setStatus(http.StatusOK)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, body)
	return nil
}

// RespondError sends an error response back to the client. Unexpected errors
// are logged and reported with a generic message.
func (c *Context) RespondError(err error) error {
	var (
		webErr *Error
		cls    Classified
		resp   ErrorResponse
		status int
	)

	switch {
	case errors.As(err, &webErr) && webErr.Status < http.StatusInternalServerError:
		status = webErr.Status
		resp = ErrorResponse{
			Error:   webErr.Err.Error(),
			Kind:    webErr.kind(),
			Details: webErr.Fields,
		}
	case errors.As(err, &cls):
		status = cls.HTTPStatus()
		resp = ErrorResponse{
			Error:   cls.Error(),
			Kind:    cls.Code(),
			Details: cls.Details(),
		}
	default:
		status = http.StatusInternalServerError
		resp = ErrorResponse{
			Error: http.StatusText(http.StatusInternalServerError),
			Kind:  "Internal",
		}
	}

	if status >= http.StatusInternalServerError && c.log != nil {
		c.log.Printf("%s : ERROR : %+v", c.traceID(), err)
	}

	return c.Respond(resp, status)
}

// Logf writes a line tagged with the trace id. Used for failures a handler
// recovers from.
func (c *Context) Logf(format string, args ...interface{}) {
	if c.log == nil {
		return
	}
	c.log.Printf("%s : "+format, append([]interface{}{c.traceID()}, args...)...)
}

func (c *Context) traceID() string {
	if v, ok := GetValues(c.Ctx); ok {
		return v.TraceID
	}
	return ""
}

func (c *Context) setStatus(statusCode int) {
	if v, ok := GetValues(c.Ctx); ok {
		v.StatusCode = statusCode
	}
}

func (c *Context) addParamError(key, msg string) {
	if c.paramErrors == nil {
		c.paramErrors = map[string]interface{}{}
	}
	c.paramErrors[key] = msg
}

func (c *Context) addQueryError(key, msg string) {
	if c.queryErrors == nil {
		c.queryErrors = map[string]interface{}{}
	}
	c.queryErrors[key] = msg
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return true
		}
		return isEmpty(v.Elem())
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	default:
		return v.IsZero()
	}
}

// fieldName prefers the json name of a struct field for error reports.
func fieldName(t reflect.Type, name string) string {
	f, ok := t.FieldByName(name)
	if !ok {
		return name
	}

	tag := strings.Split(f.Tag.Get("json"), ",")[0]
	if tag == "" || tag == "-" {
		return name
	}
	return tag
}
