package middleware

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"eventattendance/backend/foundation/web"

	"github.com/pkg/errors"
)

// Logger writes one line per request once the handler has responded.
func Logger(log *log.Logger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(c *web.Context) error {
			v, ok := web.GetValues(c.Ctx)
			if !ok {
				return errors.New("web value missing from context")
			}

			err := handler(c)

			log.Printf("%s : %s %s -> %d (%s)",
				v.TraceID,
				c.Request.Method, c.Request.URL.Path,
				v.StatusCode, time.Since(v.Now),
			)

			return err
		}

		return h
	}

	return m
}

// Panics turns a panic in a handler into a 500 response.
func Panics(log *log.Logger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(c *web.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("PANIC : %v\n%s", r, debug.Stack())
					err = c.RespondError(web.NewRequestError(fmt.Errorf("panic: %v", r), http.StatusInternalServerError))
				}
			}()

			return handler(c)
		}

		return h
	}

	return m
}
