// Package web is a thin layer over gin that lets handlers return errors and
// share a request scoped context.
package web

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ctxKey represents the type of value for the context key.
type ctxKey int

// KeyValues is how request values are stored/retrieved.
const KeyValues ctxKey = 1

// Values represent state for each request.
type Values struct {
	TraceID    string
	Now        time.Time
	StatusCode int
}

// Handler is the signature used by all application handlers in this service.
type Handler func(c *Context) error

// Middleware runs some code before and/or after another Handler.
type Middleware func(Handler) Handler

// App is the entrypoint into our application and what configures our context
// object for each of our http handlers.
type App struct {
	*gin.Engine
	log *log.Logger
	mw  []Middleware
}

// NewApp creates an App value that handle a set of routes for the application.
func NewApp(log *log.Logger, mw ...Middleware) *App {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	return &App{
		Engine: engine,
		log:    log,
		mw:     mw,
	}
}

// Log returns the application logger.
func (a *App) Log() *log.Logger {
	return a.log
}

// Handle is our mechanism for mounting Handlers for a given HTTP verb and path
// pair, this makes for really easy, convenient routing.
func (a *App) Handle(method string, path string, handler Handler, mw ...Middleware) {
	// First wrap handler specific middleware around this handler.
	handler = wrapMiddleware(mw, handler)

	// Add the application's general middleware to the handler chain.
	handler = wrapMiddleware(a.mw, handler)

	h := func(gc *gin.Context) {
		traceID := gc.GetHeader("X-Request-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		gc.Header("X-Request-ID", traceID)

		v := Values{
			TraceID: traceID,
			Now:     time.Now(),
		}

		c := &Context{
			Context: gc,
			Ctx:     context.WithValue(gc.Request.Context(), KeyValues, &v),
			log:     a.log,
		}

		if err := handler(c); err != nil {
			a.log.Printf("%s : ERROR : %v", traceID, err)
			if !gc.Writer.Written() {
				gc.AbortWithStatus(http.StatusInternalServerError)
			}
		}
	}

	a.Engine.Handle(method, path, h)
}

func (a *App) Get(path string, handler Handler, mw ...Middleware) {
	a.Handle(http.MethodGet, path, handler, mw...)
}

func (a *App) Post(path string, handler Handler, mw ...Middleware) {
	a.Handle(http.MethodPost, path, handler, mw...)
}

func (a *App) Put(path string, handler Handler, mw ...Middleware) {
	a.Handle(http.MethodPut, path, handler, mw...)
}

func (a *App) Patch(path string, handler Handler, mw ...Middleware) {
	a.Handle(http.MethodPatch, path, handler, mw...)
}

func (a *App) Delete(path string, handler Handler, mw ...Middleware) {
	a.Handle(http.MethodDelete, path, handler, mw...)
}

// GetValues returns the request values stored on the context, if any.
func GetValues(ctx context.Context) (*Values, bool) {
	v, ok := ctx.Value(KeyValues).(*Values)
	return v, ok
}

// wrapMiddleware creates a new handler by wrapping middleware around a final
// handler. The middlewares' Handlers will be executed by requests in the order
// they are provided.
func wrapMiddleware(mw []Middleware, handler Handler) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		if h := mw[i]; h != nil {
			handler = h(handler)
		}
	}

	return handler
}
