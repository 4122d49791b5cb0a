package router

import (
	"time"

	"eventattendance/backend/foundation/web"
	"eventattendance/backend/internal/auth"
	"eventattendance/backend/internal/middleware"
	"eventattendance/backend/internal/pkg/repository/postgresql"
	"eventattendance/backend/internal/repository/postgres/attendance"
	"eventattendance/backend/internal/repository/postgres/course"
	"eventattendance/backend/internal/repository/postgres/event"
	"eventattendance/backend/internal/repository/postgres/user"
	"eventattendance/backend/internal/repository/redis/snapshot"
	"eventattendance/backend/internal/service/cardregistry"
	"eventattendance/backend/internal/service/checkin"

	"github.com/redis/go-redis/v9"

	attendance_controller "eventattendance/backend/internal/controller/http/v1/attendance"
	auth_controller "eventattendance/backend/internal/controller/http/v1/auth"
	course_controller "eventattendance/backend/internal/controller/http/v1/course"
	event_controller "eventattendance/backend/internal/controller/http/v1/event"
	"eventattendance/backend/internal/controller/http/v1/file"
	user_controller "eventattendance/backend/internal/controller/http/v1/user"
)

type Options struct {
	MediaDir       string
	AllowedOrigins []string
	FuzzyCardBind  bool
	SnapshotTTL    time.Duration
}

type Router struct {
	*web.App
	postgresDB *postgresql.Database
	redisDB    *redis.Client
	auth       *auth.Auth
	opts       Options
}

func NewRouter(
	app *web.App,
	postgresDB *postgresql.Database,
	redisDB *redis.Client,
	auth *auth.Auth,
	opts Options,
) *Router {
	return &Router{
		app,
		postgresDB,
		redisDB,
		auth,
		opts,
	}
}

func (r Router) Init() {
	r.Use(middleware.CorsMiddleware(r.opts.AllowedOrigins))

	// - postgresql
	userPostgres := user.NewRepository(r.postgresDB)
	coursePostgres := course.NewRepository(r.postgresDB)
	eventPostgres := event.NewRepository(r.postgresDB)
	attendancePostgres := attendance.NewRepository(r.postgresDB)

	// - redis
	attendees := snapshot.New(r.redisDB, r.opts.SnapshotTTL)

	// service
	registry := cardregistry.New(userPostgres, r.opts.FuzzyCardBind)
	checkinService := checkin.New(r.Log(), attendancePostgres, eventPostgres, userPostgres, registry)

	// controller
	authController := auth_controller.NewController(userPostgres, r.auth)
	userController := user_controller.NewController(userPostgres, registry, coursePostgres)
	courseController := course_controller.NewController(coursePostgres)
	eventController := event_controller.NewController(eventPostgres)
	attendanceController := attendance_controller.NewController(checkinService, attendancePostgres, attendees, r.opts.MediaDir)

	fileC := file.NewController(r.opts.MediaDir)

	staff := []string{auth.RoleAdmin, auth.RoleReader}
	viewers := []string{auth.RoleAdmin, auth.RoleReader, auth.RoleDashboard}

	// #auth
	r.Post("/api/v1/sign-in", authController.SignIn)

	r.GET("/media/*filepath", fileC.File)
	r.HEAD("/media/*filepath", fileC.File)

	// #user
	r.Get("/api/v1/user/list", userController.GetUserList, middleware.Authenticate(r.auth, staff...))
	r.Get("/api/v1/user/export_template", userController.ExportTemplate, middleware.Authenticate(r.auth, auth.RoleAdmin))
	r.Get("/api/v1/user/:id/card", userController.GetCard, middleware.Authenticate(r.auth))
	r.Post("/api/v1/user/create", userController.CreateUser, middleware.Authenticate(r.auth, auth.RoleAdmin))
	r.Post("/api/v1/user/import", userController.CreateUserByExcell, middleware.Authenticate(r.auth, auth.RoleAdmin))
	r.Post("/api/v1/user/link-rfid", userController.LinkRFID, middleware.Authenticate(r.auth, staff...))

	// #course
	r.Get("/api/v1/course/list", courseController.GetList, middleware.Authenticate(r.auth))
	r.Post("/api/v1/course/create", courseController.Create, middleware.Authenticate(r.auth, auth.RoleAdmin))

	// #event
	r.Get("/api/v1/event/list", eventController.GetList, middleware.Authenticate(r.auth))
	r.Get("/api/v1/event/:id", eventController.GetDetailById, middleware.Authenticate(r.auth))

	// #attendance
	r.Post("/api/v1/attendance/join", attendanceController.Join, middleware.Authenticate(r.auth))
	r.Post("/api/v1/attendance/decline", attendanceController.Decline, middleware.Authenticate(r.auth))
	r.Post("/api/v1/attendance/rfid-complete-by-card", attendanceController.CompleteByCard, middleware.Authenticate(r.auth, staff...))
	r.Post("/api/v1/attendance/rfid-complete", attendanceController.Complete, middleware.Authenticate(r.auth, staff...))
	r.Get("/api/v1/attendance/attendees", attendanceController.Attendees, middleware.Authenticate(r.auth, viewers...))
	r.Get("/api/v1/attendance/export", attendanceController.Export, middleware.Authenticate(r.auth, auth.RoleAdmin))
}
