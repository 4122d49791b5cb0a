package postgresql

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"eventattendance/backend/foundation/web"
	"eventattendance/backend/internal/auth"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// Config is the required properties to use the database.
type Config struct {
	User        string
	Password    string
	Host        string
	Name        string
	DisableTLS  bool
	Debug       bool
	LockTimeout time.Duration
}

type Database struct {
	*bun.DB
	lockTimeout time.Duration
	validate    *validator.Validate
}

// NewDB knows how to open a database connection based on the configuration.
func NewDB(cfg Config) *Database {
	connector := pgdriver.NewConnector(
		pgdriver.WithAddr(cfg.Host),
		pgdriver.WithUser(cfg.User),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithDatabase(cfg.Name),
		pgdriver.WithInsecure(cfg.DisableTLS),
		pgdriver.WithApplicationName("event-attendance"),
	)

	db := bun.NewDB(sql.OpenDB(connector), pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	return New(db, cfg.LockTimeout)
}

// New wraps an already opened bun.DB.
func New(db *bun.DB, lockTimeout time.Duration) *Database {
	if lockTimeout <= 0 {
		lockTimeout = 2 * time.Second
	}

	return &Database{
		DB:          db,
		lockTimeout: lockTimeout,
		validate:    validator.New(),
	}
}

// StatusCheck returns nil if it can successfully talk to the database.
func (d Database) StatusCheck(ctx context.Context) error {
	var tmp bool
	return d.QueryRowContext(ctx, `SELECT true`).Scan(&tmp)
}

// LockTimeout is how long a transaction may wait for a row lock.
func (d Database) LockTimeout() time.Duration {
	return d.lockTimeout
}

// CheckClaims returns the claims of the caller. When roles are given the
// caller must hold one of them.
func (d Database) CheckClaims(ctx context.Context, roles ...string) (auth.Claims, error) {
	claims, ok := auth.FromContext(ctx)
	if !ok {
		return auth.Claims{}, web.NewRequestError(errors.New("claims missing from context"), http.StatusUnauthorized)
	}

	if len(roles) > 0 && !claims.Authorized(roles...) {
		return auth.Claims{}, web.NewRequestError(errors.New("attempted action is not allowed"), http.StatusForbidden)
	}

	return claims, nil
}

// ValidateStruct checks the validate tags of the named fields, or of every
// field when none are named.
func (d Database) ValidateStruct(s interface{}, fields ...string) error {
	var err error
	if len(fields) > 0 {
		err = d.validate.StructPartial(s, fields...)
	} else {
		err = d.validate.Struct(s)
	}
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return web.NewRequestError(errors.Wrap(err, "validating request"), http.StatusBadRequest)
	}

	details := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}

	return &web.Error{
		Err:    errors.New("validation failed"),
		Status: http.StatusBadRequest,
		Kind:   "ValidationError",
		Fields: details,
	}
}
