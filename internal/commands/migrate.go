package commands

import (
	"context"
	"database/sql"
	"log"

	"eventattendance/backend/internal/pkg/repository/postgresql"
	"eventattendance/backend/internal/repository/postgres"

	"github.com/pkg/errors"
)

type Scheme struct {
	Index       int
	Description string
	Query       string
}

// The seeded accounts sign in with password "1" and are meant to be
// changed right after the first deploy.
const seedPassword = `$2a$10$NKtnMwDPFSQLG6uOi4Zqheru5Ygbj9TWFHjpl478rRSaO5cJ9QuH2`

var scheme = []Scheme{
	{
		Index:       1,
		Description: "CREATE TYPE \"user_role\" AS ENUM",
		Query: `
        CREATE TYPE "user_role" AS ENUM ('MEMBER', 'ADMIN', 'READER', 'DASHBOARD');`,
	},
	{
		Index:       2,
		Description: "CREATE TYPE \"attendance_status\" AS ENUM",
		Query: `
        CREATE TYPE "attendance_status" AS ENUM ('pending', 'present', 'absent');`,
	},
	{
		Index:       3,
		Description: "Create table: courses.",
		Query: `
        CREATE TABLE IF NOT EXISTS courses (
            id serial primary key,
            name text not null unique,
            created_at timestamp default now(),
            created_by int,
            updated_at timestamp,
            updated_by int,
            deleted_at timestamp,
            deleted_by int
        );`,
	},
	{
		Index:       4,
		Description: "Create table: users.",
		Query: `
        CREATE TABLE IF NOT EXISTS users (
            id serial primary key,
            printed_id text not null,
            rfid_chip_id text,
            rfid_bound_at timestamptz,
            full_name text,
            email text,
            course text references courses(name) on update cascade,
            password text not null,
            role user_role not null default 'MEMBER',
            created_at timestamp default now(),
            created_by int references users(id),
            updated_at timestamp,
            updated_by int references users(id),
            deleted_at timestamp,
            deleted_by int references users(id)
        );
        CREATE UNIQUE INDEX IF NOT EXISTS users_printed_id_key ON users (printed_id) WHERE deleted_at IS NULL;
        CREATE UNIQUE INDEX IF NOT EXISTS users_rfid_chip_id_key ON users (rfid_chip_id) WHERE rfid_chip_id IS NOT NULL;`,
	},
	{
		Index:       5,
		Description: "Create table: events.",
		Query: `
        CREATE TABLE IF NOT EXISTS events (
            id serial primary key,
            name text not null,
            start_time timestamptz,
            end_time timestamptz,
            target_audience text not null default 'ALL' check (target_audience in ('ALL', 'COURSE')),
            course text references courses(name) on update cascade,
            created_at timestamp default now(),
            created_by int references users(id),
            updated_at timestamp,
            updated_by int references users(id),
            deleted_at timestamp,
            deleted_by int references users(id),
            check (target_audience = 'ALL' or course is not null),
            check (end_time is null or start_time is null or end_time >= start_time)
        );
        CREATE INDEX IF NOT EXISTS events_start_time_idx ON events (start_time);`,
	},
	{
		Index:       6,
		Description: "Create table: attendance.",
		Query: `
        CREATE TABLE IF NOT EXISTS attendance (
            user_id int not null references users(id),
            event_id int not null references events(id),
            status attendance_status not null default 'pending',
            reason text,
            evidence_image text,
            checked_in_at timestamptz,
            declined_at timestamptz,
            created_at timestamptz not null default now(),
            created_by int references users(id),
            updated_at timestamptz,
            primary key (user_id, event_id),
            check (status <> 'absent' or reason is not null)
        );
        CREATE INDEX IF NOT EXISTS attendance_event_id_idx ON attendance (event_id, status);`,
	},
	{
		Index:       7,
		Description: "Create user with printed_id: Admin01, password: 1",
		Query: `
        INSERT INTO users(printed_id, full_name, role, password)
        SELECT 'Admin01', 'Administrator', 'ADMIN', '` + seedPassword + `'
        WHERE NOT EXISTS (SELECT printed_id FROM users WHERE printed_id = 'Admin01');`,
	},
	{
		Index:       8,
		Description: "Create user with printed_id: Reader01, password: 1",
		Query: `
        INSERT INTO users(printed_id, full_name, role, password)
        SELECT 'Reader01', 'Card reader', 'READER', '` + seedPassword + `'
        WHERE NOT EXISTS (SELECT printed_id FROM users WHERE printed_id = 'Reader01');`,
	},
	{
		Index:       9,
		Description: "Create user with printed_id: Dashboard01, password: 1",
		Query: `
        INSERT INTO users(printed_id, full_name, role, password)
        SELECT 'Dashboard01', 'Dashboard', 'DASHBOARD', '` + seedPassword + `'
        WHERE NOT EXISTS (SELECT printed_id FROM users WHERE printed_id = 'Dashboard01');`,
	},
}

// Migrations returns the ordered migrations.
func Migrations() []Scheme {
	return scheme
}

// MigrateUP applies every migration newer than the recorded version. A
// version left dirty by a failed run is retried first.
func MigrateUP(ctx context.Context, log *log.Logger, db *postgresql.Database) error {
	var (
		version int
		dirty   bool
		er      *string
	)

	err := db.QueryRowContext(ctx, "SELECT version, dirty, error FROM schema_migrations").Scan(&version, &dirty, &er)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows) || postgres.IsUndefinedTable(err):
		if _, err = db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS schema_migrations (version int not null, dirty bool not null, error text);
			DELETE FROM schema_migrations;
			INSERT INTO schema_migrations (version, dirty) values (0, false);
		`); err != nil {
			return errors.Wrap(err, "creating schema_migrations")
		}
		version, dirty = 0, false
	default:
		return errors.Wrap(err, "reading schema_migrations")
	}

	if dirty {
		log.Printf("migrate : retrying dirty version %d", version)
		version--
	}

	for _, s := range pending(scheme, version) {
		log.Printf("migrate : %d %s", s.Index, s.Description)

		if _, err = db.ExecContext(ctx, s.Query); err != nil {
			if _, uerr := db.ExecContext(ctx, `UPDATE schema_migrations SET error = ?, version = ?, dirty = true`, err.Error(), s.Index); uerr != nil {
				return errors.Wrap(uerr, "recording migrate error")
			}
			return errors.Wrapf(err, "migrate version %d", s.Index)
		}

		if _, err = db.ExecContext(ctx, `UPDATE schema_migrations SET version = ?, dirty = false, error = null`, s.Index); err != nil {
			return errors.Wrap(err, "recording migrate version")
		}
	}

	return nil
}

// pending returns the migrations above version in index order.
func pending(list []Scheme, version int) []Scheme {
	var out []Scheme
	for _, s := range list {
		if s.Index > version {
			out = append(out, s)
		}
	}
	return out
}
