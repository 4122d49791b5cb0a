package user

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"eventattendance/backend/foundation/web"
	"eventattendance/backend/internal/auth"
	"eventattendance/backend/internal/entity"
	"eventattendance/backend/internal/pkg/repository/postgresql"
	"eventattendance/backend/internal/repository/postgres"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

type Repository struct {
	*postgresql.Database
}

func NewRepository(database *postgresql.Database) *Repository {
	return &Repository{Database: database}
}

func (r Repository) GetByID(ctx context.Context, id int) (entity.User, error) {
	var detail entity.User

	err := r.NewSelect().Model(&detail).Where("id = ? AND deleted_at IS NULL", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.User{}, errors.Wrapf(postgres.ErrNotFound, "user %d", id)
	}
	if err != nil {
		return entity.User{}, errors.Wrap(err, "selecting user")
	}

	return detail, nil
}

// GetByPrintedID is used by sign-in.
func (r Repository) GetByPrintedID(ctx context.Context, printedID string) (entity.User, error) {
	var detail entity.User

	err := r.NewSelect().Model(&detail).Where("printed_id = ? AND deleted_at IS NULL", printedID).Limit(1).Scan(ctx)
	if err != nil {
		return entity.User{}, &web.Error{
			Err:    errors.New("user not found"),
			Status: http.StatusUnauthorized,
		}
	}

	return detail, nil
}

// FindByPrintedID returns every user whose printed id matches exactly. At most
// two rows are read, which is enough to detect ambiguity.
func (r Repository) FindByPrintedID(ctx context.Context, printedID string) ([]entity.User, error) {
	var list []entity.User

	err := r.NewSelect().Model(&list).
		Where("printed_id = ? AND deleted_at IS NULL", printedID).
		OrderExpr("id").
		Limit(2).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, "selecting users by printed id")
	}

	return list, nil
}

// SearchLoose matches the term as a substring of printed id, email or name.
func (r Repository) SearchLoose(ctx context.Context, term string) ([]entity.User, error) {
	var list []entity.User

	pattern := "%" + escapeLike(term) + "%"

	err := r.NewSelect().Model(&list).
		Where("deleted_at IS NULL").
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("printed_id ILIKE ?", pattern).
				WhereOr("email ILIKE ?", pattern).
				WhereOr("full_name ILIKE ?", pattern)
		}).
		OrderExpr("id").
		Limit(2).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, "searching users")
	}

	return list, nil
}

// GetByChip returns the single holder of a chip.
func (r Repository) GetByChip(ctx context.Context, chipID string) (entity.User, error) {
	var detail entity.User

	err := r.NewSelect().Model(&detail).Where("rfid_chip_id = ? AND deleted_at IS NULL", chipID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.User{}, errors.Wrap(postgres.ErrNotFound, "chip holder")
	}
	if err != nil {
		return entity.User{}, errors.Wrap(err, "selecting user by chip")
	}

	return detail, nil
}

// BindChip makes userID the only holder of chipID. Any previous holder loses
// the chip inside the same transaction.
func (r Repository) BindChip(ctx context.Context, userID int, chipID string, at time.Time) (entity.User, error) {
	var detail entity.User

	err := r.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().Model((*entity.User)(nil)).
			Set("rfid_chip_id = NULL").
			Set("rfid_bound_at = NULL").
			Set("updated_at = ?", at).
			Where("rfid_chip_id = ? AND id <> ?", chipID, userID).
			Exec(ctx)
		if err != nil {
			return errors.Wrap(err, "releasing chip from previous holder")
		}

		err = tx.NewUpdate().Model(&detail).
			Set("rfid_chip_id = ?", chipID).
			Set("rfid_bound_at = ?", at).
			Set("updated_at = ?", at).
			Where("id = ? AND deleted_at IS NULL", userID).
			Returning("*").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(postgres.ErrNotFound, "user %d", userID)
		}

		return errors.Wrap(err, "binding chip")
	})
	if postgres.IsUniqueViolation(err) {
		return entity.User{}, entity.NewFailure(entity.KindBusy, "card is being bound concurrently, retry")
	}
	if err != nil {
		return entity.User{}, err
	}

	return detail, nil
}

func (r Repository) GetList(ctx context.Context, filter Filter) ([]GetListResponse, int, error) {
	if _, err := r.CheckClaims(ctx, auth.RoleAdmin, auth.RoleReader); err != nil {
		return nil, 0, err
	}

	q := r.NewSelect().Model((*entity.User)(nil)).
		Column("id", "printed_id", "full_name", "email", "course", "role", "rfid_bound_at").
		ColumnExpr("rfid_chip_id IS NOT NULL AS has_card").
		Where("deleted_at IS NULL")

	if filter.Search != nil {
		pattern := "%" + escapeLike(strings.TrimSpace(*filter.Search)) + "%"
		q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("printed_id ILIKE ?", pattern).WhereOr("full_name ILIKE ?", pattern)
		})
	}
	if filter.Course != nil {
		q.Where("course = ?", *filter.Course)
	}

	if filter.Page != nil && filter.Limit != nil {
		offset := (*filter.Page - 1) * (*filter.Limit)
		filter.Offset = &offset
	}
	if filter.Limit != nil {
		q.Limit(*filter.Limit)
	}
	if filter.Offset != nil {
		q.Offset(*filter.Offset)
	}

	var list []GetListResponse

	count, err := q.OrderExpr("id").ScanAndCount(ctx, &list)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, 0, web.NewRequestError(errors.Wrap(err, "selecting users"), http.StatusInternalServerError)
	}

	return list, count, nil
}

// PrintedIDs returns every printed id in use, for import de-duplication.
func (r Repository) PrintedIDs(ctx context.Context) (map[string]struct{}, error) {
	var ids []string

	err := r.NewSelect().Model((*entity.User)(nil)).Column("printed_id").Where("deleted_at IS NULL").Scan(ctx, &ids)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, "selecting printed ids")
	}

	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}

	return m, nil
}

// CreateMany inserts users in one transaction, hashing every password.
func (r Repository) CreateMany(ctx context.Context, requests []CreateRequest) ([]CreateResponse, error) {
	claims, err := r.CheckClaims(ctx, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	list := make([]CreateResponse, 0, len(requests))

	for i := range requests {
		request := requests[i]
		if err := r.ValidateStruct(&request); err != nil {
			return nil, err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(*request.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, web.NewRequestError(errors.Wrap(err, "hashing password"), http.StatusInternalServerError)
		}
		hashedPassword := string(hash)
		role := strings.ToUpper(*request.Role)

		list = append(list, CreateResponse{
			PrintedID: request.PrintedID,
			Password:  &hashedPassword,
			Role:      &role,
			FullName:  request.FullName,
			Email:     request.Email,
			Course:    request.Course,
			CreatedAt: now,
			CreatedBy: &claims.UserId,
		})
	}

	err = r.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i := range list {
			if _, err := tx.NewInsert().Model(&list[i]).Returning("id").Exec(ctx, &list[i].ID); err != nil {
				return err
			}
		}
		return nil
	})
	if postgres.IsUniqueViolation(err) {
		return nil, entity.NewFailure(entity.KindValidation, "a printed id in the roster is already taken")
	}
	if postgres.IsForeignKeyViolation(err) {
		return nil, entity.NewFailure(entity.KindValidation, "the roster names an unknown course")
	}
	if err != nil {
		return nil, web.NewRequestError(errors.Wrap(err, "creating users"), http.StatusInternalServerError)
	}

	for i := range list {
		list[i].Password = nil
	}

	return list, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
