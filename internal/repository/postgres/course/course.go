package course

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"eventattendance/backend/foundation/web"
	"eventattendance/backend/internal/auth"
	"eventattendance/backend/internal/entity"
	"eventattendance/backend/internal/pkg/repository/postgresql"
	"eventattendance/backend/internal/repository/postgres"

	"github.com/pkg/errors"
)

type Repository struct {
	*postgresql.Database
}

func NewRepository(database *postgresql.Database) *Repository {
	return &Repository{Database: database}
}

func (r Repository) GetList(ctx context.Context, filter Filter) ([]GetListResponse, int, error) {
	_, err := r.CheckClaims(ctx)
	if err != nil {
		return nil, 0, err
	}

	whereQuery := `WHERE c.deleted_at IS NULL`
	var args []interface{}

	if filter.Search != nil {
		search := strings.TrimSpace(*filter.Search)
		whereQuery += ` AND c.name ILIKE ?`
		args = append(args, "%"+search+"%")
	}
	orderQuery := "ORDER BY c.name"

	var limitQuery, offsetQuery string

	if filter.Page != nil && filter.Limit != nil {
		offset := (*filter.Page - 1) * (*filter.Limit)
		filter.Offset = &offset
	}

	if filter.Limit != nil {
		limitQuery += fmt.Sprintf(" LIMIT %d", *filter.Limit)
	}

	if filter.Offset != nil {
		offsetQuery += fmt.Sprintf(" OFFSET %d", *filter.Offset)
	}

	query := fmt.Sprintf(`
		SELECT
			c.id,
			c.name,
			(SELECT count(u.id) FROM users u WHERE u.course = c.name AND u.deleted_at IS NULL)
		FROM courses c

		%s %s %s %s
	`, whereQuery, orderQuery, limitQuery, offsetQuery)

	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, web.NewRequestError(errors.Wrap(err, "selecting courses"), http.StatusInternalServerError)
	}
	defer rows.Close()

	var list []GetListResponse

	for rows.Next() {
		var detail GetListResponse
		if err = rows.Scan(&detail.ID, &detail.Name, &detail.Members); err != nil {
			return nil, 0, web.NewRequestError(errors.Wrap(err, "scanning course list"), http.StatusInternalServerError)
		}

		list = append(list, detail)
	}

	countQuery := fmt.Sprintf(`SELECT count(c.id) FROM courses c %s`, whereQuery)

	count := 0
	if err = r.QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
		return nil, 0, web.NewRequestError(errors.Wrap(err, "scanning course count"), http.StatusInternalServerError)
	}

	return list, count, nil
}

func (r Repository) Create(ctx context.Context, request CreateRequest) (CreateResponse, error) {
	claims, err := r.CheckClaims(ctx, auth.RoleAdmin)
	if err != nil {
		return CreateResponse{}, err
	}

	if err := r.ValidateStruct(&request, "Name"); err != nil {
		return CreateResponse{}, err
	}

	name := strings.TrimSpace(*request.Name)

	var response CreateResponse
	response.Name = &name
	response.CreatedAt = time.Now()
	response.CreatedBy = claims.UserId

	_, err = r.NewInsert().Model(&response).Returning("id").Exec(ctx, &response.ID)
	if postgres.IsUniqueViolation(err) {
		return CreateResponse{}, entity.NewFailure(entity.KindValidation, "course %q already exists", name)
	}
	if err != nil {
		return CreateResponse{}, web.NewRequestError(errors.Wrap(err, "creating course"), http.StatusInternalServerError)
	}

	return response, nil
}

// Names returns the set of course names, used to validate roster imports.
func (r Repository) Names(ctx context.Context) (map[string]struct{}, error) {
	var names []string

	err := r.NewSelect().Model((*entity.Course)(nil)).Column("name").Where("deleted_at IS NULL").Scan(ctx, &names)
	if err != nil {
		return nil, errors.Wrap(err, "selecting course names")
	}

	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}

	return m, nil
}
