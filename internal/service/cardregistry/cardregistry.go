// Package cardregistry binds physical RFID chips to users and resolves taps
// back to a user.
package cardregistry

import (
	"context"
	"strings"
	"time"

	"eventattendance/backend/internal/entity"
	"eventattendance/backend/internal/repository/postgres"

	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// Users is the storage the registry needs.
type Users interface {
	FindByPrintedID(ctx context.Context, printedID string) ([]entity.User, error)
	SearchLoose(ctx context.Context, term string) ([]entity.User, error)
	GetByChip(ctx context.Context, chipID string) (entity.User, error)
	BindChip(ctx context.Context, userID int, chipID string, at time.Time) (entity.User, error)
}

type Registry struct {
	users Users
	fuzzy bool
	now   func() time.Time
}

// New returns a registry. With fuzzy set, a printed id that matches nobody
// exactly may still resolve through a substring search, provided the search
// finds exactly one user.
func New(users Users, fuzzy bool) *Registry {
	return &Registry{users: users, fuzzy: fuzzy, now: time.Now}
}

// Sanitize normalizes full-width input and keeps only [A-Za-z0-9_-].
func Sanitize(chipID string) string {
	chipID = norm.NFKC.String(chipID)

	var b strings.Builder
	b.Grow(len(chipID))

	for _, r := range chipID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	return b.String()
}

// NormalizePrintedID trims and folds full-width characters.
func NormalizePrintedID(printedID string) string {
	return strings.TrimSpace(norm.NFKC.String(printedID))
}

// BindCard makes the user identified by printedID the only holder of chipID.
// Repeating a bind that already holds is a no-op.
func (r *Registry) BindCard(ctx context.Context, chipID, printedID string) (entity.User, error) {
	chip := Sanitize(chipID)
	if chip == "" {
		return entity.User{}, entity.NewFailure(entity.KindValidation, "card id is empty after sanitizing").
			With("rfid_card_id", "invalid")
	}

	printed := NormalizePrintedID(printedID)
	if printed == "" {
		return entity.User{}, entity.NewFailure(entity.KindValidation, "printed id is required").
			With("printed_id", "required")
	}

	user, err := r.resolvePrinted(ctx, printed)
	if err != nil {
		return entity.User{}, err
	}

	if user.RFIDChipID != nil && *user.RFIDChipID == chip {
		return user, nil
	}

	bound, err := r.users.BindChip(ctx, user.ID, chip, r.now())
	if errors.Is(err, postgres.ErrNotFound) {
		return entity.User{}, entity.NewFailure(entity.KindUserNotFound, "no user with printed id %q", printed)
	}
	if err != nil {
		return entity.User{}, err
	}

	return bound, nil
}

// ResolveByChip returns the user currently holding chipID.
func (r *Registry) ResolveByChip(ctx context.Context, chipID string) (entity.User, error) {
	chip := Sanitize(chipID)
	if chip == "" {
		return entity.User{}, entity.NewFailure(entity.KindCardNotRegistered, "card is not registered")
	}

	user, err := r.users.GetByChip(ctx, chip)
	if errors.Is(err, postgres.ErrNotFound) {
		return entity.User{}, entity.NewFailure(entity.KindCardNotRegistered, "card %s is not registered", chip).
			With("rfid_card_id", chip)
	}
	if err != nil {
		return entity.User{}, err
	}

	return user, nil
}

func (r *Registry) resolvePrinted(ctx context.Context, printed string) (entity.User, error) {
	matches, err := r.users.FindByPrintedID(ctx, printed)
	if err != nil {
		return entity.User{}, err
	}

	if len(matches) == 0 && r.fuzzy {
		matches, err = r.users.SearchLoose(ctx, printed)
		if err != nil {
			return entity.User{}, err
		}
	}

	switch len(matches) {
	case 0:
		return entity.User{}, entity.NewFailure(entity.KindUserNotFound, "no user with printed id %q", printed).
			With("printed_id", printed)
	case 1:
		return matches[0], nil
	default:
		return entity.User{}, entity.NewFailure(entity.KindValidation, "printed id %q matches more than one user", printed).
			With("printed_id", "ambiguous")
	}
}
