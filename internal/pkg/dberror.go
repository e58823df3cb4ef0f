package pkg

import (
	"errors"
	"slices"
	"strings"

	"gorm.io/gorm"

	"github.com/simp-lee/backoffice/internal/domain"
)

// duplicateMarkers match unique violations from dialectors that do not
// translate them to gorm.ErrDuplicatedKey, such as the pure-Go SQLite driver.
var duplicateMarkers = []string{"unique constraint", "duplicate key", "duplicate entry"}

// MapDBError converts gorm errors to AppErrors. AppErrors pass through.
func MapDBError(err error) error {
	var appErr *domain.AppError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err):
		return domain.NewAppError(domain.CodeAlreadyExists, "already exists", err)
	case errors.As(err, &appErr):
		return err
	}
	return domain.NewAppError(domain.CodeInternal, "database error", err)
}

func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return slices.ContainsFunc(duplicateMarkers, func(m string) bool {
		return strings.Contains(msg, m)
	})
}
