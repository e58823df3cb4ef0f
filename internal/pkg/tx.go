package pkg

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// WithTx runs fn in one transaction bound to ctx. It commits when fn returns
// nil and rolls back when fn fails or panics; a panic is re-raised.
func WithTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return errors.New("with tx: nil database")
	}
	return db.WithContext(ctx).Transaction(fn)
}
