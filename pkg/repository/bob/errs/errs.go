package errs

import (
	"database/sql"
	"errors"

	"github.com/mpapenbr/rally-manager-go/pkg/repository/api"
)

// Translate maps driver specific errors to the errors of the api package
func Translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return api.ErrNoRows
	}
	return err
}
