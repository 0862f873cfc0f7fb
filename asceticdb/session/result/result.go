package result

import (
	"database/sql"

	"github.com/pkg/errors"
)

func NewResult(rowsAffected int64) ResultImp {
	return ResultImp{rowsAffected: rowsAffected}
}

type ResultImp struct {
	rowsAffected int64
}

func (r ResultImp) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// FromSQL reads the affected row count out of a database/sql result.
func FromSQL(r sql.Result) (ResultImp, error) {
	n, err := r.RowsAffected()
	if err != nil {
		return ResultImp{}, errors.Wrap(err, "RowsAffected is not supported by this driver")
	}
	return NewResult(n), nil
}
