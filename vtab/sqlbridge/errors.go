package sqlbridge

import (
	"errors"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"

	"github.com/Digithought/quereus-sub006/errs"
)

// mapError classifies a database/sql driver error into errs.KindVirtualTable
// (spec §6 "a module's backend failures surface as Kind=VirtualTable"),
// preserving the driver's own code/message via errs.Wrap so a host can still
// inspect the original error with errors.As.
func mapError(dialect Dialect, err error) error {
	if err == nil {
		return nil
	}
	switch dialect {
	case DialectMySQL:
		var me *mysql.MySQLError
		if errors.As(err, &me) {
			return errs.Wrap(errs.KindVirtualTable, err, "mysql error %d", me.Number)
		}
	case DialectPostgres:
		var pe *pq.Error
		if errors.As(err, &pe) {
			return errs.Wrap(errs.KindVirtualTable, err, "postgres error %s (%s)", pe.Code, pe.Code.Name())
		}
	case DialectMSSQL:
		var se mssql.Error
		if errors.As(err, &se) {
			return errs.Wrap(errs.KindVirtualTable, err, "mssql error %d", se.Number)
		}
	case DialectSQLite:
		var le *sqlite.Error
		if errors.As(err, &le) {
			return errs.Wrap(errs.KindVirtualTable, err, "sqlite error %d", le.Code())
		}
	}
	return errs.Wrap(errs.KindVirtualTable, err, "backend error")
}
