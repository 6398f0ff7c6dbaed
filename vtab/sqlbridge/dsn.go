// Package sqlbridge is a vtab.Module backed by database/sql: every table it
// serves is a view onto a row set living in an external MySQL, Postgres,
// MSSQL, or SQLite database instead of the in-memory store package memtable
// provides. It exists to prove the Virtual-Table Contract (spec §4.6) is
// truly pluggable, not an artifact of memtable's in-process shape.
//
// Grounded on the teacher's driver/mysql.go and driver/postgres.go, which
// each hold one dialect's DSN builder and table/DDL introspection queries
// behind driver.Database's single dispatch switch; here the same
// per-dialect split generalizes to four dialects behind one vtab.Module.
package sqlbridge

import (
	"fmt"
	"net/url"

	"github.com/go-sql-driver/mysql"
)

// Dialect names the SQL backend a Config targets; the driver name
// database/sql.Open receives is derived from it (see driverName).
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectMSSQL    Dialect = "mssql"
	DialectSQLite   Dialect = "sqlite"
)

// Config is sqlbridge's connection configuration, generalizing the
// teacher's driver.Config (DbType, DbName only) with the host/port/user
// fields driver.Config's DSN builders assumed but never declared.
type Config struct {
	Dialect  Dialect
	Host     string
	Port     int
	User     string
	Password string
	DbName   string
	// File is the SQLite database path; ignored for network dialects.
	File string
}

func driverName(d Dialect) (string, error) {
	switch d {
	case DialectMySQL:
		return "mysql", nil
	case DialectPostgres:
		return "postgres", nil
	case DialectMSSQL:
		return "sqlserver", nil
	case DialectSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("sqlbridge: unknown dialect %q", d)
	}
}

// buildDSN returns the driver-specific connection string for cfg,
// following each dialect's own DSN builder the way driver/mysql.go and
// driver/postgres.go do, one function per dialect.
func buildDSN(cfg Config) (string, error) {
	switch cfg.Dialect {
	case DialectMySQL:
		return mysqlDSN(cfg), nil
	case DialectPostgres:
		return postgresDSN(cfg), nil
	case DialectMSSQL:
		return mssqlDSN(cfg), nil
	case DialectSQLite:
		return cfg.File, nil
	default:
		return "", fmt.Errorf("sqlbridge: unknown dialect %q", cfg.Dialect)
	}
}

// mysqlDSN mirrors driver/mysql.go's mysqlBuildDSN exactly, generalized to
// a Config carrying its own host/port instead of driver.Database's.
func mysqlDSN(cfg Config) string {
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	c.DBName = cfg.DbName
	return c.FormatDSN()
}

// postgresDSN follows driver/postgres.go's postgresBuildDSN shape but
// resolves its TODO ("uri escape") using net/url so a password containing
// reserved characters round-trips correctly.
func postgresDSN(cfg Config) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.DbName,
	}
	return u.String()
}

func mssqlDSN(cfg Config) string {
	u := url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}
	q := url.Values{}
	q.Set("database", cfg.DbName)
	u.RawQuery = q.Encode()
	return u.String()
}
