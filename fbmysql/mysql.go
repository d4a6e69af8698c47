// File: fbmysql/mysql.go
// Author: corenet contributors
// License: Apache-2.0
//
// Package fbmysql adapts a MySQL connection to the CRUD-shaped surface
// the networking core's callers use: existence checks, column
// retrieval, and insert/update/delete, all driven through prepared
// statements over database/sql.
package fbmysql

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	fberrors "github.com/fbnetwork/corenet/errors"
)

// DB wraps a database/sql handle opened against a MySQL server, either
// over TCP (Open) or a local UNIX socket (OpenUnixSocket).
type DB struct {
	conn *sql.DB
}

// Open connects to a MySQL server at host:port.
func Open(host, user, password, database string, port int) (*DB, error) {
	if host == "" || user == "" || database == "" {
		return nil, fberrors.New(fberrors.InvalidArgument, "host, user and database cannot be empty")
	}
	if port < 0 || port > 65535 {
		return nil, fberrors.New(fberrors.InvalidArgument, "port must be in [0, 65535]")
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", user, password, host, port, database)
	return open(dsn)
}

// OpenUnixSocket connects to a MySQL server listening on a local UNIX
// socket file.
func OpenUnixSocket(socketPath, user, password, database string) (*DB, error) {
	if socketPath == "" || user == "" || database == "" {
		return nil, fberrors.New(fberrors.InvalidArgument, "socket path, user and database cannot be empty")
	}
	dsn := fmt.Sprintf("%s:%s@unix(%s)/%s", user, password, socketPath, database)
	return open(dsn)
}

func open(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fberrors.Wrap(fberrors.MySQLCreation, "opening the connection failed", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fberrors.Wrap(fberrors.MySQLCreation, "pinging the server failed", err)
	}
	return &DB{conn: conn}, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.conn.Close()
}

func validateIdent(name, what string) error {
	if name == "" {
		return fberrors.New(fberrors.InvalidArgument, what+" cannot be empty")
	}
	return nil
}

// Has reports whether table has a row with column == value.
func (d *DB) Has(table, column string, value any) (bool, error) {
	if err := validateIdent(table, "table"); err != nil {
		return false, err
	}
	if err := validateIdent(column, "column"); err != nil {
		return false, err
	}
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE %s = ?)", quoteIdent(table), quoteIdent(column))
	var exists bool
	if err := d.conn.QueryRow(query, value).Scan(&exists); err != nil {
		return false, fberrors.Wrap(fberrors.MySQLRuntime, "executing the statement failed", err)
	}
	return exists, nil
}

// Match reports whether a single row has both column == value and
// column2 == value2 simultaneously.
func (d *DB) Match(table, column string, value any, column2 string, value2 any) (bool, error) {
	if err := validateIdent(table, "table"); err != nil {
		return false, err
	}
	if err := validateIdent(column, "column"); err != nil {
		return false, err
	}
	if err := validateIdent(column2, "column2"); err != nil {
		return false, err
	}
	query := fmt.Sprintf(
		"SELECT EXISTS(SELECT 1 FROM %s WHERE %s = ? AND %s = ?)",
		quoteIdent(table), quoteIdent(column), quoteIdent(column2),
	)
	var exists bool
	if err := d.conn.QueryRow(query, value, value2).Scan(&exists); err != nil {
		return false, fberrors.Wrap(fberrors.MySQLRuntime, "executing the statement failed", err)
	}
	return exists, nil
}

// Get retrieves every value of column from table.
func (d *DB) Get(table, column string) ([]string, error) {
	if err := validateIdent(table, "table"); err != nil {
		return nil, err
	}
	if err := validateIdent(column, "column"); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s", quoteIdent(column), quoteIdent(table))
	return d.queryStrings(query)
}

// GetWhere retrieves every value of column from table where column2 ==
// value2.
func (d *DB) GetWhere(table, column, column2 string, value2 any) ([]string, error) {
	if err := validateIdent(table, "table"); err != nil {
		return nil, err
	}
	if err := validateIdent(column, "column"); err != nil {
		return nil, err
	}
	if err := validateIdent(column2, "column2"); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ?",
		quoteIdent(column), quoteIdent(table), quoteIdent(column2),
	)
	return d.queryStrings(query, value2)
}

func (d *DB) queryStrings(query string, args ...any) ([]string, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, fberrors.Wrap(fberrors.MySQLRuntime, "executing the statement failed", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fberrors.Wrap(fberrors.MySQLRuntime, "reading the result failed", err)
		}
		values = append(values, v.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fberrors.Wrap(fberrors.MySQLRuntime, "reading the result failed", err)
	}
	return values, nil
}

// Insert adds a new row to table with the given column/value pairs.
func (d *DB) Insert(table string, columns []string, values []any) error {
	if err := validateIdent(table, "table"); err != nil {
		return err
	}
	if len(columns) == 0 || len(values) == 0 {
		return fberrors.New(fberrors.InvalidArgument, "columns and values cannot be empty")
	}
	if len(columns) != len(values) {
		return fberrors.New(fberrors.InvalidArgument, "columns and values must have the same length")
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		placeholders[i] = "?"
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "),
	)
	if _, err := d.conn.Exec(query, values...); err != nil {
		return fberrors.Wrap(fberrors.MySQLRuntime, "executing the statement failed", err)
	}
	return nil
}

// UpdateWhere sets columns to values in every row of table where
// column == value.
func (d *DB) UpdateWhere(table string, columns []string, values []any, column string, value any) error {
	if err := validateIdent(table, "table"); err != nil {
		return err
	}
	if err := validateIdent(column, "column"); err != nil {
		return err
	}
	if len(columns) == 0 || len(values) == 0 {
		return fberrors.New(fberrors.InvalidArgument, "columns and values cannot be empty")
	}
	if len(columns) != len(values) {
		return fberrors.New(fberrors.InvalidArgument, "columns and values must have the same length")
	}

	assignments := make([]string, len(columns))
	for i, c := range columns {
		assignments[i] = fmt.Sprintf("%s = ?", quoteIdent(c))
	}
	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		quoteIdent(table), strings.Join(assignments, ", "), quoteIdent(column),
	)
	args := append(append([]any{}, values...), value)
	if _, err := d.conn.Exec(query, args...); err != nil {
		return fberrors.Wrap(fberrors.MySQLRuntime, "executing the statement failed", err)
	}
	return nil
}

// DeleteWhere removes every row of table where column == value.
func (d *DB) DeleteWhere(table, column string, value any) error {
	if err := validateIdent(table, "table"); err != nil {
		return err
	}
	if err := validateIdent(column, "column"); err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(table), quoteIdent(column))
	if _, err := d.conn.Exec(query, value); err != nil {
		return fberrors.Wrap(fberrors.MySQLRuntime, "executing the statement failed", err)
	}
	return nil
}

// quoteIdent backtick-quotes a MySQL identifier. Table/column names
// cannot be bound as prepared-statement parameters, so they are quoted
// instead of interpolated raw; callers are expected to pass schema
// identifiers, not user input.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
