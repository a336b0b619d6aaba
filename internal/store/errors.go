// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"

	"github.com/olegiv/folio-go/internal/model"
)

// SQLite result codes (primary code is the low byte of extended codes).
const (
	sqliteBusy       = 5
	sqliteLocked     = 6
	sqliteConstraint = 19
)

// MySQL server error numbers treated as constraint violations.
var mysqlConstraintErrors = map[uint16]bool{
	1048: true, // column cannot be null
	1062: true, // duplicate entry
	1451: true, // foreign key parent row
	1452: true, // foreign key child row
	3819: true, // check constraint
}

// mapError translates driver errors into the model error taxonomy.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "23") {
			return &model.ConflictError{Detail: joinDetail(pgErr.Message, pgErr.Detail), Err: err}
		}
		// Class 08 is connection exception, 57P0x is operator shutdown.
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0") {
			return &model.TransientError{Op: op, Err: err}
		}
		return err
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if mysqlConstraintErrors[myErr.Number] {
			return &model.ConflictError{Detail: myErr.Message, Err: err}
		}
		return err
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqliteConstraint:
			return &model.ConflictError{Detail: liteErr.Error(), Err: err}
		case sqliteBusy, sqliteLocked:
			return &model.TransientError{Op: op, Err: err}
		}
		return err
	}

	if isConnectionError(err) {
		return &model.TransientError{Op: op, Err: err}
	}
	return err
}

func isConnectionError(err error) bool {
	var connErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, mysql.ErrInvalidConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.As(err, &connErr),
		errors.As(err, &netErr):
		return true
	}
	return false
}

func joinDetail(msg, detail string) string {
	if detail == "" {
		return msg
	}
	return msg + ": " + detail
}
