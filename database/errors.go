/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/opencollective/ledger/errs"
)

// SQLError classifies driver errors independently of the dialect.
type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoTableErr
	NoColumnErr
	ExistIndexErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
)

var mysqlCodes = map[uint16]SQLError{
	1146: NoTableErr,
	1054: NoColumnErr,
	1061: ExistIndexErr,
	1050: ExistTableErr,
	1062: DuplicateKeyErr,
	1048: NotNullViolationErr,
	1216: ForeignKeyViolationErr,
	1217: ForeignKeyViolationErr,
	1451: ForeignKeyViolationErr,
	1452: ForeignKeyViolationErr,
	3819: CheckConstraintViolationErr,
	1265: DataTruncatedErr,
	1406: DataTruncatedErr,
}

var postgresCodes = map[pq.ErrorCode]SQLError{
	"42P01": NoTableErr,
	"42703": NoColumnErr,
	"42P07": ExistTableErr,
	"23505": DuplicateKeyErr,
	"23502": NotNullViolationErr,
	"23503": ForeignKeyViolationErr,
	"23514": CheckConstraintViolationErr,
	"22001": DataTruncatedErr,
}

// sqlite drivers expose no shared error type, so they are matched on the
// message. Rules are tried in order.
var messageRules = []struct {
	kind    SQLError
	needles []string
}{
	{NoTableErr, []string{"no such table"}},
	{NoColumnErr, []string{"no such column", "has no column named"}},
	{ExistIndexErr, []string{"index", "already exists"}},
	{ExistTableErr, []string{"table", "already exists"}},
	{DuplicateKeyErr, []string{"unique constraint failed"}},
	{NotNullViolationErr, []string{"not null constraint failed"}},
	{ForeignKeyViolationErr, []string{"foreign key constraint failed"}},
	{CheckConstraintViolationErr, []string{"check constraint failed"}},
}

// ClassifyError reports whether err came from the database and what kind of
// failure it was.
func ClassifyError(err error) (SQLError, bool) {
	if err == nil {
		return UnknownErr, false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return NoRowsErr, true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlCodes[myErr.Number], true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return postgresCodes[pqErr.Code], true
	}
	msg := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		if containsAll(msg, rule.needles) {
			return rule.kind, true
		}
	}
	return UnknownErr, false
}

func containsAll(s string, needles []string) bool {
	for _, n := range needles {
		if !strings.Contains(s, n) {
			return false
		}
	}
	return true
}

// TranslateError maps driver failures onto the errs sentinels so callers can
// branch with errors.Is. Other errors pass through unchanged.
func TranslateError(err error) error {
	kind, ok := ClassifyError(err)
	if !ok {
		return err
	}
	switch kind {
	case NoRowsErr:
		return errs.ErrNotFound
	case DuplicateKeyErr:
		return fmt.Errorf("%w: %s", errs.ErrAlreadyExists, err.Error())
	}
	return err
}
