// Copyright 2026 Clearo Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
)

// Uint64 stores the full unsigned range in sqlite, which only has signed
// 64-bit integers
type Uint64 uint64

func (u Uint64) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(u), 10), nil
}

func (u *Uint64) Scan(val any) error {
	var v string
	switch tmp := val.(type) {
	case string:
		v = tmp
	case []byte:
		v = string(tmp)
	case int64:
		// Column affinity may have coerced small values to integers
		if tmp < 0 {
			return fmt.Errorf("negative value for Uint64: %d", tmp)
		}
		*u = Uint64(tmp)
		return nil
	default:
		return fmt.Errorf(
			"value was not expected type, wanted string, got %T",
			val,
		)
	}
	tmpUint, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return err
	}
	*u = Uint64(tmpUint)
	return nil
}

func (Uint64) GormDataType() string {
	return "text"
}

var ErrBlobKeyNotFound = errors.New("blob key not found")

var ErrTxnWrongType = errors.New("invalid transaction type")

var ErrNilTxn = errors.New("nil transaction")

var ErrNoStoreAvailable = errors.New("no store available")

var ErrBlobStoreUnavailable = errors.New("blob store unavailable")

// ErrTxnConflict is returned from a commit that raced another writer on
// the same key
var ErrTxnConflict = errors.New("transaction conflict")

type Txn interface {
	Commit() error
	Rollback() error
}
