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

package database

import (
	"errors"
	"fmt"

	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/database/types"
)

const recordKeyPrefix = "r"

var (
	ErrAddressCollision = errors.New("address already occupied")
	ErrRecordNotFound   = errors.New("record not found")
	// ErrConflict is returned when a concurrent operation committed to the
	// same address first. Nothing was applied and the caller may resubmit.
	ErrConflict = types.ErrTxnConflict
	ErrReadOnly = errors.New("read-only transaction")
)

func recordKey(kind address.Kind, addr address.Address) []byte {
	key := make([]byte, 0, len(recordKeyPrefix)+1+address.AddressSize)
	key = append(key, recordKeyPrefix...)
	key = append(key, byte(kind))
	return append(key, addr[:]...)
}

// GetRecord returns the encoded record stored at addr
func (d *Database) GetRecord(
	kind address.Kind,
	addr address.Address,
	txn *Txn,
) ([]byte, error) {
	if txn == nil {
		txn = NewBlobOnlyTxn(d, false)
		defer txn.Release()
	}
	val, err := d.Blob().Get(txn.Blob(), recordKey(kind, addr))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, fmt.Errorf(
				"%w: %s %s",
				ErrRecordNotFound,
				kind.String(),
				addr.String(),
			)
		}
		return nil, err
	}
	return val, nil
}

// RecordExists reports whether addr is occupied
func (d *Database) RecordExists(
	kind address.Kind,
	addr address.Address,
	txn *Txn,
) (bool, error) {
	_, err := d.GetRecord(kind, addr, txn)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateRecord stores data at addr. An occupied address is never
// overwritten.
func (d *Database) CreateRecord(
	kind address.Kind,
	addr address.Address,
	data []byte,
	txn *Txn,
) error {
	if err := checkWritable(txn); err != nil {
		return err
	}
	exists, err := d.RecordExists(kind, addr, txn)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf(
			"%w: %s %s",
			ErrAddressCollision,
			kind.String(),
			addr.String(),
		)
	}
	key := recordKey(kind, addr)
	if err := d.Blob().Set(txn.Blob(), key, data); err != nil {
		return err
	}
	txn.trackBlobWrite(key, nil, false, data)
	return nil
}

// UpdateRecord replaces the record stored at addr, which must exist
func (d *Database) UpdateRecord(
	kind address.Kind,
	addr address.Address,
	data []byte,
	txn *Txn,
) error {
	if err := checkWritable(txn); err != nil {
		return err
	}
	// Reading the key registers it with the transaction so a concurrent
	// writer to the same address fails at commit
	prev, err := d.GetRecord(kind, addr, txn)
	if err != nil {
		return err
	}
	key := recordKey(kind, addr)
	if err := d.Blob().Set(txn.Blob(), key, data); err != nil {
		return err
	}
	txn.trackBlobWrite(key, prev, true, data)
	return nil
}

// DeleteRecord removes the record stored at addr, which must exist
func (d *Database) DeleteRecord(
	kind address.Kind,
	addr address.Address,
	txn *Txn,
) error {
	if err := checkWritable(txn); err != nil {
		return err
	}
	prev, err := d.GetRecord(kind, addr, txn)
	if err != nil {
		return err
	}
	key := recordKey(kind, addr)
	if err := d.Blob().Delete(txn.Blob(), key); err != nil {
		return err
	}
	txn.trackBlobWrite(key, prev, true, nil)
	return nil
}

func checkWritable(txn *Txn) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	if !txn.readWrite {
		return ErrReadOnly
	}
	return nil
}
