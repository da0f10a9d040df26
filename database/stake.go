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
	"math"

	"github.com/clearo-labs/clearo/database/models"
	"github.com/clearo-labs/clearo/database/types"
)

var (
	ErrInsufficientStake = errors.New("insufficient stake balance")
	ErrStakeOverflow     = errors.New("stake balance overflow")
	// ErrNoMetadataTxn is returned for a stake write inside a transaction
	// that only covers the record store
	ErrNoMetadataTxn = errors.New("transaction does not cover the metadata store")
)

func checkStakeWritable(txn *Txn) error {
	if txn != nil && txn.Metadata() == nil {
		return ErrNoMetadataTxn
	}
	return nil
}

func metadataTxn(txn *Txn) types.Txn {
	if txn == nil {
		return nil
	}
	return txn.Metadata()
}

// GetStakeBalance returns the balance for identity, zero if never funded
func (d *Database) GetStakeBalance(identity []byte, txn *Txn) (uint64, error) {
	acct, err := d.Metadata().GetStakeAccount(identity, metadataTxn(txn))
	if err != nil {
		return 0, err
	}
	if acct == nil {
		return 0, nil
	}
	return uint64(acct.Balance), nil
}

// CreditStake adds amount to the balance of identity
func (d *Database) CreditStake(
	identity []byte,
	amount uint64,
	timestamp int64,
	txn *Txn,
) error {
	if err := checkStakeWritable(txn); err != nil {
		return err
	}
	balance, err := d.GetStakeBalance(identity, txn)
	if err != nil {
		return err
	}
	if balance > math.MaxUint64-amount {
		return ErrStakeOverflow
	}
	return d.Metadata().SetStakeBalance(
		identity,
		balance+amount,
		timestamp,
		metadataTxn(txn),
	)
}

// DebitStake removes amount from the balance of identity
func (d *Database) DebitStake(
	identity []byte,
	amount uint64,
	timestamp int64,
	txn *Txn,
) error {
	if err := checkStakeWritable(txn); err != nil {
		return err
	}
	balance, err := d.GetStakeBalance(identity, txn)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf(
			"%w: have %d, need %d",
			ErrInsufficientStake,
			balance,
			amount,
		)
	}
	return d.Metadata().SetStakeBalance(
		identity,
		balance-amount,
		timestamp,
		metadataTxn(txn),
	)
}

// BurnStake debits amount from identity and records the burn
func (d *Database) BurnStake(
	identity []byte,
	amount uint64,
	timestamp int64,
	txn *Txn,
) error {
	if err := d.DebitStake(identity, amount, timestamp, txn); err != nil {
		return err
	}
	return d.Metadata().AddStakeBurn(
		&models.StakeBurn{
			Identity:  identity,
			Amount:    types.Uint64(amount),
			CreatedAt: timestamp,
		},
		metadataTxn(txn),
	)
}

// TransferStake moves amount between identities and records the transfer
func (d *Database) TransferStake(
	source []byte,
	destination []byte,
	amount uint64,
	memo string,
	timestamp int64,
	txn *Txn,
) error {
	if err := d.DebitStake(source, amount, timestamp, txn); err != nil {
		return err
	}
	if err := d.CreditStake(destination, amount, timestamp, txn); err != nil {
		return err
	}
	return d.Metadata().AddStakeTransfer(
		&models.StakeTransfer{
			Source:      source,
			Destination: destination,
			Amount:      types.Uint64(amount),
			Memo:        memo,
			CreatedAt:   timestamp,
		},
		metadataTxn(txn),
	)
}
