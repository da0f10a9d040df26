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

package sqlite

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clearo-labs/clearo/database/models"
	"github.com/clearo-labs/clearo/database/types"
)

// GetStakeAccount returns the account for identity, or nil if it has never
// been funded
func (d *MetadataStoreSqlite) GetStakeAccount(
	identity []byte,
	txn types.Txn,
) (*models.StakeAccount, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.StakeAccount{}
	result := db.Where("identity = ?", identity).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// SetStakeBalance creates or overwrites the balance for identity
func (d *MetadataStoreSqlite) SetStakeBalance(
	identity []byte,
	balance uint64,
	updatedAt int64,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	tmpAccount := models.StakeAccount{
		Identity:  identity,
		Balance:   types.Uint64(balance),
		UpdatedAt: updatedAt,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
	}).Create(&tmpAccount)
	return result.Error
}

func (d *MetadataStoreSqlite) AddStakeBurn(
	burn *models.StakeBurn,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(burn).Error
}

func (d *MetadataStoreSqlite) AddStakeTransfer(
	transfer *models.StakeTransfer,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(transfer).Error
}
