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

package metadata

import (
	"gorm.io/gorm"

	"github.com/clearo-labs/clearo/database/models"
	"github.com/clearo-labs/clearo/database/types"
)

// MetadataStore holds the relational state next to the record store
type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Stake ledger
	GetStakeAccount(
		[]byte, // identity
		types.Txn,
	) (*models.StakeAccount, error)
	SetStakeBalance(
		[]byte, // identity
		uint64, // balance
		int64, // updatedAt
		types.Txn,
	) error
	AddStakeBurn(*models.StakeBurn, types.Txn) error
	AddStakeTransfer(*models.StakeTransfer, types.Txn) error
}
