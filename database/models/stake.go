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

package models

import (
	"github.com/clearo-labs/clearo/database/types"
)

// StakeAccount is the spendable stake balance of one identity
type StakeAccount struct {
	Identity  []byte       `gorm:"uniqueIndex;size:32"`
	Balance   types.Uint64 `gorm:"not null"`
	ID        uint         `gorm:"primarykey"`
	UpdatedAt int64
}

func (StakeAccount) TableName() string {
	return "stake_account"
}

// StakeBurn records an irreversible consumption of stake
type StakeBurn struct {
	Identity  []byte       `gorm:"index;size:32"`
	Amount    types.Uint64 `gorm:"not null"`
	ID        uint         `gorm:"primarykey"`
	CreatedAt int64
}

func (StakeBurn) TableName() string {
	return "stake_burn"
}

// StakeTransfer records a movement of stake between identities
type StakeTransfer struct {
	Source      []byte       `gorm:"index;size:32"`
	Destination []byte       `gorm:"index;size:32"`
	Memo        string       `gorm:"size:64"`
	Amount      types.Uint64 `gorm:"not null"`
	ID          uint         `gorm:"primarykey"`
	CreatedAt   int64
}

func (StakeTransfer) TableName() string {
	return "stake_transfer"
}
