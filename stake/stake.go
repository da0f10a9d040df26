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

// Package stake defines the contract the registry uses to spend stake and
// ships a reference ledger on top of the metadata store.
package stake

import (
	"context"
	"errors"
	"fmt"

	"github.com/clearo-labs/clearo/auth"
	"github.com/clearo-labs/clearo/database"
)

var (
	// ErrConsumptionFailed wraps every ledger failure seen by the core
	ErrConsumptionFailed = errors.New("stake consumption failed")
	// ErrInsufficientBalance is returned when the account cannot cover
	// the requested amount
	ErrInsufficientBalance = database.ErrInsufficientStake
	ErrInvalidAmount       = errors.New("stake amount must be positive")
)

// Ledger is the external stake ledger. Calls are synchronous and must take
// effect atomically with the caller's record mutation: implementations
// join the transaction carried by ctx when there is one.
type Ledger interface {
	// Consume irreversibly removes amount from account
	Consume(ctx context.Context, account auth.Identity, amount uint64) error
	// Transfer moves amount from one account to another, tagged with memo
	Transfer(
		ctx context.Context,
		from auth.Identity,
		to auth.Identity,
		amount uint64,
		memo string,
	) error
}

// ConsumptionError wraps err with ErrConsumptionFailed
func ConsumptionError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConsumptionFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConsumptionFailed, err)
}
