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
	"context"
)

type ctxKey string

const txnContextKey ctxKey = "clearo.txn"

// WithTxn returns a context carrying txn so that collaborators invoked
// during an operation can join its commit
func WithTxn(ctx context.Context, txn *Txn) context.Context {
	return context.WithValue(ctx, txnContextKey, txn)
}

// TxnFromContext returns the transaction carried by ctx, if any
func TxnFromContext(ctx context.Context) *Txn {
	txn, ok := ctx.Value(txnContextKey).(*Txn)
	if !ok {
		return nil
	}
	return txn
}
